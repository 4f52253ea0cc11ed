// Package taxonomy maps backend POI type codes to internal display
// categories and back.
package taxonomy

import (
	"fleet-map-service/internal/domain"
	"strings"
)

// UnknownBackendCode is the backend code for CategoryUnknown.
const UnknownBackendCode = "UNKNOWN"

type categoryInfo struct {
	category    domain.Category
	backendCode string
	label       string
}

// Fixed display order. Unknown is always last.
var categories = []categoryInfo{
	{domain.CategoryFactory, "FACTORY", "Factory"},
	{domain.CategoryWarehouse, "WAREHOUSE", "Warehouse"},
	{domain.CategoryGasStation, "GAS_STATION", "Gas station"},
	{domain.CategoryMaintenance, "MAINTENANCE_CENTER", "Maintenance center"},
	{domain.CategoryRestArea, "REST_AREA", "Rest area"},
	{domain.CategoryTransport, "DISTRIBUTION_CENTER", "Transport center"},
}

// Aliases seen in backend payloads and in the map provider's POI type codes.
var aliases = map[string]domain.Category{
	"GASSTATION":   domain.CategoryGasStation,
	"GAS STATION":  domain.CategoryGasStation,
	"GAS-STATION":  domain.CategoryGasStation,
	"MAINTENANCE":  domain.CategoryMaintenance,
	"REST AREA":    domain.CategoryRestArea,
	"RESTAREA":     domain.CategoryRestArea,
	"TRANSPORT":    domain.CategoryTransport,
	"170300":       domain.CategoryFactory,
	"070501":       domain.CategoryWarehouse,
	"010100":       domain.CategoryGasStation,
	"035000":       domain.CategoryMaintenance,
	"180300":       domain.CategoryRestArea,
	"070500":       domain.CategoryTransport,
	"150107":       domain.CategoryTransport,
	"150210":       domain.CategoryTransport,
	"DISTRIBUTION": domain.CategoryTransport,
}

var (
	byCode     = make(map[string]domain.Category, len(categories)+len(aliases))
	byCategory = make(map[domain.Category]categoryInfo, len(categories))
)

func init() {
	for _, c := range categories {
		byCode[c.backendCode] = c.category
		byCategory[c.category] = c
	}
	for code, c := range aliases {
		byCode[code] = c
	}
}

// ToInternalCategory resolves a raw backend type code.
// Codes are trimmed and upper-cased before lookup; anything unrecognised
// maps to CategoryUnknown.
func ToInternalCategory(rawTypeCode string) domain.Category {
	code := strings.ToUpper(strings.TrimSpace(rawTypeCode))
	if c, ok := byCode[code]; ok {
		return c
	}
	return domain.CategoryUnknown
}

// ToBackendCode returns the canonical backend code for c.
func ToBackendCode(c domain.Category) string {
	if info, ok := byCategory[c]; ok {
		return info.backendCode
	}
	return UnknownBackendCode
}

// Label returns the human-readable name of c.
func Label(c domain.Category) string {
	if info, ok := byCategory[c]; ok {
		return info.label
	}
	return "Unknown"
}

// Categories returns the known categories in display order, without unknown.
func Categories() []domain.Category {
	out := make([]domain.Category, 0, len(categories))
	for _, c := range categories {
		out = append(out, c.category)
	}
	return out
}

// AllCategories returns Categories followed by CategoryUnknown.
func AllCategories() []domain.Category {
	return append(Categories(), domain.CategoryUnknown)
}

// ParseCategory accepts an internal category name (case-insensitive) and
// reports whether it is part of the taxonomy.
func ParseCategory(name string) (domain.Category, bool) {
	n := strings.TrimSpace(name)
	for _, c := range AllCategories() {
		if strings.EqualFold(string(c), n) {
			return c, true
		}
	}
	return "", false
}

// KnownBackendCodes lists the canonical backend codes in display order.
func KnownBackendCodes() []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		out = append(out, c.backendCode)
	}
	return out
}
