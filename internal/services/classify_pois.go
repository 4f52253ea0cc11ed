package services

import (
	"encoding/json"
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/taxonomy"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ClassifyIssue records a data-quality problem found in one raw record.
// The record itself is still classified.
type ClassifyIssue struct {
	Index  int    `json:"index"`
	POIID  string `json:"poiId"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ClassifyResult holds the categorized buckets of one backend batch.
// Buckets always has an entry for every category, including unknown.
type ClassifyResult struct {
	Buckets           map[domain.Category][]domain.POI
	UnclassifiedCount int
	Issues            []ClassifyIssue
}

// NewEmptyClassifyResult returns a result with every bucket present and empty.
func NewEmptyClassifyResult() ClassifyResult {
	buckets := make(map[domain.Category][]domain.POI, len(taxonomy.AllCategories()))
	for _, c := range taxonomy.AllCategories() {
		buckets[c] = []domain.POI{}
	}
	return ClassifyResult{Buckets: buckets}
}

// Total returns the number of POIs across all buckets.
func (r ClassifyResult) Total() int {
	n := 0
	for _, pois := range r.Buckets {
		n += len(pois)
	}
	return n
}

// Counts returns the bucket sizes keyed by category.
func (r ClassifyResult) Counts() map[domain.Category]int {
	out := make(map[domain.Category]int, len(r.Buckets))
	for c, pois := range r.Buckets {
		out[c] = len(pois)
	}
	return out
}

// ClassifyPOIs converts raw backend records into categorized POIs.
//
// No record is dropped: malformed fields fall back to defaults (0 for
// coordinates) and are reported as issues, and records whose type code is
// not part of the taxonomy land in the unknown bucket. A repeated id is
// reported and the later record renamed to "<id>#<index>", so every POI
// keeps its own marker.
func ClassifyPOIs(records []domain.RawPOI) ClassifyResult {
	res := NewEmptyClassifyResult()
	seen := make(map[string]struct{}, len(records))

	for i, raw := range records {
		id, ok := coerceID(raw.ID)
		if !ok {
			id = fmt.Sprintf("idx-%d", i)
			res.Issues = append(res.Issues, ClassifyIssue{Index: i, POIID: id, Field: "id", Reason: "missing"})
		}
		if _, dup := seen[id]; dup {
			res.Issues = append(res.Issues, ClassifyIssue{Index: i, POIID: id, Field: "id", Reason: "duplicate"})
			id = uniqueID(seen, id, i)
		}
		seen[id] = struct{}{}

		name := strings.TrimSpace(raw.Name)
		if name == "" {
			name = "POI " + id
			res.Issues = append(res.Issues, ClassifyIssue{Index: i, POIID: id, Field: "name", Reason: "missing"})
		}

		lon, reason := coerceFloat(raw.Longitude)
		if reason != "" {
			res.Issues = append(res.Issues, ClassifyIssue{Index: i, POIID: id, Field: "longitude", Reason: reason})
		}
		lat, reason := coerceFloat(raw.Latitude)
		if reason != "" {
			res.Issues = append(res.Issues, ClassifyIssue{Index: i, POIID: id, Field: "latitude", Reason: reason})
		}

		category := taxonomy.ToInternalCategory(raw.PoiType)
		if category == domain.CategoryUnknown {
			res.UnclassifiedCount++
		}

		res.Buckets[category] = append(res.Buckets[category], domain.POI{
			ID:       id,
			Name:     name,
			Position: domain.Coordinates{Lon: lon, Lat: lat},
			TypeCode: strings.TrimSpace(raw.PoiType),
			Category: category,
			Address:  strings.TrimSpace(raw.Address),
			Tel:      strings.TrimSpace(raw.Tel),
		})
	}

	return res
}

func uniqueID(seen map[string]struct{}, id string, idx int) string {
	out := fmt.Sprintf("%s#%d", id, idx)
	for n := 2; ; n++ {
		if _, taken := seen[out]; !taken {
			return out
		}
		out = fmt.Sprintf("%s#%d-%d", id, idx, n)
	}
}

// Whole floats at or beyond 2^63 do not fit an int64.
const maxExactID = 1 << 63

func coerceID(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(x)
		return s, s != ""
	case json.Number:
		return x.String(), true
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < maxExactID {
			return strconv.FormatInt(int64(x), 10), true
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	default:
		s := strings.TrimSpace(fmt.Sprint(x))
		return s, s != ""
	}
}

// coerceFloat returns the numeric value of v, or 0 and a reason when v is
// absent or not numeric.
func coerceFloat(v any) (float64, string) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, "missing"
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, "not numeric"
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, "missing"
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, "not numeric"
		}
		f = parsed
	default:
		return 0, "not numeric"
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, "not numeric"
	}
	return f, ""
}
