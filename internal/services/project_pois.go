package services

import (
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/markers"
	"fleet-map-service/internal/platform/logger"
	"fleet-map-service/internal/ports"
	"fleet-map-service/internal/taxonomy"

	"go.uber.org/zap"
)

type ProjectResult struct {
	Rendered int `json:"rendered"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// ProjectPOIs rebuilds the POI markers on surface from buckets.
//
// Every POI marker currently in reg is released first. Categories are then
// walked in display order; a category is drawn unless visibility maps it to
// false. A POI whose category has no icon is skipped, and a marker the surface
// fails to create is logged and counted without stopping the rebuild.
func ProjectPOIs(
	reg *markers.Registry,
	surface ports.MapSurface,
	buckets map[domain.Category][]domain.POI,
	visibility map[domain.Category]bool,
	icons domain.IconSet,
	log *zap.Logger,
) ProjectResult {
	log = logger.OrNop(log)
	reg.ClearKind(markers.KindPOI)

	var res ProjectResult
	for _, category := range taxonomy.AllCategories() {
		if visible, ok := visibility[category]; ok && !visible {
			continue
		}

		pois := buckets[category]
		if len(pois) == 0 {
			continue
		}

		icon, ok := icons[category]
		if !ok {
			res.Skipped += len(pois)
			log.Debug("no icon for category, skipping",
				zap.String("category", category.String()),
				zap.Int("pois", len(pois)),
			)
			continue
		}

		for _, poi := range pois {
			handle, err := surface.CreateMarker(poi.Position, icon, poi.Name)
			if err != nil {
				res.Failed++
				log.Warn("create poi marker failed",
					zap.String("poi_id", poi.ID),
					zap.String("category", category.String()),
					zap.Error(err),
				)
				continue
			}
			reg.Register(markers.POIKey(poi.ID), handle, nil)
			res.Rendered++
		}
	}

	return res
}

// DefaultVisibility returns a visibility map with every category shown.
func DefaultVisibility() map[domain.Category]bool {
	out := make(map[domain.Category]bool, len(taxonomy.AllCategories()))
	for _, c := range taxonomy.AllCategories() {
		out[c] = true
	}
	return out
}
