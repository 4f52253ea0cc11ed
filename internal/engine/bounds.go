package engine

import (
	"context"
	"fleet-map-service/internal/markers"

	"github.com/paulmach/orb"
)

// VisibleBounds returns the bounding box of every POI currently drawn and how
// many POIs it covers. With nothing drawn the count is 0 and the bound empty.
func (e *Engine) VisibleBounds(ctx context.Context) (orb.Bound, int, error) {
	var (
		bound orb.Bound
		n     int
	)
	err := e.do(ctx, func() {
		var pts orb.MultiPoint
		for key := range e.reg.All() {
			if key.Kind != markers.KindPOI {
				continue
			}
			p, ok := e.byID[key.ID]
			if !ok {
				continue
			}
			pts = append(pts, orb.Point{p.Position.Lon, p.Position.Lat})
		}
		n = len(pts)
		if n > 0 {
			bound = pts.Bound()
		}
	})
	return bound, n, err
}
