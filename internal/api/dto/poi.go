package dto

import (
	"fleet-map-service/internal/domain"

	"github.com/paulmach/orb"
)

type POITypeResponse struct {
	Code     string          `json:"code"`
	Category domain.Category `json:"category"`
	Label    string          `json:"label"`
}

type POITypesResponse struct {
	Types    []POITypeResponse `json:"types"`
	Fallback bool              `json:"fallback"`
}

type BoundsResponse struct {
	Count  int       `json:"count"`
	MinLng float64   `json:"minLng"`
	MinLat float64   `json:"minLat"`
	MaxLng float64   `json:"maxLng"`
	MaxLat float64   `json:"maxLat"`
	Center []float64 `json:"center"`
}

func NewBoundsResponse(b orb.Bound, n int) BoundsResponse {
	c := b.Center()
	return BoundsResponse{
		Count:  n,
		MinLng: b.Min.Lon(),
		MinLat: b.Min.Lat(),
		MaxLng: b.Max.Lon(),
		MaxLat: b.Max.Lat(),
		Center: []float64{c.Lon(), c.Lat()},
	}
}
