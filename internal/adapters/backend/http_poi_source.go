package backend

import (
	"context"
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/platform/obs"
	"fmt"
	"net/http"
	"strings"
)

// poiRecord mirrors the backend's POI JSON. Coordinates and ids are left
// untyped; the classifier coerces them.
type poiRecord struct {
	ID        any    `json:"id"`
	Name      string `json:"name"`
	PoiType   string `json:"poiType"`
	Longitude any    `json:"longitude"`
	Latitude  any    `json:"latitude"`
	Address   string `json:"address"`
	Tel       string `json:"tel"`
}

// HTTPPOISource implements ports.POISource against the backend REST API.
type HTTPPOISource struct {
	client *Client
}

func NewHTTPPOISource(client *Client) *HTTPPOISource {
	return &HTTPPOISource{client: client}
}

func (s *HTTPPOISource) FetchDisplayablePOIs(ctx context.Context) (_ []domain.RawPOI, err error) {
	defer obs.Time(ctx, s.client.log, "backend.FetchDisplayablePOIs")(&err)

	var records []poiRecord
	if err := s.client.call(ctx, http.MethodGet, "/api/poi/all", nil, &records); err != nil {
		return nil, fmt.Errorf("fetch pois: %w", err)
	}

	out := make([]domain.RawPOI, 0, len(records))
	for _, r := range records {
		out = append(out, domain.RawPOI{
			ID:        r.ID,
			Name:      r.Name,
			PoiType:   r.PoiType,
			Longitude: r.Longitude,
			Latitude:  r.Latitude,
			Address:   r.Address,
			Tel:       r.Tel,
		})
	}
	return out, nil
}

func (s *HTTPPOISource) FetchPOITypes(ctx context.Context) (_ []string, err error) {
	defer obs.Time(ctx, s.client.log, "backend.FetchPOITypes")(&err)

	var types []string
	if err := s.client.call(ctx, http.MethodGet, "/api/poi/types", nil, &types); err != nil {
		return nil, fmt.Errorf("fetch poi types: %w", err)
	}

	out := types[:0]
	for _, t := range types {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}
