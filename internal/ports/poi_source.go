package ports

import (
	"context"
	"fleet-map-service/internal/domain"
)

// Port: a boundary for retrieving raw POI records from the backend.
type POISource interface {
	// Retrieve every POI the backend considers displayable.
	FetchDisplayablePOIs(ctx context.Context) ([]domain.RawPOI, error)
	// Retrieve the backend's taxonomy codes.
	FetchPOITypes(ctx context.Context) ([]string, error)
}
