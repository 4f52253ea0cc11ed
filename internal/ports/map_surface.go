package ports

import "fleet-map-service/internal/domain"

// MarkerHandle is an opaque reference to a marker drawn on a map surface.
type MarkerHandle string

// Port: the narrow drawing capability the engine needs from a map SDK.
type MapSurface interface {
	// Draw a marker and return its handle.
	CreateMarker(position domain.Coordinates, icon domain.Icon, title string) (MarkerHandle, error)
	// Erase a marker. Unknown handles are ignored.
	RemoveMarker(h MarkerHandle)
	SetMarkerIcon(h MarkerHandle, icon domain.Icon)
	SetMarkerTitle(h MarkerHandle, title string)
}
