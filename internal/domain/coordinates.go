package domain

// Immutable geographic coordinates (longitude, latitude) in degrees.
type Coordinates struct {
	Lon float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Return coordinates as [lon, lat] for map surface compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// CoordinatesFromPair builds coordinates from a [lng, lat] pair.
func CoordinatesFromPair(p [2]float64) Coordinates {
	return Coordinates{Lon: p[0], Lat: p[1]}
}
