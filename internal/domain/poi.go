package domain

// RawPOI is a backend POI record before classification.
//
// Numeric fields keep whatever value the transport decoded (float64,
// json.Number, string or nil); the classifier owns the coercion rules.
type RawPOI struct {
	ID        any    `json:"id"`
	Name      string `json:"name"`
	PoiType   string `json:"poiType"`
	Longitude any    `json:"longitude"`
	Latitude  any    `json:"latitude"`
	Address   string `json:"address,omitempty"`
	Tel       string `json:"tel,omitempty"`
}

// Represents a classified point of interest.
// A POI is immutable once classified; a new batch replaces it wholesale.
type POI struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Position Coordinates `json:"position"`
	TypeCode string      `json:"type"`
	Category Category    `json:"category"`
	Address  string      `json:"address,omitempty"`
	Tel      string      `json:"tel,omitempty"`
}
