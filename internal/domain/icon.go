package domain

// Icon describes how a marker is drawn on the map surface.
type Icon struct {
	URL   string `json:"url,omitempty" mapstructure:"url"`
	Color string `json:"color,omitempty" mapstructure:"color"`
	Size  int    `json:"size,omitempty" mapstructure:"size"`
}

// IconSet selects a POI icon per category. Categories without an entry are
// not rendered.
type IconSet map[Category]Icon
