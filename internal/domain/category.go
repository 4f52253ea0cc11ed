package domain

// Category is the fixed internal display taxonomy for POIs.
// The zero value is not a valid category; use CategoryUnknown.
type Category string

const (
	CategoryFactory     Category = "factory"
	CategoryWarehouse   Category = "warehouse"
	CategoryGasStation  Category = "gasStation"
	CategoryMaintenance Category = "maintenance"
	CategoryRestArea    Category = "restArea"
	CategoryTransport   Category = "transport"
	CategoryUnknown     Category = "unknown"
)

func (c Category) String() string { return string(c) }
