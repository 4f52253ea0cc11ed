package domain

import (
	"math"
	"strconv"
	"time"
)

type VehicleID int64

func (id VehicleID) String() string { return strconv.FormatInt(int64(id), 10) }

// Assignment is a vehicle's current transport task, supplied by the backend
// alongside status events.
type Assignment struct {
	StartPOIName  string  `json:"startPOIName"`
	EndPOIName    string  `json:"endPOIName"`
	CurrentLoad   float64 `json:"currentLoad"`
	CurrentVolume float64 `json:"currentVolume"`
	GoodsName     string  `json:"goodsName,omitempty"`
	ShipmentRefNo string  `json:"shipmentRefNo,omitempty"`
}

// Fleet vehicle tracked on the map.
//
// Load and volume percentages are always derived from the current and max
// values; they are never stored.
type Vehicle struct {
	ID                VehicleID
	LicensePlate      string
	Status            VehicleStatus
	PreviousStatus    VehicleStatus
	CurrentLoad       float64
	CurrentVolume     float64
	MaxLoadCapacity   float64
	MaxVolumeCapacity float64
	Position          *Coordinates
	ActionDescription string
	StatusChangedAt   time.Time
}

func (v *Vehicle) LoadPercentage() float64 {
	return percentage(v.CurrentLoad, v.MaxLoadCapacity)
}

func (v *Vehicle) VolumePercentage() float64 {
	return percentage(v.CurrentVolume, v.MaxVolumeCapacity)
}

// Clear cargo for no-cargo states.
func (v *Vehicle) Unload() {
	v.CurrentLoad = 0
	v.CurrentVolume = 0
}

// Set cargo from an assignment, clamped to [0, max].
// A non-positive max only clamps the lower bound.
func (v *Vehicle) LoadFrom(a Assignment) {
	v.CurrentLoad = clampCargo(a.CurrentLoad, v.MaxLoadCapacity)
	v.CurrentVolume = clampCargo(a.CurrentVolume, v.MaxVolumeCapacity)
}

// Snapshot returns a detached copy with derived fields filled in.
func (v *Vehicle) Snapshot() VehicleSnapshot {
	s := VehicleSnapshot{
		ID:                v.ID,
		LicensePlate:      v.LicensePlate,
		Status:            v.Status,
		PreviousStatus:    v.PreviousStatus,
		CurrentLoad:       v.CurrentLoad,
		CurrentVolume:     v.CurrentVolume,
		MaxLoadCapacity:   v.MaxLoadCapacity,
		MaxVolumeCapacity: v.MaxVolumeCapacity,
		LoadPercentage:    v.LoadPercentage(),
		VolumePercentage:  v.VolumePercentage(),
		ActionDescription: v.ActionDescription,
		StatusChangedAt:   v.StatusChangedAt,
	}
	if v.Position != nil {
		p := *v.Position
		s.Position = &p
	}
	return s
}

// VehicleSnapshot is the read-only view of a vehicle handed to observers.
type VehicleSnapshot struct {
	ID                VehicleID     `json:"id"`
	LicensePlate      string        `json:"licensePlate"`
	Status            VehicleStatus `json:"status"`
	PreviousStatus    VehicleStatus `json:"previousStatus,omitempty"`
	CurrentLoad       float64       `json:"currentLoad"`
	CurrentVolume     float64       `json:"currentVolume"`
	MaxLoadCapacity   float64       `json:"maxLoadCapacity"`
	MaxVolumeCapacity float64       `json:"maxVolumeCapacity"`
	LoadPercentage    float64       `json:"loadPercentage"`
	VolumePercentage  float64       `json:"volumePercentage"`
	Position          *Coordinates  `json:"position,omitempty"`
	ActionDescription string        `json:"actionDescription"`
	StatusChangedAt   time.Time     `json:"statusChangedAt"`
}

func percentage(current, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return math.Min(100, 100*current/max)
}

func clampCargo(value, max float64) float64 {
	if value < 0 || math.IsNaN(value) {
		return 0
	}
	if max > 0 && value > max {
		return max
	}
	return value
}
