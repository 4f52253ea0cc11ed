package domain

import "strings"

// VehicleStatus is the lifecycle state reported by the backend for a vehicle.
type VehicleStatus string

const (
	StatusIdle             VehicleStatus = "IDLE"
	StatusOrderDriving     VehicleStatus = "ORDER_DRIVING"
	StatusLoading          VehicleStatus = "LOADING"
	StatusTransportDriving VehicleStatus = "TRANSPORT_DRIVING"
	StatusUnloading        VehicleStatus = "UNLOADING"
	StatusWaiting          VehicleStatus = "WAITING"
	StatusBreakdown        VehicleStatus = "BREAKDOWN"
)

var allStatuses = []VehicleStatus{
	StatusIdle,
	StatusOrderDriving,
	StatusLoading,
	StatusTransportDriving,
	StatusUnloading,
	StatusWaiting,
	StatusBreakdown,
}

// VehicleStatuses returns every known status in declaration order.
func VehicleStatuses() []VehicleStatus {
	out := make([]VehicleStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseVehicleStatus normalizes s and reports whether it names a known status.
func ParseVehicleStatus(s string) (VehicleStatus, bool) {
	norm := VehicleStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range allStatuses {
		if st == norm {
			return st, true
		}
	}
	return "", false
}

func (s VehicleStatus) String() string { return string(s) }
