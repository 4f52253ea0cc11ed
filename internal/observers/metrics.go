// Package observers reacts to applied vehicle status changes.
package observers

import (
	"fleet-map-service/internal/platform/metrics"
	"fleet-map-service/internal/services"
)

// Metrics counts status changes and keeps the per-status vehicle gauge.
func Metrics(m *metrics.Metrics) func(services.StatusChange) error {
	return func(c services.StatusChange) error {
		m.StatusChanged(int64(c.VehicleID), c.OldStatus.String(), c.NewStatus.String())
		return nil
	}
}
