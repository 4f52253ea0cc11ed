package dto

import (
	"encoding/json"
	"fleet-map-service/internal/domain"
	"fmt"
)

type CreateVehicleRequest struct {
	ID                int64              `json:"id" binding:"required"`
	LicensePlate      string             `json:"licensePlate"`
	Status            string             `json:"status"`
	CurrentLoad       float64            `json:"currentLoad"`
	CurrentVolume     float64            `json:"currentVolume"`
	MaxLoadCapacity   float64            `json:"maxLoadCapacity"`
	MaxVolumeCapacity float64            `json:"maxVolumeCapacity"`
	Position          []float64          `json:"position"`
	Assignment        *domain.Assignment `json:"assignment"`
}

// ToDomain validates the request. An empty status means idle.
func (r CreateVehicleRequest) ToDomain() (domain.Vehicle, error) {
	status := domain.StatusIdle
	if r.Status != "" {
		s, ok := domain.ParseVehicleStatus(r.Status)
		if !ok {
			return domain.Vehicle{}, fmt.Errorf("unknown status %q", r.Status)
		}
		status = s
	}

	v := domain.Vehicle{
		ID:                domain.VehicleID(r.ID),
		LicensePlate:      r.LicensePlate,
		Status:            status,
		CurrentLoad:       r.CurrentLoad,
		CurrentVolume:     r.CurrentVolume,
		MaxLoadCapacity:   r.MaxLoadCapacity,
		MaxVolumeCapacity: r.MaxVolumeCapacity,
	}
	if r.Position != nil {
		if len(r.Position) != 2 {
			return domain.Vehicle{}, fmt.Errorf("position must be [lng, lat]")
		}
		p := domain.CoordinatesFromPair([2]float64{r.Position[0], r.Position[1]})
		v.Position = &p
	}
	return v, nil
}

// StatusRequest is the body of POST /vehicles/:id/status. The vehicle id
// comes from the path.
type StatusRequest struct {
	Status     string             `json:"status" binding:"required"`
	Position   []float64          `json:"position"`
	Assignment *domain.Assignment `json:"assignment"`
}

// VehicleIDJSON renders a path id as the raw JSON the event decoder expects.
func VehicleIDJSON(id string) json.RawMessage {
	b, _ := json.Marshal(id)
	return b
}
