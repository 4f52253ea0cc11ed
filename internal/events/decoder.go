// Package events decodes backend vehicle status events and feeds them to
// the engine from the configured transport.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/services"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrUnknownStatus     = errors.New("unknown vehicle status")
	ErrMissingVehicleID  = errors.New("missing vehicle id")
	ErrMalformedPosition = errors.New("malformed position")
)

// StatusEvent is the wire form of one status change:
//
//	{"vehicleId": 7, "status": "TRANSPORT_DRIVING", "position": [lng, lat],
//	 "assignment": {"startPOIName": "...", "endPOIName": "...",
//	                "currentLoad": 50, "currentVolume": 3}}
type StatusEvent struct {
	VehicleID  json.RawMessage    `json:"vehicleId"`
	Status     string             `json:"status"`
	Position   []float64          `json:"position,omitempty"`
	Assignment *domain.Assignment `json:"assignment,omitempty"`
}

// Decoded is a validated status event.
type Decoded struct {
	VehicleID domain.VehicleID
	Status    domain.VehicleStatus
	Data      services.StatusData
}

// DecodeStatusEvent parses and validates one JSON status event.
// The vehicle id may be a JSON number or a numeric string.
func DecodeStatusEvent(b []byte) (Decoded, error) {
	var ev StatusEvent
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&ev); err != nil {
		return Decoded{}, fmt.Errorf("decode status event: %w", err)
	}
	return ev.Validate()
}

func (ev StatusEvent) Validate() (Decoded, error) {
	id, err := parseVehicleID(ev.VehicleID)
	if err != nil {
		return Decoded{}, err
	}

	status, ok := domain.ParseVehicleStatus(ev.Status)
	if !ok {
		return Decoded{}, fmt.Errorf("%w: %q", ErrUnknownStatus, ev.Status)
	}

	out := Decoded{VehicleID: id, Status: status}
	if ev.Position != nil {
		if len(ev.Position) != 2 {
			return Decoded{}, fmt.Errorf("%w: want [lng, lat], got %d values", ErrMalformedPosition, len(ev.Position))
		}
		p := domain.CoordinatesFromPair([2]float64{ev.Position[0], ev.Position[1]})
		out.Data.Position = &p
	}
	if ev.Assignment != nil {
		a := *ev.Assignment
		out.Data.Assignment = &a
	}
	return out, nil
}

func parseVehicleID(raw json.RawMessage) (domain.VehicleID, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, ErrMissingVehicleID
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMissingVehicleID, s)
	}
	return domain.VehicleID(n), nil
}

// StatusApplier is the part of the engine a transport needs.
type StatusApplier interface {
	ApplyStatusChange(ctx context.Context, id domain.VehicleID, status domain.VehicleStatus, data services.StatusData) (bool, error)
}

// Permanent reports whether err will fail again for the same payload.
func Permanent(err error) bool {
	var syntax *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.Is(err, ErrUnknownStatus) ||
		errors.Is(err, ErrMissingVehicleID) ||
		errors.Is(err, ErrMalformedPosition) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.As(err, &syntax) ||
		errors.As(err, &typeErr)
}

// Dispatch decodes payload and applies it. Events for untracked vehicles are
// logged and dropped.
func Dispatch(ctx context.Context, applier StatusApplier, log *zap.Logger, payload []byte) error {
	ev, err := DecodeStatusEvent(payload)
	if err != nil {
		return err
	}

	applied, err := applier.ApplyStatusChange(ctx, ev.VehicleID, ev.Status, ev.Data)
	if err != nil {
		return fmt.Errorf("apply status event: %w", err)
	}
	if !applied {
		log.Debug("status event ignored, vehicle not tracked",
			zap.Int64("vehicle_id", int64(ev.VehicleID)),
			zap.String("status", ev.Status.String()),
		)
	}
	return nil
}
