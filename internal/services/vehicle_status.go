package services

import (
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/markers"
	"fleet-map-service/internal/platform/logger"
	"fleet-map-service/internal/ports"
	"sort"
	"time"

	"go.uber.org/zap"
)

type loadRule int

const (
	loadKeep  loadRule = iota // cargo untouched
	loadEmpty                 // cargo zeroed
	loadLaden                 // cargo taken from the assignment
)

type statusRule struct {
	load     loadRule
	text     string
	describe func(a *domain.Assignment) string
}

var statusRules = map[domain.VehicleStatus]statusRule{
	domain.StatusIdle: {
		load:     loadEmpty,
		text:     "Idle",
		describe: fixed("Idle"),
	},
	domain.StatusOrderDriving: {
		load: loadEmpty,
		text: "Driving to pickup",
		describe: func(a *domain.Assignment) string {
			if a != nil && a.StartPOIName != "" {
				return "Driving to pickup at " + a.StartPOIName
			}
			return "Driving to pickup"
		},
	},
	domain.StatusLoading: {
		load:     loadKeep,
		text:     "Loading",
		describe: fixed("Loading cargo"),
	},
	domain.StatusTransportDriving: {
		load: loadLaden,
		text: "In transit",
		describe: func(a *domain.Assignment) string {
			if a != nil && a.EndPOIName != "" {
				return "Transporting to " + a.EndPOIName
			}
			return "Transporting cargo"
		},
	},
	domain.StatusUnloading: {
		load:     loadKeep,
		text:     "Unloading",
		describe: fixed("Unloading cargo"),
	},
	domain.StatusWaiting: {
		load:     loadEmpty,
		text:     "Waiting",
		describe: fixed("Waiting for assignment"),
	},
	domain.StatusBreakdown: {
		load:     loadKeep,
		text:     "Breakdown",
		describe: fixed("Vehicle breakdown"),
	},
}

func fixed(s string) func(*domain.Assignment) string {
	return func(*domain.Assignment) string { return s }
}

func ruleFor(status domain.VehicleStatus) statusRule {
	if r, ok := statusRules[status]; ok {
		return r
	}
	return statusRule{load: loadKeep, text: status.String(), describe: fixed(status.String())}
}

// StatusText returns the display text for status.
func StatusText(status domain.VehicleStatus) string {
	return ruleFor(status).text
}

// StatusData carries the optional parts of a status event.
type StatusData struct {
	Position   *domain.Coordinates
	Assignment *domain.Assignment
}

// VehicleInfo is a vehicle snapshot plus the data shown in its info panel.
type VehicleInfo struct {
	domain.VehicleSnapshot
	StatusText string             `json:"statusText"`
	Assignment *domain.Assignment `json:"assignment,omitempty"`
}

type trackedVehicle struct {
	v *domain.Vehicle
	// assignment held until the vehicle has a marker to attach it to
	pending *domain.Assignment
}

// VehicleTracker applies backend status events to tracked vehicles and keeps
// their markers in sync.
//
// Transitions are not validated: any status may follow any other.
// Not safe for concurrent use; the engine goroutine owns it.
type VehicleTracker struct {
	vehicles map[domain.VehicleID]*trackedVehicle
	reg      *markers.Registry
	surface  ports.MapSurface
	notifier *StatusNotifier
	log      *zap.Logger
	now      func() time.Time
}

func NewVehicleTracker(reg *markers.Registry, surface ports.MapSurface, notifier *StatusNotifier, log *zap.Logger) *VehicleTracker {
	return &VehicleTracker{
		vehicles: make(map[domain.VehicleID]*trackedVehicle),
		reg:      reg,
		surface:  surface,
		notifier: notifier,
		log:      logger.OrNop(log).Named("vehicles"),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for StatusChangedAt.
func (t *VehicleTracker) SetClock(now func() time.Time) {
	if now != nil {
		t.now = now
	}
}

// Track adds or replaces a vehicle. A marker is drawn when the vehicle has a
// position; a replaced vehicle's old marker is released.
func (t *VehicleTracker) Track(v domain.Vehicle, assignment *domain.Assignment) {
	key := markers.VehicleKey(v.ID.String())

	if v.Status == "" {
		v.Status = domain.StatusIdle
	}
	if v.Position != nil {
		p := *v.Position
		v.Position = &p
	}
	if v.StatusChangedAt.IsZero() {
		v.StatusChangedAt = t.now()
	}
	if v.ActionDescription == "" {
		v.ActionDescription = ruleFor(v.Status).describe(assignment)
	}

	tv := &trackedVehicle{v: &v}
	if assignment != nil {
		a := *assignment
		tv.pending = &a
	}

	if _, existed := t.vehicles[v.ID]; existed && v.Position == nil {
		t.reg.Remove(key)
	}
	t.vehicles[v.ID] = tv

	if v.Position != nil {
		t.drawMarker(tv)
	}
}

// Untrack drops a vehicle and releases its marker.
func (t *VehicleTracker) Untrack(id domain.VehicleID) bool {
	if _, ok := t.vehicles[id]; !ok {
		return false
	}
	delete(t.vehicles, id)
	t.reg.Remove(markers.VehicleKey(id.String()))
	return true
}

// Clear forgets every vehicle. Markers are left to the registry owner.
func (t *VehicleTracker) Clear() {
	clear(t.vehicles)
}

// ApplyStatusChange moves vehicle id to status. It reports false, without
// notifying anyone, when the vehicle is not tracked.
func (t *VehicleTracker) ApplyStatusChange(id domain.VehicleID, status domain.VehicleStatus, data StatusData) bool {
	tv, ok := t.vehicles[id]
	if !ok {
		t.log.Debug("status event for untracked vehicle",
			zap.Int64("vehicle_id", int64(id)),
			zap.String("status", status.String()),
		)
		return false
	}

	v := tv.v
	old := v.Status
	v.PreviousStatus = old
	v.Status = status
	v.StatusChangedAt = t.now()

	moved := false
	if data.Position != nil {
		p := *data.Position
		moved = v.Position == nil || *v.Position != p
		v.Position = &p
	}

	if data.Assignment != nil {
		a := *data.Assignment
		t.storeAssignment(tv, &a)
	}
	assignment := t.assignment(tv)

	rule := ruleFor(status)
	switch rule.load {
	case loadEmpty:
		v.Unload()
	case loadLaden:
		if assignment != nil {
			v.LoadFrom(*assignment)
		}
	}
	v.ActionDescription = rule.describe(assignment)

	t.syncMarker(tv, moved)

	if t.notifier != nil {
		t.notifier.Publish(StatusChange{
			VehicleID: id,
			OldStatus: old,
			NewStatus: status,
			Vehicle:   v.Snapshot(),
			At:        v.StatusChangedAt,
		})
	}
	return true
}

func (t *VehicleTracker) Vehicle(id domain.VehicleID) (VehicleInfo, bool) {
	tv, ok := t.vehicles[id]
	if !ok {
		return VehicleInfo{}, false
	}
	info := VehicleInfo{
		VehicleSnapshot: tv.v.Snapshot(),
		StatusText:      StatusText(tv.v.Status),
	}
	if a := t.assignment(tv); a != nil {
		cp := *a
		info.Assignment = &cp
	}
	return info, true
}

// Vehicles returns snapshots of every tracked vehicle, sorted by id.
func (t *VehicleTracker) Vehicles() []domain.VehicleSnapshot {
	out := make([]domain.VehicleSnapshot, 0, len(t.vehicles))
	for _, tv := range t.vehicles {
		out = append(out, tv.v.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *VehicleTracker) Len() int { return len(t.vehicles) }

// syncMarker updates icon and title of the vehicle marker. A moved vehicle,
// or one that just got its first position, gets a fresh marker.
func (t *VehicleTracker) syncMarker(tv *trackedVehicle, moved bool) {
	key := markers.VehicleKey(tv.v.ID.String())

	h, ok := t.reg.Get(key)
	if !ok && tv.v.Position == nil {
		t.log.Warn("vehicle marker missing",
			zap.Int64("vehicle_id", int64(tv.v.ID)),
			zap.String("status", tv.v.Status.String()),
		)
		return
	}
	if !ok || moved {
		// a failed redraw leaves the old marker at its old position;
		// it still gets the new icon and title
		if t.drawMarker(tv) || !ok {
			return
		}
	}

	t.surface.SetMarkerIcon(h, VehicleIcon(tv.v.Status))
	t.surface.SetMarkerTitle(h, markerTitle(tv.v))
}

// drawMarker creates the vehicle's marker, replacing any previous one.
// It reports false when the surface refused the marker.
func (t *VehicleTracker) drawMarker(tv *trackedVehicle) bool {
	key := markers.VehicleKey(tv.v.ID.String())

	h, err := t.surface.CreateMarker(*tv.v.Position, VehicleIcon(tv.v.Status), markerTitle(tv.v))
	if err != nil {
		t.log.Warn("create vehicle marker failed",
			zap.Int64("vehicle_id", int64(tv.v.ID)),
			zap.Error(err),
		)
		return false
	}

	side := tv.pending
	if side == nil {
		if prev, ok := t.reg.Side(key); ok {
			side, _ = prev.(*domain.Assignment)
		}
	}
	t.reg.Register(key, h, side)
	tv.pending = nil
	return true
}

func (t *VehicleTracker) storeAssignment(tv *trackedVehicle, a *domain.Assignment) {
	key := markers.VehicleKey(tv.v.ID.String())
	if _, ok := t.reg.Get(key); ok {
		t.reg.SetSide(key, a)
		tv.pending = nil
		return
	}
	tv.pending = a
}

// assignment returns the last assignment seen for the vehicle, if any.
func (t *VehicleTracker) assignment(tv *trackedVehicle) *domain.Assignment {
	if tv.pending != nil {
		return tv.pending
	}
	side, ok := t.reg.Side(markers.VehicleKey(tv.v.ID.String()))
	if !ok {
		return nil
	}
	a, _ := side.(*domain.Assignment)
	return a
}

func markerTitle(v *domain.Vehicle) string {
	plate := v.LicensePlate
	if plate == "" {
		plate = "Vehicle " + v.ID.String()
	}
	return plate + " - " + StatusText(v.Status)
}
