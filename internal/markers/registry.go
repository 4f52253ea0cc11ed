// Package markers tracks which map marker represents which entity.
package markers

import (
	"fleet-map-service/internal/ports"
	"iter"
)

// Kind separates identity namespaces so a POI and a vehicle that share an id
// never collide.
type Kind string

const (
	KindPOI     Kind = "poi"
	KindVehicle Kind = "vehicle"
)

type Key struct {
	Kind Kind
	ID   string
}

func POIKey(id string) Key     { return Key{Kind: KindPOI, ID: id} }
func VehicleKey(id string) Key { return Key{Kind: KindVehicle, ID: id} }

func (k Key) String() string { return string(k.Kind) + ":" + k.ID }

type entry struct {
	marker ports.MarkerHandle
	side   any
}

// Registry owns the entity -> marker mapping and releases markers through the
// surface that drew them.
//
// It holds no locks: every call must come from the goroutine that renders.
type Registry struct {
	surface ports.MapSurface
	entries map[Key]*entry
	order   []Key
}

func NewRegistry(surface ports.MapSurface) *Registry {
	return &Registry{
		surface: surface,
		entries: make(map[Key]*entry),
	}
}

// Register binds key to marker, releasing any marker previously bound to it.
// side is optional data kept with the entry (e.g. the last assignment).
func (r *Registry) Register(key Key, marker ports.MarkerHandle, side any) {
	if old, ok := r.entries[key]; ok {
		if old.marker != marker {
			r.surface.RemoveMarker(old.marker)
		}
		old.marker = marker
		old.side = side
		return
	}

	r.entries[key] = &entry{marker: marker, side: side}
	r.order = append(r.order, key)
}

func (r *Registry) Get(key Key) (ports.MarkerHandle, bool) {
	e, ok := r.entries[key]
	if !ok {
		return "", false
	}
	return e.marker, true
}

func (r *Registry) Side(key Key) (any, bool) {
	e, ok := r.entries[key]
	if !ok || e.side == nil {
		return nil, false
	}
	return e.side, true
}

// SetSide replaces the side data of an existing entry. Absent keys are ignored.
func (r *Registry) SetSide(key Key, side any) {
	if e, ok := r.entries[key]; ok {
		e.side = side
	}
}

// Remove releases and forgets the marker for key. Absent keys are a no-op.
func (r *Registry) Remove(key Key) {
	e, ok := r.entries[key]
	if !ok {
		return
	}
	r.surface.RemoveMarker(e.marker)
	delete(r.entries, key)
	r.compact()
}

// Clear releases every marker.
func (r *Registry) Clear() {
	for _, k := range r.order {
		if e, ok := r.entries[k]; ok {
			r.surface.RemoveMarker(e.marker)
		}
	}
	r.entries = make(map[Key]*entry)
	r.order = nil
}

// ClearKind releases every marker in one namespace.
func (r *Registry) ClearKind(kind Kind) int {
	removed := 0
	for _, k := range r.order {
		if k.Kind != kind {
			continue
		}
		if e, ok := r.entries[k]; ok {
			r.surface.RemoveMarker(e.marker)
			delete(r.entries, k)
			removed++
		}
	}
	if removed > 0 {
		r.compact()
	}
	return removed
}

// All yields (key, marker) pairs in registration order.
// The registry must not be mutated while iterating.
func (r *Registry) All() iter.Seq2[Key, ports.MarkerHandle] {
	return func(yield func(Key, ports.MarkerHandle) bool) {
		for _, k := range r.order {
			e, ok := r.entries[k]
			if !ok {
				continue
			}
			if !yield(k, e.marker) {
				return
			}
		}
	}
}

func (r *Registry) Len() int { return len(r.entries) }

// CountKind returns the number of entries in one namespace.
func (r *Registry) CountKind(kind Kind) int {
	n := 0
	for k := range r.entries {
		if k.Kind == kind {
			n++
		}
	}
	return n
}

// compact drops keys from order that are no longer registered.
func (r *Registry) compact() {
	kept := r.order[:0]
	for _, k := range r.order {
		if _, ok := r.entries[k]; ok {
			kept = append(kept, k)
		}
	}
	clear(r.order[len(kept):])
	r.order = kept
}
