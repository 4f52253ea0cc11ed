package mapsurface

import (
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/ports"
	"fmt"
	"sort"
	"sync"
)

// RecordedMarker is the state of one marker drawn on a RecordingSurface.
type RecordedMarker struct {
	Handle   ports.MarkerHandle
	Seq      int
	Position domain.Coordinates
	Icon     domain.Icon
	Title    string
}

// RecordingSurface is an in-memory MapSurface. It backs headless runs and tests.
type RecordingSurface struct {
	mu      sync.Mutex
	seq     int
	live    map[ports.MarkerHandle]*RecordedMarker
	removed map[ports.MarkerHandle]int

	// FailCreate, when set, is consulted before drawing a marker.
	FailCreate func(title string) error
}

func NewRecordingSurface() *RecordingSurface {
	return &RecordingSurface{
		live:    make(map[ports.MarkerHandle]*RecordedMarker),
		removed: make(map[ports.MarkerHandle]int),
	}
}

func (s *RecordingSurface) CreateMarker(position domain.Coordinates, icon domain.Icon, title string) (ports.MarkerHandle, error) {
	if s.FailCreate != nil {
		if err := s.FailCreate(title); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	h := ports.MarkerHandle(fmt.Sprintf("m-%d", s.seq))
	s.live[h] = &RecordedMarker{Handle: h, Seq: s.seq, Position: position, Icon: icon, Title: title}
	return h, nil
}

func (s *RecordingSurface) RemoveMarker(h ports.MarkerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removed[h]++
	delete(s.live, h)
}

func (s *RecordingSurface) SetMarkerIcon(h ports.MarkerHandle, icon domain.Icon) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.live[h]; ok {
		m.Icon = icon
	}
}

func (s *RecordingSurface) SetMarkerTitle(h ports.MarkerHandle, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.live[h]; ok {
		m.Title = title
	}
}

// Live returns the number of markers currently drawn.
func (s *RecordingSurface) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// RemoveCount returns how many times h was released.
func (s *RecordingSurface) RemoveCount(h ports.MarkerHandle) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removed[h]
}

func (s *RecordingSurface) Marker(h ports.MarkerHandle) (RecordedMarker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.live[h]
	if !ok {
		return RecordedMarker{}, false
	}
	return *m, true
}

// Markers returns the live markers ordered by handle creation.
func (s *RecordingSurface) Markers() []RecordedMarker {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RecordedMarker, 0, len(s.live))
	for _, m := range s.live {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}
