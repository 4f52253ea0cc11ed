package mapsurface

import (
	"encoding/json"
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/ports"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Message types pushed to map clients.
const (
	MsgSnapshot      = "snapshot"
	MsgMarkerCreated = "marker.created"
	MsgMarkerUpdated = "marker.updated"
	MsgMarkerRemoved = "marker.removed"
)

// WireMarker is a marker as sent to map clients.
type WireMarker struct {
	ID       ports.MarkerHandle `json:"id"`
	Position domain.Coordinates `json:"position"`
	Icon     domain.Icon        `json:"icon"`
	Title    string             `json:"title"`
}

// Message is the envelope of every websocket frame.
type Message struct {
	Type    string          `json:"type"`
	Marker  *WireMarker     `json:"marker,omitempty"`
	ID      string          `json:"id,omitempty"`
	Markers []WireMarker    `json:"markers,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// WSSurface is a MapSurface drawn by browsers connected over websocket.
//
// It keeps the live markers so a client connecting late receives a snapshot
// first. Clients must apply create and update messages idempotently by id
// and replace their state on every snapshot, which can also arrive later
// when a client falls behind.
type WSSurface struct {
	hub *Hub
	log *zap.Logger

	mu      sync.Mutex
	markers map[ports.MarkerHandle]*WireMarker
	order   []ports.MarkerHandle
}

func NewWSSurface(hub *Hub, log *zap.Logger) *WSSurface {
	if log == nil {
		log = zap.NewNop()
	}
	s := &WSSurface{
		hub:     hub,
		log:     log.Named("ws_surface"),
		markers: make(map[ports.MarkerHandle]*WireMarker),
	}
	hub.welcome = s.snapshotMessage
	return s
}

func (s *WSSurface) CreateMarker(position domain.Coordinates, icon domain.Icon, title string) (ports.MarkerHandle, error) {
	m := &WireMarker{
		ID:       ports.MarkerHandle(uuid.NewString()),
		Position: position,
		Icon:     icon,
		Title:    title,
	}

	s.mu.Lock()
	s.markers[m.ID] = m
	s.order = append(s.order, m.ID)
	cp := *m
	s.mu.Unlock()

	s.send(Message{Type: MsgMarkerCreated, Marker: &cp})
	return m.ID, nil
}

func (s *WSSurface) RemoveMarker(h ports.MarkerHandle) {
	s.mu.Lock()
	_, ok := s.markers[h]
	if ok {
		delete(s.markers, h)
		s.compactLocked()
	}
	s.mu.Unlock()

	if ok {
		s.send(Message{Type: MsgMarkerRemoved, ID: string(h)})
	}
}

func (s *WSSurface) SetMarkerIcon(h ports.MarkerHandle, icon domain.Icon) {
	s.update(h, func(m *WireMarker) { m.Icon = icon })
}

func (s *WSSurface) SetMarkerTitle(h ports.MarkerHandle, title string) {
	s.update(h, func(m *WireMarker) { m.Title = title })
}

func (s *WSSurface) update(h ports.MarkerHandle, fn func(*WireMarker)) {
	s.mu.Lock()
	m, ok := s.markers[h]
	var cp WireMarker
	if ok {
		fn(m)
		cp = *m
	}
	s.mu.Unlock()

	if ok {
		s.send(Message{Type: MsgMarkerUpdated, Marker: &cp})
	}
}

// Publish pushes an application message (e.g. a vehicle panel update) to
// every client.
func (s *WSSurface) Publish(msgType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.send(Message{Type: msgType, Data: data})
	return nil
}

// Len returns the number of live markers.
func (s *WSSurface) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markers)
}

func (s *WSSurface) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r)
}

func (s *WSSurface) send(m Message) {
	b, err := json.Marshal(m)
	if err != nil {
		s.log.Warn("encode ws message failed", zap.String("type", m.Type), zap.Error(err))
		return
	}
	s.hub.Broadcast(b)
}

func (s *WSSurface) snapshotMessage() []byte {
	s.mu.Lock()
	markers := make([]WireMarker, 0, len(s.order))
	for _, h := range s.order {
		markers = append(markers, *s.markers[h])
	}
	s.mu.Unlock()

	b, _ := json.Marshal(Message{Type: MsgSnapshot, Markers: markers})
	return b
}

func (s *WSSurface) compactLocked() {
	kept := s.order[:0]
	for _, h := range s.order {
		if _, ok := s.markers[h]; ok {
			kept = append(kept, h)
		}
	}
	s.order = kept
}
