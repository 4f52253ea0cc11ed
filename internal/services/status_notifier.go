package services

import (
	"fleet-map-service/internal/domain"
	"fleet-map-service/internal/platform/logger"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// StatusChange is delivered to subscribers after a status event was applied.
type StatusChange struct {
	VehicleID domain.VehicleID       `json:"vehicleId"`
	OldStatus domain.VehicleStatus   `json:"oldStatus"`
	NewStatus domain.VehicleStatus   `json:"newStatus"`
	Vehicle   domain.VehicleSnapshot `json:"vehicle"`
	At        time.Time              `json:"at"`
}

type subscriber struct {
	name string
	fn   func(StatusChange) error
}

// StatusNotifier fans status changes out to subscribers in subscription
// order. A failing subscriber never affects the others.
//
// Not safe for concurrent use; the engine goroutine owns it.
type StatusNotifier struct {
	subs []subscriber
	log  *zap.Logger
}

func NewStatusNotifier(log *zap.Logger) *StatusNotifier {
	return &StatusNotifier{log: logger.OrNop(log).Named("notifier")}
}

func (n *StatusNotifier) Subscribe(name string, fn func(StatusChange) error) {
	if fn == nil {
		return
	}
	n.subs = append(n.subs, subscriber{name: name, fn: fn})
}

func (n *StatusNotifier) Len() int { return len(n.subs) }

// Publish calls every subscriber synchronously. It returns how many failed.
func (n *StatusNotifier) Publish(change StatusChange) int {
	failed := 0
	for _, s := range n.subs {
		if err := n.deliver(s, change); err != nil {
			failed++
			n.log.Warn("status subscriber failed",
				zap.String("subscriber", s.name),
				zap.Int64("vehicle_id", int64(change.VehicleID)),
				zap.String("status", change.NewStatus.String()),
				zap.Error(err),
			)
		}
	}
	return failed
}

func (n *StatusNotifier) deliver(s subscriber, change StatusChange) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.fn(change)
}
