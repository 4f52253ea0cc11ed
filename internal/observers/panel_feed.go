package observers

import (
	"fleet-map-service/internal/services"
)

// MsgVehicleStatus is the websocket message type of vehicle panel updates.
const MsgVehicleStatus = "vehicle.status"

// Publisher pushes a typed message to connected map clients.
type Publisher interface {
	Publish(msgType string, payload any) error
}

// PanelFeed forwards every status change, with its display text, to the
// dashboard's vehicle panel.
func PanelFeed(p Publisher) func(services.StatusChange) error {
	return func(c services.StatusChange) error {
		return p.Publish(MsgVehicleStatus, struct {
			services.StatusChange
			StatusText string `json:"statusText"`
		}{c, services.StatusText(c.NewStatus)})
	}
}
