package backend

import (
	"context"
	"fleet-map-service/internal/platform/obs"
	"fmt"
	"net/http"
)

// HTTPSimulationControl forwards simulation commands to the backend.
type HTTPSimulationControl struct {
	client *Client
}

func NewHTTPSimulationControl(client *Client) *HTTPSimulationControl {
	return &HTTPSimulationControl{client: client}
}

func (s *HTTPSimulationControl) Start(ctx context.Context) error { return s.send(ctx, "start") }
func (s *HTTPSimulationControl) Stop(ctx context.Context) error  { return s.send(ctx, "stop") }
func (s *HTTPSimulationControl) Reset(ctx context.Context) error { return s.send(ctx, "reset") }

func (s *HTTPSimulationControl) send(ctx context.Context, action string) (err error) {
	defer obs.Time(ctx, s.client.log, "backend.simulation."+action)(&err)

	if err := s.client.call(ctx, http.MethodPost, "/api/simulation/"+action, nil, nil); err != nil {
		return fmt.Errorf("simulation %s: %w", action, err)
	}
	return nil
}
