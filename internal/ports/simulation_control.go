package ports

import "context"

// Port: command sink for the backend's simulation loop.
type SimulationControl interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Reset(ctx context.Context) error
}
