package system

import "context"

// Service represents a lifecycle-managed component. Background runners
// implement it so the manager can start and stop them deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NoopService satisfies Service without doing anything. It stands in for
// optional components that are disabled by configuration.
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string                { return n.ServiceName }
func (n NoopService) Start(context.Context) error { return nil }
func (n NoopService) Stop(context.Context) error  { return nil }
