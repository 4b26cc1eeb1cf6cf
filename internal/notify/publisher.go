package notify

import "context"

// Publisher hands an event to every subscriber that should see it, wherever
// that subscriber is connected.
type Publisher interface {
	Publish(ctx context.Context, evt Event, parentFilter string) error
}

// LocalPublisher delivers straight to this process's registry.
type LocalPublisher struct {
	Registry *Registry
}

// NewLocalPublisher returns a publisher bound to registry.
func NewLocalPublisher(registry *Registry) *LocalPublisher {
	return &LocalPublisher{Registry: registry}
}

func (p *LocalPublisher) Publish(_ context.Context, evt Event, parentFilter string) error {
	p.Registry.Notify(evt, parentFilter)
	return nil
}

var _ Publisher = (*LocalPublisher)(nil)
