package notify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultKeepAlive is the ping interval used when none is configured.
const DefaultKeepAlive = 30 * time.Second

var (
	// ErrRegistryClosed is returned by Register after Close.
	ErrRegistryClosed = errors.New("notify: registry closed")
	// ErrFiltered is returned by a Sink that declines an event. The
	// subscription stays registered and the event is not counted.
	ErrFiltered = errors.New("notify: event filtered by sink")
)

// Sink is the only way to push data to one connected client.
type Sink interface {
	Send(evt Event) error
	Close()
	Done() <-chan struct{}
}

type subscription struct {
	id           string
	sink         Sink
	parentFilter string
}

func (s *subscription) matches(parentFilter string) bool {
	return parentFilter == "" || s.parentFilter == "" || s.parentFilter == parentFilter
}

// Registry tracks live subscriptions for the whole process. Build one in main
// and Close it on shutdown; entries are lost on restart.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string]*subscription
	closed bool
	logger zerolog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		subs:   make(map[string]*subscription),
		logger: logger,
	}
}

// Register records a subscription. An empty parentFilter receives every
// event. Registering an id twice replaces the previous sink and closes it.
func (r *Registry) Register(id string, sink Sink, parentFilter string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	prev := r.subs[id]
	r.subs[id] = &subscription{id: id, sink: sink, parentFilter: parentFilter}
	r.mu.Unlock()

	if prev != nil && prev.sink != sink {
		prev.sink.Close()
	}
	r.logger.Debug().Str("connection_id", id).Str("parent_id", parentFilter).Msg("notify: subscription registered")
	return nil
}

// Unregister removes a subscription and closes its sink. Unknown ids are
// ignored, so repeated calls are safe.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	sub, ok := r.subs[id]
	if ok {
		delete(r.subs, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	sub.sink.Close()
	r.logger.Debug().Str("connection_id", id).Msg("notify: subscription removed")
}

// Notify delivers evt to every subscription matching parentFilter and returns
// how many sinks accepted it. A sink that fails is dropped; the error never
// reaches the caller.
func (r *Registry) Notify(evt Event, parentFilter string) int {
	r.mu.RLock()
	targets := make([]*subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		if sub.matches(parentFilter) {
			targets = append(targets, sub)
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, sub := range targets {
		err := sub.sink.Send(evt)
		if errors.Is(err, ErrFiltered) {
			continue
		}
		if err != nil {
			r.logger.Debug().Err(err).Str("connection_id", sub.id).Str("event", string(evt.Type)).Msg("notify: delivery failed")
			r.drop(sub)
			continue
		}
		delivered++
	}
	return delivered
}

// drop unregisters sub unless the id has been re-registered meanwhile.
func (r *Registry) drop(sub *subscription) {
	r.mu.Lock()
	current, ok := r.subs[sub.id]
	if ok && current == sub {
		delete(r.subs, sub.id)
	}
	r.mu.Unlock()
	sub.sink.Close()
}

// KeepAlive pings every subscription each interval until ctx ends. Failed
// pings drop the subscription through Notify.
func (r *Registry) KeepAlive(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultKeepAlive
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Notify(NewEvent(EventPing, "", nil), "")
		}
	}
}

// Len reports the number of live subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Close drops every subscription and rejects new ones.
func (r *Registry) Close() {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[string]*subscription)
	r.closed = true
	r.mu.Unlock()

	for _, sub := range subs {
		sub.sink.Close()
	}
	if len(subs) > 0 {
		r.logger.Info().Int("subscriptions", len(subs)).Msg("notify: registry closed")
	}
}

// GenerateConnectionID returns "<unix-millis>-<8 hex>", unique among live
// connections with overwhelming probability.
func GenerateConnectionID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d-%08x", time.Now().UnixMilli(), time.Now().UnixNano()&0xffffffff)
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(b[:]))
}
