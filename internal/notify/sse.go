package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrSinkClosed is returned by Send once the sink has been closed.
var ErrSinkClosed = errors.New("notify: sink closed")

// SSESink writes events to one text/event-stream response. Writes are
// serialized; once closed every Send fails. Job events reach the sink only
// when their org matches exactly, so a stream without an org sees only jobs
// created without one.
type SSESink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	orgID   string
	closed  bool
	done    chan struct{}
}

// NewSSESink wraps w. It fails when w cannot flush.
func NewSSESink(w http.ResponseWriter, orgID string) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("notify: streaming unsupported by response writer")
	}
	return &SSESink{w: w, flusher: flusher, orgID: orgID, done: make(chan struct{})}, nil
}

func (s *SSESink) Send(evt Event) error {
	if evt.tenantScoped() && evt.OrgID != s.orgID {
		return ErrFiltered
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", evt.Type, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *SSESink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

func (s *SSESink) Done() <-chan struct{} { return s.done }

// ConnectedData is the payload of the first event on every stream.
type ConnectedData struct {
	ConnectionID string `json:"connection_id"`
}

// Subscription scopes one stream.
type Subscription struct {
	ParentID string
	OrgID    string
}

// ServeSSE registers the request as a subscription and blocks until the
// client disconnects or the registry drops the sink.
func ServeSSE(w http.ResponseWriter, r *http.Request, registry *Registry, sub Subscription, logger zerolog.Logger) {
	parentFilter := sub.ParentID
	sink, err := NewSSESink(w, sub.OrgID)
	if err != nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// The server write timeout would otherwise cut long-lived streams.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	id := GenerateConnectionID()
	if err := sink.Send(NewEvent(EventConnected, parentFilter, ConnectedData{ConnectionID: id})); err != nil {
		sink.Close()
		return
	}
	if err := registry.Register(id, sink, parentFilter); err != nil {
		sink.Close()
		return
	}
	defer registry.Unregister(id)

	logger.Info().Str("connection_id", id).Str("parent_id", parentFilter).Msg("events: client connected")
	select {
	case <-r.Context().Done():
	case <-sink.Done():
	}
	logger.Info().Str("connection_id", id).Msg("events: client disconnected")
}
