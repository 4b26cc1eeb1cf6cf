// Package notify fans job lifecycle events out to connected streaming clients.
package notify

import (
	"encoding/json"
	"time"

	"newscast/internal/domain"
)

// EventType identifies the kind of event pushed to subscribers.
type EventType string

const (
	EventConnected    EventType = "connected"
	EventJobCreated   EventType = "job_created"
	EventJobStarted   EventType = "job_started"
	EventJobCompleted EventType = "job_completed"
	EventJobFailed    EventType = "job_failed"
	EventPing         EventType = "ping"
)

// Event is the envelope delivered to each matching subscription. Events are
// never persisted.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	ParentID  string          `json:"parent_id,omitempty"`
	OrgID     string          `json:"org_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// JobEventData is the payload of job_* events.
type JobEventData struct {
	JobID    string           `json:"job_id"`
	Kind     domain.JobKind   `json:"kind"`
	Status   domain.JobStatus `json:"status"`
	ParentID string           `json:"parent_id,omitempty"`
	Result   json.RawMessage  `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// tenantScoped reports whether evt describes one organization's job. Stream
// control events reach every sink.
func (e Event) tenantScoped() bool {
	return e.Type != EventConnected && e.Type != EventPing
}

// NewEvent stamps an event with the current time and encodes data.
func NewEvent(eventType EventType, parentID string, data any) Event {
	evt := Event{Type: eventType, Timestamp: time.Now().UTC(), ParentID: parentID}
	if data != nil {
		evt.Data = mustMarshal(data)
	}
	return evt
}

// JobEvent builds a job_* event from the job's current state.
func JobEvent(eventType EventType, job *domain.Job) Event {
	evt := NewEvent(eventType, job.ParentID, JobEventData{
		JobID:    job.ID,
		Kind:     job.Kind,
		Status:   job.Status,
		ParentID: job.ParentID,
		Result:   job.Result,
		Error:    job.Error,
	})
	evt.OrgID = job.OrgID
	return evt
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("notify: marshal event data: " + err.Error())
	}
	return data
}
