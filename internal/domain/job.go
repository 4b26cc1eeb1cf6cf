package domain

import (
	"encoding/json"
	"time"
)

// JobKind enumerates supported generation job categories.
type JobKind string

const (
	JobKindAudio JobKind = "audio"
	JobKindVideo JobKind = "video"
)

// JobKinds lists every kind a worker polls for, in polling order.
var JobKinds = []JobKind{JobKindAudio, JobKindVideo}

// Valid reports whether k is a known kind.
func (k JobKind) Valid() bool {
	switch k {
	case JobKindAudio, JobKindVideo:
		return true
	}
	return false
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusInProgress, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no transition can leave s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether the lifecycle allows moving from one status to
// another. in_progress -> pending is only taken by the staleness reconciler.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusInProgress
	case JobStatusInProgress:
		return to == JobStatusCompleted || to == JobStatusFailed || to == JobStatusPending
	}
	return false
}

// Job encapsulates the lifecycle of one audio or video generation.
type Job struct {
	ID          string
	Kind        JobKind
	OrgID       string
	ParentID    string
	Status      JobStatus
	Input       json.RawMessage
	Result      json.RawMessage
	Error       string
	ExternalRef string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// ListFilter narrows job listings. OrgID always matches exactly, so "" selects
// jobs created without an organization; AllOrgs lifts the tenant filter for
// operational callers. Other zero values match everything.
type ListFilter struct {
	OrgID    string
	AllOrgs  bool
	ParentID string
	Kind     JobKind
	Status   JobStatus
	Limit    int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Normalize clamps the limit into the supported range.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f
}
