package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"newscast/internal/domain"
	"newscast/internal/jobs"
	"newscast/internal/middleware"
)

type createJobRequest struct {
	Kind     string          `json:"kind"`
	ParentID string          `json:"parent_id"`
	Input    json.RawMessage `json:"input"`
}

type jobView struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	ParentID    string          `json:"parent_id,omitempty"`
	Status      string          `json:"status"`
	Input       json.RawMessage `json:"input,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

func newJobView(job *domain.Job) jobView {
	return jobView{
		ID:          job.ID,
		Kind:        string(job.Kind),
		ParentID:    job.ParentID,
		Status:      string(job.Status),
		Input:       job.Input,
		Result:      job.Result,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
	}
}

func (a *App) JobsCreate(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if !a.decode(w, r, &req) {
		return
	}
	job, err := a.Jobs.Create(r.Context(), jobs.CreateParams{
		Kind:     domain.JobKind(req.Kind),
		OrgID:    middleware.OrgIDFromContext(r.Context()),
		ParentID: req.ParentID,
		Input:    req.Input,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, newJobView(job))
}

func (a *App) JobsGet(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id required")
		return
	}
	job, err := a.Jobs.Get(r.Context(), middleware.OrgIDFromContext(r.Context()), jobID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newJobView(job))
}

func (a *App) JobsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ListFilter{
		OrgID:    middleware.OrgIDFromContext(r.Context()),
		ParentID: q.Get("parent_id"),
		Kind:     domain.JobKind(q.Get("kind")),
		Status:   domain.JobStatus(q.Get("status")),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}
	list, err := a.Jobs.List(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]jobView, 0, len(list))
	for i := range list {
		items = append(items, newJobView(&list[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
