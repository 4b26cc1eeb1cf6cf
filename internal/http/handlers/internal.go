package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"newscast/internal/domain"
)

// ProcessNext runs one pending job of the kind in the URL.
func (a *App) ProcessNext(w http.ResponseWriter, r *http.Request) {
	kind := domain.JobKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported kind")
		return
	}
	job, err := a.Jobs.ProcessNext(r.Context(), kind)
	if errors.Is(err, domain.ErrNoPendingJob) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newJobView(job))
}

// Reconcile resets stale in_progress jobs. ?timeout= overrides the
// configured staleness window.
func (a *App) Reconcile(w http.ResponseWriter, r *http.Request) {
	timeout := a.StaleTimeout
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "timeout must be a duration such as 15m")
			return
		}
		timeout = d
	}
	n, err := a.Jobs.ReconcileStale(r.Context(), timeout)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"reset": n, "timeout": timeout.String()})
}
