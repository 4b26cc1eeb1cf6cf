package handlers

import (
	"context"
	"net/http"
	"time"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	if a.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Ready(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("http: readiness check failed")
			a.json(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	a.json(w, http.StatusOK, map[string]any{"status": "ok", "subscribers": a.subscribers()})
}

func (a *App) subscribers() int {
	if a.Registry == nil {
		return 0
	}
	return a.Registry.Len()
}
