package handlers

import (
	"net/http"

	"newscast/internal/middleware"
	"newscast/internal/notify"
)

// Events streams job notifications for the caller's organization, optionally
// narrowed to one parent.
func (a *App) Events(w http.ResponseWriter, r *http.Request) {
	notify.ServeSSE(w, r, a.Registry, notify.Subscription{
		ParentID: r.URL.Query().Get("parent_id"),
		OrgID:    middleware.OrgIDFromContext(r.Context()),
	}, a.Logger)
}
