package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"newscast/internal/domain"
	"newscast/internal/jobs"
	"newscast/internal/middleware"
	"newscast/internal/notify"
)

// maxBodyBytes caps request and webhook bodies.
const maxBodyBytes = 1 << 20

// App carries the dependencies shared by every handler.
type App struct {
	Jobs         *jobs.Service
	Registry     *notify.Registry
	Signer       *jobs.CallbackSigner
	Logger       zerolog.Logger
	StaleTimeout time.Duration
	// Ready reports backing store health for /v1/healthz. Nil means always ready.
	Ready func(ctx context.Context) error
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message}})
}

// fail maps domain errors onto HTTP statuses. Unexpected errors are logged
// and reported without detail.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusUnprocessableEntity, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrInvalidTransition):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	default:
		logger := middleware.LoggerFromContext(r.Context(), a.Logger)
		logger.Error().Err(err).
			Str("path", r.URL.Path).
			Msg("http: request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}
