package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"newscast/internal/http/handlers"
	"newscast/internal/jobs"
	"newscast/internal/middleware"
)

// Options configures the middleware around the handlers.
type Options struct {
	Auth            middleware.AuthOptions
	InternalToken   string
	CORSOrigins     []string
	RateLimitPerMin int
	// StaticDir is served below /static/ when set.
	StaticDir string
	Logger    zerolog.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(opts.Logger),
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
	)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		// Authenticated by the signed URL, not a bearer token.
		r.Post(callbackRoute(), app.FalCallback)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(opts.Auth))
			if opts.RateLimitPerMin > 0 {
				r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
			}
			r.Route("/jobs", func(r chi.Router) {
				r.Post("/", app.JobsCreate)
				r.Get("/", app.JobsList)
				r.Get("/{id}", app.JobsGet)
			})
			r.Get("/events", app.Events)
		})
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(middleware.InternalToken(opts.InternalToken))
		r.Post("/jobs/reconcile", app.Reconcile)
		r.Post("/jobs/{kind}/process", app.ProcessNext)
	})

	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	return r
}

// callbackRoute is the callback path relative to the /v1 mount.
func callbackRoute() string {
	return jobs.CallbackPath[len("/v1"):]
}
