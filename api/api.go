// Package api exposes the authentication service over HTTP: the JSON routes
// mounted under /api and the page gate that protects the web pages.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/soroboxing/gymgate/auth"
)

// MountPath is where the server mounts Router().
const MountPath = "/api"

// API holds the dependencies needed by the REST handlers.
type API struct {
	auth       *auth.Service
	logger     *slog.Logger
	events     *eventLogger
	metrics    *authMetrics
	production bool

	registerer prometheus.Registerer
	alertFn    AlertFunc
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for handler and auth events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithProduction forces the Secure attribute on every cookie.
func WithProduction(production bool) Option {
	return func(a *API) {
		a.production = production
	}
}

// WithRegisterer registers the auth counters with reg. By default they go to
// a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *API) {
		a.registerer = reg
	}
}

// WithAlertFunc installs a callback for login failure spikes.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.alertFn = fn
	}
}

// New creates a new API instance.
func New(svc *auth.Service, opts ...Option) *API {
	a := &API{auth: svc}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if a.registerer == nil {
		a.registerer = prometheus.NewRegistry()
	}
	a.metrics = newAuthMetrics(a.registerer, a.alertFn)
	a.events = newEventLogger(a.logger, a.metrics)
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: MountPath + "/openapi.yaml",
		Path:    "api/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: MountPath + "/openapi.yaml",
		Path:    "api/redoc",
	}, nil))

	r.Post("/auth/login", a.Login)
	r.Post("/auth/logout", a.Logout)
	r.Get("/auth/me", a.requireMember(a.Me))

	r.Route("/admin/members", func(r chi.Router) {
		r.Use(a.CSRFMiddleware)
		r.Get("/", a.requireAdmin(a.ListMembers))
		r.Post("/", a.requireAdmin(a.CreateMember))
		r.Route("/{memberID}", func(r chi.Router) {
			r.Get("/", a.requireAdmin(a.GetMember))
			r.Post("/reset-secret", a.requireAdmin(a.ResetSecret))
			r.Post("/deactivate", a.requireAdmin(a.DeactivateMember))
			r.Post("/reactivate", a.requireAdmin(a.ReactivateMember))
			r.Post("/revoke-sessions", a.requireAdmin(a.RevokeSessions))
		})
	})

	return r
}
