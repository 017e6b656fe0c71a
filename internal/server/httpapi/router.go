package httpapi

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/dmitrijs2005/vipkeeper/internal/logging"
	"github.com/dmitrijs2005/vipkeeper/internal/server/auth"
	"github.com/dmitrijs2005/vipkeeper/internal/server/pipeline"
	"github.com/dmitrijs2005/vipkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vipkeeper/internal/server/services"
	"github.com/dmitrijs2005/vipkeeper/internal/server/stages"
	"github.com/dmitrijs2005/vipkeeper/internal/server/throttle"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps is everything the router needs from the application.
type Deps struct {
	Users          *services.UserService
	Store          repomanager.RepositoryManager
	Codec          *auth.Codec
	Limiter        *throttle.Limiter
	Metrics        *stages.Metrics
	Tracing        *stages.Tracing
	Cookie         auth.CookieOptions
	AllowedOrigins []string
	Logger         logging.Logger

	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP
	// headers name the client. Requests from anyone else are keyed on the
	// socket address.
	TrustedProxies []netip.Prefix

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewRouter builds the HTTP handler of the server.
//
// Every route runs through a pipeline of tracing, metrics and access log
// stages. Pages add a redirecting guard, protected API routes a rejecting
// one.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	h := NewHandlers(d)

	base := pipeline.New(logger)
	if d.Tracing != nil {
		base = base.Use("tracing", d.Tracing)
	}
	if d.Metrics != nil {
		base = base.Use("metrics", d.Metrics)
	}
	base = base.Use("access_log", stages.NewAccessLog(logger))

	pages := base.Use("no_cache", pipeline.FromMiddleware(middleware.NoCache))
	protectedPages := pages.Use("auth", auth.NewGuard(d.Codec, auth.ModeRedirect, "/login", logger))

	api := base.Use("content_type", pipeline.FromMiddleware(
		middleware.AllowContentType("application/json", "application/x-www-form-urlencoded", "multipart/form-data"),
	))
	protectedAPI := api.Use("auth", auth.NewGuard(d.Codec, auth.ModeReject, "/login", logger))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(d.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Fragment-Header"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusNotFound, MsgNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusMethodNotAllowed, MsgMethodNotAllowed)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/users", http.StatusFound)
	})
	r.Get("/health", h.Health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Method(http.MethodGet, "/login", pages.ThenFunc(h.LoginPage))
	r.Method(http.MethodGet, "/users", protectedPages.ThenFunc(h.UsersPage))

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/login", api.ThenFunc(h.Login))
		r.Method(http.MethodPost, "/logout", api.ThenFunc(h.Logout))
		r.Method(http.MethodGet, "/me", protectedAPI.ThenFunc(h.Me))

		r.Method(http.MethodGet, "/users", protectedAPI.ThenFunc(h.ListUsers))
		r.Method(http.MethodPost, "/users", api.ThenFunc(h.CreateUser))
		r.Method(http.MethodGet, "/users/{id}", protectedAPI.ThenFunc(h.GetUser))
		r.Method(http.MethodPut, "/users/{id}", protectedAPI.ThenFunc(h.UpdateUser))
		r.Method(http.MethodDelete, "/users/{id}", protectedAPI.ThenFunc(h.DeleteUser))
	})

	return r
}
