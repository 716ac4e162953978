package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"carrier-reports/internal/handlers"
)

// Handlers groups the API handlers the router dispatches to
type Handlers struct {
	Health   *handlers.HealthHandler
	Profiles *handlers.ProfileHandler
	Convert  *handlers.ConvertHandler
	Runs     *handlers.RunHandler
	Admin    *handlers.AdminHandler
}

// RouterOptions controls authentication on mutating routes
type RouterOptions struct {
	AdminAPIKey      string
	DisableAdminAuth bool
	Logger           *slog.Logger
}

// NewRouter builds the chi router with middleware and all API routes
func NewRouter(h Handlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, h, opts)

	return Chain(r,
		RecoveryMiddleware(opts.Logger),
		LoggingMiddleware(opts.Logger),
		CORSMiddleware,
		SecurityMiddleware,
	)
}

// RegisterRoutes registers all routes with a chi router. Routes that start
// portal runs, upload data or change the scheduler require the admin key.
func RegisterRoutes(r chi.Router, h Handlers, opts RouterOptions) {
	adminAuth := Middleware(func(next http.Handler) http.Handler { return next })
	if opts.DisableAdminAuth {
		opts.Logger.Warn("Admin authentication is disabled")
	} else {
		adminAuth = AuthMiddleware(opts.AdminAPIKey, opts.Logger)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health.HealthCheck)
		r.Get("/profiles", h.Profiles.GetProfiles)
		r.Get("/profiles/{name}", h.Profiles.GetProfile)
		r.Get("/runs", h.Runs.GetRuns)
		r.Get("/runs/{id}", h.Runs.GetRun)
		r.Get("/sync/status", h.Admin.GetSyncStatus)

		r.Post("/sniff", h.Convert.Sniff)
		r.With(uploadAuth(adminAuth)).Post("/profiles/{name}/convert", h.Convert.Convert)

		r.Group(func(r chi.Router) {
			r.Use(adminAuth)
			r.Post("/profiles/{name}/run", h.Runs.TriggerRun)
			r.Post("/sync/pause", h.Admin.PauseSync)
			r.Post("/sync/resume", h.Admin.ResumeSync)
		})
	})
}

// uploadAuth applies auth only to requests that write to a destination
func uploadAuth(auth Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		protected := auth(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if upload, _ := strconv.ParseBool(r.URL.Query().Get("upload")); upload {
				protected.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
