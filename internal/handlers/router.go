package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/olushako/vaulty/internal/config"
	"github.com/olushako/vaulty/internal/middleware"
	"github.com/olushako/vaulty/internal/services"
	"github.com/olushako/vaulty/internal/store"
)

// Dependencies holds all the dependencies needed for handlers.
type Dependencies struct {
	Config          *config.Config
	Store           store.Store
	Redis           *redis.Client
	Logger          *slog.Logger
	AuthService     *services.AuthService
	TokenService    *services.TokenService
	ProjectService  *services.ProjectService
	SecretService   *services.SecretService
	DeviceService   *services.DeviceService
	ActivityService *services.ActivityService
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps *Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Metrics())
	r.Use(middleware.Logging(deps.Logger))
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(chimiddleware.Timeout(deps.Config.Server.RequestTimeout))
	r.Use(middleware.SecurityHeaders(deps.Config.IsProduction()))

	r.NotFound(NotFoundHandler)
	r.MethodNotAllowed(MethodNotAllowedHandler)

	// Create handlers
	healthHandler := NewHealthHandler(deps.Store, deps.Redis)
	projectHandler := NewProjectHandler(deps.ProjectService)
	secretHandler := NewSecretHandler(deps.SecretService, deps.ProjectService)
	tokenHandler := NewTokenHandler(deps.TokenService)
	deviceHandler := NewDeviceHandler(deps.DeviceService)
	activityHandler := NewActivityHandler(deps.ActivityService)

	// Health checks and metrics (no auth, no rate limit)
	r.Get("/health", healthHandler.Liveness)
	r.Get("/ready", healthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Approval polling authenticates with the device token itself so
		// pending devices can ask about their own status.
		r.Get("/devices/status", deviceHandler.Status)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.AuthService))
			if deps.Config.RateLimit.Enabled && deps.Redis != nil {
				rateLimiter := middleware.NewRateLimiter(
					deps.Redis,
					deps.Config.RateLimit.Requests,
					deps.Config.RateLimit.Window,
				)
				r.Use(middleware.RateLimit(rateLimiter))
			}
			r.Use(middleware.Activity(deps.ActivityService))

			// Projects
			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.List)
				r.Post("/", projectHandler.Create)

				r.Route("/{name}", func(r chi.Router) {
					r.Get("/", projectHandler.Get)
					r.Patch("/", projectHandler.Update)
					r.Delete("/", projectHandler.Delete)

					r.Route("/secrets", func(r chi.Router) {
						r.Get("/", secretHandler.List)
						r.Get("/export", secretHandler.Export)
						r.Get("/{key}", secretHandler.Get)
						r.Put("/{key}", secretHandler.Set)
						r.Delete("/{key}", secretHandler.Delete)
					})

					r.Route("/tokens", func(r chi.Router) {
						r.Get("/", tokenHandler.ListProject)
						r.Post("/", tokenHandler.CreateProject)
					})

					r.Route("/devices", func(r chi.Router) {
						r.Get("/", deviceHandler.List)
						r.Post("/", deviceHandler.Register)
						r.Get("/{id}", deviceHandler.Get)
						r.Delete("/{id}", deviceHandler.Delete)
						r.Post("/{id}/authorize", deviceHandler.Authorize)
						r.Post("/{id}/reject", deviceHandler.Reject)
					})

					r.Route("/activities", func(r chi.Router) {
						r.Get("/", activityHandler.ListForProject)
						r.Delete("/", activityHandler.FlushForProject)
					})
				})
			})

			// Implicit secret routes for project and device tokens.
			r.Route("/secrets", func(r chi.Router) {
				r.Get("/", secretHandler.List)
				r.Get("/export", secretHandler.Export)
				r.Get("/{key}", secretHandler.Get)
				r.Put("/{key}", secretHandler.Set)
				r.Delete("/{key}", secretHandler.Delete)
			})

			// Tokens
			r.Route("/master-tokens", func(r chi.Router) {
				r.Get("/", tokenHandler.ListMaster)
				r.Post("/", tokenHandler.CreateMaster)
				r.Delete("/{id}", tokenHandler.RevokeMaster)
				r.Post("/{id}/rotate", tokenHandler.RotateMaster)
			})
			r.Route("/tokens", func(r chi.Router) {
				r.Delete("/{id}", tokenHandler.RevokeProject)
				r.Post("/{id}/rotate", tokenHandler.RotateProject)
			})

			// Devices across all projects
			r.Get("/devices", deviceHandler.ListAll)

			// Activities
			r.Route("/activities", func(r chi.Router) {
				r.Get("/", activityHandler.List)
				r.Delete("/", activityHandler.FlushAll)
				r.Get("/recent", activityHandler.Recent)
				r.Get("/stats", activityHandler.Stats)
			})

			// Dashboard
			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/stats", activityHandler.Dashboard)
				r.Get("/daily-stats", activityHandler.DailyStats)
				r.Get("/project-stats", activityHandler.ProjectStats)
			})
		})
	})

	return r
}
