package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/homevisit-scheduler/internal/appointments"
	httpmiddleware "github.com/wolfman30/homevisit-scheduler/internal/http/middleware"
	"github.com/wolfman30/homevisit-scheduler/internal/identity"
	"github.com/wolfman30/homevisit-scheduler/internal/realtime"
	"github.com/wolfman30/homevisit-scheduler/internal/reminders"
	"github.com/wolfman30/homevisit-scheduler/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	JWTSecret          string
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter
	MetricsHandler     http.Handler

	Appointments *appointments.Handler
	Reminders    *reminders.Handler
	Hub          *realtime.Hub

	// HealthCheck pings backing stores; nil reports healthy.
	HealthCheck func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware)
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthCheck))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.JWTAuth(cfg.JWTSecret))
		if cfg.Hub != nil {
			private.Get("/ws", cfg.Hub.ServeWS)
		}
		private.Route("/api", func(api chi.Router) {
			if cfg.Appointments != nil {
				cfg.Appointments.RegisterRoutes(api)
			}
			if cfg.Reminders != nil {
				api.Route("/admin/reminders", func(admin chi.Router) {
					admin.Use(httpmiddleware.RequireRoles(identity.RoleAdmin))
					cfg.Reminders.RegisterRoutes(admin)
				})
			}
		})
	})

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
