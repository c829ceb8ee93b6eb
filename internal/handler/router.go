package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/portfolio-ai/concierge/internal/middleware"
	"github.com/portfolio-ai/concierge/pkg/logger"
)

// RouterConfig carries the handlers and settings the router mounts.
type RouterConfig struct {
	Chat   *ChatHandler
	Admin  *AdminHandler
	Health *HealthHandler
	Logger *logger.Logger

	// JWTSecret signs admin tokens. When empty every admin route answers 503.
	JWTSecret              string
	AllowedOrigins         []string
	AdminRateLimitRequests int
	AdminRateLimitWindow   time.Duration
}

// NewRouter builds the HTTP routes.
func NewRouter(cfg RouterConfig) http.Handler {
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"https://*", "http://*"}
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", middleware.CorrelationHeader},
		ExposedHeaders:   []string{"Retry-After", middleware.CorrelationHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", cfg.Chat.Chat)

		if cfg.JWTSecret == "" {
			r.Handle("/admin/*", http.HandlerFunc(adminDisabled))
			return
		}
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.RequireScope(middleware.AdminScope))
			if cfg.AdminRateLimitRequests > 0 {
				r.Use(middleware.AdminRateLimit(cfg.AdminRateLimitRequests, cfg.AdminRateLimitWindow))
			}
			cfg.Admin.Routes(r)
		})
	})

	return r
}

func adminDisabled(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusServiceUnavailable, "admin API is disabled: JWT_SECRET is not set")
}
