package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/gallery/internal/auth"
	"github.com/utafrali/gallery/pkg/health"
	"github.com/utafrali/gallery/pkg/middleware"
)

// AccessTokenVerifier verifies access tokens. *auth.Codec implements it.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) auth.Verification
}

// RouterConfig carries everything NewRouter mounts.
type RouterConfig struct {
	ServiceName string
	Sessions    SessionService
	Gallery     GalleryService
	Tokens      AccessTokenVerifier
	Health      *health.Handler
	Cookies     CookieConfig
	CORS        middleware.CORSConfig

	// AuthRateLimitRPS limits the public auth endpoints per client IP. Zero
	// disables the limit.
	AuthRateLimitRPS   float64
	AuthRateLimitBurst int

	// Uploads, when set, serves locally stored image files under /uploads/.
	Uploads http.Handler
}

// NewRouter creates a chi router with all gallery routes registered. ctx
// bounds background work such as rate limiter cleanup.
func NewRouter(ctx context.Context, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger, "/health/live", "/health/ready", "/metrics"))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if cfg.Uploads != nil {
		r.Handle("/uploads/*", http.StripPrefix("/uploads", cfg.Uploads))
	}

	tokenValidator := func(token string) (*middleware.Claims, error) {
		v := cfg.Tokens.VerifyAccessToken(token)
		if !v.Valid() {
			return nil, v.Err()
		}
		return &middleware.Claims{UserID: v.Identity.ID, Email: v.Identity.Email}, nil
	}
	requireAuth := middleware.Auth(tokenValidator)

	authHandler := NewAuthHandler(cfg.Sessions, cfg.Cookies, logger)
	imageHandler := NewImageHandler(cfg.Gallery, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.NoStore)

		r.Route("/auth", func(r chi.Router) {
			// Public endpoints
			r.Group(func(r chi.Router) {
				if cfg.AuthRateLimitRPS > 0 {
					r.Use(middleware.RateLimit(ctx, cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst))
				}
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
				r.Post("/refresh-token", authHandler.RefreshToken)
			})

			// Authenticated endpoints
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/verify-current-password", authHandler.VerifyCurrentPassword)
				r.Patch("/reset-password", authHandler.ResetPassword)
				r.Post("/logout", authHandler.Logout)
				r.Get("/details", authHandler.Details)
			})
		})

		r.Route("/images", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", imageHandler.List)
			r.Post("/upload", imageHandler.Upload)
			r.Put("/rearrange", imageHandler.Rearrange)
			r.Put("/{id}", imageHandler.Update)
			r.Delete("/{id}", imageHandler.Delete)
		})
	})

	return r
}
