package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/studyshare-api/internal/config"
	"github.com/studyshare-api/internal/domain"
	"github.com/studyshare-api/internal/transport/http/handler"
	appmiddleware "github.com/studyshare-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. The returned limiter
// must be stopped on shutdown.
func NewRouter(cfg *config.Config, deps *Deps) (http.Handler, *appmiddleware.RateLimiter) {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)

	// 5 requests/second, burst of 10, on endpoints that send codes or check passwords.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler(deps.Sweepers)
	userH := handler.NewUserHandler(deps.UserService)
	sessionH := handler.NewSessionHandler(deps.AuthService)
	pwH := handler.NewPasswordRecoveryHandler(deps.AuthService)
	materialH := handler.NewMaterialHandler(deps.MaterialService)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Group(func(r chi.Router) {
			r.Use(sensitiveRL.Limit)

			r.Post("/users", userH.Signup)
			r.Post("/users/verify-email", userH.VerifyEmail)
			r.Post("/users/resend-verification", userH.ResendVerification)
			r.Post("/sessions/login", sessionH.Login)
			r.Post("/sessions/google", sessionH.Google)
			r.Post("/password-recovery/{action}", pwH.Action)
		})

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/users/{id}", userH.Get)
			r.Delete("/users/me", userH.DeleteMe)

			r.Get("/materials", materialH.ListMine)
			r.Post("/materials", materialH.Upload)
			r.Get("/materials/{id}", materialH.Get)
			r.Get("/materials/{id}/download", materialH.Download)
			r.Delete("/materials/{id}", materialH.Delete)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Delete("/users/{id}", userH.Delete)
			})
		})
	})

	return r, sensitiveRL
}
