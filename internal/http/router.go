package http

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/credstack/server/internal/auth"
	"github.com/credstack/server/internal/http/handlers"
	"github.com/credstack/server/internal/middleware"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	accountHandler *handlers.AccountHandler,
	resetHandler *handlers.ResetHandler,
	sessionHandler *handlers.SessionHandler,
	signer *auth.TokenSigner,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", handlers.NewHealthHandler().ServeHTTP)

	// IP limiters: the per-email throttle is DB-based inside the reset engine.
	loginLimiter := middleware.NewRateLimiter(10*time.Minute, 20)
	resetLimiter := middleware.NewRateLimiter(10*time.Minute, 30)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", accountHandler.HandleRegister)
		r.With(middleware.RateLimit(loginLimiter)).Post("/login", accountHandler.HandleLogin)
		r.Post("/check-email", accountHandler.HandleCheckEmail)
	})

	r.Route("/api/v1/reset-password", func(r chi.Router) {
		r.Use(middleware.RateLimit(resetLimiter))
		r.Post("/request", resetHandler.HandleRequest)
		r.Post("/verify", resetHandler.HandleVerify)
		r.Post("/reset", resetHandler.HandleReset)
	})

	r.Route("/api/v1/token", func(r chi.Router) {
		r.Post("/refresh", sessionHandler.HandleRefresh)
		r.Post("/logout", sessionHandler.HandleLogout)

		// Protected routes (require valid access token)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(signer))
			r.Post("/logout-all", sessionHandler.HandleLogoutAll)
			r.Get("/sessions", sessionHandler.HandleListSessions)
			r.Delete("/sessions/{sessionID}", sessionHandler.HandleRevokeSession)
		})
	})

	return r
}
