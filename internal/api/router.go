package api

import (
	"net/http"

	"github.com/dom/healthguide/internal/api/handlers"
	"github.com/dom/healthguide/internal/api/middleware"
	"github.com/dom/healthguide/internal/config"
	"github.com/dom/healthguide/internal/logger"
	"github.com/dom/healthguide/internal/service"
	"github.com/dom/healthguide/internal/validator"
	"github.com/dom/healthguide/internal/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

func NewRouter(services *service.Services, hub *websocket.Hub, cfg *config.Config, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	validate := validator.New()
	authHandler := handlers.NewAuthHandler(services.Auth, validate, log)
	chatHandler := handlers.NewChatHandler(services.Chat, validate, log)
	reportHandler := handlers.NewReportHandler(services.Report, log)
	healthHandler := handlers.NewHealthHandler(services.Health, validate, log)
	wsHandler := handlers.NewWebSocketHandler(hub, services.Auth, services.Chat, log)

	requireAuth := middleware.Auth(services.Auth, log)
	chatLimiter := middleware.NewRateLimiter(rate.Limit(cfg.Chat.RatePerSecond), cfg.Chat.RateBurst)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/send-otp", authHandler.SendOTP)
			r.Post("/verify-otp", authHandler.VerifyOTP)
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/profile", authHandler.Profile)
				r.Get("/protected", authHandler.Protected)
			})
		})

		r.Route("/chatbot", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(chatLimiter.Middleware)
				r.With(requireAuth).Post("/chat", chatHandler.Chat)
				r.Post("/chat-public", chatHandler.ChatPublic)
				r.Post("/chat-with-history", chatHandler.ChatPublic)
				r.Get("/ws", wsHandler.Handle)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.OptionalAuth(services.Auth, log))
				r.Delete("/session/{sessionId}", chatHandler.DeleteSession)
				r.Get("/sessions", chatHandler.ListSessions)
			})
		})

		r.Post("/report", reportHandler.Submit)
		r.Post("/firstaid", healthHandler.FirstAid)
		r.Post("/nearby-facilities", healthHandler.NearbyFacilities)
	})

	return r
}
