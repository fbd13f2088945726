package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/chat-sync/internal/config"
	"github.com/capitalize-ai/chat-sync/internal/handler"
	"github.com/capitalize-ai/chat-sync/internal/middleware"
	"github.com/capitalize-ai/chat-sync/pkg/logger"
)

// handlers groups everything the router dispatches to.
type handlers struct {
	health        *handler.HealthHandler
	sync          *handler.SyncHandler
	stream        *handler.StreamHandler
	conversations *handler.ConversationHandler
	files         *handler.FileHandler
	chat          *handler.ChatHandler
}

func newRouter(cfg *config.Config, h handlers, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins, cfg.IdentityHeader))

	// Health endpoints (no auth required)
	r.Get("/health", h.health.Health)
	r.Get("/ready", h.health.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Identity(middleware.AuthConfig{
			JWTSecret:           cfg.JWTSecret,
			IdentityHeader:      cfg.IdentityHeader,
			TrustIdentityHeader: cfg.TrustIdentityHeader,
		}))

		// Long-lived and read-only routes are not rate limited per user.
		r.Get("/sync", h.sync.Get)
		r.Get("/sync/stream", h.stream.Stream)
		r.Get("/shared-files", h.files.List)
		r.Get("/shared-files/{fileId}", h.files.Download)

		r.Group(func(r chi.Router) {
			r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Post("/sync", h.sync.Save)
			r.Post("/share-chat", h.sync.Share)
			r.Post("/chat", h.chat.Chat)

			r.Route("/conversations/{id}", func(r chi.Router) {
				r.Patch("/", h.conversations.Rename)
				r.Delete("/", h.conversations.Delete)
				r.Post("/move", h.conversations.Move)
			})

			r.Post("/folders", h.conversations.CreateFolder)
			r.Route("/folders/{id}", func(r chi.Router) {
				r.Patch("/", h.conversations.RenameFolder)
				r.Delete("/", h.conversations.DeleteFolder)
			})

			r.Post("/shared-files", h.files.Upload)
			r.Delete("/shared-files", h.files.Delete)
			r.Post("/shared-files/folders", h.files.CreateFolder)
			r.Delete("/shared-files/folders", h.files.DeleteFolder)
			r.Post("/shared-files/move", h.files.Move)
		})
	})

	return r
}
