package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"jaco-backend/internal/handlers"
	"jaco-backend/internal/metrics"
	"jaco-backend/internal/middleware"
	"jaco-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	sideChatHandler *handlers.SideChatHandler,
	stepHandler *handlers.StepHandler,
	topicHandler *handlers.TopicHandler,
	memoryHandler *handlers.MemoryHandler,
	wsHub *websocket.Hub,
	aiLimiter *middleware.RateLimiter,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(frontendURL))
	r.Use(metrics.Middleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Side Chat Routes ────
		r.Route("/side-chats", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", sideChatHandler.Create)
			r.Get("/by-chat/{chatId}", sideChatHandler.ListByChat)
			r.Get("/{id}", sideChatHandler.Get)
			r.Post("/{id}/messages", sideChatHandler.AddMessage)
			r.Delete("/{id}", sideChatHandler.Delete)

			r.Group(func(r chi.Router) {
				r.Use(aiLimiter.Middleware)
				r.Post("/{id}/reply", sideChatHandler.Reply)
				r.Post("/{id}/combine", sideChatHandler.Combine)
			})
		})

		// ──── Chat Routes ────
		r.Route("/chats/{id}", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			r.Route("/steps", func(r chi.Router) {
				r.Get("/", stepHandler.All)
				r.Post("/next", stepHandler.Next)
				r.Put("/mode", stepHandler.SetMode)
				r.With(aiLimiter.Middleware).Post("/ingest", stepHandler.Ingest)
				r.Post("/route", stepHandler.Route)
			})

			r.Route("/topic", func(r chi.Router) {
				r.Get("/boundaries", topicHandler.Boundaries)
				r.Post("/split", topicHandler.Split)
				r.With(aiLimiter.Middleware).Post("/classify", topicHandler.Classify)
			})
		})

		// ──── Memory Routes ────
		r.Route("/memories", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", memoryHandler.List)
			r.Delete("/{id}", memoryHandler.Delete)
		})

		// ──── Job Routes ────
		r.Route("/jobs", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{id}", topicHandler.GetJob)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
