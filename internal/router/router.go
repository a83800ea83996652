package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"quizforge-backend/internal/handlers"
	"quizforge-backend/internal/middleware"
	"quizforge-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	assessmentHandler *handlers.AssessmentHandler,
	documentHandler *handlers.DocumentHandler,
	chatbotHandler *handlers.ChatbotHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		// ──── Assessment Routes ────
		r.Route("/assessment", func(r chi.Router) {
			r.Get("/upload-help", assessmentHandler.UploadHelp) // Public

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)

				// Long pipelines get generous deadlines; exceeding one is 504.
				r.Group(func(r chi.Router) {
					r.Use(middleware.Timeout(5 * time.Minute))
					r.Post("/youtube", assessmentHandler.FromYouTube)
					r.Post("/media", assessmentHandler.FromMedia)
					r.Post("/video-assessment", assessmentHandler.FromVideo)
				})

				r.Group(func(r chi.Router) {
					r.Use(middleware.Timeout(2 * time.Minute))
					r.Post("/document", documentHandler.ProcessPDF)
					r.Post("/process-pdf", documentHandler.ProcessPDF)
				})

				r.Get("/status/{jobId}", assessmentHandler.Status)
			})
		})

		// ──── Chatbot Routes ────
		r.Route("/chatbot", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(5 * time.Minute))
				r.Post("/yt-to-audio", chatbotHandler.YTToAudio)
			})

			r.Post("/bot-response", chatbotHandler.BotResponse)
		})

		// ──── User Routes ────
		r.Route("/user", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/me", authHandler.Me)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
