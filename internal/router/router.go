package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"tutorly-backend/internal/handlers"
	"tutorly-backend/internal/metrics"
	"tutorly-backend/internal/middleware"
	"tutorly-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	apiLimiter *middleware.RateLimiter,
	reviewHandler *handlers.ReviewHandler,
	competenceHandler *handlers.CompetenceHandler,
	quizHandler *handlers.QuizHandler,
	flashcardHandler *handlers.FlashcardHandler,
	studySessionHandler *handlers.StudySessionHandler,
	dashboardHandler *handlers.DashboardHandler,
	jobHandler *handlers.JobHandler,
	healthHandler *handlers.HealthHandler,
	wsHub *websocket.Hub,
	appMetrics *metrics.Metrics,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))
	r.Use(appMetrics.Middleware)

	r.Get("/health", healthHandler.Check)
	r.Method(http.MethodGet, "/metrics", appMetrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket authenticates with ?token=
		r.Get("/ws", wsHub.HandleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(apiLimiter.Middleware)
			r.Use(chimiddleware.Timeout(30 * time.Second))

			// ──── Review Routes ────
			r.Route("/reviews", func(r chi.Router) {
				r.Post("/", reviewHandler.Submit)
				r.Get("/next", reviewHandler.Next)
				r.Get("/due", reviewHandler.Due)
				r.Get("/overview", reviewHandler.Overview)
				r.Get("/progress/{type}/{id}/{sub}", reviewHandler.GetProgress)
				r.Put("/progress/{type}/{id}/{sub}/algorithm", reviewHandler.SwitchAlgorithm)
			})

			// ──── Competence Routes ────
			r.Route("/competence", func(r chi.Router) {
				r.Get("/", competenceHandler.Get)
				r.Get("/items/{type}/{id}/{sub}", competenceHandler.ItemDifficulty)
			})

			// ──── Quiz Routes ────
			r.Route("/quizzes", func(r chi.Router) {
				r.Get("/", quizHandler.List)
				r.Get("/{id}", quizHandler.Get)
				r.Put("/{id}/favorite", quizHandler.ToggleFavorite)
				r.Delete("/{id}", quizHandler.Delete)
				r.Post("/{id}/start", quizHandler.StartAttempt)
			})

			r.Route("/quiz-attempts", func(r chi.Router) {
				r.Post("/{id}/save-progress", quizHandler.SaveProgress)
				r.Post("/{id}/submit", quizHandler.SubmitAttempt)
				r.Get("/{id}", quizHandler.GetAttempt)
			})

			// ──── Flashcard Routes ────
			r.Route("/flashcards", func(r chi.Router) {
				r.Route("/decks", func(r chi.Router) {
					r.Get("/", flashcardHandler.ListDecks)
					r.Get("/{id}", flashcardHandler.GetDeck)
					r.Get("/{id}/stats", flashcardHandler.GetDeckStats)
					r.Put("/{id}/favorite", flashcardHandler.ToggleFavorite)
					r.Put("/{id}/algorithm", flashcardHandler.SetAlgorithm)
					r.Delete("/{id}", flashcardHandler.DeleteDeck)
				})

				r.Route("/cards", func(r chi.Router) {
					r.Post("/{id}/review", flashcardHandler.ReviewCard)
					// legacy four-button clients
					r.Post("/{id}/rating", flashcardHandler.ReviewCard)
				})
			})

			// ──── Study Session Routes ────
			r.Route("/study-sessions", func(r chi.Router) {
				r.Post("/start", studySessionHandler.Start)
				r.Get("/{id}", studySessionHandler.Get)
				r.Post("/{id}/heartbeat", studySessionHandler.Heartbeat)
				r.Post("/{id}/stop", studySessionHandler.Stop)
			})

			// ──── Dashboard Routes ────
			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/stats", dashboardHandler.Stats)
				r.Get("/streak", dashboardHandler.Streak)
				r.Get("/activity", dashboardHandler.Activity)
			})

			// ──── Job Routes ────
			r.Get("/jobs/{id}", jobHandler.Get)
		})
	})

	return r
}
