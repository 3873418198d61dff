package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutorly-backend/internal/config"
	"tutorly-backend/internal/database"
	"tutorly-backend/internal/handlers"
	"tutorly-backend/internal/metrics"
	"tutorly-backend/internal/middleware"
	"tutorly-backend/internal/models"
	"tutorly-backend/internal/repository"
	"tutorly-backend/internal/router"
	"tutorly-backend/internal/services"
	"tutorly-backend/internal/srs"
	"tutorly-backend/internal/websocket"
	"tutorly-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting Tutorly Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL, database.PoolConfig{
		MaxConns: int32(cfg.DBMaxConns),
		MinConns: int32(cfg.DBMinConns),
	})
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, database.Migrations); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Step 5: Scheduling Engine ────
	engine, err := srs.NewEngine(srs.EngineConfig{DefaultAlgorithm: srs.Algorithm(cfg.DefaultAlgorithm)})
	if err != nil {
		log.Fatalf("✗ Scheduling engine misconfigured: %v", err)
	}
	log.Printf("✓ Scheduling engine ready (default: %s)", engine.Resolve(""))

	// ──── Initialize Repositories ────
	progressRepo := repository.NewProgressRepo(pool)
	competenceRepo := repository.NewCompetenceRepo(pool)
	quizRepo := repository.NewQuizRepo(pool)
	flashcardRepo := repository.NewFlashcardRepo(pool)
	jobRepo := repository.NewJobRepo(pool)
	studySessionRepo := repository.NewStudySessionRepo(pool)
	dashboardRepo := repository.NewDashboardRepo(pool)

	// ──── Initialize Services ────
	broker := services.NewBroker(redisClients.Queue, redisClients.PubSub)
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	reviewService := services.NewReviewService(
		engine,
		progressRepo,
		flashcardRepo,
		quizRepo,
		studySessionRepo,
		jobRepo,
		broker,
		cfg.ReviewLockTTL,
	)
	appMetrics := metrics.New()
	reviewService.SetRecorder(appMetrics)
	competenceService := services.NewCompetenceService(competenceRepo, broker, cfg.EloKFactor, cfg.ReviewLockTTL)

	// ──── Initialize Handlers ────
	reviewHandler := handlers.NewReviewHandler(reviewService, competenceService)
	competenceHandler := handlers.NewCompetenceHandler(competenceService)
	quizHandler := handlers.NewQuizHandler(quizRepo, reviewService)
	flashcardHandler := handlers.NewFlashcardHandler(flashcardRepo, reviewService)
	studySessionHandler := handlers.NewStudySessionHandler(studySessionRepo)
	dashboardHandler := handlers.NewDashboardHandler(dashboardRepo)
	jobHandler := handlers.NewJobHandler(jobRepo)
	healthHandler := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"postgres": pool,
		"redis":    redisClients,
	})

	// ──── Step 6: Start Job Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, jobRepo, broker, cfg.WorkerCount)
	workerPool.SetRecorder(appMetrics)
	workerPool.Handle(models.JobTypeEloUpdate, competenceService.ApplyJob)
	workerPool.Handle(models.JobTypeAlgorithmSwitch, reviewService.ApplyDeckAlgorithm)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	reminderScheduler := services.NewReminderScheduler(progressRepo, broker, cfg.ReminderInterval)
	reminderScheduler.Start()
	log.Println("✓ Review reminder scheduler started")

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, reviewService)
	log.Println("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	apiLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	r := router.New(
		jwtAuth,
		apiLimiter,
		reviewHandler,
		competenceHandler,
		quizHandler,
		flashcardHandler,
		studySessionHandler,
		dashboardHandler,
		jobHandler,
		healthHandler,
		wsHub,
		appMetrics,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()
		reminderScheduler.Stop()
		apiLimiter.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Tutorly Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
