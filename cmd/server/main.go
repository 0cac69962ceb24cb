package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"jaco-backend/internal/config"
	"jaco-backend/internal/database"
	"jaco-backend/internal/handlers"
	"jaco-backend/internal/logging"
	"jaco-backend/internal/middleware"
	"jaco-backend/internal/repository"
	"jaco-backend/internal/router"
	"jaco-backend/internal/services"
	"jaco-backend/internal/websocket"
	"jaco-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting jaco backend")

	topicCfg, err := config.LoadTopicConfig(cfg.TopicConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("topic config invalid")
	}

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(context.Background(), cfg.DatabaseURL, database.PostgresOptions{
		MaxConns:       int32(cfg.DBMaxConns),
		MinConns:       int32(cfg.DBMinConns),
		ConnectTimeout: cfg.DBConnectTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pool.Close()

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(context.Background(), cfg.RedisURL, database.RedisOptions{
		PoolSize:    cfg.RedisPoolSize,
		PingTimeout: cfg.RedisPingTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisClients.Close()

	// ──── Step 4: Run Database Migrations ────
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	applied, err := database.RunMigrations(migrateCtx, pool, cfg.MigrationsDir)
	cancelMigrate()
	if err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}
	log.Info().Int("applied", applied).Msg("database schema up to date")

	// ──── Step 5: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(
		cfg.GeminiAPIKey,
		cfg.GeminiModel,
		cfg.GeminiEmbeddingModel,
		cfg.GeminiRequestsPerMin,
		cfg.GeminiConcurrentReqs,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("gemini client initialization failed")
	}
	defer geminiService.Close()
	log.Info().Str("model", cfg.GeminiModel).Msg("gemini client initialized")

	// ──── Initialize Repositories ────
	sideChatRepo := repository.NewSideChatRepo(pool)
	chatRepo := repository.NewChatRepo(pool)
	boundaryRepo := repository.NewBoundaryRepo(pool)
	jobRepo := repository.NewJobRepo(pool)
	memoryRepo := repository.NewMemoryRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	publisher := services.NewRedisPublisher(redisClients.Queue)
	jobQueue := services.NewRedisJobQueue(redisClients.Queue)

	sideChatService := services.NewSideChatService(sideChatRepo, geminiService, publisher)
	memoryService := services.NewMemoryService(memoryRepo, geminiService, geminiService, cfg.MemoryMaxInjected)
	stepService := services.NewStepService(chatRepo, memoryService)
	topicService := services.NewTopicService(
		chatRepo,
		boundaryRepo,
		jobRepo,
		jobQueue,
		geminiService,
		geminiService,
		publisher,
		topicCfg,
	)

	// ──── Initialize Handlers ────
	sideChatHandler := handlers.NewSideChatHandler(sideChatService)
	stepHandler := handlers.NewStepHandler(stepService)
	topicHandler := handlers.NewTopicHandler(topicService)
	memoryHandler := handlers.NewMemoryHandler(memoryService)

	// ──── Step 6: Start Job Worker Pool ────
	workerPool := worker.NewPool(
		redisClients.Queue,
		topicService,
		jobRepo,
		jobQueue,
		publisher,
		cfg.WorkerCount,
		cfg.JobTimeout,
	)
	workerPool.Start()

	janitor := services.NewSideChatJanitor(sideChatService, cfg.SideChatIdleTTL)
	janitor.Start()

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth)

	// ──── Step 8: Start HTTP Server ────
	// Model-backed endpoints (20 req/min per user)
	aiLimiter := middleware.NewRateLimiter(20, time.Minute)

	r := router.New(
		jwtAuth,
		sideChatHandler,
		stepHandler,
		topicHandler,
		memoryHandler,
		wsHub,
		aiLimiter,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // combine and reply wait on the model
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down")
		janitor.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
		aiLimiter.Close()
		workerPool.Stop()
	}()

	log.Info().
		Str("api", fmt.Sprintf("http://localhost:%s/api/v1", cfg.Port)).
		Str("ws", fmt.Sprintf("ws://localhost:%s/api/v1/ws", cfg.Port)).
		Msg("jaco backend ready")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
	<-done
	log.Info().Msg("shutdown complete")
}
