package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mailtoys/config"
	"mailtoys/internal/db"
	"mailtoys/internal/handler"
	"mailtoys/internal/httpserver"
	"mailtoys/internal/repository"
	"mailtoys/internal/service"
	"mailtoys/internal/service/classifier"
	"mailtoys/internal/service/graph"
	"mailtoys/internal/service/tokenstore"
	"mailtoys/internal/sse"
	"mailtoys/pkg/logger"
	"mailtoys/pkg/mq"
	"mailtoys/pkg/redis"
	"mailtoys/pkg/util"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting mailtoys server...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("port", cfg.Server.Port),
	)

	// DB
	log.Info("Initializing database connection...")
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()
	log.Info("Database connection established successfully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.ApplySchema(ctx, dbConn, "schema.sql", log); err != nil {
		cancel()
		log.Fatal("Failed to apply schema", zap.Error(err))
	}
	cancel()

	// Redis is optional; without it outbound notifications just skip dedup.
	var deduper *util.Deduper
	if cfg.Redis.Addr != "" {
		rdb := redis.NewRedisClient(cfg.Redis)
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn("Redis unreachable, notification dedup disabled", zap.Error(err))
		} else {
			deduper = util.NewDeduper(rdb, 24*time.Hour, log)
			log.Info("Redis connection established successfully")
		}
		pingCancel()
	}

	// MQ is optional; without it tray notifications stay in-process only.
	var publisher *mq.Publisher
	if cfg.MQ.URL != "" {
		publisher, err = mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Warn("Failed to init MQ publisher, tray fan-out disabled", zap.Error(err))
			publisher = nil
		} else {
			defer publisher.Close()
			log.Info("MQ publisher initialized successfully")
		}
	}

	emailRepo := repository.NewEmailRepository(dbConn)
	detectionRepo := repository.NewDetectionRepository(dbConn)
	actionRepo := repository.NewActionRepository(dbConn)
	taskRepo := repository.NewTaskRepository(dbConn)
	subscriptionRepo := repository.NewSubscriptionRepository(dbConn)

	tokens := tokenstore.New(cfg.Graph.Token)
	if cfg.Graph.Token != "" {
		log.Info("Access token seeded from config", zap.String("token", tokens.Masked()))
	}

	graphClient := graph.NewClient(cfg.Graph.BaseURL)

	llm := classifier.NewLLMClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	if llm.Enabled() {
		log.Info("LLM classification enabled", zap.String("model", cfg.OpenAI.Model))
	} else {
		log.Info("No OpenAI API key configured, using keyword rules only")
	}
	emailClassifier := classifier.New(llm, log)

	hub := sse.NewHub(log)
	notifier := service.NewTrayNotifier(publisher, deduper, log)

	pipeline := service.NewPipeline(
		emailRepo,
		detectionRepo,
		taskRepo,
		graphClient,
		emailClassifier,
		hub,
		notifier,
		tokens,
		cfg.Graph.ClientState,
		cfg.Graph.UserEmail,
		log,
	)

	// HTTP Server
	log.Info("Initializing HTTP server...", zap.String("port", cfg.Server.Port))
	handlers := httpserver.Handlers{
		Webhook:   handler.NewWebhookHandler(pipeline, log),
		Events:    handler.NewEventsHandler(hub, log),
		Token:     handler.NewTokenHandler(tokens, log),
		Dashboard: handler.NewDashboardHandler(emailRepo, detectionRepo, actionRepo, hub, log),
		Tasks:     handler.NewTaskHandler(taskRepo, hub, log),
		Graph: handler.NewGraphHandler(
			graphClient,
			tokens,
			subscriptionRepo,
			pipeline,
			cfg.Graph.ClientState,
			cfg.Graph.WebhookURL,
			cfg.Graph.UserEmail,
			log,
		),
	}
	router := httpserver.NewRouter(handlers, log, dbConn, publisher)

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("mailtoys is fully initialized and running",
		zap.String("http_port", cfg.Server.Port),
		zap.String("monitored_user", cfg.Graph.UserEmail),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down mailtoys gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	log.Info("mailtoys shutdown complete")
}
