package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duckhunt/internal/bot"
	"github.com/duckhunt/internal/config"
	"github.com/duckhunt/internal/game"
	"github.com/duckhunt/internal/handler"
	"github.com/duckhunt/internal/kafka"
	"github.com/duckhunt/internal/postgres"
	"github.com/duckhunt/internal/redis"
	"github.com/duckhunt/internal/service"
	"github.com/duckhunt/internal/websocket"
	"github.com/duckhunt/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL is the score ledger and the status store
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	deps := map[string]handler.Pinger{"postgres": repo}

	// Redis only backs the live ranking; the game runs without it
	var (
		rankingCache *redis.RankingCache
		cache        service.RankingCache
	)
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		rankingCache, err = redis.NewRankingCache(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("failed to connect to Redis, continuing without ranking cache", "error", err)
		} else {
			defer rankingCache.Close()
			cache = rankingCache
			deps["redis"] = rankingCache
		}
	}

	wsHub := websocket.NewHub(logger)
	go wsHub.Run()

	// Outbound chat actions go to Kafka when enabled and are mirrored to
	// websocket subscribers; otherwise the hub is the chat adapter.
	var chat service.ChatAdapter = wsHub
	if cfg.Kafka.Enabled {
		publisher, err := kafka.NewPublisher(&cfg.Kafka, wsHub, logger)
		if err != nil {
			logger.Warn("failed to create Kafka publisher, delivering chat actions over websocket", "error", err)
		} else {
			defer publisher.Close()
			chat = publisher
		}
	}

	settings, err := game.SettingsFromConfig(&cfg.Hunt)
	if err != nil {
		logger.Error("invalid hunt configuration", "error", err)
		os.Exit(1)
	}
	engine := game.NewEngine(settings, logger)

	huntService := service.NewHuntService(engine, repo, repo, chat, cache, &cfg.Hunt, logger)
	if err := huntService.LoadState(ctx); err != nil {
		logger.Error("failed to restore hunt state", "error", err)
		os.Exit(1)
	}
	statsService := service.NewStatsService(repo, cache, &cfg.Stats, cfg.Hunt.StoreTimeout, logger)
	router := bot.NewRouter(huntService, statsService, chat, &cfg.Bot, logger)

	spawnWorker := worker.NewSpawnWorker(huntService, cfg.Hunt.TickInterval(), cfg.Hunt.Workers, logger)
	if err := spawnWorker.Start(ctx); err != nil {
		logger.Error("failed to start spawn worker", "error", err)
		os.Exit(1)
	}

	var syncWorker *worker.SyncWorker
	if rankingCache != nil {
		syncWorker = worker.NewSyncWorker(repo, rankingCache, &cfg.Sync, logger)

		logger.Info("rebuilding ranking cache from database")
		syncWorker.RunOnce(ctx)

		if cfg.Sync.Enabled {
			if err := syncWorker.Start(ctx); err != nil {
				logger.Error("failed to start sync worker", "error", err)
				os.Exit(1)
			}
		}
	}

	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, router, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, accepting events over HTTP only", "error", err)
		} else if err := kafkaConsumer.Start(); err != nil {
			logger.Warn("failed to start Kafka consumer, accepting events over HTTP only", "error", err)
			kafkaConsumer = nil
		}
	}

	httpHandler := handler.NewHandler(huntService, statsService, router, wsHub, deps, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// stop taking events before the workers and adapters go away
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	if err := spawnWorker.Stop(); err != nil {
		logger.Error("failed to stop spawn worker", "error", err)
	}

	if syncWorker != nil {
		if err := syncWorker.Stop(); err != nil {
			logger.Error("failed to stop sync worker", "error", err)
		}
	}

	wsHub.Stop()

	logger.Info("server stopped")
}
