package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vitalink-health/intake/internal/api"
	"github.com/vitalink-health/intake/internal/config"
	"github.com/vitalink-health/intake/internal/events"
	"github.com/vitalink-health/intake/internal/intake"
	"github.com/vitalink-health/intake/internal/llm"
	"github.com/vitalink-health/intake/internal/lookup"
	"github.com/vitalink-health/intake/internal/prompt"
	"github.com/vitalink-health/intake/internal/store"
	"github.com/vitalink-health/intake/internal/ws"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("intake starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// OpenAI client
	if cfg.OpenAIAPIKey == "" {
		slog.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}
	extractor := llm.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, prompt.System, slog.Default())
	slog.Info("openai client ready", "model", cfg.OpenAIModel)

	// NATS bus (optional — intake works without it, just no downstream events)
	var bus *events.Client
	if cfg.NatsURL != "" {
		bus, err = events.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer bus.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS not configured — running without event publishing")
	}

	// Test lookup pipeline (optional — needs the Gemini key for embeddings)
	var recommender api.Recommender
	var embedder lookup.Embedder
	catalog := lookup.NewCatalog(db.Pool())
	if cfg.GeminiAPIKey != "" {
		gem, err := lookup.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
		if err != nil {
			slog.Error("failed to create gemini embedder", "error", err)
			os.Exit(1)
		}
		ranker := llm.NewClient(cfg.OpenAIAPIKey, cfg.RankModel, "", slog.Default())
		svc := lookup.NewService(gem, catalog, ranker, slog.Default())
		svc.ScoreThreshold = cfg.ScoreThreshold
		svc.SearchLimit = cfg.SearchLimit
		recommender = svc
		embedder = gem
		slog.Info("test lookup ready", "embedding_model", cfg.EmbeddingModel)
	} else {
		slog.Warn("gemini not configured — running without test lookup")
	}

	// Engine and websocket surface
	engine := intake.New(extractor, db, bus, slog.Default())
	registry := ws.NewRegistry()
	chat := ws.NewHandler(engine, registry, cfg.StallThreshold, slog.Default())

	// Submissions arriving over the bus follow the same path as the
	// HTTP endpoint: recommend, then push into the live session.
	if bus != nil && recommender != nil {
		err := bus.SubscribeSubmissions(func(evt events.SubmissionEvent) {
			sess, send, ok := registry.Lookup(evt.UserID)
			if !ok {
				slog.Warn("submission for unknown session", "user_id", evt.UserID)
				return
			}
			tests, err := recommender.Recommend(ctx, evt.Symptoms)
			if err != nil {
				slog.Error("test lookup failed", "user_id", evt.UserID, "error", err)
				return
			}
			engine.DeliverTests(ctx, sess, send, evt.Symptoms, tests)
		})
		if err != nil {
			slog.Error("failed to subscribe to submissions", "error", err)
			os.Exit(1)
		}
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, api.Deps{
		Engine:      engine,
		Registry:    registry,
		History:     db,
		Recommender: recommender,
		Embedder:    embedder,
		Catalog:     catalog,
		Chat:        chat.ServeChat,
		Logger:      slog.Default(),
	})
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("intake ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("intake stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
