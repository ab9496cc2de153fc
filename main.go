package main

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/docquery-ai/docquery-engine/pkg/config"
	"github.com/docquery-ai/docquery-engine/pkg/database"
	"github.com/docquery-ai/docquery-engine/pkg/handlers"
	"github.com/docquery-ai/docquery-engine/pkg/repositories"
	"github.com/docquery-ai/docquery-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database.URL(), "./migrations", logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Repositories
	docRepo := repositories.NewDocumentRepository(db)
	chunkRepo := repositories.NewChunkRepository(db)

	// Services
	chunking := services.NewChunkingService(cfg.Chunking, logger)
	tabular := services.NewTabularExtractionService(logger)
	intents := services.NewQueryIntentService(logger)
	executor := services.NewQueryExecutorService(cfg.OutlierTrim, logger)
	keyvalue := services.NewKeyValueExtractionService(logger)
	scorer := services.NewRelevanceScorerService(cfg.Scorer, logger)
	router := services.NewQueryRouterService(chunkRepo, tabular, intents, executor, keyvalue, logger)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, db, logger)
	healthHandler.RegisterRoutes(mux)

	documentsHandler := handlers.NewDocumentsHandler(docRepo, chunking, logger)
	documentsHandler.RegisterRoutes(mux)

	queryHandler := handlers.NewQueryHandler(router, scorer, chunkRepo, logger)
	queryHandler.RegisterRoutes(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting docquery-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
