package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MrJamesThe3rd/smartreceipts/internal/auth"
	"github.com/MrJamesThe3rd/smartreceipts/internal/brand"
	brandStore "github.com/MrJamesThe3rd/smartreceipts/internal/brand/store"
	"github.com/MrJamesThe3rd/smartreceipts/internal/config"
	"github.com/MrJamesThe3rd/smartreceipts/internal/database"
	"github.com/MrJamesThe3rd/smartreceipts/internal/embedding"
	embeddingStore "github.com/MrJamesThe3rd/smartreceipts/internal/embedding/store"
	"github.com/MrJamesThe3rd/smartreceipts/internal/export"
	appHttp "github.com/MrJamesThe3rd/smartreceipts/internal/http"
	brandHandler "github.com/MrJamesThe3rd/smartreceipts/internal/http/brand"
	embeddingHandler "github.com/MrJamesThe3rd/smartreceipts/internal/http/embedding"
	exportHandler "github.com/MrJamesThe3rd/smartreceipts/internal/http/export"
	importHandler "github.com/MrJamesThe3rd/smartreceipts/internal/http/importcsv"
	receiptHandler "github.com/MrJamesThe3rd/smartreceipts/internal/http/receipt"
	searchHandler "github.com/MrJamesThe3rd/smartreceipts/internal/http/search"
	"github.com/MrJamesThe3rd/smartreceipts/internal/importer"
	"github.com/MrJamesThe3rd/smartreceipts/internal/metrics"
	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
	receiptStore "github.com/MrJamesThe3rd/smartreceipts/internal/receipt/store"
	"github.com/MrJamesThe3rd/smartreceipts/internal/search"
	searchStore "github.com/MrJamesThe3rd/smartreceipts/internal/search/store"
	"github.com/MrJamesThe3rd/smartreceipts/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel()})))

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Audience, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}

	sqlDB, err := database.New(cfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer sqlDB.Close()

	db := database.Wrap(sqlDB)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	var urlCache storage.URLCache

	if cfg.Redis.Addr != "" {
		rdb, err := storage.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			slog.Warn("redis unavailable, signed urls will not be cached", "addr", cfg.Redis.Addr, "error", err)
		} else {
			defer rdb.Close()
			urlCache = storage.NewRedisURLCache(rdb)
		}
	}

	images, err := storage.New(ctx, storage.Config{
		Bucket:          cfg.Storage.Bucket,
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UsePathStyle:    cfg.Storage.UsePathStyle,
		SignedURLTTL:    cfg.Storage.SignedURLTTL,
	}, urlCache)
	if err != nil {
		return fmt.Errorf("configuring storage: %w", err)
	}

	if cfg.OpenAI.APIKey == "" {
		slog.Warn("OPENAI_API_KEY is not set, smart search will fall back to text matching")
	}

	embedder := embedding.NewOpenAI(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.EmbeddingModel, cfg.OpenAI.Timeout)
	indexer := embedding.NewIndexer(embedder, embeddingStore.New(db))

	queue := embedding.NewQueue(indexer,
		embedding.WithQueueSize(cfg.Embedding.QueueSize),
		embedding.WithJobTimeout(cfg.Embedding.JobTimeout),
		embedding.WithMetrics(appMetrics),
	)
	queue.Start()
	defer queue.Close()

	var (
		receiptService = receipt.NewService(receiptStore.New(db), images, queue)
		searchService  = search.NewService(embedder, searchStore.New(db), appMetrics)
		brandService   = brand.NewService(brandStore.New(db))
		importService  = importer.NewService(receiptService, brandService)
		exportService  = export.NewService(receiptService, images)
	)

	var (
		receiptH   = receiptHandler.NewHandler(receiptService, images)
		searchH    = searchHandler.NewHandler(searchService)
		embeddingH = embeddingHandler.NewHandler(indexer, cfg.Embedding.BackfillBatch)
		importH    = importHandler.NewHandler(importService)
		brandH     = brandHandler.NewHandler(brandService)
		exportH    = exportHandler.NewHandler(exportService)
	)

	router := appHttp.New(appHttp.Options{
		Verifier:       verifier,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Gatherer:       registry,
	}, receiptH, searchH, embeddingH, importH, brandH, exportH)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout * 4,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("starting server", "app", cfg.App.Name, "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
	}

	return nil
}
