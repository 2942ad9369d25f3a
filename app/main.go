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

	"golang.org/x/sync/errgroup"

	"github.com/unikonkon/crypto-news-aggregator/app/annotation"
	"github.com/unikonkon/crypto-news-aggregator/app/api"
	"github.com/unikonkon/crypto-news-aggregator/app/cache"
	"github.com/unikonkon/crypto-news-aggregator/app/cfg"
	"github.com/unikonkon/crypto-news-aggregator/app/database"
	"github.com/unikonkon/crypto-news-aggregator/app/feed"
	"github.com/unikonkon/crypto-news-aggregator/app/ingest"
	"github.com/unikonkon/crypto-news-aggregator/app/llm"
	"github.com/unikonkon/crypto-news-aggregator/app/tasks"
)

// annotationDelay spaces model calls within one batch.
const annotationDelay = time.Second

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogger(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting Crypto News Aggregator", "version", appCfg.Version, "port", appCfg.Port)

	db, err := database.Open(appCfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	registry, err := feed.LoadRegistry(appCfg.SourcesFile)
	if err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}
	slog.Info("Sources loaded", "count", registry.Count(), "enabled", len(registry.Enabled()))

	articleRepo := database.NewArticleRepository(db)
	annotationRepo := database.NewAnnotationRepository(db)
	summaryRepo := database.NewSummaryRepository(db)

	httpClient := &http.Client{Timeout: appCfg.FetchTimeout}
	fetcher := feed.NewFetcher(httpClient, appCfg.UserAgent, appCfg.FetchTimeout, feed.NewContentExtractor())

	var gate ingest.Gate = ingest.NewStoreGate(articleRepo)
	var cacheHealth api.HealthReporterInterface
	if appCfg.RedisAddr != "" {
		seen, err := cache.NewCache(context.Background(), appCfg.RedisAddr, appCfg.RedisPassword, appCfg.RedisDB)
		if err != nil {
			slog.Warn("Dedup cache unavailable, using database only", "addr", appCfg.RedisAddr, "error", err)
		} else {
			defer seen.Close()
			gate = ingest.NewCachedGate(seen, gate)
			cacheHealth = seen
		}
	}

	orchestrator := ingest.NewOrchestrator(registry, fetcher, gate, articleRepo, appCfg.IngestDelay)

	var generator llm.Generator
	if appCfg.LLMConfigured() {
		generator, err = llm.New(llm.Config{
			Provider:     appCfg.LLMProvider,
			GeminiAPIKey: appCfg.GeminiAPIKey,
			GeminiModel:  appCfg.GeminiModel,
			CohereAPIKey: appCfg.CohereAPIKey,
			CohereModel:  appCfg.CohereModel,
			Timeout:      appCfg.LLMTimeout,
			RatePerMin:   appCfg.LLMRatePerMin,
		})
		if err != nil {
			return fmt.Errorf("failed to create model client: %w", err)
		}
		slog.Info("Model provider configured", "provider", appCfg.LLMProvider, "rate_per_min", appCfg.LLMRatePerMin)
	} else {
		slog.Warn("Model provider not configured, annotation is disabled", "provider", appCfg.LLMProvider)
	}

	annotator := annotation.NewAnnotator(generator, annotationRepo, appCfg.SummaryLanguage, annotationDelay)
	digester := annotation.NewDigester(generator, summaryRepo, appCfg.SummaryLanguage)

	scheduler, err := tasks.NewScheduler(orchestrator, appCfg.CronSchedule, appCfg.WorkerCount)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background scheduler started", "workers", appCfg.WorkerCount, "schedule", appCfg.CronSchedule)

	handler := api.NewHandler(api.Deps{
		Articles:    articleRepo,
		Annotations: annotationRepo,
		Summaries:   summaryRepo,
		Sources:     registry,
		Ingester:    orchestrator,
		Annotator:   annotator,
		Digester:    digester,
		Scheduler:   scheduler,
		Cache:       cacheHealth,
		Version:     appCfg.Version,
	})

	// Ingest and annotation runs complete within the request.
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		slog.Info("HTTP server stopped")
		return nil
	})

	return g.Wait()
}
