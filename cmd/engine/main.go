package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/polypilot/engine/internal/ai"
	"github.com/polypilot/engine/internal/api"
	"github.com/polypilot/engine/internal/autoexit"
	"github.com/polypilot/engine/internal/config"
	"github.com/polypilot/engine/internal/confirm"
	"github.com/polypilot/engine/internal/domain"
	"github.com/polypilot/engine/internal/gamma"
	"github.com/polypilot/engine/internal/insight"
	"github.com/polypilot/engine/internal/logger"
	"github.com/polypilot/engine/internal/metrics"
	"github.com/polypilot/engine/internal/scanner"
	"github.com/polypilot/engine/internal/sched"
	"github.com/polypilot/engine/internal/sentiment"
	"github.com/polypilot/engine/internal/storage"
	"github.com/polypilot/engine/internal/telegram"
	"github.com/polypilot/engine/internal/views"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dbPath := flag.String("db", "", "path to SQLite database (overrides config)")
	flag.Parse()

	// Secrets may live in a .env file next to the binary.
	_ = godotenv.Load()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Init logger
	log := logger.New(cfg.Logging.Level)

	mode := "heuristic"
	if cfg.HasOpenAI() {
		mode = "ai"
	}
	log.Info("starting polypilot engine", "mode", mode)

	// Init audit database
	path := cfg.Storage.Path
	if *dbPath != "" {
		path = *dbPath
	}
	db, err := storage.NewDatabase(path)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	repo := storage.NewRepository(db, log)

	// Context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init services
	aiClient := ai.NewClient(cfg, log)
	notifier := telegram.NewNotifier(cfg, log)
	confirmer := confirm.NewService(aiClient, log)
	analyzer := sentiment.NewService(aiClient, log)
	catalog := gamma.NewClient(cfg.Gamma.BaseURL, cfg.Gamma.RequestsPerSecond, cfg.GammaTimeout(), log)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	enabled, minTweets, minScore := cfg.DefaultInsightsSettings()
	viewStore := views.NewStore(domain.AIInsightsSettings{
		Enabled:           enabled,
		MinTweetCount:     minTweets,
		MinSentimentScore: minScore,
	}, cfg.SessionIdle(), log)

	userCache := insight.NewCache(cfg.InsightTTL())
	globalCache := insight.NewCache(cfg.InsightTTL())

	insights := insight.NewService(viewStore, catalog, analyzer, userCache, globalCache, repo, m, log)
	exits := autoexit.NewService(confirmer, notifier, repo, m, cfg.EvalCooldown(), log)
	scan := scanner.New(catalog, analyzer, aiClient, globalCache, notifier, m, cfg.ScanInterval(), cfg.Engine.ScanTopMarkets, log)

	// Background jobs
	jobs := sched.New(log)
	jobs.Add(sched.Job{
		Name:     "session-sweep",
		Interval: cfg.SessionSweepInterval(),
		Fn:       func(context.Context) { viewStore.Sweep() },
	})
	jobs.Add(sched.Job{
		Name:     "insight-cache-sweep",
		Interval: cfg.InsightTTL() / 2,
		Fn:       func(context.Context) { insights.SweepCaches() },
	})
	jobs.Add(sched.Job{
		Name:         "market-scan",
		Interval:     cfg.ScanInterval(),
		InitialDelay: cfg.ScanInitialDelay(),
		Fn:           scan.RunOnce,
	})
	jobs.Start(ctx)

	// Start API server in goroutine
	server := api.NewServer(cfg.Web.Port, exits, insights, viewStore, repo, reg, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Error("api server error", "error", err)
		}
	}()

	notifier.NotifyStatus(fmt.Sprintf("polypilot engine started (%s mode)", mode))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", "signal", sig.String())

	// Graceful shutdown
	cancel()
	jobs.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("api server shutdown error", "error", err)
	}

	notifier.NotifyStatus("polypilot engine stopped")
	log.Info("polypilot engine stopped")
}
