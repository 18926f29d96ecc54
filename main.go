package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/transcribot/transcribot/internal/config"
	"github.com/transcribot/transcribot/internal/consts"
	"github.com/transcribot/transcribot/internal/database"
	"github.com/transcribot/transcribot/internal/llm"
	"github.com/transcribot/transcribot/internal/logger"
	"github.com/transcribot/transcribot/internal/media"
	"github.com/transcribot/transcribot/internal/metrics"
	"github.com/transcribot/transcribot/internal/notify"
	"github.com/transcribot/transcribot/internal/orchestrator"
	"github.com/transcribot/transcribot/internal/quota"
	"github.com/transcribot/transcribot/internal/session"
	"github.com/transcribot/transcribot/internal/stripe"
	"github.com/transcribot/transcribot/internal/telegram"
	"github.com/transcribot/transcribot/internal/workflow"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.InitLogger(cfg.LogLevel, cfg.LogDir); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Info("transcribot is starting", map[string]interface{}{
		"log_level":            cfg.LogLevel,
		"has_database":         cfg.HasDatabaseConfig(),
		"has_sqlite":           cfg.HasSQLiteConfig(),
		"has_stripe":           cfg.HasStripeConfig(),
		"translation_provider": cfg.TranslationProvider,
		"daily_free_limit":     cfg.DailyFreeLimit,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("Bot error", map[string]interface{}{
			"error": err.Error(),
		})
		log.Fatalf("Bot error: %v", err)
	}
}

// openDatabase prefers Postgres, then a SQLite file, and finally an
// in-memory SQLite database that loses all state on restart.
func openDatabase(cfg *config.Config) (*database.DB, error) {
	switch {
	case cfg.HasDatabaseConfig():
		return database.NewDB(cfg.PostgreDSN)
	case cfg.HasSQLiteConfig():
		return database.NewSQLiteDB(cfg.SQLitePath)
	default:
		logger.Warn("No database configured, using in-memory SQLite; usage and subscriptions are lost on restart", nil)
		return database.NewSQLiteDB(":memory:")
	}
}

// newPayments returns nil when Stripe is not configured or fails to start
func newPayments(cfg *config.Config) *stripe.Manager {
	if !cfg.HasStripeConfig() {
		if cfg.HasPartialStripeConfig() {
			logger.Warn("Stripe needs STRIPE_SECRET_KEY, STRIPE_SUBSCRIPTION_PRICE and STRIPE_WEBHOOK_SECRET, /subscribe is disabled", nil)
			return nil
		}
		logger.InfoMsg("Stripe not configured, /subscribe is disabled")
		return nil
	}

	sm := stripe.NewManager(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.StripeSubscriptionPrice, cfg.BaseURL, consts.SubscriptionDays)
	if err := sm.Initialize(); err != nil {
		logger.Warn("Failed to initialize Stripe manager", map[string]interface{}{
			"error": err.Error(),
		})
		logger.InfoMsg("Continuing without Stripe payment support...")
		return nil
	}
	return sm
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	collector := metrics.NewCollector(nil)
	loc := cfg.Location()
	if err := collector.RegisterStore(db, func() string { return quota.DayKey(time.Now(), loc) }); err != nil {
		logger.Warn("Failed to export database stats", map[string]interface{}{
			"error": err.Error(),
		})
	}
	formatter := notify.NewFormatter(cfg.MaxFileSizeMB)

	transcriber, err := llm.NewWhisperTranscriber(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.WhisperModel)
	if err != nil {
		return err
	}
	translator, err := llm.NewTranslator(ctx, cfg)
	if err != nil {
		return err
	}

	orch := orchestrator.New(media.NewFFmpeg(cfg.FFmpegPath), transcriber, translator, cfg.MaxFileSizeBytes())
	orch.SetObserver(collector)

	opts := telegram.DefaultOptions()
	opts.MaxFileSize = cfg.MaxFileSizeBytes()
	opts.Metrics = collector
	bot, err := telegram.NewBot(cfg.TelegramBotToken, opts)
	if err != nil {
		return err
	}

	sessions := session.NewManager(cfg.SessionIdleTimeout)
	deps := workflow.Deps{
		Sessions:          sessions,
		Quota:             quota.NewTracker(db, cfg.DailyFreeLimit, loc),
		Runner:            orch,
		Files:             bot,
		Users:             db,
		Messenger:         bot,
		Formatter:         formatter,
		Metrics:           collector,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		JobTimeout:        cfg.JobTimeout,
	}

	payments := newPayments(cfg)
	if payments != nil {
		deps.Payments = payments
	}

	engine := workflow.NewEngine(deps)
	bot.SetHandler(engine)

	serverCfg := telegram.ServerConfig{
		Addr:    ":" + cfg.WebhookPort,
		Metrics: collector,
		Health:  db.Ping,
	}
	var processor *telegram.PaymentProcessor
	if payments != nil {
		processor = telegram.NewPaymentProcessor(db, engine, collector, payments.SubscriptionDays())
		defer processor.Close()
		serverCfg.Payments = payments
		serverCfg.Processor = processor
	}
	server := telegram.NewWebhookServer(serverCfg)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Webhook server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	sessions.Start(ctx)

	logger.InfoMsg("Ready to transcribe and translate")
	botErr := bot.Start(ctx)

	logger.Info("Shutting down...", bot.GetWorkerPoolStats())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := bot.Stop(); err != nil {
		logger.Warn("Bot did not stop cleanly", map[string]interface{}{"error": err.Error()})
	}
	if err := engine.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Jobs cancelled at shutdown", map[string]interface{}{"error": err.Error()})
	}
	sessions.Stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Webhook server did not stop cleanly", map[string]interface{}{"error": err.Error()})
	}

	return botErr
}
