package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Wimboro/finmail/internal/api/handlers"
	"github.com/Wimboro/finmail/internal/api/middleware"
	"github.com/Wimboro/finmail/internal/classify"
	"github.com/Wimboro/finmail/internal/config"
	"github.com/Wimboro/finmail/internal/jobs"
	"github.com/Wimboro/finmail/internal/jobs/inmemory"
	"github.com/Wimboro/finmail/internal/logger"
	"github.com/Wimboro/finmail/internal/notify"
	"github.com/Wimboro/finmail/internal/pipeline"
	"github.com/Wimboro/finmail/internal/runner"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Parse command-line flags
	port := flag.String("port", cfg.Server.Port, "HTTP server port")
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)

	if cfg.GeminiAPIKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY is required")
	}
	if cfg.SpreadsheetID == "" {
		log.Fatal().Msg("SPREADSHEET_ID is required")
	}

	ctx := context.Background()

	classifier, err := classify.NewGemini(ctx, cfg.GeminiAPIKey, cfg.ModelName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	var notifier pipeline.Notifier = notify.Noop{}
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" && len(cfg.Telegram.ChatIDs) > 0 {
		notifier = notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatIDs, log)
	}

	// One guard over all triggers: a synchronous process request and a
	// webhook-scheduled job must never run against the mailbox at once.
	pipelineRunner := runner.NewExclusive(runner.New(cfg, classifier, notifier, log))

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		processJob, ok := job.(*jobs.ProcessAccountJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", processJob.JobID).
			Str("account", processJob.Account).
			Str("trigger", processJob.Trigger).
			Msg("Processing job")

		res, err := pipelineRunner.Run(ctx, processJob.Account)
		if err != nil {
			log.Error().Err(err).
				Str("job_id", processJob.JobID).
				Str("account", processJob.Account).
				Msg("Pipeline run failed")
			return err
		}

		log.Info().
			Str("job_id", processJob.JobID).
			Str("account", processJob.Account).
			Int("processed", res.Processed).
			Int("duplicates_skipped", res.DuplicatesSkipped).
			Int("skipped", res.Skipped).
			Msg("Pipeline run completed")
		return nil
	}

	// Start job consumer in background
	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	processHandler := handlers.NewProcessHandler(pipelineRunner, cfg.Accounts, log)
	webhookHandler := handlers.NewWebhookHandler(jobQueue, cfg.Accounts, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()
	mux.HandleFunc("/api/process", processHandler.Process)
	mux.HandleFunc("/api/webhook", webhookHandler.Webhook)
	mux.HandleFunc("/api/jobs", jobsHandler.Jobs)
	mux.HandleFunc("/api/jobs/", jobsHandler.Jobs)
	mux.HandleFunc("/health", handlers.Health)

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.CORS(mux),
		),
	)

	// The process endpoint runs the pipeline inline, so the write timeout
	// must cover a full run including the model calls.
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for the in-flight run
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
