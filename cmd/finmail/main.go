package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Wimboro/finmail/internal/classify"
	"github.com/Wimboro/finmail/internal/config"
	"github.com/Wimboro/finmail/internal/logger"
	"github.com/Wimboro/finmail/internal/notify"
	"github.com/Wimboro/finmail/internal/pipeline"
	"github.com/Wimboro/finmail/internal/runner"
)

func main() {
	// Parse CLI flags
	account := flag.String("account", "", "Process a single account instead of all configured accounts")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.LogLevel)

	if cfg.GeminiAPIKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY is required")
	}
	if cfg.SpreadsheetID == "" {
		log.Fatal().Msg("SPREADSHEET_ID is required")
	}

	// Create context with timeout so a stuck API call doesn't hang the run
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	classifier, err := classify.NewGemini(ctx, cfg.GeminiAPIKey, cfg.ModelName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	var notifier pipeline.Notifier = notify.Noop{}
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" && len(cfg.Telegram.ChatIDs) > 0 {
		notifier = notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatIDs, log)
	}

	r := runner.New(cfg, classifier, notifier, log)

	accounts := cfg.Accounts
	if *account != "" {
		accounts = []string{*account}
	}

	failed := false
	totalProcessed := 0
	for _, acct := range accounts {
		res, err := r.Run(ctx, acct)
		if err != nil {
			failed = true

			var commitErr *pipeline.CommitError
			if errors.As(err, &commitErr) {
				log.Error().Err(err).
					Str("account", acct).
					Int("staged", commitErr.Staged).
					Msg("Commit failed, staged transactions were logged above")
				continue
			}
			log.Error().Err(err).Str("account", acct).Msg("Run failed")
			continue
		}
		totalProcessed += res.Processed
	}

	fmt.Printf("Processed %d transactions across %d account(s).\n", totalProcessed, len(accounts))
	if failed {
		os.Exit(1)
	}
}
