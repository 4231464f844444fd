// Package runner assembles and executes a pipeline run for one account:
// credentials, API clients, processor.
package runner

import (
	"context"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/Wimboro/finmail/internal/config"
	"github.com/Wimboro/finmail/internal/googleauth"
	"github.com/Wimboro/finmail/internal/mailbox"
	"github.com/Wimboro/finmail/internal/pipeline"
	"github.com/Wimboro/finmail/internal/sheet"
)

// Runner builds fresh API clients per run. Clients are not cached: a run is
// rare relative to token lifetimes, and rebuilding avoids holding expired
// credentials across serverless invocations.
type Runner struct {
	cfg        *config.Config
	classifier pipeline.Classifier
	notifier   pipeline.Notifier
	log        zerolog.Logger
}

// New creates a runner over shared configuration and collaborators.
func New(cfg *config.Config, classifier pipeline.Classifier, notifier pipeline.Notifier, log zerolog.Logger) *Runner {
	return &Runner{cfg: cfg, classifier: classifier, notifier: notifier, log: log}
}

// Run executes one pipeline pass for the given account.
func (r *Runner) Run(ctx context.Context, account string) (pipeline.Result, error) {
	opt, err := r.credentials(ctx, account)
	if err != nil {
		return pipeline.Result{Account: account}, &pipeline.SetupError{Stage: "credentials", Err: err}
	}

	log := r.log.With().Str("account", account).Logger()

	mail, err := mailbox.New(ctx, r.cfg.ProcessedLabel, log, opt)
	if err != nil {
		return pipeline.Result{Account: account}, &pipeline.SetupError{Stage: "mail backend", Err: err}
	}

	sheets, err := sheet.New(ctx, r.cfg.SpreadsheetID, opt)
	if err != nil {
		return pipeline.Result{Account: account}, &pipeline.SetupError{Stage: "store backend", Err: err}
	}

	p := &pipeline.Processor{
		Mail:           mail,
		Sheets:         sheets,
		Classifier:     r.classifier,
		Notifier:       r.notifier,
		Account:        account,
		UserID:         r.cfg.UserID(account),
		Query:          r.cfg.SearchQuery,
		ReadRange:      r.cfg.ReadRange,
		AppendRange:    r.cfg.AppendRange,
		Key:            r.cfg.DedupKey,
		BatchThreshold: r.cfg.NotifyBatchThreshold,
		Log:            log,
	}
	return p.Run(ctx)
}

// credentials prefers the in-memory credential when set, falling back to the
// per-account token file.
func (r *Runner) credentials(ctx context.Context, account string) (option.ClientOption, error) {
	if r.cfg.CredentialsJSON != "" {
		return googleauth.FromJSON(ctx, r.cfg.CredentialsJSON)
	}
	return googleauth.FromTokenFile(ctx, r.cfg.TokenFile(account))
}
