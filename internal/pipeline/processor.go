package pipeline

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Wimboro/finmail/internal/extract"
	"github.com/Wimboro/finmail/internal/ledger"
)

// Result summarizes one pipeline run over a single account.
type Result struct {
	Account           string `json:"account"`
	Processed         int    `json:"processed"`
	DuplicatesSkipped int    `json:"duplicates_skipped"`
	Skipped           int    `json:"skipped"`
}

// Processor runs the pipeline for one account. All collaborators are
// injected; the processor itself holds no API clients.
type Processor struct {
	Mail       MailService
	Sheets     SheetService
	Classifier Classifier
	Notifier   Notifier

	Account string
	// UserID is written into the user_id column of every appended row.
	UserID      string
	Query       string
	ReadRange   string
	AppendRange string
	Key         ledger.Key

	// BatchThreshold switches per-transaction notifications to a single
	// batch summary once a run stages more than this many rows.
	BatchThreshold int

	Now func() time.Time
	Log zerolog.Logger
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Run executes one full pass: list candidates, snapshot the ledger once,
// then per message extract, classify, dedup and mark handled, and finally
// commit all staged rows in a single append.
//
// Messages are marked handled before the append commits. A failed commit
// therefore loses the staged rows from this run; Run surfaces that as a
// CommitError so callers can alert on it.
func (p *Processor) Run(ctx context.Context) (Result, error) {
	res := Result{Account: p.Account}
	log := p.Log.With().
		Str("run_id", uuid.New().String()).
		Str("account", p.Account).
		Logger()

	msgs, err := p.Mail.ListCandidates(ctx, p.Query)
	if err != nil {
		return res, &SetupError{Stage: "mail backend", Err: err}
	}
	if len(msgs) == 0 {
		log.Info().Msg("No candidate messages found")
		return res, nil
	}
	log.Info().Int("candidates", len(msgs)).Msg("Processing candidate messages")

	// The snapshot is taken once per run. Two identical transactions arriving
	// in the same run are both appended; only rows already in the sheet are
	// deduplicated against.
	snapshot, err := p.Sheets.Snapshot(ctx, p.ReadRange, ledger.SnapshotHeaders)
	if err != nil {
		return res, &SetupError{Stage: "store backend", Err: err}
	}

	now := p.now()
	today := civil.DateOf(now)

	var staged []ledger.Transaction
	for _, msg := range msgs {
		body := extract.Body(msg.Payload)
		if body == "" {
			log.Warn().Str("message_id", msg.Id).Msg("No readable body, skipping")
			res.Skipped++
			continue
		}

		raw, err := p.Classifier.Classify(ctx, body, today)
		if err != nil {
			log.Warn().Err(err).Str("message_id", msg.Id).Msg("Classification failed, skipping")
			res.Skipped++
			continue
		}

		tx := ledger.Normalize(raw, today, p.UserID)
		tx.ProcessedAt = now

		if ledger.IsDuplicate(tx.Fields(), snapshot, p.Key) {
			log.Info().
				Str("message_id", msg.Id).
				Str("description", tx.Description).
				Msg("Duplicate transaction, skipping")
			res.DuplicatesSkipped++
			p.markHandled(ctx, log, msg.Id)
			continue
		}

		staged = append(staged, tx)
		p.markHandled(ctx, log, msg.Id)
	}

	if len(staged) == 0 {
		log.Info().
			Int("duplicates_skipped", res.DuplicatesSkipped).
			Int("skipped", res.Skipped).
			Msg("Nothing to append")
		return res, nil
	}

	rows := make([][]interface{}, 0, len(staged)+1)
	if len(snapshot) == 0 {
		rows = append(rows, ledger.HeaderRow())
	}
	for _, tx := range staged {
		rows = append(rows, tx.Row())
	}

	if _, err := p.Sheets.Append(ctx, p.AppendRange, rows); err != nil {
		for _, tx := range staged {
			log.Error().
				Str("date", tx.Date.String()).
				Str("amount", ledger.FormatAmount(tx.Amount)).
				Str("category", tx.Category).
				Str("description", tx.Description).
				Msg("Staged transaction lost by failed commit")
		}
		return res, &CommitError{Staged: len(staged), Err: err}
	}
	res.Processed = len(staged)

	log.Info().
		Int("processed", res.Processed).
		Int("duplicates_skipped", res.DuplicatesSkipped).
		Int("skipped", res.Skipped).
		Msg("Run completed")

	if p.Notifier != nil {
		if res.Processed > p.BatchThreshold {
			p.Notifier.NotifyBatch(res.Processed, p.Account)
		} else {
			for _, tx := range staged {
				p.Notifier.NotifyTransaction(tx, p.Account)
			}
		}
	}

	return res, nil
}

// markHandled is best effort: an unmarked message is picked up again on the
// next run and deduplicated against the sheet, which is safe. Aborting the
// run here would lose the rest of the batch.
func (p *Processor) markHandled(ctx context.Context, log zerolog.Logger, id string) {
	if err := p.Mail.MarkHandled(ctx, id); err != nil {
		log.Error().Err(err).Str("message_id", id).Msg("Failed to mark message handled")
	}
}
