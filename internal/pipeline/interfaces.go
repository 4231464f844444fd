// Package pipeline runs one end-to-end pass over a mailbox: search, extract,
// classify, dedup, append, mark handled, notify.
package pipeline

import (
	"context"

	"cloud.google.com/go/civil"
	"google.golang.org/api/gmail/v1"

	"github.com/Wimboro/finmail/internal/ledger"
)

// MailService lists candidate messages and marks them handled.
type MailService interface {
	ListCandidates(ctx context.Context, query string) ([]*gmail.Message, error)
	MarkHandled(ctx context.Context, id string) error
}

// SheetService reads the existing ledger and appends staged rows.
type SheetService interface {
	Snapshot(ctx context.Context, readRange string, headers []string) ([]ledger.Record, error)
	Append(ctx context.Context, writeRange string, rows [][]interface{}) (int64, error)
}

// Classifier extracts a raw transaction from message text.
type Classifier interface {
	Classify(ctx context.Context, text string, today civil.Date) (*ledger.RawClassification, error)
}

// Notifier delivers run results. Implementations never fail the run.
type Notifier interface {
	NotifyTransaction(tx ledger.Transaction, account string)
	NotifyBatch(count int, account string)
}
