package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"google.golang.org/api/gmail/v1"

	"github.com/Wimboro/finmail/internal/ledger"
)

type mailMock struct {
	ListCandidatesFunc func(ctx context.Context, query string) ([]*gmail.Message, error)
	MarkHandledFunc    func(ctx context.Context, id string) error
}

func (m *mailMock) ListCandidates(ctx context.Context, query string) ([]*gmail.Message, error) {
	return m.ListCandidatesFunc(ctx, query)
}

func (m *mailMock) MarkHandled(ctx context.Context, id string) error {
	if m.MarkHandledFunc == nil {
		return nil
	}
	return m.MarkHandledFunc(ctx, id)
}

type sheetMock struct {
	SnapshotFunc func(ctx context.Context, readRange string, headers []string) ([]ledger.Record, error)
	AppendFunc   func(ctx context.Context, writeRange string, rows [][]interface{}) (int64, error)
}

func (m *sheetMock) Snapshot(ctx context.Context, readRange string, headers []string) ([]ledger.Record, error) {
	return m.SnapshotFunc(ctx, readRange, headers)
}

func (m *sheetMock) Append(ctx context.Context, writeRange string, rows [][]interface{}) (int64, error) {
	return m.AppendFunc(ctx, writeRange, rows)
}

type classifierMock struct {
	ClassifyFunc func(ctx context.Context, text string, today civil.Date) (*ledger.RawClassification, error)
}

func (m *classifierMock) Classify(ctx context.Context, text string, today civil.Date) (*ledger.RawClassification, error) {
	return m.ClassifyFunc(ctx, text, today)
}

type notifierMock struct {
	transactions []ledger.Transaction
	batches      []int
}

func (m *notifierMock) NotifyTransaction(tx ledger.Transaction, account string) {
	m.transactions = append(m.transactions, tx)
}

func (m *notifierMock) NotifyBatch(count int, account string) {
	m.batches = append(m.batches, count)
}

func plainMessage(id, body string) *gmail.Message {
	return &gmail.Message{
		Id: id,
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Body: &gmail.MessagePartBody{
				Data: base64.URLEncoding.EncodeToString([]byte(body)),
			},
		},
	}
}

func expenseClassifier(amount float64) *classifierMock {
	return &classifierMock{
		ClassifyFunc: func(ctx context.Context, text string, today civil.Date) (*ledger.RawClassification, error) {
			a := ledger.Amount(amount)
			category := "Makanan"
			kind := "expense"
			return &ledger.RawClassification{
				Amount:          &a,
				Category:        &category,
				Description:     &text,
				TransactionType: &kind,
			}, nil
		},
	}
}

func newProcessor(mail MailService, sheets SheetService, cls Classifier, n Notifier) *Processor {
	return &Processor{
		Mail:           mail,
		Sheets:         sheets,
		Classifier:     cls,
		Notifier:       n,
		Account:        "personal",
		UserID:         "email-processor-personal",
		Query:          "is:unread",
		ReadRange:      "Sheet1!A:F",
		AppendRange:    "Sheet1!A1",
		Key:            ledger.DefaultKey,
		BatchThreshold: 5,
		Now: func() time.Time {
			return time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
		},
		Log: zerolog.Nop(),
	}
}

func TestRun_AppendsUniqueTransactions(t *testing.T) {
	msgs := make([]*gmail.Message, 6)
	for i := range msgs {
		msgs[i] = plainMessage(fmt.Sprintf("msg-%d", i), fmt.Sprintf("Beli kopi %d000", i+1))
	}

	var marked []string
	mail := &mailMock{
		ListCandidatesFunc: func(ctx context.Context, query string) ([]*gmail.Message, error) {
			return msgs, nil
		},
		MarkHandledFunc: func(ctx context.Context, id string) error {
			marked = append(marked, id)
			return nil
		},
	}

	var appended [][]interface{}
	sheets := &sheetMock{
		SnapshotFunc: func(ctx context.Context, readRange string, headers []string) ([]ledger.Record, error) {
			return []ledger.Record{{"date": "2024-01-01", "amount": "-5000"}}, nil
		},
		AppendFunc: func(ctx context.Context, writeRange string, rows [][]interface{}) (int64, error) {
			appended = rows
			return int64(len(rows)), nil
		},
	}

	cls := &classifierMock{
		ClassifyFunc: func(ctx context.Context, text string, today civil.Date) (*ledger.RawClassification, error) {
			a := ledger.Amount(20000)
			kind := "expense"
			return &ledger.RawClassification{
				Amount:          &a,
				Description:     &text,
				TransactionType: &kind,
			}, nil
		},
	}

	notifier := &notifierMock{}
	p := newProcessor(mail, sheets, cls, notifier)

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Processed != 6 || res.DuplicatesSkipped != 0 || res.Skipped != 0 {
		t.Errorf("Result = %+v", res)
	}
	if len(marked) != 6 {
		t.Errorf("marked %d messages, want 6", len(marked))
	}
	if len(appended) != 6 {
		t.Errorf("appended %d rows, want 6 (no header on populated sheet)", len(appended))
	}

	// Over the threshold: one batch summary, no per-transaction messages.
	if len(notifier.batches) != 1 || notifier.batches[0] != 6 {
		t.Errorf("batches = %v, want one batch of 6", notifier.batches)
	}
	if len(notifier.transactions) != 0 {
		t.Errorf("per-transaction notifications = %d, want 0", len(notifier.transactions))
	}
}

func TestRun_PerTransactionNotificationsUnderThreshold(t *testing.T) {
	mail := &mailMock{
		ListCandidatesFunc: func(ctx context.Context, query string) ([]*gmail.Message, error) {
			return []*gmail.Message{
				plainMessage("msg-1", "Beli kopi 20000"),
				plainMessage("msg-2", "Bayar parkir 5000"),
			}, nil
		},
	}
	sheets := &sheetMock{
		SnapshotFunc: func(ctx context.Context, readRange string, headers []string) ([]ledger.Record, error) {
			return []ledger.Record{{"date": "2024-01-01"}}, nil
		},
		AppendFunc: func(ctx context.Context, writeRange string, rows [][]interface{}) (int64, error) {
			return int64(len(rows)), nil
		},
	}

	notifier := &notifierMock{}
	p := newProcessor(mail, sheets, expenseClassifier(20000), notifier)

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Processed != 2 {
		t.Errorf("Processed = %d", res.Processed)
	}
	if len(notifier.transactions) != 2 || len(notifier.batches) != 0 {
		t.Errorf("notifications: %d transactions, %d batches", len(notifier.transactions), len(notifier.batches))
	}
}

func TestRun_SkipsDuplicates(t *testing.T) {
	mail := &mailMock{
		ListCandidatesFunc: func(ctx context.Context, query string) ([]*gmail.Message, error) {
			return []*gmail.Message{
				plainMessage("msg-1", "Beli kopi 20000"),
				plainMessage("msg-2", "Beli kopi 20000"),
			}, nil
		},
	}

	var marked []string
	mail.MarkHandledFunc = func(ctx context.Context, id string) error {
		marked = append(marked, id)
		return nil
	}

	appends := 0
	sheets := &sheetMock{
		SnapshotFunc: func(ctx context.Context, readRange string, headers []string) ([]ledger.Record, error) {
			// The staged transaction's own fields, already stored.
			return []ledger.Record{{
				"date":        "2024-03-15",
				"amount":      "-20000",
				"category":    "Makanan",
				"description": "Beli kopi 20000",
			}}, nil
		},
		AppendFunc: func(ctx context.Context, writeRange string, rows [][]interface{}) (int64, error) {
			appends++
			return int64(len(rows)), nil
		},
	}

	notifier := &notifierMock{}
	p := newProcessor(mail, sheets, expenseClassifier(20000), notifier)

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Processed != 0 || res.DuplicatesSkipped != 2 {
		t.Errorf("Result = %+v", res)
	}
	if len(marked) != 2 {
		t.Errorf("duplicates must still be marked handled, marked %d", len(marked))
	}
	if appends != 0 {
		t.Errorf("append called %d times, want 0", appends)
	}
	if len(notifier.transactions) != 0 || len(notifier.batches) != 0 {
		t.Error("no notifications expected for an all-duplicate run")
	}
}

func TestRun_ClassificationFailureLeavesMessageUnhandled(t *testing.T) {
	var marked []string
	mail := &mailMock{
		ListCandidatesFunc: func(ctx context.Context, query string) ([]*gmail.Message, error) {
			return []*gmail.Message{plainMessage("msg-1", "Newsletter with no transaction")}, nil
		},
		MarkHandledFunc: func(ctx context.Context, id string) error {
			marked = append(marked, id)
			return nil
		},
	}
	sheets := &sheetMock{
		SnapshotFunc: func(ctx context.Context, readRange string, headers []string) ([]ledger.Record, error) {
			return nil, nil
		},
		AppendFunc: func(ctx context.Context, writeRange string, rows [][]interface{}) (int64, error) {
			t.Error("append should not be called")
			return 0, nil
		},
	}
	cls := &classifierMock{
		ClassifyFunc: func(ctx context.Context, text string, today civil.Date) (*ledger.RawClassification, error) {
			return nil, errors.New("model returned no JSON object")
		},
	}

	p := newProcessor(mail, sheets, cls, &notifierMock{})

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Skipped != 1 || res.Processed != 0 {
		t.Errorf("Result = %+v", res)
	}
	if len(marked) != 0 {
		t.Errorf("failed messages must stay unhandled for the next run, marked %v", marked)
	}
}

func TestRun_UnreadableBodyLeavesMessageUnhandled(t *testing.T) {
	var marked []string
	mail := &mailMock{
		ListCandidatesFunc: func(ctx context.Context, query string) ([]*gmail.Message, error) {
			return []*gmail.Message{{Id: "msg-1", Payload: &gmail.MessagePart{MimeType: "text/plain"}}}, nil
		},
		MarkHandledFunc: func(ctx context.Context, id string) error {
			marked = append(marked, id)
			return nil
		},
	}
	sheets := &sheetMock{
		SnapshotFunc: func(ctx context.Context, readRange string, headers []string) ([]ledger.Record, error) {
			return nil, nil
		},
		AppendFunc: func(ctx context.Context, writeRange string, rows [][]interface{}) (int64, error) {
			return int64(len(rows)), nil
		},
	}
	cls := &classifierMock{
		ClassifyFunc: func(ctx context.Context, text string, today civil.Date) (*ledger.RawClassification, error) {
			t.Error("classifier should not be called for an empty body")
			return nil, nil
		},
	}

	p := newProcessor(mail, sheets, cls, &notifierMock{})

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d", res.Skipped)
	}
	if len(marked) != 0 {
		t.Errorf("unreadable messages must stay unhandled, marked %v", marked)
	}
}

func TestRun_NoCandidates(t *testing.T) {
	mail := &mailMock{
		ListCandidatesFunc: func(ctx context.Context, query string) ([]*gmail.Message, error) {
			return nil, nil
		},
	}
	sheets := &sheetMock{
		SnapshotFunc: func(ctx context.Context, readRange string, headers []string) ([]ledger.Record, error) {
			t.Error("snapshot should not be read for an empty run")
			return nil, nil
		},
	}

	p := newProcessor(mail, sheets, expenseClassifier(1000), &notifierMock{})

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res != (Result{Account: "personal"}) {
		t.Errorf("Result = %+v", res)
	}
}

func TestRun_ListFailureIsSetupError(t *testing.T) {
	mail := &mailMock{
		ListCandidatesFunc: func(ctx context.Context, query string) ([]*gmail.Message, error) {
			return nil, errors.New("invalid grant")
		},
	}

	p := newProcessor(mail, &sheetMock{}, expenseClassifier(1000), &notifierMock{})

	_, err := p.Run(context.Background())
	var setupErr *SetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("err = %v, want SetupError", err)
	}
	if setupErr.Stage != "mail backend" {
		t.Errorf("Stage = %q", setupErr.Stage)
	}
}

func TestRun_CommitFailure(t *testing.T) {
	mail := &mailMock{
		ListCandidatesFunc: func(ctx context.Context, query string) ([]*gmail.Message, error) {
			return []*gmail.Message{
				plainMessage("msg-1", "Beli kopi 20000"),
				plainMessage("msg-2", "Bayar parkir 5000"),
			}, nil
		},
	}
	sheets := &sheetMock{
		SnapshotFunc: func(ctx context.Context, readRange string, headers []string) ([]ledger.Record, error) {
			return []ledger.Record{{"date": "2024-01-01"}}, nil
		},
		AppendFunc: func(ctx context.Context, writeRange string, rows [][]interface{}) (int64, error) {
			return 0, errors.New("quota exceeded")
		},
	}

	p := newProcessor(mail, sheets, expenseClassifier(20000), &notifierMock{})

	_, err := p.Run(context.Background())
	var commitErr *CommitError
	if !errors.As(err, &commitErr) {
		t.Fatalf("err = %v, want CommitError", err)
	}
	if commitErr.Staged != 2 {
		t.Errorf("Staged = %d, want 2", commitErr.Staged)
	}
}

func TestRun_HeaderRowOnEmptySheet(t *testing.T) {
	mail := &mailMock{
		ListCandidatesFunc: func(ctx context.Context, query string) ([]*gmail.Message, error) {
			return []*gmail.Message{plainMessage("msg-1", "Beli kopi 20000")}, nil
		},
	}

	var appended [][]interface{}
	sheets := &sheetMock{
		SnapshotFunc: func(ctx context.Context, readRange string, headers []string) ([]ledger.Record, error) {
			return nil, nil
		},
		AppendFunc: func(ctx context.Context, writeRange string, rows [][]interface{}) (int64, error) {
			appended = rows
			return int64(len(rows)), nil
		},
	}

	p := newProcessor(mail, sheets, expenseClassifier(20000), &notifierMock{})

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Processed != 1 {
		t.Errorf("Processed = %d", res.Processed)
	}
	if len(appended) != 2 {
		t.Fatalf("appended %d rows, want header + transaction", len(appended))
	}
	if appended[0][0] != "Date" {
		t.Errorf("first row = %v, want header row", appended[0])
	}
	if appended[1][1] != "-20000" {
		t.Errorf("amount cell = %v, want -20000", appended[1][1])
	}
	if appended[1][4] != "email-processor-personal" {
		t.Errorf("user id cell = %v", appended[1][4])
	}
}
