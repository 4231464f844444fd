package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// TransactionType tags a classification as money received or money spent.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Amount is a monetary value that decodes from either a JSON number or a
// numeric string, since the classifier is not consistent about which it emits.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if len(s) >= 2 && s[0] == '"' {
		var quoted string
		if err := json.Unmarshal(b, &quoted); err != nil {
			return err
		}
		s = strings.TrimSpace(quoted)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("amount %q is not numeric", s)
	}
	*a = Amount(v)
	return nil
}

// RawClassification is the unvalidated structured output of the classifier.
// Every field may be null; the model is told to return null rather than guess.
type RawClassification struct {
	Amount          *Amount `json:"amount"`
	Category        *string `json:"category"`
	Description     *string `json:"description"`
	TransactionType *string `json:"transaction_type"`
	Date            *string `json:"date"`
}

// Transaction is one normalized financial record extracted from a message.
// Transactions are immutable once constructed; they are either appended to
// the sheet or discarded as duplicates, never updated in place.
type Transaction struct {
	Date          civil.Date
	Amount        float64
	Category      string
	Description   string
	SourceAccount string
	ProcessedAt   time.Time
}

// SnapshotHeaders names the sheet columns, in order, when reading rows back.
var SnapshotHeaders = []string{"date", "amount", "category", "description", "user_id", "timestamp"}

// ReceiptHeaders names the columns of the receipt-oriented sheet layout,
// read back for duplicate checks under ReceiptKey.
var ReceiptHeaders = []string{"vendor_name", "transaction_date", "total_amount", "currency", "description", "transaction_type"}

// HeaderRow is the display header written once when the sheet is empty.
func HeaderRow() []interface{} {
	return []interface{}{"Date", "Amount", "Category", "Description", "User ID", "Timestamp"}
}

// FormatAmount renders an amount the same way on both sides of the duplicate
// check, so a staged 50000 never compares unequal to a stored "50000".
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Row maps the transaction onto the six-column sheet schema.
func (t Transaction) Row() []interface{} {
	return []interface{}{
		t.Date.String(),
		FormatAmount(t.Amount),
		t.Category,
		t.Description,
		t.SourceAccount,
		t.ProcessedAt.Format("2006-01-02 15:04:05"),
	}
}

// Fields projects the transaction onto snapshot column names for dedup.
func (t Transaction) Fields() Record {
	return Record{
		"date":        t.Date.String(),
		"amount":      FormatAmount(t.Amount),
		"category":    t.Category,
		"description": t.Description,
		"user_id":     t.SourceAccount,
		"timestamp":   t.ProcessedAt.Format("2006-01-02 15:04:05"),
	}
}
