package ledger

import (
	"math"
	"strings"

	"cloud.google.com/go/civil"
)

// DefaultCategory is the sentinel for transactions the classifier could not
// categorize ("other" in Indonesian, matching the sheet's existing rows).
const DefaultCategory = "Lainnya"

// Normalize turns a raw classification into a fully-defaulted transaction.
// The sign of the amount is derived from transaction_type alone: expenses are
// negative, everything else positive, regardless of the sign the classifier
// reported. Missing fields get their documented defaults, so no field of the
// result is ever empty except the description.
func Normalize(raw *RawClassification, today civil.Date, account string) Transaction {
	t := Transaction{
		Date:          today,
		Category:      DefaultCategory,
		SourceAccount: account,
	}
	if raw == nil {
		return t
	}

	if raw.Amount != nil {
		amount := math.Abs(float64(*raw.Amount))
		if raw.TransactionType != nil && TransactionType(strings.ToLower(*raw.TransactionType)) == TypeExpense {
			amount = -amount
		}
		t.Amount = amount
	}
	if raw.Category != nil && strings.TrimSpace(*raw.Category) != "" {
		t.Category = *raw.Category
	}
	if raw.Description != nil {
		t.Description = *raw.Description
	}
	if raw.Date != nil && *raw.Date != "" {
		if d, err := civil.ParseDate(*raw.Date); err == nil {
			t.Date = d
		}
	}
	return t
}
