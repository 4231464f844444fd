package ledger

import "strings"

// Key is the ordered set of field names that identify a transaction for
// duplicate detection. Two key schemas survive from divergent sheet layouts;
// neither is authoritative, so the active one is chosen by configuration.
type Key []string

var (
	// DefaultKey matches the transaction-ledger sheet layout.
	DefaultKey = Key{"date", "amount", "category", "description"}

	// ReceiptKey matches the receipt-oriented sheet layout.
	ReceiptKey = Key{"vendor_name", "transaction_date", "total_amount", "currency"}
)

// IsDuplicate reports whether the candidate matches any existing record on
// every key field, comparing stringified values case-insensitively. It short
// circuits on the first full match. An empty snapshot never matches.
func IsDuplicate(candidate Record, existing []Record, key Key) bool {
	if len(key) == 0 {
		key = DefaultKey
	}
	for _, rec := range existing {
		match := true
		for _, field := range key {
			if !strings.EqualFold(candidate[field], rec[field]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
