// Package notify delivers per-run Telegram notifications. Delivery is best
// effort: a failed send is logged and never fails the run.
package notify

import (
	"strconv"
	"strings"

	"github.com/Wimboro/finmail/internal/ledger"
)

// Noop discards all notifications. Used when Telegram is not configured.
type Noop struct{}

func (Noop) NotifyTransaction(tx ledger.Transaction, account string) {}

func (Noop) NotifyBatch(count int, account string) {}

// FormatRupiah renders an amount as "Rp 1,500,000" with no decimals, using
// a "-Rp " prefix for expenses.
func FormatRupiah(amount float64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := strconv.FormatFloat(amount, 'f', 0, 64)

	var b strings.Builder
	if neg {
		b.WriteString("-Rp ")
	} else {
		b.WriteString("Rp ")
	}
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
		if len(s) > lead {
			b.WriteByte(',')
		}
	}
	for i := lead; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}
