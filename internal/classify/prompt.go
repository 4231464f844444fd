package classify

import (
	"fmt"

	"cloud.google.com/go/civil"
)

// BuildPrompt constructs the extraction prompt. The model must return a
// single JSON object with exactly the five transaction fields, default the
// date to today when the text names none, classify transaction_type from
// Indonesian lexical cues, and return null for anything it cannot determine.
func BuildPrompt(text string, today civil.Date) string {
	date := today.String()
	return fmt.Sprintf(`Extract financial information from this Indonesian text: "%s"
Today's date is %s.

Return a JSON object with these fields:
- amount: the monetary amount (numeric value only, without currency symbols)
- category: the spending/income category
- description: brief description of the transaction
- transaction_type: "income" if this is money received, or "expense" if this is money spent
- date: the date of the transaction in YYYY-MM-DD format

For the date field, if no specific date is mentioned, use today's date (%s).

For transaction_type, analyze the context carefully:
- INCOME indicators (set to "income"): "terima", "dapat", "pemasukan", "masuk", "diterima", "gaji", "bonus", etc.
- EXPENSE indicators (set to "expense"): "beli", "bayar", "belanja", "pengeluaran", "keluar", "dibayar", etc.

If transaction_type is "income", amount should be positive. If "expense", amount should be negative.

If still unclear, default to "expense".

For category, try to identify specific categories like:
- Income categories: "Gaji", "Bonus", "Investasi", "Hadiah", "Penjualan", "Bisnis"
- Expense categories: "Makanan", "Transportasi", "Belanja", "Hiburan", "Tagihan", "Kesehatan", "Pendidikan"

If any field is unclear, set it to null.`, text, date, date)
}
