package ledger

import (
	"fmt"
	"strconv"
)

// Record is one stored row keyed by column name.
type Record map[string]string

// RecordFromRow projects a raw sheet row onto the given headers. Rows shorter
// than the header set (legacy or hand-edited entries) are padded with empty
// strings so every header is present.
func RecordFromRow(headers []string, row []interface{}) Record {
	rec := make(Record, len(headers))
	for i, h := range headers {
		if i < len(row) {
			rec[h] = cellString(row[i])
		} else {
			rec[h] = ""
		}
	}
	return rec
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
