// Package sheet wraps the Google Sheets API: a read of the existing ledger
// rows for duplicate checks, and a single batched append per run.
package sheet

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Wimboro/finmail/internal/ledger"
)

// Client wraps a Sheets service bound to one spreadsheet.
type Client struct {
	svc           *sheets.Service
	spreadsheetID string
}

// New creates a sheet client for the given spreadsheet.
func New(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Client, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheet: create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// Snapshot reads the ledger range and projects each data row onto the given
// headers. The first row is assumed to be the header row and is skipped; an
// empty or header-only sheet yields nil.
func (c *Client) Snapshot(ctx context.Context, readRange string, headers []string) ([]ledger.Record, error) {
	res, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheet: read %s: %w", readRange, err)
	}
	if len(res.Values) <= 1 {
		return nil, nil
	}

	records := make([]ledger.Record, 0, len(res.Values)-1)
	for _, row := range res.Values[1:] {
		records = append(records, ledger.RecordFromRow(headers, row))
	}
	return records, nil
}

// Append writes all staged rows in one call and returns the number of rows
// the backend reports as written.
func (c *Client) Append(ctx context.Context, writeRange string, rows [][]interface{}) (int64, error) {
	body := &sheets.ValueRange{Values: rows}
	res, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, writeRange, body).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("sheet: append %d rows: %w", len(rows), err)
	}
	if res.Updates == nil {
		return 0, nil
	}
	return res.Updates.UpdatedRows, nil
}
