// Interactive inspection tool: list recent mail, run single messages through
// the classifier, and trial the duplicate check without touching the sheet.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/Wimboro/finmail/internal/classify"
	"github.com/Wimboro/finmail/internal/config"
	"github.com/Wimboro/finmail/internal/extract"
	"github.com/Wimboro/finmail/internal/googleauth"
	"github.com/Wimboro/finmail/internal/ledger"
	"github.com/Wimboro/finmail/internal/logger"
	"github.com/Wimboro/finmail/internal/mailbox"
	"github.com/Wimboro/finmail/internal/notify"
	"github.com/Wimboro/finmail/internal/sheet"
)

type session struct {
	cfg        *config.Config
	mail       *mailbox.Client
	sheets     *sheet.Client
	classifier *classify.Gemini
	in         *bufio.Reader
	log        zerolog.Logger

	emails []mailbox.Summary
	// existing and receipts cache the same sheet range under the two column
	// layouts; they are never interchangeable.
	existing   []ledger.Record
	receipts   []ledger.Record
	timeRange  string
	maxResults int64
}

func main() {
	account := flag.String("account", "", "Account to inspect (default: first configured account)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel("warn")

	if *account == "" {
		*account = cfg.Accounts[0]
	}

	ctx := context.Background()

	var opt option.ClientOption
	if cfg.CredentialsJSON != "" {
		opt, err = googleauth.FromJSON(ctx, cfg.CredentialsJSON)
	} else {
		opt, err = googleauth.FromTokenFile(ctx, cfg.TokenFile(*account))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load credentials for %s: %v\n", *account, err)
		os.Exit(1)
	}

	mail, err := mailbox.New(ctx, "", log, opt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create Gmail client: %v\n", err)
		os.Exit(1)
	}

	s := &session{
		cfg:        cfg,
		mail:       mail,
		in:         bufio.NewReader(os.Stdin),
		log:        log,
		timeRange:  "1d",
		maxResults: 10,
	}

	if cfg.SpreadsheetID != "" {
		if s.sheets, err = sheet.New(ctx, cfg.SpreadsheetID, opt); err != nil {
			fmt.Printf("Sheets unavailable, duplicate checks disabled: %v\n", err)
		}
	} else {
		fmt.Println("No SPREADSHEET_ID configured, duplicate checks disabled.")
	}

	if cfg.GeminiAPIKey != "" {
		if s.classifier, err = classify.NewGemini(ctx, cfg.GeminiAPIKey, cfg.ModelName); err != nil {
			fmt.Printf("Gemini unavailable, analysis disabled: %v\n", err)
		}
	} else {
		fmt.Println("No GEMINI_API_KEY configured, analysis disabled.")
	}

	s.run(ctx, *account)
}

func (s *session) run(ctx context.Context, account string) {
	fmt.Printf("Inspecting account %q\n", account)

	for {
		fmt.Println("\n=== Mailbox Debug Menu ===")
		fmt.Println("1. List recent emails")
		fmt.Println("2. Change time range")
		fmt.Println("3. List recent financial emails only")
		fmt.Println("4. Select and analyze an email")
		fmt.Println("5. Trial the duplicate check")
		fmt.Println("6. Exit")

		switch s.prompt("\nEnter your choice (1-6): ") {
		case "1":
			s.listEmails(ctx, false)
		case "2":
			s.changeRange()
		case "3":
			s.listEmails(ctx, true)
		case "4":
			s.analyzeEmail(ctx)
		case "5":
			s.trialDuplicate(ctx)
		case "6":
			fmt.Println("Exiting.")
			return
		default:
			fmt.Println("Invalid choice. Please enter a number between 1 and 6.")
		}
	}
}

func (s *session) prompt(msg string) string {
	fmt.Print(msg)
	line, err := s.in.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

func (s *session) listEmails(ctx context.Context, financialOnly bool) {
	emails, err := s.mail.Recent(ctx, s.timeRange, s.maxResults, financialOnly)
	if err != nil {
		fmt.Printf("Failed to list emails: %v\n", err)
		return
	}
	s.emails = emails

	if len(emails) == 0 {
		fmt.Println("No messages found in the specified time range.")
		return
	}

	fmt.Println("\n=== Recent Emails ===")
	for i, e := range emails {
		subject := e.Subject
		if len(subject) > 50 {
			subject = subject[:47] + "..."
		}
		fmt.Printf("%2d. [%s] %-50s %s\n", i+1, e.Date, subject, e.From)
	}
}

func (s *session) changeRange() {
	fmt.Println("\nTime Range Options:")
	fmt.Println("- Xh: X hours (e.g., 12h)")
	fmt.Println("- Xd: X days (e.g., 3d)")
	fmt.Println("- Xw: X weeks (e.g., 1w)")
	fmt.Println("- Xm: X months (e.g., 1m)")

	if tr := s.prompt("\nEnter time range (default: 1d): "); tr != "" {
		s.timeRange = tr
	}
	if raw := s.prompt("Maximum number of emails to retrieve (default: 10): "); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			s.maxResults = n
		} else {
			fmt.Println("Invalid number, using default: 10")
			s.maxResults = 10
		}
	}
}

func (s *session) analyzeEmail(ctx context.Context) {
	if len(s.emails) == 0 {
		fmt.Println("No emails loaded. Please list emails first (option 1).")
		return
	}
	if s.classifier == nil {
		fmt.Println("Analysis requires GEMINI_API_KEY.")
		return
	}

	raw := s.prompt("\nEnter the number of the email to analyze: ")
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 1 || idx > len(s.emails) {
		fmt.Println("Invalid input. Please enter a listed number.")
		return
	}
	email := s.emails[idx-1]

	fmt.Println("\n=== Selected Email Details ===")
	fmt.Printf("Subject: %s\nFrom: %s\nDate: %s\n", email.Subject, email.From, email.Date)

	body := extract.Body(email.Payload)
	if body == "" {
		fmt.Println("Could not extract email body content.")
		return
	}

	preview := body
	if len(preview) > 300 {
		preview = preview[:300]
	}
	fmt.Println("\n--- Email Content Preview (first 300 chars) ---")
	fmt.Println(preview)

	if !strings.EqualFold(s.prompt("\nProcess this email? (y/n): "), "y") {
		return
	}

	today := civil.DateOf(time.Now())
	classified, err := s.classifier.Classify(ctx, body, today)
	if err != nil {
		fmt.Printf("Classification failed: %v\n", err)
		return
	}

	tx := ledger.Normalize(classified, today, s.cfg.UserID("debug"))
	tx.ProcessedAt = time.Now()

	kind := "Pemasukan"
	if tx.Amount < 0 {
		kind = "Pengeluaran"
	}
	fmt.Println("\n=== Extracted Financial Data ===")
	fmt.Printf("Date: %s\n", tx.Date)
	fmt.Printf("Amount: %s\n", notify.FormatRupiah(tx.Amount))
	fmt.Printf("Type: %s\n", kind)
	fmt.Printf("Category: %s\n", tx.Category)
	fmt.Printf("Description: %s\n", tx.Description)

	if existing := s.loadExisting(ctx); len(existing) > 0 {
		if ledger.IsDuplicate(tx.Fields(), existing, s.cfg.DedupKey) {
			fmt.Println("\nWARNING: This transaction is a DUPLICATE of an existing entry in the sheet.")
		} else {
			fmt.Println("\nThis transaction is NEW and not a duplicate.")
		}
	}

	if strings.EqualFold(s.prompt("\nSave extracted data to JSON file? (y/n): "), "y") {
		if file, err := saveJSON(tx, email.ID); err != nil {
			fmt.Printf("Failed to save: %v\n", err)
		} else {
			fmt.Printf("Data saved to %s\n", file)
		}
	}

	if strings.EqualFold(s.prompt("\nMark email as read? (y/n): "), "y") {
		if err := s.mail.MarkRead(ctx, email.ID); err != nil {
			fmt.Printf("Failed to mark as read: %v\n", err)
		} else {
			fmt.Println("Marked as read.")
		}
	}
}

func (s *session) trialDuplicate(ctx context.Context) {
	existing := s.loadReceipts(ctx)
	if len(existing) == 0 {
		fmt.Println("No existing data found in the sheet or unable to access the sheet.")
		return
	}

	fmt.Println("\n=== Duplicate Checking ===")
	fmt.Println("Use this to check if a receipt would be considered a duplicate.")

	candidate := ledger.Record{
		"vendor_name":      s.prompt("Enter vendor name: "),
		"transaction_date": s.prompt("Enter transaction date (YYYY-MM-DD): "),
		"total_amount":     s.prompt("Enter amount: "),
		"currency":         s.prompt("Enter currency: "),
	}

	if ledger.IsDuplicate(candidate, existing, ledger.ReceiptKey) {
		fmt.Println("This transaction would be considered a DUPLICATE.")
	} else {
		fmt.Println("This transaction would be considered NEW (not a duplicate).")
	}
}

func (s *session) loadExisting(ctx context.Context) []ledger.Record {
	if s.existing == nil {
		s.existing = s.snapshot(ctx, ledger.SnapshotHeaders)
	}
	return s.existing
}

// loadReceipts reads the same range projected onto the receipt layout, for
// the duplicate trial. Kept separate from the ledger-layout cache.
func (s *session) loadReceipts(ctx context.Context) []ledger.Record {
	if s.receipts == nil {
		s.receipts = s.snapshot(ctx, ledger.ReceiptHeaders)
	}
	return s.receipts
}

func (s *session) snapshot(ctx context.Context, headers []string) []ledger.Record {
	if s.sheets == nil {
		return nil
	}
	records, err := s.sheets.Snapshot(ctx, s.cfg.ReadRange, headers)
	if err != nil {
		fmt.Printf("Failed to read existing data: %v\n", err)
		return nil
	}
	return records
}

func saveJSON(tx ledger.Transaction, emailID string) (string, error) {
	file := fmt.Sprintf("extracted_%s_%s.json", emailID, time.Now().Format("20060102_150405"))
	data, err := json.MarshalIndent(tx.Fields(), "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return "", err
	}
	return file, nil
}
