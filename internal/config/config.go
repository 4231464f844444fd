// Package config builds the process configuration once at startup. Nothing
// in the pipeline reads the environment directly; everything receives this
// struct (or a slice of it) explicitly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Wimboro/finmail/internal/classify"
	"github.com/Wimboro/finmail/internal/ledger"
)

// DefaultSearchQuery selects unread transaction-looking mail from the last day.
const DefaultSearchQuery = "subject:(Transfer OR Pembayaran OR Transaksi OR payment OR transaction) is:unread newer_than:1d"

// Config is the process configuration, assembled once at startup.
type Config struct {
	GeminiAPIKey string
	ModelName    string

	SpreadsheetID string
	AppendRange   string
	ReadRange     string

	SearchQuery    string
	Accounts       []string
	ProcessedLabel string

	// ProcessorUserID overrides the per-account user id written to the sheet.
	// When empty, rows carry "email-processor-<account>".
	ProcessorUserID string

	DedupKey ledger.Key

	// CredentialsJSON is an authorized-user credential for serverless
	// deployments; when set it takes precedence over per-account token files.
	CredentialsJSON   string
	TokenFileTemplate string

	NotifyBatchThreshold int

	Telegram TelegramConfig
	Server   ServerConfig
	LogLevel string
}

// TelegramConfig configures the optional Telegram notifier.
type TelegramConfig struct {
	Enabled  bool
	BotToken string
	ChatIDs  []string
}

// ServerConfig configures the HTTP trigger service.
type ServerConfig struct {
	Port string
}

// Load reads configuration from the environment, optionally seeded from a
// .env file. A missing .env file is not an error.
func Load() (*Config, error) {
	for _, envFile := range []string{".env", "../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	threshold, err := strconv.Atoi(getEnv("NOTIFY_BATCH_THRESHOLD", "5"))
	if err != nil || threshold < 1 {
		threshold = 5
	}

	cfg := &Config{
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		ModelName:    getEnv("GEMINI_MODEL", classify.DefaultModelName),

		SpreadsheetID: os.Getenv("SPREADSHEET_ID"),
		AppendRange:   getEnv("SHEET_RANGE", "Sheet1!A1"),
		ReadRange:     getEnv("SHEET_READ_RANGE", "Sheet1!A:F"),

		SearchQuery:    getEnv("GMAIL_SEARCH_QUERY", DefaultSearchQuery),
		Accounts:       splitList(getEnv("GMAIL_ACCOUNTS", "default")),
		ProcessedLabel: getEnv("PROCESSED_LABEL", "Processed-Financial"),

		ProcessorUserID: os.Getenv("PROCESSOR_USER_ID"),

		DedupKey: parseDedupKey(os.Getenv("DEDUP_KEY_FIELDS")),

		CredentialsJSON:   os.Getenv("GOOGLE_CREDENTIALS_JSON"),
		TokenFileTemplate: getEnv("TOKEN_FILE_TEMPLATE", "token_%s.json"),

		NotifyBatchThreshold: threshold,

		Telegram: TelegramConfig{
			Enabled:  strings.EqualFold(getEnv("TELEGRAM_ENABLED", "false"), "true"),
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			ChatIDs:  telegramChatIDs(),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if len(cfg.Accounts) == 0 {
		cfg.Accounts = []string{"default"}
	}
	return cfg, nil
}

// UserID returns the user id written into sheet rows for an account.
func (c *Config) UserID(account string) string {
	if c.ProcessorUserID != "" {
		return c.ProcessorUserID
	}
	return "email-processor-" + account
}

// TokenFile returns the token file path for an account.
func (c *Config) TokenFile(account string) string {
	return fmt.Sprintf(c.TokenFileTemplate, account)
}

func parseDedupKey(raw string) ledger.Key {
	fields := splitList(raw)
	if len(fields) == 0 {
		return ledger.DefaultKey
	}
	return ledger.Key(fields)
}

func telegramChatIDs() []string {
	ids := splitList(os.Getenv("TELEGRAM_CHAT_IDS"))
	if len(ids) == 0 {
		// Single-chat variable kept for older deployments.
		if id := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); id != "" {
			ids = []string{id}
		}
	}
	return ids
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
