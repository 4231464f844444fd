package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Wimboro/finmail/internal/ledger"
)

const defaultRequestTimeout = 10 * time.Second

// Telegram broadcasts notifications to one or more chats via the Bot API.
type Telegram struct {
	token   string
	chatIDs []string
	client  *http.Client
	baseURL string
	now     func() time.Time
	log     zerolog.Logger
}

// NewTelegram creates a notifier for the given bot token and chat ids.
func NewTelegram(token string, chatIDs []string, log zerolog.Logger) *Telegram {
	return &Telegram{
		token:   token,
		chatIDs: chatIDs,
		client:  &http.Client{Timeout: defaultRequestTimeout},
		baseURL: "https://api.telegram.org/bot" + token,
		now:     time.Now,
		log:     log,
	}
}

// NotifyTransaction sends a per-transaction message to every configured chat.
func (t *Telegram) NotifyTransaction(tx ledger.Transaction, account string) {
	kind := "➕ Pemasukan"
	if tx.Amount < 0 {
		kind = "➖ Pengeluaran"
	}

	msg := fmt.Sprintf("*Ada %s baru nih*\n\n", kind)
	msg += fmt.Sprintf("📅 Tanggal: %s\n", tx.Date.In(time.UTC).Format("02/01/2006"))
	msg += fmt.Sprintf("💰 Jumlah: %s\n", FormatRupiah(tx.Amount))
	msg += fmt.Sprintf("🏷️ Kategori: %s\n", tx.Category)
	if tx.Description != "" {
		msg += fmt.Sprintf("📝 Deskripsi: %s\n", tx.Description)
	}
	msg += fmt.Sprintf("\n📧 Sumber: Email dari %s", account)

	t.broadcast(msg)
}

// NotifyBatch sends a single summary message covering the whole run.
func (t *Telegram) NotifyBatch(count int, account string) {
	msg := "*📊 Update Transaksi Massal*\n\n"
	msg += fmt.Sprintf("✅ %d transaksi baru telah ditambahkan ke spreadsheet\n", count)
	msg += fmt.Sprintf("🕒 Waktu: %s\n", t.now().Format("02/01/2006 15:04:05"))
	msg += fmt.Sprintf("📧 Sumber: Email dari %s", account)

	t.broadcast(msg)
}

func (t *Telegram) broadcast(text string) {
	sent := 0
	for _, chatID := range t.chatIDs {
		if err := t.send(chatID, text); err != nil {
			t.log.Error().Err(err).Str("chat_id", chatID).Msg("Failed to send Telegram message")
			continue
		}
		sent++
	}
	t.log.Info().Int("sent", sent).Int("chats", len(t.chatIDs)).Msg("Telegram notification delivered")
}

func (t *Telegram) send(chatID, text string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("notify: marshal message: %w", err)
	}

	res, err := t.client.Post(t.baseURL+"/sendMessage", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: post message: %w", err)
	}
	defer res.Body.Close()

	var reply struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(res.Body).Decode(&reply); err != nil {
		return fmt.Errorf("notify: decode response: %w", err)
	}
	if !reply.OK {
		return fmt.Errorf("notify: telegram rejected message: %s", reply.Description)
	}
	return nil
}
