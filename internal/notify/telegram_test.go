package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/Wimboro/finmail/internal/ledger"
)

func TestFormatRupiah(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "Rp 0"},
		{500, "Rp 500"},
		{1500, "Rp 1,500"},
		{50000, "Rp 50,000"},
		{1500000, "Rp 1,500,000"},
		{-20000, "-Rp 20,000"},
		{-1234567, "-Rp 1,234,567"},
	}

	for _, tt := range tests {
		if got := FormatRupiah(tt.amount); got != tt.want {
			t.Errorf("FormatRupiah(%v) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

type capturedMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func newTestTelegram(t *testing.T, chatIDs []string) (*Telegram, *[]capturedMessage) {
	t.Helper()

	var mu sync.Mutex
	var messages []capturedMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg capturedMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		messages = append(messages, msg)
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}))
	t.Cleanup(srv.Close)

	tg := NewTelegram("test-token", chatIDs, zerolog.Nop())
	tg.baseURL = srv.URL
	tg.now = func() time.Time {
		return time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)
	}
	return tg, &messages
}

func TestTelegram_NotifyTransaction(t *testing.T) {
	tg, messages := newTestTelegram(t, []string{"111", "222"})

	tg.NotifyTransaction(ledger.Transaction{
		Date:        civil.Date{Year: 2024, Month: time.March, Day: 15},
		Amount:      -20000,
		Category:    "Makanan",
		Description: "Beli kopi",
	}, "personal")

	if len(*messages) != 2 {
		t.Fatalf("sent %d messages, want 2", len(*messages))
	}
	msg := (*messages)[0]
	if msg.ParseMode != "Markdown" {
		t.Errorf("parse_mode = %q", msg.ParseMode)
	}
	for _, want := range []string{
		"➖ Pengeluaran",
		"📅 Tanggal: 15/03/2024",
		"💰 Jumlah: -Rp 20,000",
		"🏷️ Kategori: Makanan",
		"📝 Deskripsi: Beli kopi",
		"📧 Sumber: Email dari personal",
	} {
		if !contains(msg.Text, want) {
			t.Errorf("message missing %q:\n%s", want, msg.Text)
		}
	}
}

func TestTelegram_NotifyTransaction_IncomeWithoutDescription(t *testing.T) {
	tg, messages := newTestTelegram(t, []string{"111"})

	tg.NotifyTransaction(ledger.Transaction{
		Date:     civil.Date{Year: 2024, Month: time.March, Day: 1},
		Amount:   5000000,
		Category: "Gaji",
	}, "business")

	msg := (*messages)[0]
	if !contains(msg.Text, "➕ Pemasukan") {
		t.Errorf("message should report income:\n%s", msg.Text)
	}
	if contains(msg.Text, "Deskripsi") {
		t.Errorf("empty description should be omitted:\n%s", msg.Text)
	}
}

func TestTelegram_NotifyBatch(t *testing.T) {
	tg, messages := newTestTelegram(t, []string{"111"})

	tg.NotifyBatch(7, "personal")

	msg := (*messages)[0]
	for _, want := range []string{
		"📊 Update Transaksi Massal",
		"✅ 7 transaksi baru telah ditambahkan ke spreadsheet",
		"🕒 Waktu: 15/03/2024 10:30:00",
		"📧 Sumber: Email dari personal",
	} {
		if !contains(msg.Text, want) {
			t.Errorf("message missing %q:\n%s", want, msg.Text)
		}
	}
}

func TestTelegram_RejectedSendDoesNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	tg := NewTelegram("test-token", []string{"111"}, zerolog.Nop())
	tg.baseURL = srv.URL

	tg.NotifyBatch(3, "default")
}

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}
