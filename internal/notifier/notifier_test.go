package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"SVIXScreener/internal/calculator"
	"SVIXScreener/internal/logger"
	"SVIXScreener/internal/model"
	"SVIXScreener/internal/screener"
	"SVIXScreener/internal/table"

	"github.com/guregu/null/v6"
)

func sampleResult(showCap bool) *screener.Result {
	cols := []string{"Symbol", "Name", "Price", "SVIX"}
	if showCap {
		cols = append(cols, "Market Cap")
	}
	return &screener.Result{
		Query: screener.Query{
			Interval:      calculator.Weekly,
			Lookback:      20,
			Threshold:     0.8,
			SortKey:       table.SortScore,
			ShowMarketCap: showCap,
		},
		Table: table.Table{
			Columns: cols,
			Rows: []model.DisplayRow{
				{Symbol: "2222", Name: null.StringFrom("Saudi Arabian Oil Co & Partners Ltd"), Price: null.FloatFrom(27.456), Score: 0.91234, MarketCap: null.FloatFrom(6.5e12)},
				{Symbol: "1120", Name: null.StringFrom("Rajhi & Co"), Score: 0.85},
			},
		},
		Skipped:  3,
		LastDate: time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestFormatTable(t *testing.T) {
	msg := FormatTable(sampleResult(true))

	for _, want := range []string{
		"Weekly, lookback 20, threshold 0.80",
		"Prices updated on 2026-10-15",
		"Symbol | Name | Price | SVIX | Market Cap",
		"2222 | Saudi Arabian Oil… | 27.46 | 0.912 | 6.5 T",
		"1120 | Rajhi &amp; Co | - | 0.850 | -",
		"3 tickers without enough history",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "Rajhi & Co") {
		t.Error("raw ampersand must be escaped")
	}
}

func TestFormatTable_NoMarketCap(t *testing.T) {
	msg := FormatTable(sampleResult(false))
	if strings.Contains(msg, "Market Cap") || strings.Contains(msg, "6.5 T") {
		t.Errorf("market cap should be hidden:\n%s", msg)
	}
}

func TestFormatTable_Empty(t *testing.T) {
	res := sampleResult(false)
	res.Table.Rows = nil
	if msg := FormatTable(res); !strings.Contains(msg, "No tickers match.") {
		t.Errorf("unexpected message:\n%s", msg)
	}
}

func newTestNotifier(url string) *TelegramNotifier {
	n := NewTelegramNotifier("TOKEN", "42", "", logger.NewNop())
	n.APIBase = url
	return n
}

func TestSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	if err := newTestNotifier(srv.URL).Send(context.Background(), "<b>hi</b>"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["chat_id"] != "42" || got["text"] != "<b>hi</b>" || got["parse_mode"] != "HTML" {
		t.Errorf("unexpected payload %v", got)
	}
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newTestNotifier(srv.URL).SendWithRetry(context.Background(), "x", 0)
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestStartPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		replies []string
		polls   int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			mu.Lock()
			polls++
			mu.Unlock()
			w.Write([]byte(`{"ok":true,"result":[{"update_id":7,"message":{"text":" /help "}},{"update_id":8}]}`))
		case "/botTOKEN/sendMessage":
			var p map[string]string
			json.NewDecoder(r.Body).Decode(&p)
			mu.Lock()
			replies = append(replies, p["text"])
			mu.Unlock()
			w.Write([]byte(`{"ok":true}`))
			cancel()
		}
	}))
	defer srv.Close()

	var commands []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		newTestNotifier(srv.URL).StartPolling(ctx, func(_ context.Context, cmd string) string {
			commands = append(commands, cmd)
			return "reply to " + cmd
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop after cancel")
	}

	if len(commands) != 1 || commands[0] != "/help" {
		t.Errorf("unexpected commands %v", commands)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(replies) != 1 || replies[0] != "reply to /help" {
		t.Errorf("unexpected replies %v", replies)
	}
	if polls != 1 {
		t.Errorf("expected one poll, got %d", polls)
	}
}
