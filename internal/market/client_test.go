package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseKline(t *testing.T) {
	raw := []interface{}{
		float64(1700000000000),
		"65000.10", "65500.00", "64800.50", "65200.25", "1234.5",
		float64(1700003599999),
	}

	candle, err := parseKline(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if candle.OpenTime != 1700000000000 {
		t.Errorf("open time = %d", candle.OpenTime)
	}
	if candle.Open != 65000.10 || candle.High != 65500.00 || candle.Low != 64800.50 {
		t.Errorf("OHLC mismatch: %+v", candle)
	}
	if candle.Close != 65200.25 || candle.Volume != 1234.5 {
		t.Errorf("close/volume mismatch: %+v", candle)
	}
	if candle.CloseTime != 1700003599999 {
		t.Errorf("close time = %d", candle.CloseTime)
	}
}

func TestParseKlineRejectsBadFields(t *testing.T) {
	raw := []interface{}{
		float64(1700000000000),
		"not-a-number", "65500.00", "64800.50", "65200.25", "1234.5",
		float64(1700003599999),
	}

	if _, err := parseKline(raw); err == nil {
		t.Fatal("expected error for malformed price field")
	}
}

func TestGetKlines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("symbol") != "BTCUSDT" {
			t.Errorf("unexpected symbol %s", r.URL.Query().Get("symbol"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			[1700000000000,"100.0","101.0","99.0","100.5","1000.0",1700003599999,"0",0,"0","0","0"],
			[1700003600000,"100.5","102.0","100.0","101.5","1100.0",1700007199999,"0",0,"0","0","0"]
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())

	candles, err := client.GetKlines(context.Background(), "BTCUSDT", "1h", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}
	if candles[1].Close != 101.5 {
		t.Errorf("close = %.2f, want 101.5", candles[1].Close)
	}
}

func TestGetCurrentPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"ETHUSDT","price":"3201.55"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())

	price, err := client.GetCurrentPrice(context.Background(), "ETHUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 3201.55 {
		t.Errorf("price = %.2f, want 3201.55", price)
	}
}

func TestGetKlinesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())

	if _, err := client.GetKlines(context.Background(), "NOPE", "1h", 10); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestMockClientDeterministicHistory(t *testing.T) {
	a := NewMockClient()
	b := NewMockClient()

	ctx := context.Background()
	first, err := a.GetKlines(ctx, "BTCUSDT", "1h", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := b.GetKlines(ctx, "BTCUSDT", "1h", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != 100 || len(second) != 100 {
		t.Fatalf("got %d/%d candles, want 100 each", len(first), len(second))
	}
	for i := range first {
		if first[i].Close != second[i].Close {
			t.Fatalf("mock data not deterministic at %d: %.4f vs %.4f", i, first[i].Close, second[i].Close)
		}
	}

	for _, c := range first {
		if c.High < c.Low || c.High < c.Close || c.Low > c.Close {
			t.Fatalf("inconsistent OHLC: %+v", c)
		}
	}
}
