package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trading-signal-engine/internal/database"
	"trading-signal-engine/internal/entry"
	"trading-signal-engine/internal/signal"
)

type stubEngine struct {
	sig *signal.TradeSignal
	err error
}

func (s stubEngine) ScanSymbol(_ context.Context, symbol string) (*signal.TradeSignal, error) {
	return s.sig, s.err
}

func (s stubEngine) Symbols() []string {
	return []string{"BTCUSDT", "ETHUSDT"}
}

type stubStore struct {
	signals []*database.StoredSignal
	stats   *database.AccuracyStats
	err     error
}

func (s stubStore) GetRecentSignals(_ context.Context, limit int) ([]*database.StoredSignal, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.signals) {
		return s.signals[:limit], nil
	}
	return s.signals, nil
}

func (s stubStore) GetAccuracyStats(context.Context) (*database.AccuracyStats, error) {
	return s.stats, s.err
}

func newTestServer(engine Engine, store SignalStore) *Server {
	cfg := Config{Host: "127.0.0.1", Port: 0, AllowedOrigins: "*"}
	return NewServer(cfg, engine, store, zerolog.Nop())
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(stubEngine{}, stubStore{})

	w := doRequest(s, http.MethodGet, "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["persistence"] != true {
		t.Errorf("persistence field = %v", body["persistence"])
	}
}

func TestHealthReportsDisabledPersistence(t *testing.T) {
	s := newTestServer(stubEngine{}, nil)

	w := doRequest(s, http.MethodGet, "/api/health")

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["persistence"] != false {
		t.Errorf("persistence field = %v", body["persistence"])
	}
}

func TestSymbolsEndpoint(t *testing.T) {
	s := newTestServer(stubEngine{}, nil)

	w := doRequest(s, http.MethodGet, "/api/symbols")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(body.Symbols) != 2 || body.Symbols[0] != "BTCUSDT" {
		t.Errorf("symbols = %v", body.Symbols)
	}
}

func TestSignalsWithoutStore(t *testing.T) {
	s := newTestServer(stubEngine{}, nil)

	w := doRequest(s, http.MethodGet, "/api/signals")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestSignalsLimitValidation(t *testing.T) {
	s := newTestServer(stubEngine{}, stubStore{})

	for _, raw := range []string{"0", "501", "-5", "abc"} {
		w := doRequest(s, http.MethodGet, "/api/signals?limit="+raw)
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", raw, w.Code)
		}
	}

	w := doRequest(s, http.MethodGet, "/api/signals?limit=10")
	if w.Code != http.StatusOK {
		t.Errorf("limit=10: status = %d, want 200", w.Code)
	}
}

func TestSignalsStoreFailure(t *testing.T) {
	s := newTestServer(stubEngine{}, stubStore{err: errors.New("connection refused")})

	w := doRequest(s, http.MethodGet, "/api/signals")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	stats := &database.AccuracyStats{Total: 10, Evaluated: 9, Wins: 6, Losses: 3, WinRate: 66.7}
	s := newTestServer(stubEngine{}, stubStore{stats: stats})

	w := doRequest(s, http.MethodGet, "/api/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body database.AccuracyStats
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Total != 10 || body.Wins != 6 {
		t.Errorf("stats = %+v", body)
	}
}

func TestScanEndpointReturnsSignal(t *testing.T) {
	sig := &signal.TradeSignal{
		ID:         "sig-1",
		Symbol:     "BTCUSDT",
		Direction:  entry.Long,
		EntryPrice: 65000,
		Confidence: 0.82,
		CreatedAt:  time.Now(),
	}
	s := newTestServer(stubEngine{sig: sig}, nil)

	w := doRequest(s, http.MethodPost, "/api/scan/BTCUSDT")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body struct {
		Symbol string              `json:"symbol"`
		Signal *signal.TradeSignal `json:"signal"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Signal == nil || body.Signal.ID != "sig-1" {
		t.Errorf("signal = %+v", body.Signal)
	}
}

func TestScanEndpointNoSetup(t *testing.T) {
	s := newTestServer(stubEngine{}, nil)

	w := doRequest(s, http.MethodPost, "/api/scan/BTCUSDT")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["signal"] != nil {
		t.Errorf("signal = %v, want null", body["signal"])
	}
}

func TestScanEndpointFailure(t *testing.T) {
	s := newTestServer(stubEngine{err: errors.New("exchange timeout")}, nil)

	w := doRequest(s, http.MethodPost, "/api/scan/BTCUSDT")
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Error("fourth request within window should be rejected")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("different client must have its own budget")
	}
}
