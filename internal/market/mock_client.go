package market

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// MockClient generates deterministic synthetic candles for development
// and demo runs without exchange connectivity.
type MockClient struct {
	mu     sync.Mutex
	rngs   map[string]*rand.Rand
	prices map[string]float64
}

func NewMockClient() *MockClient {
	return &MockClient{
		rngs:   make(map[string]*rand.Rand),
		prices: make(map[string]float64),
	}
}

func (m *MockClient) GetKlines(_ context.Context, symbol, interval string, limit int) ([]Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rng := m.rngFor(symbol)
	base := basePrice(symbol)
	step := intervalDuration(interval)

	now := time.Now().Truncate(step)
	start := now.Add(-time.Duration(limit) * step)

	candles := make([]Candle, 0, limit)
	price := base
	for i := 0; i < limit; i++ {
		openTime := start.Add(time.Duration(i) * step)

		// Gentle uptrend with noise so indicators produce realistic values
		drift := base * 0.0004
		noise := base * 0.004 * (rng.Float64()*2 - 1)

		open := price
		close := open + drift + noise
		high := math.Max(open, close) * (1 + rng.Float64()*0.003)
		low := math.Min(open, close) * (1 - rng.Float64()*0.003)
		volume := 800 + rng.Float64()*400

		candles = append(candles, Candle{
			OpenTime:  openTime.UnixMilli(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			CloseTime: openTime.Add(step).UnixMilli() - 1,
		})
		price = close
	}

	m.prices[symbol] = price
	return candles, nil
}

func (m *MockClient) GetCurrentPrice(_ context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.prices[symbol]; ok {
		return p, nil
	}
	return basePrice(symbol), nil
}

func (m *MockClient) rngFor(symbol string) *rand.Rand {
	if rng, ok := m.rngs[symbol]; ok {
		return rng
	}
	var seed int64
	for _, r := range symbol {
		seed = seed*31 + int64(r)
	}
	rng := rand.New(rand.NewSource(seed))
	m.rngs[symbol] = rng
	return rng
}

func basePrice(symbol string) float64 {
	switch symbol {
	case "BTCUSDT":
		return 65000
	case "ETHUSDT":
		return 3200
	case "BNBUSDT":
		return 580
	default:
		return 100
	}
}

func intervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Hour
	}
}
