// Package cache provides Redis-based caching for candle windows and
// scan results with graceful degradation: when Redis is unavailable,
// callers fall back to fetching from the exchange directly.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trading-signal-engine/internal/market"
)

// Key formats for cache entries
const (
	keyKlines    = "klines:%s:%s"     // symbol, interval
	keyLastScan  = "scan:%s:last"     // symbol
	keyLastPrice = "price:%s:current" // symbol
)

// Default TTLs
const (
	DefaultKlinesTTL = 5 * time.Minute
	DefaultPriceTTL  = 30 * time.Second
	DefaultScanTTL   = time.Hour
)

// Config holds Redis connection settings.
type Config struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	PoolSize int
}

// CacheService wraps a Redis client with a small circuit breaker. After
// repeated failures the service stops hitting Redis until the recovery
// backoff elapses.
type CacheService struct {
	client *redis.Client
	logger zerolog.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastFailure  time.Time

	maxFailures     int
	recoveryBackoff time.Duration
}

// NewCacheService connects to Redis and verifies connectivity.
func NewCacheService(cfg Config, logger zerolog.Logger) (*CacheService, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	cs := &CacheService{
		client:          client,
		logger:          logger.With().Str("component", "cache").Logger(),
		healthy:         true,
		maxFailures:     5,
		recoveryBackoff: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}

	cs.logger.Info().Str("address", cfg.Address).Msg("Connected to Redis")
	return cs, nil
}

// Close releases the Redis connection.
func (cs *CacheService) Close() error {
	return cs.client.Close()
}

// GetKlines returns a cached candle window, or false when absent or the
// circuit is open.
func (cs *CacheService) GetKlines(ctx context.Context, symbol, interval string) ([]market.Candle, bool) {
	if !cs.available() {
		return nil, false
	}

	data, err := cs.client.Get(ctx, fmt.Sprintf(keyKlines, symbol, interval)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		cs.recordFailure(err)
		return nil, false
	}
	cs.recordSuccess()

	var candles []market.Candle
	if err := json.Unmarshal(data, &candles); err != nil {
		cs.logger.Warn().Err(err).Str("symbol", symbol).Msg("Dropping corrupt cached klines")
		return nil, false
	}
	return candles, true
}

// SetKlines caches a candle window. Failures degrade silently.
func (cs *CacheService) SetKlines(ctx context.Context, symbol, interval string, candles []market.Candle) {
	if !cs.available() {
		return
	}

	data, err := json.Marshal(candles)
	if err != nil {
		return
	}
	if err := cs.client.Set(ctx, fmt.Sprintf(keyKlines, symbol, interval), data, DefaultKlinesTTL).Err(); err != nil {
		cs.recordFailure(err)
		return
	}
	cs.recordSuccess()
}

// SetLastScan records when a symbol was last scanned.
func (cs *CacheService) SetLastScan(ctx context.Context, symbol string, at time.Time) {
	if !cs.available() {
		return
	}
	if err := cs.client.Set(ctx, fmt.Sprintf(keyLastScan, symbol), at.UnixMilli(), DefaultScanTTL).Err(); err != nil {
		cs.recordFailure(err)
	}
}

// GetLastPrice returns a cached current price for a symbol.
func (cs *CacheService) GetLastPrice(ctx context.Context, symbol string) (float64, bool) {
	if !cs.available() {
		return 0, false
	}
	price, err := cs.client.Get(ctx, fmt.Sprintf(keyLastPrice, symbol)).Float64()
	if err != nil {
		if err != redis.Nil {
			cs.recordFailure(err)
		}
		return 0, false
	}
	cs.recordSuccess()
	return price, true
}

// SetLastPrice caches the current price for a symbol.
func (cs *CacheService) SetLastPrice(ctx context.Context, symbol string, price float64) {
	if !cs.available() {
		return
	}
	if err := cs.client.Set(ctx, fmt.Sprintf(keyLastPrice, symbol), price, DefaultPriceTTL).Err(); err != nil {
		cs.recordFailure(err)
	}
}

// available reports whether the circuit allows Redis calls.
func (cs *CacheService) available() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if cs.healthy {
		return true
	}
	return time.Since(cs.lastFailure) > cs.recoveryBackoff
}

func (cs *CacheService) recordFailure(err error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.failureCount++
	cs.lastFailure = time.Now()
	if cs.failureCount >= cs.maxFailures && cs.healthy {
		cs.healthy = false
		cs.logger.Warn().Err(err).Int("failures", cs.failureCount).Msg("Redis circuit opened, degrading to direct fetches")
	}
}

func (cs *CacheService) recordSuccess() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.healthy {
		cs.logger.Info().Msg("Redis circuit closed, cache restored")
	}
	cs.healthy = true
	cs.failureCount = 0
}
