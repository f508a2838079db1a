// Package engine drives the periodic scan loop: it runs the signal
// pipeline across configured symbols, persists and announces results,
// and re-evaluates open signals against fresh candles.
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"trading-signal-engine/internal/cache"
	"trading-signal-engine/internal/database"
	"trading-signal-engine/internal/evaluator"
	"trading-signal-engine/internal/market"
	"trading-signal-engine/internal/notification"
	"trading-signal-engine/internal/signal"
)

// Config holds the scan loop settings.
type Config struct {
	Symbols      []string
	Interval     string
	CandleLimit  int
	ScanInterval time.Duration
}

// Engine coordinates the pipeline run per symbol. Database, cache, and
// notifications are optional; a nil dependency disables that concern.
type Engine struct {
	cfg       Config
	source    market.CandleSource
	generator *signal.Generator
	evaluator *evaluator.Evaluator
	repo      *database.Repository
	notifier  *notification.Manager
	logger    zerolog.Logger
}

func New(
	cfg Config,
	source market.CandleSource,
	generator *signal.Generator,
	eval *evaluator.Evaluator,
	repo *database.Repository,
	notifier *notification.Manager,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		cfg:       cfg,
		source:    source,
		generator: generator,
		evaluator: eval,
		repo:      repo,
		notifier:  notifier,
		logger:    logger.With().Str("component", "engine").Logger(),
	}
}

// Symbols returns the configured scan universe.
func (e *Engine) Symbols() []string {
	return e.cfg.Symbols
}

// Run scans all symbols on the configured interval until the context is
// cancelled. The first scan happens immediately.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info().
		Strs("symbols", e.cfg.Symbols).
		Dur("scan_interval", e.cfg.ScanInterval).
		Msg("Scan loop started")

	ticker := time.NewTicker(e.cfg.ScanInterval)
	defer ticker.Stop()

	e.scanAll(ctx)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Scan loop stopped")
			return
		case <-ticker.C:
			e.scanAll(ctx)
			e.evaluateOpenSignals(ctx)
		}
	}
}

func (e *Engine) scanAll(ctx context.Context) {
	for _, symbol := range e.cfg.Symbols {
		if ctx.Err() != nil {
			return
		}
		if _, err := e.ScanSymbol(ctx, symbol); err != nil {
			e.logger.Error().Err(err).Str("symbol", symbol).Msg("Scan failed")
		}
	}
}

// ScanSymbol runs the pipeline once for a symbol, persisting and
// announcing any signal produced. Returns (nil, nil) when no stage
// produced a signal.
func (e *Engine) ScanSymbol(ctx context.Context, symbol string) (*signal.TradeSignal, error) {
	sig, err := e.generator.Generate(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if sig == nil {
		return nil, nil
	}

	if e.repo != nil {
		if err := e.repo.SaveSignal(ctx, sig); err != nil {
			e.logger.Error().Err(err).Str("signal_id", sig.ID).Msg("Failed to persist signal")
		}
	}
	if e.notifier != nil {
		if err := e.notifier.SendSignal(sig); err != nil {
			e.logger.Warn().Err(err).Str("signal_id", sig.ID).Msg("Failed to announce signal")
		}
	}

	return sig, nil
}

// evaluateOpenSignals replays fresh candles against signals whose
// outcome is still open.
func (e *Engine) evaluateOpenSignals(ctx context.Context) {
	if e.repo == nil {
		return
	}

	open, err := e.repo.UnevaluatedSignals(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to load open signals")
		return
	}
	if len(open) == 0 {
		return
	}

	for _, stored := range open {
		candles, err := e.source.GetKlines(ctx, stored.Symbol, e.cfg.Interval, e.cfg.CandleLimit)
		if err != nil {
			e.logger.Warn().Err(err).Str("symbol", stored.Symbol).Msg("Skipping evaluation, fetch failed")
			continue
		}

		result := e.evaluator.Evaluate(&stored.TradeSignal, candles)
		if result.Outcome == evaluator.OutcomeOpen {
			continue
		}

		if err := e.repo.UpdateOutcome(ctx, stored.ID, string(result.Outcome), result.HitPrice); err != nil {
			e.logger.Error().Err(err).Str("signal_id", stored.ID).Msg("Failed to record outcome")
			continue
		}
		if e.notifier != nil {
			if err := e.notifier.SendOutcome(stored.Symbol, string(result.Outcome), result.HitPrice, result.Win); err != nil {
				e.logger.Warn().Err(err).Str("signal_id", stored.ID).Msg("Failed to announce outcome")
			}
		}

		e.logger.Info().
			Str("signal_id", stored.ID).
			Str("symbol", stored.Symbol).
			Str("outcome", string(result.Outcome)).
			Msg("Signal outcome recorded")
	}
}

// CachingSource wraps a CandleSource with the Redis cache. Reads check
// the cache first; fetches populate it. A nil cache passes through.
type CachingSource struct {
	inner market.CandleSource
	cache *cache.CacheService
}

func NewCachingSource(inner market.CandleSource, cacheService *cache.CacheService) *CachingSource {
	return &CachingSource{inner: inner, cache: cacheService}
}

func (c *CachingSource) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if c.cache != nil {
		if candles, ok := c.cache.GetKlines(ctx, symbol, interval); ok && len(candles) >= limit {
			return candles[len(candles)-limit:], nil
		}
	}

	candles, err := c.inner.GetKlines(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.SetKlines(ctx, symbol, interval, candles)
	}
	return candles, nil
}

func (c *CachingSource) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if c.cache != nil {
		if price, ok := c.cache.GetLastPrice(ctx, symbol); ok {
			return price, nil
		}
	}

	price, err := c.inner.GetCurrentPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}

	if c.cache != nil {
		c.cache.SetLastPrice(ctx, symbol, price)
	}
	return price, nil
}
