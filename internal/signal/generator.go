// Package signal runs the full decision pipeline for a symbol: fetch
// candles, compute indicators, classify the regime, search for an
// entry, gate it on confidence, and size the position. Any rejection
// short-circuits to no signal.
package signal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trading-signal-engine/internal/confidence"
	"trading-signal-engine/internal/entry"
	"trading-signal-engine/internal/indicators"
	"trading-signal-engine/internal/market"
	"trading-signal-engine/internal/regime"
	"trading-signal-engine/internal/risk"
)

// TradeSignal is the pipeline's final output. Immutable once created;
// persistence and notification are the caller's concern.
type TradeSignal struct {
	ID         string           `json:"id"`
	Symbol     string           `json:"symbol"`
	Direction  entry.Direction  `json:"direction"`
	EntryType  entry.Type       `json:"entry_type"`
	EntryPrice float64          `json:"entry_price"`
	Reason     string           `json:"reason"`
	RiskReward string           `json:"risk_reward"`
	Condition  regime.Condition `json:"market_condition"`
	Confidence float64          `json:"confidence"`

	PositionSizeUSD float64 `json:"position_size_usd"`
	Leverage        float64 `json:"leverage"`
	StopLoss        float64 `json:"stop_loss"`
	TakeProfit1     float64 `json:"take_profit_1"`
	TakeProfit2     float64 `json:"take_profit_2"`
	TakeProfit3     float64 `json:"take_profit_3"`

	CreatedAt time.Time `json:"created_at"`
}

// Config holds the pipeline-level knobs.
type Config struct {
	Interval      string
	CandleLimit   int
	MinConfidence float64 // Pipeline gate on top of the scorer's own threshold
}

// BalanceFunc supplies the account balance, snapshot-read once per run.
type BalanceFunc func() float64

// Classifier labels the market regime for a candle window.
type Classifier interface {
	Classify(snap *indicators.Snapshot, candles []market.Candle) (regime.Condition, regime.Details)
}

// EntryFinder searches for a qualifying entry setup.
type EntryFinder interface {
	FindEntry(condition regime.Condition, snap *indicators.Snapshot, candles []market.Candle) entry.Candidate
}

type Generator struct {
	source     market.CandleSource
	classifier Classifier
	finder     EntryFinder
	gate       *confidence.Gate
	sizer      *risk.Sizer
	balance    BalanceFunc
	cfg        Config
	logger     zerolog.Logger
}

func NewGenerator(
	source market.CandleSource,
	classifier Classifier,
	finder EntryFinder,
	gate *confidence.Gate,
	sizer *risk.Sizer,
	balance BalanceFunc,
	cfg Config,
	logger zerolog.Logger,
) *Generator {
	return &Generator{
		source:     source,
		classifier: classifier,
		finder:     finder,
		gate:       gate,
		sizer:      sizer,
		balance:    balance,
		cfg:        cfg,
		logger:     logger.With().Str("component", "signal_generator").Logger(),
	}
}

// Generate runs the pipeline for one symbol. Returns (nil, nil) when
// any stage rejects the candidate; an error only for fetch failures,
// scorer unavailability, or invalid sizing inputs.
func (g *Generator) Generate(ctx context.Context, symbol string) (*TradeSignal, error) {
	candles, err := g.source.GetKlines(ctx, symbol, g.cfg.Interval, g.cfg.CandleLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candles for %s: %w", symbol, err)
	}

	snap := indicators.Compute(candles)

	condition, details := g.classifier.Classify(snap, candles)
	if !regime.IsTradeable(condition) {
		g.logger.Debug().
			Str("symbol", symbol).
			Str("condition", string(condition)).
			Str("reason", details.Reason).
			Msg("Market not tradeable, skipping")
		return nil, nil
	}

	candidate := g.finder.FindEntry(condition, snap, candles)
	if candidate.Type == entry.NoEntry {
		g.logger.Debug().
			Str("symbol", symbol).
			Str("reason", candidate.Reason).
			Msg("No qualifying entry")
		return nil, nil
	}

	features := confidence.ExtractFeatures(snap)
	confirmed, score, err := g.gate.Evaluate(features)
	if err != nil {
		return nil, fmt.Errorf("confidence gate failed for %s: %w", symbol, err)
	}
	if !confirmed || score < g.cfg.MinConfidence {
		g.logger.Info().
			Str("symbol", symbol).
			Float64("confidence", score).
			Msg("Candidate rejected by confidence gate")
		return nil, nil
	}

	balance := g.balance()
	sizing, err := g.sizer.Size(balance, score, candidate.EntryPrice, candidate.Direction, 0)
	if err != nil {
		return nil, fmt.Errorf("sizing failed for %s: %w", symbol, err)
	}

	sig := &TradeSignal{
		ID:              uuid.NewString(),
		Symbol:          symbol,
		Direction:       candidate.Direction,
		EntryType:       candidate.Type,
		EntryPrice:      candidate.EntryPrice,
		Reason:          candidate.Reason,
		RiskReward:      candidate.RiskReward,
		Condition:       condition,
		Confidence:      score,
		PositionSizeUSD: sizing.PositionSizeUSD,
		Leverage:        sizing.Leverage,
		StopLoss:        sizing.StopLoss,
		TakeProfit1:     sizing.TakeProfit1,
		TakeProfit2:     sizing.TakeProfit2,
		TakeProfit3:     sizing.TakeProfit3,
		CreatedAt:       time.Now().UTC(),
	}

	g.logger.Info().
		Str("symbol", symbol).
		Str("direction", string(sig.Direction)).
		Str("entry_type", string(sig.EntryType)).
		Float64("entry_price", sig.EntryPrice).
		Float64("confidence", sig.Confidence).
		Float64("leverage", sig.Leverage).
		Msg("Trade signal generated")

	return sig, nil
}
