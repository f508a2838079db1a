// Package evaluator determines trade signal outcomes by replaying the
// candles recorded after signal creation against the signal's price
// levels. The replay is deterministic: within a single candle that
// touches both sides, the stop-loss is assumed to fill first.
package evaluator

import (
	"github.com/rs/zerolog"

	"trading-signal-engine/internal/entry"
	"trading-signal-engine/internal/market"
	"trading-signal-engine/internal/signal"
)

// Outcome is the terminal result of a signal.
type Outcome string

const (
	OutcomeStopLoss    Outcome = "stop_loss"
	OutcomeTakeProfit1 Outcome = "take_profit_1"
	OutcomeTakeProfit2 Outcome = "take_profit_2"
	OutcomeTakeProfit3 Outcome = "take_profit_3"
	OutcomeOpen        Outcome = "open" // No level touched yet
)

// Result describes what the replay found.
type Result struct {
	Outcome  Outcome `json:"outcome"`
	HitPrice float64 `json:"hit_price,omitempty"` // The level that was touched
	HitTime  int64   `json:"hit_time,omitempty"`  // Open time of the deciding candle
	Win      bool    `json:"win"`
}

type Evaluator struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		logger: logger.With().Str("component", "signal_evaluator").Logger(),
	}
}

// Evaluate replays candles in order against the signal's levels. Only
// candles opening at or after signal creation count. Returns OutcomeOpen
// when no level has been touched.
func (e *Evaluator) Evaluate(sig *signal.TradeSignal, candles []market.Candle) Result {
	createdAt := sig.CreatedAt.UnixMilli()

	for _, candle := range candles {
		if candle.OpenTime < createdAt {
			continue
		}

		var result *Result
		if sig.Direction == entry.Short {
			result = evaluateShortCandle(sig, candle)
		} else {
			result = evaluateLongCandle(sig, candle)
		}
		if result != nil {
			e.logger.Debug().
				Str("signal_id", sig.ID).
				Str("outcome", string(result.Outcome)).
				Float64("hit_price", result.HitPrice).
				Msg("Signal outcome determined")
			return *result
		}
	}

	return Result{Outcome: OutcomeOpen}
}

// evaluateLongCandle checks a single candle against a LONG signal's
// levels. Stop-loss wins when both sides are touched; otherwise the
// deepest take-profit the candle reached is reported.
func evaluateLongCandle(sig *signal.TradeSignal, candle market.Candle) *Result {
	if candle.Low <= sig.StopLoss {
		return &Result{Outcome: OutcomeStopLoss, HitPrice: sig.StopLoss, HitTime: candle.OpenTime}
	}

	switch {
	case candle.High >= sig.TakeProfit3:
		return &Result{Outcome: OutcomeTakeProfit3, HitPrice: sig.TakeProfit3, HitTime: candle.OpenTime, Win: true}
	case candle.High >= sig.TakeProfit2:
		return &Result{Outcome: OutcomeTakeProfit2, HitPrice: sig.TakeProfit2, HitTime: candle.OpenTime, Win: true}
	case candle.High >= sig.TakeProfit1:
		return &Result{Outcome: OutcomeTakeProfit1, HitPrice: sig.TakeProfit1, HitTime: candle.OpenTime, Win: true}
	}

	return nil
}

func evaluateShortCandle(sig *signal.TradeSignal, candle market.Candle) *Result {
	if candle.High >= sig.StopLoss {
		return &Result{Outcome: OutcomeStopLoss, HitPrice: sig.StopLoss, HitTime: candle.OpenTime}
	}

	switch {
	case candle.Low <= sig.TakeProfit3:
		return &Result{Outcome: OutcomeTakeProfit3, HitPrice: sig.TakeProfit3, HitTime: candle.OpenTime, Win: true}
	case candle.Low <= sig.TakeProfit2:
		return &Result{Outcome: OutcomeTakeProfit2, HitPrice: sig.TakeProfit2, HitTime: candle.OpenTime, Win: true}
	case candle.Low <= sig.TakeProfit1:
		return &Result{Outcome: OutcomeTakeProfit1, HitPrice: sig.TakeProfit1, HitTime: candle.OpenTime, Win: true}
	}

	return nil
}
