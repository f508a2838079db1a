package evaluator

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trading-signal-engine/internal/entry"
	"trading-signal-engine/internal/market"
	"trading-signal-engine/internal/signal"
)

func longSignal() *signal.TradeSignal {
	return &signal.TradeSignal{
		ID:          "test-long",
		Symbol:      "BTCUSDT",
		Direction:   entry.Long,
		EntryPrice:  100,
		StopLoss:    99,
		TakeProfit1: 101.5,
		TakeProfit2: 103,
		TakeProfit3: 104.5,
		CreatedAt:   time.UnixMilli(0),
	}
}

func shortSignal() *signal.TradeSignal {
	return &signal.TradeSignal{
		ID:          "test-short",
		Symbol:      "BTCUSDT",
		Direction:   entry.Short,
		EntryPrice:  100,
		StopLoss:    101,
		TakeProfit1: 98.5,
		TakeProfit2: 97,
		TakeProfit3: 95.5,
		CreatedAt:   time.UnixMilli(0),
	}
}

func candle(openTime int64, high, low float64) market.Candle {
	return market.Candle{
		OpenTime:  openTime,
		Open:      (high + low) / 2,
		High:      high,
		Low:       low,
		Close:     (high + low) / 2,
		Volume:    1000,
		CloseTime: openTime + 3599999,
	}
}

func TestLongStopLossHit(t *testing.T) {
	e := New(zerolog.Nop())

	result := e.Evaluate(longSignal(), []market.Candle{
		candle(1000, 100.5, 99.5),
		candle(2000, 100.2, 98.8),
	})

	if result.Outcome != OutcomeStopLoss {
		t.Fatalf("outcome = %s, want stop_loss", result.Outcome)
	}
	if result.Win {
		t.Errorf("stop loss is not a win")
	}
	if result.HitTime != 2000 {
		t.Errorf("hit time = %d, want 2000", result.HitTime)
	}
}

func TestLongTakeProfitLadder(t *testing.T) {
	e := New(zerolog.Nop())

	result := e.Evaluate(longSignal(), []market.Candle{
		candle(1000, 101.0, 99.5),
		candle(2000, 103.5, 100.5),
	})

	if result.Outcome != OutcomeTakeProfit2 {
		t.Fatalf("outcome = %s, want take_profit_2", result.Outcome)
	}
	if !result.Win {
		t.Errorf("take profit should be a win")
	}
	if result.HitPrice != 103 {
		t.Errorf("hit price = %.2f, want 103", result.HitPrice)
	}
}

func TestLongAmbiguousCandleFavorsStopLoss(t *testing.T) {
	e := New(zerolog.Nop())

	// One candle spans both the stop and TP3: the stop fills first
	result := e.Evaluate(longSignal(), []market.Candle{
		candle(1000, 105.0, 98.5),
	})

	if result.Outcome != OutcomeStopLoss {
		t.Fatalf("ambiguous candle outcome = %s, want stop_loss", result.Outcome)
	}
}

func TestShortOutcomes(t *testing.T) {
	e := New(zerolog.Nop())

	win := e.Evaluate(shortSignal(), []market.Candle{
		candle(1000, 100.5, 98.0),
	})
	if win.Outcome != OutcomeTakeProfit1 {
		t.Errorf("outcome = %s, want take_profit_1", win.Outcome)
	}

	loss := e.Evaluate(shortSignal(), []market.Candle{
		candle(1000, 101.2, 99.8),
	})
	if loss.Outcome != OutcomeStopLoss {
		t.Errorf("outcome = %s, want stop_loss", loss.Outcome)
	}
}

func TestOpenWhenNoLevelTouched(t *testing.T) {
	e := New(zerolog.Nop())

	result := e.Evaluate(longSignal(), []market.Candle{
		candle(1000, 100.8, 99.5),
		candle(2000, 101.2, 99.3),
	})

	if result.Outcome != OutcomeOpen {
		t.Fatalf("outcome = %s, want open", result.Outcome)
	}
}

func TestCandlesBeforeCreationIgnored(t *testing.T) {
	e := New(zerolog.Nop())
	sig := longSignal()
	sig.CreatedAt = time.UnixMilli(5000)

	// The stop-loss touch happened before the signal existed
	result := e.Evaluate(sig, []market.Candle{
		candle(1000, 100.0, 98.0),
		candle(6000, 100.8, 99.5),
	})

	if result.Outcome != OutcomeOpen {
		t.Fatalf("outcome = %s, want open (pre-signal candles ignored)", result.Outcome)
	}
}
