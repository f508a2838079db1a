package entry

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"trading-signal-engine/internal/indicators"
	"trading-signal-engine/internal/market"
	"trading-signal-engine/internal/regime"
)

func testFinder() *Finder {
	return NewFinder(DefaultConfig(), zerolog.Nop())
}

func flatCandles(n int, price float64) []market.Candle {
	candles := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 3600000,
			Open:      price,
			High:      price + 0.1,
			Low:       price - 0.1,
			Close:     price,
			Volume:    1000,
			CloseTime: int64(i+1)*3600000 - 1,
		}
	}
	return candles
}

func TestFindEntryInsufficientData(t *testing.T) {
	f := testFinder()

	candidate := f.FindEntry(regime.StrongUptrend, indicators.NeutralSnapshot(), flatCandles(20, 100))

	if candidate.Type != NoEntry {
		t.Errorf("expected NoEntry, got %s", candidate.Type)
	}
	if candidate.Reason != "insufficient_data" {
		t.Errorf("expected reason insufficient_data, got %q", candidate.Reason)
	}
}

func TestFindEntryRangeBoundShortCircuits(t *testing.T) {
	f := testFinder()

	for _, cond := range []regime.Condition{regime.RangeBound, regime.VolatileRange} {
		candidate := f.FindEntry(cond, indicators.NeutralSnapshot(), flatCandles(60, 100))
		if candidate.Type != NoEntry {
			t.Errorf("%s: expected NoEntry, got %s", cond, candidate.Type)
		}
		if candidate.Reason != "range_bound_market" {
			t.Errorf("%s: expected reason range_bound_market, got %q", cond, candidate.Reason)
		}
	}
}

func TestUptrendSupportBounce(t *testing.T) {
	f := testFinder()
	snap := &indicators.Snapshot{RSI: 52, CurrentPrice: 100.5}

	candidate := f.findUptrendEntry(snap, flatCandles(60, 100.5), []float64{100.0}, nil, 100.5)

	if candidate.Type != SupportBounce {
		t.Fatalf("expected SupportBounce, got %s (%q)", candidate.Type, candidate.Reason)
	}
	if candidate.Direction != Long {
		t.Errorf("expected LONG direction, got %s", candidate.Direction)
	}
	if candidate.Level != 100.0 {
		t.Errorf("expected support level 100.0, got %.2f", candidate.Level)
	}
	if candidate.RiskReward != "excellent" {
		t.Errorf("expected excellent risk/reward, got %q", candidate.RiskReward)
	}
}

func TestUptrendSupportBounceRejectedWhenOverbought(t *testing.T) {
	f := testFinder()
	snap := &indicators.Snapshot{RSI: 72, CurrentPrice: 100.5}

	candidate := f.findUptrendEntry(snap, flatCandles(60, 100.5), []float64{100.0}, nil, 100.5)

	if candidate.Type == SupportBounce {
		t.Errorf("support bounce should be rejected with RSI 72")
	}
}

func TestUptrendEMAPullback(t *testing.T) {
	f := testFinder()
	snap := &indicators.Snapshot{RSI: 55, EMA20: 100, EMA50: 98, CurrentPrice: 102}

	candidate := f.findUptrendEntry(snap, flatCandles(60, 102), nil, nil, 102)

	if candidate.Type != Pullback {
		t.Fatalf("expected Pullback, got %s (%q)", candidate.Type, candidate.Reason)
	}
	if candidate.Direction != Long {
		t.Errorf("expected LONG direction, got %s", candidate.Direction)
	}
	if candidate.Level != 100 {
		t.Errorf("expected EMA level 100, got %.2f", candidate.Level)
	}
}

func TestUptrendBreakoutNeedsConfirmation(t *testing.T) {
	f := testFinder()
	// EMA stack misaligned so the pullback strategy cannot fire first
	snap := &indicators.Snapshot{RSI: 50, EMA20: 101, EMA50: 102, CurrentPrice: 100.2}

	candles := flatCandles(60, 100.2)
	candidate := f.findUptrendEntry(snap, candles, nil, []float64{100.5}, 100.2)
	if candidate.Type == Breakout {
		t.Fatalf("breakout should not confirm without closes above the level")
	}

	// Close the last two candles above the resistance level
	candles[58].Close = 100.8
	candles[59].Close = 100.9
	candidate = f.findUptrendEntry(snap, candles, nil, []float64{100.5}, 100.2)

	if candidate.Type != Breakout {
		t.Fatalf("expected Breakout, got %s (%q)", candidate.Type, candidate.Reason)
	}
	if candidate.Direction != Long {
		t.Errorf("expected LONG direction, got %s", candidate.Direction)
	}
}

func TestUptrendTrendFollow(t *testing.T) {
	f := testFinder()
	snap := &indicators.Snapshot{RSI: 60, EMA20: 99, EMA50: 101, MACDHistogram: 0.4, CurrentPrice: 100}

	candidate := f.findUptrendEntry(snap, flatCandles(60, 100), nil, nil, 100)

	if candidate.Type != TrendFollow {
		t.Fatalf("expected TrendFollow, got %s (%q)", candidate.Type, candidate.Reason)
	}
	if candidate.Direction != Long {
		t.Errorf("expected LONG direction, got %s", candidate.Direction)
	}
}

func TestUptrendNoQualifyingSetup(t *testing.T) {
	f := testFinder()
	snap := &indicators.Snapshot{RSI: 80, EMA20: 99, EMA50: 101, MACDHistogram: -0.2, CurrentPrice: 100}

	candidate := f.findUptrendEntry(snap, flatCandles(60, 100), nil, nil, 100)

	if candidate.Type != NoEntry {
		t.Fatalf("expected NoEntry, got %s", candidate.Type)
	}
	if candidate.Reason != "waiting_for_better_setup" {
		t.Errorf("expected reason waiting_for_better_setup, got %q", candidate.Reason)
	}
}

func TestDowntrendResistanceRejection(t *testing.T) {
	f := testFinder()
	snap := &indicators.Snapshot{RSI: 48, CurrentPrice: 99.5}

	candidate := f.findDowntrendEntry(snap, flatCandles(60, 99.5), nil, []float64{100.0}, 99.5)

	if candidate.Type != ResistanceRejection {
		t.Fatalf("expected ResistanceRejection, got %s (%q)", candidate.Type, candidate.Reason)
	}
	if candidate.Direction != Short {
		t.Errorf("expected SHORT direction, got %s", candidate.Direction)
	}
	if candidate.RiskReward != "excellent" {
		t.Errorf("expected excellent risk/reward, got %q", candidate.RiskReward)
	}
}

func TestDowntrendMomentum(t *testing.T) {
	f := testFinder()
	snap := &indicators.Snapshot{RSI: 38, EMA20: 101, EMA50: 100, MACDHistogram: -0.3, CurrentPrice: 100}

	candidate := f.findDowntrendEntry(snap, flatCandles(60, 100), nil, nil, 100)

	if candidate.Type != TrendFollow {
		t.Fatalf("expected TrendFollow, got %s (%q)", candidate.Type, candidate.Reason)
	}
	if candidate.Direction != Short {
		t.Errorf("expected SHORT direction, got %s", candidate.Direction)
	}
}

func TestPivotDetection(t *testing.T) {
	f := testFinder()
	candles := flatCandles(50, 100)
	// Spike a resistance pivot and a support pivot away from the edges
	candles[20].High = 110
	candles[35].Low = 90

	supports, resistances := f.findSupportResistance(candles)

	if len(resistances) == 0 || resistances[0] != 110 {
		t.Errorf("expected resistance at 110, got %v", resistances)
	}
	if len(supports) == 0 || supports[0] != 90 {
		t.Errorf("expected support at 90, got %v", supports)
	}
}

func TestPivotTieIsNotAPivot(t *testing.T) {
	f := testFinder()
	candles := flatCandles(50, 100)
	// Two equal highs within the same window disqualify both
	candles[20].High = 110
	candles[22].High = 110

	_, resistances := f.findSupportResistance(candles)

	for _, r := range resistances {
		if r == 110 {
			t.Errorf("tied pivot high should not be detected, got %v", resistances)
		}
	}
}

func TestClusterLevels(t *testing.T) {
	f := testFinder()

	clustered := f.clusterLevels([]float64{100.0, 100.5, 105.0})

	if len(clustered) != 2 {
		t.Fatalf("expected 2 clusters, got %v", clustered)
	}
	if math.Abs(clustered[0]-100.25) > 1e-9 {
		t.Errorf("first cluster = %.4f, want 100.25", clustered[0])
	}
	if clustered[1] != 105.0 {
		t.Errorf("second cluster = %.4f, want 105.0", clustered[1])
	}
}

func TestNearestLevelSelection(t *testing.T) {
	levels := []float64{95, 98, 102, 105}

	if below, ok := nearestBelow(levels, 100); !ok || below != 98 {
		t.Errorf("nearestBelow = %.2f/%v, want 98", below, ok)
	}
	if above, ok := nearestAbove(levels, 100); !ok || above != 102 {
		t.Errorf("nearestAbove = %.2f/%v, want 102", above, ok)
	}
	if _, ok := nearestBelow(levels, 90); ok {
		t.Errorf("nearestBelow should report no level under 90")
	}
}
