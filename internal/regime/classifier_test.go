package regime

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"trading-signal-engine/internal/indicators"
	"trading-signal-engine/internal/market"
)

func testClassifier() *Classifier {
	return NewClassifier(DefaultConfig(), zerolog.Nop())
}

func trendingCandles(n int, step float64) []market.Candle {
	candles := make([]market.Candle, n)
	price := 100.0
	for i := 0; i < n; i++ {
		open := price
		price += step
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 3600000,
			Open:      open,
			High:      math.Max(open, price) + 0.2,
			Low:       math.Min(open, price) - 0.2,
			Close:     price,
			Volume:    1000,
			CloseTime: int64(i+1)*3600000 - 1,
		}
	}
	return candles
}

func TestClassifyInsufficientData(t *testing.T) {
	c := testClassifier()

	condition, details := c.Classify(indicators.NeutralSnapshot(), trendingCandles(30, 1))

	if condition != RangeBound {
		t.Errorf("expected RangeBound, got %s", condition)
	}
	if details.Reason != "insufficient_data" {
		t.Errorf("expected reason insufficient_data, got %q", details.Reason)
	}
}

func TestDecideLowADXIsRangeBound(t *testing.T) {
	c := testClassifier()
	details := Details{}

	condition := c.decide(&details, 18, 1.5, 0.1, 1.0, false, false, 50)

	if condition != RangeBound {
		t.Errorf("expected RangeBound, got %s", condition)
	}
	if details.Reason != "low_adx_or_narrow_range" {
		t.Errorf("expected reason low_adx_or_narrow_range, got %q", details.Reason)
	}
}

func TestDecideHighVolatilityRange(t *testing.T) {
	c := testClassifier()
	details := Details{}

	condition := c.decide(&details, 18, 1.5, 0.5, 4.2, false, false, 50)

	if condition != VolatileRange {
		t.Errorf("expected VolatileRange, got %s", condition)
	}
	if details.Reason != "high_volatility_range" {
		t.Errorf("expected reason high_volatility_range, got %q", details.Reason)
	}
}

func TestDecideStrongUptrend(t *testing.T) {
	c := testClassifier()
	details := Details{}

	condition := c.decide(&details, 35, 8.0, 0.1, 1.5, true, false, 80)

	if condition != StrongUptrend {
		t.Errorf("expected StrongUptrend, got %s", condition)
	}
	if details.Reason != "strong_bullish_trend" {
		t.Errorf("expected reason strong_bullish_trend, got %q", details.Reason)
	}
}

func TestDecideWeakUptrend(t *testing.T) {
	c := testClassifier()
	details := Details{}

	condition := c.decide(&details, 27, 8.0, 0.1, 1.5, true, false, 55)

	if condition != WeakUptrend {
		t.Errorf("expected WeakUptrend, got %s", condition)
	}
}

func TestDecideStrongDowntrend(t *testing.T) {
	c := testClassifier()
	details := Details{}

	condition := c.decide(&details, 40, 9.0, 0.1, 1.5, false, true, 85)

	if condition != StrongDowntrend {
		t.Errorf("expected StrongDowntrend, got %s", condition)
	}
}

func TestDecideMixedSignals(t *testing.T) {
	c := testClassifier()
	details := Details{}

	condition := c.decide(&details, 32, 8.0, 0.1, 1.5, false, false, 60)

	if condition != RangeBound {
		t.Errorf("expected RangeBound, got %s", condition)
	}
	if details.Reason != "mixed_signals" {
		t.Errorf("expected reason mixed_signals, got %q", details.Reason)
	}
}

func TestIsTradeable(t *testing.T) {
	tradeable := []Condition{StrongUptrend, WeakUptrend, StrongDowntrend, WeakDowntrend}
	for _, cond := range tradeable {
		if !IsTradeable(cond) {
			t.Errorf("%s should be tradeable", cond)
		}
	}

	for _, cond := range []Condition{RangeBound, VolatileRange} {
		if IsTradeable(cond) {
			t.Errorf("%s should not be tradeable", cond)
		}
	}
}

func TestWilderSmoothSeed(t *testing.T) {
	data := []float64{2, 4, 6, 8, 10, 12}

	smoothed := wilderSmooth(data, 4)

	// Seed at index period-1 is the simple mean of the first period values
	if math.Abs(smoothed[3]-5.0) > 1e-9 {
		t.Errorf("seed = %.6f, want 5.0", smoothed[3])
	}

	// Next value: prev*(1-1/4) + current*(1/4)
	want := 5.0*0.75 + 10*0.25
	if math.Abs(smoothed[4]-want) > 1e-9 {
		t.Errorf("smoothed[4] = %.6f, want %.6f", smoothed[4], want)
	}
}

func TestADXRisesWithTrend(t *testing.T) {
	trending := trendingCandles(60, 1.0)
	adxTrending := ADX(market.Highs(trending), market.Lows(trending), market.Closes(trending), 14)

	// A one-directional march produces a strong directional reading
	if adxTrending < 25 {
		t.Errorf("trending ADX = %.2f, expected above 25", adxTrending)
	}

	flat := trendingCandles(60, 0)
	adxFlat := ADX(market.Highs(flat), market.Lows(flat), market.Closes(flat), 14)
	if adxFlat >= adxTrending {
		t.Errorf("flat ADX %.2f should be below trending ADX %.2f", adxFlat, adxTrending)
	}
}

func TestClassifyStrongUptrendEndToEnd(t *testing.T) {
	c := testClassifier()
	candles := trendingCandles(250, 1.0)
	snap := indicators.Compute(candles)

	condition, details := c.Classify(snap, candles)

	if !Uptrend(condition) {
		t.Fatalf("expected an uptrend label, got %s (reason %q)", condition, details.Reason)
	}
	if !IsTradeable(condition) {
		t.Errorf("uptrend classification should be tradeable")
	}
}

func TestChopAnalysisAlternatingSeries(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 100
		} else {
			closes[i] = 101
		}
	}

	chopRatio, _ := analyzeChop(closes)

	// Every consecutive delta pair reverses: 18 reversals over a
	// 20-candle window.
	if math.Abs(chopRatio-0.9) > 1e-9 {
		t.Errorf("chop ratio = %.4f, want 0.9", chopRatio)
	}
}
