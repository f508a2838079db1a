// Package regime classifies market conditions as trending or
// range-bound so the entry search can skip choppy markets.
package regime

import (
	"math"

	"github.com/rs/zerolog"

	"trading-signal-engine/internal/indicators"
	"trading-signal-engine/internal/market"
)

// Condition is the classified market regime.
type Condition string

const (
	StrongUptrend   Condition = "strong_uptrend"
	WeakUptrend     Condition = "weak_uptrend"
	StrongDowntrend Condition = "strong_downtrend"
	WeakDowntrend   Condition = "weak_downtrend"
	RangeBound      Condition = "range_bound"
	VolatileRange   Condition = "volatile_range"
)

// Details carries the diagnostic values behind a classification.
type Details struct {
	Reason        string  `json:"reason"`
	ADX           float64 `json:"adx"`
	RangePercent  float64 `json:"range_percent"`
	RangePosition float64 `json:"range_position"`
	ChopRatio     float64 `json:"chop_ratio"`
	Volatility    float64 `json:"volatility"`
	TrendStrength float64 `json:"trend_strength"`
}

// Config holds the classification thresholds.
type Config struct {
	ADXThreshold    float64 // Below this = ranging
	RangeThreshold  float64 // Fraction, e.g. 0.02 for 2%
	LookbackPeriods int     // Candles examined for range analysis
}

func DefaultConfig() Config {
	return Config{
		ADXThreshold:    25.0,
		RangeThreshold:  0.02,
		LookbackPeriods: 50,
	}
}

type Classifier struct {
	cfg    Config
	logger zerolog.Logger
}

func NewClassifier(cfg Config, logger zerolog.Logger) *Classifier {
	return &Classifier{
		cfg:    cfg,
		logger: logger.With().Str("component", "regime_classifier").Logger(),
	}
}

// Classify maps the snapshot and candle window to exactly one condition.
// Fewer than 50 candles classifies as RangeBound with reason
// "insufficient_data".
func (c *Classifier) Classify(snap *indicators.Snapshot, candles []market.Candle) (Condition, Details) {
	if len(candles) < indicators.MinCandles {
		return RangeBound, Details{Reason: "insufficient_data"}
	}

	adx := ADX(market.Highs(candles), market.Lows(candles), market.Closes(candles), 14)
	rangePct, rangePos := c.analyzeRange(candles, snap.CurrentPrice)
	chopRatio, volatility := analyzeChop(market.Closes(candles))

	bullish := snap.EMA20 > snap.EMA50 && snap.EMA50 > snap.EMA200
	bearish := snap.EMA20 < snap.EMA50 && snap.EMA50 < snap.EMA200

	details := Details{
		ADX:           adx,
		RangePercent:  rangePct,
		RangePosition: rangePos,
		ChopRatio:     chopRatio,
		Volatility:    volatility,
		TrendStrength: snap.TrendStrength,
	}

	condition := c.decide(&details, adx, rangePct, chopRatio, volatility, bullish, bearish, snap.TrendStrength)

	c.logger.Debug().
		Str("condition", string(condition)).
		Str("reason", details.Reason).
		Float64("adx", adx).
		Float64("range_percent", rangePct).
		Float64("chop_ratio", chopRatio).
		Msg("Market condition classified")

	return condition, details
}

func (c *Classifier) decide(details *Details, adx, rangePct, chopRatio, volatility float64, bullish, bearish bool, trendStrength float64) Condition {
	isRangeBound := rangePct < c.cfg.RangeThreshold*100
	isChoppy := chopRatio > 0.4

	if adx < c.cfg.ADXThreshold || isRangeBound || isChoppy {
		if volatility > 3.0 {
			details.Reason = "high_volatility_range"
			return VolatileRange
		}
		details.Reason = "low_adx_or_narrow_range"
		return RangeBound
	}

	if bullish {
		if adx > 30 && trendStrength > 70 {
			details.Reason = "strong_bullish_trend"
			return StrongUptrend
		}
		details.Reason = "weak_bullish_trend"
		return WeakUptrend
	}

	if bearish {
		if adx > 30 && trendStrength > 70 {
			details.Reason = "strong_bearish_trend"
			return StrongDowntrend
		}
		details.Reason = "weak_bearish_trend"
		return WeakDowntrend
	}

	details.Reason = "mixed_signals"
	return RangeBound
}

// IsTradeable reports whether entries should be searched at all for the
// given condition. Only the four trend labels qualify.
func IsTradeable(condition Condition) bool {
	switch condition {
	case StrongUptrend, WeakUptrend, StrongDowntrend, WeakDowntrend:
		return true
	default:
		return false
	}
}

// Uptrend reports whether the condition is one of the two bullish labels.
func Uptrend(condition Condition) bool {
	return condition == StrongUptrend || condition == WeakUptrend
}

// Downtrend reports whether the condition is one of the two bearish labels.
func Downtrend(condition Condition) bool {
	return condition == StrongDowntrend || condition == WeakDowntrend
}

func (c *Classifier) analyzeRange(candles []market.Candle, currentPrice float64) (rangePct, rangePos float64) {
	window := candles
	if len(window) > c.cfg.LookbackPeriods {
		window = window[len(window)-c.cfg.LookbackPeriods:]
	}

	highMax := window[0].High
	lowMin := window[0].Low
	for _, candle := range window[1:] {
		if candle.High > highMax {
			highMax = candle.High
		}
		if candle.Low < lowMin {
			lowMin = candle.Low
		}
	}

	priceRange := highMax - lowMin
	if currentPrice > 0 {
		rangePct = priceRange / currentPrice * 100
	}
	if priceRange > 0 {
		rangePos = (currentPrice - lowMin) / priceRange * 100
	} else {
		rangePos = 50
	}
	return rangePct, rangePos
}

// analyzeChop counts direction reversals between consecutive close-to-close
// deltas over the trailing 20 candles and measures the sample standard
// deviation of percentage changes over the same window.
func analyzeChop(closes []float64) (chopRatio, volatility float64) {
	window := closes
	if len(window) > 20 {
		window = window[len(window)-20:]
	}
	n := len(window)
	if n < 3 {
		return 0, 0
	}

	reversals := 0
	for i := 2; i < n; i++ {
		prev := window[i-1] - window[i-2]
		curr := window[i] - window[i-1]
		if (curr > 0 && prev < 0) || (curr < 0 && prev > 0) {
			reversals++
		}
	}
	chopRatio = float64(reversals) / float64(n)

	changes := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if window[i-1] != 0 {
			changes = append(changes, (window[i]-window[i-1])/window[i-1])
		}
	}
	volatility = sampleStddev(changes) * 100

	return chopRatio, volatility
}

// ADX computes the average directional index via the directional
// movement system with Wilder smoothing; returns the latest value.
func ADX(high, low, close []float64, period int) float64 {
	n := len(high)
	if n <= period*2 {
		return 0
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)

	for i := 1; i < n; i++ {
		upMove := high[i] - high[i-1]
		downMove := low[i-1] - low[i]

		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}

		tr1 := high[i] - low[i]
		tr2 := math.Abs(high[i] - close[i-1])
		tr3 := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(tr1, math.Max(tr2, tr3))
	}

	atr := wilderSmooth(tr, period)
	plusSmooth := wilderSmooth(plusDM, period)
	minusSmooth := wilderSmooth(minusDM, period)

	plusDI := make([]float64, n)
	minusDI := make([]float64, n)
	for i := period; i < n; i++ {
		if atr[i] > 0 {
			plusDI[i] = plusSmooth[i] / atr[i] * 100
			minusDI[i] = minusSmooth[i] / atr[i] * 100
		}
	}

	dx := make([]float64, n)
	for i := period; i < n; i++ {
		diSum := plusDI[i] + minusDI[i]
		if diSum > 0 {
			dx[i] = math.Abs(plusDI[i]-minusDI[i]) / diSum * 100
		}
	}

	adx := wilderSmooth(dx, period)
	return adx[n-1]
}

// wilderSmooth applies Wilder's smoothing (alpha 1/period) seeded with
// the simple mean of the first period values.
func wilderSmooth(data []float64, period int) []float64 {
	smoothed := make([]float64, len(data))
	if len(data) < period {
		return smoothed
	}

	sum := 0.0
	for _, v := range data[:period] {
		sum += v
	}
	smoothed[period-1] = sum / float64(period)

	alpha := 1.0 / float64(period)
	for i := period; i < len(data); i++ {
		smoothed[i] = smoothed[i-1]*(1-alpha) + data[i]*alpha
	}

	return smoothed
}

func sampleStddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))

	sq := 0.0
	for _, v := range values {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)-1))
}
