// Package indicators derives technical indicator snapshots from candle
// sequences. All calculations are pure functions of the supplied window;
// nothing is cached between calls.
package indicators

import (
	"math"

	"trading-signal-engine/internal/market"
)

// MinCandles is the minimum window for a meaningful snapshot. Shorter
// inputs degrade to NeutralSnapshot.
const MinCandles = 50

// Snapshot holds indicator values for the latest candle of a sequence.
type Snapshot struct {
	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`
	EMA20         float64 `json:"ema_20"`
	EMA50         float64 `json:"ema_50"`
	EMA200        float64 `json:"ema_200"`

	BBUpper  float64 `json:"bb_upper"`
	BBMiddle float64 `json:"bb_middle"`
	BBLower  float64 `json:"bb_lower"`

	ATR        float64 `json:"atr"`
	Volatility float64 `json:"volatility"` // ATR as % of price

	VolumeChange  float64 `json:"volume_change"`  // % vs trailing 20-candle mean
	VolumeProfile float64 `json:"volume_profile"` // current / trailing mean ratio

	PriceChangeShort float64 `json:"price_change_short"` // % over 5 candles
	PriceChangeLong  float64 `json:"price_change_long"`  // % over 20 candles

	SupportDistance    float64 `json:"support_distance"`    // % above recent low
	ResistanceDistance float64 `json:"resistance_distance"` // % below recent high

	TrendStrength float64 `json:"trend_strength"` // [0,100]

	CurrentPrice float64 `json:"current_price"`
	RecentHigh   float64 `json:"recent_high"`
	RecentLow    float64 `json:"recent_low"`
}

// NeutralSnapshot is the defined fallback for insufficient or degenerate
// input: neutral RSI, zeroed momentum, volume profile at parity.
func NeutralSnapshot() *Snapshot {
	return &Snapshot{
		RSI:           50.0,
		VolumeProfile: 1.0,
	}
}

// Compute derives a full indicator snapshot from an ordered candle
// sequence. Returns NeutralSnapshot when fewer than MinCandles are
// supplied.
func Compute(candles []market.Candle) *Snapshot {
	if len(candles) < MinCandles {
		return NeutralSnapshot()
	}

	close := market.Closes(candles)
	high := market.Highs(candles)
	low := market.Lows(candles)
	volume := market.Volumes(candles)

	n := len(close)
	last := n - 1
	currentPrice := close[last]

	rsi := RSI(close, 14)
	macdLine, macdSignal, macdHist := MACD(close, 12, 26, 9)
	ema20 := EMA(close, 20)
	ema50 := EMA(close, 50)
	ema200 := EMA(close, 200)
	bbUpper, bbMiddle, bbLower := BollingerBands(close, 20, 2)
	atr := ATR(high, low, close, 14)

	volumeMA := mean(volume[n-20:])
	volumeChange := 0.0
	volumeProfile := 1.0
	if volumeMA > 0 {
		volumeChange = (volume[last] - volumeMA) / volumeMA * 100
		volumeProfile = volume[last] / volumeMA
	}

	priceChangeShort := 0.0
	if close[n-5] != 0 {
		priceChangeShort = (close[last] - close[n-5]) / close[n-5] * 100
	}
	priceChangeLong := 0.0
	if close[n-20] != 0 {
		priceChangeLong = (close[last] - close[n-20]) / close[n-20] * 100
	}

	recentHigh := maxOf(high[n-20:])
	recentLow := minOf(low[n-20:])
	supportDistance := 0.0
	if recentLow > 0 {
		supportDistance = (currentPrice - recentLow) / recentLow * 100
	}
	resistanceDistance := 0.0
	if currentPrice > 0 {
		resistanceDistance = (recentHigh - currentPrice) / currentPrice * 100
	}

	volatility := 0.0
	if currentPrice > 0 {
		volatility = atr[last] / currentPrice * 100
	}

	return &Snapshot{
		RSI:                rsi[last],
		MACD:               macdLine[last],
		MACDSignal:         macdSignal[last],
		MACDHistogram:      macdHist[last],
		EMA20:              ema20[last],
		EMA50:              ema50[last],
		EMA200:             ema200[last],
		BBUpper:            bbUpper[last],
		BBMiddle:           bbMiddle[last],
		BBLower:            bbLower[last],
		ATR:                atr[last],
		Volatility:         volatility,
		VolumeChange:       volumeChange,
		VolumeProfile:      volumeProfile,
		PriceChangeShort:   priceChangeShort,
		PriceChangeLong:    priceChangeLong,
		SupportDistance:    supportDistance,
		ResistanceDistance: resistanceDistance,
		TrendStrength:      trendStrength(ema20[last], ema50[last], ema200[last], currentPrice),
		CurrentPrice:       currentPrice,
		RecentHigh:         recentHigh,
		RecentLow:          recentLow,
	}
}

// EMA computes the exponential moving average series. The value at index
// period-1 is seeded with the simple mean of the first period values;
// earlier indices stay zero.
func EMA(prices []float64, period int) []float64 {
	ema := make([]float64, len(prices))
	if len(prices) < period {
		return ema
	}

	multiplier := 2.0 / float64(period+1)
	ema[period-1] = mean(prices[:period])

	for i := period; i < len(prices); i++ {
		ema[i] = prices[i]*multiplier + ema[i-1]*(1-multiplier)
	}

	return ema
}

// RSI computes the Wilder relative strength index series. The first
// period entries are filled with neutral 50; a zero average loss maps
// to RS=0 rather than pushing RSI toward 100.
func RSI(prices []float64, period int) []float64 {
	n := len(prices)
	rsi := make([]float64, n)
	if n <= period {
		for i := range rsi {
			rsi[i] = 50
		}
		return rsi
	}

	gain := make([]float64, n-1)
	loss := make([]float64, n-1)
	for i := 1; i < n; i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gain[i-1] = delta
		} else {
			loss[i-1] = -delta
		}
	}

	avgGain := make([]float64, n)
	avgLoss := make([]float64, n)
	avgGain[period] = mean(gain[:period])
	avgLoss[period] = mean(loss[:period])

	for i := period + 1; i < n; i++ {
		avgGain[i] = (avgGain[i-1]*float64(period-1) + gain[i-1]) / float64(period)
		avgLoss[i] = (avgLoss[i-1]*float64(period-1) + loss[i-1]) / float64(period)
	}

	for i := 0; i < n; i++ {
		if i < period {
			rsi[i] = 50
			continue
		}
		rs := 0.0
		if avgLoss[i] != 0 {
			rs = avgGain[i] / avgLoss[i]
		}
		rsi[i] = 100 - 100/(1+rs)
	}

	return rsi
}

// MACD computes the MACD line, signal line, and histogram series.
func MACD(prices []float64, fast, slow, signal int) (line, signalLine, histogram []float64) {
	emaFast := EMA(prices, fast)
	emaSlow := EMA(prices, slow)

	line = make([]float64, len(prices))
	for i := range prices {
		line[i] = emaFast[i] - emaSlow[i]
	}

	signalLine = EMA(line, signal)

	histogram = make([]float64, len(prices))
	for i := range prices {
		histogram[i] = line[i] - signalLine[i]
	}

	return line, signalLine, histogram
}

// BollingerBands computes upper/middle/lower band series using a rolling
// simple mean and population standard deviation.
func BollingerBands(prices []float64, period int, stdMult float64) (upper, middle, lower []float64) {
	n := len(prices)
	upper = make([]float64, n)
	middle = make([]float64, n)
	lower = make([]float64, n)

	for i := period - 1; i < n; i++ {
		window := prices[i-period+1 : i+1]
		m := mean(window)
		sd := stddev(window, m)
		middle[i] = m
		upper[i] = m + sd*stdMult
		lower[i] = m - sd*stdMult
	}

	return upper, middle, lower
}

// ATR computes the average true range series: EMA-smoothed true range
// with the first period entries filled by the simple mean of the first
// period true-range values.
func ATR(high, low, close []float64, period int) []float64 {
	n := len(high)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		tr1 := high[i] - low[i]
		tr2 := math.Abs(high[i] - close[i-1])
		tr3 := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(tr1, math.Max(tr2, tr3))
	}

	atr := EMA(tr, period)
	if n >= period {
		fill := mean(tr[:period])
		for i := 0; i < period; i++ {
			atr[i] = fill
		}
	}

	return atr
}

// trendStrength scores trend quality in [0,100] based on EMA stack
// alignment and the price's distance from EMA20. Mixed alignment scores
// a fixed 30.
func trendStrength(ema20, ema50, ema200, price float64) float64 {
	bullish := ema20 > ema50 && ema50 > ema200
	bearish := ema20 < ema50 && ema50 < ema200

	var strength float64
	switch {
	case bullish && price > ema20 && ema20 > 0:
		strength = math.Min(100, 50+((price-ema20)/ema20)*1000)
	case bearish && price < ema20 && ema20 > 0:
		strength = math.Min(100, 50+((ema20-price)/ema20)*1000)
	default:
		strength = 30
	}

	return math.Max(0, math.Min(100, strength))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the population standard deviation around a precomputed mean.
func stddev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
