// Package entry searches for qualifying entry setups once the regime
// classifier has confirmed a tradeable trend.
package entry

import (
	"sort"

	"github.com/rs/zerolog"

	"trading-signal-engine/internal/indicators"
	"trading-signal-engine/internal/market"
	"trading-signal-engine/internal/regime"
)

// Type identifies the entry setup that matched.
type Type string

const (
	Breakout            Type = "breakout"
	Pullback            Type = "pullback"
	SupportBounce       Type = "support_bounce"
	ResistanceRejection Type = "resistance_rejection"
	TrendFollow         Type = "trend_follow"
	NoEntry             Type = "no_entry"
)

// Direction is the suggested trade side.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Candidate describes a matched entry setup. Direction is empty when
// Type is NoEntry.
type Candidate struct {
	Type       Type      `json:"type"`
	Direction  Direction `json:"direction,omitempty"`
	EntryPrice float64   `json:"entry_price"`
	Level      float64   `json:"level,omitempty"` // S/R or EMA level that triggered the setup
	Reason     string    `json:"reason"`
	RiskReward string    `json:"risk_reward,omitempty"` // excellent / good / moderate
}

// Config holds the entry search tuning knobs.
type Config struct {
	Lookback             int     // Candles scanned for pivot levels
	PivotWindow          int     // Symmetric window for pivot detection
	ClusterTolerance     float64 // Percent distance for merging nearby levels
	LevelTolerance       float64 // Percent distance to count as "near" a level
	BreakoutConfirmation int     // Closes beyond the level required to confirm
}

func DefaultConfig() Config {
	return Config{
		Lookback:             50,
		PivotWindow:          5,
		ClusterTolerance:     1.0,
		LevelTolerance:       1.0,
		BreakoutConfirmation: 2,
	}
}

type Finder struct {
	cfg    Config
	logger zerolog.Logger
}

func NewFinder(cfg Config, logger zerolog.Logger) *Finder {
	return &Finder{
		cfg:    cfg,
		logger: logger.With().Str("component", "entry_finder").Logger(),
	}
}

// FindEntry evaluates entry strategies in priority order for the given
// regime. Range-bound and volatile conditions return NoEntry without
// searching.
func (f *Finder) FindEntry(condition regime.Condition, snap *indicators.Snapshot, candles []market.Candle) Candidate {
	if len(candles) < indicators.MinCandles {
		return Candidate{Type: NoEntry, Reason: "insufficient_data"}
	}

	if !regime.IsTradeable(condition) {
		return Candidate{Type: NoEntry, Reason: "range_bound_market"}
	}

	supports, resistances := f.findSupportResistance(candles)
	currentPrice := snap.CurrentPrice

	var candidate Candidate
	switch {
	case regime.Uptrend(condition):
		candidate = f.findUptrendEntry(snap, candles, supports, resistances, currentPrice)
	case regime.Downtrend(condition):
		candidate = f.findDowntrendEntry(snap, candles, supports, resistances, currentPrice)
	default:
		candidate = Candidate{Type: NoEntry, Reason: "range_bound_market"}
	}

	f.logger.Debug().
		Str("condition", string(condition)).
		Str("entry_type", string(candidate.Type)).
		Str("reason", candidate.Reason).
		Msg("Entry search complete")

	return candidate
}

func (f *Finder) findUptrendEntry(snap *indicators.Snapshot, candles []market.Candle, supports, resistances []float64, currentPrice float64) Candidate {
	recent := lastN(candles, 10)

	// Strategy 1: bounce off nearby support
	if support, ok := nearestBelow(supports, currentPrice); ok && f.isNearLevel(currentPrice, support) {
		pullback := (currentPrice - support) / support * 100
		if pullback < 2.0 && snap.RSI < 60 {
			return Candidate{
				Type:       SupportBounce,
				Direction:  Long,
				EntryPrice: currentPrice,
				Level:      support,
				Reason:     "bouncing off support in uptrend",
				RiskReward: "excellent",
			}
		}
	}

	// Strategy 2: pullback toward EMA20
	if currentPrice > snap.EMA20 && snap.EMA20 > snap.EMA50 {
		distance := (currentPrice - snap.EMA20) / snap.EMA20 * 100
		if distance > 0.5 && distance < 3.0 && snap.RSI < 65 {
			return Candidate{
				Type:       Pullback,
				Direction:  Long,
				EntryPrice: currentPrice,
				Level:      snap.EMA20,
				Reason:     "pullback to EMA20 in uptrend",
				RiskReward: "good",
			}
		}
	}

	// Strategy 3: confirmed breakout above resistance
	if resistance, ok := nearestAbove(resistances, currentPrice); ok {
		distance := (resistance - currentPrice) / currentPrice * 100
		if distance < 1.0 && f.confirmedBreak(recent, resistance, true) {
			return Candidate{
				Type:       Breakout,
				Direction:  Long,
				EntryPrice: currentPrice,
				Level:      resistance,
				Reason:     "breakout above resistance in uptrend",
				RiskReward: "moderate",
			}
		}
	}

	// Strategy 4: momentum continuation
	if snap.RSI > 55 && snap.RSI < 70 && snap.MACDHistogram > 0 && currentPrice > snap.EMA20 {
		return Candidate{
			Type:       TrendFollow,
			Direction:  Long,
			EntryPrice: currentPrice,
			Reason:     "trend continuation with momentum",
			RiskReward: "moderate",
		}
	}

	return Candidate{Type: NoEntry, EntryPrice: currentPrice, Reason: "waiting_for_better_setup"}
}

func (f *Finder) findDowntrendEntry(snap *indicators.Snapshot, candles []market.Candle, supports, resistances []float64, currentPrice float64) Candidate {
	recent := lastN(candles, 10)

	// Strategy 1: rejection at nearby resistance
	if resistance, ok := nearestAbove(resistances, currentPrice); ok && f.isNearLevel(currentPrice, resistance) {
		rejection := (resistance - currentPrice) / resistance * 100
		if rejection < 2.0 && snap.RSI > 40 {
			return Candidate{
				Type:       ResistanceRejection,
				Direction:  Short,
				EntryPrice: currentPrice,
				Level:      resistance,
				Reason:     "rejection at resistance in downtrend",
				RiskReward: "excellent",
			}
		}
	}

	// Strategy 2: pullback toward EMA20 from below
	if currentPrice < snap.EMA20 && snap.EMA20 < snap.EMA50 {
		distance := (snap.EMA20 - currentPrice) / currentPrice * 100
		if distance > 0.5 && distance < 3.0 && snap.RSI > 35 {
			return Candidate{
				Type:       Pullback,
				Direction:  Short,
				EntryPrice: currentPrice,
				Level:      snap.EMA20,
				Reason:     "pullback to EMA20 in downtrend",
				RiskReward: "good",
			}
		}
	}

	// Strategy 3: confirmed breakdown below support
	if support, ok := nearestBelow(supports, currentPrice); ok {
		distance := (currentPrice - support) / currentPrice * 100
		if distance < 1.0 && f.confirmedBreak(recent, support, false) {
			return Candidate{
				Type:       Breakout,
				Direction:  Short,
				EntryPrice: currentPrice,
				Level:      support,
				Reason:     "breakdown below support in downtrend",
				RiskReward: "moderate",
			}
		}
	}

	// Strategy 4: downward momentum continuation
	if snap.RSI > 30 && snap.RSI < 45 && snap.MACDHistogram < 0 && currentPrice < snap.EMA20 {
		return Candidate{
			Type:       TrendFollow,
			Direction:  Short,
			EntryPrice: currentPrice,
			Reason:     "downtrend continuation with momentum",
			RiskReward: "moderate",
		}
	}

	return Candidate{Type: NoEntry, EntryPrice: currentPrice, Reason: "waiting_for_better_setup"}
}

// findSupportResistance scans the trailing lookback window for pivot
// highs/lows, clusters nearby levels, and keeps the nearest 5 per side.
// A pivot must be the strict extremum of its symmetric window; ties
// disqualify.
func (f *Finder) findSupportResistance(candles []market.Candle) (supports, resistances []float64) {
	window := lastN(candles, f.cfg.Lookback)
	highs := market.Highs(window)
	lows := market.Lows(window)

	w := f.cfg.PivotWindow
	for i := w; i < len(highs)-w; i++ {
		isPeak := true
		for j := i - w; j <= i+w; j++ {
			if j != i && highs[j] >= highs[i] {
				isPeak = false
				break
			}
		}
		if isPeak {
			resistances = append(resistances, highs[i])
		}

		isTrough := true
		for j := i - w; j <= i+w; j++ {
			if j != i && lows[j] <= lows[i] {
				isTrough = false
				break
			}
		}
		if isTrough {
			supports = append(supports, lows[i])
		}
	}

	supports = f.clusterLevels(supports)
	resistances = f.clusterLevels(resistances)

	sort.Float64s(supports)
	sort.Sort(sort.Reverse(sort.Float64Slice(resistances)))

	if len(supports) > 5 {
		supports = supports[:5]
	}
	if len(resistances) > 5 {
		resistances = resistances[:5]
	}
	return supports, resistances
}

// clusterLevels merges levels within tolerance of the running cluster
// mean into a single representative value.
func (f *Finder) clusterLevels(levels []float64) []float64 {
	if len(levels) == 0 {
		return nil
	}

	sorted := append([]float64(nil), levels...)
	sort.Float64s(sorted)

	var clustered []float64
	cluster := []float64{sorted[0]}

	for _, level := range sorted[1:] {
		avg := mean(cluster)
		tolerance := avg * f.cfg.ClusterTolerance / 100
		if level-avg <= tolerance && avg-level <= tolerance {
			cluster = append(cluster, level)
		} else {
			clustered = append(clustered, mean(cluster))
			cluster = []float64{level}
		}
	}
	clustered = append(clustered, mean(cluster))

	return clustered
}

func (f *Finder) isNearLevel(price, level float64) bool {
	tolerance := level * f.cfg.LevelTolerance / 100
	diff := price - level
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// confirmedBreak requires the last BreakoutConfirmation candle closes to
// sit beyond the level.
func (f *Finder) confirmedBreak(recent []market.Candle, level float64, up bool) bool {
	if len(recent) < f.cfg.BreakoutConfirmation {
		return false
	}

	count := 0
	for _, candle := range recent[len(recent)-f.cfg.BreakoutConfirmation:] {
		if up && candle.Close > level {
			count++
		}
		if !up && candle.Close < level {
			count++
		}
	}
	return count >= f.cfg.BreakoutConfirmation
}

func nearestBelow(levels []float64, price float64) (float64, bool) {
	found := false
	best := 0.0
	for _, l := range levels {
		if l < price && (!found || l > best) {
			best = l
			found = true
		}
	}
	return best, found
}

func nearestAbove(levels []float64, price float64) (float64, bool) {
	found := false
	best := 0.0
	for _, l := range levels {
		if l > price && (!found || l < best) {
			best = l
			found = true
		}
	}
	return best, found
}

func lastN(candles []market.Candle, n int) []market.Candle {
	if len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
