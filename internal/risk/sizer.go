// Package risk converts an accepted entry candidate into concrete
// position sizing: size in USD, leverage, stop-loss, and a three-level
// take-profit ladder, all scaled to the current account balance.
package risk

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"trading-signal-engine/internal/entry"
)

// Parameters is the balance-tiered risk envelope. Pure function of
// balance; recomputed on demand, never stored.
type Parameters struct {
	MaxRiskPercent  float64 `json:"max_risk_percent"`
	PositionPercent float64 `json:"position_percent"`
	MaxPositionUSD  float64 `json:"max_position_usd"`
	StopLossPercent float64 `json:"stop_loss_percent"`
	MaxLeverage     float64 `json:"max_leverage"`
}

// Sizing is the final output of a sizing run.
type Sizing struct {
	PositionSizeUSD float64 `json:"position_size_usd"`
	PositionPercent float64 `json:"position_percent"`
	RiskAmountUSD   float64 `json:"risk_amount_usd"`
	StopLossPercent float64 `json:"stop_loss_percent"`
	Leverage        float64 `json:"leverage"`
	StopLoss        float64 `json:"stop_loss"`
	TakeProfit1     float64 `json:"take_profit_1"`
	TakeProfit2     float64 `json:"take_profit_2"`
	TakeProfit3     float64 `json:"take_profit_3"`
}

// Config holds the safety ceilings.
type Config struct {
	MaxRiskPerTrade    float64 // Risk percent floor when no tier applies
	MaxPositionPercent float64 // Position size ceiling as % of balance
	MaxStopLossPercent float64 // Stop loss ceiling
	MaxLeverage        float64
}

func DefaultConfig() Config {
	return Config{
		MaxRiskPerTrade:    2.0,
		MaxPositionPercent: 10.0,
		MaxStopLossPercent: 5.0,
		MaxLeverage:        10.0,
	}
}

// balanceTiers maps minimum balance to risk percent; the highest tier
// the balance meets wins.
var balanceTiers = []struct {
	minBalance float64
	riskPct    float64
}{
	{20, 1.5},
	{50, 2.0},
	{100, 2.5},
	{250, 3.0},
}

type Sizer struct {
	cfg    Config
	logger zerolog.Logger
}

func NewSizer(cfg Config, logger zerolog.Logger) *Sizer {
	return &Sizer{
		cfg:    cfg,
		logger: logger.With().Str("component", "risk_sizer").Logger(),
	}
}

// Validate fails closed on balances the sizer cannot work with.
func (s *Sizer) Validate(balance float64) error {
	if balance <= 0 {
		return fmt.Errorf("invalid account balance: %.2f", balance)
	}
	return nil
}

// Parameters derives the risk envelope for a balance.
func (s *Sizer) Parameters(balance float64) Parameters {
	riskPct := s.cfg.MaxRiskPerTrade
	for _, tier := range balanceTiers {
		if balance >= tier.minBalance {
			riskPct = tier.riskPct
		}
	}

	var multiplier float64
	switch {
	case balance < 50:
		multiplier = 1.5
	case balance < 100:
		multiplier = 2.0
	default:
		multiplier = 2.5
	}
	positionPct := math.Min(riskPct*multiplier, s.cfg.MaxPositionPercent)

	var stopLossPct float64
	switch {
	case balance < 50:
		stopLossPct = 1.0
	case balance < 100:
		stopLossPct = 1.5
	default:
		stopLossPct = 2.0
	}
	stopLossPct = math.Min(stopLossPct, s.cfg.MaxStopLossPercent)

	return Parameters{
		MaxRiskPercent:  riskPct,
		PositionPercent: positionPct,
		MaxPositionUSD:  balance * positionPct / 100,
		StopLossPercent: stopLossPct,
		MaxLeverage:     s.cfg.MaxLeverage,
	}
}

// Size produces the full sizing for an accepted candidate. A supplied
// stop-loss price whose implied percent exceeds the ceiling scales the
// position down proportionally to preserve the risk cap; pass 0 to use
// the tiered stop-loss.
func (s *Sizer) Size(balance, confidence, entryPrice float64, direction entry.Direction, stopLossPrice float64) (*Sizing, error) {
	if err := s.Validate(balance); err != nil {
		return nil, err
	}
	if entryPrice <= 0 {
		return nil, fmt.Errorf("invalid entry price: %.4f", entryPrice)
	}

	params := s.Parameters(balance)

	confidenceMultiplier := math.Max(0.5, math.Min(1.5, confidence))
	positionUSD := params.MaxPositionUSD * confidenceMultiplier

	if stopLossPrice > 0 {
		impliedPct := math.Abs(stopLossPrice-entryPrice) / entryPrice * 100
		if impliedPct > s.cfg.MaxStopLossPercent {
			s.logger.Warn().
				Float64("stop_loss_percent", impliedPct).
				Float64("ceiling", s.cfg.MaxStopLossPercent).
				Msg("Stop loss exceeds ceiling, scaling position down")
			positionUSD *= s.cfg.MaxStopLossPercent / impliedPct
		}
	}

	positionUSD = math.Min(positionUSD, balance*s.cfg.MaxPositionPercent/100)

	levels := priceLevels(entryPrice, params.StopLossPercent, direction)
	leverage := s.leverage(balance, confidence)

	sizing := &Sizing{
		PositionSizeUSD: positionUSD,
		PositionPercent: positionUSD / balance * 100,
		RiskAmountUSD:   positionUSD * params.StopLossPercent / 100,
		StopLossPercent: params.StopLossPercent,
		Leverage:        leverage,
		StopLoss:        levels[0],
		TakeProfit1:     levels[1],
		TakeProfit2:     levels[2],
		TakeProfit3:     levels[3],
	}

	s.logger.Debug().
		Float64("balance", balance).
		Float64("confidence", confidence).
		Float64("position_usd", sizing.PositionSizeUSD).
		Float64("leverage", sizing.Leverage).
		Msg("Position sized")

	return sizing, nil
}

// leverage grows with balance and confidence, capped at the configured
// maximum. Small accounts never use leverage.
func (s *Sizer) leverage(balance, confidence float64) float64 {
	var base float64
	switch {
	case balance < 50:
		base = 1.0
	case balance < 100:
		base = 2.0
	case balance < 250:
		base = 3.0
		if confidence >= 0.80 {
			base = 5.0
		}
	default:
		base = 5.0
		if confidence >= 0.85 {
			base = 10.0
		}
	}

	var multiplier float64
	switch {
	case confidence < 0.75:
		multiplier = 0.8
	case confidence < 0.85:
		multiplier = 1.0
	default:
		multiplier = 1.1
	}

	leverage := math.Min(base*multiplier, s.cfg.MaxLeverage)
	return math.Round(leverage*10) / 10
}

// priceLevels returns [stopLoss, tp1, tp2, tp3] around the entry using
// fixed 1.5x / 3.0x / 4.5x reward multiples of the stop distance.
func priceLevels(entryPrice, stopLossPct float64, direction entry.Direction) [4]float64 {
	if direction == entry.Short {
		return [4]float64{
			entryPrice * (1 + stopLossPct/100),
			entryPrice * (1 - stopLossPct*1.5/100),
			entryPrice * (1 - stopLossPct*3.0/100),
			entryPrice * (1 - stopLossPct*4.5/100),
		}
	}
	return [4]float64{
		entryPrice * (1 - stopLossPct/100),
		entryPrice * (1 + stopLossPct*1.5/100),
		entryPrice * (1 + stopLossPct*3.0/100),
		entryPrice * (1 + stopLossPct*4.5/100),
	}
}
