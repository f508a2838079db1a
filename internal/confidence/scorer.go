// Package confidence gates candidate signals behind a scoring model.
// The scorer is an injected capability so the pipeline can be tested
// with deterministic stubs.
package confidence

import (
	"errors"
	"fmt"
	"math"

	"trading-signal-engine/internal/indicators"
)

// FeatureCount is the fixed width of the scorer input vector.
const FeatureCount = 10

// ErrScorerUnavailable is returned when the gate cannot produce a
// confidence value. The pipeline treats it as fatal for that run; it
// never fabricates a score.
var ErrScorerUnavailable = errors.New("confidence scorer unavailable")

// FeatureVector is the ordered model input:
// [rsi/100, macd, macd signal, volume change, short price change,
// long price change, volatility, support distance, trend strength,
// volume profile].
type FeatureVector [FeatureCount]float64

// ExtractFeatures builds the feature vector from an indicator snapshot.
func ExtractFeatures(snap *indicators.Snapshot) FeatureVector {
	return FeatureVector{
		snap.RSI / 100.0,
		snap.MACD,
		snap.MACDSignal,
		snap.VolumeChange,
		snap.PriceChangeShort,
		snap.PriceChangeLong,
		snap.Volatility,
		snap.SupportDistance,
		snap.TrendStrength,
		snap.VolumeProfile,
	}
}

// Scorer maps a feature vector to a confidence in [0,1]. Implementations
// must be deterministic for a given input.
type Scorer interface {
	Score(features FeatureVector) (float64, error)
}

// Gate wraps a scorer with the accept/reject decision.
type Gate struct {
	scorer    Scorer
	threshold float64
}

func NewGate(scorer Scorer, threshold float64) *Gate {
	return &Gate{scorer: scorer, threshold: threshold}
}

// Evaluate scores the features and reports whether the candidate passes
// the gate. A scorer failure surfaces as ErrScorerUnavailable.
func (g *Gate) Evaluate(features FeatureVector) (confirmed bool, confidence float64, err error) {
	confidence, err = g.scorer.Score(features)
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrScorerUnavailable, err)
	}
	if confidence < 0 || confidence > 1 || math.IsNaN(confidence) {
		return false, 0, fmt.Errorf("%w: score %v out of range", ErrScorerUnavailable, confidence)
	}
	return confidence >= g.threshold, confidence, nil
}
