package confidence

import "math"

// NetScorer is a small fixed-weight feed-forward scorer. Each hidden
// unit represents one family of evidence (momentum, trend, volume,
// stability) over squashed inputs; the output layer combines them
// through a sigmoid into [0,1]. Weights are constants, so scoring is
// fully deterministic and reproducible.
type NetScorer struct {
	hidden [][FeatureCount]float64
	bias   []float64
	out    []float64
	outB   float64
}

// NewNetScorer builds the scorer with its built-in weights.
func NewNetScorer() *NetScorer {
	return &NetScorer{
		hidden: [][FeatureCount]float64{
			// Momentum: RSI around healthy levels, positive MACD spread,
			// short-term price movement
			{1.8, 2.0, -2.0, 0.0, 0.6, 0.2, 0.0, 0.0, 0.0, 0.0},
			// Trend: trend strength and longer price change
			{0.0, 0.4, 0.0, 0.0, 0.0, 0.5, 0.0, 0.1, 3.5, 0.0},
			// Volume: participation vs trailing average
			{0.0, 0.0, 0.0, 0.02, 0.0, 0.0, 0.0, 0.0, 0.0, 0.8},
			// Stability: volatility counts against the setup
			{0.0, 0.0, 0.0, 0.0, 0.0, 0.0, -0.9, 0.0, 0.0, 0.0},
		},
		bias: []float64{-1.2, -1.4, -0.9, 0.6},
		out:  []float64{1.6, 1.8, 0.9, 1.1},
		outB: -0.6,
	}
}

// Score runs the forward pass. It never fails: a fixed-weight net has
// no external dependency to become unavailable.
func (n *NetScorer) Score(features FeatureVector) (float64, error) {
	activations := make([]float64, len(n.hidden))
	for h, weights := range n.hidden {
		sum := n.bias[h]
		for i, w := range weights {
			sum += w * squash(features[i], i)
		}
		activations[h] = math.Tanh(sum)
	}

	out := n.outB
	for h, a := range activations {
		out += n.out[h] * a
	}

	return sigmoid(out), nil
}

// squash keeps unbounded inputs (MACD values, percentage changes) from
// saturating the hidden layer. Already-bounded inputs pass through.
func squash(v float64, index int) float64 {
	switch index {
	case 0: // RSI already normalized to [0,1]
		return v
	case 8: // trend strength on [0,100]
		return v / 100.0
	case 9: // volume profile ratio, parity at 1.0
		return math.Tanh(v - 1.0)
	default:
		return math.Tanh(v / 5.0)
	}
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
