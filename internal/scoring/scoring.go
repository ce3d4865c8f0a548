// Package scoring merges classifier signals into a session's pain matrix
// using exponential smoothing.
package scoring

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/discovery-engine/internal/model"
)

// DefaultAlpha weights the previous score against the new signal.
const DefaultAlpha = 0.5

// Accumulator blends signals into a pain matrix. It is stateless apart from
// alpha and safe for concurrent use.
type Accumulator struct {
	alpha float64
}

// NewAccumulator returns an accumulator with the given smoothing factor.
// Alpha must be in [0, 1); alpha 1 would ignore every signal.
func NewAccumulator(alpha float64) (*Accumulator, error) {
	if alpha < 0 || alpha >= 1 {
		return nil, eris.Errorf("scoring: alpha %.3f out of range [0,1)", alpha)
	}
	return &Accumulator{alpha: alpha}, nil
}

// Alpha returns the smoothing factor.
func (a *Accumulator) Alpha() float64 { return a.alpha }

// Apply returns a new matrix with the signal merged in. Categories absent
// from the signal keep their score, categories not in the matrix are
// ignored. A no-signal result yields an unchanged copy.
func (a *Accumulator) Apply(matrix model.PainMatrix, signal model.Signal) model.PainMatrix {
	out := matrix.Clone()
	if !signal.HasSignal() {
		return out
	}
	for c, strength := range signal.Scores() {
		prev, ok := out[c]
		if !ok {
			continue
		}
		out[c] = model.ClampScore(prev*a.alpha + model.ClampScore(strength)*(1-a.alpha))
	}
	return out
}
