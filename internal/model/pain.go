package model

import "math"

// Score bounds for every pain category.
const (
	ScoreMin = 0.0
	ScoreMax = 10.0
)

// PainCategory identifies a dimension of operational difficulty a business
// may report (e.g., lead generation).
type PainCategory string

// Common category ids shipped in the default catalog.
const (
	CategoryLeadFlow        PainCategory = "lead_flow"
	CategoryFollowUp        PainCategory = "follow_up"
	CategoryOnboarding      PainCategory = "onboarding"
	CategoryAccountability  PainCategory = "accountability"
	CategoryContentCreation PainCategory = "content_creation"
	CategoryUpsellGrowth    PainCategory = "upsell_growth"
	CategoryRetention       PainCategory = "retention"
	CategoryAdminTasks      PainCategory = "admin_tasks"
)

// PainMatrix maps every catalog category to a score in [ScoreMin, ScoreMax].
// Scores change only through the scoring accumulator; everything else reads
// via Score or works on a Clone.
type PainMatrix map[PainCategory]float64

// NewPainMatrix returns a matrix with every category present at zero.
func NewPainMatrix(categories []PainCategory) PainMatrix {
	m := make(PainMatrix, len(categories))
	for _, c := range categories {
		m[c] = 0
	}
	return m
}

// Score returns the score for a category (0 when absent).
func (m PainMatrix) Score(c PainCategory) float64 {
	return m[c]
}

// Clone returns an independent copy.
func (m PainMatrix) Clone() PainMatrix {
	out := make(PainMatrix, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Max returns the highest score in the matrix.
func (m PainMatrix) Max() float64 {
	best := 0.0
	for _, v := range m {
		if v > best {
			best = v
		}
	}
	return best
}

// Equal reports whether two matrices hold the same categories and scores.
func (m PainMatrix) Equal(other PainMatrix) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		ov, ok := other[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// ClampScore bounds v to [ScoreMin, ScoreMax]. NaN maps to ScoreMin.
func ClampScore(v float64) float64 {
	if math.IsNaN(v) {
		return ScoreMin
	}
	return math.Max(ScoreMin, math.Min(ScoreMax, v))
}
