// Package recommend ranks catalog recipes against a final pain matrix and
// projects their ROI.
package recommend

import (
	"cmp"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/discovery-engine/internal/model"
)

// Defaults for ranking.
const (
	DefaultRelevanceThreshold = 4.0
	DefaultMaxResults         = 5
)

// Settings tune eligibility and result length.
type Settings struct {
	RelevanceThreshold float64
	MaxResults         int
}

// DefaultSettings returns the stock ranking settings.
func DefaultSettings() Settings {
	return Settings{
		RelevanceThreshold: DefaultRelevanceThreshold,
		MaxResults:         DefaultMaxResults,
	}
}

// Validate checks the settings are usable.
func (s Settings) Validate() error {
	if s.RelevanceThreshold < model.ScoreMin || s.RelevanceThreshold > model.ScoreMax {
		return eris.Errorf("recommend: relevance threshold %.2f outside [0,10]", s.RelevanceThreshold)
	}
	if s.MaxResults < 1 {
		return eris.Errorf("recommend: max results must be >= 1, got %d", s.MaxResults)
	}
	return nil
}

// Ranker orders recipes by how well they address reported pain.
type Ranker struct {
	recipes  []model.Recipe
	settings Settings
}

// NewRanker builds a ranker over recipes in catalog order.
func NewRanker(recipes []model.Recipe, settings Settings) (*Ranker, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	rs := make([]model.Recipe, len(recipes))
	for i, r := range recipes {
		r.Categories = append([]model.PainCategory(nil), r.Categories...)
		rs[i] = r
	}
	return &Ranker{recipes: rs, settings: settings}, nil
}

type candidate struct {
	metric model.ROIMetric
	order  int
}

// Rank returns at most MaxResults metrics for recipes with at least one
// applicable category at or above the relevance threshold. Order is
// relevance desc, payback asc, median ROI desc, then catalog order. The
// result is never nil.
func (r *Ranker) Rank(matrix model.PainMatrix) []model.ROIMetric {
	seen := make(map[string]bool, len(r.recipes))
	var cands []candidate

	for i, rec := range r.recipes {
		if seen[rec.ID] || len(rec.Categories) == 0 {
			continue
		}
		var best, sum float64
		for _, c := range rec.Categories {
			v := matrix.Score(c)
			sum += v
			best = max(best, v)
		}
		if best < r.settings.RelevanceThreshold {
			continue
		}
		seen[rec.ID] = true
		cands = append(cands, candidate{
			metric: Project(rec, sum/float64(len(rec.Categories))),
			order:  i,
		})
	}

	slices.SortFunc(cands, func(a, b candidate) int {
		if c := cmp.Compare(b.metric.Relevance, a.metric.Relevance); c != 0 {
			return c
		}
		if c := cmp.Compare(a.metric.PaybackDays, b.metric.PaybackDays); c != 0 {
			return c
		}
		if c := cmp.Compare(b.metric.MedianROI, a.metric.MedianROI); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})

	n := min(len(cands), r.settings.MaxResults)
	out := make([]model.ROIMetric, 0, n)
	for _, c := range cands[:n] {
		out = append(out, c.metric)
	}
	return out
}

// Project builds the ROI metric for a recipe at the given relevance.
func Project(rec model.Recipe, relevance float64) model.ROIMetric {
	return model.ROIMetric{
		RecipeID:         rec.ID,
		RecipeTitle:      rec.Title,
		MedianROI:        rec.MedianROI,
		PaybackDays:      rec.PaybackDays,
		P75ROI:           rec.P75ROI,
		MonthlyTimeSaved: rec.MonthlyTimeSavedHours,
		Risk:             rec.Risk,
		Relevance:        relevance,
	}
}
