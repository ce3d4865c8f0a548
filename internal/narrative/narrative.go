// Package narrative renders ROI metrics into fixed-template headlines,
// explainers and badge colors. Output depends only on the metric.
package narrative

import (
	"fmt"
	"math"
	"strconv"

	"github.com/sells-group/discovery-engine/internal/model"
)

// Payback bucket boundaries, in days.
const (
	FastPaybackMaxDays   = 14
	SteadyPaybackMaxDays = 45
)

// Bucket groups recipes by how quickly they pay back.
type Bucket string

const (
	BucketFast       Bucket = "fast"
	BucketSteady     Bucket = "steady"
	BucketCommitment Bucket = "commitment"
)

// BucketFor returns the payback bucket for a number of days.
func BucketFor(paybackDays int) Bucket {
	switch {
	case paybackDays <= FastPaybackMaxDays:
		return BucketFast
	case paybackDays <= SteadyPaybackMaxDays:
		return BucketSteady
	default:
		return BucketCommitment
	}
}

// Badge returns the traffic-light color for a bucket.
func (b Bucket) Badge() model.BadgeColor {
	switch b {
	case BucketFast:
		return model.BadgeGreen
	case BucketSteady:
		return model.BadgeAmber
	default:
		return model.BadgeRed
	}
}

var headlines = map[Bucket]string{
	BucketFast:       "%s pays for itself in about %d days",
	BucketSteady:     "%s returns a typical %s%% within %d days",
	BucketCommitment: "%s is a bigger build with a %s%% typical return",
}

type explainerKey struct {
	risk   model.RiskLevel
	bucket Bucket
}

// Explainer arguments, in order: median ROI, p75 ROI, monthly hours, payback days.
var explainers = map[explainerKey]string{
	{model.RiskLow, BucketFast}:          "A low-risk quick win: coaches typically see %s%% ROI (top quarter %s%%) and get back %s hours a month, with payback in %d days.",
	{model.RiskLow, BucketSteady}:        "Low risk and steady: expect around %s%% ROI (top quarter %s%%) and %s hours saved each month once it beds in over %d days.",
	{model.RiskLow, BucketCommitment}:    "Low risk but slow to pay off: typical ROI is %s%% (top quarter %s%%) and %s hours a month, though payback takes about %d days.",
	{model.RiskMedium, BucketFast}:       "Needs some setup but pays back fast: typical ROI %s%% (top quarter %s%%), %s hours saved monthly, payback in %d days.",
	{model.RiskMedium, BucketSteady}:     "A moderate change to how you work: typical ROI %s%% (top quarter %s%%) and %s hours back each month, paying back in roughly %d days.",
	{model.RiskMedium, BucketCommitment}: "A real project with a solid return: typical ROI %s%% (top quarter %s%%) and %s hours a month, with payback around %d days.",
	{model.RiskHigh, BucketFast}:         "Ambitious but quick to prove itself: typical ROI %s%% (top quarter %s%%), %s hours saved monthly, payback in %d days.",
	{model.RiskHigh, BucketSteady}:       "A significant change that needs buy-in: typical ROI %s%% (top quarter %s%%) and %s hours back monthly after about %d days.",
	{model.RiskHigh, BucketCommitment}:   "A higher-commitment investment: plan for about %[4]d days to payback, after which coaches typically see %[1]s%% ROI (top quarter %[2]s%%) and %[3]s hours saved a month.",
}

// Generator renders narratives. The zero value is ready to use.
type Generator struct{}

// NewGenerator returns a narrative generator.
func NewGenerator() *Generator { return &Generator{} }

// Generate renders one metric.
func (g *Generator) Generate(m model.ROIMetric) model.ROINarrative {
	bucket := BucketFor(m.PaybackDays)
	title := m.RecipeTitle
	if title == "" {
		title = m.RecipeID
	}

	var headline string
	switch bucket {
	case BucketFast:
		headline = fmt.Sprintf(headlines[bucket], title, m.PaybackDays)
	case BucketSteady:
		headline = fmt.Sprintf(headlines[bucket], title, formatNumber(m.MedianROI), m.PaybackDays)
	default:
		headline = fmt.Sprintf(headlines[bucket], title, formatNumber(m.MedianROI))
	}

	risk := m.Risk
	if !risk.Valid() {
		risk = model.RiskHigh
	}
	explainer := fmt.Sprintf(explainers[explainerKey{risk, bucket}],
		formatNumber(m.MedianROI), formatNumber(m.P75ROI), formatNumber(m.MonthlyTimeSaved), m.PaybackDays)

	return model.ROINarrative{
		RecipeID:   m.RecipeID,
		Headline:   headline,
		Explainer:  explainer,
		BadgeColor: bucket.Badge(),
	}
}

// GenerateAll renders metrics in order. The result is never nil.
func (g *Generator) GenerateAll(metrics []model.ROIMetric) []model.ROINarrative {
	out := make([]model.ROINarrative, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, g.Generate(m))
	}
	return out
}

// formatNumber rounds to one decimal and drops a trailing ".0".
func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}
