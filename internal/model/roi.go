package model

// ROIMetric is the computed ROI projection for one recommended recipe.
type ROIMetric struct {
	RecipeID         string    `json:"recipe_id"`
	RecipeTitle      string    `json:"recipe_title"`
	MedianROI        float64   `json:"median_roi"`
	PaybackDays      int       `json:"payback_days"`
	P75ROI           float64   `json:"p75_roi"`
	MonthlyTimeSaved float64   `json:"monthly_time_saved"`
	Risk             RiskLevel `json:"risk_level"`
	Relevance        float64   `json:"relevance"`
}

// BadgeColor is the traffic-light color attached to a narrative.
type BadgeColor string

const (
	BadgeGreen BadgeColor = "green"
	BadgeAmber BadgeColor = "amber"
	BadgeRed   BadgeColor = "red"
)

// ROINarrative is the human-readable rendering of an ROIMetric.
type ROINarrative struct {
	RecipeID   string     `json:"recipe_id"`
	Headline   string     `json:"headline"`
	Explainer  string     `json:"explainer"`
	BadgeColor BadgeColor `json:"badge_color"`
}

// Recommendations is the final result attached to a completed session.
type Recommendations struct {
	Metrics    []ROIMetric    `json:"roi_metrics"`
	Narratives []ROINarrative `json:"narratives"`
}

// Clone returns a deep copy.
func (r *Recommendations) Clone() *Recommendations {
	if r == nil {
		return nil
	}
	return &Recommendations{
		Metrics:    append([]ROIMetric{}, r.Metrics...),
		Narratives: append([]ROINarrative{}, r.Narratives...),
	}
}
