package model

// RiskLevel grades how much change an automation recipe asks of a business.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// AllRiskLevels returns every valid risk level.
func AllRiskLevels() []RiskLevel {
	return []RiskLevel{RiskLow, RiskMedium, RiskHigh}
}

// Valid reports whether r is a known risk level.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// Persona is a pre-defined respondent archetype characterized by a centroid
// pain matrix.
type Persona struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Centroid    PainMatrix `json:"centroid" yaml:"centroid"`
}

// Ref returns the lightweight persona reference used in turn payloads.
func (p *Persona) Ref() *PersonaRef {
	if p == nil {
		return nil
	}
	return &PersonaRef{ID: p.ID, Name: p.Name, Description: p.Description}
}

// PersonaRef identifies a persona without its centroid.
type PersonaRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Recipe is a catalog automation offering with baseline ROI statistics.
type Recipe struct {
	ID                    string         `json:"id" yaml:"id"`
	Title                 string         `json:"title" yaml:"title"`
	Categories            []PainCategory `json:"categories" yaml:"categories"`
	MedianROI             float64        `json:"median_roi" yaml:"median_roi"`
	P75ROI                float64        `json:"p75_roi" yaml:"p75_roi"`
	PaybackDays           int            `json:"payback_days" yaml:"payback_days"`
	MonthlyTimeSavedHours float64        `json:"monthly_time_saved_hours" yaml:"monthly_time_saved_hours"`
	Risk                  RiskLevel      `json:"risk" yaml:"risk"`
}

// AppliesTo reports whether the recipe addresses the given category.
func (r Recipe) AppliesTo(c PainCategory) bool {
	for _, rc := range r.Categories {
		if rc == c {
			return true
		}
	}
	return false
}
