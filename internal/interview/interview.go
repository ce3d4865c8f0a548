// Package interview implements the consultation state machine:
// awaiting_first_answer → asking → complete. Transitions are pure; the
// caller owns persistence and serialization.
package interview

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/discovery-engine/internal/model"
	"github.com/sells-group/discovery-engine/internal/persona"
	"github.com/sells-group/discovery-engine/internal/scoring"
	"github.com/sells-group/discovery-engine/internal/taxonomy"
)

// Default completion settings.
const (
	DefaultMaxQuestions        = 6
	DefaultMinQuestions        = 3
	DefaultConfidenceThreshold = 8.0
)

// Settings are the completion tuning values.
type Settings struct {
	MaxQuestions        int
	MinQuestions        int
	ConfidenceThreshold float64
}

// DefaultSettings returns the stock completion rules.
func DefaultSettings() Settings {
	return Settings{
		MaxQuestions:        DefaultMaxQuestions,
		MinQuestions:        DefaultMinQuestions,
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
}

// Validate checks the settings are usable.
func (s Settings) Validate() error {
	if s.MaxQuestions < 1 {
		return eris.Errorf("interview: max questions must be >= 1, got %d", s.MaxQuestions)
	}
	if s.MinQuestions < 0 || s.MinQuestions > s.MaxQuestions {
		return eris.Errorf("interview: min questions %d outside [0,%d]", s.MinQuestions, s.MaxQuestions)
	}
	if s.ConfidenceThreshold < model.ScoreMin || s.ConfidenceThreshold > model.ScoreMax {
		return eris.Errorf("interview: confidence threshold %.2f outside [0,10]", s.ConfidenceThreshold)
	}
	return nil
}

// Decision summarizes what a transition did.
type Decision struct {
	Complete bool
	Reason   model.CompletionReason
	Category model.PainCategory
	Question string
	Persona  *model.Persona
}

// Controller drives sessions through the interview.
type Controller struct {
	catalog  *taxonomy.Catalog
	acc      *scoring.Accumulator
	personas *persona.Classifier
	settings Settings
	order    []model.PainCategory
}

// NewController wires the controller to its collaborators.
func NewController(cat *taxonomy.Catalog, acc *scoring.Accumulator, personas *persona.Classifier, settings Settings) (*Controller, error) {
	if cat == nil || acc == nil || personas == nil {
		return nil, eris.New("interview: catalog, accumulator and persona classifier are required")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		catalog:  cat,
		acc:      acc,
		personas: personas,
		settings: settings,
		order:    cat.ListCategories(),
	}, nil
}

// Settings returns the controller's completion settings.
func (c *Controller) Settings() Settings { return c.settings }

// Start creates a fresh session that is waiting on its opening answer.
func (c *Controller) Start(id, businessSummary string, now time.Time) *model.Session {
	return &model.Session{
		ID:              id,
		BusinessSummary: businessSummary,
		PainMatrix:      model.NewPainMatrix(c.order),
		AskedCategories: []model.PainCategory{},
		CurrentQuestion: c.catalog.OpeningQuestion(),
		State:           model.StateAwaitingFirstAnswer,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Advance applies one answer's signal and returns the next session state.
// The input session is never modified.
func (c *Controller) Advance(s *model.Session, signal model.Signal, now time.Time) (*model.Session, Decision, error) {
	if s == nil {
		return nil, Decision{}, eris.New("interview: nil session")
	}
	if s.IsComplete || s.State == model.StateComplete {
		return nil, Decision{}, eris.Wrapf(model.ErrSessionAlreadyComplete, "interview: session %s", s.ID)
	}

	next := s.Clone()
	next.QuestionCount++
	next.PainMatrix = c.acc.Apply(c.normalize(next.PainMatrix), signal)

	match := c.personas.Classify(next.PainMatrix)
	next.PersonaID = ""
	if match.Persona != nil {
		next.PersonaID = match.Persona.ID
	}
	next.Confidence = match.Confidence
	next.UpdatedAt = now

	d := Decision{Persona: match.Persona}
	if reason := c.ShouldComplete(next); reason != model.CompletionNone {
		next.State = model.StateComplete
		next.IsComplete = true
		next.CompletionReason = reason
		next.CurrentCategory = ""
		next.CurrentQuestion = ""
		d.Complete = true
		d.Reason = reason
		return next, d, nil
	}

	cat := c.NextCategory(next)
	q, _ := c.catalog.Question(cat)
	if !next.HasAsked(cat) {
		next.AskedCategories = append(next.AskedCategories, cat)
	}
	next.State = model.StateAsking
	next.CurrentCategory = cat
	next.CurrentQuestion = q
	d.Category = cat
	d.Question = q
	return next, d, nil
}

// ShouldComplete evaluates the completion rules in order and returns the
// first one that holds.
func (c *Controller) ShouldComplete(s *model.Session) model.CompletionReason {
	if s.QuestionCount >= c.settings.MaxQuestions {
		return model.CompletionMaxQuestions
	}
	if s.Confidence >= c.settings.ConfidenceThreshold && s.QuestionCount >= c.settings.MinQuestions {
		return model.CompletionConfident
	}
	return model.CompletionNone
}

// NextCategory picks the lowest-scoring category not yet asked, falling back
// to the lowest-scoring category overall. Ties go to catalog order.
func (c *Controller) NextCategory(s *model.Session) model.PainCategory {
	if cat, ok := c.lowest(s.PainMatrix, func(cat model.PainCategory) bool { return !s.HasAsked(cat) }); ok {
		return cat
	}
	cat, _ := c.lowest(s.PainMatrix, func(model.PainCategory) bool { return true })
	return cat
}

func (c *Controller) lowest(m model.PainMatrix, keep func(model.PainCategory) bool) (model.PainCategory, bool) {
	var (
		best  model.PainCategory
		score float64
		found bool
	)
	for _, cat := range c.order {
		if !keep(cat) {
			continue
		}
		if v := m.Score(cat); !found || v < score {
			best, score, found = cat, v, true
		}
	}
	return best, found
}

// normalize makes sure every catalog category is present, so sessions
// stored under an older catalog keep working.
func (c *Controller) normalize(m model.PainMatrix) model.PainMatrix {
	out := model.NewPainMatrix(c.order)
	for _, cat := range c.order {
		out[cat] = model.ClampScore(m.Score(cat))
	}
	return out
}
