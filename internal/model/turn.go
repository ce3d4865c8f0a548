package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// TurnPhase tags the presentation payload.
type TurnPhase string

const (
	PhaseAsking   TurnPhase = "asking"
	PhaseComplete TurnPhase = "complete"
)

// AskingView is the payload while the interview is still running.
type AskingView struct {
	NextQuestion string       `json:"next_question"`
	Category     PainCategory `json:"category,omitempty"`
}

// CompleteView is the payload once the interview has finished.
type CompleteView struct {
	ROIMetrics []ROIMetric    `json:"roi_metrics"`
	Narratives []ROINarrative `json:"narratives"`
}

// TurnResult is what the engine returns to its caller each turn. Exactly one
// of the asking or complete views is set, matching Phase. Construct it with
// NewAskingResult or NewCompleteResult.
type TurnResult struct {
	phase           TurnPhase
	sessionID       string
	painMatrix      PainMatrix
	persona         *PersonaRef
	confidenceLevel float64
	questionCount   int
	asking          *AskingView
	complete        *CompleteView
}

// NewAskingResult builds the payload for a session that is still asking.
func NewAskingResult(s *Session, persona *PersonaRef) *TurnResult {
	return &TurnResult{
		phase:           PhaseAsking,
		sessionID:       s.ID,
		painMatrix:      s.PainMatrix.Clone(),
		persona:         persona,
		confidenceLevel: s.Confidence,
		questionCount:   s.QuestionCount,
		asking: &AskingView{
			NextQuestion: s.CurrentQuestion,
			Category:     s.CurrentCategory,
		},
	}
}

// NewCompleteResult builds the payload for a completed session.
func NewCompleteResult(s *Session, persona *PersonaRef) *TurnResult {
	view := &CompleteView{ROIMetrics: []ROIMetric{}, Narratives: []ROINarrative{}}
	if s.Result != nil {
		view.ROIMetrics = append(view.ROIMetrics, s.Result.Metrics...)
		view.Narratives = append(view.Narratives, s.Result.Narratives...)
	}
	return &TurnResult{
		phase:           PhaseComplete,
		sessionID:       s.ID,
		painMatrix:      s.PainMatrix.Clone(),
		persona:         persona,
		confidenceLevel: s.Confidence,
		questionCount:   s.QuestionCount,
		complete:        view,
	}
}

// Phase returns the variant tag.
func (t *TurnResult) Phase() TurnPhase { return t.phase }

// SessionID returns the session the payload describes.
func (t *TurnResult) SessionID() string { return t.sessionID }

// PainMatrix returns a copy of the pain matrix.
func (t *TurnResult) PainMatrix() PainMatrix { return t.painMatrix.Clone() }

// Persona returns the assigned persona, if any.
func (t *TurnResult) Persona() *PersonaRef { return t.persona }

// ConfidenceLevel returns the persona confidence in [0,10].
func (t *TurnResult) ConfidenceLevel() float64 { return t.confidenceLevel }

// QuestionCount returns the number of answers processed.
func (t *TurnResult) QuestionCount() int { return t.questionCount }

// IsComplete reports whether the interview has finished.
func (t *TurnResult) IsComplete() bool { return t.phase == PhaseComplete }

// Asking returns the asking view, or false when complete.
func (t *TurnResult) Asking() (*AskingView, bool) {
	return t.asking, t.asking != nil
}

// Complete returns the complete view, or false while asking.
func (t *TurnResult) Complete() (*CompleteView, bool) {
	return t.complete, t.complete != nil
}

type turnResultJSON struct {
	Phase           TurnPhase       `json:"phase"`
	SessionID       string          `json:"session_id"`
	NextQuestion    *string         `json:"next_question,omitempty"`
	Category        PainCategory    `json:"category,omitempty"`
	PainMatrix      PainMatrix      `json:"pain_matrix"`
	Persona         *PersonaRef     `json:"persona"`
	ConfidenceLevel float64         `json:"confidence_level"`
	QuestionCount   int             `json:"question_count"`
	IsComplete      bool            `json:"is_complete"`
	ROIMetrics      *[]ROIMetric    `json:"roi_metrics,omitempty"`
	Narratives      *[]ROINarrative `json:"narratives,omitempty"`
}

// MarshalJSON renders the flat presentation contract.
func (t *TurnResult) MarshalJSON() ([]byte, error) {
	out := turnResultJSON{
		Phase:           t.phase,
		SessionID:       t.sessionID,
		PainMatrix:      t.painMatrix,
		Persona:         t.persona,
		ConfidenceLevel: t.confidenceLevel,
		QuestionCount:   t.questionCount,
		IsComplete:      t.IsComplete(),
	}
	switch t.phase {
	case PhaseAsking:
		q := t.asking.NextQuestion
		out.NextQuestion = &q
		out.Category = t.asking.Category
	case PhaseComplete:
		out.ROIMetrics = &t.complete.ROIMetrics
		out.Narratives = &t.complete.Narratives
	default:
		return nil, eris.Errorf("model: unknown turn phase %q", t.phase)
	}
	return json.Marshal(out)
}
