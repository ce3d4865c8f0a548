package model

import "time"

// SessionState is the interview controller's state for a session.
type SessionState string

const (
	StateAwaitingFirstAnswer SessionState = "awaiting_first_answer"
	StateAsking              SessionState = "asking"
	StateComplete            SessionState = "complete"
)

// CompletionReason records which completion rule ended an interview.
type CompletionReason string

const (
	CompletionNone         CompletionReason = ""
	CompletionMaxQuestions CompletionReason = "max_questions"
	CompletionConfident    CompletionReason = "confident"
)

// Session is a consultation session. It is owned by the interview
// controller and persisted by a store between turns; Version backs the
// store's optimistic concurrency check.
type Session struct {
	ID               string           `json:"id"`
	BusinessSummary  string           `json:"business_summary"`
	PainMatrix       PainMatrix       `json:"pain_matrix"`
	PersonaID        string           `json:"persona_id,omitempty"`
	Confidence       float64          `json:"confidence"`
	QuestionCount    int              `json:"question_count"`
	AskedCategories  []PainCategory   `json:"asked_categories"`
	CurrentCategory  PainCategory     `json:"current_category,omitempty"`
	CurrentQuestion  string           `json:"current_question,omitempty"`
	State            SessionState     `json:"state"`
	IsComplete       bool             `json:"is_complete"`
	CompletionReason CompletionReason `json:"completion_reason,omitempty"`
	Result           *Recommendations `json:"result,omitempty"`
	Version          int64            `json:"version"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// HasAsked reports whether the category has already been probed.
func (s *Session) HasAsked(c PainCategory) bool {
	for _, asked := range s.AskedCategories {
		if asked == c {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.PainMatrix = s.PainMatrix.Clone()
	if s.AskedCategories != nil {
		out.AskedCategories = make([]PainCategory, len(s.AskedCategories))
		copy(out.AskedCategories, s.AskedCategories)
	}
	if s.Result != nil {
		out.Result = s.Result.Clone()
	}
	return &out
}

// SessionSummary is the listing view of a stored session.
type SessionSummary struct {
	ID            string       `json:"id"`
	State         SessionState `json:"state"`
	PersonaID     string       `json:"persona_id,omitempty"`
	Confidence    float64      `json:"confidence"`
	QuestionCount int          `json:"question_count"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Summary returns the listing view of the session.
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		ID:            s.ID,
		State:         s.State,
		PersonaID:     s.PersonaID,
		Confidence:    s.Confidence,
		QuestionCount: s.QuestionCount,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}
