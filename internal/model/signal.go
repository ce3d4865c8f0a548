package model

// SignalKind tags a classified answer.
type SignalKind string

const (
	SignalKindSignal   SignalKind = "signal"
	SignalKindNoSignal SignalKind = "no_signal"
)

// Signal is the classifier's verdict on one answer: either a sparse
// category→strength mapping or an explicit absence of signal. The zero value
// is a no-signal result.
type Signal struct {
	kind   SignalKind
	scores map[PainCategory]float64
	reason string
}

// NewSignal builds a signal from raw strengths. Values are clamped to
// [ScoreMin, ScoreMax]. An empty mapping yields NoSignal("empty").
func NewSignal(scores map[PainCategory]float64) Signal {
	if len(scores) == 0 {
		return NoSignal("empty")
	}
	out := make(map[PainCategory]float64, len(scores))
	for c, v := range scores {
		out[c] = ClampScore(v)
	}
	return Signal{kind: SignalKindSignal, scores: out}
}

// NoSignal builds a no-signal result with a short reason for logging.
func NoSignal(reason string) Signal {
	return Signal{kind: SignalKindNoSignal, reason: reason}
}

// Kind returns the variant tag.
func (s Signal) Kind() SignalKind {
	if s.kind == "" {
		return SignalKindNoSignal
	}
	return s.kind
}

// HasSignal reports whether the result carries any category strengths.
func (s Signal) HasSignal() bool {
	return s.Kind() == SignalKindSignal && len(s.scores) > 0
}

// Scores returns a copy of the strengths (nil for no-signal).
func (s Signal) Scores() map[PainCategory]float64 {
	if !s.HasSignal() {
		return nil
	}
	out := make(map[PainCategory]float64, len(s.scores))
	for c, v := range s.scores {
		out[c] = v
	}
	return out
}

// Reason returns why no signal was produced (empty for signals).
func (s Signal) Reason() string {
	return s.reason
}
