// Package engine orchestrates one consultation turn: load the session,
// classify the answer, advance the interview, rank and narrate on
// completion, and persist with an optimistic version check. Turns for the
// same session are serialized in process.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/discovery-engine/internal/classifier"
	"github.com/sells-group/discovery-engine/internal/interview"
	"github.com/sells-group/discovery-engine/internal/metrics"
	"github.com/sells-group/discovery-engine/internal/model"
	"github.com/sells-group/discovery-engine/internal/narrative"
	"github.com/sells-group/discovery-engine/internal/persona"
	"github.com/sells-group/discovery-engine/internal/recommend"
	"github.com/sells-group/discovery-engine/internal/resilience"
	"github.com/sells-group/discovery-engine/internal/scoring"
	"github.com/sells-group/discovery-engine/internal/store"
	"github.com/sells-group/discovery-engine/internal/taxonomy"
)

// ErrEngineClosed is returned for async turns submitted after Close.
var ErrEngineClosed = eris.New("engine closed")

// Turn outcomes reported to metrics.
const (
	outcomeAsked     = "asked"
	outcomeCompleted = "completed"
	outcomeRejected  = "rejected"
	outcomeConflict  = "conflict"
	outcomeError     = "error"
)

// DefaultCommitRetries is how many times AnswerWithRetry re-runs a turn
// that lost a version race.
const DefaultCommitRetries = 2

// Settings groups the engine's tunables.
type Settings struct {
	Interview     interview.Settings
	Ranking       recommend.Settings
	Alpha         float64
	CommitRetries int
}

// DefaultSettings returns the stock engine settings.
func DefaultSettings() Settings {
	return Settings{
		Interview:     interview.DefaultSettings(),
		Ranking:       recommend.DefaultSettings(),
		Alpha:         scoring.DefaultAlpha,
		CommitRetries: DefaultCommitRetries,
	}
}

// Deps are the engine's collaborators. Metrics may be nil.
type Deps struct {
	Store      store.Store
	Catalog    *taxonomy.Catalog
	Classifier classifier.Classifier
	Metrics    *metrics.Metrics
}

// Option customizes an Engine.
type Option func(*Engine)

// WithSettings overrides DefaultSettings.
func WithSettings(s Settings) Option {
	return func(e *Engine) { e.settings = s }
}

// WithClock sets the time source used for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator sets the session id generator.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// Engine runs consultation turns.
type Engine struct {
	store      store.Store
	catalog    *taxonomy.Catalog
	classifier classifier.Classifier
	metrics    *metrics.Metrics
	settings   Settings

	controller *interview.Controller
	ranker     *recommend.Ranker
	narrator   *narrative.Generator
	locks      *sessionLocks

	now   func() time.Time
	newID func() string

	mu     sync.Mutex
	closed bool
	tasks  sync.WaitGroup
}

// New wires an engine from its collaborators.
func New(deps Deps, opts ...Option) (*Engine, error) {
	if deps.Store == nil {
		return nil, eris.New("engine: store is required")
	}
	if deps.Catalog == nil {
		return nil, eris.New("engine: catalog is required")
	}
	if deps.Classifier == nil {
		return nil, eris.New("engine: classifier is required")
	}

	e := &Engine{
		store:      deps.Store,
		catalog:    deps.Catalog,
		classifier: deps.Classifier,
		metrics:    deps.Metrics,
		settings:   DefaultSettings(),
		narrator:   narrative.NewGenerator(),
		locks:      newSessionLocks(),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.settings.CommitRetries < 0 {
		return nil, eris.Errorf("engine: commit retries must be >= 0, got %d", e.settings.CommitRetries)
	}

	acc, err := scoring.NewAccumulator(e.settings.Alpha)
	if err != nil {
		return nil, eris.Wrap(err, "engine: accumulator")
	}
	personas := persona.NewClassifier(e.catalog.ListPersonas(), e.catalog.ListCategories())
	e.controller, err = interview.NewController(e.catalog, acc, personas, e.settings.Interview)
	if err != nil {
		return nil, eris.Wrap(err, "engine: interview controller")
	}
	e.ranker, err = recommend.NewRanker(e.catalog.ListRecipes(), e.settings.Ranking)
	if err != nil {
		return nil, eris.Wrap(err, "engine: ranker")
	}
	return e, nil
}

// Catalog returns the taxonomy the engine runs on.
func (e *Engine) Catalog() *taxonomy.Catalog { return e.catalog }

// Settings returns the effective settings.
func (e *Engine) Settings() Settings { return e.settings }

// Start creates and persists a new session and returns the opening question.
func (e *Engine) Start(ctx context.Context, businessSummary string) (*model.TurnResult, error) {
	s := e.controller.Start(e.newID(), businessSummary, e.now())
	if err := e.store.CreateSession(ctx, s); err != nil {
		return nil, eris.Wrap(err, "engine: start session")
	}
	zap.L().Info("session started", zap.String("session_id", s.ID))
	return model.NewAskingResult(s, nil), nil
}

// Get returns the current presentation payload for a session.
func (e *Engine) Get(ctx context.Context, sessionID string) (*model.TurnResult, error) {
	s, err := e.store.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, eris.Wrap(err, "engine: get session")
	}
	return e.present(s), nil
}

// Answer processes one answer. The stored session changes only when the
// whole turn succeeds; any returned error leaves it untouched.
func (e *Engine) Answer(ctx context.Context, sessionID, text string) (*model.TurnResult, error) {
	start := time.Now()
	unlock := e.locks.Lock(sessionID)
	defer unlock()

	res, err := e.answer(ctx, sessionID, text)
	e.metrics.ObserveTurn(outcomeOf(res, err), time.Since(start))
	return res, err
}

// AnswerWithRetry is Answer with reload-and-retry on persistence conflicts.
// A lost attempt never persisted, so the question count advances once.
func (e *Engine) AnswerWithRetry(ctx context.Context, sessionID, text string) (*model.TurnResult, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts:    e.settings.CommitRetries + 1,
		InitialBackoff: 20 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
		Jitter:         0.25,
		Retryable:      model.IsRetryable,
		OnRetry:        resilience.LogRetry("engine", "answer"),
	}
	return resilience.Retry(ctx, cfg, func(ctx context.Context) (*model.TurnResult, error) {
		return e.Answer(ctx, sessionID, text)
	})
}

func (e *Engine) answer(ctx context.Context, sessionID, text string) (*model.TurnResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "engine: answer")
	}

	s, err := e.store.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, eris.Wrap(err, "engine: load session")
	}
	if s.IsComplete {
		return nil, eris.Wrapf(model.ErrSessionAlreadyComplete, "engine: session %s", sessionID)
	}

	signal, err := e.classify(ctx, s, text)
	if err != nil {
		return nil, err
	}

	next, decision, err := e.controller.Advance(s, signal, e.now())
	if err != nil {
		return nil, eris.Wrap(err, "engine: advance")
	}
	if decision.Complete {
		ranked := e.ranker.Rank(next.PainMatrix)
		next.Result = &model.Recommendations{
			Metrics:    ranked,
			Narratives: e.narrator.GenerateAll(ranked),
		}
	}

	// Past this point the turn either persists whole or fails; caller
	// cancellation no longer applies.
	if err := e.store.SaveSession(context.WithoutCancel(ctx), next); err != nil {
		if errors.Is(err, model.ErrPersistenceConflict) {
			e.metrics.IncConflict()
		}
		return nil, eris.Wrap(err, "engine: save session")
	}

	fields := []zap.Field{
		zap.String("session_id", next.ID),
		zap.Int("question_count", next.QuestionCount),
		zap.String("persona", next.PersonaID),
		zap.Float64("confidence", next.Confidence),
		zap.String("signal", string(signal.Kind())),
	}
	if decision.Complete {
		e.metrics.ObserveCompletion(string(decision.Reason), len(next.Result.Metrics))
		zap.L().Info("session complete", append(fields,
			zap.String("reason", string(decision.Reason)),
			zap.Int("recommendations", len(next.Result.Metrics)),
		)...)
		return model.NewCompleteResult(next, decision.Persona.Ref()), nil
	}
	zap.L().Debug("turn processed", append(fields, zap.String("next_category", string(decision.Category)))...)
	return model.NewAskingResult(next, decision.Persona.Ref()), nil
}

// classify degrades classifier errors to no signal. A context that is done
// by the time the classifier returns aborts the turn, even when the
// classifier itself reported a degraded result.
func (e *Engine) classify(ctx context.Context, s *model.Session, text string) (model.Signal, error) {
	signal, err := e.classifier.Classify(ctx, text, s.PainMatrix.Clone())
	if ctxErr := ctx.Err(); ctxErr != nil {
		return model.Signal{}, eris.Wrap(ctxErr, "engine: classify")
	}
	if err == nil {
		return signal, nil
	}
	e.metrics.IncFallback(classifier.ReasonError)
	zap.L().Warn("classifier failed, continuing without signal",
		zap.String("session_id", s.ID),
		zap.Error(eris.Wrap(model.ErrClassifierUnavailable, err.Error())),
	)
	return model.NoSignal(classifier.ReasonError), nil
}

func (e *Engine) present(s *model.Session) *model.TurnResult {
	var ref *model.PersonaRef
	if p, ok := e.catalog.Persona(s.PersonaID); ok {
		ref = p.Ref()
	}
	if s.IsComplete {
		return model.NewCompleteResult(s, ref)
	}
	return model.NewAskingResult(s, ref)
}

func outcomeOf(res *model.TurnResult, err error) string {
	switch {
	case err == nil && res.IsComplete():
		return outcomeCompleted
	case err == nil:
		return outcomeAsked
	case errors.Is(err, model.ErrPersistenceConflict):
		return outcomeConflict
	case errors.Is(err, model.ErrSessionAlreadyComplete), errors.Is(err, model.ErrSessionNotFound):
		return outcomeRejected
	default:
		return outcomeError
	}
}
