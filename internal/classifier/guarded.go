package classifier

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/discovery-engine/internal/metrics"
	"github.com/sells-group/discovery-engine/internal/model"
	"github.com/sells-group/discovery-engine/internal/resilience"
)

// Fallback reasons reported when a guarded call degrades.
const (
	ReasonTimeout     = "timeout"
	ReasonRateLimited = "rate_limited"
	ReasonBreakerOpen = "breaker_open"
	ReasonCanceled    = "canceled"
	ReasonError       = "error"
)

// GuardConfig bounds calls to an inner classifier.
type GuardConfig struct {
	// Timeout caps one Classify call, retries and rate-limit wait included.
	Timeout time.Duration
	// RatePerSec limits calls across all sessions. Zero disables limiting.
	RatePerSec float64
	Burst      int
	Retry      resilience.RetryConfig
	Breaker    resilience.BreakerConfig
}

// DefaultGuardConfig returns the stock guard settings.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:    10 * time.Second,
		RatePerSec: 5,
		Burst:      10,
		Retry:      resilience.DefaultRetryConfig(),
		Breaker:    resilience.DefaultBreakerConfig(),
	}
}

// Guarded wraps a classifier so that it never fails a turn: timeouts,
// transport errors, rate limiting and an open breaker all become a
// no-signal result.
type Guarded struct {
	inner   Classifier
	cfg     GuardConfig
	limiter *rate.Limiter
	breaker *resilience.Breaker
	metrics *metrics.Metrics
}

// NewGuarded wraps inner. m may be nil.
func NewGuarded(inner Classifier, cfg GuardConfig, m *metrics.Metrics) *Guarded {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGuardConfig().Timeout
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.LogRetry("classifier", "classify")
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = resilience.IsTransient
	}

	bc := cfg.Breaker
	userHook := bc.OnTransition
	bc.OnTransition = func(from, to resilience.BreakerState) {
		zap.L().Warn("classifier breaker transition",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		m.SetBreakerOpen(to == resilience.StateOpen)
		if userHook != nil {
			userHook(from, to)
		}
	}

	g := &Guarded{
		inner:   inner,
		cfg:     cfg,
		breaker: resilience.NewBreaker(bc),
		metrics: m,
	}
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return g
}

// Breaker exposes the circuit breaker for health reporting.
func (g *Guarded) Breaker() *resilience.Breaker { return g.breaker }

// Classify never returns an error unless ctx was already done on entry.
func (g *Guarded) Classify(ctx context.Context, answer string, matrix model.PainMatrix) (model.Signal, error) {
	if err := ctx.Err(); err != nil {
		return model.Signal{}, eris.Wrap(err, "classifier: context done")
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(callCtx); err != nil {
			return g.degrade(ctx, ReasonRateLimited, err), nil
		}
	}

	sig, err := resilience.Call(callCtx, g.breaker, func(ctx context.Context) (model.Signal, error) {
		return resilience.Retry(ctx, g.cfg.Retry, func(ctx context.Context) (model.Signal, error) {
			return g.inner.Classify(ctx, answer, matrix.Clone())
		})
	})
	if err != nil {
		return g.degrade(ctx, reasonFor(ctx, callCtx, err), err), nil
	}
	return sig, nil
}

func (g *Guarded) degrade(parent context.Context, reason string, err error) model.Signal {
	if parent.Err() != nil {
		reason = ReasonCanceled
	}
	g.metrics.IncFallback(reason)
	zap.L().Warn("classifier degraded to no signal",
		zap.String("reason", reason),
		zap.Error(eris.Wrap(model.ErrClassifierUnavailable, err.Error())),
	)
	return model.NoSignal(reason)
}

func reasonFor(parent, call context.Context, err error) string {
	switch {
	case parent.Err() != nil:
		return ReasonCanceled
	case errors.Is(err, resilience.ErrBreakerOpen):
		return ReasonBreakerOpen
	case errors.Is(err, context.DeadlineExceeded), call.Err() != nil:
		return ReasonTimeout
	default:
		return ReasonError
	}
}
