// Package metrics holds the Prometheus collectors for interview activity.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "discovery"

// Metrics reports engine activity. A nil *Metrics is a valid no-op.
type Metrics struct {
	turns           *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	completions     *prometheus.CounterVec
	conflicts       prometheus.Counter
	turnDuration    prometheus.Histogram
	recommendations prometheus.Histogram
	asyncInFlight   prometheus.Gauge
	asyncOutcomes   *prometheus.CounterVec
	breakerOpen     prometheus.Gauge
}

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default returns metrics registered with the global Prometheus registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNew(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNew builds and registers the collectors, reusing any that are already
// registered under the same name. Other registration errors panic.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Answers processed, by outcome.",
		}, []string{"outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "fallbacks_total",
			Help:      "Classifier calls that degraded to no signal, by reason.",
		}, []string{"reason"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Sessions completed, by completion rule.",
		}, []string{"reason"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "conflicts_total",
			Help:      "Session saves rejected by the optimistic version check.",
		}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a single answer turn, classifier included.",
			Buckets:   prometheus.DefBuckets,
		}),
		recommendations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommendations_per_session",
			Help:      "Recipes recommended to a completed session.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 8},
		}),
		asyncInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "async_turns_in_flight",
			Help:      "Asynchronous turns submitted but not yet finished.",
		}),
		asyncOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "async_turns_total",
			Help:      "Asynchronous turns finished, by outcome.",
		}, []string{"outcome"}),
		breakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "breaker_open",
			Help:      "1 while the classifier circuit breaker is open.",
		}),
	}

	m.turns = register(reg, m.turns)
	m.fallbacks = register(reg, m.fallbacks)
	m.completions = register(reg, m.completions)
	m.conflicts = register(reg, m.conflicts)
	m.turnDuration = register(reg, m.turnDuration)
	m.recommendations = register(reg, m.recommendations)
	m.asyncInFlight = register(reg, m.asyncInFlight)
	m.asyncOutcomes = register(reg, m.asyncOutcomes)
	m.breakerOpen = register(reg, m.breakerOpen)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveTurn records one processed answer.
func (m *Metrics) ObserveTurn(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(d.Seconds())
}

// IncFallback counts a classifier degradation.
func (m *Metrics) IncFallback(reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(reason).Inc()
}

// ObserveCompletion records a finished session and its recommendation count.
func (m *Metrics) ObserveCompletion(reason string, recommended int) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(reason).Inc()
	m.recommendations.Observe(float64(recommended))
}

// IncConflict counts an optimistic-lock rejection.
func (m *Metrics) IncConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

// AsyncStarted marks an asynchronous turn as in flight.
func (m *Metrics) AsyncStarted() {
	if m == nil {
		return
	}
	m.asyncInFlight.Inc()
}

// AsyncFinished marks an asynchronous turn as done.
func (m *Metrics) AsyncFinished() {
	if m == nil {
		return
	}
	m.asyncInFlight.Dec()
}

// SetBreakerOpen reports the classifier breaker state.
func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.breakerOpen.Set(1)
		return
	}
	m.breakerOpen.Set(0)
}

// ObserveAsync counts a finished asynchronous turn.
func (m *Metrics) ObserveAsync(outcome string) {
	if m == nil {
		return
	}
	m.asyncOutcomes.WithLabelValues(outcome).Inc()
}
