package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aretw0/onramp/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Advance outcomes, used as the "outcome" label.
const (
	OutcomeCompleted = "completed"
	OutcomeReplay    = "replay"
	OutcomeTerminal  = "terminal"
	OutcomeLocked    = "locked"
	OutcomeUnknown   = "unknown_step"
	OutcomeInvalid   = "invalid_input"
	OutcomeError     = "error"
)

// Metrics holds the engine's collectors.
type Metrics struct {
	registry *prometheus.Registry

	advances       *prometheus.CounterVec
	advanceSeconds prometheus.Histogram
	stepsCompleted *prometheus.CounterVec
	replays        *prometheus.CounterVec
	identities     prometheus.Counter
	verdicts       *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on a fresh registry,
// together with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		advances: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onramp_advance_total",
				Help: "Total number of Advance calls by outcome",
			},
			[]string{"outcome"},
		),
		advanceSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "onramp_advance_duration_seconds",
				Help:    "Duration of Advance calls",
				Buckets: prometheus.DefBuckets,
			},
		),
		stepsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onramp_steps_completed_total",
				Help: "Total number of first visits per step",
			},
			[]string{"step"},
		),
		replays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onramp_replays_total",
				Help: "Total number of replays of completed steps",
			},
			[]string{"step"},
		),
		identities: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "onramp_identity_issued_total",
				Help: "Total number of secure identifiers issued",
			},
		),
		verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onramp_risk_verdicts_total",
				Help: "Total number of risk verdicts by value",
			},
			[]string{"verdict"},
		),
	}

	m.registry.MustRegister(
		m.advances,
		m.advanceSeconds,
		m.stepsCompleted,
		m.replays,
		m.identities,
		m.verdicts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks that feed the step counters.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepCompleted: func(_ context.Context, e *domain.StepEvent) {
			m.stepsCompleted.WithLabelValues(e.StepID).Inc()
		},
		OnReplay: func(_ context.Context, e *domain.StepEvent) {
			m.replays.WithLabelValues(e.StepID).Inc()
		},
		OnIdentityIssued: func(context.Context, *domain.IdentityEvent) {
			m.identities.Inc()
		},
		OnRiskAssessed: func(_ context.Context, e *domain.RiskEvent) {
			m.verdicts.WithLabelValues(string(e.Assessment.Verdict)).Inc()
		},
	}
}

// ObserveAdvance records the outcome and latency of one Advance call.
func (m *Metrics) ObserveAdvance(payload *domain.ResponsePayload, err error, elapsed time.Duration) {
	m.advances.WithLabelValues(Outcome(payload, err)).Inc()
	m.advanceSeconds.Observe(elapsed.Seconds())
}

// Outcome classifies the result of an Advance call.
func Outcome(payload *domain.ResponsePayload, err error) string {
	switch {
	case errors.Is(err, domain.ErrStepLocked):
		return OutcomeLocked
	case errors.Is(err, domain.ErrUnknownStep):
		return OutcomeUnknown
	case errors.Is(err, domain.ErrInvalidInput):
		return OutcomeInvalid
	case err != nil || payload == nil:
		return OutcomeError
	case payload.Replay:
		return OutcomeReplay
	case payload.StepID == "" && payload.Terminal:
		return OutcomeTerminal
	default:
		return OutcomeCompleted
	}
}
