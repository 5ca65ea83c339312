// Package metrics exposes Prometheus counters for debates, scans and market
// data fetches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

const namespace = "optionalpha"

// OutcomeCompleted labels a debate that finished with a model thesis.
const OutcomeCompleted = "completed"

// Recorder holds every metric on its own registry so tests and multiple
// servers never collide on the default one.
type Recorder struct {
	registry *prometheus.Registry

	debates        *prometheus.CounterVec
	debateDuration *prometheus.HistogramVec
	debateStates   *prometheus.CounterVec
	llmTokens      *prometheus.CounterVec
	scans          *prometheus.CounterVec
	scanDuration   *prometheus.HistogramVec
	scanTickers    prometheus.Gauge
	fetchRetries   *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
}

// New creates a recorder with Go and process collectors registered.
func New() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		debates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "debates_total",
				Help:      "Debates by outcome (completed or fallback reason)",
			},
			[]string{"outcome"},
		),
		debateDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "debate_duration_seconds",
				Help:      "Wall clock duration of completed model debates",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 240, 480},
			},
			[]string{"model"},
		),
		debateStates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "debate_state_transitions_total",
				Help:      "Debate state machine transitions",
			},
			[]string{"state"},
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_total",
				Help:      "Tokens consumed by completed debates",
			},
			[]string{"model"},
		),
		scans: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scans_total",
				Help:      "Scan runs by final status",
			},
			[]string{"status"},
		),
		scanDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Duration of scan runs",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"status"},
		),
		scanTickers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scan_scored_tickers",
				Help:      "Tickers that passed the score cut-off in the last scan",
			},
		),
		fetchRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_retries_total",
				Help:      "Market data fetch retries by source and reason",
			},
			[]string{"source", "reason"},
		),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordDebate counts one debate. outcome is OutcomeCompleted or a fallback
// reason. Tokens and duration are only observed for completed debates.
func (r *Recorder) RecordDebate(outcome, model string, tokens int, duration time.Duration) {
	r.debates.WithLabelValues(outcome).Inc()
	if outcome != OutcomeCompleted {
		return
	}
	r.llmTokens.WithLabelValues(model).Add(float64(tokens))
	r.debateDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordDebateState counts one state transition.
func (r *Recorder) RecordDebateState(state string) {
	r.debateStates.WithLabelValues(state).Inc()
}

// RecordScan counts one finished scan.
func (r *Recorder) RecordScan(status string, duration time.Duration, scored int) {
	r.scans.WithLabelValues(status).Inc()
	r.scanDuration.WithLabelValues(status).Observe(duration.Seconds())
	r.scanTickers.Set(float64(scored))
}

// RecordFetchRetry counts one market data retry.
func (r *Recorder) RecordFetchRetry(source, reason string) {
	r.fetchRetries.WithLabelValues(source, reason).Inc()
}

// RecordBreakerState tracks a circuit breaker transition.
func (r *Recorder) RecordBreakerState(name string, _, to gobreaker.State) {
	var value float64
	switch to {
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	r.breakerState.WithLabelValues(name).Set(value)
}
