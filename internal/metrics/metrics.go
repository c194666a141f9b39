package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the evaluator
type Metrics struct {
	// Comparison core
	CompareRuns     *prometheus.CounterVec
	CompareDuration prometheus.Histogram
	CasesCompared   prometheus.Counter
	Outcomes        *prometheus.CounterVec
	Warnings        *prometheus.CounterVec
	Regressions     *prometheus.CounterVec

	// Test driver
	ProviderRequests   *prometheus.CounterVec
	ProviderRetries    *prometheus.CounterVec
	TranscriptionCache *prometheus.CounterVec

	// Compare service
	HTTPRequests *prometheus.CounterVec
}

// New creates and registers all metrics on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		CompareRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlueval_compare_runs_total",
				Help: "Comparison runs by result (ok, config_error, regressed, error)",
			},
			[]string{"result"},
		),
		CompareDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nlueval_compare_duration_seconds",
			Help:    "Wall time of a comparison run",
			Buckets: prometheus.DefBuckets,
		}),
		CasesCompared: f.NewCounter(prometheus.CounterOpts{
			Name: "nlueval_cases_compared_total",
			Help: "Number of expected/actual utterance pairs classified",
		}),
		Outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlueval_outcomes_total",
				Help: "Classification outcomes by target (intent, text, entity, entityValue) and outcome kind",
			},
			[]string{"target", "outcome"},
		),
		Warnings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlueval_warnings_total",
				Help: "Per-item data-quality warnings by kind",
			},
			[]string{"kind"},
		),
		Regressions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlueval_regressions_total",
				Help: "Metric regressions against the baseline by metric",
			},
			[]string{"metric"},
		),
		ProviderRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlueval_provider_requests_total",
				Help: "NLU provider queries by result (ok or error kind)",
			},
			[]string{"result"},
		),
		ProviderRetries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlueval_provider_retries_total",
				Help: "NLU provider retries by error kind",
			},
			[]string{"kind"},
		),
		TranscriptionCache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlueval_transcription_cache_total",
				Help: "Transcription cache lookups by result (hit, miss)",
			},
			[]string{"result"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlueval_http_requests_total",
				Help: "Compare service requests by status code",
			},
			[]string{"code"},
		),
	}
}
