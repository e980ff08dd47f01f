package services

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for rag_answers_total, one per terminal state of Ask.
const (
	OutcomeSuccess       = "success"
	OutcomeNoContext     = "no_context"
	OutcomeError         = "error"
	OutcomeLowConfidence = "low_confidence"
)

// Metrics holds the Prometheus collectors of one engine. Each engine owns
// its registry so tests can build several engines side by side.
type Metrics struct {
	registry        *prometheus.Registry
	answers         *prometheus.CounterVec
	askDuration     prometheus.Histogram
	confidence      prometheus.Histogram
	indexedPassages prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		answers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rag_answers_total",
				Help: "Answers returned, by terminal outcome",
			},
			[]string{"outcome"},
		),
		askDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rag_ask_duration_seconds",
			Help:    "End-to-end duration of a question",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rag_answer_confidence",
			Help:    "Confidence reported with each answer",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		indexedPassages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rag_indexed_passages_total",
			Help: "Passages written to the vector index",
		}),
	}
	m.registry.MustRegister(m.answers, m.askDuration, m.confidence, m.indexedPassages)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeAnswer(outcome string, confidence float64, elapsed time.Duration) {
	m.answers.WithLabelValues(outcome).Inc()
	m.confidence.Observe(confidence)
	m.askDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) addIndexed(n int) {
	m.indexedPassages.Add(float64(n))
}
