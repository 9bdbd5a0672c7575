package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector the service exports. Collectors live on
// their own registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	AnswersTotal       *prometheus.CounterVec
	AnswerDuration     prometheus.Histogram
	RetrievalDuration  prometheus.Histogram
	GenerationDuration prometheus.Histogram
	IndexChunks        prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AnswersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragchat_answers_total",
				Help: "Total number of answer requests by outcome",
			},
			[]string{"status"},
		),
		AnswerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragchat_answer_duration_seconds",
			Help:    "End to end answer latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		RetrievalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragchat_retrieval_duration_seconds",
			Help:    "Context retrieval latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragchat_generation_duration_seconds",
			Help:    "Chat completion latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
		IndexChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ragchat_index_chunks",
			Help: "Number of chunks in the loaded index",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragchat_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragchat_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
	m.registry.MustRegister(
		m.AnswersTotal,
		m.AnswerDuration,
		m.RetrievalDuration,
		m.GenerationDuration,
		m.IndexChunks,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
