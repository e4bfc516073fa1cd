// Package monitoring exposes Prometheus counters for validation runs.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vincentbai/tsmcheck/internal/validator"
)

type Metrics struct {
	SessionsChecked *prometheus.CounterVec
	DecodeFailures  prometheus.Counter
	TabsCounted     prometheus.Counter
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics registers on a private registry so several instances can coexist.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		SessionsChecked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tsmcheck_sessions_checked_total",
				Help: "Sessions checked, by verdict",
			},
			[]string{"verdict"},
		),
		DecodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tsmcheck_decode_failures_total",
			Help: "Exports or sessions that could not be decoded",
		}),
		TabsCounted: factory.NewCounter(prometheus.CounterOpts{
			Name: "tsmcheck_tabs_counted_total",
			Help: "Tabs found across all checked sessions",
		}),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tsmcheck_http_requests_total",
				Help: "HTTP validation requests, by status code",
			},
			[]string{"status"},
		),
		RequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tsmcheck_http_request_duration_seconds",
			Help:    "HTTP validation request latency",
			Buckets: prometheus.DefBuckets,
		}),
		registry: registry,
	}
}

func (m *Metrics) ObserveResults(results []validator.Result) {
	for _, result := range results {
		switch {
		case result.Err != nil:
			m.SessionsChecked.WithLabelValues("error").Inc()
			m.DecodeFailures.Inc()
			continue
		case result.Verdict.Valid:
			m.SessionsChecked.WithLabelValues("valid").Inc()
		default:
			m.SessionsChecked.WithLabelValues("invalid").Inc()
		}
		m.TabsCounted.Add(float64(result.Verdict.Counted))
	}
}

func (m *Metrics) ObserveDecodeFailure() {
	m.DecodeFailures.Inc()
}

func (m *Metrics) ObserveRequest(status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	m.RequestDuration.Observe(duration.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
