package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the authorization flow.
type Metrics struct {
	CodesIssued       prometheus.Counter
	CodeExchanges     *prometheus.CounterVec
	TokensMinted      prometheus.Counter
	AuthRejections    *prometheus.CounterVec
	LoginAttempts     *prometheus.CounterVec
	RequestDurationMs *prometheus.HistogramVec
	PendingCodes      prometheus.Gauge
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		CodesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "choregate_authorization_codes_issued_total",
			Help: "Total number of authorization codes issued",
		}),
		CodeExchanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "choregate_code_exchanges_total",
			Help: "Total number of authorization code exchange attempts by outcome",
		}, []string{"outcome"}),
		TokensMinted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "choregate_access_tokens_minted_total",
			Help: "Total number of access tokens minted",
		}),
		AuthRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "choregate_bearer_rejections_total",
			Help: "Total number of bearer-token rejections by reason",
		}, []string{"reason"}),
		LoginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "choregate_login_attempts_total",
			Help: "Total number of login attempts by outcome",
		}, []string{"outcome"}),
		RequestDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "choregate_http_request_duration_ms",
			Help:    "HTTP request latency in milliseconds",
			Buckets: []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"route", "status"}),
		PendingCodes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "choregate_pending_authorization_codes",
			Help: "Authorization codes currently held in the store",
		}),
	}
}

// RecordExchange increments the exchange counter for the given outcome.
func (m *Metrics) RecordExchange(outcome string) {
	m.CodeExchanges.WithLabelValues(outcome).Inc()
}

// RecordRejection increments the bearer rejection counter for the given reason.
func (m *Metrics) RecordRejection(reason string) {
	m.AuthRejections.WithLabelValues(reason).Inc()
}
