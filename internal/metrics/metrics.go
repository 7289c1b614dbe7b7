// Package metrics содержит prometheus-коллекторы сервиса.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics набор коллекторов для панели управления и сценария покупки.
type Metrics struct {
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	Purchases        *prometheus.CounterVec
	KeyLookups       *prometheus.CounterVec
}

// New регистрирует коллекторы в reg. Для тестов передаётся prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vpnbot",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Requests to the VPN control-plane by endpoint and status code.",
		}, []string{"endpoint", "code"}),
		UpstreamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vpnbot",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Latency of requests to the VPN control-plane.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		Purchases: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vpnbot",
			Name:      "purchases_total",
			Help:      "Purchase outcomes by plan and status.",
		}, []string{"plan", "status"}),
		KeyLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vpnbot",
			Name:      "key_lookups_total",
			Help:      "Credential URI lookups by result.",
		}, []string{"result"}),
	}
}

// ObserveUpstream учитывает один запрос к панели. code == 0 означает транспортную ошибку.
func (m *Metrics) ObserveUpstream(endpoint string, code int, seconds float64) {
	if m == nil {
		return
	}
	label := "transport_error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.UpstreamRequests.WithLabelValues(endpoint, label).Inc()
	m.UpstreamDuration.WithLabelValues(endpoint).Observe(seconds)
}

// ObservePurchase учитывает исход покупки.
func (m *Metrics) ObservePurchase(plan, status string) {
	if m == nil {
		return
	}
	m.Purchases.WithLabelValues(plan, status).Inc()
}

// ObserveKeyLookup учитывает попытку получить ключ подключения.
func (m *Metrics) ObserveKeyLookup(result string) {
	if m == nil {
		return
	}
	m.KeyLookups.WithLabelValues(result).Inc()
}
