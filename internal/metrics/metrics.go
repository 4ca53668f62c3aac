// Package metrics exposes Prometheus instruments for the monitoring loop on a
// dedicated registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rewired-gh/crossarb/internal/models"
)

const namespace = "crossarb"

// Metrics holds every instrument. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cycles          prometheus.Counter
	cycleFailures   prometheus.Counter
	cycleDuration   prometheus.Histogram
	opportunities   *prometheus.CounterVec
	alerts          *prometheus.CounterVec
	pollErrors      *prometheus.CounterVec
	markets         *prometheus.GaugeVec
	platformHealthy *prometheus.GaugeVec
	lastMatches     prometheus.Gauge
}

// New registers all instruments plus the Go runtime and process collectors on
// a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Monitoring cycles started.",
		}),
		cycleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_failures_total",
			Help:      "Monitoring cycles that returned an error.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one monitoring cycle.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		opportunities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opportunities_total",
			Help:      "Classified opportunities by quality grade and kind.",
		}, []string{"grade", "kind"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Opportunity alerts by delivery result.",
		}, []string{"result"}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_errors_total",
			Help:      "Failed platform polls.",
		}, []string{"platform"}),
		markets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "markets",
			Help:      "Markets returned by the last successful poll.",
		}, []string{"platform"}),
		platformHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "platform_healthy",
			Help:      "1 when the platform client is healthy.",
		}, []string{"platform"}),
		lastMatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_matches",
			Help:      "Matches found in the most recent cycle.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles, m.cycleFailures, m.cycleDuration, m.opportunities,
		m.alerts, m.pollErrors, m.markets, m.platformHealthy, m.lastMatches,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCycle records one finished cycle.
func (m *Metrics) ObserveCycle(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
	if err != nil {
		m.cycleFailures.Inc()
	}
}

// ObservePlatform records a platform's health after a poll.
func (m *Metrics) ObservePlatform(s models.PlatformStatus, pollErr error) {
	if m == nil {
		return
	}
	p := string(s.Platform)
	if pollErr != nil {
		m.pollErrors.WithLabelValues(p).Inc()
	} else {
		m.markets.WithLabelValues(p).Set(float64(s.MarketCount))
	}
	healthy := 0.0
	if s.Healthy {
		healthy = 1
	}
	m.platformHealthy.WithLabelValues(p).Set(healthy)
}

// ObserveOpportunity counts a classified opportunity.
func (m *Metrics) ObserveOpportunity(o models.ArbitrageOpportunity) {
	if m == nil {
		return
	}
	kind := "directional"
	if o.IsInverse {
		kind = "inverse"
	}
	m.opportunities.WithLabelValues(string(o.QualityGrade), kind).Inc()
}

// ObserveAlert counts one alert delivery attempt.
func (m *Metrics) ObserveAlert(err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.alerts.WithLabelValues(result).Inc()
}

// SetMatches records the match count of the latest cycle.
func (m *Metrics) SetMatches(n int) {
	if m == nil {
		return
	}
	m.lastMatches.Set(float64(n))
}
