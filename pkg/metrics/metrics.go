// Package metrics holds the Prometheus collectors of the bot.
//
//   - bot_alerts_total{status,reason}   – webhook outcomes
//   - bot_orders_total{kind,side}       – orders sent to the venue (entry|tp1)
//   - bot_monitor_errors_total{stage}   – failures inside a monitor cycle
//   - bot_tracked_positions             – positions owned by the bot
//   - bot_fingerprints                  – size of the cooldown cache
//   - bot_venue_call_seconds{op}        – latency of venue calls
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Alerts           *prometheus.CounterVec
	Orders           *prometheus.CounterVec
	MonitorErrors    *prometheus.CounterVec
	TrackedPositions prometheus.Gauge
	Fingerprints     prometheus.Gauge
	VenueLatency     *prometheus.HistogramVec
}

// New регистрирует коллекторы в собственном реестре, чтобы тесты
// не конфликтовали с глобальным DefaultRegisterer.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_alerts_total",
				Help: "Webhook alerts by outcome",
			},
			[]string{"status", "reason"},
		),
		Orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_orders_total",
				Help: "Orders placed on the venue",
			},
			[]string{"kind", "side"},
		),
		MonitorErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_monitor_errors_total",
				Help: "Errors inside position monitor cycles",
			},
			[]string{"stage"},
		),
		TrackedPositions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bot_tracked_positions",
				Help: "Positions currently managed by the bot",
			},
		),
		Fingerprints: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bot_fingerprints",
				Help: "Signal fingerprints held by the cooldown cache",
			},
		),
		VenueLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bot_venue_call_seconds",
				Help:    "Latency of venue calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}

	reg.MustRegister(
		m.Alerts,
		m.Orders,
		m.MonitorErrors,
		m.TrackedPositions,
		m.Fingerprints,
		m.VenueLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler — /metrics в text exposition формате.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveVenue меряет длительность вызова биржи: defer m.ObserveVenue("op")().
func (m *Metrics) ObserveVenue(op string) func() {
	start := time.Now()
	return func() {
		m.VenueLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
