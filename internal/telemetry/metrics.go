/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the orchestrator.
type Metrics struct {
	registry             *prometheus.Registry
	breaksStartedTotal   prometheus.Counter
	breaksCompletedTotal prometheus.Counter
	breaksCancelledTotal prometheus.Counter
	adsCompletedTotal    prometheus.Counter
	desyncsTotal         prometheus.Counter
	deviceFailuresTotal  prometheus.Counter
	canSeek              prometheus.Gauge
	activeBreak          prometheus.Gauge
}

// New creates and registers Prometheus metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		breaksStartedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intermission_ad_breaks_started_total",
			Help: "Total number of ad breaks started",
		}),
		breaksCompletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intermission_ad_breaks_completed_total",
			Help: "Total number of ad breaks completed",
		}),
		breaksCancelledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intermission_ad_breaks_cancelled_total",
			Help: "Total number of ad breaks cancelled",
		}),
		adsCompletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intermission_ads_completed_total",
			Help: "Total number of ads completed and logged",
		}),
		desyncsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intermission_playout_desyncs_total",
			Help: "Total number of playback device desyncs detected",
		}),
		deviceFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intermission_device_call_failures_total",
			Help: "Total number of failed playback device or scene switcher calls",
		}),
		canSeek: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intermission_can_seek_schedule",
			Help: "Whether schedule navigation is currently allowed (1) or not (0)",
		}),
		activeBreak: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intermission_active_ad_break",
			Help: "Whether an ad break is currently playing (1) or not (0)",
		}),
	}

	registry.MustRegister(
		m.breaksStartedTotal,
		m.breaksCompletedTotal,
		m.breaksCancelledTotal,
		m.adsCompletedTotal,
		m.desyncsTotal,
		m.deviceFailuresTotal,
		m.canSeek,
		m.activeBreak,
	)

	return m
}

// IncBreaksStarted increments the started break counter.
func (m *Metrics) IncBreaksStarted() { m.breaksStartedTotal.Inc() }

// IncBreaksCompleted increments the completed break counter.
func (m *Metrics) IncBreaksCompleted() { m.breaksCompletedTotal.Inc() }

// IncBreaksCancelled increments the cancelled break counter.
func (m *Metrics) IncBreaksCancelled() { m.breaksCancelledTotal.Inc() }

// IncAdsCompleted increments the completed ad counter.
func (m *Metrics) IncAdsCompleted() { m.adsCompletedTotal.Inc() }

// IncDesyncs increments the desync counter.
func (m *Metrics) IncDesyncs() { m.desyncsTotal.Inc() }

// IncDeviceFailures increments the device call failure counter.
func (m *Metrics) IncDeviceFailures() { m.deviceFailuresTotal.Inc() }

// SetCanSeek records the published seekability flag.
func (m *Metrics) SetCanSeek(ok bool) {
	if ok {
		m.canSeek.Set(1)
	} else {
		m.canSeek.Set(0)
	}
}

// SetActiveBreak records whether an ad break is playing.
func (m *Metrics) SetActiveBreak(active bool) {
	if active {
		m.activeBreak.Set(1)
	} else {
		m.activeBreak.Set(0)
	}
}

// Handler returns an http.Handler serving the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
