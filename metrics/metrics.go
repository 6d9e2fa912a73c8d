// Package metrics exposes Prometheus instrumentation for the overlay server.
//
// All recording methods are safe to call on a nil *Metrics, which lets tests
// and library users skip instrumentation entirely.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ruteri/dexcom-browser-source/interfaces"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
	gatewayCalls         *prometheus.CounterVec
	renderDuration       prometheus.Histogram
	serverState          *prometheus.GaugeVec
	droppedNotifications prometheus.Counter
	handlerPanics        prometheus.Counter
}

// New creates the collectors on a private registry so several instances can
// coexist in one process.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of API requests by route and status code",
			},
			[]string{"route", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of API requests in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route"},
		),
		gatewayCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "calls_total",
				Help:      "Telemetry provider calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		renderDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "chart",
				Name:      "render_duration_seconds",
				Help:      "Time spent rendering chart images",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
			},
		),
		serverState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "state",
				Help:      "Lifecycle state of the overlay listener (1 for the current state)",
			},
			[]string{"state"},
		),
		droppedNotifications: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "dropped_notifications_total",
				Help:      "State notifications dropped because a subscriber was not draining its channel",
			},
		),
		handlerPanics: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "handler_panics_total",
				Help:      "Panics recovered at the handler boundary",
			},
		),
	}

	registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.gatewayCalls,
		m.renderDuration,
		m.serverState,
		m.droppedNotifications,
		m.handlerPanics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveGatewayCall records the outcome of one provider call.
func (m *Metrics) ObserveGatewayCall(operation string, err error) {
	if m == nil {
		return
	}
	m.gatewayCalls.WithLabelValues(operation, ResultLabel(err)).Inc()
}

func (m *Metrics) ObserveRender(d time.Duration) {
	if m == nil {
		return
	}
	m.renderDuration.Observe(d.Seconds())
}

// SetServerState marks state as the current lifecycle state.
func (m *Metrics) SetServerState(state string) {
	if m == nil {
		return
	}
	m.serverState.Reset()
	m.serverState.WithLabelValues(state).Set(1)
}

func (m *Metrics) NotificationDropped() {
	if m == nil {
		return
	}
	m.droppedNotifications.Inc()
}

func (m *Metrics) HandlerPanicked() {
	if m == nil {
		return
	}
	m.handlerPanics.Inc()
}

// ResultLabel maps a gateway error onto a low-cardinality label value.
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, interfaces.ErrAuthentication):
		return "auth_failure"
	case errors.Is(err, interfaces.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, interfaces.ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "error"
	}
}
