package metrics

import (
	"net/http"
	"time"

	"assistant/internal/backend"
	"assistant/internal/mode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "assistant"

// Metrics 应用级指标；方法对 nil 接收者安全
// Metrics holds the app's collectors; every method is safe on a nil receiver
type Metrics struct {
	registry *prometheus.Registry

	turns           *prometheus.CounterVec
	busyRejections  *prometheus.CounterVec
	backendCalls    *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	fallbacks       *prometheus.CounterVec
	backendHealth   *prometheus.GaugeVec
	activeSessions  prometheus.Gauge
	capabilityCalls *prometheus.CounterVec
}

// New 在独立的 Registry 上注册全部指标
// New registers every collector on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed turns by action and origin",
		}, []string{"action", "origin"}),
		busyRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "busy_rejections_total",
			Help:      "Inputs rejected because their session was busy",
		}, []string{"origin"}),
		backendCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_calls_total",
			Help:      "Backend invocations and probes by outcome",
		}, []string{"backend", "op", "outcome"}),
		backendLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_latency_seconds",
			Help:      "Backend call latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"backend", "op"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Single-retry fallbacks between backends",
		}, []string{"from", "to", "outcome"}),
		backendHealth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_health",
			Help:      "Backend health: 0 unknown, 1 available, 2 degraded, 3 unavailable",
		}, []string{"backend"}),
		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory",
		}),
		capabilityCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_calls_total",
			Help:      "Capability adapter calls by outcome",
		}, []string{"capability", "outcome"}),
	}
}

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler 返回 /metrics 处理器
// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Turn(action, origin string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(action, origin).Inc()
}

func (m *Metrics) Busy(origin string) {
	if m == nil {
		return
	}
	m.busyRejections.WithLabelValues(origin).Inc()
}

// Fallback outcome 为 ok 或 failed
// Fallback records one fallback attempt; outcome is "ok" or "failed"
func (m *Metrics) Fallback(from, to backend.Kind, outcome string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(from.String(), to.String(), outcome).Inc()
}

func (m *Metrics) Capability(name, outcome string) {
	if m == nil {
		return
	}
	m.capabilityCalls.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// HealthChanged 实现 mode.Observer
// HealthChanged implements mode.Observer
func (m *Metrics) HealthChanged(kind backend.Kind, h mode.Health) {
	if m == nil {
		return
	}
	m.backendHealth.WithLabelValues(kind.String()).Set(float64(h))
}

// CallFinished 实现 mode.Observer；reason 为空表示成功
// CallFinished implements mode.Observer; an empty reason means success
func (m *Metrics) CallFinished(kind backend.Kind, op string, reason backend.Reason, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if reason != "" {
		outcome = string(reason)
	}
	m.backendCalls.WithLabelValues(kind.String(), op, outcome).Inc()
	m.backendLatency.WithLabelValues(kind.String(), op).Observe(elapsed.Seconds())
}

var _ mode.Observer = (*Metrics)(nil)
