package di

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters and latencies for the engine. All methods are
// safe to call on a nil receiver so metrics stay optional.
type Metrics struct {
	registrations     *prometheus.CounterVec
	resolutions       *prometheus.CounterVec
	instances         *prometheus.CounterVec
	lifecycleFailures *prometheus.CounterVec
	resolveDuration   *prometheus.HistogramVec
}

// NewMetrics creates the metric set and registers it with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "components_registered_total",
			Help:      "Components registered, by context.",
		}, []string{"context"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "resolutions_total",
			Help:      "Resolution attempts, by context and outcome.",
		}, []string{"context", "outcome"}),
		instances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "instances_created_total",
			Help:      "Instances created, by context and scope.",
		}, []string{"context", "scope"}),
		lifecycleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "lifecycle_failures_total",
			Help:      "Lifecycle phase failures, by context and phase.",
		}, []string{"context", "phase"}),
		resolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "loom",
			Name:      "resolve_duration_seconds",
			Help:      "Resolution latency, by context.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"context"}),
	}
	reg.MustRegister(m.registrations, m.resolutions, m.instances, m.lifecycleFailures, m.resolveDuration)
	return m
}

// ComponentRegistered records a registration.
func (m *Metrics) ComponentRegistered(contextName string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(contextName).Inc()
}

// Resolution records a resolution attempt and its latency.
func (m *Metrics) Resolution(contextName string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.resolutions.WithLabelValues(contextName, outcome).Inc()
	m.resolveDuration.WithLabelValues(contextName).Observe(time.Since(start).Seconds())
}

// InstanceCreated records an instance creation.
func (m *Metrics) InstanceCreated(contextName string, scope Scope) {
	if m == nil {
		return
	}
	m.instances.WithLabelValues(contextName, scope.String()).Inc()
}

// LifecycleFailure records a lifecycle phase failure.
func (m *Metrics) LifecycleFailure(contextName, phase string) {
	if m == nil {
		return
	}
	m.lifecycleFailures.WithLabelValues(contextName, phase).Inc()
}
