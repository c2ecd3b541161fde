package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	invocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "freza",
			Subsystem: "invocation",
			Name:      "total",
			Help:      "Number of agent invocations by mode and outcome.",
		}, []string{"mode", "status"},
	)
	invocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "freza",
			Subsystem: "invocation",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of agent invocations.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"mode"},
	)
	invocationCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "freza",
			Subsystem: "invocation",
			Name:      "cost_usd_total",
			Help:      "Accumulated invocation cost in USD.",
		}, []string{"agent"},
	)
	heartbeats = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "freza",
			Subsystem: "registry",
			Name:      "heartbeats_total",
			Help:      "Number of heartbeat writes by this process.",
		},
	)
	activeInstances = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "freza",
			Subsystem: "registry",
			Name:      "active_instances",
			Help:      "Active instances observed at last registry read.",
		},
	)
)

// Register registers all collectors with reg. Safe to call once per
// process; duplicate registration errors are returned to the caller.
func Register(reg prometheus.Registerer) error {
	cs := []prometheus.Collector{
		invocations, invocationDuration, invocationCost, heartbeats, activeInstances,
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler { return promhttp.Handler() }

func ok() bool { return regOK.Load() }

// IncInvocation counts one finished invocation.
func IncInvocation(mode, status string) {
	if ok() {
		invocations.WithLabelValues(mode, status).Inc()
	}
}

// ObserveInvocationDuration records an invocation's wall-clock duration.
func ObserveInvocationDuration(mode string, seconds float64) {
	if ok() {
		invocationDuration.WithLabelValues(mode).Observe(seconds)
	}
}

// AddInvocationCost accumulates invocation cost for an agent.
func AddInvocationCost(agent string, usd float64) {
	if ok() && usd > 0 {
		invocationCost.WithLabelValues(agent).Add(usd)
	}
}

// IncHeartbeat counts one heartbeat write.
func IncHeartbeat() {
	if ok() {
		heartbeats.Inc()
	}
}

// SetActiveInstances records the size of the last GetActive result.
func SetActiveInstances(n int) {
	if ok() {
		activeInstances.Set(float64(n))
	}
}
