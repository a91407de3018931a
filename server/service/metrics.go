package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch status label values.
const (
	DispatchStatusSent    = "sent"
	DispatchStatusEmpty   = "empty"
	DispatchStatusWarning = "warning"
	DispatchStatusError   = "error"
)

// Metrics records counters around dispatching and reaping.
type Metrics struct {
	Dispatches          *prometheus.CounterVec
	ResolvedEndpoints   prometheus.Counter
	ReapedInstallations prometheus.Counter
	ReapFailures        prometheus.Counter
}

// NewMetrics creates the dispatch metrics and registers them with reg.
// A nil reg skips registration, which keeps tests independent of the global
// prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pushd",
			Name:      "dispatches_total",
			Help:      "Count of dispatch requests by outcome status.",
		}, []string{"status"}),
		ResolvedEndpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pushd",
			Name:      "resolved_endpoints_total",
			Help:      "Count of endpoints resolved by dispatch criteria.",
		}),
		ReapedInstallations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pushd",
			Name:      "reaped_installations_total",
			Help:      "Count of installations removed after provider feedback.",
		}),
		ReapFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pushd",
			Name:      "reap_failures_total",
			Help:      "Count of failed reap attempts.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Dispatches, m.ResolvedEndpoints, m.ReapedInstallations, m.ReapFailures)
	}
	return m
}
