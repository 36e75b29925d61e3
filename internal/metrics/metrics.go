package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// States lists the lifecycle states exported by LifecycleState.
var States = []string{"built", "started", "attached", "running", "stopped"}

// Registry holds the lab collectors on a private prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	TopologyNodes  *prometheus.GaugeVec
	TopologyLinks  prometheus.Gauge
	RuntimeHandles *prometheus.GaugeVec
	PhaseDuration  *prometheus.HistogramVec
	PhaseFailures  *prometheus.CounterVec
	TeardownErrors prometheus.Counter
	LifecycleState *prometheus.GaugeVec
}

func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	f := promauto.With(r.registry)

	r.TopologyNodes = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "srv6lab_topology_nodes",
			Help: "Declared nodes in the running topology",
		},
		[]string{"role"},
	)

	r.TopologyLinks = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "srv6lab_topology_links",
			Help: "Declared links in the running topology",
		},
	)

	r.RuntimeHandles = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "srv6lab_runtime_handles",
			Help: "Live runtime entities created by the emulation engine",
		},
		[]string{"kind"},
	)

	r.PhaseDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "srv6lab_phase_duration_seconds",
			Help:    "Duration of lifecycle phases",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"phase"},
	)

	r.PhaseFailures = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "srv6lab_phase_failures_total",
			Help: "Lifecycle phases that returned an error",
		},
		[]string{"phase"},
	)

	r.TeardownErrors = f.NewCounter(
		prometheus.CounterOpts{
			Name: "srv6lab_teardown_errors_total",
			Help: "Runtime handles that failed to tear down",
		},
	)

	r.LifecycleState = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "srv6lab_lifecycle_state",
			Help: "1 for the current lifecycle state, 0 otherwise",
		},
		[]string{"state"},
	)

	return r
}

// Handler serves the registry in the prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordPhase records how long a lifecycle phase took and whether it failed.
func (r *Registry) RecordPhase(phase string, duration time.Duration, err error) {
	r.PhaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
	if err != nil {
		r.PhaseFailures.WithLabelValues(phase).Inc()
	}
}

func (r *Registry) SetTopology(switches, hosts, links int) {
	r.TopologyNodes.WithLabelValues("switch").Set(float64(switches))
	r.TopologyNodes.WithLabelValues("host").Set(float64(hosts))
	r.TopologyLinks.Set(float64(links))
}

func (r *Registry) SetHandles(nodes, links int) {
	r.RuntimeHandles.WithLabelValues("node").Set(float64(nodes))
	r.RuntimeHandles.WithLabelValues("link").Set(float64(links))
}

func (r *Registry) SetState(state string) {
	for _, s := range States {
		r.LifecycleState.WithLabelValues(s).Set(0)
	}
	r.LifecycleState.WithLabelValues(state).Set(1)
}
