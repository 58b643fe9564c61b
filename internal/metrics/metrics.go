package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// System metrics
	SystemMemoryUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "system_memory_bytes",
		Help: "Current system memory usage",
	})

	SystemGoroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "system_goroutines",
		Help: "Number of goroutines",
	})

	// Layout metrics
	LayoutRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layout_runs_total",
			Help: "Layout runs started, by execution path",
		},
		[]string{"path"},
	)

	LayoutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "layout_run_duration_seconds",
			Help:    "Wall time of a layout run, by execution path",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"path"},
	)

	LayoutStaleResults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "layout_stale_results_total",
		Help: "Layout results discarded because a newer run was issued",
	})

	LayoutFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "layout_fallbacks_total",
		Help: "Layout runs that failed and fell back to known or seeded positions",
	})

	LayoutFrozenNodes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "layout_frozen_nodes_total",
		Help: "Nodes frozen after their coordinates became non-finite",
	})

	LayoutDroppedEdges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "layout_dropped_edges_total",
		Help: "Edges dropped from layout input because an endpoint was unknown",
	})

	// Persistence metrics
	PositionWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "position_writes_total",
			Help: "Node positions handed to the store, by outcome",
		},
		[]string{"outcome"},
	)

	// Graph metrics
	GraphNodeCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graph_nodes_total",
			Help: "Number of nodes in the loaded graph, by tier",
		},
		[]string{"tier"},
	)

	GraphEdgeCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "graph_edges_total",
		Help: "Number of valid edges in the loaded graph",
	})
)

// UpdateSystemMetrics updates system-level metrics
func UpdateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	SystemMemoryUsage.Set(float64(m.Alloc))
	SystemGoroutines.Set(float64(runtime.NumGoroutine()))
}
