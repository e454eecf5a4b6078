package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SplitterOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splitter_operations_total",
			Help: "Split create/resize/delete operations by result.",
		},
		[]string{"operation", "result"},
	)
	LockContention = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splitter_lock_contention_total",
			Help: "Lock acquisitions rejected because the lock was already held.",
		},
		[]string{"scope"},
	)
	NodeThreads = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "node_cpu_threads",
			Help: "CPU threads per node, split into assigned and free.",
		},
		[]string{"node", "state"},
	)
)

func init() {
	prometheus.MustRegister(SplitterOperations)
	prometheus.MustRegister(LockContention)
	prometheus.MustRegister(NodeThreads)
}
