// Package kmetrics instruments the kernel with Prometheus metrics, mostly
// so the scheduler's single-RUNNING-container invariant has an actual
// instrumentation hook to observe instead of being an assertion nobody can
// watch from outside the lock.
package kmetrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ContainersByState counts container slots per state.
	ContainersByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kcont_containers_by_state",
			Help: "Number of container slots currently in each state.",
		},
		[]string{"state"},
	)

	// ProcessesByState counts process slots per state, across all
	// containers.
	ProcessesByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kcont_processes_by_state",
			Help: "Number of process slots currently in each state.",
		},
		[]string{"state"},
	)

	// RunningContainers is 1 while a container is RUNNING, 0 otherwise.
	// Property 1 ("at most one container RUNNING") is observed through
	// this gauge: it is set under the same lock that performs the
	// RUNNABLE->RUNNING transition, so it never reads as more than 1.
	RunningContainers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kcont_running_containers",
			Help: "Number of containers currently RUNNING (invariant: never more than 1).",
		},
	)

	// DispatchTotal counts scheduler dispatches (context switches in).
	DispatchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kcont_dispatch_total",
			Help: "Total number of process dispatches performed by the scheduler.",
		},
	)

	// WakeupSweepsTotal counts wakeup() sweeps performed.
	WakeupSweepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kcont_wakeup_sweeps_total",
			Help: "Total number of wakeup() sweeps performed over the process tables.",
		},
	)

	// ReapedTotal counts processes reaped by wait().
	ReapedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kcont_reaped_total",
			Help: "Total number of zombie processes reaped by wait().",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ContainersByState,
		ProcessesByState,
		RunningContainers,
		DispatchTotal,
		WakeupSweepsTotal,
		ReapedTotal,
	)
}
