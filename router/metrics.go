package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the dispatch path. Labeled metrics carry the
// "subsystem" label plus the message kind or rejection reason.

var (
	// dispatchedMessages counts messages forwarded to a worker, per kind.
	dispatchedMessages = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "dispatch_router_dispatched_messages",
		Help: "The total number of messages dispatched to workers",
	}, []string{"subsystem", "kind"})

	// rejectedDispatches counts dispatches refused before forwarding.
	rejectedDispatches = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "dispatch_router_rejected_dispatches",
		Help: "The total number of dispatches rejected, by reason",
	}, []string{"subsystem", "reason"})

	// dispatchTime measures time from dispatch entry to mailbox enqueue.
	dispatchTime = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name: "dispatch_router_dispatch_time",
		Help: "The time spent forwarding a message to its worker",
		Buckets: []float64{
			0.001, // 1ms
			0.01,  // 10ms
			0.1,   // 100ms
			1,     // 1s
			10,    // 10s
		},
	}, []string{"subsystem", "kind"})
)
