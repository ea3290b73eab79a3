package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for monitoring worker behavior and performance.
// Labeled metrics carry "subsystem" and "worker" labels.

var (
	// workerStarted counts the total number of workers started.
	workerStarted = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "dispatch_worker_started",
		Help: "The total number of workers started",
	})

	// workerStopped counts the total number of workers stopped.
	workerStopped = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "dispatch_worker_stopped",
		Help: "The total number of workers stopped",
	})

	// aliveWorkers tracks the number of currently running workers.
	aliveWorkers = promauto.NewGaugeVec(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "dispatch_worker_alive",
		Help: "The total number of workers alive",
	}, []string{"subsystem", "worker"})

	// workerPanic counts the number of times a worker recovered from a panic.
	workerPanic = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "dispatch_worker_panic",
		Help: "The total number of workers that recovered from a panic",
	}, []string{"subsystem", "worker"})

	// workerFailures counts processing errors reported to supervision.
	workerFailures = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "dispatch_worker_failures",
		Help: "The total number of processing failures",
	}, []string{"subsystem", "worker"})

	// workerRestarts counts processor restarts performed by supervision.
	workerRestarts = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "dispatch_worker_restarts",
		Help: "The total number of processor restarts",
	}, []string{"subsystem", "worker"})

	// enqueuedMessages tracks the current mailbox depth.
	enqueuedMessages = promauto.NewGaugeVec(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "dispatch_worker_enqueued_messages",
		Help: "The total number of messages enqueued",
	}, []string{"subsystem", "worker"})

	// submitCount counts the total number of messages submitted to workers.
	submitCount = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "dispatch_worker_submit_count",
		Help: "The total number of messages submitted",
	}, []string{"subsystem", "worker"})

	// submitTime measures time spent waiting to submit a message to a mailbox.
	submitTime = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name: "dispatch_worker_submit_time",
		Help: "The time spent waiting for a message to be enqueued",
		Buckets: []float64{
			0.01, // 10ms
			0.1,  // 100ms
			1,    // 1s
			10,   // 10s
			60,   // 1m
		},
	}, []string{"subsystem", "worker"})

	// processedMessages counts the total number of messages processed.
	processedMessages = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "dispatch_worker_processed_messages",
		Help: "The total number of messages processed",
	}, []string{"subsystem", "worker"})

	// processingTime measures the time spent handling each message.
	processingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name: "dispatch_worker_processing_time",
		Help: "The time spent processing a message",
		Buckets: []float64{
			0.01, // 10ms
			0.1,  // 100ms
			1,    // 1s
			10,   // 10s
			60,   // 1m
		},
	}, []string{"subsystem", "worker"})
)
