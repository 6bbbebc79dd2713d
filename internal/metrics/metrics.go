package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Task lifecycle metrics
	TasksRun = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threadmanager_tasks_run_total",
			Help: "Total number of pending-to-active task runs across all workers",
		},
	)

	TasksAdmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threadmanager_tasks_admitted_total",
			Help: "Total number of task descriptions promoted into the table",
		},
		[]string{"initial_state"},
	)

	TasksTerminated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threadmanager_tasks_terminated_total",
			Help: "Total number of tasks reaching a final state and erased from the table",
		},
		[]string{"final_state"},
	)

	TaskRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "threadmanager_task_run_duration_seconds",
			Help:    "Duration of a single task entrypoint invocation",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 18), // 0.1ms to ~13s
		},
	)

	// Queue metrics
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "threadmanager_queue_depth",
			Help: "Current number of entries in a scheduler queue",
		},
		[]string{"queue"},
	)

	QueueDequeueSpins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threadmanager_queue_dequeue_spins_total",
			Help: "Total number of TryDequeue calls that found the queue empty",
		},
		[]string{"queue"},
	)

	// Table / admission metrics
	TableSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "threadmanager_table_size",
			Help: "Current number of live tasks held by the task table",
		},
	)

	AdmissionCapGrown = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threadmanager_admission_cap_grown_total",
			Help: "Total number of times the admission controller grew MaxCount under desperation",
		},
	)

	// Worker metrics
	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "threadmanager_active_workers",
			Help: "Current number of running worker goroutines",
		},
	)

	WorkerPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threadmanager_worker_panics_total",
			Help: "Total number of task entrypoints that panicked",
		},
		[]string{"worker"},
	)

	// Timed-transition metrics
	TimersArmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threadmanager_timers_armed_total",
			Help: "Total number of wake-timer tasks armed via SetStateAt/SetStateAfter",
		},
	)

	TimersFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threadmanager_timers_fired_total",
			Help: "Total number of wake-timer tasks that fired, by resume hint",
		},
		[]string{"hint"},
	)
)

// RecordTaskRun records one entrypoint invocation and its duration.
func RecordTaskRun(durationSeconds float64) {
	TasksRun.Inc()
	TaskRunDuration.Observe(durationSeconds)
}

// RecordAdmission records one task promoted into the table.
func RecordAdmission(initialState string) {
	TasksAdmitted.WithLabelValues(initialState).Inc()
}

// RecordTermination records one task erased from the table.
func RecordTermination(finalState string) {
	TasksTerminated.WithLabelValues(finalState).Inc()
}

// UpdateQueueDepth sets the depth gauge for the named queue.
func UpdateQueueDepth(queue string, depth float64) {
	QueueDepth.WithLabelValues(queue).Set(depth)
}

// RecordDequeueSpin records one empty TryDequeue observation on the named
// queue.
func RecordDequeueSpin(queue string) {
	QueueDequeueSpins.WithLabelValues(queue).Inc()
}

// SetTableSize sets the table-size gauge.
func SetTableSize(size float64) {
	TableSize.Set(size)
}

// RecordAdmissionCapGrowth records one desperation-path cap growth.
func RecordAdmissionCapGrowth() {
	AdmissionCapGrown.Inc()
}

// SetActiveWorkers sets the active-workers gauge.
func SetActiveWorkers(count float64) {
	ActiveWorkers.Set(count)
}

// RecordWorkerPanic records one recovered entrypoint panic on the named
// worker.
func RecordWorkerPanic(worker string) {
	WorkerPanics.WithLabelValues(worker).Inc()
}

// RecordTimerArmed records one SetStateAt/SetStateAfter call.
func RecordTimerArmed() {
	TimersArmed.Inc()
}

// RecordTimerFired records one wake-timer firing with the resume hint it
// delivered.
func RecordTimerFired(hint string) {
	TimersFired.WithLabelValues(hint).Inc()
}
