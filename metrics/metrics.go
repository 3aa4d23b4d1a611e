package metrics

import "sync/atomic"

// Metrics captures shared operational stats for the queue, workers, and
// ingest volume.
type Metrics struct {
	queueLength   int64
	queueCapacity int64
	workerCount   int64

	processedJobs int64
	failedJobs    int64

	pipelineRuns      int64
	failedRuns        int64
	sessionsIngested  int64
	specimensIngested int64
}

// Snapshot provides a consistent view of the current metrics.
type Snapshot struct {
	QueueLength   int   `json:"queue_length"`
	QueueCapacity int   `json:"queue_capacity"`
	WorkerCount   int   `json:"worker_count"`
	ProcessedJobs int64 `json:"processed_jobs"`
	FailedJobs    int64 `json:"failed_jobs"`

	PipelineRuns      int64 `json:"pipeline_runs"`
	FailedRuns        int64 `json:"failed_runs"`
	SessionsIngested  int64 `json:"sessions_ingested"`
	SpecimensIngested int64 `json:"specimens_ingested"`
}

// New creates a zeroed Metrics instance.
func New() *Metrics {
	return &Metrics{}
}

// UpdateQueue records the current queue stats.
func (m *Metrics) UpdateQueue(length, capacity, workers int) {
	atomic.StoreInt64(&m.queueLength, int64(length))
	atomic.StoreInt64(&m.queueCapacity, int64(capacity))
	atomic.StoreInt64(&m.workerCount, int64(workers))
}

// RecordJobCompletion increments processed/failed counters based on outcome.
func (m *Metrics) RecordJobCompletion(err error) {
	atomic.AddInt64(&m.processedJobs, 1)
	if err != nil {
		atomic.AddInt64(&m.failedJobs, 1)
	}
}

// RecordRun increments pipeline run counters based on outcome.
func (m *Metrics) RecordRun(err error) {
	atomic.AddInt64(&m.pipelineRuns, 1)
	if err != nil {
		atomic.AddInt64(&m.failedRuns, 1)
	}
}

// RecordIngest adds the record counts of one pipeline load.
func (m *Metrics) RecordIngest(sessions, specimens int) {
	atomic.AddInt64(&m.sessionsIngested, int64(sessions))
	atomic.AddInt64(&m.specimensIngested, int64(specimens))
}

// Snapshot returns a read-only view of metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		QueueLength:   int(atomic.LoadInt64(&m.queueLength)),
		QueueCapacity: int(atomic.LoadInt64(&m.queueCapacity)),
		WorkerCount:   int(atomic.LoadInt64(&m.workerCount)),
		ProcessedJobs: atomic.LoadInt64(&m.processedJobs),
		FailedJobs:    atomic.LoadInt64(&m.failedJobs),

		PipelineRuns:      atomic.LoadInt64(&m.pipelineRuns),
		FailedRuns:        atomic.LoadInt64(&m.failedRuns),
		SessionsIngested:  atomic.LoadInt64(&m.sessionsIngested),
		SpecimensIngested: atomic.LoadInt64(&m.specimensIngested),
	}
}
