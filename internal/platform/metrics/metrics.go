package metrics

import (
	"sync/atomic"
	"time"
)

// Collector keeps process-local counters exposed on /metrics.
type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	idempotentHits  uint64
	droppedJobs     uint64
	totalDurationMs uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordReplay counts a response served from the idempotency cache.
func (c *Collector) RecordReplay() {
	atomic.AddUint64(&c.idempotentHits, 1)
}

// RecordDropped counts a background job dropped on a full queue.
func (c *Collector) RecordDropped() {
	atomic.AddUint64(&c.droppedJobs, 1)
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":     total,
		"errorsTotal":       errs,
		"rateLimitedTotal":  limited,
		"idempotentReplays": atomic.LoadUint64(&c.idempotentHits),
		"droppedJobsTotal":  atomic.LoadUint64(&c.droppedJobs),
		"avgDurationMs":     avg,
		"totalDurationMs":   totalMs,
	}
}
