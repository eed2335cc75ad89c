package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"hrerp/internal/platform/metrics"
	"hrerp/internal/platform/querier"
)

const (
	JobNotificationDispatch = "notification_dispatch"
	JobStatusEmail          = "status_email"
	JobLeaveRollover        = "leave_rollover"
)

// RunFunc is the body of a job. Details are stored with the run record.
type RunFunc func(context.Context) (any, error)

type Options struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// Service runs fire-and-forget tasks on a fixed set of workers and records
// synchronous runs in job_runs. Enqueue never blocks the caller.
type Service struct {
	DB      querier.Querier
	Metrics *metrics.Collector

	opts   Options
	queue  chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

type job struct {
	Type string
	Run  RunFunc
}

// New builds a Service. db may be nil, in which case runs are not recorded.
func New(db querier.Querier, collector *metrics.Collector, opts Options) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 128
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Second
	}
	return &Service{
		DB:      db,
		Metrics: collector,
		opts:    opts,
		queue:   make(chan job, opts.QueueSize),
	}
}

// Start launches the workers. They exit when ctx is done or Stop is called.
func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Enqueue hands run to the workers. A full queue drops the job with a warning.
func (s *Service) Enqueue(jobType string, run RunFunc) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		slog.Warn("job queue stopped", "jobType", jobType)
		return false
	}
	select {
	case s.queue <- job{Type: jobType, Run: run}:
		return true
	default:
		slog.Warn("job queue full", "jobType", jobType)
		if s.Metrics != nil {
			s.Metrics.RecordDropped()
		}
		return false
	}
}

// RunNow runs the job on the caller's goroutine and records it.
func (s *Service) RunNow(ctx context.Context, jobType string, run RunFunc) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run}, true)
}

// Schedule enqueues run every interval until ctx is done.
func (s *Service) Schedule(ctx context.Context, interval time.Duration, jobType string, run RunFunc) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Enqueue(jobType, run)
			}
		}
	}()
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-s.queue:
			if !ok {
				return
			}
			// Queued work outlives the request that produced it.
			jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.JobTimeout)
			if _, err := s.runJob(jobCtx, j, j.Type == JobLeaveRollover); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
			cancel()
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job, record bool) (details any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("job panicked", "jobType", j.Type, "panic", r)
			details, err = nil, errPanic
		}
	}()

	runID := ""
	if record && s.DB != nil {
		if err := s.DB.QueryRow(ctx, `
      INSERT INTO job_runs (job_type, status)
      VALUES ($1,$2)
      RETURNING id::text
    `, j.Type, "running").Scan(&runID); err != nil {
			slog.Warn("job run insert failed", "jobType", j.Type, "err", err)
		}
	}

	details, err = j.Run(ctx)
	if runID == "" {
		return details, err
	}

	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "jobType", j.Type, "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if _, updErr := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id::text = $3
  `, status, detailsJSON, runID); updErr != nil {
		slog.Warn("job run update failed", "jobType", j.Type, "err", updErr)
	}
	return details, err
}

var errPanic = errors.New("job panicked")
