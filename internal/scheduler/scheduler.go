// Package scheduler implements the audit job admission and execution loop:
// a bounded FIFO waiting list in front of a bounded pool of concurrent
// engine invocations.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pageaudit/pageaudit/internal/audit"
	"github.com/pageaudit/pageaudit/internal/metrics"
	"github.com/pageaudit/pageaudit/internal/progress"
)

// Config controls Scheduler behavior. All knobs are fixed at construction.
type Config struct {
	MaxConcurrent int
	MaxQueue      int
	JobTimeout    time.Duration
	CacheTTL      time.Duration
}

const (
	defaultJobTimeout = 60 * time.Second
	defaultCacheTTL   = 24 * time.Hour
	// Seed for the ETA heuristic until real completions settle the average.
	initialAvgDuration = 30 * time.Second
	// Budget for the post-completion cache write; detached from the job
	// context so a departed client does not lose the Put.
	cachePutTimeout = 5 * time.Second
)

// Job is the handle returned at admission. Its result slot settles exactly
// once; Wait observes it and Events exposes the lifecycle stream.
type Job struct {
	ID          string
	Request     audit.Request
	Fingerprint string
	Submitted   time.Time

	stream *progress.Stream
	done   chan struct{}
	report *audit.Report
	err    error
}

// Wait blocks until the job settles or ctx ends. Abandoning Wait does not
// cancel the job; it runs to completion or timeout regardless.
func (j *Job) Wait(ctx context.Context) (*audit.Report, error) {
	select {
	case <-j.done:
		return j.report, j.err
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for audit: %w", ctx.Err())
	}
}

// Events returns the job's progress stream. The channel closes after the
// terminal event.
func (j *Job) Events() <-chan progress.Event {
	return j.stream.Events()
}

// Stats is a point-in-time snapshot read under the scheduler mutex.
type Stats struct {
	Active        int `json:"active"`
	Queued        int `json:"queued"`
	MaxConcurrent int `json:"max_concurrent"`
	MaxQueue      int `json:"max_queue"`
}

// Scheduler owns the waiting list and the active-slot count. Both are
// mutated only under mu; dispatch happens inside the same critical section
// as admission and slot release, so a free slot never idles while the
// waiting list is non-empty.
type Scheduler struct {
	engine audit.Engine
	cache  audit.Cache
	clock  audit.Clock
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	waiting   []*Job
	active    int
	avgDur    time.Duration
	completed int64
}

// New constructs a Scheduler. The cache may be nil when caching is disabled.
func New(engine audit.Engine, cache audit.Cache, clock audit.Clock, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = 10
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaultJobTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		engine: engine,
		cache:  cache,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
		avgDur: initialAvgDuration,
	}
}

// Submit admits a request or rejects it with audit.ErrQueueFull. The
// capacity check happens before insertion so the waiting-list bound stays
// exact. On admission the queued event is emitted with the job's position
// and estimated wait, then dispatch is attempted immediately.
func (s *Scheduler) Submit(req audit.Request) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validate request: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.waiting) >= s.cfg.MaxQueue {
		metrics.ObserveJob("queue_full")
		return nil, audit.ErrQueueFull
	}

	job := &Job{
		ID:          uuid.NewString(),
		Request:     req,
		Fingerprint: audit.Fingerprint(req),
		Submitted:   s.clock.Now(),
		stream:      progress.NewStream(s.logger),
		done:        make(chan struct{}),
	}

	// Position is the index in the waiting list at submission time; the wait
	// estimate scales it by the running average job duration. A rough
	// heuristic, not a promise.
	position := len(s.waiting)
	job.stream.Emit(progress.Event{
		JobID:    job.ID,
		TS:       s.clock.Now(),
		Stage:    progress.StageQueued,
		Position: position,
		ETA:      time.Duration(position) * s.avgDur,
	})

	s.waiting = append(s.waiting, job)
	metrics.SetQueueDepth(len(s.waiting))
	s.logger.Debug("audit job admitted",
		zap.String("job_id", job.ID),
		zap.String("url", req.URL),
		zap.Int("position", position),
	)

	s.dispatchLocked()
	return job, nil
}

// Stats snapshots queue and slot occupancy.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Active:        s.active,
		Queued:        len(s.waiting),
		MaxConcurrent: s.cfg.MaxConcurrent,
		MaxQueue:      s.cfg.MaxQueue,
	}
}

// dispatchLocked moves waiting jobs into free slots, strict FIFO. Callers
// must hold mu. Runs on admission and on every slot release.
func (s *Scheduler) dispatchLocked() {
	for s.active < s.cfg.MaxConcurrent && len(s.waiting) > 0 {
		job := s.waiting[0]
		s.waiting = s.waiting[1:]
		s.active++
		metrics.SetQueueDepth(len(s.waiting))
		metrics.IncActiveJobs()
		job.stream.Emit(progress.Event{
			JobID: job.ID,
			TS:    s.clock.Now(),
			Stage: progress.StageProcessing,
		})
		go s.run(job)
	}
}

// run executes one dispatched job: the engine invocation races a hard
// deadline via the context, and whichever side loses is abandoned. Context
// cancellation aborts the engine externally, so browser resources are
// reclaimed on both branches.
func (s *Scheduler) run(job *Job) {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	report, err := s.engine.Run(ctx, job.Request)
	cancel()

	if err != nil {
		err = classify(err)
		report = nil
	} else if report == nil {
		err = &audit.EngineError{Msg: "engine returned no report"}
	}

	if err == nil && s.cache != nil {
		putCtx, putCancel := context.WithTimeout(context.Background(), cachePutTimeout)
		s.cache.Put(putCtx, job.Fingerprint, report, s.cfg.CacheTTL)
		putCancel()
	}

	s.settle(job, report, err, s.clock.Now().Sub(start))
}

// settle resolves the job's result slot, releases the slot, and re-runs
// dispatch inside the same critical section.
func (s *Scheduler) settle(job *Job, report *audit.Report, err error, dur time.Duration) {
	s.mu.Lock()
	s.active--
	s.completed++
	// Cumulative mean; good enough for the queued-event ETA heuristic.
	s.avgDur += (dur - s.avgDur) / time.Duration(s.completed)
	s.dispatchLocked()
	s.mu.Unlock()

	job.report = report
	job.err = err
	close(job.done)

	metrics.DecActiveJobs()
	metrics.ObserveJobDuration(dur)
	switch {
	case err == nil:
		metrics.ObserveJob("succeeded")
		job.stream.Emit(progress.Event{
			JobID:  job.ID,
			TS:     s.clock.Now(),
			Stage:  progress.StageComplete,
			Report: report,
		})
		s.logger.Info("audit job completed",
			zap.String("job_id", job.ID),
			zap.String("url", job.Request.URL),
			zap.Duration("duration", dur),
		)
	default:
		metrics.ObserveJob(failureLabel(err))
		job.stream.Emit(progress.Event{
			JobID:   job.ID,
			TS:      s.clock.Now(),
			Stage:   progress.StageError,
			Message: userMessage(err),
		})
		s.logger.Warn("audit job failed",
			zap.String("job_id", job.ID),
			zap.String("url", job.Request.URL),
			zap.Duration("duration", dur),
			zap.Error(err),
		)
	}
}

// classify folds raw engine failures into the error taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return audit.ErrTimeout
	case errors.Is(err, audit.ErrUnreachable):
		return audit.ErrUnreachable
	default:
		var engineErr *audit.EngineError
		if errors.As(err, &engineErr) {
			return engineErr
		}
		return &audit.EngineError{Msg: err.Error()}
	}
}

func failureLabel(err error) string {
	switch {
	case errors.Is(err, audit.ErrTimeout):
		return "timeout"
	case errors.Is(err, audit.ErrUnreachable):
		return "unreachable"
	default:
		return "failed"
	}
}

// userMessage renders a failure for the progress stream without leaking the
// internal taxonomy.
func userMessage(err error) string {
	switch {
	case errors.Is(err, audit.ErrTimeout):
		return "the audit did not finish in time"
	case errors.Is(err, audit.ErrUnreachable):
		return "the target page could not be reached"
	default:
		return "the audit failed"
	}
}
