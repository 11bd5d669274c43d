package progress

import (
	"sync"

	"go.uber.org/zap"
)

const defaultBufferSize = 8

// Stream is the unidirectional, ordered event channel for a single job.
// Events arrive in stage order, at most once each, and the stream terminates
// after complete or error. Emit never blocks the scheduler: the buffer is
// sized for the full lifecycle, and anything beyond it is dropped with a
// warning rather than stalling a worker slot. There is no replay and no
// reconnection; a reader that stops draining does not stop the job.
type Stream struct {
	mu      sync.Mutex
	ch      chan Event
	emitted map[Stage]bool
	closed  bool
	logger  *zap.Logger
}

// NewStream creates a stream ready to receive one job's lifecycle.
func NewStream(logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		ch:      make(chan Event, defaultBufferSize),
		emitted: make(map[Stage]bool),
		logger:  logger,
	}
}

// Events exposes the receive side. The channel closes after the terminal
// event is delivered.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Emit appends an event to the stream. Invalid events, repeated stages, and
// events after the terminal stage are discarded.
func (s *Stream) Emit(evt Event) {
	if s == nil {
		return
	}
	if err := evt.Validate(); err != nil {
		s.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.emitted[evt.Stage] {
		return
	}
	s.emitted[evt.Stage] = true

	select {
	case s.ch <- evt:
	default:
		s.logger.Warn("progress event dropped, stream buffer full",
			zap.String("job_id", evt.JobID),
			zap.String("stage", string(evt.Stage)),
		)
		return
	}
	if evt.Terminal() {
		s.closed = true
		close(s.ch)
	}
}
