package audit

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for admission and execution failures. The transport layer
// maps each to a distinct status so callers can tell "try later" from
// "target is broken" from "service is struggling".
var (
	// ErrQueueFull rejects a submission when the waiting list is at capacity.
	// No side effects: nothing was enqueued.
	ErrQueueFull = errors.New("audit queue is full")

	// ErrTimeout marks a job that ran but exceeded its deadline. The slot and
	// browser resources are reclaimed before this propagates.
	ErrTimeout = errors.New("audit timed out")

	// ErrUnreachable marks a target that could not be resolved or connected to.
	ErrUnreachable = errors.New("target unreachable")
)

// RateLimitError rejects a client that exhausted its window.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// EngineError wraps any other fault reported by the audit engine.
type EngineError struct {
	Msg string
}

func (e *EngineError) Error() string {
	return "audit engine: " + e.Msg
}
