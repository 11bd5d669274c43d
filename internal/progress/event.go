// Package progress defines the lifecycle event stream reported for one
// audit job.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/pageaudit/pageaudit/internal/audit"
)

// Stage denotes the lifecycle milestone represented by an Event. A job moves
// through a single path with no branching back:
// queued -> processing -> complete | error.
type Stage string

// Supported stages.
const (
	StageQueued     Stage = "queued"
	StageProcessing Stage = "processing"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

// Event captures one job lifecycle milestone.
type Event struct {
	// JobID identifies the job the event belongs to.
	JobID string `json:"job_id"`
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time `json:"ts"`
	// Stage denotes which milestone occurred.
	Stage Stage `json:"stage"`
	// Position is the waiting-list position at submission time (queued only).
	Position int `json:"position,omitempty"`
	// ETA is the estimated wait, position times average job duration. A rough
	// heuristic, not a guarantee (queued only).
	ETA time.Duration `json:"eta,omitempty"`
	// Report carries the full result (complete only).
	Report *audit.Report `json:"report,omitempty"`
	// Message is a human-readable failure description (error only). The
	// internal error taxonomy is not exposed here.
	Message string `json:"message,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageQueued, StageProcessing:
	case StageComplete:
		if e.Report == nil {
			return errors.New("complete requires a report")
		}
	case StageError:
		if e.Message == "" {
			return errors.New("error requires a message")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Position < 0 {
		return errors.New("position must be >= 0")
	}
	return nil
}

// Terminal reports whether the stage ends the stream.
func (e Event) Terminal() bool {
	return e.Stage == StageComplete || e.Stage == StageError
}
