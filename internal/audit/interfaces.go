package audit

import (
	"context"
	"time"
)

// Engine runs one audit against a live page. Implementations must honor ctx
// cancellation and release any spawned resources (e.g. a browser process)
// when it fires, even mid-navigation.
type Engine interface {
	Run(ctx context.Context, req Request) (*Report, error)
}

// Cache maps a request fingerprint to a previously computed report. Backend
// failures must degrade to a miss on Get and be swallowed on Put; caching is
// an optimization, never a correctness dependency.
type Cache interface {
	Get(ctx context.Context, fingerprint string) (*Report, bool)
	Put(ctx context.Context, fingerprint string, report *Report, ttl time.Duration)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
