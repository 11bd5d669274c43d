package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pageaudit/pageaudit/internal/audit"
)

// Memory is an in-process cache for redis-less deployments and tests.
// Entries past their expiry are treated as absent and lazily deleted.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   audit.Clock
}

type memoryEntry struct {
	report  *audit.Report
	expires time.Time
}

// NewMemory constructs an empty in-memory cache.
func NewMemory(clock audit.Clock) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		clock:   clock,
	}
}

// Get returns the cached report if present and unexpired.
func (c *Memory) Get(_ context.Context, fingerprint string) (*audit.Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries[fingerprint]
	if !ok {
		return nil, false
	}
	if c.clock.Now().After(ent.expires) {
		delete(c.entries, fingerprint)
		return nil, false
	}
	return ent.report, true
}

// Put overwrites any existing entry for the fingerprint.
func (c *Memory) Put(_ context.Context, fingerprint string, report *audit.Report, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = memoryEntry{
		report:  report,
		expires: c.clock.Now().Add(ttl),
	}
}

// Len reports the number of stored entries, including expired ones not yet
// swept by a Get.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
