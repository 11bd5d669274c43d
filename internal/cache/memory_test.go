package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pageaudit/pageaudit/internal/audit"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sampleReport(url string) *audit.Report {
	return &audit.Report{
		URL:      url,
		FinalURL: url,
		Categories: []audit.CategoryResult{
			{Category: audit.CategorySEO, Score: 0.75},
		},
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewMemory(clock)

	c.Put(context.Background(), "fp-1", sampleReport("https://example.com"), time.Hour)

	got, hit := c.Get(context.Background(), "fp-1")
	require.True(t, hit)
	require.Equal(t, "https://example.com", got.URL)
	require.InDelta(t, 0.75, got.Categories[0].Score, 1e-9)
}

func TestMemoryMissOnUnknownFingerprint(t *testing.T) {
	t.Parallel()

	c := NewMemory(&fakeClock{now: time.Unix(1000, 0)})
	_, hit := c.Get(context.Background(), "absent")
	require.False(t, hit)
}

func TestMemoryExpiry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewMemory(clock)
	c.Put(context.Background(), "fp-1", sampleReport("https://example.com"), time.Minute)

	clock.Advance(30 * time.Second)
	_, hit := c.Get(context.Background(), "fp-1")
	require.True(t, hit)

	clock.Advance(31 * time.Second)
	_, hit = c.Get(context.Background(), "fp-1")
	require.False(t, hit)
	require.Zero(t, c.Len())
}

func TestMemoryOverwrite(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewMemory(clock)
	c.Put(context.Background(), "fp-1", sampleReport("https://old.example.com"), time.Hour)
	c.Put(context.Background(), "fp-1", sampleReport("https://new.example.com"), time.Hour)

	got, hit := c.Get(context.Background(), "fp-1")
	require.True(t, hit)
	require.Equal(t, "https://new.example.com", got.URL)
	require.Equal(t, 1, c.Len())
}
