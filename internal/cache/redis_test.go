package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pageaudit/pageaudit/internal/audit"
)

// The Redis backend must degrade to misses when the server is gone, so these
// tests point at an address nothing listens on.
func TestRedisDegradesToMissWhenUnavailable(t *testing.T) {
	t.Parallel()

	c := NewRedis("127.0.0.1:1", "pageaudit:", nil)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	report, hit := c.Get(ctx, "abc123")
	require.Nil(t, report)
	require.False(t, hit)

	// Put must swallow the failure rather than propagate it.
	c.Put(ctx, "abc123", &audit.Report{URL: "https://example.com"}, time.Hour)

	require.Error(t, c.Ping(ctx))
}
