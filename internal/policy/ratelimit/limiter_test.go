package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterWaitSpacesSameHost(t *testing.T) {
	t.Parallel()

	// 20 per second with burst 1 means one token every 50ms.
	l := New(Config{RPS: 20, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://example.com/a"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://EXAMPLE.com/b"))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, 1, l.Hosts())
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.001, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 2, l.Hosts())
}

func TestLimiterWaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.001, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://slow.example"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://slow.example"))
}

func TestLimiterUnlimitedAndUnknownHost(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Wait(context.Background(), "::bad::"))
	}
	assert.Equal(t, 1, l.Hosts())
	assert.Equal(t, "unknown", hostOf("::bad::"))
}

func TestLimiterEvictsIdleHosts(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 1000, Burst: 1, IdleTTL: time.Minute})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		require.NoError(t, l.Wait(ctx, fmt.Sprintf("https://host-%d.example", i)))
	}
	assert.Equal(t, 500, l.Hosts())

	now = now.Add(30 * time.Second)
	require.NoError(t, l.Wait(ctx, "https://host-0.example"))
	assert.Equal(t, 500, l.Hosts(), "nothing is idle before the TTL")

	now = now.Add(45 * time.Second)
	require.NoError(t, l.Wait(ctx, "https://fresh.example"))
	assert.Equal(t, 2, l.Hosts(), "only recently used hosts survive a sweep")
}

func TestLimiterIdleTTLCoversRefill(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.5, Burst: 2, IdleTTL: time.Second})
	assert.Equal(t, 4*time.Second, l.idleTTL)

	assert.Equal(t, defaultIdleTTL, New(Config{}).idleTTL)
}
