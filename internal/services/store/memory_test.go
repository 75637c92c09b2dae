package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSetTTL(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemory(16)
	require.NoError(t, err)

	base := time.Now()
	s.SetClock(func() time.Time { return base })

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	value, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v"), value)

	s.SetClock(func() time.Time { return base.Add(61 * time.Second) })

	_, found, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemory(16)
	require.NoError(t, err)

	base := time.Now()
	s.SetClock(func() time.Time { return base })
	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))

	s.SetClock(func() time.Time { return base.Add(1000 * time.Hour) })
	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemoryReserve(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemory(16)
	require.NoError(t, err)

	total, allowed, err := s.Reserve(ctx, "q", 2, 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, float64(2), total)

	total, allowed, err = s.Reserve(ctx, "q", 3, 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, float64(5), total)

	// Overflow leaves the counter untouched.
	total, allowed, err = s.Reserve(ctx, "q", 1, 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, float64(5), total)
}

func TestMemoryReserveWindowExpiry(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemory(16)
	require.NoError(t, err)

	base := time.Now()
	s.SetClock(func() time.Time { return base })

	_, allowed, err := s.Reserve(ctx, "q", 5, 5, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)

	_, allowed, _ = s.Reserve(ctx, "q", 1, 5, time.Minute)
	require.False(t, allowed)

	// Past the window the counter lazily resets.
	s.SetClock(func() time.Time { return base.Add(2 * time.Minute) })
	total, allowed, err := s.Reserve(ctx, "q", 1, 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, float64(1), total)
}

func TestMemoryRecentListTrims(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemory(16)
	require.NoError(t, err)

	for _, m := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.PushRecent(ctx, "recent", m, 3))
	}

	members, err := s.Recent(ctx, "recent", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b"}, members)

	members, err = s.Recent(ctx, "recent", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c"}, members)
}

func TestMemoryDeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemory(16)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "cache:exact:1", []byte("a"), 0))
	require.NoError(t, s.Set(ctx, "cache:exact:2", []byte("b"), 0))
	require.NoError(t, s.Set(ctx, "cache:partial:1", []byte("c"), 0))

	deleted, err := s.DeleteByPrefix(ctx, "cache:exact:")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	count, err := s.CountByPrefix(ctx, "cache:")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemorySweep(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemory(16)
	require.NoError(t, err)

	base := time.Now()
	s.SetClock(func() time.Time { return base })

	require.NoError(t, s.Set(ctx, "short", []byte("v"), time.Second))
	require.NoError(t, s.Set(ctx, "long", []byte("v"), time.Hour))
	_, _, err = s.Reserve(ctx, "counter", 1, 0, time.Second)
	require.NoError(t, err)

	s.SetClock(func() time.Time { return base.Add(time.Minute) })
	assert.Equal(t, 2, s.Sweep())

	_, found, err := s.Get(ctx, "long")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemoryIncrByFloat(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemory(16)
	require.NoError(t, err)

	total, err := s.IncrByFloat(ctx, "c", 1.5, time.Minute)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, total, 1e-9)

	total, err = s.IncrByFloat(ctx, "c", -0.5, time.Minute)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, total, 1e-9)

	value, err := s.GetFloat(ctx, "c")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, value, 1e-9)

	missing, err := s.GetFloat(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, missing)
}
