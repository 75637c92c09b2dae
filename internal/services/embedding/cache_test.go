package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/advisorai/admission-gate/internal/services/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls  atomic.Int64
	vector []float32
	err    error
}

func (p *countingProvider) Embed(context.Context, string) ([]float32, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return p.vector, nil
}

type downStore struct{}

func (downStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("store down")
}

func (downStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("store down")
}

func (downStore) Delete(context.Context, string) error { return errors.New("store down") }
func (downStore) DeleteByPrefix(context.Context, string) (int64, error) {
	return 0, errors.New("store down")
}
func (downStore) CountByPrefix(context.Context, string) (int64, error) {
	return 0, errors.New("store down")
}
func (downStore) PushRecent(context.Context, string, string, int) error {
	return errors.New("store down")
}
func (downStore) Recent(context.Context, string, int) ([]string, error) {
	return nil, errors.New("store down")
}
func (downStore) Reserve(context.Context, string, float64, float64, time.Duration) (float64, bool, error) {
	return 0, false, errors.New("store down")
}
func (downStore) IncrByFloat(context.Context, string, float64, time.Duration) (float64, error) {
	return 0, errors.New("store down")
}
func (downStore) GetFloat(context.Context, string) (float64, error) {
	return 0, errors.New("store down")
}
func (downStore) Ping(context.Context) error { return errors.New("store down") }
func (downStore) Close() error               { return nil }

func TestEmbedMemoizesRepeats(t *testing.T) {
	st, err := store.NewMemory(128)
	require.NoError(t, err)

	provider := &countingProvider{vector: []float32{0.1, 0.2, 0.3}}
	c := NewCache(provider, st, time.Hour)

	first, err := c.Embed(context.Background(), "should we expand into retail?")
	require.NoError(t, err)
	second, err := c.Embed(context.Background(), "should we expand into retail?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), provider.calls.Load())
}

func TestEmbedNormalizesBeforeKeying(t *testing.T) {
	st, err := store.NewMemory(128)
	require.NoError(t, err)

	provider := &countingProvider{vector: []float32{1, 2}}
	c := NewCache(provider, st, time.Hour)

	_, err = c.Embed(context.Background(), "Should We Expand?")
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "should   we expand?")
	require.NoError(t, err)

	assert.Equal(t, int64(1), provider.calls.Load())
}

func TestEmbedFallsThroughWhenStoreDown(t *testing.T) {
	provider := &countingProvider{vector: []float32{1, 2, 3}}
	c := NewCache(provider, downStore{}, time.Hour)

	vector, err := c.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vector)

	// No memoization possible, so the provider is hit again.
	_, err = c.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, int64(2), provider.calls.Load())
}

func TestEmbedPropagatesProviderError(t *testing.T) {
	st, err := store.NewMemory(128)
	require.NoError(t, err)

	provider := &countingProvider{err: errors.New("rate limited")}
	c := NewCache(provider, st, time.Hour)

	_, err = c.Embed(context.Background(), "text")
	assert.Error(t, err)
}
