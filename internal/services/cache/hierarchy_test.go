package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/advisorai/admission-gate/internal/models"
	"github.com/advisorai/admission-gate/internal/services/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder returns a fixed vector per text so similarity scores are
// fully deterministic.
type stubEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls++
	v, ok := s.vectors[text]
	if !ok {
		return nil, errors.New("no vector for " + text)
	}
	return v, nil
}

// brokenStore fails every operation, to exercise the fail-open paths.
type brokenStore struct{}

var errBroken = errors.New("store down")

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errBroken }
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errBroken
}
func (brokenStore) Delete(context.Context, string) error { return errBroken }
func (brokenStore) DeleteByPrefix(context.Context, string) (int64, error) {
	return 0, errBroken
}
func (brokenStore) CountByPrefix(context.Context, string) (int64, error) { return 0, errBroken }
func (brokenStore) PushRecent(context.Context, string, string, int) error {
	return errBroken
}
func (brokenStore) Recent(context.Context, string, int) ([]string, error) {
	return nil, errBroken
}
func (brokenStore) Reserve(context.Context, string, float64, float64, time.Duration) (float64, bool, error) {
	return 0, false, errBroken
}
func (brokenStore) IncrByFloat(context.Context, string, float64, time.Duration) (float64, error) {
	return 0, errBroken
}
func (brokenStore) GetFloat(context.Context, string) (float64, error) { return 0, errBroken }
func (brokenStore) Ping(context.Context) error                        { return errBroken }
func (brokenStore) Close() error                                      { return nil }

func testConfig() models.CacheConfig {
	return models.CacheConfig{
		Enabled:            true,
		ExactTTLSeconds:    3600,
		SemanticTTLSeconds: 3600,
		PartialTTLSeconds:  3600,
		SemanticThreshold:  0.85,
		SemanticWindow:     64,
	}
}

func newMemory(t *testing.T) *store.MemoryStore {
	t.Helper()
	st, err := store.NewMemory(1024)
	require.NoError(t, err)
	return st
}

func TestExactRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := NewHierarchy(newMemory(t), testConfig(), nil, nil)

	req := &models.CacheRequest{
		Input:   "Should we expand into retail?",
		Context: map[string]string{"client": "c1"},
	}
	h.Store(ctx, req, []byte("expand carefully"))

	hit := h.Lookup(ctx, req)
	require.NotNil(t, hit)
	assert.Equal(t, models.CacheLevelExact, hit.Level)
	assert.Equal(t, []byte("expand carefully"), hit.Value)
	assert.Equal(t, float32(1), hit.Similarity)
}

func TestExactMissOnDifferentContext(t *testing.T) {
	ctx := context.Background()
	h := NewHierarchy(newMemory(t), testConfig(), nil, nil)

	h.Store(ctx, &models.CacheRequest{
		Input:   "same input",
		Context: map[string]string{"client": "c1"},
	}, []byte("answer"))

	hit := h.Lookup(ctx, &models.CacheRequest{
		Input:   "same input",
		Context: map[string]string{"client": "c2"},
	})
	assert.Nil(t, hit)
}

func TestZeroTTLDisablesLevel(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.ExactTTLSeconds = 0
	h := NewHierarchy(newMemory(t), cfg, nil, nil)

	req := &models.CacheRequest{Input: "input"}
	h.Store(ctx, req, []byte("answer"))

	assert.Nil(t, h.Lookup(ctx, req))
}

func TestExpiredEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	st := newMemory(t)
	cfg := testConfig()
	cfg.ExactTTLSeconds = 60
	h := NewHierarchy(st, cfg, nil, nil)

	base := time.Now()
	h.now = func() time.Time { return base }
	st.SetClock(func() time.Time { return base })

	req := &models.CacheRequest{Input: "input"}
	h.Store(ctx, req, []byte("answer"))

	require.NotNil(t, h.Lookup(ctx, req))

	// Fixed TTLs: the hit above must not have extended retention.
	later := base.Add(61 * time.Second)
	h.now = func() time.Time { return later }
	st.SetClock(func() time.Time { return later })

	assert.Nil(t, h.Lookup(ctx, req))
}

func TestSemanticHitAboveThreshold(t *testing.T) {
	ctx := context.Background()
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"should we expand into retail":  {1, 0, 0.1},
		"is retail expansion advisable": {1, 0.05, 0.12},
	}}
	h := NewHierarchy(newMemory(t), testConfig(), embedder, nil)

	h.Store(ctx, &models.CacheRequest{Input: "should we expand into retail"}, []byte("yes, carefully"))

	// Different wording, same context: exact misses, semantic matches.
	hit := h.Lookup(ctx, &models.CacheRequest{Input: "is retail expansion advisable"})
	require.NotNil(t, hit)
	assert.Equal(t, models.CacheLevelSemantic, hit.Level)
	assert.Equal(t, []byte("yes, carefully"), hit.Value)
	assert.GreaterOrEqual(t, hit.Similarity, float32(0.85))
}

func TestSemanticMissBelowThreshold(t *testing.T) {
	ctx := context.Background()
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"should we expand into retail": {1, 0, 0},
		"how do i bake sourdough":      {0, 1, 0},
	}}
	h := NewHierarchy(newMemory(t), testConfig(), embedder, nil)

	h.Store(ctx, &models.CacheRequest{Input: "should we expand into retail"}, []byte("yes"))

	assert.Nil(t, h.Lookup(ctx, &models.CacheRequest{Input: "how do i bake sourdough"}))
}

func TestWorkloadThresholdOverride(t *testing.T) {
	ctx := context.Background()
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"original":   {1, 0, 0},
		"paraphrase": {1, 0.35, 0}, // cosine ~0.94
	}}
	cfg := testConfig()
	cfg.WorkloadThresholds = map[string]float32{"classification": 0.99}
	h := NewHierarchy(newMemory(t), cfg, embedder, nil)

	h.Store(ctx, &models.CacheRequest{Input: "original"}, []byte("answer"))

	// Default threshold admits the near match.
	require.NotNil(t, h.Lookup(ctx, &models.CacheRequest{Input: "paraphrase"}))

	// The stricter classification workload rejects it.
	assert.Nil(t, h.Lookup(ctx, &models.CacheRequest{Input: "paraphrase", Workload: "classification"}))
}

func TestPartialHitIgnoresInput(t *testing.T) {
	ctx := context.Background()
	h := NewHierarchy(newMemory(t), testConfig(), nil, nil)

	tag := "strategic|industry:retail|urgency:high"
	h.Store(ctx, &models.CacheRequest{
		Input:      "we are a shoe brand thinking about malls",
		PatternTag: tag,
	}, []byte("pattern answer"))

	hit := h.Lookup(ctx, &models.CacheRequest{
		Input:      "completely different wording about mall strategy",
		PatternTag: tag,
	})
	require.NotNil(t, hit)
	assert.Equal(t, models.CacheLevelPartial, hit.Level)
	assert.Equal(t, []byte("pattern answer"), hit.Value)
}

func TestNoPartialWithoutTag(t *testing.T) {
	ctx := context.Background()
	h := NewHierarchy(newMemory(t), testConfig(), nil, nil)

	h.Store(ctx, &models.CacheRequest{
		Input:      "tagged question",
		PatternTag: "strategic",
	}, []byte("answer"))

	assert.Nil(t, h.Lookup(ctx, &models.CacheRequest{Input: "untagged question"}))
}

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Enabled = false
	h := NewHierarchy(newMemory(t), cfg, nil, nil)

	req := &models.CacheRequest{Input: "input"}
	h.Store(ctx, req, []byte("answer"))
	assert.Nil(t, h.Lookup(ctx, req))
}

func TestStoreFailureFailsOpen(t *testing.T) {
	ctx := context.Background()
	h := NewHierarchy(brokenStore{}, testConfig(), nil, nil)

	req := &models.CacheRequest{Input: "input", PatternTag: "tag"}

	// Neither the write nor the read may surface an error.
	h.Store(ctx, req, []byte("answer"))
	assert.Nil(t, h.Lookup(ctx, req))

	stats := h.Stats(ctx)
	assert.Positive(t, stats.StoreErrors)
}

func TestStatsCountHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	h := NewHierarchy(newMemory(t), testConfig(), nil, nil)

	req := &models.CacheRequest{Input: "input"}
	h.Store(ctx, req, []byte("answer"))

	h.Lookup(ctx, req)
	h.Lookup(ctx, &models.CacheRequest{Input: "other"})

	stats := h.Stats(ctx)
	assert.Equal(t, int64(1), stats.Levels[models.CacheLevelExact].Hits)
	assert.Equal(t, int64(1), stats.Levels[models.CacheLevelExact].Misses)
	assert.Positive(t, stats.ApproxEntries)
}

func TestClearScope(t *testing.T) {
	ctx := context.Background()
	h := NewHierarchy(newMemory(t), testConfig(), nil, nil)

	h.Store(ctx, &models.CacheRequest{Input: "a", PatternTag: "tag"}, []byte("v"))

	removed, err := h.Clear(ctx, "partial")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// Exact entry survives a partial-scope clear.
	require.NotNil(t, h.Lookup(ctx, &models.CacheRequest{Input: "a"}))

	_, err = h.Clear(ctx, "bogus")
	assert.Error(t, err)
}

func TestWarmupSkipsIncompleteQueries(t *testing.T) {
	ctx := context.Background()
	h := NewHierarchy(newMemory(t), testConfig(), nil, nil)

	warmed := h.Warmup(ctx, []models.WarmupQuery{
		{Input: "good", Value: []byte("answer")},
		{Input: "", Value: []byte("orphan value")},
		{Input: "no value"},
	})
	assert.Equal(t, 1, warmed)

	require.NotNil(t, h.Lookup(ctx, &models.CacheRequest{Input: "good"}))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Zero(t, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Zero(t, CosineSimilarity(nil, nil))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
