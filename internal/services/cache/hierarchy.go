// Package cache implements the three-level lookup hierarchy: exact
// digest match, semantic similarity over embeddings, and
// partial-pattern match. Caching here is an optimization, never a
// correctness requirement, so every store failure fails open as a miss.
package cache

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/advisorai/admission-gate/internal/models"
	"github.com/advisorai/admission-gate/internal/services/store"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Embedder is the memoized text-to-vector transform. It is satisfied by
// embedding.Cache; the hierarchy only needs the one method.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Hierarchy cascades lookups exact -> semantic -> partial, cheapest
// first, and writes entries back at every applicable level.
type Hierarchy struct {
	store    store.Store
	keys     *KeyBuilder
	cfg      models.CacheConfig
	embedder Embedder
	index    *SimilarityIndex
	stats    *statsCollector
	now      func() time.Time
}

// NewHierarchy builds the cache hierarchy. The embedder may be nil,
// which disables the semantic level; the index is optional and replaces
// the bounded recent-window scan when present.
func NewHierarchy(st store.Store, cfg models.CacheConfig, embedder Embedder, index *SimilarityIndex) *Hierarchy {
	return &Hierarchy{
		store:    st,
		keys:     NewKeyBuilder(),
		cfg:      cfg,
		embedder: embedder,
		index:    index,
		stats:    newStatsCollector(),
		now:      time.Now,
	}
}

// Lookup probes the levels in increasing cost order and returns the
// first hit. A nil result is a miss; lookups never surface errors.
func (h *Hierarchy) Lookup(ctx context.Context, req *models.CacheRequest) *models.CacheHit {
	if !h.cfg.Enabled {
		return nil
	}

	if hit := h.lookupExact(ctx, req); hit != nil {
		return hit
	}
	if hit := h.lookupSemantic(ctx, req); hit != nil {
		return hit
	}
	return h.lookupPartial(ctx, req)
}

func (h *Hierarchy) lookupExact(ctx context.Context, req *models.CacheRequest) *models.CacheHit {
	key := h.keys.ExactKey(req.Input, req.Context)
	entry := h.getEntry(ctx, key)
	if entry == nil {
		h.stats.miss(models.CacheLevelExact)
		return nil
	}

	h.stats.hit(models.CacheLevelExact, 0)
	h.touch(ctx, key, entry)
	return &models.CacheHit{Value: entry.Value, Level: models.CacheLevelExact, Similarity: 1, Key: key}
}

func (h *Hierarchy) lookupSemantic(ctx context.Context, req *models.CacheRequest) *models.CacheHit {
	if h.embedder == nil && h.index == nil {
		return nil
	}
	threshold := h.cfg.ThresholdFor(req.Workload)

	if h.index != nil {
		value, score, found := h.index.Lookup(ctx, req.Input, threshold)
		if !found {
			h.stats.miss(models.CacheLevelSemantic)
			return nil
		}
		h.stats.hit(models.CacheLevelSemantic, score)
		return &models.CacheHit{Value: value, Level: models.CacheLevelSemantic, Similarity: score}
	}

	vector, err := h.embedder.Embed(ctx, req.Input)
	if err != nil {
		fiberlog.Warnf("CacheHierarchy: embedding failed, skipping semantic level: %v", err)
		h.stats.miss(models.CacheLevelSemantic)
		return nil
	}

	// Bounded linear scan over the most recently stored vectors. Recall
	// is capped at the window size as the cache grows; the similarity
	// index delegate exists for workloads that need full recall.
	recent, err := h.store.Recent(ctx, semanticRecent, h.cfg.SemanticWindow)
	if err != nil {
		fiberlog.Warnf("CacheHierarchy: recent-window read failed, treating as miss: %v", err)
		h.stats.storeError()
		h.stats.miss(models.CacheLevelSemantic)
		return nil
	}

	var bestKey string
	var bestEntry *models.CacheEntry
	var bestScore float32
	for _, key := range recent {
		entry := h.getEntry(ctx, key)
		if entry == nil || len(entry.Embedding) == 0 {
			continue
		}
		score := CosineSimilarity(vector, entry.Embedding)
		if score >= threshold && (bestEntry == nil || score > bestScore) {
			bestKey, bestEntry, bestScore = key, entry, score
		}
	}

	if bestEntry == nil {
		h.stats.miss(models.CacheLevelSemantic)
		return nil
	}

	h.stats.hit(models.CacheLevelSemantic, bestScore)
	h.touch(ctx, bestKey, bestEntry)
	return &models.CacheHit{Value: bestEntry.Value, Level: models.CacheLevelSemantic, Similarity: bestScore, Key: bestKey}
}

func (h *Hierarchy) lookupPartial(ctx context.Context, req *models.CacheRequest) *models.CacheHit {
	if req.PatternTag == "" {
		return nil
	}

	key := h.keys.PartialKey(req.PatternTag, req.Context)
	entry := h.getEntry(ctx, key)
	if entry == nil {
		h.stats.miss(models.CacheLevelPartial)
		return nil
	}

	h.stats.hit(models.CacheLevelPartial, 0)
	h.touch(ctx, key, entry)
	return &models.CacheHit{Value: entry.Value, Level: models.CacheLevelPartial, Key: key}
}

// Store writes value back at the exact and semantic levels, and at the
// partial level when the caller supplied a pattern tag. Store errors
// are logged and swallowed.
func (h *Hierarchy) Store(ctx context.Context, req *models.CacheRequest, value []byte) {
	if !h.cfg.Enabled {
		return
	}

	tags := map[string]string{}
	if req.Workload != "" {
		tags["workload"] = req.Workload
	}
	if req.PatternTag != "" {
		tags["pattern"] = req.PatternTag
	}

	h.putEntry(ctx, h.keys.ExactKey(req.Input, req.Context), models.CacheLevelExact, value, nil, tags)

	if h.index != nil {
		h.index.Store(ctx, req.Input, value)
	} else if h.embedder != nil {
		if vector, err := h.embedder.Embed(ctx, req.Input); err != nil {
			fiberlog.Warnf("CacheHierarchy: embedding failed, semantic level not written: %v", err)
		} else {
			key := h.keys.SemanticKey(req.Input, req.Context)
			if h.putEntry(ctx, key, models.CacheLevelSemantic, value, vector, tags) {
				if err := h.store.PushRecent(ctx, semanticRecent, key, h.cfg.SemanticWindow); err != nil {
					fiberlog.Warnf("CacheHierarchy: recent-window push failed: %v", err)
					h.stats.storeError()
				}
			}
		}
	}

	if req.PatternTag != "" {
		h.putEntry(ctx, h.keys.PartialKey(req.PatternTag, req.Context), models.CacheLevelPartial, value, nil, tags)
	}
}

// getEntry reads and decodes an envelope, treating every failure and
// expired entry as a miss.
func (h *Hierarchy) getEntry(ctx context.Context, key string) *models.CacheEntry {
	data, found, err := h.store.Get(ctx, key)
	if err != nil {
		fiberlog.Warnf("CacheHierarchy: store read failed, treating as miss: %v", err)
		h.stats.storeError()
		return nil
	}
	if !found {
		return nil
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		fiberlog.Warnf("CacheHierarchy: corrupt entry at %s, treating as miss", key)
		return nil
	}
	if entry.Expired(h.now()) {
		return nil
	}
	return &entry
}

// putEntry encodes and writes one envelope. A level whose TTL is zero
// or negative is not written at all.
func (h *Hierarchy) putEntry(ctx context.Context, key string, level models.CacheLevel, value []byte, vector []float32, tags map[string]string) bool {
	ttlSeconds := h.cfg.TTLFor(level)
	if ttlSeconds <= 0 {
		return false
	}

	entry := models.CacheEntry{
		Value:      value,
		CreatedAt:  h.now(),
		TTLSeconds: ttlSeconds,
		Embedding:  vector,
		Tags:       tags,
	}
	data, err := json.Marshal(&entry)
	if err != nil {
		fiberlog.Errorf("CacheHierarchy: failed to encode entry: %v", err)
		return false
	}

	if err := h.store.Set(ctx, key, data, time.Duration(ttlSeconds)*time.Second); err != nil {
		fiberlog.Warnf("CacheHierarchy: store write failed: %v", err)
		h.stats.storeError()
		return false
	}
	return true
}

// touch bumps an entry's hit count in place, preserving its original
// expiry so reads never extend retention. Best effort.
func (h *Hierarchy) touch(ctx context.Context, key string, entry *models.CacheEntry) {
	entry.HitCount++

	remaining := time.Until(entry.CreatedAt.Add(time.Duration(entry.TTLSeconds) * time.Second))
	if remaining <= 0 {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := h.store.Set(ctx, key, data, remaining); err != nil {
		fiberlog.Debugf("CacheHierarchy: hit-count update failed: %v", err)
	}
}

// Stats returns the operator statistics snapshot.
func (h *Hierarchy) Stats(ctx context.Context) models.CacheStats {
	stats := h.stats.snapshot()

	var entries int64
	for _, level := range []models.CacheLevel{models.CacheLevelExact, models.CacheLevelSemantic, models.CacheLevelPartial} {
		n, err := h.store.CountByPrefix(ctx, LevelPrefix(level))
		if err != nil {
			fiberlog.Debugf("CacheHierarchy: count failed for %s: %v", level, err)
			continue
		}
		entries += n
	}
	stats.ApproxEntries = entries
	return stats
}

// Cleanup sweeps expired entries where the backend cannot do it itself.
// Redis expires keys on its own; the memory store sweeps lazily.
func (h *Hierarchy) Cleanup() int {
	if mem, ok := h.store.(*store.MemoryStore); ok {
		return mem.Sweep()
	}
	return 0
}

// Clear wipes a named scope: one level, "embedding", or "all".
func (h *Hierarchy) Clear(ctx context.Context, scope string) (int64, error) {
	var prefix string
	switch scope {
	case "exact", "semantic", "partial":
		prefix = LevelPrefix(models.CacheLevel(scope))
	case "embedding":
		prefix = prefixEmbedding
	case "all", "":
		prefix = "cache:"
	default:
		return 0, models.NewValidationError("unknown cache scope: "+scope, nil)
	}
	return h.store.DeleteByPrefix(ctx, prefix)
}

// Warmup pre-populates the hierarchy from representative queries.
func (h *Hierarchy) Warmup(ctx context.Context, queries []models.WarmupQuery) int {
	warmed := 0
	for _, q := range queries {
		if q.Input == "" || len(q.Value) == 0 {
			continue
		}
		h.Store(ctx, &models.CacheRequest{
			Input:      q.Input,
			Context:    q.Context,
			PatternTag: q.PatternTag,
		}, q.Value)
		warmed++
	}
	return warmed
}

// CosineSimilarity computes the cosine of the angle between two
// vectors, in [-1, 1]. Mismatched or zero vectors score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
