package models

import "time"

// CacheLevel identifies one tier of the lookup hierarchy.
type CacheLevel string

const (
	// CacheLevelExact matches the literal normalized input plus context.
	CacheLevelExact CacheLevel = "exact"
	// CacheLevelSemantic matches by embedding cosine similarity.
	CacheLevelSemantic CacheLevel = "semantic"
	// CacheLevelPartial matches the pattern tag and context only,
	// ignoring the input text entirely.
	CacheLevelPartial CacheLevel = "partial"
)

// CacheEntry is the typed envelope around an opaque cached payload.
// The payload is deserialized only at the call site that knows the
// concrete type.
type CacheEntry struct {
	Value      []byte            `json:"value"`
	CreatedAt  time.Time         `json:"created_at"`
	TTLSeconds int               `json:"ttl_seconds"`
	HitCount   int64             `json:"hit_count"`
	Embedding  []float32         `json:"embedding,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
}

// Expired reports whether the entry is past its fixed TTL. TTLs are set
// at creation and never renewed by reads.
func (e *CacheEntry) Expired(now time.Time) bool {
	if e.TTLSeconds <= 0 {
		return true
	}
	return now.After(e.CreatedAt.Add(time.Duration(e.TTLSeconds) * time.Second))
}

// CacheHit describes a successful hierarchy lookup.
type CacheHit struct {
	Value      []byte     `json:"value"`
	Level      CacheLevel `json:"level"`
	Similarity float32    `json:"similarity,omitzero"`
	Key        string     `json:"-"`
}

// CacheRequest carries everything the hierarchy needs to key a lookup
// or store.
type CacheRequest struct {
	// Input is the normalized, already-redacted user text.
	Input string
	// Context carries coarse request attributes (client identity,
	// workload class) folded into exact and partial keys.
	Context map[string]string
	// PatternTag is an optional caller-supplied coarse classification,
	// e.g. "strategic|industry:retail|urgency:high". When present the
	// partial level is probed and written.
	PatternTag string
	// Workload selects a per-workload similarity threshold override.
	Workload string
}

// CacheLevelStats counts outcomes for one level.
type CacheLevelStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// CacheStats is the operator-facing cache statistics snapshot.
type CacheStats struct {
	Levels map[CacheLevel]CacheLevelStats `json:"levels"`
	// AvgSemanticSimilarity averages the scores of semantic hits.
	AvgSemanticSimilarity float32 `json:"avg_semantic_similarity"`
	// ApproxEntries is an approximate count of live entries.
	ApproxEntries int64 `json:"approx_entries"`
	StoreErrors   int64 `json:"store_errors"`
}

// WarmupQuery is one representative query used to pre-populate the cache.
type WarmupQuery struct {
	Input      string            `json:"input"`
	Value      []byte            `json:"value"`
	Context    map[string]string `json:"context,omitempty"`
	PatternTag string            `json:"pattern_tag,omitempty"`
}
