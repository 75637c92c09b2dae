package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/advisorai/admission-gate/internal/models"
	"github.com/advisorai/admission-gate/internal/utils"
)

// keyVersion is bumped whenever the canonical key layout changes so
// stale entries written under an older layout can never collide with
// new ones.
const keyVersion = "v1"

const (
	prefixExact     = "cache:exact:"
	prefixSemantic  = "cache:semantic:"
	prefixPartial   = "cache:partial:"
	prefixEmbedding = "cache:embedding:"
	semanticRecent  = "cache:semantic:recent"
)

// KeyBuilder produces canonical, versioned cache keys. Context
// attributes are folded in sorted by name, so logically identical
// requests digest identically regardless of map iteration order.
type KeyBuilder struct{}

// NewKeyBuilder creates a key builder.
func NewKeyBuilder() *KeyBuilder {
	return &KeyBuilder{}
}

func (kb *KeyBuilder) digest(parts ...string) string {
	buf := utils.Get()
	defer utils.Put(buf)

	for _, part := range parts {
		_, _ = buf.WriteString(part)
		_ = buf.WriteByte(0)
	}

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

// ContextDigest canonicalizes the context attribute map.
func (kb *KeyBuilder) ContextDigest(context map[string]string) string {
	if len(context) == 0 {
		return kb.digest(keyVersion, "ctx")
	}

	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, 2+2*len(keys))
	parts = append(parts, keyVersion, "ctx")
	for _, k := range keys {
		parts = append(parts, k, context[k])
	}
	return kb.digest(parts...)
}

// ExactKey hashes the literal normalized input plus context.
func (kb *KeyBuilder) ExactKey(input string, context map[string]string) string {
	return prefixExact + kb.digest(keyVersion, string(models.CacheLevelExact), normalize(input), kb.ContextDigest(context))
}

// SemanticKey addresses the envelope that carries an entry's embedding.
// Semantic candidates are compared by cosine similarity, not by this
// key; the key only names where the vector lives.
func (kb *KeyBuilder) SemanticKey(input string, context map[string]string) string {
	return prefixSemantic + kb.digest(keyVersion, string(models.CacheLevelSemantic), normalize(input), kb.ContextDigest(context))
}

// PartialKey hashes the pattern tag and context digest only; the input
// text is deliberately ignored so paraphrases sharing a classification
// collide.
func (kb *KeyBuilder) PartialKey(patternTag string, context map[string]string) string {
	return prefixPartial + kb.digest(keyVersion, string(models.CacheLevelPartial), patternTag, kb.ContextDigest(context))
}

// EmbeddingKey memoizes the text-to-vector transform.
func (kb *KeyBuilder) EmbeddingKey(text string) string {
	return prefixEmbedding + kb.digest(keyVersion, "embed", normalize(text))
}

// LevelPrefix returns the store key prefix for a cache level, used by
// the management surface to scope clears and counts.
func LevelPrefix(level models.CacheLevel) string {
	switch level {
	case models.CacheLevelExact:
		return prefixExact
	case models.CacheLevelSemantic:
		return prefixSemantic
	case models.CacheLevelPartial:
		return prefixPartial
	default:
		return "cache:"
	}
}

func normalize(input string) string {
	return strings.Join(strings.Fields(strings.ToLower(input)), " ")
}
