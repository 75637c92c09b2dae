package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExactKeyDeterministic(t *testing.T) {
	kb := NewKeyBuilder()

	ctx := map[string]string{"client": "c1", "workload": "strategic"}
	first := kb.ExactKey("should we expand into retail?", ctx)
	second := kb.ExactKey("should we expand into retail?", ctx)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "cache:exact:"))
}

func TestExactKeyContextOrderIndependent(t *testing.T) {
	kb := NewKeyBuilder()

	a := kb.ExactKey("input", map[string]string{"a": "1", "b": "2", "c": "3"})
	b := kb.ExactKey("input", map[string]string{"c": "3", "a": "1", "b": "2"})

	assert.Equal(t, a, b)
}

func TestExactKeyNormalizesWhitespaceAndCase(t *testing.T) {
	kb := NewKeyBuilder()

	a := kb.ExactKey("Should We   Expand?", nil)
	b := kb.ExactKey("should we expand?", nil)

	assert.Equal(t, a, b)
}

func TestExactKeyDistinguishesContext(t *testing.T) {
	kb := NewKeyBuilder()

	a := kb.ExactKey("input", map[string]string{"client": "c1"})
	b := kb.ExactKey("input", map[string]string{"client": "c2"})

	assert.NotEqual(t, a, b)
}

func TestPartialKeyIgnoresInput(t *testing.T) {
	kb := NewKeyBuilder()

	ctx := map[string]string{"client": "c1"}
	a := kb.PartialKey("strategic|industry:retail", ctx)
	b := kb.PartialKey("strategic|industry:retail", ctx)

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "cache:partial:"))

	c := kb.PartialKey("strategic|industry:tech", ctx)
	assert.NotEqual(t, a, c)
}

func TestLevelKeysNeverCollide(t *testing.T) {
	kb := NewKeyBuilder()

	ctx := map[string]string{"client": "c1"}
	exact := kb.ExactKey("input", ctx)
	semantic := kb.SemanticKey("input", ctx)
	partial := kb.PartialKey("input", ctx)
	embed := kb.EmbeddingKey("input")

	keys := []string{exact, semantic, partial, embed}
	seen := make(map[string]bool)
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate key across levels: %s", k)
		seen[k] = true
	}
}

func TestEmptyContextDigestStable(t *testing.T) {
	kb := NewKeyBuilder()

	assert.Equal(t, kb.ContextDigest(nil), kb.ContextDigest(map[string]string{}))
}
