package admission

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveClientIDStable(t *testing.T) {
	a := DeriveClientID("203.0.113.7", "Mozilla/5.0", "en-US")
	b := DeriveClientID("203.0.113.7", "Mozilla/5.0", "en-US")
	assert.Equal(t, a, b)
}

func TestDeriveClientIDShape(t *testing.T) {
	id := DeriveClientID("203.0.113.7", "Mozilla/5.0", "en-US")

	require.True(t, strings.HasPrefix(id, "203.0.113.7-"))
	suffix := strings.TrimPrefix(id, "203.0.113.7-")
	assert.Len(t, suffix, 16)
	assert.NotContains(t, suffix, "Mozilla")
}

func TestDeriveClientIDSeparatesCallers(t *testing.T) {
	base := DeriveClientID("203.0.113.7", "Mozilla/5.0", "en-US")

	assert.NotEqual(t, base, DeriveClientID("203.0.113.8", "Mozilla/5.0", "en-US"))
	assert.NotEqual(t, base, DeriveClientID("203.0.113.7", "curl/8.0", "en-US"))
	assert.NotEqual(t, base, DeriveClientID("203.0.113.7", "Mozilla/5.0", "fr-FR"))
}

func TestDeriveClientIDEmptyInputs(t *testing.T) {
	id := DeriveClientID("", "", "")
	assert.True(t, strings.HasPrefix(id, "unknown-"))
}
