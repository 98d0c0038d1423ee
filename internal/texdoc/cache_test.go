package texdoc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripCache(t *testing.T) {
	cache, err := NewStripCache(2)
	require.NoError(t, err)

	require.Equal(t, "a\n", cache.Strip("a\n% x\n", "%"))
	require.Equal(t, 1, cache.Len())

	require.Equal(t, "a\n", cache.Strip("a\n% x\n", "%"))
	require.Equal(t, 1, cache.Len(), "same text and marker hit the cache")

	require.Equal(t, "a\n% x\n", cache.Strip("a\n% x\n", "#"))
	require.Equal(t, 2, cache.Len(), "marker is part of the key")

	cache.Strip("b\n", "%")
	require.Equal(t, 2, cache.Len(), "bounded by size")
}

func TestStripCache_Nil(t *testing.T) {
	var cache *StripCache
	require.Equal(t, "a\n", cache.Strip("a\n%x\n", "%"))
	require.Equal(t, 0, cache.Len())
}

func TestNewStripCache_DefaultSize(t *testing.T) {
	cache, err := NewStripCache(0)
	require.NoError(t, err)
	require.NotNil(t, cache)
}
