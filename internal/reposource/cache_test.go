package reposource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobCacheRoundTrip(t *testing.T) {
	cache, err := OpenBlobCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	_, ok := cache.Get("abc")
	assert.False(t, ok)

	require.NoError(t, cache.Put("abc", []byte("content")))
	data, ok := cache.Get("abc")
	assert.True(t, ok)
	assert.Equal(t, []byte("content"), data)
}

func TestBlobCacheSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	cache, err := OpenBlobCache(dir)
	require.NoError(t, err)
	require.NoError(t, cache.Put("abc", []byte("content")))
	require.NoError(t, cache.Close())

	reopened, err := OpenBlobCache(dir)
	require.NoError(t, err)
	defer reopened.Close()

	data, ok := reopened.Get("abc")
	assert.True(t, ok)
	assert.Equal(t, []byte("content"), data)
}
