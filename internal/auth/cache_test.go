package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	return NewCache(filepath.Join(t.TempDir(), "token_cache.json"))
}

func TestCacheLoad(t *testing.T) {
	t.Run("missing file is not an error", func(t *testing.T) {
		cache := testCache(t)

		token, err := cache.Load()
		require.NoError(t, err)
		assert.Nil(t, token)
	})

	t.Run("round trip", func(t *testing.T) {
		cache := testCache(t)
		saved := NewTokenInfo("EAAtoken1234567890abcdef", 3600, "user1")
		require.NoError(t, cache.Save(saved))

		loaded, err := cache.Load()
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, saved.AccessToken, loaded.AccessToken)
		assert.Equal(t, saved.UserID, loaded.UserID)
	})

	t.Run("malformed cache is deleted", func(t *testing.T) {
		cache := testCache(t)
		require.NoError(t, os.WriteFile(cache.Path(), []byte("{broken"), 0600))

		token, err := cache.Load()
		require.NoError(t, err)
		assert.Nil(t, token)
		assert.NoFileExists(t, cache.Path())
	})

	t.Run("truncated token is deleted", func(t *testing.T) {
		cache := testCache(t)
		require.NoError(t, cache.Save(&TokenInfo{AccessToken: "short", CreatedAt: time.Now().Unix()}))

		token, err := cache.Load()
		require.NoError(t, err)
		assert.Nil(t, token)
		assert.NoFileExists(t, cache.Path())
	})

	t.Run("expired token is deleted", func(t *testing.T) {
		cache := testCache(t)
		require.NoError(t, cache.Save(&TokenInfo{
			AccessToken: "EAAtoken1234567890abcdef",
			ExpiresIn:   60,
			CreatedAt:   time.Now().Add(-time.Hour).Unix(),
		}))

		token, err := cache.Load()
		require.NoError(t, err)
		assert.Nil(t, token)
		assert.NoFileExists(t, cache.Path())
	})
}

func TestCacheDelete(t *testing.T) {
	cache := testCache(t)
	require.NoError(t, cache.Save(NewTokenInfo("EAAtoken1234567890abcdef", 0, "")))

	require.NoError(t, cache.Delete())
	// A second delete with nothing on disk is a no-op.
	require.NoError(t, cache.Delete())
}

func TestCacheSavePermissions(t *testing.T) {
	cache := testCache(t)
	require.NoError(t, cache.Save(NewTokenInfo("EAAtoken1234567890abcdef", 0, "")))

	info, err := os.Stat(cache.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestCacheWatch(t *testing.T) {
	cache := testCache(t)

	updates := make(chan *TokenInfo, 4)
	stop, err := cache.Watch(func(token *TokenInfo) {
		updates <- token
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, cache.Save(NewTokenInfo("EAAtoken1234567890abcdef", 0, "user1")))

	select {
	case token := <-updates:
		require.NotNil(t, token)
		assert.Equal(t, "user1", token.UserID)
	case <-time.After(3 * time.Second):
		t.Fatal("no watch notification after save")
	}

	require.NoError(t, cache.Delete())

	select {
	case token := <-updates:
		assert.Nil(t, token)
	case <-time.After(3 * time.Second):
		t.Fatal("no watch notification after delete")
	}
}
