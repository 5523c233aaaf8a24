package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/armavita/meta-ads-mcp/internal/logger"
)

// Cache persists a single TokenInfo as JSON at a fixed path. It assumes a
// single writer at a time; there is no file locking.
type Cache struct {
	path string
}

// NewCache creates a cache backed by the given file path.
func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// Path returns the cache file location.
func (c *Cache) Path() string {
	return c.path
}

// Load reads the cached token. It returns (nil, nil) when no usable token
// exists; a malformed, truncated or expired cache file is deleted.
func (c *Cache) Load() (*TokenInfo, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token cache: %w", err)
	}

	token, err := decodeTokenInfo(data)
	if err != nil || !token.looksValid() || token.IsExpired() {
		// A stale cache is worse than no cache.
		_ = c.Delete()
		return nil, nil
	}
	return token, nil
}

// Save writes the token with restricted permissions.
func (c *Cache) Save(token *TokenInfo) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	return os.WriteFile(c.path, data, 0600)
}

// Delete removes the cache file. Missing files are not an error.
func (c *Cache) Delete() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting token cache: %w", err)
	}
	return nil
}

// Watch observes the cache file and invokes onChange with the reloaded
// token whenever another process rewrites it (nil when it is deleted).
// The returned stop function releases the watcher and is safe to call once.
func (c *Cache) Watch(onChange func(*TokenInfo)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating cache watcher: %w", err)
	}

	// Watch the directory: the file may not exist yet and editors/writers
	// often replace it wholesale.
	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching cache dir: %w", err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(c.path) {
					continue
				}
				switch {
				case event.Op.Has(fsnotify.Write), event.Op.Has(fsnotify.Create):
					token, err := c.Load()
					if err != nil {
						logger.Warnf("reloading token cache: %v", err)
						continue
					}
					onChange(token)
				case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
					onChange(nil)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("token cache watcher: %v", err)
			}
		}
	}()

	return func() { _ = watcher.Close() }, nil
}
