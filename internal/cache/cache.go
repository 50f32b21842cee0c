// Package cache stores per-file scan results keyed by file path and
// validated by a BLAKE3 hash of the file content plus the scan settings.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// Cache provides file-based caching for scan results.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
}

// entry is the on-disk envelope of a cached value.
type entry struct {
	Hash      string          `json:"hash"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// New creates a new cache instance. A disabled cache ignores every call.
func New(dir string, ttlHours int, enabled bool) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false}, nil
	}

	// Ensure cache directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &Cache{
		dir:     dir,
		ttl:     time.Duration(ttlHours) * time.Hour,
		enabled: true,
	}, nil
}

// Enabled reports whether the cache stores anything.
func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Fingerprint hashes content together with the settings that shaped the
// cached value, so changing a setting invalidates earlier entries.
func Fingerprint(content []byte, settings ...string) string {
	h := blake3.New()
	_, _ = h.Write(content)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strings.Join(settings, "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}

// Load decodes the entry for key into v when its hash matches. Corrupt and
// expired entries are removed and reported as misses.
func (c *Cache) Load(key, hash string, v any) bool {
	if !c.Enabled() {
		return false
	}

	path := c.keyPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		_ = os.Remove(path)
		return false
	}
	if e.Hash != hash {
		return false
	}
	if c.ttl > 0 && time.Since(e.Timestamp) > c.ttl {
		_ = os.Remove(path)
		return false
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		_ = os.Remove(path)
		return false
	}
	return true
}

// Store encodes v under key with hash for later validation.
// The entry is written to a temporary file and renamed into place.
func (c *Cache) Store(key, hash string, v any) error {
	if !c.Enabled() {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	entryData, err := json.Marshal(entry{Hash: hash, Timestamp: time.Now(), Data: data})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, "entry-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(entryData); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.keyPath(key))
}

// Invalidate removes a cache entry.
func (c *Cache) Invalidate(key string) error {
	if !c.Enabled() {
		return nil
	}
	err := os.Remove(c.keyPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.Enabled() {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// keyPath converts a key to a filesystem path.
func (c *Cache) keyPath(key string) string {
	// Use BLAKE3 hash of key for filename to avoid path issues
	hash := blake3.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(hash[:])+".json")
}

// Stats returns cache statistics.
type Stats struct {
	Entries   int           `json:"entries" toon:"entries"`
	TotalSize int64         `json:"total_size" toon:"total_size"`
	OldestAge time.Duration `json:"oldest_age" toon:"oldest_age"`
	NewestAge time.Duration `json:"newest_age" toon:"newest_age"`
}

// GetStats returns statistics about the cache.
func (c *Cache) GetStats() (*Stats, error) {
	if !c.Enabled() {
		return &Stats{}, nil
	}

	stats := &Stats{}
	var oldest, newest time.Time

	err := filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		stats.Entries++
		stats.TotalSize += info.Size()

		modTime := info.ModTime()
		if oldest.IsZero() || modTime.Before(oldest) {
			oldest = modTime
		}
		if newest.IsZero() || modTime.After(newest) {
			newest = modTime
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	if !newest.IsZero() {
		stats.NewestAge = time.Since(newest)
	}
	return stats, nil
}
