package imaging

import (
	"os"
	"path/filepath"
	"time"

	"chatkit/pkg/errors"
	"chatkit/pkg/logger"
)

// Cache is the append-only local image store, one file per message id. No two
// messages ever share a cache file. Entries older than the TTL are evicted by
// the sweep routine.
type Cache struct {
	dir string
	ttl time.Duration
}

func NewCache(dir string, ttl time.Duration) *Cache {
	return &Cache{dir: dir, ttl: ttl}
}

// Save writes the compressed image under the message id and returns the local
// path. Saving the same message id again overwrites the identical content,
// which keeps the local-then-remote write sequence retryable.
func (c *Cache) Save(messageID string, data []byte) (string, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", errors.Internal("Failed to create image cache directory", err)
	}

	path := c.Path(messageID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Internal("Failed to write cached image", err)
	}
	return path, nil
}

// Path returns the cache location for a message id regardless of existence.
func (c *Cache) Path(messageID string) string {
	return filepath.Join(c.dir, messageID+".jpg")
}

// Remove deletes a single cached image. Missing files are not an error.
func (c *Cache) Remove(messageID string) error {
	err := os.Remove(c.Path(messageID))
	if err != nil && !os.IsNotExist(err) {
		return errors.Internal("Failed to remove cached image", err)
	}
	return nil
}

// Sweep evicts entries older than the TTL. Returns the number removed.
func (c *Cache) Sweep() int {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Image cache sweep failed: %v", err)
		}
		return 0
	}

	removed := 0
	cutoff := time.Now().Add(-c.ttl)
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(c.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		logger.Info("Image cache sweep removed %d entries", removed)
	}
	return removed
}

// StartSweepRoutine evicts expired entries periodically for the process lifetime.
func (c *Cache) StartSweepRoutine(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			c.Sweep()
		}
	}()
}
