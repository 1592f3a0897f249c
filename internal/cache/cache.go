package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/metrolist/metrobot/internal/config"
	"github.com/metrolist/metrobot/internal/repository"
)

// FileCache stores downloaded tracks on disk, keyed by a hash of the origin
// URL, with LRU eviction accounted for in sqlite.
type FileCache struct {
	cfg  *config.Config
	repo *repository.Repo
	mu   sync.Mutex
}

func NewFileCache(cfg *config.Config, repo *repository.Repo) *FileCache {
	return &FileCache{cfg: cfg, repo: repo}
}

func (c *FileCache) HashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (c *FileCache) PathFor(hash string) string {
	return filepath.Join(c.cfg.CacheDir, hash)
}

// Get returns the cached path for hash if the file still exists on disk.
// Stale accounting rows for missing files are removed.
func (c *FileCache) Get(ctx context.Context, hash string) (string, bool) {
	p := c.PathFor(hash)
	if _, err := os.Stat(p); err == nil {
		_ = c.repo.CacheTouch(ctx, hash, 0, false)
		return p, true
	}
	_ = c.repo.CacheRemove(ctx, hash)
	return "", false
}

func (c *FileCache) TempPath(hash string) string {
	return filepath.Join(c.cfg.CacheDir, "tmp", hash)
}

// Commit moves a fully written temp file into place and records it, then
// evicts least-recently-accessed entries until the cache fits its limit.
func (c *FileCache) Commit(ctx context.Context, tmp, hash string) (string, error) {
	info, err := os.Stat(tmp)
	if err != nil {
		return "", err
	}
	final := c.PathFor(hash)
	if info.Size() == 0 {
		_ = os.Remove(tmp)
		return "", os.ErrNotExist
	}
	if err := os.Rename(tmp, final); err != nil {
		return "", err
	}
	_ = c.repo.CacheTouch(ctx, hash, info.Size(), true)
	return final, c.evictIfNeeded(ctx)
}

func (c *FileCache) evictIfNeeded(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	total, err := c.repo.CacheTotalBytes(ctx)
	if err != nil {
		return err
	}
	for total > c.cfg.CacheLimitBytes {
		oldest, err := c.repo.CacheOldest(ctx)
		if err != nil {
			return err
		}
		_ = os.Remove(c.PathFor(oldest))
		if err := c.repo.CacheRemove(ctx, oldest); err != nil {
			return err
		}
		total, err = c.repo.CacheTotalBytes(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}
