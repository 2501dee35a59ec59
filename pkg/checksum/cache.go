package checksum

import (
	"os"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/exploopio/depaudit/pkg/errors"
)

// DefaultCacheSize bounds the number of digests kept by NewCache(0).
const DefaultCacheSize = 4096

type cacheKey struct {
	path    string
	size    int64
	modTime int64
}

// Cache memoizes digests per file. A dependency reached through several
// graph paths is hashed once. Entries are keyed by path, size and
// modification time, so a rewritten file is hashed again.
type Cache struct {
	next   Hasher
	lru    *lru.Cache[cacheKey, string]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache wraps next with an LRU of the given size (DefaultCacheSize if
// size <= 0). A nil next hashes files directly.
func NewCache(size int, next Hasher) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if next == nil {
		next = FileHasher{}
	}
	l, err := lru.New[cacheKey, string](size)
	if err != nil {
		return nil, errors.E(errors.KindInvalidInput, "checksum.NewCache", err)
	}
	return &Cache{next: next, lru: l}, nil
}

// File implements Hasher.
func (c *Cache) File(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.E(errors.KindNotFound, "checksum.File", err)
	}
	key := cacheKey{path: path, size: info.Size(), modTime: info.ModTime().UnixNano()}

	if sum, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return sum, nil
	}
	c.misses.Add(1)

	sum, err := c.next.File(path)
	if err != nil {
		return "", err
	}
	c.lru.Add(key, sum)
	return sum, nil
}

// Hits returns the number of lookups served from the cache.
func (c *Cache) Hits() int64 { return c.hits.Load() }

// Misses returns the number of lookups that hashed the file.
func (c *Cache) Misses() int64 { return c.misses.Load() }

// Len returns the number of cached digests.
func (c *Cache) Len() int { return c.lru.Len() }

var _ Hasher = (*Cache)(nil)
