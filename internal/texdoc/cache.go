package texdoc

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of stripped documents a watch session keeps.
const DefaultCacheSize = 256

// StripCache memoizes StripComments by content hash. It lets repeated runs
// over a mostly unchanged tree (watch mode) skip re-stripping every file.
// Safe for concurrent use.
type StripCache struct {
	entries *lru.Cache[string, string]
}

// NewStripCache creates a cache holding up to size documents.
func NewStripCache(size int) (*StripCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &StripCache{entries: c}, nil
}

// Strip returns StripComments(text, marker), served from the cache when the
// same text and marker were stripped before. A nil cache strips directly.
func (c *StripCache) Strip(text, marker string) string {
	if c == nil {
		return StripComments(text, marker)
	}
	key := cacheKey(text, marker)
	if cleaned, ok := c.entries.Get(key); ok {
		return cleaned
	}
	cleaned := StripComments(text, marker)
	c.entries.Add(key, cleaned)
	return cleaned
}

// Len returns the number of cached documents.
func (c *StripCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

func cacheKey(text, marker string) string {
	h := sha256.New()
	h.Write([]byte(marker))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
