package bot

import "connectfour/internal/game"

const DefaultCacheLimit = 1 << 20

type bound uint8

const (
	boundExact bound = iota
	boundLower
	boundUpper
)

// cacheKey includes the remaining depth and the perspective: a shallow
// estimate must never answer a deeper query, and scores are relative to
// the side the engine plays.
type cacheKey struct {
	board       game.Key
	depth       int8
	perspective game.Player
}

type cacheEntry struct {
	score int32
	bound bound
}

// Cache memoizes search results. Values found inside a narrowed alpha-beta
// window are stored as bounds, not exact scores.
type Cache struct {
	entries map[cacheKey]cacheEntry
	limit   int
}

func NewCache(limit int) *Cache {
	if limit <= 0 {
		limit = DefaultCacheLimit
	}
	return &Cache{
		entries: make(map[cacheKey]cacheEntry),
		limit:   limit,
	}
}

func (c *Cache) probe(k cacheKey) (cacheEntry, bool) {
	e, ok := c.entries[k]
	return e, ok
}

// store starts over from an empty cache once limit entries are held.
func (c *Cache) store(k cacheKey, e cacheEntry) {
	if _, ok := c.entries[k]; !ok && len(c.entries) >= c.limit {
		c.Clear()
	}
	c.entries[k] = e
}

func (c *Cache) Len() int {
	return len(c.entries)
}

func (c *Cache) Clear() {
	c.entries = make(map[cacheKey]cacheEntry)
}

func boundFor(score, alphaOrig, betaOrig int) bound {
	switch {
	case score <= alphaOrig:
		return boundUpper
	case score >= betaOrig:
		return boundLower
	default:
		return boundExact
	}
}
