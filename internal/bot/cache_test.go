package bot

import (
	"testing"

	"connectfour/internal/game"
)

func TestCacheKeysOnDepthAndPerspective(t *testing.T) {
	c := NewCache(16)
	board := game.Key{Occupied: 1 << 38, First: 1 << 38}
	shallow := cacheKey{board: board, depth: 1, perspective: game.Player1}
	c.store(shallow, cacheEntry{score: 7, bound: boundExact})

	if got, ok := c.probe(shallow); !ok || got.score != 7 {
		t.Fatalf("probe(shallow) = %+v, %v", got, ok)
	}
	deeper := shallow
	deeper.depth = 3
	if _, ok := c.probe(deeper); ok {
		t.Fatalf("a depth-1 entry answered a depth-3 probe")
	}
	other := shallow
	other.perspective = game.Player2
	if _, ok := c.probe(other); ok {
		t.Fatalf("an entry for yellow answered a probe for red")
	}
}

func TestCacheLimit(t *testing.T) {
	c := NewCache(2)
	for i := 0; i < 3; i++ {
		c.store(cacheKey{board: game.Key{Occupied: uint64(i)}, depth: 1}, cacheEntry{})
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d after overflowing a limit of 2, want 1", c.Len())
	}

	c.store(cacheKey{board: game.Key{Occupied: 2}, depth: 1}, cacheEntry{score: 5})
	if c.Len() != 1 {
		t.Fatalf("overwriting an entry should not clear the cache")
	}

	if NewCache(0).limit != DefaultCacheLimit {
		t.Fatalf("non-positive limit should fall back to the default")
	}
}

func TestBoundFor(t *testing.T) {
	tests := []struct {
		score int
		want  bound
	}{
		{-5, boundUpper},
		{0, boundUpper},
		{5, boundExact},
		{10, boundLower},
		{15, boundLower},
	}
	for _, tt := range tests {
		if got := boundFor(tt.score, 0, 10); got != tt.want {
			t.Errorf("boundFor(%d, 0, 10) = %d, want %d", tt.score, got, tt.want)
		}
	}
}
