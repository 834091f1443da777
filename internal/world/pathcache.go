package world

import "sync"

type pathKey struct {
	start GridCoord
	end   GridCoord
}

// pathCache is a fixed-capacity FIFO cache of navigation results.
// Unreachable results are cached as nil paths.
type pathCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[pathKey][]WorldPos
	order    []pathKey
}

func newPathCache(capacity int) *pathCache {
	return &pathCache{
		capacity: capacity,
		entries:  make(map[pathKey][]WorldPos, capacity),
	}
}

func (c *pathCache) get(k pathKey) ([]WorldPos, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	return clonePath(p), true
}

func (c *pathCache) put(k pathKey, p []WorldPos) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[k]; ok {
		c.entries[k] = p
		return
	}
	for len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[k] = p
	c.order = append(c.order, k)
}

func (c *pathCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[pathKey][]WorldPos, c.capacity)
	c.order = c.order[:0]
}

func (c *pathCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CachedPaths returns the number of cached navigation results.
func (g *Grid) CachedPaths() int {
	return g.cache.len()
}

func clonePath(p []WorldPos) []WorldPos {
	if p == nil {
		return nil
	}
	out := make([]WorldPos, len(p))
	copy(out, p)
	return out
}
