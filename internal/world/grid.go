package world

import (
	"sync"
)

// Default grid parameters.
const (
	DefaultWidth         = 100
	DefaultHeight        = 100
	DefaultPathCacheSize = 100
)

type footprint struct {
	origin GridCoord
	size   GridCoord
}

// Grid owns tile occupancy and the 4-connected pathfinding graph.
// Building tiles have every edge removed, so they are impassable rather
// than expensive. Grid is safe for concurrent use: placement and removal
// take the write lock, navigation takes the read lock.
type Grid struct {
	mu sync.RWMutex

	width  int
	height int

	occupant   []uint64 // building ID per tile, 0 = free
	edges      []uint8  // bit i set = edge toward NeighborDirections[i]
	footprints map[uint64]footprint

	cache *pathCache
}

// NewGrid creates a fully connected, empty grid.
// Non-positive dimensions fall back to the defaults.
func NewGrid(width, height, cacheSize int) *Grid {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if cacheSize <= 0 {
		cacheSize = DefaultPathCacheSize
	}
	g := &Grid{
		width:      width,
		height:     height,
		occupant:   make([]uint64, width*height),
		edges:      make([]uint8, width*height),
		footprints: make(map[uint64]footprint),
		cache:      newPathCache(cacheSize),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := GridCoord{X: x, Y: y}
			var mask uint8
			for i, n := range c.Neighbors() {
				if g.InBounds(n) {
					mask |= 1 << i
				}
			}
			g.edges[g.index(c)] = mask
		}
	}
	return g
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

// InBounds reports whether c lies on the grid.
func (g *Grid) InBounds(c GridCoord) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.width && c.Y < g.height
}

func (g *Grid) index(c GridCoord) int {
	return c.Y*g.width + c.X
}

func (g *Grid) coord(i int) GridCoord {
	return GridCoord{X: i % g.width, Y: i / g.width}
}

// CanPlace reports whether every tile of the footprint is in bounds and free.
func (g *Grid) CanPlace(origin, size GridCoord) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.canPlaceLocked(origin, size)
}

func (g *Grid) canPlaceLocked(origin, size GridCoord) bool {
	if size.X <= 0 || size.Y <= 0 {
		return false
	}
	for y := origin.Y; y < origin.Y+size.Y; y++ {
		for x := origin.X; x < origin.X+size.X; x++ {
			c := GridCoord{X: x, Y: y}
			if !g.InBounds(c) || g.occupant[g.index(c)] != 0 {
				return false
			}
		}
	}
	return true
}

// Place marks the footprint occupied by id and cuts its tiles out of the
// pathfinding graph. Returns false if id is zero, already placed, or the
// footprint is not free.
func (g *Grid) Place(id uint64, origin, size GridCoord) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id == 0 {
		return false
	}
	if _, exists := g.footprints[id]; exists {
		return false
	}
	if !g.canPlaceLocked(origin, size) {
		return false
	}

	g.footprints[id] = footprint{origin: origin, size: size}
	forEachTile(origin, size, func(c GridCoord) {
		i := g.index(c)
		g.occupant[i] = id
		for dir, n := range c.Neighbors() {
			g.edges[i] &^= 1 << dir
			if g.InBounds(n) {
				g.edges[g.index(n)] &^= 1 << opposite[dir]
			}
		}
	})
	g.cache.clear()
	return true
}

// Remove frees the footprint of id. Edges are restored only toward
// neighbours that are themselves unoccupied, so removing one building never
// opens a route through another.
func (g *Grid) Remove(id uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	fp, ok := g.footprints[id]
	if !ok {
		return false
	}
	delete(g.footprints, id)

	forEachTile(fp.origin, fp.size, func(c GridCoord) {
		g.occupant[g.index(c)] = 0
	})
	forEachTile(fp.origin, fp.size, func(c GridCoord) {
		i := g.index(c)
		for dir, n := range c.Neighbors() {
			if !g.InBounds(n) {
				continue
			}
			ni := g.index(n)
			if g.occupant[ni] != 0 {
				continue
			}
			g.edges[i] |= 1 << dir
			g.edges[ni] |= 1 << opposite[dir]
		}
	})
	g.cache.clear()
	return true
}

// IsOccupied reports whether c is occupied. Out-of-bounds tiles report true.
func (g *Grid) IsOccupied(c GridCoord) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.InBounds(c) {
		return true
	}
	return g.occupant[g.index(c)] != 0
}

// OccupantAt returns the building ID on c, or 0.
func (g *Grid) OccupantAt(c GridCoord) uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.InBounds(c) {
		return 0
	}
	return g.occupant[g.index(c)]
}

// Footprint returns every tile occupied by id.
func (g *Grid) Footprint(id uint64) []GridCoord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fp, ok := g.footprints[id]
	if !ok {
		return nil
	}
	tiles := make([]GridCoord, 0, fp.size.X*fp.size.Y)
	forEachTile(fp.origin, fp.size, func(c GridCoord) {
		tiles = append(tiles, c)
	})
	return tiles
}

// ApproachTile returns the free tile bordering the footprint that is
// closest to from. Buildings are impassable, so walkers target a border
// tile instead of the building itself.
func (g *Grid) ApproachTile(origin, size, from GridCoord) (GridCoord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	best := GridCoord{}
	bestDist := -1
	inside := func(c GridCoord) bool {
		return c.X >= origin.X && c.Y >= origin.Y &&
			c.X < origin.X+size.X && c.Y < origin.Y+size.Y
	}
	forEachTile(origin, size, func(c GridCoord) {
		for _, n := range c.Neighbors() {
			if inside(n) || !g.InBounds(n) || g.occupant[g.index(n)] != 0 {
				continue
			}
			d := DistSq(n, from)
			if bestDist < 0 || d < bestDist {
				best, bestDist = n, d
			}
		}
	})
	return best, bestDist >= 0
}

// OccupiedCount returns how many tiles are occupied.
func (g *Grid) OccupiedCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, id := range g.occupant {
		if id != 0 {
			n++
		}
	}
	return n
}

func forEachTile(origin, size GridCoord, fn func(GridCoord)) {
	for y := origin.Y; y < origin.Y+size.Y; y++ {
		for x := origin.X; x < origin.X+size.X; x++ {
			fn(GridCoord{X: x, Y: y})
		}
	}
}
