// A* search over the 4-connected edge graph, with a FIFO result cache.
package world

import (
	"container/heap"
)

// Navigate returns tile-centre waypoints from start to end, excluding the
// start tile and including the end tile. Returns nil when either end is
// out of bounds or no route exists. A request with start == end yields the
// single end waypoint.
//
// Results are cached by (start, end). Place and Remove clear the cache while
// holding the write lock, so a Navigate that starts after them never sees
// a route computed against the old graph.
func (g *Grid) Navigate(start, end GridCoord) []WorldPos {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.InBounds(start) || !g.InBounds(end) {
		return nil
	}
	if start == end {
		return []WorldPos{end.Center()}
	}

	key := pathKey{start: start, end: end}
	if path, ok := g.cache.get(key); ok {
		return path
	}

	tiles := g.astar(start, end)
	var path []WorldPos
	if tiles != nil {
		path = make([]WorldPos, len(tiles))
		for i, t := range tiles {
			path[i] = t.Center()
		}
	}
	g.cache.put(key, path)
	return clonePath(path)
}

// PathLength returns the number of steps on the shortest route, or -1 if
// unreachable.
func (g *Grid) PathLength(start, end GridCoord) int {
	if start == end && g.InBounds(start) {
		return 0
	}
	path := g.Navigate(start, end)
	if path == nil {
		return -1
	}
	return len(path)
}

// astar must be called with at least the read lock held.
func (g *Grid) astar(start, end GridCoord) []GridCoord {
	startIdx := g.index(start)
	endIdx := g.index(end)

	cameFrom := make(map[int]int)
	gScore := map[int]int{startIdx: 0}
	closed := make(map[int]bool)

	open := &nodeHeap{}
	heap.Push(open, &searchNode{idx: startIdx, f: Manhattan(start, end)})

	for open.Len() > 0 {
		cur := heap.Pop(open).(*searchNode)
		if cur.idx == endIdx {
			return g.reconstruct(cameFrom, startIdx, endIdx)
		}
		if closed[cur.idx] {
			continue
		}
		closed[cur.idx] = true

		c := g.coord(cur.idx)
		mask := g.edges[cur.idx]
		for dir, n := range c.Neighbors() {
			if mask&(1<<dir) == 0 {
				continue
			}
			ni := g.index(n)
			if closed[ni] {
				continue
			}
			tentative := gScore[cur.idx] + 1
			if old, seen := gScore[ni]; seen && tentative >= old {
				continue
			}
			gScore[ni] = tentative
			cameFrom[ni] = cur.idx
			heap.Push(open, &searchNode{idx: ni, g: tentative, f: tentative + Manhattan(n, end)})
		}
	}
	return nil
}

func (g *Grid) reconstruct(cameFrom map[int]int, startIdx, endIdx int) []GridCoord {
	var rev []GridCoord
	for cur := endIdx; cur != startIdx; cur = cameFrom[cur] {
		rev = append(rev, g.coord(cur))
	}
	out := make([]GridCoord, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}

type searchNode struct {
	idx int
	g   int
	f   int
}

type nodeHeap []*searchNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].f == h[j].f {
		return h[i].g > h[j].g
	}
	return h[i].f < h[j].f
}
func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)   { *h = append(*h, x.(*searchNode)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
