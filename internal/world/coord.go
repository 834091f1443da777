// Package world provides the village grid, tile occupancy, and pathfinding.
// Tiles are addressed by integer (x, y); world positions are floats in
// pixel-like units with TileSize units per tile.
package world

import "math"

// TileSize is the number of world units per grid tile.
const TileSize = 16.0

// GridCoord is a tile position on the grid.
type GridCoord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// WorldPos is a continuous position in world units.
type WorldPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Center returns the world position at the centre of the tile.
func (c GridCoord) Center() WorldPos {
	return WorldPos{
		X: (float64(c.X) + 0.5) * TileSize,
		Y: (float64(c.Y) + 0.5) * TileSize,
	}
}

// Add returns c offset by d.
func (c GridCoord) Add(d GridCoord) GridCoord {
	return GridCoord{X: c.X + d.X, Y: c.Y + d.Y}
}

// NeighborDirections are the four orthogonal offsets, in the order
// right, down, left, up. Bit i of an edge mask refers to direction i.
var NeighborDirections = [4]GridCoord{
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
	{X: 0, Y: -1},
}

// opposite maps a direction index to the index pointing back.
var opposite = [4]int{2, 3, 0, 1}

// Neighbors returns the four orthogonally adjacent coordinates.
func (c GridCoord) Neighbors() [4]GridCoord {
	var result [4]GridCoord
	for i, dir := range NeighborDirections {
		result[i] = c.Add(dir)
	}
	return result
}

// Manhattan returns the 4-connected distance between two tiles.
func Manhattan(a, b GridCoord) int {
	dx := a.X - b.X
	dy := a.Y - b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// DistSq returns the squared tile distance between two coordinates.
func DistSq(a, b GridCoord) int {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

// Sub returns p - q.
func (p WorldPos) Sub(q WorldPos) WorldPos {
	return WorldPos{X: p.X - q.X, Y: p.Y - q.Y}
}

// Len returns the euclidean length of p as a vector.
func (p WorldPos) Len() float64 {
	return math.Hypot(p.X, p.Y)
}

// Distance returns the euclidean distance between two world positions.
func Distance(a, b WorldPos) float64 {
	return a.Sub(b).Len()
}

// MoveToward returns the position reached by moving from p toward target
// by at most step units, and whether the target was reached.
func MoveToward(p, target WorldPos, step float64) (WorldPos, bool) {
	d := target.Sub(p)
	dist := d.Len()
	if dist <= step || dist == 0 {
		return target, true
	}
	return WorldPos{X: p.X + d.X/dist*step, Y: p.Y + d.Y/dist*step}, false
}

// ToGrid returns the tile containing the world position.
func ToGrid(p WorldPos) GridCoord {
	return GridCoord{
		X: int(math.Floor(p.X / TileSize)),
		Y: int(math.Floor(p.Y / TileSize)),
	}
}
