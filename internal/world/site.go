package world

// FindOpenSite searches outward from near in square rings and returns the
// first origin where a footprint of the given size fits, keeping a one-tile
// free margin around it so later buildings do not wall each other in.
// radius bounds the search; zero means the whole grid.
func (g *Grid) FindOpenSite(size, near GridCoord, radius int) (GridCoord, bool) {
	if radius <= 0 {
		radius = g.width
		if g.height > radius {
			radius = g.height
		}
	}
	margin := GridCoord{X: size.X + 2, Y: size.Y + 2}

	for r := 0; r <= radius; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if dx != -r && dx != r && dy != -r && dy != r {
					continue // interior of the ring was checked earlier
				}
				origin := GridCoord{X: near.X + dx, Y: near.Y + dy}
				padded := GridCoord{X: origin.X - 1, Y: origin.Y - 1}
				if g.CanPlace(padded, margin) {
					return origin, true
				}
			}
		}
	}
	return GridCoord{}, false
}
