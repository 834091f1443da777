// Initial node placement from generated terrain, and respawn timing.
package resources

import (
	"math/rand"
	"time"

	"github.com/talgya/hearth/internal/world"
)

// Chance per tile of growing a node on matching terrain.
const (
	forestTreeChance  = 0.35
	rockyStoneChance  = 0.25
	thicketBushChance = 0.20
	meadowStrayChance = 0.01 // Lone trees and bushes on open ground
)

// respawnByType is how long a depleted node stays empty before regrowing.
var respawnByType = [NumNodeTypes]time.Duration{
	NodeTree:      60 * time.Minute,
	NodeStone:     120 * time.Minute,
	NodeBerryBush: 30 * time.Minute,
}

// RespawnDuration returns the regrowth delay for a node type.
func RespawnDuration(t NodeType) time.Duration {
	if t.Valid() {
		return respawnByType[t]
	}
	return 60 * time.Minute
}

// Scatter places nodes across the terrain map and returns how many of each
// type were created. The same seed and terrain always give the same nodes.
func Scatter(r *Registry, tm *world.TerrainMap, seed int64) [NumNodeTypes]int {
	rng := rand.New(rand.NewSource(seed + 500))
	var counts [NumNodeTypes]int

	for y := 0; y < tm.Height; y++ {
		for x := 0; x < tm.Width; x++ {
			c := world.GridCoord{X: x, Y: y}
			roll := rng.Float64()

			var t NodeType
			switch tm.At(c) {
			case world.TerrainForest:
				if roll >= forestTreeChance {
					continue
				}
				t = NodeTree
			case world.TerrainRocky:
				if roll >= rockyStoneChance {
					continue
				}
				t = NodeStone
			case world.TerrainThicket:
				if roll >= thicketBushChance {
					continue
				}
				t = NodeBerryBush
			default:
				if roll >= meadowStrayChance {
					continue
				}
				t = NodeTree
				if rng.Float64() < 0.5 {
					t = NodeBerryBush
				}
			}

			// Amounts vary ±25% around the type default.
			amount := defaultAmounts[t] * (0.75 + rng.Float64()*0.5)
			if _, ok := r.Place(t, c, float64(int(amount))); ok {
				counts[t]++
			}
		}
	}
	return counts
}

// RespawnRegrown resets nodes whose type-specific regrowth delay has
// passed. One game minute is one second of registry clock.
func (r *Registry) RespawnRegrown() int {
	r.mu.Lock()
	var due []NodeID
	for _, id := range r.order {
		n := r.nodes[id]
		if n.Depleted && r.clock-n.depletedAt >= RespawnDuration(n.Type).Minutes() {
			due = append(due, id)
		}
	}
	r.mu.Unlock()

	for _, id := range due {
		r.Reset(id)
	}
	return len(due)
}
