// Population growth, job placement and fresh-village setup.
package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/hearth/internal/agents"
	"github.com/talgya/hearth/internal/buildings"
	"github.com/talgya/hearth/internal/economy"
	"github.com/talgya/hearth/internal/resources"
	"github.com/talgya/hearth/internal/world"
)

// maxSpawnsPerTick bounds arrivals per building tick.
const maxSpawnsPerTick = 3

// startingStorage is the building type every fresh village begins with.
const startingStorage = "stockpile"

// processPopulation turns whole units of the population resource into
// villagers. Housing caps the resource, so this never outgrows the homes.
func (s *Simulation) processPopulation(tick uint64) {
	target := int(math.Floor(s.Pool.Get(economy.Population)))
	missing := target - s.Villagers.Count()
	if missing <= 0 {
		return
	}
	if missing > maxSpawnsPerTick {
		missing = maxSpawnsPerTick
	}
	spawned := 0
	for i := 0; i < missing; i++ {
		tile, ok := s.arrivalTile()
		if !ok {
			break
		}
		if _, ok := s.Villagers.Spawn(tile); ok {
			spawned++
		}
	}
	if spawned > 0 {
		slog.Info("villagers arrived", "tick", tick, "count", spawned, "population", s.Villagers.Count())
	}
}

// arrivalTile picks where a new villager appears: beside the largest
// home, else beside storage, else the grid centre.
func (s *Simulation) arrivalTile() (world.GridCoord, bool) {
	center := world.GridCoord{X: s.Grid.Width() / 2, Y: s.Grid.Height() / 2}
	var home buildings.BuildingID
	best := -1
	for _, b := range s.Buildings.All() {
		if b.Capacity.Housing > best {
			home, best = b.ID, b.Capacity.Housing
		}
	}
	if best > 0 {
		if tile, ok := s.Buildings.Entrance(home, center); ok {
			return tile, true
		}
	}
	if sid, ok := s.Buildings.NearestStorage(center); ok {
		if tile, ok := s.Buildings.Entrance(sid, center); ok {
			return tile, true
		}
	}
	return center, s.Grid.InBounds(center)
}

// autoAssign gives jobless villagers the open slots of working buildings,
// lowest building ID first.
func (s *Simulation) autoAssign() {
	var idle []agents.AgentID
	for _, v := range s.Villagers.All() {
		if v.Job == "" {
			idle = append(idle, v.ID)
		}
	}
	if len(idle) == 0 {
		return
	}
	for _, b := range s.Buildings.All() {
		bt, ok := s.Catalog.Get(b.TypeID)
		if !ok || bt.Job == "" || b.UpgradeLeft > 0 {
			continue
		}
		for open := b.Capacity.Worker - len(b.Workers); open > 0 && len(idle) > 0; open-- {
			if !s.Jobs.Assign(uint64(idle[0]), b.ID, bt.Job) {
				break
			}
			slog.Debug("job assigned", "villager", idle[0], "building", b.ID, "job", bt.Job)
			idle = idle[1:]
		}
		if len(idle) == 0 {
			return
		}
	}
}

// Bootstrap populates a fresh village: resource nodes from terrain, the
// starting stock, a free stockpile near the centre and the first villagers.
func (s *Simulation) Bootstrap(terrain *world.TerrainMap, stock map[string]float64, villagers int) error {
	for t, c := range world.TerrainCounts(terrain) {
		slog.Debug("terrain", "type", world.TerrainName(t), "tiles", c)
	}
	counts := resources.Scatter(s.Nodes, terrain, s.opts.Seed)
	for t := resources.NodeType(0); t < resources.NumNodeTypes; t++ {
		slog.Info("nodes scattered", "type", t.String(), "count", counts[t])
	}

	for res, amt := range stock {
		s.Pool.Set(res, amt)
	}

	center := world.GridCoord{X: s.Grid.Width() / 2, Y: s.Grid.Height() / 2}
	if bt, ok := s.Catalog.Get(startingStorage); ok {
		origin, ok := s.Grid.FindOpenSite(bt.Footprint(), center, 0)
		if !ok {
			return fmt.Errorf("no room for the starting %s", bt.ID)
		}
		id, ok := s.Buildings.Place(bt.ID, origin)
		if !ok {
			return fmt.Errorf("place starting %s at %d,%d", bt.ID, origin.X, origin.Y)
		}
		slog.Info("starting storage placed", "id", id, "type", bt.ID, "x", origin.X, "y", origin.Y)
	}

	s.Pool.Set(economy.Population, float64(villagers))
	for i := 0; i < villagers; i++ {
		tile, ok := s.arrivalTile()
		if !ok {
			break
		}
		s.Villagers.Spawn(tile)
	}
	s.updateStats()
	return nil
}
