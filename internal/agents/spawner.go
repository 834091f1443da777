// Villager spawning: names, starting needs and work efficiency.
package agents

import (
	"math/rand"

	"github.com/talgya/hearth/internal/world"
)

// Spawner creates villagers.
type Spawner struct {
	rng    *rand.Rand
	nextID AgentID
	used   map[string]bool
}

// NewSpawner creates a villager spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng:    rand.New(rand.NewSource(seed + 300)),
		nextID: 1,
		used:   make(map[string]bool),
	}
}

// Spawn creates a villager standing at the centre of tile.
func (s *Spawner) Spawn(tile world.GridCoord) Villager {
	id := s.nextID
	s.nextID++
	return Villager{
		ID:         id,
		Name:       s.generateName(),
		Position:   tile.Center(),
		Carrying:   make(map[string]float64),
		Hunger:     0.7 + s.rng.Float64()*0.3,
		Efficiency: 0.8 + s.rng.Float64()*0.4,
	}
}

// generateName picks a given name and a trade surname, avoiding names
// already issued while untried combinations remain.
func (s *Spawner) generateName() string {
	for attempt := 0; ; attempt++ {
		name := givenNames[s.rng.Intn(len(givenNames))] + " " + tradeNames[s.rng.Intn(len(tradeNames))]
		if !s.used[name] || attempt >= 8 {
			s.used[name] = true
			return name
		}
	}
}

var givenNames = []string{
	"Ada", "Alwin", "Beda", "Bertil", "Cole", "Dagny", "Edda", "Eamon",
	"Fenna", "Godric", "Hilde", "Ingrid", "Joss", "Linnea", "Maren",
	"Osric", "Pim", "Ragna", "Sigrid", "Tove", "Wendel", "Yrsa",
}

var tradeNames = []string{
	"Hewer", "Reaper", "Quarrier", "Gleaner", "Smoker", "Maltster",
	"Smith", "Mason", "Thatcher", "Sawyer", "Carter", "Miller",
	"Brewer", "Baker", "Kilner", "Forester",
}
