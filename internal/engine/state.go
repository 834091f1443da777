// Whole-village export and restore. Restore rebuilds through the same
// public operations gameplay uses, so every service's bookkeeping matches.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/hearth/internal/agents"
	"github.com/talgya/hearth/internal/buildings"
	"github.com/talgya/hearth/internal/resources"
	"github.com/talgya/hearth/internal/world"
)

// WorldState is everything needed to resume a village.
type WorldState struct {
	Tick        uint64             `json:"tick"`
	Season      uint8              `json:"season"`
	Seed        int64              `json:"seed"`
	Buildings   []BuildingState    `json:"buildings"`
	Nodes       []NodeState        `json:"nodes"`
	Villagers   []VillagerState    `json:"villagers"`
	Assignments []AssignmentState  `json:"assignments"`
	Resources   map[string]float64 `json:"resources"`
}

type BuildingState struct {
	ID          uint64          `json:"id"`
	TypeID      string          `json:"type_id"`
	Origin      world.GridCoord `json:"origin"`
	Level       int             `json:"level"`
	UpgradeLeft float64         `json:"upgrade_left,omitempty"` // game minutes of a paid upgrade
}

type NodeState struct {
	ID          uint64             `json:"id"`
	Type        resources.NodeType `json:"type"`
	Position    world.GridCoord    `json:"position"`
	Remaining   float64            `json:"remaining"`
	Original    float64            `json:"original"`
	DepletedFor float64            `json:"depleted_for,omitempty"`
}

type VillagerState struct {
	ID         uint64             `json:"id"`
	Name       string             `json:"name"`
	Position   world.WorldPos     `json:"position"`
	Hunger     float64            `json:"hunger"`
	Efficiency float64            `json:"efficiency"`
	Carrying   map[string]float64 `json:"carrying,omitempty"`
}

type AssignmentState struct {
	Agent    uint64 `json:"agent"`
	Building uint64 `json:"building"`
	Job      string `json:"job"`
}

// Export captures the current village. Villagers are read one at a time,
// so call it between ticks for a consistent picture.
func (s *Simulation) Export() *WorldState {
	ws := &WorldState{
		Tick:      s.CurrentTick(),
		Season:    s.Seasons.Current(),
		Seed:      s.opts.Seed,
		Resources: s.Pool.Snapshot(),
	}
	for _, b := range s.Buildings.All() {
		ws.Buildings = append(ws.Buildings, BuildingState{
			ID: uint64(b.ID), TypeID: b.TypeID, Origin: b.Origin, Level: b.Level,
			UpgradeLeft: b.UpgradeLeft,
		})
	}
	for _, n := range s.Nodes.All() {
		ws.Nodes = append(ws.Nodes, NodeState{
			ID: uint64(n.ID), Type: n.Type, Position: n.Position,
			Remaining: n.Remaining, Original: n.Original, DepletedFor: n.DepletedFor,
		})
	}
	for _, v := range s.Villagers.All() {
		ws.Villagers = append(ws.Villagers, VillagerState{
			ID: uint64(v.ID), Name: v.Name, Position: v.Position,
			Hunger: v.Hunger, Efficiency: v.Efficiency, Carrying: v.Carrying,
		})
	}
	for _, a := range s.Jobs.Assignments() {
		ws.Assignments = append(ws.Assignments, AssignmentState{
			Agent: a.Agent, Building: uint64(a.Building), Job: a.Job,
		})
	}
	return ws
}

// Restore rebuilds ws into an empty simulation. IDs are reissued; saved
// IDs are mapped to new ones for assignments. Entries that no longer fit
// (unknown type, blocked footprint) are skipped and logged.
func (s *Simulation) Restore(ws *WorldState) error {
	if len(s.Buildings.IDs()) > 0 || s.Villagers.Count() > 0 {
		return fmt.Errorf("restore into a non-empty village")
	}

	bmap := make(map[uint64]buildings.BuildingID, len(ws.Buildings))
	for _, b := range ws.Buildings {
		id, ok := s.Buildings.Replay(b.TypeID, b.Origin, b.Level)
		if !ok {
			slog.Warn("restore: building skipped", "id", b.ID, "type", b.TypeID)
			continue
		}
		bmap[b.ID] = id
		if b.UpgradeLeft > 0 && !s.Buildings.ResumeUpgrade(id, b.UpgradeLeft) {
			slog.Warn("restore: upgrade dropped", "id", b.ID, "type", b.TypeID, "level", b.Level)
		}
	}

	for _, n := range ws.Nodes {
		id, ok := s.Nodes.Place(n.Type, n.Position, n.Original)
		if !ok {
			slog.Warn("restore: node skipped", "id", n.ID, "type", n.Type.String())
			continue
		}
		if spent := n.Original - n.Remaining; spent > 0 {
			s.Nodes.Harvest(id, spent)
		}
		if n.DepletedFor > 0 {
			s.Nodes.Backdate(id, n.DepletedFor)
		}
	}

	amap := make(map[uint64]agents.AgentID, len(ws.Villagers))
	for _, v := range ws.Villagers {
		id, ok := s.Villagers.SpawnFrom(agents.Villager{
			Name:       v.Name,
			Position:   v.Position,
			Hunger:     v.Hunger,
			Efficiency: v.Efficiency,
			Carrying:   v.Carrying,
		})
		if !ok {
			slog.Warn("restore: villager skipped", "id", v.ID, "name", v.Name)
			continue
		}
		amap[v.ID] = id
	}

	for _, a := range ws.Assignments {
		agent, okA := amap[a.Agent]
		bld, okB := bmap[a.Building]
		if !okA || !okB || !s.Jobs.Assign(uint64(agent), bld, a.Job) {
			slog.Warn("restore: assignment skipped", "agent", a.Agent, "building", a.Building, "job", a.Job)
		}
	}

	for res, amt := range ws.Resources {
		s.Pool.Set(res, amt)
	}
	s.Seasons.Set(ws.Season)
	s.SetTick(ws.Tick)
	s.updateStats()

	slog.Info("village restored",
		"tick", ws.Tick,
		"buildings", len(bmap),
		"nodes", len(ws.Nodes),
		"villagers", len(amap),
		"season", SeasonName(ws.Season),
	)
	return nil
}
