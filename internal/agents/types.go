// Package agents provides the villager data model, needs and the
// per-villager task state machine that executes work cycles.
package agents

import (
	"sync"

	"github.com/talgya/hearth/internal/buildings"
	"github.com/talgya/hearth/internal/resources"
	"github.com/talgya/hearth/internal/world"
)

// AgentID is a unique identifier for a villager.
type AgentID uint64

// State is the villager's current activity.
type State uint8

const (
	StateIdle State = iota
	StateWalking
	StateWorking
	StateCarrying
	StateDepositing
)

var stateNames = [...]string{"idle", "walking", "working", "carrying", "depositing"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Villager is a snapshot of one villager.
type Villager struct {
	ID        AgentID              `json:"id"`
	Name      string               `json:"name"`
	Job       string               `json:"job,omitempty"`
	Workplace buildings.BuildingID `json:"workplace,omitempty"`

	Position world.WorldPos     `json:"position"`
	Carrying map[string]float64 `json:"carrying,omitempty"`
	Path     []world.WorldPos   `json:"path,omitempty"`
	Task     string             `json:"task,omitempty"`
	State    State              `json:"-"`
	StateStr string             `json:"state"`

	// Hunger is satiety from 1 (fed) down to 0 (starving).
	Hunger     float64 `json:"hunger"`
	Efficiency float64 `json:"efficiency"` // Work speed multiplier
}

// Tile returns the grid tile the villager stands on.
func (v *Villager) Tile() world.GridCoord {
	return world.ToGrid(v.Position)
}

// Carried returns the total amount carried.
func (v *Villager) Carried() float64 {
	total := 0.0
	for _, amt := range v.Carrying {
		total += amt
	}
	return total
}

// villager is the controller's mutable record. mu is held for a whole
// step; jobMu guards only the job fields so the scheduler can announce job
// changes and interruptions while a step is calling into it.
type villager struct {
	mu sync.Mutex
	Villager

	jobMu       sync.Mutex
	job         string
	interrupted bool

	// Movement toward the current destination.
	dest       world.GridCoord
	hasDest    bool
	stuckClock float64
	stuckFrom  world.WorldPos

	// Node held for the current harvest.
	node resources.NodeID

	harvestClock   float64 // time into the current swing
	harvestElapsed float64 // continuous harvesting time
	retries        int

	eatCooldown float64
}

// setJob records an assignment change. The flag is raised even when the
// job name is unchanged: a move between two workplaces of the same type
// still invalidates the task in flight.
func (v *villager) setJob(job string) {
	v.jobMu.Lock()
	v.job = job
	v.interrupted = true
	v.jobMu.Unlock()
}

func (v *villager) interrupt() {
	v.jobMu.Lock()
	v.interrupted = true
	v.jobMu.Unlock()
}

// takeJob returns the current job and whether the task in flight was
// interrupted since last asked.
func (v *villager) takeJob() (string, bool) {
	v.jobMu.Lock()
	defer v.jobMu.Unlock()
	interrupted := v.interrupted
	v.interrupted = false
	return v.job, interrupted
}

func (v *villager) snapshot() Villager {
	out := v.Villager
	out.Carrying = make(map[string]float64, len(v.Carrying))
	for res, amt := range v.Carrying {
		out.Carrying[res] = amt
	}
	out.Path = append([]world.WorldPos(nil), v.Path...)
	out.StateStr = v.State.String()
	v.jobMu.Lock()
	out.Job = v.job
	v.jobMu.Unlock()
	return out
}

// resetTask clears per-task progress. The caller releases any node first.
func (v *villager) resetTask() {
	v.hasDest = false
	v.Path = nil
	v.stuckClock = 0
	v.harvestClock = 0
	v.harvestElapsed = 0
	v.retries = 0
	v.Task = ""
}
