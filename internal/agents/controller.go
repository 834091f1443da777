package agents

import (
	"sort"
	"sync"

	"github.com/talgya/hearth/internal/buildings"
	"github.com/talgya/hearth/internal/events"
	"github.com/talgya/hearth/internal/jobs"
	"github.com/talgya/hearth/internal/resources"
	"github.com/talgya/hearth/internal/world"
)

// Movement and retry constants.
const (
	ArrivalThreshold  = 4.0 // World units from the destination centre
	DirectMoveTiles   = 2   // Closer than this, skip pathfinding
	StuckWindow       = 3.0 // Seconds of walking to measure progress over
	StuckDistance     = 1.0 // Less displacement than this over the window is stuck
	MaxReserveRetries = 3   // Failed node acquisitions before abandoning the cycle
)

// Tuning holds per-village villager parameters.
type Tuning struct {
	Speed           float64 // World units per second
	CarryCapacity   float64
	HarvestDuration float64 // Seconds per work swing at efficiency 1
	MaxHarvestTime  float64 // Seconds a villager may hold a node
	HungerDecay     float64 // Satiety lost per second
}

// DefaultTuning returns the standard villager parameters.
func DefaultTuning() Tuning {
	return Tuning{
		Speed:           32,
		CarryCapacity:   10,
		HarvestDuration: 2,
		MaxHarvestTime:  20,
		HungerDecay:     0.002,
	}
}

// Nodes is the resource node registry as seen by villagers.
type Nodes interface {
	Get(id resources.NodeID) (resources.Node, bool)
	Exists(id resources.NodeID) bool
	NearestAvailable(pos world.GridCoord, t resources.NodeType, maxDistance float64, excludeReserved bool) (resources.NodeID, bool)
	NearestAvailableExcept(pos world.GridCoord, t resources.NodeType, maxDistance float64, excludeReserved bool, except resources.NodeID) (resources.NodeID, bool)
	Reserve(id resources.NodeID, agent uint64) bool
	Release(id resources.NodeID, agent uint64) bool
	ReleaseAll(agent uint64) int
	HolderOf(id resources.NodeID) uint64
	Harvest(id resources.NodeID, amount float64) float64
}

// Buildings is the building economy as seen by villagers.
type Buildings interface {
	Exists(id buildings.BuildingID) bool
	Entrance(id buildings.BuildingID, from world.GridCoord) (world.GridCoord, bool)
	NearestStorage(from world.GridCoord) (buildings.BuildingID, bool)
	NearestOfType(typeID string, from world.GridCoord) (buildings.BuildingID, bool)
	StorageNear(c world.GridCoord) (buildings.BuildingID, bool)
}

// Scheduler serves work cycles.
type Scheduler interface {
	NextTask(agent uint64) (jobs.Task, bool)
	CompleteTask(agent uint64)
	AbandonCycle(agent uint64)
	Unassign(agent uint64) bool
	Assignment(agent uint64) (jobs.Assignment, bool)
}

// Pool is the shared resource store.
type Pool interface {
	Deposit(resource string, amount float64) float64
	Consume(resource string, amount float64, allowNegative bool) bool
	Take(resource string, amount float64) float64
}

// Modifiers supplies movement and work-efficiency multipliers.
type Modifiers interface {
	Multiplier(category string) float64
}

type noModifiers struct{}

func (noModifiers) Multiplier(string) float64 { return 1 }

// Controller owns every villager and advances them through their work
// cycles. Different villagers may be stepped concurrently.
type Controller struct {
	mu        sync.RWMutex
	villagers map[AgentID]*villager
	spawner   *Spawner

	grid  *world.Grid
	nodes Nodes
	blds  Buildings
	sched Scheduler
	pool  Pool
	mods  Modifiers
	tune  Tuning
	pub   events.Publisher
}

// Deps are the services a controller drives villagers through.
type Deps struct {
	Grid      *world.Grid
	Nodes     Nodes
	Buildings Buildings
	Scheduler Scheduler
	Pool      Pool
	Modifiers Modifiers
	Publisher events.Publisher
}

// NewController creates an empty controller.
func NewController(d Deps, tune Tuning, seed int64) *Controller {
	c := &Controller{
		villagers: make(map[AgentID]*villager),
		spawner:   NewSpawner(seed),
		grid:      d.Grid,
		nodes:     d.Nodes,
		blds:      d.Buildings,
		sched:     d.Scheduler,
		pool:      d.Pool,
		mods:      d.Modifiers,
		tune:      tune,
		pub:       d.Publisher,
	}
	if c.mods == nil {
		c.mods = noModifiers{}
	}
	if c.pub == nil {
		c.pub = events.Discard
	}
	return c
}

// Spawn creates a villager at tile.
func (c *Controller) Spawn(tile world.GridCoord) (AgentID, bool) {
	if !c.grid.InBounds(tile) {
		return 0, false
	}
	c.mu.Lock()
	v := c.spawner.Spawn(tile)
	c.villagers[v.ID] = &villager{Villager: v}
	c.mu.Unlock()

	c.pub.Publish(events.Event{Kind: events.VillagerSpawned, AgentID: uint64(v.ID)})
	return v.ID, true
}

// SpawnFrom creates a villager carrying over the name, position, needs,
// efficiency and load of tmpl. The ID is newly issued. Used when restoring
// a saved village.
func (c *Controller) SpawnFrom(tmpl Villager) (AgentID, bool) {
	tile := world.ToGrid(tmpl.Position)
	if !c.grid.InBounds(tile) {
		return 0, false
	}
	c.mu.Lock()
	v := c.spawner.Spawn(tile)
	v.Position = tmpl.Position
	if tmpl.Name != "" {
		v.Name = tmpl.Name
	}
	if tmpl.Efficiency > 0 {
		v.Efficiency = tmpl.Efficiency
	}
	v.Hunger = tmpl.Hunger
	for res, amt := range tmpl.Carrying {
		if amt > 0 {
			v.Carrying[res] = amt
		}
	}
	c.villagers[v.ID] = &villager{Villager: v}
	c.mu.Unlock()

	c.pub.Publish(events.Event{Kind: events.VillagerSpawned, AgentID: uint64(v.ID)})
	return v.ID, true
}

// Remove deletes a villager, first releasing its node reservations and
// its job.
func (c *Controller) Remove(id AgentID) bool {
	if !c.Exists(uint64(id)) {
		return false
	}
	c.nodes.ReleaseAll(uint64(id))
	c.sched.Unassign(uint64(id))
	c.sched.AbandonCycle(uint64(id)) // errands of a villager without a job

	c.mu.Lock()
	_, ok := c.villagers[id]
	delete(c.villagers, id)
	c.mu.Unlock()
	if ok {
		c.pub.Publish(events.Event{Kind: events.VillagerRemoved, AgentID: uint64(id)})
	}
	return ok
}

func (c *Controller) lookup(id AgentID) *villager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.villagers[id]
}

// Exists reports whether the villager is alive.
func (c *Controller) Exists(agent uint64) bool {
	return c.lookup(AgentID(agent)) != nil
}

// SetJob records an assignment announced by the scheduler, including a
// move to another workplace with the same job. Any node the villager holds
// is released now; its in-flight task is dropped on its next step.
func (c *Controller) SetJob(agent uint64, job string) {
	v := c.lookup(AgentID(agent))
	if v == nil {
		return
	}
	v.setJob(job)
	c.nodes.ReleaseAll(agent)
}

// Interrupt drops the villager's task in flight on its next step, as when
// the scheduler puts an errand ahead of it.
func (c *Controller) Interrupt(agent uint64) {
	v := c.lookup(AgentID(agent))
	if v == nil {
		return
	}
	v.interrupt()
	c.nodes.ReleaseAll(agent)
}

// WorkEfficiency returns the villager's work multiplier, or 0 if unknown.
func (c *Controller) WorkEfficiency(agent uint64) float64 {
	v := c.lookup(AgentID(agent))
	if v == nil {
		return 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.Efficiency
}

// Get returns a snapshot of one villager.
func (c *Controller) Get(id AgentID) (Villager, bool) {
	v := c.lookup(id)
	if v == nil {
		return Villager{}, false
	}
	v.mu.Lock()
	out := v.snapshot()
	v.mu.Unlock()
	if a, ok := c.sched.Assignment(uint64(id)); ok {
		out.Workplace = a.Building
	}
	return out, true
}

// IDs returns every villager ID in ascending order.
func (c *Controller) IDs() []AgentID {
	c.mu.RLock()
	ids := make([]AgentID, 0, len(c.villagers))
	for id := range c.villagers {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// All returns snapshots of every villager in ID order.
func (c *Controller) All() []Villager {
	ids := c.IDs()
	out := make([]Villager, 0, len(ids))
	for _, id := range ids {
		if v, ok := c.Get(id); ok {
			out = append(out, v)
		}
	}
	return out
}

// Count returns how many villagers are alive.
func (c *Controller) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.villagers)
}

// StepAll advances every villager by dt seconds, one after another.
func (c *Controller) StepAll(dt float64) {
	for _, id := range c.IDs() {
		c.Step(id, dt)
	}
}
