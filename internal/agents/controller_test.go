package agents

import (
	"testing"

	"github.com/talgya/hearth/internal/buildings"
	"github.com/talgya/hearth/internal/catalog"
	"github.com/talgya/hearth/internal/economy"
	"github.com/talgya/hearth/internal/events"
	"github.com/talgya/hearth/internal/jobs"
	"github.com/talgya/hearth/internal/resources"
	"github.com/talgya/hearth/internal/world"
)

type village struct {
	grid  *world.Grid
	nodes *resources.Registry
	pool  *economy.Pool
	eco   *buildings.Economy
	sched *jobs.Scheduler
	ctrl  *Controller
}

type fixedMods map[string]float64

func (m fixedMods) Multiplier(cat string) float64 {
	if v, ok := m[cat]; ok {
		return v
	}
	return 1
}

func newVillage(t *testing.T, tune Tuning, mods Modifiers) *village {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	bus := events.NewBus()
	v := &village{
		grid:  world.NewGrid(30, 30, 0),
		nodes: resources.NewRegistry(bus),
		pool:  economy.NewPool(500, economy.Population),
	}
	v.pool.Add(economy.Wood, 200)
	v.eco = buildings.NewEconomy(v.grid, cat, v.pool, buildings.Options{Publisher: bus})
	v.sched = jobs.NewScheduler(v.eco, bus)
	bus.Listen(v.sched.HandleEvent)
	v.ctrl = NewController(Deps{
		Grid:      v.grid,
		Nodes:     v.nodes,
		Buildings: v.eco,
		Scheduler: v.sched,
		Pool:      v.pool,
		Modifiers: mods,
		Publisher: bus,
	}, tune, 1)
	v.sched.SetRoster(v.ctrl)
	return v
}

func (v *village) lumberjack(t *testing.T, at world.GridCoord) AgentID {
	t.Helper()
	wc, ok := v.eco.Place("woodcutter", world.GridCoord{X: 5, Y: 5})
	if !ok {
		t.Fatalf("woodcutter placement failed")
	}
	id, _ := v.ctrl.Spawn(at)
	if !v.sched.Assign(uint64(id), wc, jobs.Lumberjack) {
		t.Fatalf("assign failed")
	}
	return id
}

// runUntil steps the villager in 100ms increments until cond holds.
func (v *village) runUntil(t *testing.T, id AgentID, limit int, cond func(Villager) bool) Villager {
	t.Helper()
	for i := 0; i < limit; i++ {
		v.ctrl.Step(id, 0.1)
		snap, _ := v.ctrl.Get(id)
		if cond(snap) {
			return snap
		}
	}
	snap, _ := v.ctrl.Get(id)
	t.Fatalf("condition not reached after %d steps: %+v", limit, snap)
	return snap
}

func TestLumberjackHarvestScenario(t *testing.T) {
	v := newVillage(t, DefaultTuning(), nil)
	tree, _ := v.nodes.Place(resources.NodeTree, world.GridCoord{X: 8, Y: 5}, 10)
	id := v.lumberjack(t, world.GridCoord{X: 7, Y: 7})

	snap := v.runUntil(t, id, 500, func(s Villager) bool { return s.Carrying[economy.Wood] > 0 })

	n, _ := v.nodes.Get(tree)
	carried := snap.Carrying[economy.Wood]
	if carried != 5 {
		t.Fatalf("carried %v wood after one swing, want 5", carried)
	}
	if n.Remaining != 10-carried {
		t.Fatalf("node remaining %v, carried %v", n.Remaining, carried)
	}
	if v.nodes.HolderOf(tree) != uint64(id) {
		t.Fatalf("reservation not held during harvest")
	}

	// The second swing empties the node and lets go of it.
	v.runUntil(t, id, 500, func(s Villager) bool { return s.Carrying[economy.Wood] == 10 })
	n, _ = v.nodes.Get(tree)
	if !n.Depleted || n.Remaining != 0 {
		t.Fatalf("node after two swings: %+v", n)
	}
	v.ctrl.Step(id, 0.1)
	if v.nodes.HolderOf(tree) != 0 {
		t.Fatalf("depleted node still reserved")
	}
}

func TestHarvestClampedByCarryCapacity(t *testing.T) {
	tune := DefaultTuning()
	tune.CarryCapacity = 3
	v := newVillage(t, tune, nil)
	tree, _ := v.nodes.Place(resources.NodeTree, world.GridCoord{X: 8, Y: 5}, 10)
	id := v.lumberjack(t, world.GridCoord{X: 8, Y: 6})

	snap := v.runUntil(t, id, 500, func(s Villager) bool { return s.Carrying[economy.Wood] > 0 })
	if snap.Carrying[economy.Wood] != 3 {
		t.Fatalf("carried %v, want capacity 3", snap.Carrying[economy.Wood])
	}
	n, _ := v.nodes.Get(tree)
	if n.Remaining != 7 {
		t.Fatalf("excess was taken from the node: remaining %v", n.Remaining)
	}
	if v.nodes.HolderOf(tree) != 0 {
		t.Fatalf("full villager kept its reservation")
	}
}

func TestFullCycleDepositsAtStorage(t *testing.T) {
	v := newVillage(t, DefaultTuning(), nil)
	v.eco.Place("stockpile", world.GridCoord{X: 10, Y: 10})
	v.nodes.Place(resources.NodeTree, world.GridCoord{X: 14, Y: 10}, 50)
	id := v.lumberjack(t, world.GridCoord{X: 7, Y: 7})
	before := v.pool.Get(economy.Wood)

	v.runUntil(t, id, 5000, func(Villager) bool { return v.pool.Get(economy.Wood) > before })
}

func TestReservedNodeIsSkipped(t *testing.T) {
	v := newVillage(t, DefaultTuning(), nil)
	near, _ := v.nodes.Place(resources.NodeTree, world.GridCoord{X: 8, Y: 8}, 10)
	far, _ := v.nodes.Place(resources.NodeTree, world.GridCoord{X: 12, Y: 12}, 10)
	v.nodes.Reserve(near, 999)
	id := v.lumberjack(t, world.GridCoord{X: 8, Y: 9})

	v.ctrl.Step(id, 0.1)
	if v.nodes.HolderOf(far) != uint64(id) {
		t.Fatalf("villager did not reserve the free node")
	}
	if v.nodes.HolderOf(near) != 999 {
		t.Fatalf("foreign reservation disturbed")
	}
}

func TestAcquireGivesUpAfterRetries(t *testing.T) {
	v := newVillage(t, DefaultTuning(), nil)
	tree, _ := v.nodes.Place(resources.NodeTree, world.GridCoord{X: 8, Y: 8}, 10)
	v.nodes.Reserve(tree, 999)
	id := v.lumberjack(t, world.GridCoord{X: 8, Y: 9})

	for i := 0; i < MaxReserveRetries; i++ {
		v.ctrl.Step(id, 0.1)
	}
	if len(v.sched.Pending(uint64(id))) != 0 {
		t.Fatalf("cycle not abandoned after %d failed acquisitions", MaxReserveRetries)
	}
	if _, ok := v.sched.Assignment(uint64(id)); !ok {
		t.Fatalf("abandoning a target dropped the job")
	}
	// Once the node frees up the regenerated cycle proceeds.
	v.nodes.Release(tree, 0)
	v.ctrl.Step(id, 0.1)
	if v.nodes.HolderOf(tree) != uint64(id) {
		t.Fatalf("villager did not pick the node up after it freed")
	}
}

func TestRemoveReleasesReservationAndJob(t *testing.T) {
	v := newVillage(t, DefaultTuning(), nil)
	tree, _ := v.nodes.Place(resources.NodeTree, world.GridCoord{X: 12, Y: 12}, 10)
	other, _ := v.nodes.Place(resources.NodeTree, world.GridCoord{X: 20, Y: 20}, 10)
	id := v.lumberjack(t, world.GridCoord{X: 11, Y: 12})
	v.ctrl.Step(id, 0.1)
	if v.nodes.HolderOf(tree) != uint64(id) {
		t.Fatalf("setup: node not reserved")
	}

	if !v.ctrl.Remove(id) {
		t.Fatalf("remove failed")
	}
	if v.nodes.HolderOf(tree) != 0 {
		t.Fatalf("reservation survived removal")
	}
	if _, ok := v.sched.Assignment(uint64(id)); ok {
		t.Fatalf("job survived removal")
	}
	if !v.nodes.Reserve(other, 42) {
		t.Fatalf("another agent could not reserve a different node")
	}
	if v.ctrl.Remove(id) {
		t.Fatalf("second removal succeeded")
	}
}

func TestUnassignDropsReservation(t *testing.T) {
	v := newVillage(t, DefaultTuning(), nil)
	tree, _ := v.nodes.Place(resources.NodeTree, world.GridCoord{X: 20, Y: 20}, 10)
	id := v.lumberjack(t, world.GridCoord{X: 8, Y: 8})
	v.ctrl.Step(id, 0.1)

	v.sched.Unassign(uint64(id))
	if v.nodes.HolderOf(tree) != 0 {
		t.Fatalf("unassignment left the node reserved")
	}
	v.ctrl.Step(id, 0.1)
	snap, _ := v.ctrl.Get(id)
	if snap.State != StateIdle || snap.Job != "" {
		t.Fatalf("villager after unassign: %+v", snap)
	}
}

func TestHungryVillagerEats(t *testing.T) {
	v := newVillage(t, DefaultTuning(), nil)
	id, _ := v.ctrl.SpawnFrom(Villager{Position: world.GridCoord{X: 3, Y: 3}.Center(), Hunger: 0.1})
	v.pool.Add(economy.Berries, 2)
	v.pool.Add(economy.Bread, 1)

	v.ctrl.Step(id, 0.1)
	if v.pool.Get(economy.Bread) != 0 || v.pool.Get(economy.Berries) != 2 {
		t.Fatalf("did not eat the preferred food first")
	}
	snap, _ := v.ctrl.Get(id)
	if snap.Hunger < HungerThreshold {
		t.Fatalf("hunger %v after eating", snap.Hunger)
	}
}

func TestNoFoodDoesNotBlockWork(t *testing.T) {
	v := newVillage(t, DefaultTuning(), nil)
	tree, _ := v.nodes.Place(resources.NodeTree, world.GridCoord{X: 20, Y: 20}, 10)
	wc, _ := v.eco.Place("woodcutter", world.GridCoord{X: 5, Y: 5})
	id, _ := v.ctrl.SpawnFrom(Villager{Position: world.GridCoord{X: 8, Y: 8}.Center(), Hunger: 0.05})
	v.sched.Assign(uint64(id), wc, jobs.Lumberjack)

	v.ctrl.Step(id, 0.1) // eat attempt fails, cooldown starts
	v.ctrl.Step(id, 0.1) // work resumes
	if v.nodes.HolderOf(tree) != uint64(id) {
		t.Fatalf("failed meal stalled the work cycle")
	}
}

func TestStuckVillagerFallsBackToDirectMovement(t *testing.T) {
	v := newVillage(t, DefaultTuning(), fixedMods{buildings.CategoryMovement: 0})
	v.nodes.Place(resources.NodeTree, world.GridCoord{X: 20, Y: 20}, 10)
	id := v.lumberjack(t, world.GridCoord{X: 8, Y: 8})

	v.ctrl.Step(id, 0.1)
	snap, _ := v.ctrl.Get(id)
	if len(snap.Path) < 2 {
		t.Fatalf("expected a multi-waypoint path, got %d", len(snap.Path))
	}
	for i := 0; i < 35; i++ {
		v.ctrl.Step(id, 0.1)
	}
	snap, _ = v.ctrl.Get(id)
	goal := world.GridCoord{X: 20, Y: 20}.Center()
	if len(snap.Path) != 1 || snap.Path[0] != goal {
		t.Fatalf("stuck villager path = %v, want direct to %v", snap.Path, goal)
	}
}

func TestWorkplaceJobConsumesInput(t *testing.T) {
	v := newVillage(t, DefaultTuning(), nil)
	v.pool.Add(economy.Stone, 100)
	v.eco.Place("wheat_farm", world.GridCoord{X: 2, Y: 2})
	mill, ok := v.eco.Place("mill", world.GridCoord{X: 10, Y: 10})
	if !ok {
		t.Fatalf("mill placement failed")
	}
	v.pool.Add(economy.Wheat, 1)
	id, _ := v.ctrl.Spawn(world.GridCoord{X: 9, Y: 9})
	v.sched.Assign(uint64(id), mill, jobs.Miller)

	snap := v.runUntil(t, id, 500, func(s Villager) bool { return s.Carrying[economy.Flour] > 0 })
	if snap.Carrying[economy.Flour] != 1 {
		t.Fatalf("miller carries %v flour from 1 wheat", snap.Carrying[economy.Flour])
	}
	if v.pool.Get(economy.Wheat) != 0 {
		t.Fatalf("wheat not drawn from the pool")
	}
}

func TestReassignSameJobRedirectsWalk(t *testing.T) {
	v := newVillage(t, DefaultTuning(), nil)
	near, _ := v.eco.Place("wheat_farm", world.GridCoord{X: 2, Y: 2})
	far, ok := v.eco.Place("wheat_farm", world.GridCoord{X: 20, Y: 20})
	if !ok {
		t.Fatalf("second farm placement failed")
	}
	id, _ := v.ctrl.Spawn(world.GridCoord{X: 12, Y: 12})
	if !v.sched.Assign(uint64(id), near, jobs.Farmer) {
		t.Fatalf("assign to first farm failed")
	}
	for i := 0; i < 20; i++ {
		v.ctrl.Step(id, 0.1)
	}
	snap, _ := v.ctrl.Get(id)
	if snap.State != StateWalking {
		t.Fatalf("setup: villager not walking to the first farm: %+v", snap)
	}

	if !v.sched.Assign(uint64(id), far, jobs.Farmer) {
		t.Fatalf("reassign to second farm failed")
	}
	snap = v.runUntil(t, id, 5000, func(s Villager) bool { return s.Carrying[economy.Wheat] > 0 })
	if tile := snap.Tile(); tile.X < 19 || tile.Y < 19 {
		t.Fatalf("harvested at %v, want beside the second farm", tile)
	}
}

func TestSentVillagerWalksToTarget(t *testing.T) {
	v := newVillage(t, DefaultTuning(), nil)
	v.eco.Place("stockpile", world.GridCoord{X: 18, Y: 4})
	id, _ := v.ctrl.Spawn(world.GridCoord{X: 4, Y: 4})

	if !v.sched.Send(uint64(id), jobs.BuildingTarget{TypeID: "stockpile"}) {
		t.Fatalf("send failed")
	}
	snap := v.runUntil(t, id, 1000, func(s Villager) bool { return len(v.sched.Pending(uint64(id))) == 0 && s.Tile().X >= 17 })
	if snap.Job != "" || snap.State != StateIdle {
		t.Fatalf("villager after errand: %+v", snap)
	}

	dest := world.GridCoord{X: 6, Y: 20}
	v.sched.Send(uint64(id), jobs.PositionTarget{Coord: dest})
	snap = v.runUntil(t, id, 1000, func(s Villager) bool { return len(v.sched.Pending(uint64(id))) == 0 })
	if snap.Tile() != dest {
		t.Fatalf("sent to %v, stopped at %v", dest, snap.Tile())
	}
}
