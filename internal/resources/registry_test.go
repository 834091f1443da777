package resources

import (
	"sync"
	"testing"

	"github.com/talgya/hearth/internal/events"
	"github.com/talgya/hearth/internal/world"
)

func TestPlaceRejectsOccupiedTile(t *testing.T) {
	r := NewRegistry(nil)
	id, ok := r.Place(NodeTree, world.GridCoord{X: 3, Y: 3}, 0)
	if !ok || id == 0 {
		t.Fatalf("first place failed")
	}
	if _, ok := r.Place(NodeStone, world.GridCoord{X: 3, Y: 3}, 10); ok {
		t.Fatalf("second node on the same tile must fail")
	}
	n, _ := r.Get(id)
	if n.Remaining != defaultAmounts[NodeTree] || n.Resource != ResourceWood {
		t.Fatalf("defaults not applied: %+v", n)
	}
}

func TestHarvestClampsAndDepletes(t *testing.T) {
	r := NewRegistry(nil)
	id, _ := r.Place(NodeTree, world.GridCoord{X: 1, Y: 1}, 10)

	if got := r.Harvest(id, 4); got != 4 {
		t.Fatalf("harvest = %v, want 4", got)
	}
	if got := r.Harvest(id, 100); got != 6 {
		t.Fatalf("harvest = %v, want clamp to 6", got)
	}
	n, _ := r.Get(id)
	if !n.Depleted || n.Remaining != 0 {
		t.Fatalf("node should be depleted at zero: %+v", n)
	}
	if got := r.Harvest(id, 1); got != 0 {
		t.Fatalf("depleted node yielded %v", got)
	}
	if got := r.Harvest(999, 1); got != 0 {
		t.Fatalf("unknown node yielded %v", got)
	}
}

func TestRemainingMonotonicUntilReset(t *testing.T) {
	r := NewRegistry(nil)
	id, _ := r.Place(NodeStone, world.GridCoord{X: 0, Y: 0}, 20)
	prev := 20.0
	for _, amt := range []float64{3, 0, 5, 7, 9, 2} {
		r.Harvest(id, amt)
		n, _ := r.Get(id)
		if n.Remaining > prev {
			t.Fatalf("remaining rose from %v to %v", prev, n.Remaining)
		}
		if n.Depleted != (n.Remaining == 0) {
			t.Fatalf("depleted flag out of sync: %+v", n)
		}
		prev = n.Remaining
	}
	r.Reserve(id, 7)
	r.Reset(id)
	n, _ := r.Get(id)
	if n.Remaining != 20 || n.Depleted || n.ReservedBy != 0 {
		t.Fatalf("reset did not restore node: %+v", n)
	}
}

func TestReserveIsExclusive(t *testing.T) {
	r := NewRegistry(nil)
	id, _ := r.Place(NodeTree, world.GridCoord{X: 2, Y: 2}, 0)

	if !r.Reserve(id, 1) {
		t.Fatalf("A failed to reserve a free node")
	}
	if r.Reserve(id, 2) {
		t.Fatalf("B reserved a node held by A")
	}
	if r.HolderOf(id) != 1 {
		t.Fatalf("holder = %d, want 1", r.HolderOf(id))
	}
	if !r.Reserve(id, 1) {
		t.Fatalf("re-reserve by the holder must succeed")
	}
	if r.Release(id, 2) {
		t.Fatalf("non-holder release must not clear")
	}
	if !r.Release(id, 1) || r.HolderOf(id) != 0 {
		t.Fatalf("holder release failed")
	}
	r.Reserve(id, 2)
	if !r.Release(id, 0) {
		t.Fatalf("unfiltered release failed")
	}
}

func TestReserveConcurrentSingleWinner(t *testing.T) {
	r := NewRegistry(nil)
	id, _ := r.Place(NodeTree, world.GridCoord{X: 2, Y: 2}, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for agent := uint64(1); agent <= 64; agent++ {
		wg.Add(1)
		go func(a uint64) {
			defer wg.Done()
			if r.Reserve(id, a) {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(agent)
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}

func TestRemoveReservedNodeThenReserveAnother(t *testing.T) {
	r := NewRegistry(nil)
	a, _ := r.Place(NodeTree, world.GridCoord{X: 1, Y: 1}, 0)
	b, _ := r.Place(NodeTree, world.GridCoord{X: 5, Y: 5}, 0)

	r.Reserve(a, 10)
	if !r.Remove(a) {
		t.Fatalf("remove failed")
	}
	if r.HolderOf(a) != 0 || r.Exists(a) {
		t.Fatalf("removed node still tracked")
	}
	if !r.Reserve(b, 20) {
		t.Fatalf("Y could not reserve another node")
	}
	// The tile is free again.
	if _, ok := r.Place(NodeStone, world.GridCoord{X: 1, Y: 1}, 0); !ok {
		t.Fatalf("tile not freed by removal")
	}
}

func TestNearestAvailable(t *testing.T) {
	r := NewRegistry(nil)
	far, _ := r.Place(NodeTree, world.GridCoord{X: 10, Y: 0}, 0)
	tieA, _ := r.Place(NodeTree, world.GridCoord{X: 3, Y: 0}, 0)
	tieB, _ := r.Place(NodeTree, world.GridCoord{X: 0, Y: 3}, 0)
	r.Place(NodeStone, world.GridCoord{X: 1, Y: 0}, 0)

	origin := world.GridCoord{}
	if id, _ := r.NearestAvailable(origin, NodeTree, 0, true); id != tieA {
		t.Fatalf("tie should go to scan order: got %d want %d", id, tieA)
	}
	r.Reserve(tieA, 1)
	if id, _ := r.NearestAvailable(origin, NodeTree, 0, true); id != tieB {
		t.Fatalf("reserved node not skipped: got %d", id)
	}
	if id, _ := r.NearestAvailable(origin, NodeTree, 0, false); id != tieA {
		t.Fatalf("reserved node should count when not excluded: got %d", id)
	}
	r.Harvest(tieB, 1000)
	if id, _ := r.NearestAvailable(origin, NodeTree, 0, true); id != far {
		t.Fatalf("depleted node not skipped: got %d", id)
	}
	if _, ok := r.NearestAvailable(origin, NodeTree, 5, true); ok {
		t.Fatalf("max distance not honoured")
	}
	if id, _ := r.NearestAvailableExcept(origin, NodeTree, 0, false, tieA); id != far {
		t.Fatalf("except not honoured: got %d", id)
	}
}

func TestHarvestPublishesDepletedOnce(t *testing.T) {
	bus := events.NewBus()
	var depleted int
	bus.Listen(func(e events.Event) {
		if e.Kind == events.NodeDepleted {
			depleted++
		}
	})
	r := NewRegistry(bus)
	id, _ := r.Place(NodeBerryBush, world.GridCoord{}, 2)
	r.Harvest(id, 5)
	r.Harvest(id, 5)
	if depleted != 1 {
		t.Fatalf("depleted events = %d, want 1", depleted)
	}
}

func TestBackdateKeepsRegrowthProgress(t *testing.T) {
	r := NewRegistry(nil)
	full, _ := r.Place(NodeBerryBush, world.GridCoord{}, 2)
	if r.Backdate(full, 10) {
		t.Fatalf("backdated a node that is not depleted")
	}
	id, _ := r.Place(NodeBerryBush, world.GridCoord{X: 1}, 2)
	r.Harvest(id, 2)
	r.Advance(10)
	if n, _ := r.Get(id); n.DepletedFor != 10 {
		t.Fatalf("depleted for %v, want 10", n.DepletedFor)
	}

	delay := RespawnDuration(NodeBerryBush).Minutes()
	if !r.Backdate(id, delay-1) {
		t.Fatalf("backdate failed")
	}
	if n := r.RespawnRegrown(); n != 0 {
		t.Fatalf("regrew a second early")
	}
	r.Advance(1)
	if n := r.RespawnRegrown(); n != 1 {
		t.Fatalf("regrown = %d, want 1", n)
	}
	if n, _ := r.Get(id); n.Depleted || n.DepletedFor != 0 {
		t.Fatalf("node after regrowth: %+v", n)
	}
}

func TestRespawnRegrownByType(t *testing.T) {
	r := NewRegistry(nil)
	bush, _ := r.Place(NodeBerryBush, world.GridCoord{}, 2)
	tree, _ := r.Place(NodeTree, world.GridCoord{X: 1}, 2)
	r.Harvest(bush, 2)
	r.Harvest(tree, 2)
	r.Advance(RespawnDuration(NodeBerryBush).Minutes())
	if n := r.RespawnRegrown(); n != 1 {
		t.Fatalf("regrown = %d, want only the bush", n)
	}
	if n, _ := r.Get(tree); !n.Depleted {
		t.Fatalf("tree regrew before its delay")
	}
}

func TestScatterDeterministic(t *testing.T) {
	cfg := world.DefaultGenConfig()
	cfg.Width, cfg.Height, cfg.Seed = 40, 40, 3
	tm := world.Generate(cfg)

	a := NewRegistry(nil)
	b := NewRegistry(nil)
	ca := Scatter(a, tm, 3)
	cb := Scatter(b, tm, 3)
	if ca != cb {
		t.Fatalf("scatter counts differ: %v vs %v", ca, cb)
	}
	total, _ := a.Count()
	if total == 0 {
		t.Fatalf("expected some nodes")
	}
}
