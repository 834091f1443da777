package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/talgya/hearth/internal/engine"
	"github.com/talgya/hearth/internal/events"
	"github.com/talgya/hearth/internal/resources"
	"github.com/talgya/hearth/internal/world"
)

func sampleState() *engine.WorldState {
	return &engine.WorldState{
		Tick:   420,
		Season: engine.SeasonSummer,
		Seed:   9,
		Buildings: []engine.BuildingState{
			{ID: 1, TypeID: "stockpile", Origin: world.GridCoord{X: 10, Y: 10}, Level: 1, UpgradeLeft: 1.5},
			{ID: 2, TypeID: "woodcutter", Origin: world.GridCoord{X: 14, Y: 10}, Level: 1},
		},
		Nodes: []engine.NodeState{
			{ID: 1, Type: resources.NodeTree, Position: world.GridCoord{X: 3, Y: 4}, Remaining: 12, Original: 50},
			{ID: 2, Type: resources.NodeStone, Position: world.GridCoord{X: 8, Y: 1}, Remaining: 0, Original: 80, DepletedFor: 12},
		},
		Villagers: []engine.VillagerState{
			{ID: 1, Name: "Astrid Cooper", Position: world.WorldPos{X: 40.5, Y: 72}, Hunger: 0.8, Efficiency: 1.1,
				Carrying: map[string]float64{"wood": 5}},
			{ID: 2, Name: "Bram Mason", Position: world.WorldPos{X: 8, Y: 8}, Hunger: 0.4, Efficiency: 0.9},
		},
		Assignments: []engine.AssignmentState{{Agent: 1, Building: 2, Job: "lumberjack"}},
		Resources:   map[string]float64{"wood": 150, "stone": 20, "population": 2},
	}
}

func checkState(t *testing.T, got, want *engine.WorldState) {
	t.Helper()
	if got.Tick != want.Tick || got.Season != want.Season || got.Seed != want.Seed {
		t.Fatalf("meta = %d/%d/%d, want %d/%d/%d", got.Tick, got.Season, got.Seed, want.Tick, want.Season, want.Seed)
	}
	if len(got.Buildings) != len(want.Buildings) || got.Buildings[0] != want.Buildings[0] {
		t.Fatalf("buildings = %+v", got.Buildings)
	}
	if len(got.Nodes) != 2 || got.Nodes[1] != want.Nodes[1] {
		t.Fatalf("nodes = %+v", got.Nodes)
	}
	if len(got.Villagers) != 2 || got.Villagers[0].Carrying["wood"] != 5 || got.Villagers[0].Position != want.Villagers[0].Position {
		t.Fatalf("villagers = %+v", got.Villagers)
	}
	if len(got.Assignments) != 1 || got.Assignments[0] != want.Assignments[0] {
		t.Fatalf("assignments = %+v", got.Assignments)
	}
	if got.Resources["wood"] != 150 || got.Resources["population"] != 2 {
		t.Fatalf("resources = %v", got.Resources)
	}
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "hearth.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveLoadWorld(t *testing.T) {
	db := openTestDB(t)
	if db.HasWorldState() {
		t.Fatal("fresh database reports saved state")
	}
	want := sampleState()
	if err := db.SaveWorld(want); err != nil {
		t.Fatal(err)
	}
	if !db.HasWorldState() {
		t.Fatal("saved state not detected")
	}
	got, err := db.LoadWorld()
	if err != nil {
		t.Fatal(err)
	}
	checkState(t, got, want)
}

func TestSaveWorldReplaces(t *testing.T) {
	db := openTestDB(t)
	ws := sampleState()
	db.SaveWorld(ws)
	ws.Buildings = ws.Buildings[:1]
	ws.Tick = 500
	if err := db.SaveWorld(ws); err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadWorld()
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Buildings) != 1 || got.Tick != 500 {
		t.Fatalf("second save did not replace: %d buildings, tick %d", len(got.Buildings), got.Tick)
	}
}

func TestLoadWorldEmpty(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.LoadWorld(); err == nil {
		t.Fatal("expected an error without saved state")
	}
}

func TestEvents(t *testing.T) {
	db := openTestDB(t)
	evs := []events.Event{
		{Tick: 1, Kind: events.BuildingPlaced, BuildingID: 3, TypeID: "hut"},
		{Tick: 2, Kind: events.NodeHarvested, NodeID: 7, AgentID: 4, Resource: "wood", Amount: 5},
	}
	if err := db.SaveEvents(evs); err != nil {
		t.Fatal(err)
	}
	got, err := db.RecentEvents(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != evs[1] || got[1] != evs[0] {
		t.Fatalf("recent events = %+v", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := sampleState()
	h, path, err := WriteSnapshot(dir, want)
	if err != nil {
		t.Fatal(err)
	}
	if h.ID == "" || h.Tick != 420 || h.Villagers != 2 {
		t.Fatalf("header = %+v", h)
	}

	gh, got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if gh.ID != h.ID {
		t.Fatalf("header id %q, want %q", gh.ID, h.ID)
	}
	checkState(t, got, want)

	want.Tick = 900
	_, later, _ := WriteSnapshot(dir, want)
	latest, err := LatestSnapshot(dir)
	if err != nil {
		t.Fatal(err)
	}
	if latest != later {
		t.Fatalf("latest = %s, want %s", latest, later)
	}
}

func TestReadSnapshotRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad"+snapshotExt)
	os.WriteFile(path, []byte("not zstd"), 0o644)
	if _, _, err := ReadSnapshot(path); err == nil {
		t.Fatal("garbage accepted")
	}
	if _, err := LatestSnapshot(t.TempDir()); err == nil {
		t.Fatal("empty dir has a latest snapshot")
	}
}

func TestAutosaverKeepsEventsFromTheSameTick(t *testing.T) {
	db := openTestDB(t)
	sim, err := engine.NewSimulation(engine.Options{Seed: 1, Width: 20, Height: 20, PoolCapacity: 100})
	if err != nil {
		t.Fatal(err)
	}
	sim.Bus.Publish(events.Event{Kind: events.VillagerSpawned, AgentID: 9})
	saver := NewAutosaver(sim, db)

	sim.SetTick(5)
	sim.Bus.Publish(events.Event{Kind: events.NodeHarvested, NodeID: 1})
	saver.Save(5)
	sim.Bus.Publish(events.Event{Kind: events.NodeDepleted, NodeID: 1})
	saver.Save(5)
	saver.Save(6)

	got, err := db.RecentEvents(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Kind != events.NodeDepleted || got[1].Kind != events.NodeHarvested {
		t.Fatalf("saved events = %+v", got)
	}
}
