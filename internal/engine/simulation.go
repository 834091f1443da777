// Simulation ties together all village services and runs them each tick.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/hearth/internal/agents"
	"github.com/talgya/hearth/internal/buildings"
	"github.com/talgya/hearth/internal/catalog"
	"github.com/talgya/hearth/internal/economy"
	"github.com/talgya/hearth/internal/events"
	"github.com/talgya/hearth/internal/jobs"
	"github.com/talgya/hearth/internal/resources"
	"github.com/talgya/hearth/internal/world"
)

// Options configure a new simulation.
type Options struct {
	Seed          int64
	Width, Height int
	PathCacheSize int
	PoolCapacity  float64

	Catalog  *catalog.Catalog // nil = built-in catalog
	Unlocked []string         // empty = everything unlocked
	Tuning   agents.Tuning

	TickSeconds float64 // villager time per tick
	Parallel    bool    // step villagers concurrently
	Workers     int     // concurrency limit when Parallel
	AutoAssign  bool    // give idle villagers open jobs

	Bus *events.Bus // nil = a new bus
}

// Simulation holds the complete village state and wires services together.
type Simulation struct {
	Grid       *world.Grid
	Nodes      *resources.Registry
	Pool       *economy.Pool
	Catalog    *catalog.Catalog
	Buildings  *buildings.Economy
	Jobs       *jobs.Scheduler
	Villagers  *agents.Controller
	Bus        *events.Bus
	Seasons    *Seasons
	Popularity *Popularity

	opts Options

	mu       sync.Mutex
	lastTick uint64
	stats    SimStats
}

// SimStats tracks aggregate village statistics.
type SimStats struct {
	Villagers     int     `json:"villagers"`
	Employed      int     `json:"employed"`
	Buildings     int     `json:"buildings"`
	Housing       int     `json:"housing"`
	Nodes         int     `json:"nodes"`
	DepletedNodes int     `json:"depleted_nodes"`
	Wealth        float64 `json:"wealth"`
}

// workforce answers the economy's worker questions from the scheduler
// and the villager controller.
type workforce struct {
	sched *jobs.Scheduler
	ctrl  *agents.Controller
}

func (w workforce) Workers(id buildings.BuildingID) []uint64 { return w.sched.Workers(id) }

func (w workforce) WorkEfficiency(agent uint64) float64 { return w.ctrl.WorkEfficiency(agent) }

// NewSimulation builds an empty village: no buildings, nodes or villagers.
func NewSimulation(opts Options) (*Simulation, error) {
	if opts.Catalog == nil {
		cat, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("default catalog: %w", err)
		}
		opts.Catalog = cat
	}
	for _, id := range opts.Unlocked {
		if _, ok := opts.Catalog.Get(id); !ok {
			return nil, fmt.Errorf("unlocked building type %q not in catalog", id)
		}
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("grid size %dx%d must be positive", opts.Width, opts.Height)
	}
	if opts.TickSeconds <= 0 {
		opts.TickSeconds = 0.1
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Tuning == (agents.Tuning{}) {
		opts.Tuning = agents.DefaultTuning()
	}
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus()
	}

	var unlocks buildings.Unlocks = buildings.AllUnlocked{}
	if len(opts.Unlocked) > 0 {
		unlocks = buildings.NewUnlockSet(opts.Unlocked...)
	}

	s := &Simulation{
		Grid:       world.NewGrid(opts.Width, opts.Height, opts.PathCacheSize),
		Nodes:      resources.NewRegistry(bus),
		Pool:       economy.NewPool(opts.PoolCapacity, economy.Population),
		Catalog:    opts.Catalog,
		Bus:        bus,
		Seasons:    NewSeasons(SeasonSpring),
		Popularity: NewPopularity(),
		opts:       opts,
	}
	s.Buildings = buildings.NewEconomy(s.Grid, s.Catalog, s.Pool, buildings.Options{
		Unlocks:    unlocks,
		Popularity: s.Popularity,
		Modifiers:  s.Seasons,
		Publisher:  bus,
	})
	s.Jobs = jobs.NewScheduler(s.Buildings, bus)
	bus.Listen(s.Jobs.HandleEvent)
	s.Villagers = agents.NewController(agents.Deps{
		Grid:      s.Grid,
		Nodes:     s.Nodes,
		Buildings: s.Buildings,
		Scheduler: s.Jobs,
		Pool:      s.Pool,
		Modifiers: s.Seasons,
		Publisher: bus,
	}, opts.Tuning, opts.Seed)
	s.Jobs.SetRoster(s.Villagers)
	s.Buildings.SetWorkforce(workforce{sched: s.Jobs, ctrl: s.Villagers})
	return s, nil
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTick
}

// SetTick resumes the tick counter, e.g. after a restore.
func (s *Simulation) SetTick(tick uint64) {
	s.mu.Lock()
	s.lastTick = tick
	s.mu.Unlock()
	s.Bus.SetTick(tick)
}

// Stats returns the statistics computed at the last building tick.
func (s *Simulation) Stats() SimStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// TickVillagers runs every tick: node clocks and every villager's step.
func (s *Simulation) TickVillagers(tick uint64) {
	s.SetTick(tick)
	dt := s.opts.TickSeconds
	s.Nodes.Advance(dt)

	if !s.opts.Parallel {
		s.Villagers.StepAll(dt)
		return
	}
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for _, id := range s.Villagers.IDs() {
		g.Go(func() error {
			s.Villagers.Step(id, dt)
			return nil
		})
	}
	_ = g.Wait()
}

// TickBuildings runs every building tick: production over minutes of game
// time, node regrowth, population growth and job placement.
func (s *Simulation) TickBuildings(tick uint64, minutes float64) {
	s.Buildings.Tick(minutes)
	if n := s.Nodes.RespawnRegrown(); n > 0 {
		slog.Debug("nodes regrown", "tick", tick, "count", n)
	}
	s.processPopulation(tick)
	if s.opts.AutoAssign {
		s.autoAssign()
	}
	s.updateStats()
}

// TickSeason runs every season change.
func (s *Simulation) TickSeason(tick uint64) {
	s.processSeason(tick)
}

// Report logs a summary of the village.
func (s *Simulation) Report(tick uint64, buildingEvery uint64) {
	st := s.Stats()
	slog.Info("village report",
		"tick", tick,
		"time", GameTime(tick, buildingEvery),
		"season", SeasonName(s.Seasons.Current()),
		"villagers", st.Villagers,
		"employed", st.Employed,
		"buildings", st.Buildings,
		"housing", st.Housing,
		"nodes", st.Nodes,
		"depleted", st.DepletedNodes,
		"wealth", humanize.Commaf(float64(int64(st.Wealth))),
	)
}

func (s *Simulation) updateStats() {
	var st SimStats
	st.Villagers = s.Villagers.Count()
	st.Employed = len(s.Jobs.Assignments())
	st.Buildings = len(s.Buildings.IDs())
	st.Housing = s.Buildings.TotalHousing()
	st.Nodes, st.DepletedNodes = s.Nodes.Count()
	st.Wealth = economy.Wealth(s.Pool.Snapshot())

	s.mu.Lock()
	s.stats = st
	s.mu.Unlock()
}
