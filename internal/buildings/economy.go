package buildings

import (
	"math"
	"sort"
	"sync"

	"github.com/talgya/hearth/internal/catalog"
	"github.com/talgya/hearth/internal/economy"
	"github.com/talgya/hearth/internal/events"
	"github.com/talgya/hearth/internal/world"
)

type record struct {
	id     BuildingID
	bt     *catalog.BuildingType
	origin world.GridCoord
	size   world.GridCoord
	level  int

	workerCap  int
	housingCap int
	storage    map[string]float64 // capacity currently added to the pool
	multiplier float64

	accum      map[string]float64 // fractional output not yet flushed
	processing float64            // game minutes into the current batch

	upgrading   bool
	upgradeLeft float64

	lastState State
}

// Economy owns every placed building. All methods are safe for concurrent
// use. Events are published after the economy lock is released.
type Economy struct {
	mu      sync.Mutex
	records map[BuildingID]*record
	byType  map[string]int
	foods   map[string]int // buildings providing each food
	nextID  BuildingID

	// Path distance to the nearest storage, per building. Dropped whenever
	// any building is placed or removed.
	distCache map[BuildingID]int

	grid    *world.Grid
	cat     *catalog.Catalog
	pool    Pool
	unlocks Unlocks
	pop     Popularity
	mods    Modifiers
	work    Workforce
	pub     events.Publisher
}

// Options carries the optional collaborators. Nil fields get neutral
// stand-ins: everything unlocked, all multipliers 1, no workers.
type Options struct {
	Unlocks    Unlocks
	Popularity Popularity
	Modifiers  Modifiers
	Workforce  Workforce
	Publisher  events.Publisher
}

// NewEconomy creates an economy placing onto grid and paying from pool.
func NewEconomy(grid *world.Grid, cat *catalog.Catalog, pool Pool, opts Options) *Economy {
	e := &Economy{
		records:   make(map[BuildingID]*record),
		byType:    make(map[string]int),
		foods:     make(map[string]int),
		nextID:    1,
		distCache: make(map[BuildingID]int),
		grid:      grid,
		cat:       cat,
		pool:      pool,
		unlocks:   opts.Unlocks,
		pop:       opts.Popularity,
		mods:      opts.Modifiers,
		work:      opts.Workforce,
		pub:       opts.Publisher,
	}
	if e.unlocks == nil {
		e.unlocks = AllUnlocked{}
	}
	if e.pop == nil {
		e.pop = noPopularity{}
	}
	if e.mods == nil {
		e.mods = noModifiers{}
	}
	if e.work == nil {
		e.work = noWorkforce{}
	}
	if e.pub == nil {
		e.pub = events.Discard
	}
	return e
}

// SetWorkforce installs the workforce source. The scheduler depends on the
// economy, so this is wired after both exist.
func (e *Economy) SetWorkforce(w Workforce) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if w == nil {
		w = noWorkforce{}
	}
	e.work = w
}

func (e *Economy) workforce() Workforce {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.work
}

// Catalog returns the building type catalog.
func (e *Economy) Catalog() *catalog.Catalog {
	return e.cat
}

// Place builds typeID with its top-left tile at origin. It fails, changing
// nothing, when the type is unknown or locked, a prerequisite is missing,
// the cost cannot be paid, or the footprint does not fit. The first
// storage building of each type is free.
func (e *Economy) Place(typeID string, origin world.GridCoord) (BuildingID, bool) {
	bt, ok := e.cat.Get(typeID)
	if !ok || !e.unlocks.IsUnlocked(typeID) {
		return 0, false
	}

	e.mu.Lock()
	for _, req := range bt.Requires {
		if e.byType[req] == 0 {
			e.mu.Unlock()
			return 0, false
		}
	}
	if !e.grid.CanPlace(origin, bt.Footprint()) {
		e.mu.Unlock()
		return 0, false
	}
	free := bt.Storage && e.byType[typeID] == 0
	if !free && !e.pool.Pay(bt.Cost) {
		e.mu.Unlock()
		return 0, false
	}
	id, ok := e.placeLocked(bt, origin, 1)
	if !ok && !free {
		for res, amt := range bt.Cost {
			e.pool.Deposit(res, amt)
		}
	}
	e.mu.Unlock()

	if ok {
		e.pub.Publish(events.Event{Kind: events.BuildingPlaced, BuildingID: uint64(id), TypeID: typeID})
	}
	return id, ok
}

// Replay places a building without cost, unlock or prerequisite checks and
// at the given level. Used when restoring a saved village.
func (e *Economy) Replay(typeID string, origin world.GridCoord, level int) (BuildingID, bool) {
	bt, ok := e.cat.Get(typeID)
	if !ok {
		return 0, false
	}
	if level < 1 {
		level = 1
	}
	if level > bt.MaxLevel() {
		level = bt.MaxLevel()
	}

	e.mu.Lock()
	id, ok := e.placeLocked(bt, origin, level)
	e.mu.Unlock()

	if ok {
		e.pub.Publish(events.Event{Kind: events.BuildingPlaced, BuildingID: uint64(id), TypeID: typeID})
	}
	return id, ok
}

func (e *Economy) placeLocked(bt *catalog.BuildingType, origin world.GridCoord, level int) (BuildingID, bool) {
	id := e.nextID
	if !e.grid.Place(uint64(id), origin, bt.Footprint()) {
		return 0, false
	}
	e.nextID++

	r := &record{
		id:      id,
		bt:      bt,
		origin:  origin,
		size:    bt.Footprint(),
		storage: make(map[string]float64),
		accum:   make(map[string]float64),
	}
	e.records[id] = r
	e.byType[bt.ID]++
	e.applyLevel(r, level)

	e.pop.AddEffects(bt.Fear, bt.GoodThings)
	for _, food := range bt.FoodTypes() {
		e.foods[food]++
		if e.foods[food] == 1 {
			e.pop.SetFoodAvailable(food, true)
		}
	}
	e.distCache = make(map[BuildingID]int)
	r.lastState = e.deriveState(r, 0, e.housingFullLocked())
	return id, true
}

// applyLevel sets capacities for level, adjusting the pool's storage
// capacity by the difference from what the building already added.
func (e *Economy) applyLevel(r *record, level int) {
	workers, housing, storage, mult := r.bt.LevelStats(level)
	r.level = level
	r.workerCap = workers
	r.housingCap = housing
	r.multiplier = mult
	for res, amt := range storage {
		if delta := amt - r.storage[res]; delta != 0 {
			e.pool.AddCapacity(res, delta)
		}
	}
	r.storage = storage
}

// Remove demolishes a building, freeing its footprint and retracting its
// storage, popularity and food contributions. A food stays available while
// another building still provides it. Workers are released by whoever
// listens for BuildingRemoved.
func (e *Economy) Remove(id BuildingID) bool {
	e.mu.Lock()
	r, ok := e.records[id]
	if !ok {
		e.mu.Unlock()
		return false
	}
	e.grid.Remove(uint64(id))
	for res, amt := range r.storage {
		e.pool.AddCapacity(res, -amt)
	}
	e.pop.AddEffects(-r.bt.Fear, -r.bt.GoodThings)
	for _, food := range r.bt.FoodTypes() {
		e.foods[food]--
		if e.foods[food] <= 0 {
			delete(e.foods, food)
			e.pop.SetFoodAvailable(food, false)
		}
	}
	delete(e.records, id)
	e.byType[r.bt.ID]--
	if e.byType[r.bt.ID] <= 0 {
		delete(e.byType, r.bt.ID)
	}
	e.distCache = make(map[BuildingID]int)
	typeID := r.bt.ID
	e.mu.Unlock()

	e.pub.Publish(events.Event{Kind: events.BuildingRemoved, BuildingID: uint64(id), TypeID: typeID})
	return true
}

// Upgrade pays for the next level and starts its construction timer. The
// level applies when the timer runs out during Tick; a zero duration
// applies it immediately. Fails when the building is unknown, already
// upgrading, at its top level, or the cost cannot be paid.
func (e *Economy) Upgrade(id BuildingID) bool {
	e.mu.Lock()
	r, ok := e.records[id]
	if !ok || r.upgrading || r.level >= r.bt.MaxLevel() {
		e.mu.Unlock()
		return false
	}
	up := r.bt.Upgrades[r.level-1]
	if !e.pool.Pay(up.Cost) {
		e.mu.Unlock()
		return false
	}
	var done bool
	if up.Duration <= 0 {
		e.applyLevel(r, r.level+1)
		done = true
	} else {
		r.upgrading = true
		r.upgradeLeft = up.Duration
	}
	level, typeID := r.level, r.bt.ID
	e.mu.Unlock()

	if done {
		e.pub.Publish(events.Event{Kind: events.BuildingUpgraded, BuildingID: uint64(id), TypeID: typeID, Amount: float64(level)})
	}
	return true
}

// ResumeUpgrade restarts an upgrade that was already paid for, with left
// game minutes of construction remaining. Used when restoring a saved
// village.
func (e *Economy) ResumeUpgrade(id BuildingID, left float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.records[id]
	if !ok || left <= 0 || r.upgrading || r.level >= r.bt.MaxLevel() {
		return false
	}
	r.upgrading = true
	r.upgradeLeft = left
	return true
}

// Get returns a view of one building.
func (e *Economy) Get(id BuildingID) (Building, bool) {
	workers := e.workforce().Workers(id)

	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.records[id]
	if !ok {
		return Building{}, false
	}
	return e.view(r, workers), true
}

// All returns views of every building in id order.
func (e *Economy) All() []Building {
	ids := e.IDs()
	out := make([]Building, 0, len(ids))
	for _, id := range ids {
		if b, ok := e.Get(id); ok {
			out = append(out, b)
		}
	}
	return out
}

// IDs returns every building id in ascending order.
func (e *Economy) IDs() []BuildingID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.idsLocked()
}

func (e *Economy) idsLocked() []BuildingID {
	ids := make([]BuildingID, 0, len(e.records))
	for id := range e.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (e *Economy) view(r *record, workers []uint64) Building {
	storage := make(map[string]float64, len(r.storage))
	for res, amt := range r.storage {
		storage[res] = amt
	}
	st := e.deriveState(r, len(workers), e.housingFullLocked())
	return Building{
		ID:     r.id,
		TypeID: r.bt.ID,
		Origin: r.origin,
		Size:   r.size,
		Level:  r.level,
		Capacity: Capacity{
			Housing: r.housingCap,
			Worker:  r.workerCap,
			Storage: storage,
		},
		Workers:     workers,
		State:       st,
		StateStr:    st.String(),
		UpgradeLeft: r.upgradeLeft,
		Efficiency:  e.efficiencyLocked(r),
		Storage:     r.bt.Storage,
	}
}

// Exists reports whether the building is standing.
func (e *Economy) Exists(id BuildingID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.records[id]
	return ok
}

// TypeOf returns the building's type id.
func (e *Economy) TypeOf(id BuildingID) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.records[id]
	if !ok {
		return "", false
	}
	return r.bt.ID, true
}

// WorkerCapacity returns how many workers the building takes at its
// current level, or 0 if it does not exist.
func (e *Economy) WorkerCapacity(id BuildingID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.records[id]; ok {
		return r.workerCap
	}
	return 0
}

// Footprint returns the building's origin and size.
func (e *Economy) Footprint(id BuildingID) (origin, size world.GridCoord, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.records[id]
	if !ok {
		return world.GridCoord{}, world.GridCoord{}, false
	}
	return r.origin, r.size, true
}

// Entrance returns the free tile bordering the building nearest to from.
func (e *Economy) Entrance(id BuildingID, from world.GridCoord) (world.GridCoord, bool) {
	origin, size, ok := e.Footprint(id)
	if !ok {
		return world.GridCoord{}, false
	}
	return e.grid.ApproachTile(origin, size, from)
}

// CountType returns how many buildings of typeID stand.
func (e *Economy) CountType(typeID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.byType[typeID]
}

// HasStorage reports whether any storage building stands.
func (e *Economy) HasStorage() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.records {
		if r.bt.Storage {
			return true
		}
	}
	return false
}

// IsStorage reports whether the building accepts deposits.
func (e *Economy) IsStorage(id BuildingID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.records[id]
	return ok && r.bt.Storage
}

// NearestStorage returns the storage building whose footprint centre is
// closest to from. Ties go to the lower id.
func (e *Economy) NearestStorage(from world.GridCoord) (BuildingID, bool) {
	return e.nearest(from, func(r *record) bool { return r.bt.Storage })
}

// NearestOfType returns the closest building of typeID.
func (e *Economy) NearestOfType(typeID string, from world.GridCoord) (BuildingID, bool) {
	return e.nearest(from, func(r *record) bool { return r.bt.ID == typeID })
}

func (e *Economy) nearest(from world.GridCoord, match func(*record) bool) (BuildingID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var best BuildingID
	bestDist := math.Inf(1)
	for _, id := range e.idsLocked() {
		r := e.records[id]
		if !match(r) {
			continue
		}
		d := world.Distance(footprintCenter(r.origin, r.size), from.Center())
		if d < bestDist {
			best, bestDist = id, d
		}
	}
	return best, best != 0
}

// StorageNear returns a storage building whose footprint touches tile c.
func (e *Economy) StorageNear(c world.GridCoord) (BuildingID, bool) {
	nb := c.Neighbors()
	tiles := append([]world.GridCoord{c}, nb[:]...)
	for _, t := range tiles {
		occ := e.grid.OccupantAt(t)
		if occ == 0 {
			continue
		}
		if e.IsStorage(BuildingID(occ)) {
			return BuildingID(occ), true
		}
	}
	return 0, false
}

// TotalHousing returns the housing capacity of the whole village.
func (e *Economy) TotalHousing() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalHousingLocked()
}

func (e *Economy) totalHousingLocked() int {
	n := 0
	for _, r := range e.records {
		n += r.housingCap
	}
	return n
}

func (e *Economy) housingFullLocked() bool {
	housing := e.totalHousingLocked()
	return housing > 0 && e.pool.Get(economy.Population) >= float64(housing)
}

// FoodAvailable reports whether any standing building provides food.
func (e *Economy) FoodAvailable(food string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.foods[food] > 0
}

func (e *Economy) deriveState(r *record, workers int, housingFull bool) State {
	switch {
	case r.upgrading:
		return StateConstruction
	case r.workerCap > 0 && workers < r.workerCap:
		return StateNeedsWorkers
	case r.workerCap > 0:
		return StateFullCapacity
	case r.housingCap > 0 && housingFull:
		return StateFullCapacity
	}
	return StateOperational
}

func footprintCenter(origin, size world.GridCoord) world.WorldPos {
	return world.WorldPos{
		X: (float64(origin.X) + float64(size.X)/2) * world.TileSize,
		Y: (float64(origin.Y) + float64(size.Y)/2) * world.TileSize,
	}
}
