// Building tick: production, consumption, processing chains, upgrade
// timers and derived-state notifications.
package buildings

import (
	"math"
	"sort"

	"github.com/talgya/hearth/internal/economy"
	"github.com/talgya/hearth/internal/events"
)

// Travel-distance penalty: full efficiency near storage, falling linearly to
// the floor at the far radius. Distances are in path steps.
const (
	NearStorageTiles = 10
	FarStorageTiles  = 40
	MinTravelFactor  = 0.5
)

type crew struct {
	count      int
	efficiency float64 // average work efficiency of the assigned workers
}

// Tick advances every building by dt game minutes.
func (e *Economy) Tick(dt float64) {
	if dt <= 0 {
		return
	}

	// Gather workforce outside the economy lock: the scheduler calls back
	// into the economy while holding its own lock.
	work := e.workforce()
	crews := make(map[BuildingID]crew)
	for _, id := range e.IDs() {
		workers := work.Workers(id)
		c := crew{count: len(workers), efficiency: 1}
		if len(workers) > 0 {
			total := 0.0
			for _, a := range workers {
				total += work.WorkEfficiency(a)
			}
			c.efficiency = total / float64(len(workers))
		}
		crews[id] = c
	}

	var pending []events.Event

	e.mu.Lock()
	for _, id := range e.idsLocked() {
		r := e.records[id]
		c := crews[id]

		if r.upgrading {
			r.upgradeLeft -= dt
			if r.upgradeLeft <= 0 {
				r.upgrading = false
				r.upgradeLeft = 0
				e.applyLevel(r, r.level+1)
				e.distCache = make(map[BuildingID]int)
				pending = append(pending, events.Event{
					Kind: events.BuildingUpgraded, BuildingID: uint64(id), TypeID: r.bt.ID, Amount: float64(r.level),
				})
			}
		}
		if !r.upgrading {
			e.produce(r, c, dt)
			e.consume(r, dt)
			e.process(r, c, dt)
		}
	}

	housingFull := e.housingFullLocked()
	for _, id := range e.idsLocked() {
		r := e.records[id]
		st := e.deriveState(r, crews[id].count, housingFull)
		if st != r.lastState {
			r.lastState = st
			pending = append(pending, events.Event{
				Kind: events.BuildingStateChanged, BuildingID: uint64(id), TypeID: r.bt.ID, State: st.String(),
			})
		}
	}
	e.mu.Unlock()

	for _, ev := range pending {
		e.pub.Publish(ev)
	}
}

// rateScale is worker scaling times efficiency for one building.
func (e *Economy) rateScale(r *record, c crew) float64 {
	scale := e.efficiencyLocked(r) * r.multiplier
	if r.workerCap > 0 {
		scale *= float64(c.count) / float64(r.workerCap)
		if r.bt.WorkerBased {
			scale *= c.efficiency
		}
	}
	return scale
}

func (e *Economy) produce(r *record, c crew, dt float64) {
	if len(r.bt.Production) == 0 {
		return
	}
	scale := e.rateScale(r, c)
	for _, res := range sortedKeys(r.bt.Production) {
		r.accum[res] += r.bt.Production[res] * scale * dt
		e.flush(r, res)
	}
}

// flush moves whole units of res from the accumulator into the pool.
// Population is capped by free housing; output that does not fit in
// storage is lost.
func (e *Economy) flush(r *record, res string) {
	whole := math.Floor(r.accum[res])
	if whole < 1 {
		return
	}
	if res == economy.Population {
		room := math.Floor(float64(e.totalHousingLocked()) - e.pool.Get(economy.Population))
		if room <= 0 {
			r.accum[res] = math.Min(r.accum[res], 1)
			return
		}
		whole = math.Min(whole, room)
	}
	r.accum[res] -= whole
	e.pool.Deposit(res, whole)
}

// consume draws upkeep every tick. Without allow_negative a short stock
// gives up whatever is left.
func (e *Economy) consume(r *record, dt float64) {
	for _, res := range sortedKeys(r.bt.Consumption) {
		amt := r.bt.Consumption[res] * dt
		if amt <= 0 {
			continue
		}
		if !e.pool.Consume(res, amt, r.bt.AllowNegative) {
			e.pool.Take(res, amt)
		}
	}
}

// process runs the building's recipe. It stalls without workers or input.
func (e *Economy) process(r *record, c crew, dt float64) {
	rec := r.bt.Recipe
	if rec == nil || c.count == 0 {
		return
	}
	if !e.pool.Consume(rec.Input, rec.InputRate*dt, false) {
		return
	}
	r.processing += dt * e.rateScale(r, c)
	for r.processing >= rec.ProcessingTime {
		r.processing -= rec.ProcessingTime
		r.accum[rec.Output] += rec.OutputRate * rec.ProcessingTime
	}
	e.flush(r, rec.Output)
}

// Efficiency returns the building's current production efficiency, before
// worker scaling.
func (e *Economy) Efficiency(id BuildingID) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.records[id]
	if !ok {
		return 0
	}
	return e.efficiencyLocked(r)
}

func (e *Economy) efficiencyLocked(r *record) float64 {
	return r.bt.Efficiency *
		e.travelFactorLocked(r) *
		e.pop.Multiplier(CategoryProduction) *
		e.mods.Multiplier(CategoryProduction)
}

// TravelFactor maps a path distance to storage onto the efficiency
// penalty. A negative distance means unreachable.
func TravelFactor(dist int) float64 {
	switch {
	case dist < 0:
		return MinTravelFactor
	case dist <= NearStorageTiles:
		return 1
	case dist >= FarStorageTiles:
		return MinTravelFactor
	}
	frac := float64(dist-NearStorageTiles) / float64(FarStorageTiles-NearStorageTiles)
	return 1 - frac*(1-MinTravelFactor)
}

func (e *Economy) travelFactorLocked(r *record) float64 {
	if r.bt.Storage {
		return 1
	}
	return TravelFactor(e.storageDistanceLocked(r))
}

// storageDistanceLocked returns path steps from the building to the
// nearest storage, or -1. Cached until any building is placed or removed.
func (e *Economy) storageDistanceLocked(r *record) int {
	if d, ok := e.distCache[r.id]; ok {
		return d
	}
	best := -1
	for _, id := range e.idsLocked() {
		s := e.records[id]
		if !s.bt.Storage {
			continue
		}
		from, ok := e.grid.ApproachTile(r.origin, r.size, s.origin)
		if !ok {
			continue
		}
		to, ok := e.grid.ApproachTile(s.origin, s.size, from)
		if !ok {
			continue
		}
		d := e.grid.PathLength(from, to)
		if d >= 0 && (best < 0 || d < best) {
			best = d
		}
	}
	e.distCache[r.id] = best
	return best
}

// StorageDistance returns the cached path distance to the nearest storage.
func (e *Economy) StorageDistance(id BuildingID) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.records[id]
	if !ok {
		return 0, false
	}
	return e.storageDistanceLocked(r), true
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
