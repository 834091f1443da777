// Villager behavior: a state machine driven by the head of the work cycle.
// Every step is a short bounded computation; waits accumulate dt rather
// than sleeping.
package agents

import (
	"math"

	"github.com/talgya/hearth/internal/buildings"
	"github.com/talgya/hearth/internal/jobs"
	"github.com/talgya/hearth/internal/world"
)

// Step advances one villager by dt seconds.
func (c *Controller) Step(id AgentID, dt float64) {
	v := c.lookup(id)
	if v == nil || dt <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	agent := uint64(id)
	job, interrupted := v.takeJob()
	if interrupted {
		c.dropTask(v)
	}

	v.decayHunger(c.tune.HungerDecay, dt)
	if v.wantsToEat() {
		v.eat(c.pool)
		return
	}

	// Carrying pre-empts everything but a deposit already under way.
	task, hasTask := c.sched.NextTask(agent)
	if v.Carried() > 0 && !(hasTask && task.Kind() == jobs.KindDeposit) {
		if _, ok := c.blds.StorageNear(v.Tile()); ok {
			c.depositAll(v)
			if hasTask && isStorageMove(task) {
				c.complete(v)
				return
			}
		}
	}

	if !hasTask {
		c.idle(v, dt)
		return
	}
	v.Task = jobs.Describe(task)

	switch t := task.(type) {
	case jobs.MoveTo:
		c.moveTo(v, t, dt)
	case jobs.Harvest:
		c.harvest(v, job, t, dt)
	case jobs.Deposit:
		c.deposit(v)
	case jobs.ReturnToWorkplace:
		c.returnToWorkplace(v, t, dt)
	}
}

func isStorageMove(t jobs.Task) bool {
	mv, ok := t.(jobs.MoveTo)
	if !ok {
		return false
	}
	bt, ok := mv.Target.(jobs.BuildingTarget)
	return ok && bt.Storage
}

// complete reports the head task done and clears per-task progress.
func (c *Controller) complete(v *villager) {
	c.sched.CompleteTask(uint64(v.ID))
	v.resetTask()
}

// abandon drops the whole cycle. The scheduler regenerates it on the next
// poll.
func (c *Controller) abandon(v *villager) {
	c.releaseNode(v)
	c.sched.AbandonCycle(uint64(v.ID))
	v.resetTask()
	v.State = StateIdle
}

func (c *Controller) dropTask(v *villager) {
	c.releaseNode(v)
	v.resetTask()
	v.State = StateIdle
}

func (c *Controller) releaseNode(v *villager) {
	if v.node != 0 {
		c.nodes.Release(v.node, uint64(v.ID))
		v.node = 0
	}
}

// idle handles a villager with nothing to do. A loaded villager still
// carries its goods to storage.
func (c *Controller) idle(v *villager, dt float64) {
	v.Task = ""
	if v.Carried() == 0 {
		v.State = StateIdle
		v.hasDest = false
		v.Path = nil
		return
	}
	if !v.hasDest {
		sid, ok := c.blds.NearestStorage(v.Tile())
		if !ok {
			v.State = StateCarrying
			return
		}
		dest, ok := c.blds.Entrance(sid, v.Tile())
		if !ok {
			v.State = StateCarrying
			return
		}
		c.setDestination(v, dest)
	}
	if c.walk(v, dt) {
		v.hasDest = false
	}
	v.State = StateCarrying
}

// moveTo resolves the target once, then walks until arrival.
func (c *Controller) moveTo(v *villager, t jobs.MoveTo, dt float64) {
	if v.hasDest && v.node != 0 && !c.nodes.Exists(v.node) {
		// Node removed under us: pick another.
		v.node = 0
		v.hasDest = false
	}
	if !v.hasDest {
		dest, ok := c.resolve(v, t.Target)
		if !ok {
			return
		}
		c.setDestination(v, dest)
	}
	if c.walk(v, dt) {
		c.complete(v) // keeps the reserved node for the harvest
		v.State = StateIdle
		if v.Carried() > 0 {
			v.State = StateCarrying
		}
	}
}

// resolve turns a target into a destination tile. Failures that cannot
// heal by waiting abandon the cycle.
func (c *Controller) resolve(v *villager, target jobs.Target) (world.GridCoord, bool) {
	here := v.Tile()
	switch t := target.(type) {
	case jobs.NodeTarget:
		return c.acquireNode(v, t)
	case jobs.BuildingTarget:
		var id buildings.BuildingID
		var ok bool
		switch {
		case t.ID != 0:
			id, ok = t.ID, c.blds.Exists(t.ID)
		case t.Storage:
			id, ok = c.blds.NearestStorage(here)
		default:
			id, ok = c.blds.NearestOfType(t.TypeID, here)
		}
		if !ok {
			c.abandon(v)
			return world.GridCoord{}, false
		}
		dest, ok := c.blds.Entrance(id, here)
		if !ok {
			c.abandon(v)
			return world.GridCoord{}, false
		}
		return dest, true
	case jobs.PositionTarget:
		if !c.grid.InBounds(t.Coord) {
			c.abandon(v)
			return world.GridCoord{}, false
		}
		return t.Coord, true
	}
	c.abandon(v)
	return world.GridCoord{}, false
}

// acquireNode finds and reserves the nearest free node. A lost race is
// retried once against a different node; repeated failures back off until
// MaxReserveRetries, then the cycle goes back to the scheduler.
func (c *Controller) acquireNode(v *villager, t jobs.NodeTarget) (world.GridCoord, bool) {
	agent := uint64(v.ID)
	here := v.Tile()
	if id, ok := c.nodes.NearestAvailable(here, t.Type, 0, true); ok {
		if !c.nodes.Reserve(id, agent) {
			id, ok = c.nodes.NearestAvailableExcept(here, t.Type, 0, true, id)
			if ok && !c.nodes.Reserve(id, agent) {
				ok = false
			}
		}
		if ok {
			if n, found := c.nodes.Get(id); found {
				v.node = id
				v.retries = 0
				return n.Position, true
			}
			c.nodes.Release(id, agent)
		}
	}
	v.retries++
	v.State = StateIdle
	if v.retries >= MaxReserveRetries {
		c.abandon(v)
	}
	return world.GridCoord{}, false
}

func (c *Controller) setDestination(v *villager, dest world.GridCoord) {
	v.dest = dest
	v.hasDest = true
	v.stuckClock = 0
	v.stuckFrom = v.Position
	from := v.Tile()
	if world.Manhattan(from, dest) <= DirectMoveTiles {
		v.Path = []world.WorldPos{dest.Center()}
		return
	}
	v.Path = c.grid.Navigate(from, dest)
	if len(v.Path) == 0 {
		// No route: head straight for it rather than stand still.
		v.Path = []world.WorldPos{dest.Center()}
	}
}

// walk moves along the path and reports arrival at the destination.
func (c *Controller) walk(v *villager, dt float64) bool {
	goal := v.dest.Center()
	if world.Distance(v.Position, goal) <= ArrivalThreshold {
		v.Position = goal
		v.Path = nil
		return true
	}
	v.State = StateWalking

	step := c.tune.Speed * c.mods.Multiplier(buildings.CategoryMovement) * dt
	for step > 0 && len(v.Path) > 0 {
		next := v.Path[0]
		before := v.Position
		pos, reached := world.MoveToward(v.Position, next, step)
		v.Position = pos
		step -= world.Distance(before, pos)
		if !reached {
			break
		}
		v.Path = v.Path[1:]
	}
	if len(v.Path) == 0 && world.Distance(v.Position, goal) > ArrivalThreshold {
		v.Path = []world.WorldPos{goal}
	}

	v.stuckClock += dt
	if v.stuckClock >= StuckWindow {
		if world.Distance(v.Position, v.stuckFrom) < StuckDistance {
			// Same destination, no path.
			v.Path = []world.WorldPos{goal}
		}
		v.stuckClock = 0
		v.stuckFrom = v.Position
	}
	return world.Distance(v.Position, goal) <= ArrivalThreshold
}

func (c *Controller) swingTime(v *villager) float64 {
	eff := v.Efficiency * c.mods.Multiplier(buildings.CategoryWorkEfficiency)
	if eff <= 0 {
		eff = 1
	}
	return c.tune.HarvestDuration / eff
}

func (c *Controller) room(v *villager) float64 {
	return math.Max(0, c.tune.CarryCapacity-v.Carried())
}

func (c *Controller) harvest(v *villager, job string, t jobs.Harvest, dt float64) {
	prof, ok := jobs.Lookup(job)
	if !ok {
		c.abandon(v)
		return
	}
	if prof.NodeBased {
		c.harvestNode(v, t, dt)
		return
	}
	c.harvestWorkplace(v, prof, t, dt)
}

// harvestNode swings at the reserved node until the load is full, the node
// runs out, or the villager has held it for MaxHarvestTime.
func (c *Controller) harvestNode(v *villager, t jobs.Harvest, dt float64) {
	agent := uint64(v.ID)
	if v.node == 0 || c.nodes.HolderOf(v.node) != agent {
		c.abandon(v)
		return
	}
	v.State = StateWorking
	v.harvestClock += dt
	v.harvestElapsed += dt

	if need := c.swingTime(v); v.harvestClock >= need {
		v.harvestClock -= need
		amount := math.Min(t.Amount, c.room(v))
		if got := c.nodes.Harvest(v.node, amount); got > 0 {
			v.Carrying[t.Resource] += got
		}
	}

	n, ok := c.nodes.Get(v.node)
	if !ok || n.Depleted || c.room(v) <= 0 || v.harvestElapsed >= c.tune.MaxHarvestTime {
		c.releaseNode(v)
		c.complete(v)
		v.State = StateCarrying
		if v.Carried() == 0 {
			v.State = StateIdle
		}
	}
}

// harvestWorkplace runs one swing at the workplace. Jobs with an input
// draw it from the pool one for one; without input nothing is made but the
// task still completes.
func (c *Controller) harvestWorkplace(v *villager, prof jobs.Profile, t jobs.Harvest, dt float64) {
	a, ok := c.sched.Assignment(uint64(v.ID))
	if !ok || !c.blds.Exists(a.Building) {
		c.sched.Unassign(uint64(v.ID))
		c.dropTask(v)
		return
	}
	v.State = StateWorking
	v.harvestClock += dt
	if v.harvestClock < c.swingTime(v) {
		return
	}
	amount := math.Min(t.Amount, c.room(v))
	if prof.Input != "" && amount > 0 {
		amount = c.pool.Take(prof.Input, amount)
	}
	if amount > 0 {
		v.Carrying[t.Resource] += amount
	}
	c.complete(v)
	v.State = StateCarrying
	if v.Carried() == 0 {
		v.State = StateIdle
	}
}

// deposit unloads at the storage the villager stands by. Standing
// elsewhere means storage vanished after the cycle was built.
func (c *Controller) deposit(v *villager) {
	if v.Carried() == 0 {
		c.complete(v)
		return
	}
	if _, ok := c.blds.StorageNear(v.Tile()); !ok {
		c.abandon(v)
		v.State = StateCarrying
		return
	}
	c.depositAll(v)
	c.complete(v)
}

// depositAll moves everything that fits into the pool.
func (c *Controller) depositAll(v *villager) {
	v.State = StateDepositing
	for res, amt := range v.Carrying {
		accepted := c.pool.Deposit(res, amt)
		if left := amt - accepted; left > 1e-9 {
			v.Carrying[res] = left
		} else {
			delete(v.Carrying, res)
		}
	}
}

func (c *Controller) returnToWorkplace(v *villager, t jobs.ReturnToWorkplace, dt float64) {
	a, ok := c.sched.Assignment(uint64(v.ID))
	if !ok || !c.blds.Exists(a.Building) {
		c.sched.Unassign(uint64(v.ID))
		c.dropTask(v)
		return
	}
	if !v.hasDest {
		c.setDestination(v, t.Position)
	}
	if c.walk(v, dt) {
		c.complete(v)
		v.State = StateIdle
	}
}
