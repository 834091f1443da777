package jobs

import (
	"sort"
	"sync"

	"github.com/talgya/hearth/internal/buildings"
	"github.com/talgya/hearth/internal/events"
	"github.com/talgya/hearth/internal/world"
)

// Buildings is what the scheduler needs to know about workplaces and
// storage. *buildings.Economy satisfies it.
type Buildings interface {
	Exists(id buildings.BuildingID) bool
	WorkerCapacity(id buildings.BuildingID) int
	HasStorage() bool
	Footprint(id buildings.BuildingID) (origin, size world.GridCoord, ok bool)
	Entrance(id buildings.BuildingID, from world.GridCoord) (world.GridCoord, bool)
}

// Roster knows which villagers exist and is told when their job changes
// or their current task is pre-empted.
type Roster interface {
	Exists(agent uint64) bool
	SetJob(agent uint64, job string)
	Interrupt(agent uint64)
}

// Assignment is one villager's job.
type Assignment struct {
	Agent    uint64               `json:"agent"`
	Building buildings.BuildingID `json:"building"`
	Job      string               `json:"job"`
}

// Scheduler maps villagers to workplaces and serves their work cycles.
// Safe for concurrent use. It never calls collaborators while holding its
// own lock.
type Scheduler struct {
	mu         sync.Mutex
	byAgent    map[uint64]Assignment
	byBuilding map[buildings.BuildingID]map[uint64]struct{}
	queues     map[uint64][]Task
	cycles     map[uint64][]Task
	capacity   map[buildings.BuildingID]int

	blds   Buildings
	roster Roster
	pub    events.Publisher
}

// NewScheduler creates a scheduler. pub may be nil.
func NewScheduler(blds Buildings, pub events.Publisher) *Scheduler {
	if pub == nil {
		pub = events.Discard
	}
	return &Scheduler{
		byAgent:    make(map[uint64]Assignment),
		byBuilding: make(map[buildings.BuildingID]map[uint64]struct{}),
		queues:     make(map[uint64][]Task),
		cycles:     make(map[uint64][]Task),
		capacity:   make(map[buildings.BuildingID]int),
		blds:       blds,
		pub:        pub,
	}
}

// SetRoster installs the villager roster. Until set, every agent id is
// accepted and job changes go unannounced.
func (s *Scheduler) SetRoster(r Roster) {
	s.mu.Lock()
	s.roster = r
	s.mu.Unlock()
}

func (s *Scheduler) getRoster() Roster {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster
}

// workerCapacity returns the cached worker capacity of a building,
// resolving it from building data on a miss.
func (s *Scheduler) workerCapacity(b buildings.BuildingID) int {
	s.mu.Lock()
	c, ok := s.capacity[b]
	s.mu.Unlock()
	if ok {
		return c
	}
	c = s.blds.WorkerCapacity(b)
	s.mu.Lock()
	s.capacity[b] = c
	s.mu.Unlock()
	return c
}

// Assign gives agent job at building. It fails for an unknown agent, job
// or building, or when the building has no free worker slot. A previous
// job is dropped first.
func (s *Scheduler) Assign(agent uint64, building buildings.BuildingID, job string) bool {
	if agent == 0 {
		return false
	}
	if _, ok := Lookup(job); !ok {
		return false
	}
	roster := s.getRoster()
	if roster != nil && !roster.Exists(agent) {
		return false
	}
	if !s.blds.Exists(building) {
		return false
	}
	capacity := s.workerCapacity(building)

	s.mu.Lock()
	workers := s.byBuilding[building]
	count := len(workers)
	if _, already := workers[agent]; already {
		count--
	}
	if count >= capacity {
		s.mu.Unlock()
		return false
	}
	prev, hadPrev := s.unassignLocked(agent)
	if s.byBuilding[building] == nil {
		s.byBuilding[building] = make(map[uint64]struct{})
	}
	s.byBuilding[building][agent] = struct{}{}
	s.byAgent[agent] = Assignment{Agent: agent, Building: building, Job: job}
	s.mu.Unlock()

	if roster != nil {
		roster.SetJob(agent, job)
	}
	if hadPrev {
		s.pub.Publish(events.Event{Kind: events.JobUnassigned, AgentID: agent, BuildingID: uint64(prev.Building), TypeID: prev.Job})
	}
	s.pub.Publish(events.Event{Kind: events.JobAssigned, AgentID: agent, BuildingID: uint64(building), TypeID: job})
	return true
}

// Unassign drops agent's job and pending tasks.
func (s *Scheduler) Unassign(agent uint64) bool {
	s.mu.Lock()
	prev, ok := s.unassignLocked(agent)
	roster := s.roster
	s.mu.Unlock()
	if !ok {
		return false
	}
	if roster != nil {
		roster.SetJob(agent, "")
	}
	s.pub.Publish(events.Event{Kind: events.JobUnassigned, AgentID: agent, BuildingID: uint64(prev.Building), TypeID: prev.Job})
	return true
}

func (s *Scheduler) unassignLocked(agent uint64) (Assignment, bool) {
	a, ok := s.byAgent[agent]
	if !ok {
		return Assignment{}, false
	}
	delete(s.byAgent, agent)
	if set := s.byBuilding[a.Building]; set != nil {
		delete(set, agent)
		if len(set) == 0 {
			delete(s.byBuilding, a.Building)
		}
	}
	delete(s.queues, agent)
	delete(s.cycles, agent)
	return a, true
}

// NextTask returns the head of agent's queue without removing it. An empty
// queue is refilled from the cached cycle or a freshly generated one. If
// the workplace is gone the agent is unassigned and nothing is returned.
func (s *Scheduler) NextTask(agent uint64) (Task, bool) {
	a, ok := s.Assignment(agent)
	if !ok {
		return s.errand(agent)
	}
	if !s.blds.Exists(a.Building) {
		s.Unassign(agent)
		return nil, false
	}

	s.mu.Lock()
	if q := s.queues[agent]; len(q) > 0 {
		s.mu.Unlock()
		return q[0], true
	}
	cycle, cached := s.cycles[agent]
	s.mu.Unlock()

	if !cached {
		cycle = s.Generate(a.Job, a.Building)
		if len(cycle) == 0 {
			return nil, false
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, still := s.byAgent[agent]
	if !still || cur != a {
		return nil, false
	}
	if q := s.queues[agent]; len(q) > 0 {
		return q[0], true
	}
	if !cached {
		s.cycles[agent] = cycle
	}
	q := make([]Task, len(cycle))
	copy(q, cycle)
	s.queues[agent] = q
	return q[0], true
}

// Send puts a walk to target at the head of agent's queue and interrupts
// the task in flight. A working villager resumes its cycle on arrival; an
// unassigned one goes idle there.
func (s *Scheduler) Send(agent uint64, target Target) bool {
	if agent == 0 || target == nil {
		return false
	}
	roster := s.getRoster()
	if roster != nil && !roster.Exists(agent) {
		return false
	}

	s.mu.Lock()
	q := make([]Task, 0, len(s.queues[agent])+1)
	q = append(q, MoveTo{Target: target})
	s.queues[agent] = append(q, s.queues[agent]...)
	s.mu.Unlock()

	if roster != nil {
		roster.Interrupt(agent)
	}
	return true
}

// errand serves the queue of an agent without a job, which only Send
// fills.
func (s *Scheduler) errand(agent uint64) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q := s.queues[agent]; len(q) > 0 {
		return q[0], true
	}
	return nil, false
}

// CompleteTask pops the head of agent's queue. Emptying the queue drops
// the cached cycle so the next cycle reflects current storage.
func (s *Scheduler) CompleteTask(agent uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[agent]
	if len(q) == 0 {
		return
	}
	q = q[1:]
	if len(q) == 0 {
		delete(s.queues, agent)
		delete(s.cycles, agent)
		return
	}
	s.queues[agent] = q
}

// AbandonCycle drops agent's queue and cached cycle while keeping the job.
func (s *Scheduler) AbandonCycle(agent uint64) {
	s.mu.Lock()
	delete(s.queues, agent)
	delete(s.cycles, agent)
	s.mu.Unlock()
}

// Pending returns a copy of agent's remaining tasks.
func (s *Scheduler) Pending(agent uint64) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[agent]
	out := make([]Task, len(q))
	copy(out, q)
	return out
}

// Generate builds the work cycle of job at workplace. Two agents with the
// same job, workplace and storage state get identical cycles.
func (s *Scheduler) Generate(job string, workplace buildings.BuildingID) []Task {
	prof, ok := Lookup(job)
	if !ok {
		return nil
	}
	origin, _, ok := s.blds.Footprint(workplace)
	if !ok {
		return nil
	}
	entrance, ok := s.blds.Entrance(workplace, origin)
	if !ok {
		entrance = origin
	}

	cycle := make([]Task, 0, 5)
	if prof.NodeBased {
		cycle = append(cycle, MoveTo{Target: NodeTarget{Type: prof.Node}})
	} else {
		cycle = append(cycle, MoveTo{Target: BuildingTarget{ID: workplace}})
	}
	cycle = append(cycle, Harvest{Resource: prof.Resource, Amount: prof.Amount})
	if s.blds.HasStorage() {
		cycle = append(cycle,
			MoveTo{Target: BuildingTarget{Storage: true}},
			Deposit{Resource: prof.Resource},
		)
	}
	return append(cycle, ReturnToWorkplace{Position: entrance})
}

// Assignment returns agent's current job.
func (s *Scheduler) Assignment(agent uint64) (Assignment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byAgent[agent]
	return a, ok
}

// Assignments returns every job in agent order.
func (s *Scheduler) Assignments() []Assignment {
	s.mu.Lock()
	out := make([]Assignment, 0, len(s.byAgent))
	for _, a := range s.byAgent {
		out = append(out, a)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out
}

// Workers returns the agents working at building, in id order.
func (s *Scheduler) Workers(building buildings.BuildingID) []uint64 {
	s.mu.Lock()
	set := s.byBuilding[building]
	out := make([]uint64, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WorkerCount returns how many agents work at building.
func (s *Scheduler) WorkerCount(building buildings.BuildingID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byBuilding[building])
}

// HandleEvent keeps assignments consistent with the building economy:
// a removed building loses its workers, and capacity is re-read after
// removal or upgrade.
func (s *Scheduler) HandleEvent(e events.Event) {
	b := buildings.BuildingID(e.BuildingID)
	switch e.Kind {
	case events.BuildingRemoved:
		s.mu.Lock()
		delete(s.capacity, b)
		s.mu.Unlock()
		for _, agent := range s.Workers(b) {
			s.Unassign(agent)
		}
	case events.BuildingUpgraded:
		s.mu.Lock()
		delete(s.capacity, b)
		s.mu.Unlock()
	}
}
