// Package events carries notifications out of the simulation core.
// Services publish; the job scheduler, the engine log and the websocket
// stream consume.
package events

import (
	"sort"
	"sync"
)

// Kind names a notification type.
type Kind string

const (
	BuildingPlaced       Kind = "building_placed"
	BuildingRemoved      Kind = "building_removed"
	BuildingStateChanged Kind = "building_state_changed"
	BuildingUpgraded     Kind = "building_upgraded"
	JobAssigned          Kind = "job_assigned"
	JobUnassigned        Kind = "job_unassigned"
	NodeHarvested        Kind = "node_harvested"
	NodeDepleted         Kind = "node_depleted"
	VillagerSpawned      Kind = "villager_spawned"
	VillagerRemoved      Kind = "villager_removed"
)

// Event is a notable occurrence in the village.
// Zero-valued identifiers mean "not applicable".
type Event struct {
	Seq        uint64  `json:"seq"`
	Tick       uint64  `json:"tick"`
	Kind       Kind    `json:"kind"`
	BuildingID uint64  `json:"building_id,omitempty"`
	AgentID    uint64  `json:"agent_id,omitempty"`
	NodeID     uint64  `json:"node_id,omitempty"`
	TypeID     string  `json:"type_id,omitempty"`
	Resource   string  `json:"resource,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
	State      string  `json:"state,omitempty"`
}

// Publisher is what services need to emit events.
type Publisher interface {
	Publish(e Event)
}

// Discard drops every event. Used when a service is built without a bus.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}

const (
	recentCap   = 1000
	subscribeCh = 256
)

// Bus fans events out to synchronous listeners and buffered subscribers.
type Bus struct {
	mu        sync.Mutex
	tick      uint64
	seq       uint64
	listeners []func(Event)
	subs      map[int]chan Event
	nextSub   int
	recent    []Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// SetTick stamps subsequent events that carry no tick of their own.
func (b *Bus) SetTick(tick uint64) {
	b.mu.Lock()
	b.tick = tick
	b.mu.Unlock()
}

// Listen registers fn to be called synchronously for every event.
// Listeners run on the publishing goroutine, after the publisher has
// released its own locks, so they may call back into services.
func (b *Bus) Listen(fn func(Event)) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

// Subscribe returns a buffered channel receiving every event.
// Slow subscribers miss events rather than stalling the simulation.
func (b *Bus) Subscribe() (int, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSub++
	ch := make(chan Event, subscribeCh)
	b.subs[b.nextSub] = ch
	return b.nextSub, ch
}

// Unsubscribe closes and removes a subscription.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}

// Publish numbers e, then delivers it to subscribers and listeners.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	if e.Tick == 0 {
		e.Tick = b.tick
	}
	b.seq++
	e.Seq = b.seq
	b.recent = append(b.recent, e)
	if len(b.recent) > recentCap {
		b.recent = b.recent[len(b.recent)-recentCap:]
	}
	listeners := make([]func(Event), len(b.listeners))
	copy(listeners, b.listeners)
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(e)
	}
}

// Recent returns up to limit of the most recent events, oldest first.
func (b *Bus) Recent(limit int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	start := 0
	if limit > 0 && len(b.recent) > limit {
		start = len(b.recent) - limit
	}
	out := make([]Event, len(b.recent)-start)
	copy(out, b.recent[start:])
	return out
}

// Seq returns the sequence number of the last published event.
func (b *Bus) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Since returns the retained events numbered after seq, oldest first.
// Events that have already left the recent buffer are not returned.
func (b *Bus) Since(seq uint64) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := sort.Search(len(b.recent), func(i int) bool { return b.recent[i].Seq > seq })
	out := make([]Event, len(b.recent)-i)
	copy(out, b.recent[i:])
	return out
}
