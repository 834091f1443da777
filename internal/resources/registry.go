package resources

import (
	"sync"

	"github.com/talgya/hearth/internal/events"
	"github.com/talgya/hearth/internal/world"
)

// Registry owns every resource node. All methods are safe for concurrent
// use; Reserve is an atomic check-and-set under the registry lock.
//
// Reservations are advisory: Harvest does not consult them. Callers must
// hold a reservation before harvesting.
type Registry struct {
	mu     sync.Mutex
	nodes  map[NodeID]*Node
	order  []NodeID // insertion order, used as scan order
	byTile map[world.GridCoord]NodeID
	nextID NodeID
	clock  float64 // accumulated seconds, drives respawn

	pub events.Publisher
}

// NewRegistry creates an empty registry. pub may be nil.
func NewRegistry(pub events.Publisher) *Registry {
	if pub == nil {
		pub = events.Discard
	}
	return &Registry{
		nodes:  make(map[NodeID]*Node),
		byTile: make(map[world.GridCoord]NodeID),
		nextID: 1,
		pub:    pub,
	}
}

// Place creates a node at pos. amount <= 0 uses the type's default.
// Fails if the type is unknown or the tile already holds a node.
func (r *Registry) Place(t NodeType, pos world.GridCoord, amount float64) (NodeID, bool) {
	if !t.Valid() {
		return 0, false
	}
	if amount <= 0 {
		amount = defaultAmounts[t]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byTile[pos]; taken {
		return 0, false
	}
	id := r.nextID
	r.nextID++
	r.nodes[id] = &Node{
		ID:        id,
		Type:      t,
		Position:  pos,
		Resource:  t.Resource(),
		Remaining: amount,
		Original:  amount,
	}
	r.order = append(r.order, id)
	r.byTile[pos] = id
	return id, true
}

// Remove deletes a node, dropping any reservation on it.
func (r *Registry) Remove(id NodeID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[id]
	if !ok {
		return false
	}
	delete(r.nodes, id)
	delete(r.byTile, n.Position)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a copy of the node.
func (r *Registry) Get(id NodeID) (Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return Node{}, false
	}
	return r.view(n), true
}

func (r *Registry) view(n *Node) Node {
	out := *n
	if n.Depleted {
		out.DepletedFor = r.clock - n.depletedAt
	}
	return out
}

// Exists reports whether id names a live node.
func (r *Registry) Exists(id NodeID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.nodes[id]
	return ok
}

// Harvest takes up to amount from the node and returns what was taken.
// Unknown or depleted nodes yield 0.
func (r *Registry) Harvest(id NodeID, amount float64) float64 {
	if amount <= 0 {
		return 0
	}

	r.mu.Lock()
	n, ok := r.nodes[id]
	if !ok || n.Depleted {
		r.mu.Unlock()
		return 0
	}
	taken := amount
	if taken > n.Remaining {
		taken = n.Remaining
	}
	n.Remaining -= taken
	justDepleted := false
	if n.Remaining <= 0 {
		n.Remaining = 0
		n.Depleted = true
		n.depletedAt = r.clock
		justDepleted = true
	}
	holder, resource := n.ReservedBy, n.Resource
	r.mu.Unlock()

	r.pub.Publish(events.Event{
		Kind:     events.NodeHarvested,
		NodeID:   uint64(id),
		AgentID:  holder,
		Resource: resource,
		Amount:   taken,
	})
	if justDepleted {
		r.pub.Publish(events.Event{Kind: events.NodeDepleted, NodeID: uint64(id), Resource: resource})
	}
	return taken
}

// Reserve claims the node for agent. It succeeds when the node is free or
// already held by agent, and fails without side effects otherwise.
func (r *Registry) Reserve(id NodeID, agent uint64) bool {
	if agent == 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[id]
	if !ok {
		return false
	}
	if n.ReservedBy != 0 && n.ReservedBy != agent {
		return false
	}
	n.ReservedBy = agent
	return true
}

// Release clears the reservation. agent == 0 clears unconditionally;
// otherwise only the current holder's claim is cleared.
func (r *Registry) Release(id NodeID, agent uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[id]
	if !ok || n.ReservedBy == 0 {
		return false
	}
	if agent != 0 && n.ReservedBy != agent {
		return false
	}
	n.ReservedBy = 0
	return true
}

// ReleaseAll drops every reservation held by agent.
func (r *Registry) ReleaseAll(agent uint64) int {
	if agent == 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	released := 0
	for _, n := range r.nodes {
		if n.ReservedBy == agent {
			n.ReservedBy = 0
			released++
		}
	}
	return released
}

// HolderOf returns the agent holding the node, or 0.
func (r *Registry) HolderOf(id NodeID) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[id]; ok {
		return n.ReservedBy
	}
	return 0
}

// NearestAvailable finds the closest non-depleted node of type t within
// maxDistance tiles of pos (maxDistance <= 0 means unbounded). Reserved
// nodes are skipped when excludeReserved is set. Ties go to the node
// scanned first.
func (r *Registry) NearestAvailable(pos world.GridCoord, t NodeType, maxDistance float64, excludeReserved bool) (NodeID, bool) {
	return r.NearestAvailableExcept(pos, t, maxDistance, excludeReserved, 0)
}

// NearestAvailableExcept is NearestAvailable that also skips one node.
func (r *Registry) NearestAvailableExcept(pos world.GridCoord, t NodeType, maxDistance float64, excludeReserved bool, except NodeID) (NodeID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	limit := -1.0
	if maxDistance > 0 {
		limit = maxDistance * maxDistance
	}

	var best NodeID
	bestDist := -1
	for _, id := range r.order {
		n := r.nodes[id]
		if n.Type != t || n.Depleted || id == except {
			continue
		}
		if excludeReserved && n.ReservedBy != 0 {
			continue
		}
		d := world.DistSq(pos, n.Position)
		if limit >= 0 && float64(d) > limit {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = id, d
		}
	}
	return best, bestDist >= 0
}

// Reset refills a node to its original amount and clears its reservation.
func (r *Registry) Reset(id NodeID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return false
	}
	n.Remaining = n.Original
	n.Depleted = n.Remaining <= 0
	n.ReservedBy = 0
	return true
}

// Advance moves the registry clock forward by dt seconds.
func (r *Registry) Advance(dt float64) {
	r.mu.Lock()
	r.clock += dt
	r.mu.Unlock()
}

// Backdate marks a depleted node as having been dry for elapsed seconds,
// so a restored village keeps its regrowth progress.
func (r *Registry) Backdate(id NodeID, elapsed float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok || !n.Depleted {
		return false
	}
	n.depletedAt = r.clock - elapsed
	return true
}

// All returns copies of every node in scan order.
func (r *Registry) All() []Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Node, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.view(r.nodes[id]))
	}
	return out
}

// Count returns the number of nodes, and how many are depleted.
func (r *Registry) Count() (total, depleted int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.nodes {
		total++
		if n.Depleted {
			depleted++
		}
	}
	return total, depleted
}
