package economy

import (
	"math"
	"sort"
	"sync"
)

// DefaultStorageCapacity is the per-resource limit before any storage
// building adds to it.
const DefaultStorageCapacity = 100

// Pool is the village-wide resource store. Each resource has its own lock,
// so deposits of wood never wait on bread consumption; multi-resource
// operations (Pay) lock the involved stripes in name order.
type Pool struct {
	mu       sync.RWMutex // guards the stocks map itself
	stocks   map[string]*stock
	baseCap  float64
	uncapped map[string]bool
}

type stock struct {
	mu       sync.Mutex
	amount   float64
	capacity float64 // bonus on top of the pool's base capacity
}

// NewPool creates an empty pool. Resources listed in uncapped ignore
// storage capacity.
func NewPool(baseCapacity float64, uncapped ...string) *Pool {
	if baseCapacity <= 0 {
		baseCapacity = DefaultStorageCapacity
	}
	p := &Pool{
		stocks:   make(map[string]*stock),
		baseCap:  baseCapacity,
		uncapped: make(map[string]bool, len(uncapped)),
	}
	for _, r := range uncapped {
		p.uncapped[r] = true
	}
	return p
}

func (p *Pool) stripe(resource string) *stock {
	p.mu.RLock()
	s, ok := p.stocks[resource]
	p.mu.RUnlock()
	if ok {
		return s
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok = p.stocks[resource]; !ok {
		s = &stock{}
		p.stocks[resource] = s
	}
	return s
}

func (p *Pool) limit(resource string, s *stock) float64 {
	if p.uncapped[resource] {
		return math.Inf(1)
	}
	return p.baseCap + s.capacity
}

func validAmount(a float64) bool {
	return a > 0 && !math.IsNaN(a) && !math.IsInf(a, 0)
}

// Get returns the current stock of a resource.
func (p *Pool) Get(resource string) float64 {
	s := p.stripe(resource)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.amount
}

// Capacity returns the storage limit of a resource.
func (p *Pool) Capacity(resource string) float64 {
	s := p.stripe(resource)
	s.mu.Lock()
	defer s.mu.Unlock()
	return p.limit(resource, s)
}

// Space returns how much more of a resource fits.
func (p *Pool) Space(resource string) float64 {
	s := p.stripe(resource)
	s.mu.Lock()
	defer s.mu.Unlock()
	free := p.limit(resource, s) - s.amount
	if free < 0 {
		return 0
	}
	return free
}

// Add stores amount, clamped to capacity. Returns false when the amount is
// invalid or nothing fits.
func (p *Pool) Add(resource string, amount float64) bool {
	return p.Deposit(resource, amount) > 0
}

// Deposit stores as much of amount as fits and returns what was accepted.
func (p *Pool) Deposit(resource string, amount float64) float64 {
	if !validAmount(amount) {
		return 0
	}
	s := p.stripe(resource)
	s.mu.Lock()
	defer s.mu.Unlock()
	free := p.limit(resource, s) - s.amount
	if free <= 0 {
		return 0
	}
	if amount > free {
		amount = free
	}
	s.amount += amount
	return amount
}

// Consume removes amount. Without allowNegative it fails, changing
// nothing, when stock is short.
func (p *Pool) Consume(resource string, amount float64, allowNegative bool) bool {
	if !validAmount(amount) {
		return false
	}
	s := p.stripe(resource)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !allowNegative && s.amount < amount {
		return false
	}
	s.amount -= amount
	return true
}

// Take removes up to amount and returns what was removed; stock never goes
// below zero.
func (p *Pool) Take(resource string, amount float64) float64 {
	if !validAmount(amount) {
		return 0
	}
	s := p.stripe(resource)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.amount <= 0 {
		return 0
	}
	if amount > s.amount {
		amount = s.amount
	}
	s.amount -= amount
	return amount
}

// CanAfford reports whether every cost entry is in stock.
func (p *Pool) CanAfford(cost map[string]float64) bool {
	for res, amt := range cost {
		if amt > 0 && p.Get(res) < amt {
			return false
		}
	}
	return true
}

// Pay removes every cost entry atomically: either all are paid or none.
func (p *Pool) Pay(cost map[string]float64) bool {
	names := make([]string, 0, len(cost))
	for res, amt := range cost {
		if amt > 0 {
			names = append(names, res)
		}
	}
	sort.Strings(names)

	stripes := make([]*stock, len(names))
	for i, res := range names {
		stripes[i] = p.stripe(res)
		stripes[i].mu.Lock()
	}
	defer func() {
		for _, s := range stripes {
			s.mu.Unlock()
		}
	}()

	for i, res := range names {
		if stripes[i].amount < cost[res] {
			return false
		}
	}
	for i, res := range names {
		stripes[i].amount -= cost[res]
	}
	return true
}

// Refund returns a previously paid cost, clamped to capacity.
func (p *Pool) Refund(cost map[string]float64) {
	for res, amt := range cost {
		p.Deposit(res, amt)
	}
}

// AddCapacity raises (or, with a negative delta, lowers) a resource's
// storage limit. Stock above a lowered limit is kept but nothing more fits.
func (p *Pool) AddCapacity(resource string, delta float64) {
	s := p.stripe(resource)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capacity += delta
	if s.capacity < 0 {
		s.capacity = 0
	}
}

// Set overwrites a resource's stock. Used when restoring a saved village.
func (p *Pool) Set(resource string, amount float64) {
	s := p.stripe(resource)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.amount = amount
}

// Snapshot returns a copy of all stock levels.
func (p *Pool) Snapshot() map[string]float64 {
	p.mu.RLock()
	names := make([]string, 0, len(p.stocks))
	for res := range p.stocks {
		names = append(names, res)
	}
	p.mu.RUnlock()

	out := make(map[string]float64, len(names))
	for _, res := range names {
		out[res] = p.Get(res)
	}
	return out
}
