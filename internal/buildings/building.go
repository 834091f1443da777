// Package buildings owns placed buildings: their footprints, capacities,
// upgrade timers and the fixed-interval production tick that moves goods in
// and out of the shared resource pool.
package buildings

import (
	"sort"

	"github.com/talgya/hearth/internal/world"
)

// BuildingID identifies a placed building. IDs come from a monotonic
// counter and are never reused within a run.
type BuildingID uint64

// State is derived from capacities and timers on every read.
type State uint8

const (
	StateOperational State = iota
	StateNeedsWorkers
	StateFullCapacity
	StateConstruction
)

var stateNames = [...]string{"operational", "needs_workers", "full_capacity", "construction"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Modifier categories understood by Popularity and Modifiers.
const (
	CategoryProduction     = "production"
	CategoryMovement       = "movement"
	CategoryWorkEfficiency = "work_efficiency"
)

// Capacity is what a building holds at its current level.
type Capacity struct {
	Housing int                `json:"housing"`
	Worker  int                `json:"worker"`
	Storage map[string]float64 `json:"storage,omitempty"`
}

// Building is a read-only view of a placed building.
type Building struct {
	ID       BuildingID      `json:"id"`
	TypeID   string          `json:"type_id"`
	Origin   world.GridCoord `json:"origin"`
	Size     world.GridCoord `json:"size"`
	Level    int             `json:"level"`
	Capacity Capacity        `json:"capacity"`
	Workers  []uint64        `json:"workers"`
	State    State           `json:"-"`
	StateStr string          `json:"state"`

	// UpgradeLeft is the remaining construction time in game minutes.
	UpgradeLeft float64 `json:"upgrade_left,omitempty"`
	Efficiency  float64 `json:"efficiency"`
	Storage     bool    `json:"storage,omitempty"`
}

// Pool is the shared resource store buildings pay into and produce to.
type Pool interface {
	Get(resource string) float64
	Deposit(resource string, amount float64) float64
	Consume(resource string, amount float64, allowNegative bool) bool
	Take(resource string, amount float64) float64
	CanAfford(cost map[string]float64) bool
	Pay(cost map[string]float64) bool
	AddCapacity(resource string, delta float64)
}

// Unlocks answers whether a building type may be placed yet.
type Unlocks interface {
	IsUnlocked(typeID string) bool
}

// Modifiers supplies read-only multipliers keyed by category.
type Modifiers interface {
	Multiplier(category string) float64
}

// Popularity tracks the village mood contributions of buildings and the
// food types on offer, and turns them into multipliers.
type Popularity interface {
	Modifiers
	AddEffects(fear, goodThings float64)
	SetFoodAvailable(resource string, available bool)
}

// Workforce reports who works where and how well.
type Workforce interface {
	Workers(id BuildingID) []uint64
	WorkEfficiency(agent uint64) float64
}

// AllUnlocked permits every building type.
type AllUnlocked struct{}

func (AllUnlocked) IsUnlocked(string) bool { return true }

// UnlockSet permits only the listed types. It is not safe for concurrent
// mutation; build it before handing it to the economy.
type UnlockSet map[string]bool

func NewUnlockSet(ids ...string) UnlockSet {
	s := make(UnlockSet, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

func (s UnlockSet) IsUnlocked(typeID string) bool { return s[typeID] }

// IDs returns the unlocked types in sorted order.
func (s UnlockSet) IDs() []string {
	out := make([]string, 0, len(s))
	for id, ok := range s {
		if ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

type noModifiers struct{}

func (noModifiers) Multiplier(string) float64 { return 1 }

type noPopularity struct{ noModifiers }

func (noPopularity) AddEffects(float64, float64)   {}
func (noPopularity) SetFoodAvailable(string, bool) {}

type noWorkforce struct{}

func (noWorkforce) Workers(BuildingID) []uint64   { return nil }
func (noWorkforce) WorkEfficiency(uint64) float64 { return 1 }
