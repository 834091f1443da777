// Seasonal and popularity modifiers.
package engine

import (
	"log/slog"
	"sync"

	"github.com/talgya/hearth/internal/buildings"
)

// Season constants.
const (
	SeasonSpring = 0
	SeasonSummer = 1
	SeasonAutumn = 2
	SeasonWinter = 3
)

// SeasonName returns a human-readable season name.
func SeasonName(season uint8) string {
	switch season {
	case SeasonSpring:
		return "Spring"
	case SeasonSummer:
		return "Summer"
	case SeasonAutumn:
		return "Autumn"
	case SeasonWinter:
		return "Winter"
	default:
		return "Unknown"
	}
}

// seasonalMod returns the multiplier for a category in a season.
func seasonalMod(season uint8, category string) float64 {
	switch season {
	case SeasonSpring:
		if category == buildings.CategoryProduction {
			return 1.0
		}
	case SeasonSummer:
		switch category {
		case buildings.CategoryProduction:
			return 1.2 // Long days
		case buildings.CategoryMovement:
			return 1.1
		}
	case SeasonAutumn:
		if category == buildings.CategoryProduction {
			return 1.1 // Harvest
		}
	case SeasonWinter:
		switch category {
		case buildings.CategoryProduction:
			return 0.6
		case buildings.CategoryMovement:
			return 0.8 // Snow
		case buildings.CategoryWorkEfficiency:
			return 0.9
		}
	}
	return 1.0
}

// Seasons tracks the current season and serves its multipliers.
type Seasons struct {
	mu     sync.RWMutex
	season uint8
}

// NewSeasons starts in the given season.
func NewSeasons(start uint8) *Seasons {
	return &Seasons{season: start % 4}
}

// Current returns the current season.
func (s *Seasons) Current() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.season
}

// Set jumps to a season. Used when restoring a saved village.
func (s *Seasons) Set(season uint8) {
	s.mu.Lock()
	s.season = season % 4
	s.mu.Unlock()
}

// Advance moves to the next season and returns it.
func (s *Seasons) Advance() uint8 {
	s.mu.Lock()
	s.season = (s.season + 1) % 4
	season := s.season
	s.mu.Unlock()
	return season
}

// Multiplier implements the modifier lookup for the current season.
func (s *Seasons) Multiplier(category string) float64 {
	return seasonalMod(s.Current(), category)
}

// Popularity weights.
const (
	fearWeight    = 0.02
	goodWeight    = 0.02
	varietyWeight = 0.05
	minPopularity = 0.5
	maxPopularity = 1.5
)

// Popularity accumulates fear and good-things contributions of placed
// buildings and the set of food types on offer. Its production multiplier
// is 1 + good - fear + variety, clamped.
type Popularity struct {
	mu    sync.RWMutex
	fear  float64
	good  float64
	foods map[string]bool
}

// NewPopularity creates a neutral popularity tracker.
func NewPopularity() *Popularity {
	return &Popularity{foods: make(map[string]bool)}
}

// AddEffects adds (or with negative values retracts) building effects.
func (p *Popularity) AddEffects(fear, goodThings float64) {
	p.mu.Lock()
	p.fear += fear
	p.good += goodThings
	if p.fear < 0 {
		p.fear = 0
	}
	if p.good < 0 {
		p.good = 0
	}
	p.mu.Unlock()
}

// SetFoodAvailable marks a food type as offered or not.
func (p *Popularity) SetFoodAvailable(resource string, available bool) {
	p.mu.Lock()
	if available {
		p.foods[resource] = true
	} else {
		delete(p.foods, resource)
	}
	p.mu.Unlock()
}

// Snapshot returns fear, good things and the number of food types.
func (p *Popularity) Snapshot() (fear, goodThings float64, foodTypes int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fear, p.good, len(p.foods)
}

// Multiplier returns the popularity factor for production; other
// categories are unaffected.
func (p *Popularity) Multiplier(category string) float64 {
	if category != buildings.CategoryProduction {
		return 1
	}
	fear, good, foods := p.Snapshot()
	variety := 0.0
	if foods > 1 {
		variety = float64(foods-1) * varietyWeight
	}
	m := 1 + good*goodWeight - fear*fearWeight + variety
	if m < minPopularity {
		m = minPopularity
	}
	if m > maxPopularity {
		m = maxPopularity
	}
	return m
}

// processSeason rotates the season and logs the change.
func (s *Simulation) processSeason(tick uint64) {
	season := s.Seasons.Advance()
	fear, good, foods := s.Popularity.Snapshot()
	slog.Info("season change",
		"tick", tick,
		"season", SeasonName(season),
		"villagers", s.Villagers.Count(),
		"production_mod", s.Seasons.Multiplier(buildings.CategoryProduction),
		"fear", fear,
		"good_things", good,
		"food_types", foods,
	)
}
