// Package engine provides the tick-based simulation loop and wires the
// village services together.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Engine drives the simulation forward. Every tick calls OnTick; the
// layered callbacks run every N ticks as configured.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Interval time.Duration // Base tick interval (default 100ms)

	BuildingEvery uint64 // Ticks per building tick (default 10 = 1s)
	SaveEvery     uint64 // Ticks per autosave, 0 = never
	SeasonEvery   uint64 // Ticks per season, 0 = never

	// Callbacks for each tick layer, populated during setup.
	OnTick         func(tick uint64)
	OnBuildingTick func(tick uint64)
	OnSave         func(tick uint64)
	OnSeason       func(tick uint64)

	mu    sync.Mutex
	speed float64 // 1.0 = real-time, 0 = paused
}

// NewEngine creates a simulation engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Interval:      100 * time.Millisecond,
		BuildingEvery: 10,
		speed:         1.0,
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. 0 pauses; negative values are
// treated as 0.
func (e *Engine) SetSpeed(s float64) {
	if s < 0 {
		s = 0
	}
	e.mu.Lock()
	e.speed = s
	e.mu.Unlock()
}

// Run starts the simulation loop and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed(), "interval", e.Interval)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "tick", e.Tick)
			return
		case <-timer.C:
		}

		speed := e.Speed()
		if speed <= 0 {
			// Paused: check again shortly.
			timer.Reset(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		e.Step()

		target := time.Duration(float64(e.Interval) / speed)
		wait := target - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}
	if e.BuildingEvery > 0 && e.Tick%e.BuildingEvery == 0 && e.OnBuildingTick != nil {
		e.OnBuildingTick(e.Tick)
	}
	if e.SeasonEvery > 0 && e.Tick%e.SeasonEvery == 0 && e.OnSeason != nil {
		e.OnSeason(e.Tick)
	}
	if e.SaveEvery > 0 && e.Tick%e.SaveEvery == 0 && e.OnSave != nil {
		e.OnSave(e.Tick)
	}
}

// TicksFor converts a wall-clock duration into a whole number of ticks of
// interval, rounding down but never below 1 for positive durations.
func TicksFor(d, interval time.Duration) uint64 {
	if d <= 0 || interval <= 0 {
		return 0
	}
	n := uint64(d / interval)
	if n == 0 {
		n = 1
	}
	return n
}

// GameTime returns a human-readable clock for a tick, counting one game
// minute per building tick.
func GameTime(tick, buildingEvery uint64) string {
	if buildingEvery == 0 {
		buildingEvery = 1
	}
	totalMinutes := tick / buildingEvery
	minutes := totalMinutes % 60
	totalHours := totalMinutes / 60
	hours := totalHours % 24
	days := totalHours/24 + 1
	return fmt.Sprintf("Day %d, %d:%02d", days, hours, minutes)
}
