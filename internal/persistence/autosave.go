package persistence

import (
	"log/slog"

	"github.com/talgya/hearth/internal/engine"
)

// Autosaver writes the village and the events published since its last
// save. Events are tracked by bus sequence number, so several events in
// one tick are never split across saves and lost.
type Autosaver struct {
	sim     *engine.Simulation
	db      *DB
	lastSeq uint64
}

// NewAutosaver starts tracking after the events already on the bus, such
// as those produced by founding or restoring the village.
func NewAutosaver(sim *engine.Simulation, db *DB) *Autosaver {
	return &Autosaver{sim: sim, db: db, lastSeq: sim.Bus.Seq()}
}

// Save is called on the engine's save cadence and once at shutdown.
func (a *Autosaver) Save(tick uint64) {
	if err := a.db.SaveWorld(a.sim.Export()); err != nil {
		slog.Error("autosave failed", "tick", tick, "error", err)
		return
	}

	fresh := a.sim.Bus.Since(a.lastSeq)
	if len(fresh) > 0 {
		if err := a.db.SaveEvents(fresh); err != nil {
			slog.Error("event save failed", "tick", tick, "error", err)
			return
		}
		a.lastSeq = fresh[len(fresh)-1].Seq
	}
	slog.Debug("village saved", "tick", tick, "events", len(fresh))
}
