// Package persistence provides SQLite-based village storage and compressed
// snapshot files.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/hearth/internal/engine"
	"github.com/talgya/hearth/internal/events"
	"github.com/talgya/hearth/internal/resources"
	"github.com/talgya/hearth/internal/world"
)

// DB wraps a SQLite connection for village persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS buildings (
		id INTEGER PRIMARY KEY,
		type_id TEXT NOT NULL,
		origin_x INTEGER NOT NULL,
		origin_y INTEGER NOT NULL,
		level INTEGER NOT NULL,
		upgrade_left REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS nodes (
		id INTEGER PRIMARY KEY,
		type INTEGER NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		remaining REAL NOT NULL,
		original REAL NOT NULL,
		depleted_for REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS villagers (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		pos_x REAL NOT NULL,
		pos_y REAL NOT NULL,
		hunger REAL NOT NULL,
		efficiency REAL NOT NULL,
		carrying_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assignments (
		agent_id INTEGER PRIMARY KEY,
		building_id INTEGER NOT NULL,
		job TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS resources (
		name TEXT PRIMARY KEY,
		amount REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		kind TEXT NOT NULL,
		building_id INTEGER NOT NULL DEFAULT 0,
		agent_id INTEGER NOT NULL DEFAULT 0,
		node_id INTEGER NOT NULL DEFAULT 0,
		type_id TEXT NOT NULL DEFAULT '',
		resource TEXT NOT NULL DEFAULT '',
		amount REAL NOT NULL DEFAULT 0,
		state TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_assignments_building ON assignments(building_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type buildingRow struct {
	ID          uint64  `db:"id"`
	TypeID      string  `db:"type_id"`
	OriginX     int     `db:"origin_x"`
	OriginY     int     `db:"origin_y"`
	Level       int     `db:"level"`
	UpgradeLeft float64 `db:"upgrade_left"`
}

type nodeRow struct {
	ID          uint64  `db:"id"`
	Type        uint8   `db:"type"`
	X           int     `db:"x"`
	Y           int     `db:"y"`
	Remaining   float64 `db:"remaining"`
	Original    float64 `db:"original"`
	DepletedFor float64 `db:"depleted_for"`
}

type villagerRow struct {
	ID           uint64  `db:"id"`
	Name         string  `db:"name"`
	PosX         float64 `db:"pos_x"`
	PosY         float64 `db:"pos_y"`
	Hunger       float64 `db:"hunger"`
	Efficiency   float64 `db:"efficiency"`
	CarryingJSON string  `db:"carrying_json"`
}

type assignmentRow struct {
	AgentID    uint64 `db:"agent_id"`
	BuildingID uint64 `db:"building_id"`
	Job        string `db:"job"`
}

type resourceRow struct {
	Name   string  `db:"name"`
	Amount float64 `db:"amount"`
}

// SaveWorld writes the whole village in one transaction (full replace).
func (db *DB) SaveWorld(ws *engine.WorldState) error {
	slog.Info("saving village",
		"buildings", len(ws.Buildings),
		"nodes", len(ws.Nodes),
		"villagers", len(ws.Villagers),
		"tick", ws.Tick,
	)

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"buildings", "nodes", "villagers", "assignments", "resources"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, b := range ws.Buildings {
		_, err := tx.NamedExec(`INSERT INTO buildings (id, type_id, origin_x, origin_y, level, upgrade_left)
			VALUES (:id, :type_id, :origin_x, :origin_y, :level, :upgrade_left)`,
			buildingRow{ID: b.ID, TypeID: b.TypeID, OriginX: b.Origin.X, OriginY: b.Origin.Y, Level: b.Level, UpgradeLeft: b.UpgradeLeft})
		if err != nil {
			return fmt.Errorf("insert building %d: %w", b.ID, err)
		}
	}

	stmt, err := tx.Preparex(`INSERT INTO nodes (id, type, x, y, remaining, original, depleted_for)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, n := range ws.Nodes {
		if _, err := stmt.Exec(n.ID, uint8(n.Type), n.Position.X, n.Position.Y, n.Remaining, n.Original, n.DepletedFor); err != nil {
			return fmt.Errorf("insert node %d: %w", n.ID, err)
		}
	}

	for _, v := range ws.Villagers {
		carrying, err := json.Marshal(v.Carrying)
		if err != nil {
			return fmt.Errorf("encode villager %d load: %w", v.ID, err)
		}
		_, err = tx.Exec(`INSERT INTO villagers (id, name, pos_x, pos_y, hunger, efficiency, carrying_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			v.ID, v.Name, v.Position.X, v.Position.Y, v.Hunger, v.Efficiency, string(carrying))
		if err != nil {
			return fmt.Errorf("insert villager %d: %w", v.ID, err)
		}
	}

	for _, a := range ws.Assignments {
		_, err := tx.Exec("INSERT INTO assignments (agent_id, building_id, job) VALUES (?, ?, ?)",
			a.Agent, a.Building, a.Job)
		if err != nil {
			return fmt.Errorf("insert assignment %d: %w", a.Agent, err)
		}
	}

	for res, amt := range ws.Resources {
		if _, err := tx.Exec("INSERT INTO resources (name, amount) VALUES (?, ?)", res, amt); err != nil {
			return fmt.Errorf("insert resource %s: %w", res, err)
		}
	}

	meta := map[string]string{
		"last_tick": strconv.FormatUint(ws.Tick, 10),
		"season":    strconv.Itoa(int(ws.Season)),
		"seed":      strconv.FormatInt(ws.Seed, 10),
	}
	for k, v := range meta {
		if _, err := tx.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("village saved")
	return nil
}

// HasWorldState reports whether a village has been saved before.
func (db *DB) HasWorldState() bool {
	_, err := db.GetMeta("last_tick")
	return err == nil
}

// LoadWorld reads the saved village.
func (db *DB) LoadWorld() (*engine.WorldState, error) {
	ws := &engine.WorldState{Resources: make(map[string]float64)}

	tick, err := db.GetMeta("last_tick")
	if err != nil {
		return nil, fmt.Errorf("no saved village: %w", err)
	}
	if ws.Tick, err = strconv.ParseUint(tick, 10, 64); err != nil {
		return nil, fmt.Errorf("parse last_tick: %w", err)
	}
	if s, err := db.GetMeta("season"); err == nil {
		if v, err := strconv.ParseUint(s, 10, 8); err == nil {
			ws.Season = uint8(v)
		}
	}
	if s, err := db.GetMeta("seed"); err == nil {
		ws.Seed, _ = strconv.ParseInt(s, 10, 64)
	}

	var brows []buildingRow
	if err := db.conn.Select(&brows, "SELECT id, type_id, origin_x, origin_y, level, upgrade_left FROM buildings ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load buildings: %w", err)
	}
	for _, r := range brows {
		ws.Buildings = append(ws.Buildings, engine.BuildingState{
			ID: r.ID, TypeID: r.TypeID, Origin: world.GridCoord{X: r.OriginX, Y: r.OriginY}, Level: r.Level,
			UpgradeLeft: r.UpgradeLeft,
		})
	}

	var nrows []nodeRow
	if err := db.conn.Select(&nrows, "SELECT id, type, x, y, remaining, original, depleted_for FROM nodes ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	for _, r := range nrows {
		ws.Nodes = append(ws.Nodes, engine.NodeState{
			ID: r.ID, Type: resources.NodeType(r.Type), Position: world.GridCoord{X: r.X, Y: r.Y},
			Remaining: r.Remaining, Original: r.Original, DepletedFor: r.DepletedFor,
		})
	}

	var vrows []villagerRow
	if err := db.conn.Select(&vrows, "SELECT id, name, pos_x, pos_y, hunger, efficiency, carrying_json FROM villagers ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load villagers: %w", err)
	}
	for _, r := range vrows {
		var carrying map[string]float64
		if err := json.Unmarshal([]byte(r.CarryingJSON), &carrying); err != nil {
			return nil, fmt.Errorf("decode villager %d load: %w", r.ID, err)
		}
		ws.Villagers = append(ws.Villagers, engine.VillagerState{
			ID: r.ID, Name: r.Name, Position: world.WorldPos{X: r.PosX, Y: r.PosY},
			Hunger: r.Hunger, Efficiency: r.Efficiency, Carrying: carrying,
		})
	}

	var arows []assignmentRow
	if err := db.conn.Select(&arows, "SELECT agent_id, building_id, job FROM assignments ORDER BY agent_id"); err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	for _, r := range arows {
		ws.Assignments = append(ws.Assignments, engine.AssignmentState{Agent: r.AgentID, Building: r.BuildingID, Job: r.Job})
	}

	var rrows []resourceRow
	if err := db.conn.Select(&rrows, "SELECT name, amount FROM resources"); err != nil {
		return nil, fmt.Errorf("load resources: %w", err)
	}
	for _, r := range rrows {
		ws.Resources[r.Name] = r.Amount
	}
	return ws, nil
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(evs []events.Event) error {
	if len(evs) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range evs {
		_, err := tx.Exec(`INSERT INTO events
			(tick, kind, building_id, agent_id, node_id, type_id, resource, amount, state)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.Tick, string(e.Kind), e.BuildingID, e.AgentID, e.NodeID, e.TypeID, e.Resource, e.Amount, e.State,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]events.Event, error) {
	var evs []events.Event
	err := db.conn.Select(&evs,
		`SELECT tick, kind, building_id AS buildingid, agent_id AS agentid, node_id AS nodeid,
			type_id AS typeid, resource, amount, state
		FROM events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	return evs, err
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. A missing key returns sql.ErrNoRows.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}
