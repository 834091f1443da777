package api

import (
	"log/slog"
	"net/http"

	"github.com/talgya/hearth/internal/agents"
	"github.com/talgya/hearth/internal/buildings"
	"github.com/talgya/hearth/internal/jobs"
	"github.com/talgya/hearth/internal/persistence"
	"github.com/talgya/hearth/internal/resources"
	"github.com/talgya/hearth/internal/world"
)

func (s *Server) handleBuildings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, s.Sim.Buildings.All())
		return
	}

	var req struct {
		Type string `json:"type"`
		X    int    `json:"x"`
		Y    int    `json:"y"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if _, ok := s.Sim.Catalog.Get(req.Type); !ok {
		http.Error(w, "unknown building type", http.StatusBadRequest)
		return
	}
	id, ok := s.Sim.Buildings.Place(req.Type, world.GridCoord{X: req.X, Y: req.Y})
	if !ok {
		http.Error(w, "cannot place building there (blocked, locked, or unaffordable)", http.StatusConflict)
		return
	}
	slog.Info("building placed via API", "id", id, "type", req.Type, "x", req.X, "y", req.Y)

	b, _ := s.Sim.Buildings.Get(id)
	writeJSONStatus(w, http.StatusCreated, b)
}

type buildingRequest struct {
	ID buildings.BuildingID `json:"id"`
}

func (s *Server) handleRemoveBuilding(w http.ResponseWriter, r *http.Request) {
	var req buildingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.Sim.Buildings.Remove(req.ID) {
		http.Error(w, "building not found", http.StatusNotFound)
		return
	}
	slog.Info("building removed via API", "id", req.ID)
	writeJSON(w, map[string]any{"id": req.ID, "removed": true})
}

func (s *Server) handleUpgradeBuilding(w http.ResponseWriter, r *http.Request) {
	var req buildingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.Sim.Buildings.Exists(req.ID) {
		http.Error(w, "building not found", http.StatusNotFound)
		return
	}
	if !s.Sim.Buildings.Upgrade(req.ID) {
		http.Error(w, "cannot upgrade (top level, already upgrading, or unaffordable)", http.StatusConflict)
		return
	}
	b, _ := s.Sim.Buildings.Get(req.ID)
	slog.Info("building upgrade started via API", "id", req.ID, "level", b.Level, "upgrade_left", b.UpgradeLeft)
	writeJSON(w, b)
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Agent    agents.AgentID       `json:"agent"`
		Building buildings.BuildingID `json:"building"`
		Job      string               `json:"job"` // empty = the building's own job
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if _, ok := s.Sim.Villagers.Get(req.Agent); !ok {
		http.Error(w, "villager not found", http.StatusNotFound)
		return
	}
	typeID, ok := s.Sim.Buildings.TypeOf(req.Building)
	if !ok {
		http.Error(w, "building not found", http.StatusNotFound)
		return
	}
	if req.Job == "" {
		if bt, ok := s.Sim.Catalog.Get(typeID); ok {
			req.Job = bt.Job
		}
	}
	if req.Job == "" {
		http.Error(w, "building offers no job", http.StatusBadRequest)
		return
	}
	if !s.Sim.Jobs.Assign(uint64(req.Agent), req.Building, req.Job) {
		http.Error(w, "assignment rejected (building full or job unknown)", http.StatusConflict)
		return
	}
	slog.Info("villager assigned via API", "agent", req.Agent, "building", req.Building, "job", req.Job)
	writeJSON(w, map[string]any{"agent": req.Agent, "building": req.Building, "job": req.Job})
}

func (s *Server) handleUnassign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Agent agents.AgentID `json:"agent"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.Sim.Jobs.Unassign(uint64(req.Agent)) {
		http.Error(w, "villager has no job", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"agent": req.Agent, "unassigned": true})
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	tile := world.GridCoord{X: req.X, Y: req.Y}
	if !s.Sim.Grid.InBounds(tile) {
		http.Error(w, "tile out of bounds", http.StatusBadRequest)
		return
	}
	id, ok := s.Sim.Villagers.Spawn(tile)
	if !ok {
		http.Error(w, "spawn failed", http.StatusConflict)
		return
	}
	v, _ := s.Sim.Villagers.Get(id)
	slog.Info("villager spawned via API", "id", id, "name", v.Name)
	writeJSONStatus(w, http.StatusCreated, v)
}

func (s *Server) handleRemoveVillager(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID agents.AgentID `json:"id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.Sim.Villagers.Remove(req.ID) {
		http.Error(w, "villager not found", http.StatusNotFound)
		return
	}
	slog.Info("villager removed via API", "id", req.ID)
	writeJSON(w, map[string]any{"id": req.ID, "removed": true})
}

// handleSend walks a villager to a tile ({x,y}) or to the nearest building
// of a type ({building_type}). A working villager resumes its cycle after.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Agent        agents.AgentID `json:"agent"`
		X            *int           `json:"x"`
		Y            *int           `json:"y"`
		BuildingType string         `json:"building_type"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if _, ok := s.Sim.Villagers.Get(req.Agent); !ok {
		http.Error(w, "villager not found", http.StatusNotFound)
		return
	}

	var target jobs.Target
	switch {
	case req.BuildingType != "":
		if _, ok := s.Sim.Catalog.Get(req.BuildingType); !ok {
			http.Error(w, "unknown building type", http.StatusBadRequest)
			return
		}
		if s.Sim.Buildings.CountType(req.BuildingType) == 0 {
			http.Error(w, "no building of that type", http.StatusConflict)
			return
		}
		target = jobs.BuildingTarget{TypeID: req.BuildingType}
	case req.X != nil && req.Y != nil:
		tile := world.GridCoord{X: *req.X, Y: *req.Y}
		if !s.Sim.Grid.InBounds(tile) {
			http.Error(w, "tile out of bounds", http.StatusBadRequest)
			return
		}
		target = jobs.PositionTarget{Coord: tile}
	default:
		http.Error(w, "need x and y, or building_type", http.StatusBadRequest)
		return
	}

	if !s.Sim.Jobs.Send(uint64(req.Agent), target) {
		http.Error(w, "send rejected", http.StatusConflict)
		return
	}
	slog.Info("villager sent via API", "agent", req.Agent, "target", target.String())
	writeJSON(w, map[string]any{"agent": req.Agent, "target": target.String()})
}

func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID resources.NodeID `json:"id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.Sim.Nodes.Remove(req.ID) {
		http.Error(w, "node not found", http.StatusNotFound)
		return
	}
	slog.Info("node removed via API", "id", req.ID)
	writeJSON(w, map[string]any{"id": req.ID, "removed": true})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil && s.SnapshotDir == "" {
		http.Error(w, "no storage configured", http.StatusServiceUnavailable)
		return
	}

	ws := s.Sim.Export()
	resp := map[string]any{"tick": ws.Tick, "message": "snapshot saved"}
	if s.DB != nil {
		if err := s.DB.SaveWorld(ws); err != nil {
			slog.Error("snapshot save failed", "error", err)
			http.Error(w, "snapshot failed", http.StatusInternalServerError)
			return
		}
	}
	if s.SnapshotDir != "" {
		h, path, err := persistence.WriteSnapshot(s.SnapshotDir, ws)
		if err != nil {
			slog.Error("snapshot file failed", "error", err)
			http.Error(w, "snapshot failed", http.StatusInternalServerError)
			return
		}
		resp["id"] = h.ID
		resp["path"] = path
	}
	writeJSON(w, resp)
}
