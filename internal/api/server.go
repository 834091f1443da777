// Package api provides the HTTP API for observing and steering the village.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token and are rate limited per client.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/hearth/internal/engine"
	"github.com/talgya/hearth/internal/persistence"
	"github.com/talgya/hearth/internal/resources"
	"github.com/talgya/hearth/internal/world"
)

// Server serves the village state over HTTP.
type Server struct {
	Sim         *engine.Simulation
	Eng         *engine.Engine
	DB          *persistence.DB // nil = snapshots only go to SnapshotDir
	SnapshotDir string          // empty = no snapshot files
	Port        int
	AdminKey    string // Bearer token for POST endpoints. Empty = POST disabled.

	RateLimit float64 // POST requests per second per client; 0 = unlimited
	RateBurst int

	// Active websocket connection count (atomic).
	streamConns int32
	limiter     *RateLimiter
}

// Handler builds the routed handler. Start uses it; tests can call it
// directly.
func (s *Server) Handler() http.Handler {
	s.limiter = NewRateLimiter(s.RateLimit, s.RateBurst)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/nodes", s.handleNodes)
	mux.HandleFunc("/api/v1/villagers", s.handleVillagers)
	mux.HandleFunc("/api/v1/resources", s.handleResources)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/path", s.handlePath)
	mux.HandleFunc("/api/v1/catalog", s.handleCatalog)
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// GET lists, POST places.
	mux.HandleFunc("/api/v1/buildings", s.admin(s.handleBuildings))

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/buildings/remove", s.admin(s.handleRemoveBuilding))
	mux.HandleFunc("/api/v1/buildings/upgrade", s.admin(s.handleUpgradeBuilding))
	mux.HandleFunc("/api/v1/assign", s.admin(s.handleAssign))
	mux.HandleFunc("/api/v1/unassign", s.admin(s.handleUnassign))
	mux.HandleFunc("/api/v1/spawn", s.admin(s.handleSpawn))
	mux.HandleFunc("/api/v1/villagers/remove", s.admin(s.handleRemoveVillager))
	mux.HandleFunc("/api/v1/villagers/send", s.admin(s.handleSend))
	mux.HandleFunc("/api/v1/nodes/remove", s.admin(s.handleRemoveNode))
	mux.HandleFunc("/api/v1/speed", s.admin(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", s.admin(s.handleSnapshot))

	return corsMiddleware(mux)
}

// Start serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// admin wraps a handler to require bearer token auth and a rate limit
// token on POST requests. GET requests pass through (for endpoints that
// support both GET and POST).
func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	limited := RateLimitMiddleware(s.limiter, next)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next(w, r)
			return
		}
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no HEARTH_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		limited(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tick := s.Sim.CurrentTick()
	fear, good, foods := s.Sim.Popularity.Snapshot()
	status := map[string]any{
		"name":      "Hearth",
		"tick":      tick,
		"game_time": engine.GameTime(tick, s.Eng.BuildingEvery),
		"season":    engine.SeasonName(s.Sim.Seasons.Current()),
		"speed":     s.Eng.Speed(),
		"stats":     s.Sim.Stats(),
		"popularity": map[string]any{
			"fear":        fear,
			"good_things": good,
			"food_types":  foods,
		},
	}
	writeJSON(w, status)
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	nodes := s.Sim.Nodes.All()

	// Optional type filter, e.g. ?type=tree.
	if name := r.URL.Query().Get("type"); name != "" {
		t, ok := resources.ParseNodeType(name)
		if !ok {
			http.Error(w, "unknown node type", http.StatusBadRequest)
			return
		}
		filtered := nodes[:0]
		for _, n := range nodes {
			if n.Type == t {
				filtered = append(filtered, n)
			}
		}
		nodes = filtered
	}
	writeJSON(w, nodes)
}

func (s *Server) handleVillagers(w http.ResponseWriter, r *http.Request) {
	villagers := s.Sim.Villagers.All()
	sort.Slice(villagers, func(i, j int) bool { return villagers[i].ID < villagers[j].ID })
	writeJSON(w, villagers)
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	type stockLevel struct {
		Amount   float64  `json:"amount"`
		Capacity *float64 `json:"capacity,omitempty"` // nil = uncapped
	}
	out := make(map[string]stockLevel)
	for res, amount := range s.Sim.Pool.Snapshot() {
		lvl := stockLevel{Amount: amount}
		if c := s.Sim.Pool.Capacity(res); !math.IsInf(c, 1) {
			lvl.Capacity = &c
		}
		out[res] = lvl
	}
	writeJSON(w, out)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	writeJSON(w, s.Sim.Bus.Recent(limit))
}

// handlePath answers GET /api/v1/path?from=x,y&to=x,y with the route the
// villagers would walk.
func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	from, err := parseCoord(r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "from: "+err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseCoord(r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, "to: "+err.Error(), http.StatusBadRequest)
		return
	}

	path := s.Sim.Grid.Navigate(from, to)
	writeJSON(w, map[string]any{
		"from":      from,
		"to":        to,
		"reachable": path != nil,
		"steps":     s.Sim.Grid.PathLength(from, to),
		"path":      path,
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Catalog.All())
}

// parseCoord reads an "x,y" tile coordinate.
func parseCoord(v string) (world.GridCoord, error) {
	xs, ys, ok := strings.Cut(v, ",")
	if !ok {
		return world.GridCoord{}, errors.New("want x,y")
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return world.GridCoord{}, fmt.Errorf("bad x: %w", err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return world.GridCoord{}, fmt.Errorf("bad y: %w", err)
	}
	return world.GridCoord{X: x, Y: y}, nil
}

// decodeBody reads a JSON POST body into v, answering 405 or 400 itself.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
