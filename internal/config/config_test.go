package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Sim.TickInterval != 100*time.Millisecond || cfg.Sim.BuildingInterval != time.Second {
		t.Fatalf("unexpected intervals: %+v", cfg.Sim)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("  ")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.World.Width != 128 {
		t.Fatalf("width = %d", cfg.World.Width)
	}
}

func TestLoadOverridesAndEnv(t *testing.T) {
	t.Setenv(AdminKeyEnv, " secret ")
	path := filepath.Join(t.TempDir(), "hearth.yaml")
	body := `
seed: 7
world:
  width: 40
  height: 30
sim:
  tick_interval: 50ms
  parallel_agents: true
  workers: 4
villager:
  speed: 20
unlocked: [" Hut ", stockpile]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Seed != 7 || cfg.World.Width != 40 || cfg.World.Height != 30 {
		t.Fatalf("world not overridden: %+v", cfg.World)
	}
	if cfg.Sim.TickInterval != 50*time.Millisecond || !cfg.Sim.ParallelAgents || cfg.Sim.Workers != 4 {
		t.Fatalf("sim not overridden: %+v", cfg.Sim)
	}
	if cfg.Villager.Speed != 20 || cfg.Villager.CarryCapacity != 10 {
		t.Fatalf("villager = %+v", cfg.Villager)
	}
	if cfg.Unlocked[0] != "hut" {
		t.Fatalf("unlocked not normalized: %q", cfg.Unlocked[0])
	}
	if cfg.API.AdminKey != "secret" {
		t.Fatalf("admin key = %q", cfg.API.AdminKey)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero width", func(c *Config) { c.World.Width = 0 }, "world size"},
		{"building faster than tick", func(c *Config) { c.Sim.BuildingInterval = time.Millisecond }, "building_interval"},
		{"no speed", func(c *Config) { c.Villager.Speed = 0 }, "speed"},
		{"short max harvest", func(c *Config) { c.Villager.MaxHarvestTime = 1 }, "max_harvest_time"},
		{"bad port", func(c *Config) { c.API.Port = 70000 }, "api.port"},
		{"negative stock", func(c *Config) { c.StartingResources["wood"] = -1 }, "starting_resources.wood"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("world: [unclosed"), 0o644)
	if _, err := Load(path); err == nil {
		t.Fatal("expected a parse error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected a read error")
	}
}
