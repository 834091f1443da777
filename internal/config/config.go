// Package config loads the village server configuration from YAML.
// Missing fields keep their defaults; secrets come from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AdminKeyEnv names the environment variable holding the admin API key.
const AdminKeyEnv = "HEARTH_ADMIN_KEY"

// Config is the full server configuration.
type Config struct {
	Seed int64 `yaml:"seed"`

	World    WorldConfig    `yaml:"world"`
	Sim      SimConfig      `yaml:"sim"`
	Villager VillagerConfig `yaml:"villager"`
	Storage  StorageConfig  `yaml:"storage"`
	API      APIConfig      `yaml:"api"`

	// Catalog is an optional building catalog file replacing the built-in one.
	Catalog string `yaml:"catalog"`
	// Unlocked limits placeable building types. Empty means all.
	Unlocked []string `yaml:"unlocked"`

	StartingResources map[string]float64 `yaml:"starting_resources"`
	StartingVillagers int                `yaml:"starting_villagers"`
}

type WorldConfig struct {
	Width         int `yaml:"width"`
	Height        int `yaml:"height"`
	PathCacheSize int `yaml:"path_cache_size"`
	// PoolCapacity is the base storage limit per resource before any
	// storage building.
	PoolCapacity float64 `yaml:"pool_capacity"`
}

type SimConfig struct {
	TickInterval     time.Duration `yaml:"tick_interval"`
	BuildingInterval time.Duration `yaml:"building_interval"`
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
	TicksPerSeason   uint64        `yaml:"ticks_per_season"`
	ParallelAgents   bool          `yaml:"parallel_agents"`
	Workers          int           `yaml:"workers"`
	AutoAssign       bool          `yaml:"auto_assign"`
}

type VillagerConfig struct {
	Speed           float64 `yaml:"speed"`
	CarryCapacity   float64 `yaml:"carry_capacity"`
	HarvestDuration float64 `yaml:"harvest_duration"`
	MaxHarvestTime  float64 `yaml:"max_harvest_time"`
	HungerDecay     float64 `yaml:"hunger_decay"`
}

type StorageConfig struct {
	DBPath      string `yaml:"db_path"`
	SnapshotDir string `yaml:"snapshot_dir"`
}

type APIConfig struct {
	Port      int     `yaml:"port"`
	RateLimit float64 `yaml:"rate_limit"` // admin requests per second
	RateBurst int     `yaml:"rate_burst"`
	AdminKey  string  `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := defaults()
	cfg.Normalize()
	return cfg
}

func defaults() Config {
	return Config{
		Seed: 42,
		World: WorldConfig{
			Width:         128,
			Height:        128,
			PathCacheSize: 4096,
			PoolCapacity:  200,
		},
		Sim: SimConfig{
			TickInterval:     100 * time.Millisecond,
			BuildingInterval: time.Second,
			AutosaveInterval: 5 * time.Minute,
			TicksPerSeason:   36000,
			Workers:          8,
			AutoAssign:       true,
		},
		Villager: VillagerConfig{
			Speed:           32,
			CarryCapacity:   10,
			HarvestDuration: 2,
			MaxHarvestTime:  20,
			HungerDecay:     0.002,
		},
		Storage: StorageConfig{
			DBPath:      "data/hearth.db",
			SnapshotDir: "data/snapshots",
		},
		API: APIConfig{
			Port:      8080,
			RateLimit: 2,
			RateBurst: 10,
		},
		StartingResources: map[string]float64{
			"wood":    120,
			"stone":   40,
			"berries": 30,
		},
		StartingVillagers: 4,
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Normalize trims strings, fills zero durations and reads environment
// overrides.
func (c *Config) Normalize() {
	c.Catalog = strings.TrimSpace(c.Catalog)
	c.Storage.DBPath = strings.TrimSpace(c.Storage.DBPath)
	c.Storage.SnapshotDir = strings.TrimSpace(c.Storage.SnapshotDir)
	for i, id := range c.Unlocked {
		c.Unlocked[i] = strings.ToLower(strings.TrimSpace(id))
	}
	if c.Sim.TickInterval <= 0 {
		c.Sim.TickInterval = 100 * time.Millisecond
	}
	if c.Sim.BuildingInterval <= 0 {
		c.Sim.BuildingInterval = time.Second
	}
	if c.Sim.Workers <= 0 {
		c.Sim.Workers = 1
	}
	if c.StartingResources == nil {
		c.StartingResources = map[string]float64{}
	}
	if key := strings.TrimSpace(os.Getenv(AdminKeyEnv)); key != "" {
		c.API.AdminKey = key
	}
}

// Validate rejects configurations the simulation cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.World.Width <= 0 || c.World.Height <= 0 {
		errs = append(errs, fmt.Errorf("world size %dx%d must be positive", c.World.Width, c.World.Height))
	}
	if c.World.PathCacheSize < 0 {
		errs = append(errs, errors.New("path_cache_size must be >= 0"))
	}
	if c.World.PoolCapacity < 0 {
		errs = append(errs, errors.New("pool_capacity must be >= 0"))
	}
	if c.Sim.BuildingInterval < c.Sim.TickInterval {
		errs = append(errs, fmt.Errorf("building_interval %s shorter than tick_interval %s", c.Sim.BuildingInterval, c.Sim.TickInterval))
	}
	if c.Sim.AutosaveInterval < 0 {
		errs = append(errs, errors.New("autosave_interval must be >= 0"))
	}
	if c.Villager.Speed <= 0 {
		errs = append(errs, errors.New("villager.speed must be > 0"))
	}
	if c.Villager.CarryCapacity <= 0 {
		errs = append(errs, errors.New("villager.carry_capacity must be > 0"))
	}
	if c.Villager.HarvestDuration <= 0 {
		errs = append(errs, errors.New("villager.harvest_duration must be > 0"))
	}
	if c.Villager.MaxHarvestTime < c.Villager.HarvestDuration {
		errs = append(errs, errors.New("villager.max_harvest_time must cover at least one swing"))
	}
	if c.Villager.HungerDecay < 0 {
		errs = append(errs, errors.New("villager.hunger_decay must be >= 0"))
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	for res, amt := range c.StartingResources {
		if amt < 0 {
			errs = append(errs, fmt.Errorf("starting_resources.%s is negative", res))
		}
	}
	if c.StartingVillagers < 0 {
		errs = append(errs, errors.New("starting_villagers must be >= 0"))
	}
	return errors.Join(errs...)
}
