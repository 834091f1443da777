// Package catalog holds building type definitions: footprint, cost,
// capacities, production, processing recipes and upgrade tiers.
// The default catalog is embedded; an override file can be loaded instead.
// Every catalog is validated against an embedded JSON schema.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/talgya/hearth/internal/economy"
	"github.com/talgya/hearth/internal/world"
)

//go:embed buildings.yaml
var defaultCatalog []byte

//go:embed buildings.schema.json
var schemaJSON string

const schemaURL = "buildings.schema.json"

// Size is a footprint in tiles.
type Size struct {
	W int `yaml:"w" json:"w"`
	H int `yaml:"h" json:"h"`
}

// Recipe converts an input resource into an output resource.
// Rates are per game minute; ProcessingTime is in game minutes.
type Recipe struct {
	Input          string  `yaml:"input" json:"input"`
	InputRate      float64 `yaml:"input_rate" json:"input_rate"`
	Output         string  `yaml:"output" json:"output"`
	OutputRate     float64 `yaml:"output_rate" json:"output_rate"`
	ProcessingTime float64 `yaml:"processing_time" json:"processing_time"`
}

// Upgrade is one level above the previous. Workers and Housing replace the
// previous values when non-zero; StorageBonus adds on top;
// ProductionMultiplier replaces when non-zero.
type Upgrade struct {
	Cost                 map[string]float64 `yaml:"cost" json:"cost"`
	Duration             float64            `yaml:"duration" json:"duration"`
	Workers              int                `yaml:"workers" json:"workers,omitempty"`
	Housing              int                `yaml:"housing" json:"housing,omitempty"`
	StorageBonus         map[string]float64 `yaml:"storage_bonus" json:"storage_bonus,omitempty"`
	ProductionMultiplier float64            `yaml:"production_multiplier" json:"production_multiplier,omitempty"`
}

// BuildingType describes one kind of building.
type BuildingType struct {
	ID            string             `yaml:"id" json:"id"`
	Name          string             `yaml:"name" json:"name"`
	Size          Size               `yaml:"size" json:"size"`
	Cost          map[string]float64 `yaml:"cost" json:"cost,omitempty"`
	Storage       bool               `yaml:"storage" json:"storage,omitempty"`
	StorageBonus  map[string]float64 `yaml:"storage_bonus" json:"storage_bonus,omitempty"`
	Housing       int                `yaml:"housing" json:"housing,omitempty"`
	Workers       int                `yaml:"workers" json:"workers,omitempty"`
	Job           string             `yaml:"job" json:"job,omitempty"`
	Efficiency    float64            `yaml:"efficiency" json:"efficiency,omitempty"`
	WorkerBased   bool               `yaml:"worker_based" json:"worker_based,omitempty"`
	Production    map[string]float64 `yaml:"production" json:"production,omitempty"`
	Consumption   map[string]float64 `yaml:"consumption" json:"consumption,omitempty"`
	AllowNegative bool               `yaml:"allow_negative" json:"allow_negative,omitempty"`
	Recipe        *Recipe            `yaml:"recipe" json:"recipe,omitempty"`
	Requires      []string           `yaml:"requires" json:"requires,omitempty"`
	Fear          float64            `yaml:"fear" json:"fear,omitempty"`
	GoodThings    float64            `yaml:"good_things" json:"good_things,omitempty"`
	Upgrades      []Upgrade          `yaml:"upgrades" json:"upgrades,omitempty"`
}

// Footprint returns the size as a grid offset.
func (bt *BuildingType) Footprint() world.GridCoord {
	return world.GridCoord{X: bt.Size.W, Y: bt.Size.H}
}

// MaxLevel returns the highest reachable level.
func (bt *BuildingType) MaxLevel() int {
	return 1 + len(bt.Upgrades)
}

// LevelStats returns worker capacity, housing capacity, cumulative storage
// bonus and production multiplier at the given level.
func (bt *BuildingType) LevelStats(level int) (workers, housing int, storage map[string]float64, multiplier float64) {
	workers, housing, multiplier = bt.Workers, bt.Housing, 1.0
	storage = make(map[string]float64, len(bt.StorageBonus))
	for res, amt := range bt.StorageBonus {
		storage[res] = amt
	}
	for i := 0; i < level-1 && i < len(bt.Upgrades); i++ {
		up := bt.Upgrades[i]
		if up.Workers > 0 {
			workers = up.Workers
		}
		if up.Housing > 0 {
			housing = up.Housing
		}
		if up.ProductionMultiplier > 0 {
			multiplier = up.ProductionMultiplier
		}
		for res, amt := range up.StorageBonus {
			storage[res] += amt
		}
	}
	return workers, housing, storage, multiplier
}

// FoodTypes returns the edible resources this building produces.
func (bt *BuildingType) FoodTypes() []string {
	var foods []string
	for res := range bt.Production {
		if economy.IsFood(res) {
			foods = append(foods, res)
		}
	}
	if bt.Recipe != nil && economy.IsFood(bt.Recipe.Output) {
		foods = append(foods, bt.Recipe.Output)
	}
	sort.Strings(foods)
	return foods
}

type catalogFile struct {
	Buildings []*BuildingType `yaml:"buildings"`
}

// Catalog is an immutable set of building types.
type Catalog struct {
	types map[string]*BuildingType
	order []string
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse validates YAML catalog data against the schema and builds a Catalog.
func Parse(data []byte) (*Catalog, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{types: make(map[string]*BuildingType, len(f.Buildings))}
	for _, bt := range f.Buildings {
		if _, dup := c.types[bt.ID]; dup {
			return nil, fmt.Errorf("duplicate building id %q", bt.ID)
		}
		if bt.Efficiency == 0 {
			bt.Efficiency = 1
		}
		if bt.Name == "" {
			bt.Name = bt.ID
		}
		c.types[bt.ID] = bt
		c.order = append(c.order, bt.ID)
	}
	for _, bt := range f.Buildings {
		for _, req := range bt.Requires {
			if _, ok := c.types[req]; !ok {
				return nil, fmt.Errorf("building %q requires unknown type %q", bt.ID, req)
			}
		}
		if bt.Recipe != nil && bt.Workers == 0 {
			return nil, fmt.Errorf("building %q has a recipe but no worker slots", bt.ID)
		}
		if bt.Workers > 0 && bt.Job == "" {
			return nil, fmt.Errorf("building %q has worker slots but no job", bt.ID)
		}
	}
	return c, nil
}

func validateSchema(data []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	// The validator wants JSON-shaped values, so round-trip through JSON.
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("catalog to json: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var jsonDoc any
	if err := dec.Decode(&jsonDoc); err != nil {
		return fmt.Errorf("catalog to json: %w", err)
	}
	if err := schema.Validate(jsonDoc); err != nil {
		return fmt.Errorf("catalog schema: %w", err)
	}
	return nil
}

// Get returns a building type by id.
func (c *Catalog) Get(id string) (*BuildingType, bool) {
	bt, ok := c.types[id]
	return bt, ok
}

// IDs returns every type id in file order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// All returns every type in file order.
func (c *Catalog) All() []*BuildingType {
	out := make([]*BuildingType, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.types[id])
	}
	return out
}
