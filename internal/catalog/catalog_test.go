package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	hut, ok := c.Get("hut")
	if !ok {
		t.Fatalf("hut missing")
	}
	if hut.Cost["wood"] != 20 || hut.Housing != 4 {
		t.Fatalf("hut = %+v", hut)
	}
	if got := hut.Footprint(); got.X != 1 || got.Y != 1 {
		t.Fatalf("hut footprint = %v", got)
	}
	if ids := c.IDs(); ids[0] != "stockpile" {
		t.Fatalf("file order lost: %v", ids)
	}
	for _, bt := range c.All() {
		if bt.Efficiency != 1 {
			t.Errorf("%s efficiency defaulted to %v", bt.ID, bt.Efficiency)
		}
	}
}

func TestLevelStats(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	hut, _ := c.Get("hut")
	if _, housing, _, _ := hut.LevelStats(1); housing != 4 {
		t.Fatalf("level 1 housing = %d", housing)
	}
	if _, housing, _, _ := hut.LevelStats(3); housing != 10 {
		t.Fatalf("level 3 housing = %d", housing)
	}
	if hut.MaxLevel() != 3 {
		t.Fatalf("max level = %d", hut.MaxLevel())
	}

	pile, _ := c.Get("stockpile")
	_, _, storage, _ := pile.LevelStats(2)
	if storage["wood"] != 200 || storage["iron"] != 150 {
		t.Fatalf("stockpile level 2 storage = %v", storage)
	}
	// The type's own map must not be mutated by accumulation.
	if pile.StorageBonus["wood"] != 100 {
		t.Fatalf("base storage bonus mutated: %v", pile.StorageBonus)
	}

	farm, _ := c.Get("wheat_farm")
	workers, _, _, mult := farm.LevelStats(2)
	if workers != 3 || mult != 1.5 {
		t.Fatalf("farm level 2 workers=%d mult=%v", workers, mult)
	}
}

func TestFoodTypes(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	bakery, _ := c.Get("bakery")
	if got := bakery.FoodTypes(); len(got) != 1 || got[0] != "bread" {
		t.Fatalf("bakery foods = %v", got)
	}
	mill, _ := c.Get("mill")
	if got := mill.FoodTypes(); len(got) != 0 {
		t.Fatalf("mill foods = %v", got)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"schema": `buildings:
  - id: shed
    size: {w: 0, h: 1}
`,
		"unknown field": `buildings:
  - id: shed
    size: {w: 1, h: 1}
    colour: red
`,
		"duplicate": `buildings:
  - id: shed
    size: {w: 1, h: 1}
  - id: shed
    size: {w: 1, h: 1}
`,
		"unknown requirement": `buildings:
  - id: shed
    size: {w: 1, h: 1}
    requires: [castle]
`,
		"recipe without workers": `buildings:
  - id: oven
    size: {w: 1, h: 1}
    recipe: {input: flour, input_rate: 1, output: bread, output_rate: 1, processing_time: 1}
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	doc := `buildings:
  - id: shed
    size: {w: 1, h: 2}
    cost: {wood: 3}
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	shed, ok := c.Get("shed")
	if !ok || shed.Name != "shed" || shed.Size.H != 2 {
		t.Fatalf("shed = %+v", shed)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file should fail")
	}
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("buildings: 3\n"), 0o644)
	if _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "bad.yaml") {
		t.Fatalf("error should name the file, got %v", err)
	}
}
