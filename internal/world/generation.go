// Terrain generation using layered simplex noise.
// Terrain only decides where resource nodes grow; it never blocks movement.
package world

import (
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds terrain generation parameters.
type GenConfig struct {
	Width  int
	Height int
	Seed   int64 // 0 = random

	ForestLevel float64 // Woodland noise above this becomes forest (0.0–1.0)
	RockLevel   float64 // Rock noise above this becomes rocky ground
	ThicketRain float64 // Moisture above this on open ground grows thickets
}

// DefaultGenConfig returns a village-sized configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		ForestLevel: 0.62,
		RockLevel:   0.70,
		ThicketRain: 0.66,
	}
}

// Terrain types for grid tiles.
type Terrain uint8

const (
	TerrainMeadow  Terrain = iota // Open ground, best for building
	TerrainForest                 // Trees
	TerrainRocky                  // Stone outcrops
	TerrainThicket                // Berry bushes
)

// TerrainMap holds one terrain value per tile.
type TerrainMap struct {
	Width  int
	Height int
	Tiles  []Terrain
}

// At returns the terrain at c, or meadow when out of bounds.
func (t *TerrainMap) At(c GridCoord) Terrain {
	if c.X < 0 || c.Y < 0 || c.X >= t.Width || c.Y >= t.Height {
		return TerrainMeadow
	}
	return t.Tiles[c.Y*t.Width+c.X]
}

// Generate creates a terrain map. The same seed always yields the same map.
func Generate(cfg GenConfig) *TerrainMap {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}

	woodNoise := opensimplex.NewNormalized(seed)
	rockNoise := opensimplex.NewNormalized(seed + 1)
	rainNoise := opensimplex.NewNormalized(seed + 2)

	tm := &TerrainMap{
		Width:  cfg.Width,
		Height: cfg.Height,
		Tiles:  make([]Terrain, cfg.Width*cfg.Height),
	}

	cx, cy := float64(cfg.Width)/2, float64(cfg.Height)/2
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			fx, fy := float64(x), float64(y)

			wood := octaveNoise(woodNoise, fx, fy, 3, 0.06, 0.5)
			rock := octaveNoise(rockNoise, fx, fy, 2, 0.09, 0.5)
			rain := octaveNoise(rainNoise, fx, fy, 2, 0.05, 0.5)

			// Keep the village centre clear so the first buildings fit.
			dx, dy := (fx-cx)/cx, (fy-cy)/cy
			if dx*dx+dy*dy < 0.04 {
				continue
			}

			tm.Tiles[y*cfg.Width+x] = deriveTerrain(wood, rock, rain, cfg)
		}
	}
	return tm
}

func deriveTerrain(wood, rock, rain float64, cfg GenConfig) Terrain {
	if rock > cfg.RockLevel {
		return TerrainRocky
	}
	if wood > cfg.ForestLevel {
		return TerrainForest
	}
	if rain > cfg.ThicketRain {
		return TerrainThicket
	}
	return TerrainMeadow
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// TerrainCounts returns a summary of terrain type distribution.
func TerrainCounts(t *TerrainMap) map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, tile := range t.Tiles {
		counts[tile]++
	}
	return counts
}

// TerrainName returns a human-readable name for a terrain type.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainMeadow:
		return "Meadow"
	case TerrainForest:
		return "Forest"
	case TerrainRocky:
		return "Rocky"
	case TerrainThicket:
		return "Thicket"
	default:
		return "Unknown"
	}
}
