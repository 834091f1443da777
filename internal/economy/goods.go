// Package economy provides the shared village resource pool and the
// resource ids that buildings and villagers move around.
package economy

// Resource ids. Raw resources come from nodes or farms; processed goods
// come out of processing chains.
const (
	Wood       = "wood"
	Stone      = "stone"
	Berries    = "berries"
	Wheat      = "wheat"
	Flour      = "flour"
	Bread      = "bread"
	Ale        = "ale"
	Meat       = "meat"
	SmokedMeat = "smoked_meat"
	Iron       = "iron"
	Tools      = "tools"
	Bricks     = "bricks"
	Gold       = "gold"

	// Population counts villagers housed by the village. It is produced by
	// housing and capped by total housing capacity, not storage.
	Population = "population"
)

// FoodPreference lists edible resources, best first. Villagers eat the
// first one in stock.
var FoodPreference = []string{Bread, SmokedMeat, Meat, Berries}

// IsFood reports whether the resource can be eaten.
func IsFood(resource string) bool {
	for _, f := range FoodPreference {
		if f == resource {
			return true
		}
	}
	return false
}

// baseValues are nominal worth in gold, used for the village wealth stat.
var baseValues = map[string]float64{
	Wood:       1,
	Stone:      1.5,
	Berries:    1,
	Wheat:      1,
	Flour:      2.5,
	Bread:      4,
	Ale:        5,
	Meat:       2,
	SmokedMeat: 4,
	Iron:       3,
	Tools:      10,
	Bricks:     3,
	Gold:       1,
}

// BaseValue returns the nominal value of one unit of the resource.
func BaseValue(resource string) float64 {
	return baseValues[resource]
}

// Wealth returns the total nominal value of a stock snapshot.
func Wealth(stock map[string]float64) float64 {
	total := 0.0
	for res, qty := range stock {
		total += qty * baseValues[res]
	}
	return total
}
