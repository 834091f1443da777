package agents

import (
	"github.com/talgya/hearth/internal/economy"
)

// Hunger tuning.
const (
	HungerThreshold = 0.3  // Below this the next poll tries to eat
	EatCooldown     = 10.0 // Seconds before retrying after finding no food
)

// mealValue is how much satiety one unit of each food restores.
var mealValue = map[string]float64{
	economy.Bread:      0.6,
	economy.SmokedMeat: 0.6,
	economy.Meat:       0.4,
	economy.Berries:    0.3,
}

// decayHunger lowers satiety by rate per second.
func (v *villager) decayHunger(rate, dt float64) {
	v.Hunger -= rate * dt
	if v.Hunger < 0 {
		v.Hunger = 0
	}
	if v.eatCooldown > 0 {
		v.eatCooldown -= dt
	}
}

// wantsToEat reports whether the villager should spend this poll eating.
func (v *villager) wantsToEat() bool {
	return v.Hunger < HungerThreshold && v.eatCooldown <= 0
}

// eat consumes one unit of the best stored food. With nothing in stock
// the attempt is abandoned and a cooldown starts, so work resumes.
func (v *villager) eat(pool Pool) (string, bool) {
	for _, food := range economy.FoodPreference {
		if pool.Consume(food, 1, false) {
			v.Hunger += mealValue[food]
			if v.Hunger > 1 {
				v.Hunger = 1
			}
			return food, true
		}
	}
	v.eatCooldown = EatCooldown
	return "", false
}
