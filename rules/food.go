package rules

import (
	"math/rand"

	"github.com/rfoley/apexsnake/game"
)

// FoodSettings matches the common Battlesnake server knobs:
// - MinimumFood: ensure at least this many food items exist after each turn
// - FoodSpawnChance: percentage chance (0-100) to spawn one extra food each turn
//
// Only offline play (the arena) spawns food; the decision engine never
// does, because future spawns are unknowable mid-turn.
type FoodSettings struct {
	MinimumFood     int
	FoodSpawnChance int
}

var DefaultFoodSettings = FoodSettings{MinimumFood: 1, FoodSpawnChance: 15}

// SpawnFood tops the board up to MinimumFood and rolls FoodSpawnChance
// for one extra item, placing food only on unoccupied, food-free cells.
func SpawnFood(state *game.BoardState, rng *rand.Rand, settings FoodSettings) {
	if state == nil || state.Width <= 0 || state.Height <= 0 || rng == nil {
		return
	}
	if settings.FoodSpawnChance < 0 {
		settings.FoodSpawnChance = 0
	}
	if settings.FoodSpawnChance > 100 {
		settings.FoodSpawnChance = 100
	}

	toSpawn := settings.MinimumFood - len(state.Food)
	if toSpawn < 0 {
		toSpawn = 0
	}
	if settings.FoodSpawnChance > 0 && rng.Intn(100) < settings.FoodSpawnChance {
		toSpawn++
	}
	if toSpawn == 0 {
		return
	}

	available := make([]game.Point, 0, int(state.Width)*int(state.Height))
	for y := int32(0); y < state.Height; y++ {
		for x := int32(0); x < state.Width; x++ {
			p := game.Point{X: x, Y: y}
			if state.Blocked(p) || FoodAt(state, p) >= 0 {
				continue
			}
			available = append(available, p)
		}
	}

	for ; toSpawn > 0 && len(available) > 0; toSpawn-- {
		i := rng.Intn(len(available))
		state.Food = append(state.Food, available[i])
		available[i] = available[len(available)-1]
		available = available[:len(available)-1]
	}
}
