package engine

import (
	"math/rand"

	"github.com/rfoley/apexsnake/game"
)

// Search sentinels. Evaluator magnitudes stay well inside these.
const (
	ScoreDead = -1e9
	ScoreWin  = 1e9
)

// Weights tunes the leaf evaluator. The zero value is unusable; start
// from DefaultWeights. Noise is zero by default so repeated decisions
// on identical states are identical.
type Weights struct {
	SpaceSevere   float64 // territory < 0.5x length
	SpaceHeavy    float64 // territory < 1x length
	SpaceModerate float64 // territory < 2x length
	SpacePerCell  float64
	// ConstrictorSpaceScale multiplies SpacePerCell in constrictor,
	// where territory is the sole objective.
	ConstrictorSpaceScale float64

	FoodStarving float64 // health < 25
	FoodHungry   float64 // health < 40
	FoodBehind   float64 // health < 60 or shorter than the longest rival
	FoodBase     float64

	// HuntBonus rewards closing on strictly shorter rival heads;
	// FleePenalty punishes proximity to equal-or-longer ones (they win
	// or tie any head-to-head). Indexed by Manhattan distance, 0 unused.
	HuntBonus   [4]float64
	FleePenalty [4]float64

	HazardPerDamage float64
	HazardCritical  float64

	CenterPerCell float64
	RepeatPenalty float64

	Noise float64
	Rand  *rand.Rand
}

func DefaultWeights() Weights {
	return Weights{
		SpaceSevere:           -10_000_000,
		SpaceHeavy:            -2_000_000,
		SpaceModerate:         -50_000,
		SpacePerCell:          10,
		ConstrictorSpaceScale: 5,

		FoodStarving: 50_000,
		FoodHungry:   5_000,
		FoodBehind:   2_000,
		FoodBase:     500,

		HuntBonus:   [4]float64{0, 15_000, 5_000, 1_500},
		FleePenalty: [4]float64{0, -500_000, -20_000, -5_000},

		HazardPerDamage: -1_000,
		HazardCritical:  -1_000_000,

		CenterPerCell: -10,
		RepeatPenalty: -2_500,
	}
}

// manhattan is the Manhattan distance between a and b, shortened across
// the seam on wrapped boards.
func manhattan(state *game.BoardState, a, b game.Point) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	if state.Wrapped {
		if w := state.Width - dx; w < dx {
			dx = w
		}
		if h := state.Height - dy; h < dy {
			dy = h
		}
	}
	return int(dx + dy)
}

// Evaluate scores a leaf state from the searching snake's perspective.
// It is called only at search cutoff; the search itself adds nothing on
// top of it at depth 0. sess may be nil.
func Evaluate(state *game.BoardState, sess *Session, w Weights) float64 {
	you, yi := state.You()
	if yi < 0 {
		return ScoreDead
	}
	head := you.Head()
	myLen := you.Len()
	constrictor := state.Ruleset == game.RulesetConstrictor

	score := 0.0

	// Space: territory vs own length, graduated.
	territory := Territory(state)[you.Id]
	spacePerCell := w.SpacePerCell
	if constrictor {
		spacePerCell *= w.ConstrictorSpaceScale
	}
	switch {
	case float64(territory) < 0.5*float64(myLen):
		score += w.SpaceSevere
	case territory < myLen:
		score += w.SpaceHeavy
	case territory < 2*myLen:
		score += w.SpaceModerate
	default:
		score += float64(territory) * spacePerCell
	}

	longestRival := 0
	for i := range state.Snakes {
		if i == yi {
			continue
		}
		if l := state.Snakes[i].Len(); l > longestRival {
			longestRival = l
		}
	}

	// Food: urgency staged by hunger and relative length, value decays
	// with path distance, contested food discounted rather than zeroed.
	// Constrictor has no food worth chasing.
	if !constrictor && len(state.Food) > 0 {
		urgency := w.FoodBase
		switch {
		case you.Health < 25:
			urgency = w.FoodStarving
		case you.Health < 40:
			urgency = w.FoodHungry
		case you.Health < 60 || myLen <= longestRival:
			urgency = w.FoodBehind
		}

		best := 0.0
		for _, f := range state.Food {
			d := PathDist(state, head, f)
			if d < 0 {
				continue
			}
			v := urgency / float64(d+1)
			for i := range state.Snakes {
				if i == yi || state.Snakes[i].Len() < myLen {
					continue
				}
				if manhattan(state, state.Snakes[i].Head(), f) < d {
					// A rival that wins the race makes this food risky,
					// but starving snakes cannot afford to write it off.
					if you.Health < 25 {
						v *= 0.75
					} else {
						v *= 0.25
					}
					break
				}
			}
			if v > best {
				best = v
			}
		}
		score += best
	}

	// Aggression and avoidance by head distance bucket.
	for i := range state.Snakes {
		if i == yi {
			continue
		}
		rival := &state.Snakes[i]
		d := manhattan(state, head, rival.Head())
		if d >= len(w.HuntBonus) {
			continue
		}
		if rival.Len() < myLen {
			score += w.HuntBonus[d]
		} else {
			score += w.FleePenalty[d]
		}
	}

	// Hazard cost on the acting cell, amplified near death.
	if !constrictor && state.Hazard(head) {
		score += float64(state.HazardDamage) * w.HazardPerDamage
		if you.Health <= state.HazardDamage+10 {
			score += w.HazardCritical
		}
	}

	// Mild center preference keeps us off walls and corners.
	center := game.Point{X: state.Width / 2, Y: state.Height / 2}
	score += float64(manhattan(state, head, center)) * w.CenterPerCell

	// Anti-oscillation.
	if sess != nil && sess.Contains(head) {
		score += w.RepeatPenalty
	}

	if w.Noise > 0 && w.Rand != nil {
		score += w.Rand.Float64() * w.Noise
	}

	return score
}
