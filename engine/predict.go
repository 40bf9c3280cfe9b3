package engine

import (
	"math"

	"github.com/rfoley/apexsnake/game"
	"github.com/rfoley/apexsnake/rules"
)

// Rival move scoring knobs. These are deliberately cruder than the leaf
// evaluator: the predictor runs once per rival per ply and only needs
// to pick a plausible move, not a good one.
const (
	rivalSpacePerCell = 100.0
	rivalHungerHealth = 50
	rivalFoodPull     = 1_000.0
	rivalHuntPull     = 50.0
	rivalFleePush     = 200.0
	rivalFleeRadius   = 3
)

// AdvanceRivals advances every living rival by one heuristic move,
// producing the single deterministic world-step successor the search
// recurses into. This is an approximation, not a minimizing adversary:
// each rival is scored independently, which keeps the branching factor
// at one instead of 4^N.
//
// A rival with no legal move is eliminated for the rest of the branch.
func AdvanceRivals(state *game.BoardState) {
	var youHead game.Point
	youLen := 0
	if you, _ := state.You(); you != nil {
		youHead = you.Head()
		youLen = you.Len()
	}

	// Snapshot ids up front: eliminations reindex the slice.
	ids := make([]string, 0, len(state.Snakes))
	for i := range state.Snakes {
		if state.Snakes[i].Id != state.YouId {
			ids = append(ids, state.Snakes[i].Id)
		}
	}

	for _, id := range ids {
		idx := -1
		for i := range state.Snakes {
			if state.Snakes[i].Id == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}

		bestMove := -1
		bestScore := math.Inf(-1)
		for m := 0; m < 4; m++ {
			dest, ok := rules.Probe(state, idx, m)
			if !ok {
				continue
			}
			if sc := rivalMoveScore(state, idx, dest, youHead, youLen); sc > bestScore {
				bestScore = sc
				bestMove = m
			}
		}

		if bestMove < 0 {
			rules.RemoveSnake(state, idx)
			continue
		}
		rules.ApplyMove(state, idx, bestMove)
	}
}

func rivalMoveScore(state *game.BoardState, idx int, dest game.Point, youHead game.Point, youLen int) float64 {
	s := &state.Snakes[idx]

	score := float64(FloodFill(state, dest, 2*s.Len())) * rivalSpacePerCell

	if s.Health < rivalHungerHealth && len(state.Food) > 0 {
		nearest := math.MaxInt32
		for _, f := range state.Food {
			if d := manhattan(state, dest, f); d < nearest {
				nearest = d
			}
		}
		score += rivalFoodPull / float64(nearest+1)
	}

	if youLen > 0 {
		d := manhattan(state, dest, youHead)
		if s.Len() > youLen {
			// Longer rivals hunt the searching snake.
			score += float64(int(state.Width+state.Height)-d) * rivalHuntPull
		} else if d <= rivalFleeRadius {
			score -= float64(rivalFleeRadius+1-d) * rivalFleePush
		}
	}

	return score
}
