// Package rules implements the single-step move simulator and the
// simultaneous world step used by offline play.
package rules

import (
	"github.com/rfoley/apexsnake/game"
)

const (
	MoveUp    = 0
	MoveDown  = 1
	MoveLeft  = 2
	MoveRight = 3
)

// Vectors holds the unit vector for each move, indexed by the move
// constants. The enumeration order is the engine's tie-break order.
var Vectors = [4]game.Point{{X: 0, Y: 1}, {X: 0, Y: -1}, {X: -1, Y: 0}, {X: 1, Y: 0}}

var MoveNames = [4]string{"up", "down", "left", "right"}

// Destination computes head + move vector, reduced modulo the board
// when wrapped. ok is false when the destination falls off a bounded
// board.
func Destination(state *game.BoardState, head game.Point, move int) (game.Point, bool) {
	dest := game.Point{X: head.X + Vectors[move].X, Y: head.Y + Vectors[move].Y}
	if state.Wrapped {
		return state.WrapPoint(dest), true
	}
	return dest, state.InBounds(dest)
}

// FoodAt returns the index of the food item at p, or -1.
func FoodAt(state *game.BoardState, p game.Point) int {
	for i, f := range state.Food {
		if f == p {
			return i
		}
	}
	return -1
}

func occupants(state *game.BoardState, p game.Point) int {
	n := 0
	for i := range state.Snakes {
		for _, b := range state.Snakes[i].Body {
			if b == p {
				n++
			}
		}
	}
	return n
}

// Probe reports whether snake idx would survive the given move, without
// committing anything. The mover's tail is treated as vacated when the
// move is not growing, its cell is not stacked, and the body has at
// least two segments; this mirrors ApplyMove exactly.
func Probe(state *game.BoardState, idx int, move int) (game.Point, bool) {
	s := &state.Snakes[idx]
	dest, ok := Destination(state, s.Head(), move)
	if !ok {
		return dest, false
	}
	if !state.Blocked(dest) {
		return dest, true
	}
	// Blocked, but the mover's own vacating tail is not a wall.
	growing := FoodAt(state, dest) >= 0
	if !growing && s.Len() >= 2 && dest == s.Tail() && occupants(state, dest) == 1 {
		return dest, true
	}
	return dest, false
}

// SafeMoves returns the moves that do not cause an immediate,
// unconditional death for the searching snake, in tie-break order. The
// first entry is the engine's default safety move.
func SafeMoves(state *game.BoardState) []int {
	_, idx := state.You()
	if idx < 0 {
		return nil
	}
	moves := make([]int, 0, 4)
	for m := 0; m < 4; m++ {
		if _, ok := Probe(state, idx, m); ok {
			moves = append(moves, m)
		}
	}
	return moves
}

// RemoveSnake marks snake idx dead and removes it from the board,
// vacating its cells from the obstacle bitset.
func RemoveSnake(state *game.BoardState, idx int) {
	body := state.Snakes[idx].Body
	state.Snakes = append(state.Snakes[:idx], state.Snakes[idx+1:]...)
	for _, p := range body {
		if state.InBounds(p) {
			state.VacateCell(p)
		}
	}
}

// ApplyMove applies one snake's single-step move, mutating state in
// place. It returns false when the move kills the snake, in which case
// the snake has been removed from the board.
//
// Semantics: the destination is head + move vector (mod board when
// wrapped); a non-growing snake of length >= 2 vacates its tail cell
// before the collision check, because the tail advances the same tick;
// a growing move keeps the tail, lengthens the body, resets health to
// 100 and consumes the food; a non-growing move costs 1 health. Hazard
// cells are not walls outside constrictor; their cost is the
// evaluator's concern, not this simulator's.
func ApplyMove(state *game.BoardState, idx int, move int) bool {
	s := &state.Snakes[idx]

	dest, ok := Destination(state, s.Head(), move)
	if !ok {
		RemoveSnake(state, idx)
		return false
	}

	foodIdx := FoodAt(state, dest)
	growing := foodIdx >= 0

	if !growing && s.Len() >= 2 {
		// Pop the tail first so the vacate scan no longer sees it.
		tail := s.Tail()
		s.Body = s.Body[:len(s.Body)-1]
		state.VacateCell(tail)
	}

	if state.Blocked(dest) {
		RemoveSnake(state, idx)
		return false
	}

	newBody := make([]game.Point, 0, len(s.Body)+1)
	newBody = append(newBody, dest)
	newBody = append(newBody, s.Body...)
	s.Body = newBody
	state.OccupyCell(dest)

	if growing {
		s.Health = 100
		state.Food = append(state.Food[:foodIdx], state.Food[foodIdx+1:]...)
		return true
	}

	s.Health--
	if s.Health <= 0 {
		RemoveSnake(state, idx)
		return false
	}
	return true
}

// StepSimultaneous advances every snake by its chosen move at once,
// resolving body and head-to-head collisions the way the live engine
// does: a snake missing from moves dies; head-to-head is won by the
// strictly longer snake and kills both on a tie. Used by offline play,
// not by the search (which alternates own-move and world-step plies).
func StepSimultaneous(state *game.BoardState, moves map[string]int) {
	state.Turn++

	type pending struct {
		dest game.Point
		grow bool
		dead bool
	}
	plans := make(map[string]*pending, len(state.Snakes))

	for i := range state.Snakes {
		s := &state.Snakes[i]
		move, ok := moves[s.Id]
		if !ok {
			plans[s.Id] = &pending{dead: true}
			continue
		}
		dest, ok := Destination(state, s.Head(), move)
		if !ok {
			plans[s.Id] = &pending{dead: true}
			continue
		}
		plans[s.Id] = &pending{dest: dest, grow: FoodAt(state, dest) >= 0}
	}

	// Advance bodies.
	for i := range state.Snakes {
		s := &state.Snakes[i]
		p := plans[s.Id]
		if p.dead {
			continue
		}
		newBody := make([]game.Point, 0, s.Len()+1)
		newBody = append(newBody, p.dest)
		newBody = append(newBody, s.Body...)
		if p.grow {
			s.Health = 100
		} else {
			s.Health--
			newBody = newBody[:len(newBody)-1]
			if s.Health <= 0 {
				p.dead = true
			}
		}
		s.Body = newBody
	}

	// Remove eaten food once, after all heads have landed.
	if len(state.Food) > 0 {
		remaining := state.Food[:0]
		for _, f := range state.Food {
			eaten := false
			for i := range state.Snakes {
				p := plans[state.Snakes[i].Id]
				if !p.dead && p.grow && p.dest == f {
					eaten = true
					break
				}
			}
			if !eaten {
				remaining = append(remaining, f)
			}
		}
		state.Food = remaining
	}

	// Body collisions against post-move bodies.
	for i := range state.Snakes {
		s := &state.Snakes[i]
		p := plans[s.Id]
		if p.dead {
			continue
		}
		head := s.Head()
		for j := range state.Snakes {
			o := &state.Snakes[j]
			if plans[o.Id].dead {
				continue
			}
			for k, b := range o.Body {
				if k == 0 {
					continue // heads resolved separately
				}
				if b == head {
					p.dead = true
				}
			}
		}
	}

	// Head-to-head: longer snake survives, tie kills both.
	for i := range state.Snakes {
		a := &state.Snakes[i]
		if plans[a.Id].dead {
			continue
		}
		for j := i + 1; j < len(state.Snakes); j++ {
			b := &state.Snakes[j]
			if plans[b.Id].dead {
				continue
			}
			if a.Head() != b.Head() {
				continue
			}
			switch {
			case a.Len() > b.Len():
				plans[b.Id].dead = true
			case b.Len() > a.Len():
				plans[a.Id].dead = true
			default:
				plans[a.Id].dead = true
				plans[b.Id].dead = true
			}
		}
	}

	survivors := make([]game.Snake, 0, len(state.Snakes))
	for i := range state.Snakes {
		if !plans[state.Snakes[i].Id].dead {
			survivors = append(survivors, state.Snakes[i])
		}
	}
	state.Snakes = survivors
	state.RebuildObstacles()
}
