// Package engine implements the per-turn decision core: spatial
// analysis, the heuristic leaf evaluator, the rival move predictor and
// the time-boxed iterative-deepening search that ties them together.
package engine

import (
	"github.com/rfoley/apexsnake/game"
	"github.com/rfoley/apexsnake/rules"
)

// FloodFill counts the cells reachable from start over non-blocked
// cells, capped at max. Callers cap at a small multiple of the querying
// snake's length; the count is a cheap trapped-space signal, not an
// exact area.
func FloodFill(state *game.BoardState, start game.Point, max int) int {
	if max <= 0 || !state.InBounds(start) || state.Blocked(start) {
		return 0
	}

	cells := int(state.Width) * int(state.Height)
	visited := game.NewBitset(cells)
	queue := make([]game.Point, 0, max)

	visited.Set(state.Idx(start))
	queue = append(queue, start)
	count := 0

	for head := 0; head < len(queue); head++ {
		p := queue[head]
		count++
		if count >= max {
			return max
		}
		for m := 0; m < 4; m++ {
			n := game.Point{X: p.X + rules.Vectors[m].X, Y: p.Y + rules.Vectors[m].Y}
			n = state.WrapPoint(n)
			if !state.InBounds(n) || state.Blocked(n) || visited.Get(state.Idx(n)) {
				continue
			}
			visited.Set(state.Idx(n))
			queue = append(queue, n)
		}
	}
	return count
}

// PathDist returns the BFS shortest-path length from `from` to `to`
// over non-blocked cells, or -1 when unreachable. The start cell may be
// blocked (it is usually a snake head).
func PathDist(state *game.BoardState, from, to game.Point) int {
	if from == to {
		return 0
	}
	cells := int(state.Width) * int(state.Height)
	visited := game.NewBitset(cells)
	dist := make([]int32, cells)

	queue := make([]game.Point, 0, 64)
	visited.Set(state.Idx(from))
	queue = append(queue, from)

	for head := 0; head < len(queue); head++ {
		p := queue[head]
		d := dist[state.Idx(p)]
		for m := 0; m < 4; m++ {
			n := game.Point{X: p.X + rules.Vectors[m].X, Y: p.Y + rules.Vectors[m].Y}
			n = state.WrapPoint(n)
			if !state.InBounds(n) || visited.Get(state.Idx(n)) {
				continue
			}
			if n == to {
				return int(d) + 1
			}
			if state.Blocked(n) {
				continue
			}
			visited.Set(state.Idx(n))
			dist[state.Idx(n)] = d + 1
			queue = append(queue, n)
		}
	}
	return -1
}

const (
	ownerNone      = -1
	ownerContested = -2
)

// Territory partitions the free board between snake heads with a
// multi-source BFS and returns, per snake id, the count of cells that
// snake reaches strictly first.
//
// Rival heads are seeded before the searching snake's head, so
// equal-distance races resolve pessimistically; a cell reached by two
// seeds at the same distance is contested and credited to no one. Every
// snake's tail is provisionally freed before seeding, because every
// tail vacates on the next universal tick.
func Territory(state *game.BoardState) map[string]int {
	cells := int(state.Width) * int(state.Height)
	blocked := state.ObstaclesClone()

	for i := range state.Snakes {
		s := &state.Snakes[i]
		if s.Len() < 2 {
			continue
		}
		tail := s.Tail()
		if stacked(state, tail) {
			continue
		}
		blocked.Clear(state.Idx(tail))
	}

	owner := make([]int16, cells)
	dist := make([]int32, cells)
	for i := range owner {
		owner[i] = ownerNone
	}

	// Seed order: rivals first, the searching snake last.
	seeds := make([]int, 0, len(state.Snakes))
	youIdx := -1
	for i := range state.Snakes {
		if state.Snakes[i].Id == state.YouId {
			youIdx = i
			continue
		}
		seeds = append(seeds, i)
	}
	if youIdx >= 0 {
		seeds = append(seeds, youIdx)
	}

	counts := make([]int, len(state.Snakes))
	queue := make([]game.Point, 0, cells)
	for _, si := range seeds {
		head := state.Snakes[si].Head()
		owner[state.Idx(head)] = int16(si)
		dist[state.Idx(head)] = 0
		queue = append(queue, head)
	}

	for qh := 0; qh < len(queue); qh++ {
		p := queue[qh]
		pi := state.Idx(p)
		if owner[pi] == ownerContested {
			continue // contested frontiers do not expand
		}
		for m := 0; m < 4; m++ {
			n := game.Point{X: p.X + rules.Vectors[m].X, Y: p.Y + rules.Vectors[m].Y}
			n = state.WrapPoint(n)
			if !state.InBounds(n) {
				continue
			}
			ni := state.Idx(n)
			if blocked.Get(ni) {
				continue
			}
			switch {
			case owner[ni] == ownerNone:
				owner[ni] = owner[pi]
				dist[ni] = dist[pi] + 1
				counts[owner[ni]]++
				queue = append(queue, n)
			case owner[ni] >= 0 && owner[ni] != owner[pi] && dist[ni] == dist[pi]+1:
				counts[owner[ni]]--
				owner[ni] = ownerContested
			}
		}
	}

	out := make(map[string]int, len(state.Snakes))
	for i := range state.Snakes {
		out[state.Snakes[i].Id] = counts[i]
	}
	return out
}

// stacked reports whether p is occupied by more than one body segment.
func stacked(state *game.BoardState, p game.Point) bool {
	n := 0
	for i := range state.Snakes {
		for _, b := range state.Snakes[i].Body {
			if b == p {
				n++
				if n > 1 {
					return true
				}
			}
		}
	}
	return false
}
