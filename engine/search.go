package engine

import (
	"math"
	"time"

	"github.com/rfoley/apexsnake/game"
	"github.com/rfoley/apexsnake/rules"
)

const defaultMaxDepth = 12

// Engine is the per-turn decision engine. It is stateless across turns
// apart from the Weights; per-game state lives in the Session.
type Engine struct {
	// MaxDepth caps iterative deepening. The deadline usually cuts
	// search off well before the cap on real boards.
	MaxDepth int
	Weights  Weights
}

func New() *Engine {
	return &Engine{MaxDepth: defaultMaxDepth, Weights: DefaultWeights()}
}

// Decision is the outcome of one Decide call. Depth is the deepest
// fully completed iteration; 0 means only the safety default was
// available before the deadline.
type Decision struct {
	Move  int
	Score float64
	Depth int
}

// Decide runs iterative-deepening alpha-beta over alternating
// (own-move, world-step) plies until the deadline and returns the best
// move of the last fully completed depth.
//
// Before any depth completes, the first direction that is not an
// immediate unconditional collision is pre-selected, so a legal
// response exists even under pathological timeouts. A depth interrupted
// by the deadline discards its partial result; earlier completed
// depths are never corrupted (cooperative cancellation, no unwinding).
func (e *Engine) Decide(state *game.BoardState, deadline time.Time, sess *Session) Decision {
	best := Decision{Move: rules.MoveUp}
	if safe := rules.SafeMoves(state); len(safe) > 0 {
		best.Move = safe[0]
	}

	maxDepth := e.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}

	for depth := 1; depth <= maxDepth; depth++ {
		move, score, complete := e.searchRoot(state, depth, deadline, sess)
		if !complete {
			break
		}
		best = Decision{Move: move, Score: score, Depth: depth}
		if score >= ScoreWin || score <= ScoreDead {
			break // settled: deeper search cannot change the outcome
		}
	}
	return best
}

// searchRoot expands the searching snake's four candidate moves at the
// root. Tie-break is first-wins in move enumeration order.
func (e *Engine) searchRoot(state *game.BoardState, depth int, deadline time.Time, sess *Session) (int, float64, bool) {
	bestMove := -1
	alpha := math.Inf(-1)

	for m := 0; m < 4; m++ {
		if time.Now().After(deadline) {
			return 0, 0, false
		}

		child := state.Clone()
		_, yi := child.You()
		if yi < 0 {
			return 0, 0, false
		}

		var score float64
		if !rules.ApplyMove(child, yi, m) {
			score = ScoreDead
		} else {
			AdvanceRivals(child)
			v, complete := e.alphabeta(child, depth-1, alpha, math.Inf(1), deadline, sess)
			if !complete {
				return 0, 0, false
			}
			score = v
		}

		if score > alpha || bestMove < 0 {
			alpha = score
			bestMove = m
		}
	}

	return bestMove, alpha, true
}

// alphabeta is the Max-ply recursion. The world ply between Max plies
// is the predictor's deterministic single-successor transition, so
// pruning only ever happens over our own candidate moves; alpha is the
// running best-so-far lower bound threaded down from ancestors.
//
// The bool result is the tri-state: false means "deadline hit, discard".
func (e *Engine) alphabeta(state *game.BoardState, depth int, alpha, beta float64, deadline time.Time, sess *Session) (float64, bool) {
	if time.Now().After(deadline) {
		return 0, false
	}

	if _, yi := state.You(); yi < 0 {
		return ScoreDead, true
	}
	if len(state.Snakes) == 1 {
		return ScoreWin, true
	}
	if depth == 0 {
		return Evaluate(state, sess, e.Weights), true
	}

	value := math.Inf(-1)
	for m := 0; m < 4; m++ {
		child := state.Clone()
		_, yi := child.You()

		var score float64
		if !rules.ApplyMove(child, yi, m) {
			// An illegal or fatal move scores as death; if all four do,
			// the node is treated identically to death.
			score = ScoreDead
		} else {
			AdvanceRivals(child)
			v, complete := e.alphabeta(child, depth-1, alpha, beta, deadline, sess)
			if !complete {
				return 0, false
			}
			score = v
		}

		if score > value {
			value = score
		}
		if value > alpha {
			alpha = value
		}
		if alpha >= beta {
			break
		}
	}

	return value, true
}
