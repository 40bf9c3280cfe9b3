package engine

import (
	"math"
	"testing"

	"github.com/rfoley/apexsnake/game"
)

func TestEvaluate_DeadWithoutYou(t *testing.T) {
	state := buildState(7, 7, []game.Snake{{
		Id:     "rival",
		Health: 50,
		Body:   []game.Point{{X: 3, Y: 3}, {X: 3, Y: 2}},
	}}, nil)

	if got := Evaluate(state, nil, DefaultWeights()); got != ScoreDead {
		t.Fatalf("score=%v want ScoreDead", got)
	}
}

func TestEvaluate_PenalizesTrappedSpace(t *testing.T) {
	// Same snake length, same rival; one state has the searching snake
	// sealed into a 2-cell pocket.
	rival := game.Snake{
		Id:     "rival",
		Health: 50,
		Body:   []game.Point{{X: 9, Y: 9}, {X: 9, Y: 8}, {X: 9, Y: 7}, {X: 9, Y: 6}, {X: 10, Y: 6}},
	}
	open := buildState(11, 11, []game.Snake{
		{
			Id:     "me",
			Health: 50,
			Body:   []game.Point{{X: 5, Y: 5}, {X: 5, Y: 4}, {X: 5, Y: 3}, {X: 4, Y: 3}, {X: 3, Y: 3}},
		},
		rival,
	}, nil)
	// Head boxed into the corner by its own body; the stacked tail does
	// not vacate, so no cell is reachable.
	trapped := buildState(11, 11, []game.Snake{
		{
			Id:     "me",
			Health: 50,
			Body:   []game.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 1, Y: 0}},
		},
		rival,
	}, nil)

	w := DefaultWeights()
	openScore := Evaluate(open, nil, w)
	trappedScore := Evaluate(trapped, nil, w)
	if trappedScore >= openScore {
		t.Fatalf("trapped=%v open=%v, trapped must score worse", trappedScore, openScore)
	}
	if trappedScore > w.SpaceSevere/2 {
		t.Fatalf("trapped=%v, expected a severe space penalty", trappedScore)
	}
}

func TestEvaluate_HungerRaisesFoodValue(t *testing.T) {
	mk := func(health int32) *game.BoardState {
		return buildState(11, 11, []game.Snake{
			{
				Id:     "me",
				Health: health,
				Body:   []game.Point{{X: 5, Y: 5}, {X: 5, Y: 4}, {X: 5, Y: 3}},
			},
			{
				Id:     "rival",
				Health: 100,
				Body:   []game.Point{{X: 10, Y: 0}, {X: 10, Y: 1}},
			},
		}, []game.Point{{X: 5, Y: 8}})
	}

	w := DefaultWeights()
	starving := Evaluate(mk(10), nil, w)
	fed := Evaluate(mk(90), nil, w)
	if starving <= fed {
		t.Fatalf("starving=%v fed=%v, hunger must raise the food term", starving, fed)
	}
}

func TestEvaluate_CloserFoodScoresHigher(t *testing.T) {
	mk := func(food game.Point) *game.BoardState {
		return buildState(11, 11, []game.Snake{
			{
				Id:     "me",
				Health: 20,
				Body:   []game.Point{{X: 5, Y: 5}, {X: 5, Y: 4}, {X: 5, Y: 3}},
			},
			{
				Id:     "rival",
				Health: 100,
				Body:   []game.Point{{X: 10, Y: 0}, {X: 10, Y: 1}},
			},
		}, []game.Point{food})
	}

	w := DefaultWeights()
	near := Evaluate(mk(game.Point{X: 5, Y: 7}), nil, w)
	far := Evaluate(mk(game.Point{X: 5, Y: 10}), nil, w)
	if near <= far {
		t.Fatalf("near=%v far=%v, closer food must score higher", near, far)
	}
}

func TestEvaluate_FleesLongerRival(t *testing.T) {
	mk := func(rivalHead game.Point) *game.BoardState {
		return buildState(11, 11, []game.Snake{
			{
				Id:     "me",
				Health: 80,
				Body:   []game.Point{{X: 5, Y: 5}, {X: 5, Y: 4}, {X: 5, Y: 3}},
			},
			{
				Id:     "rival",
				Health: 80,
				Body:   []game.Point{rivalHead, {X: rivalHead.X, Y: rivalHead.Y + 1}, {X: rivalHead.X, Y: rivalHead.Y + 2}, {X: rivalHead.X, Y: rivalHead.Y + 3}},
			},
		}, nil)
	}

	w := DefaultWeights()
	adjacent := Evaluate(mk(game.Point{X: 6, Y: 5}), nil, w)
	distant := Evaluate(mk(game.Point{X: 9, Y: 5}), nil, w)
	if adjacent >= distant {
		t.Fatalf("adjacent=%v distant=%v, adjacency to a longer head must score worse", adjacent, distant)
	}
	if distant-adjacent < 100_000 {
		t.Fatalf("adjacent=%v distant=%v, expected a decisive flee penalty", adjacent, distant)
	}
}

func TestEvaluate_HuntsShorterRival(t *testing.T) {
	mk := func(rivalHead game.Point) *game.BoardState {
		return buildState(11, 11, []game.Snake{
			{
				Id:     "me",
				Health: 80,
				Body:   []game.Point{{X: 5, Y: 5}, {X: 5, Y: 4}, {X: 5, Y: 3}, {X: 5, Y: 2}},
			},
			{
				Id:     "rival",
				Health: 80,
				Body:   []game.Point{rivalHead, {X: rivalHead.X, Y: rivalHead.Y + 1}},
			},
		}, nil)
	}

	w := DefaultWeights()
	near := Evaluate(mk(game.Point{X: 6, Y: 5}), nil, w)
	far := Evaluate(mk(game.Point{X: 8, Y: 5}), nil, w)
	if near <= far {
		t.Fatalf("near=%v far=%v, closing on a shorter head must score higher", near, far)
	}
}

func TestEvaluate_HazardCostsOnHead(t *testing.T) {
	mk := func(hazards []game.Point) *game.BoardState {
		state := buildState(11, 11, []game.Snake{
			{
				Id:     "me",
				Health: 80,
				Body:   []game.Point{{X: 5, Y: 5}, {X: 5, Y: 4}, {X: 5, Y: 3}},
			},
			{
				Id:     "rival",
				Health: 100,
				Body:   []game.Point{{X: 10, Y: 0}, {X: 10, Y: 1}},
			},
		}, nil)
		state.Ruleset = game.RulesetRoyale
		state.HazardDamage = 14
		state.Hazards = hazards
		state.RebuildObstacles()
		return state
	}

	w := DefaultWeights()
	inHazard := Evaluate(mk([]game.Point{{X: 5, Y: 5}}), nil, w)
	clear := Evaluate(mk(nil), nil, w)
	if inHazard >= clear {
		t.Fatalf("inHazard=%v clear=%v, hazard on the head must score worse", inHazard, clear)
	}
}

func TestEvaluate_RepeatVisitPenalized(t *testing.T) {
	state := buildState(11, 11, []game.Snake{
		{
			Id:     "me",
			Health: 80,
			Body:   []game.Point{{X: 5, Y: 5}, {X: 5, Y: 4}, {X: 5, Y: 3}},
		},
		{
			Id:     "rival",
			Health: 100,
			Body:   []game.Point{{X: 10, Y: 0}, {X: 10, Y: 1}},
		},
	}, nil)

	w := DefaultWeights()
	fresh := Evaluate(state, NewSession(8), w)

	visited := NewSession(8)
	visited.Push(game.Point{X: 5, Y: 5})
	repeat := Evaluate(state, visited, w)

	if repeat >= fresh {
		t.Fatalf("repeat=%v fresh=%v, revisiting must score worse", repeat, fresh)
	}
	if diff := fresh - repeat; math.Abs(diff+w.RepeatPenalty) > 1e-6 {
		t.Fatalf("penalty diff=%v want %v", diff, -w.RepeatPenalty)
	}
}

func TestEvaluate_ConstrictorIgnoresFood(t *testing.T) {
	mk := func(food game.Point) *game.BoardState {
		state := buildState(11, 11, []game.Snake{
			{
				Id:     "me",
				Health: 20,
				Body:   []game.Point{{X: 5, Y: 5}, {X: 5, Y: 4}, {X: 5, Y: 3}},
			},
			{
				Id:     "rival",
				Health: 100,
				Body:   []game.Point{{X: 10, Y: 0}, {X: 10, Y: 1}},
			},
		}, []game.Point{food})
		state.Ruleset = game.RulesetConstrictor
		state.RebuildObstacles()
		return state
	}

	w := DefaultWeights()
	near := Evaluate(mk(game.Point{X: 5, Y: 6}), nil, w)
	far := Evaluate(mk(game.Point{X: 0, Y: 10}), nil, w)
	if near != far {
		t.Fatalf("near=%v far=%v, constrictor scoring must ignore food", near, far)
	}
}

func TestEvaluate_DeterministicWithoutNoise(t *testing.T) {
	state := buildState(11, 11, []game.Snake{
		{
			Id:     "me",
			Health: 40,
			Body:   []game.Point{{X: 5, Y: 5}, {X: 5, Y: 4}, {X: 5, Y: 3}},
		},
		{
			Id:     "rival",
			Health: 70,
			Body:   []game.Point{{X: 8, Y: 8}, {X: 8, Y: 9}},
		},
	}, []game.Point{{X: 2, Y: 2}})

	w := DefaultWeights()
	first := Evaluate(state, nil, w)
	for i := 0; i < 10; i++ {
		if got := Evaluate(state, nil, w); got != first {
			t.Fatalf("evaluation drifted: %v then %v", first, got)
		}
	}
}
