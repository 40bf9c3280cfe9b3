// Command debuggame inspects a single position. It reads a /move
// request payload from a file (or stdin), prints the board, the
// territory split, the legal moves, and the engine's verdict at each
// search depth.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rfoley/apexsnake/engine"
	"github.com/rfoley/apexsnake/game"
	"github.com/rfoley/apexsnake/rules"
)

type moveRequest struct {
	Game struct {
		ID      string `json:"id"`
		Ruleset struct {
			Name     string `json:"name"`
			Settings struct {
				HazardDamagePerTurn int `json:"hazardDamagePerTurn"`
			} `json:"settings"`
		} `json:"ruleset"`
	} `json:"game"`
	Turn  int `json:"turn"`
	Board struct {
		Width   int     `json:"width"`
		Height  int     `json:"height"`
		Food    []coord `json:"food"`
		Hazards []coord `json:"hazards"`
		Snakes  []snake `json:"snakes"`
	} `json:"board"`
	You snake `json:"you"`
}

type snake struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Health int     `json:"health"`
	Body   []coord `json:"body"`
}

type coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	input := fs.String("input", "-", "Path to a /move request JSON file (- for stdin)")
	maxDepth := fs.Int("max-depth", 8, "Deepest iteration to trace")
	budget := fs.Duration("budget", 10*time.Second, "Total compute budget for the trace")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "flag parse: %v\n", err)
		os.Exit(2)
	}

	req, err := readRequest(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read request: %v\n", err)
		os.Exit(1)
	}

	state := buildState(req)
	if err := state.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid board: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Game %s, turn %d, %s %dx%d\n\n",
		req.Game.ID, req.Turn, state.Ruleset, state.Width, state.Height)
	printBoard(state)

	fmt.Println("Territory:")
	territory := engine.Territory(state)
	for i := range state.Snakes {
		s := &state.Snakes[i]
		marker := " "
		if s.Id == state.YouId {
			marker = "*"
		}
		fmt.Printf("  %s%-20s len=%-3d health=%-3d cells=%d\n",
			marker, s.Id, s.Len(), s.Health, territory[s.Id])
	}
	fmt.Println()

	safe := rules.SafeMoves(state)
	names := make([]string, 0, len(safe))
	for _, m := range safe {
		names = append(names, rules.MoveNames[m])
	}
	fmt.Printf("Safe moves: %s\n\n", strings.Join(names, ", "))

	fmt.Println("Search trace:")
	deadline := time.Now().Add(*budget)
	for depth := 1; depth <= *maxDepth; depth++ {
		eng := engine.New()
		eng.MaxDepth = depth
		eng.Weights.Noise = 0

		start := time.Now()
		decision := eng.Decide(state.Clone(), deadline, nil)
		elapsed := time.Since(start)

		if decision.Depth < depth {
			if time.Now().After(deadline) {
				fmt.Printf("  depth %2d: deadline hit after %s\n", depth, elapsed.Round(time.Millisecond))
			} else {
				fmt.Printf("  depth %2d: settled at depth %d, %s score=%.0f\n",
					depth, decision.Depth, rules.MoveNames[decision.Move], decision.Score)
			}
			break
		}
		fmt.Printf("  depth %2d: %-5s score=%.0f (%s)\n",
			depth, rules.MoveNames[decision.Move], decision.Score, elapsed.Round(time.Millisecond))
	}
}

func readRequest(path string) (*moveRequest, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var req moveRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func buildState(req *moveRequest) *game.BoardState {
	name := strings.ToLower(req.Game.Ruleset.Name)
	state := &game.BoardState{
		Width:        int32(req.Board.Width),
		Height:       int32(req.Board.Height),
		Wrapped:      strings.Contains(name, "wrapped"),
		HazardDamage: int32(req.Game.Ruleset.Settings.HazardDamagePerTurn),
		Turn:         int32(req.Turn),
		YouId:        req.You.ID,
	}
	switch {
	case strings.Contains(name, "constrictor"):
		state.Ruleset = game.RulesetConstrictor
	case strings.Contains(name, "royale"):
		state.Ruleset = game.RulesetRoyale
	default:
		state.Ruleset = game.RulesetStandard
	}

	for _, f := range req.Board.Food {
		state.Food = append(state.Food, game.Point{X: int32(f.X), Y: int32(f.Y)})
	}
	for _, h := range req.Board.Hazards {
		state.Hazards = append(state.Hazards, game.Point{X: int32(h.X), Y: int32(h.Y)})
	}
	for _, s := range req.Board.Snakes {
		snk := game.Snake{Id: s.ID, Health: int32(s.Health)}
		for _, b := range s.Body {
			snk.Body = append(snk.Body, game.Point{X: int32(b.X), Y: int32(b.Y)})
		}
		state.Snakes = append(state.Snakes, snk)
	}

	state.RebuildObstacles()
	return state
}

// printBoard renders the board with y=0 at the bottom, matching the
// game's coordinate system. Snakes print as letters (head uppercase),
// food as *, hazards as ~.
func printBoard(state *game.BoardState) {
	grid := make([][]rune, state.Height)
	for y := range grid {
		grid[y] = make([]rune, state.Width)
		for x := range grid[y] {
			grid[y][x] = '.'
		}
	}
	for _, h := range state.Hazards {
		if state.InBounds(h) {
			grid[h.Y][h.X] = '~'
		}
	}
	for _, f := range state.Food {
		if state.InBounds(f) {
			grid[f.Y][f.X] = '*'
		}
	}
	for i := range state.Snakes {
		s := &state.Snakes[i]
		letter := rune('a' + (i % 26))
		for j, b := range s.Body {
			if !state.InBounds(b) {
				continue
			}
			if j == 0 {
				grid[b.Y][b.X] = letter - 'a' + 'A'
			} else {
				grid[b.Y][b.X] = letter
			}
		}
	}

	for y := state.Height - 1; y >= 0; y-- {
		var sb strings.Builder
		for x := int32(0); x < state.Width; x++ {
			sb.WriteRune(grid[y][x])
			sb.WriteByte(' ')
		}
		fmt.Println(sb.String())
	}
	fmt.Println()
}
