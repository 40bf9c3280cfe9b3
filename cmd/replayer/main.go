// Command replayer re-decides stored games turn by turn: for each
// unreplayed game in the SQLite store it rebuilds the board from the
// raw frames, runs the engine from one snake's perspective with a fixed
// compute budget, and reports how often the engine agrees with the move
// that was actually played. Decisions are archived as parquet rows for
// cmd/stats.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rfoley/apexsnake/engine"
	"github.com/rfoley/apexsnake/game"
	"github.com/rfoley/apexsnake/logging"
	"github.com/rfoley/apexsnake/replay/db"
	"github.com/rfoley/apexsnake/rules"
	"github.com/rfoley/apexsnake/store"
)

// frame is the subset of the engine's frame event the replayer needs.
type frame struct {
	Turn   int `json:"turn"`
	Snakes []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Health int    `json:"health"`
		Body   []struct {
			X int `json:"x"`
			Y int `json:"y"`
		} `json:"body"`
		Death *struct {
			Cause string `json:"cause"`
		} `json:"death,omitempty"`
	} `json:"snakes"`
	Food []struct {
		X int `json:"x"`
		Y int `json:"y"`
	} `json:"food"`
	Hazards []struct {
		X int `json:"x"`
		Y int `json:"y"`
	} `json:"hazards"`
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	dbPath := fs.String("db", "replay.db", "SQLite database path")
	outDir := fs.String("out-dir", "replay-decisions", "Directory for parquet decision batches")
	limit := fs.Int("limit", 100, "Games to replay in this run")
	budget := fs.Duration("budget", 100*time.Millisecond, "Compute budget per decision")
	maxDepth := fs.Int("max-depth", 12, "Iterative deepening depth cap")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "flag parse: %v\n", err)
		os.Exit(2)
	}

	log := slog.New(logging.NewJSONLineHandler(os.Stdout, nil))

	sqlStore, err := db.Open(*dbPath)
	if err != nil {
		log.Error("open store", "path", *dbPath, "err", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	writer, err := store.NewWriter(*outDir, 0)
	if err != nil {
		log.Error("open archive writer", "err", err)
		os.Exit(1)
	}

	games, err := sqlStore.UnreplayedGames(*limit)
	if err != nil {
		log.Error("list unreplayed games", "err", err)
		os.Exit(1)
	}
	log.Info("replaying", "games", len(games), "budget", *budget)

	eng := engine.New()
	eng.MaxDepth = *maxDepth
	// Replays must be reproducible run to run.
	eng.Weights.Noise = 0

	for _, g := range games {
		agreed, decided, err := replayGame(sqlStore, writer, eng, g, *budget, log)
		if err != nil {
			log.Warn("replay failed", "game_id", g.ID, "err", err)
			continue
		}
		if err := sqlStore.MarkReplayed(g.ID); err != nil {
			log.Warn("mark replayed failed", "game_id", g.ID, "err", err)
		}
		pct := 0.0
		if decided > 0 {
			pct = 100 * float64(agreed) / float64(decided)
		}
		log.Info("replayed game",
			"game_id", g.ID,
			"ruleset", g.Ruleset,
			"decided", decided,
			"agreed", agreed,
			"agreement_pct", fmt.Sprintf("%.1f", pct))
	}

	if _, err := writer.Flush(); err != nil {
		log.Error("flush archive", "err", err)
		os.Exit(1)
	}
}

// replayGame runs the engine over every consecutive frame pair from
// the perspective of the snake that ultimately won (or the first snake
// when the winner is unknown). Returns agreement and decision counts.
func replayGame(sqlStore *db.DB, writer *store.Writer, eng *engine.Engine, g db.GameRecord, budget time.Duration, log *slog.Logger) (agreed, decided int, err error) {
	records, err := sqlStore.GameFrames(g.ID)
	if err != nil {
		return 0, 0, err
	}
	if len(records) < 2 {
		return 0, 0, fmt.Errorf("only %d frames", len(records))
	}

	frames := make([]frame, len(records))
	for i, r := range records {
		if err := json.Unmarshal([]byte(r.RawJSON), &frames[i]); err != nil {
			return 0, 0, fmt.Errorf("frame %d: %w", r.Turn, err)
		}
	}

	width, height := boardDims(frames)
	youID := perspectiveSnake(frames[0], g.Winner)
	if youID == "" {
		return 0, 0, fmt.Errorf("no snakes in first frame")
	}

	sess := engine.NewSession(0)
	for i := 0; i+1 < len(frames); i++ {
		state := buildState(frames[i], width, height, g.Ruleset, youID)
		you, _ := state.You()
		if you == nil {
			break // perspective snake died
		}

		actual, ok := actualMove(state, frames[i+1], youID)
		if !ok {
			break
		}

		start := time.Now()
		decision := eng.Decide(state, start.Add(budget), sess)
		sess.Push(you.Head())

		decided++
		if decision.Move == actual {
			agreed++
		}

		row := store.SnapshotTurn(g.ID, state, decision.Move, decision.Score, decision.Depth, time.Since(start), "replay")
		if err := writer.Append(row); err != nil {
			log.Warn("archive append failed", "game_id", g.ID, "err", err)
		}
	}
	return agreed, decided, nil
}

// boardDims infers dimensions from observed coordinates. Frames do not
// carry board size; standard boards are at least 11x11.
func boardDims(frames []frame) (int32, int32) {
	var maxX, maxY int
	for _, f := range frames {
		for _, s := range f.Snakes {
			for _, b := range s.Body {
				if b.X > maxX {
					maxX = b.X
				}
				if b.Y > maxY {
					maxY = b.Y
				}
			}
		}
		for _, p := range f.Food {
			if p.X > maxX {
				maxX = p.X
			}
			if p.Y > maxY {
				maxY = p.Y
			}
		}
	}
	w, h := int32(maxX+1), int32(maxY+1)
	if w < 11 {
		w = 11
	}
	if h < 11 {
		h = 11
	}
	return w, h
}

// perspectiveSnake picks which snake to re-decide for: the recorded
// winner when it appears in the frame, otherwise the first snake.
func perspectiveSnake(f frame, winner string) string {
	for _, s := range f.Snakes {
		if s.Name == winner {
			return s.ID
		}
	}
	if len(f.Snakes) > 0 {
		return f.Snakes[0].ID
	}
	return ""
}

func buildState(f frame, width, height int32, ruleset, youID string) *game.BoardState {
	name := strings.ToLower(ruleset)
	state := &game.BoardState{
		Width:   width,
		Height:  height,
		Wrapped: strings.Contains(name, "wrapped"),
		Turn:    int32(f.Turn),
		YouId:   youID,
	}
	switch {
	case strings.Contains(name, "constrictor"):
		state.Ruleset = game.RulesetConstrictor
	case strings.Contains(name, "royale"):
		state.Ruleset = game.RulesetRoyale
		state.HazardDamage = 14
	default:
		state.Ruleset = game.RulesetStandard
	}

	for _, p := range f.Food {
		state.Food = append(state.Food, game.Point{X: int32(p.X), Y: int32(p.Y)})
	}
	for _, p := range f.Hazards {
		state.Hazards = append(state.Hazards, game.Point{X: int32(p.X), Y: int32(p.Y)})
	}
	for _, s := range f.Snakes {
		if s.Death != nil || len(s.Body) == 0 {
			continue
		}
		snake := game.Snake{Id: s.ID, Health: int32(s.Health)}
		for _, b := range s.Body {
			snake.Body = append(snake.Body, game.Point{X: int32(b.X), Y: int32(b.Y)})
		}
		state.Snakes = append(state.Snakes, snake)
	}

	state.RebuildObstacles()
	return state
}

// actualMove derives the move the snake really played from its head
// position in the following frame.
func actualMove(state *game.BoardState, next frame, youID string) (int, bool) {
	var nextHead game.Point
	found := false
	for _, s := range next.Snakes {
		if s.ID == youID && s.Death == nil && len(s.Body) > 0 {
			nextHead = game.Point{X: int32(s.Body[0].X), Y: int32(s.Body[0].Y)}
			found = true
			break
		}
	}
	if !found {
		return 0, false
	}

	you, _ := state.You()
	for m := 0; m < 4; m++ {
		dest, ok := rules.Destination(state, you.Head(), m)
		if ok && dest == nextHead {
			return m, true
		}
	}
	return 0, false
}
