// Command arena plays the engine against itself. Each worker runs full
// games on a private board, every snake deciding through its own
// engine instance, and decisions stream into parquet batches. Progress
// shows on a bubbletea dashboard (or plain logs with -no-tui).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rfoley/apexsnake/engine"
	"github.com/rfoley/apexsnake/game"
	"github.com/rfoley/apexsnake/logging"
	"github.com/rfoley/apexsnake/rules"
	"github.com/rfoley/apexsnake/store"
)

var (
	totalTurns atomic.Int64
	totalGames atomic.Int64
)

const maxGameTurns = 500

type gameUpdate struct {
	WorkerID int
	Winner   string
	Turns    int
}

type arenaConfig struct {
	Width   int32
	Height  int32
	Snakes  int
	Budget  time.Duration
	Seed    int64
	Archive *store.Writer
}

// playGame runs one self-play game to completion and returns the
// winner id ("" for a draw) and the turn count.
func playGame(ctx context.Context, cfg arenaConfig, rng *rand.Rand) (string, int) {
	state := newArenaBoard(cfg, rng)

	engines := make(map[string]*engine.Engine, cfg.Snakes)
	sessions := make(map[string]*engine.Session, cfg.Snakes)
	for i := range state.Snakes {
		id := state.Snakes[i].Id
		e := engine.New()
		e.Weights.Rand = rand.New(rand.NewSource(rng.Int63()))
		engines[id] = e
		sessions[id] = engine.NewSession(0)
	}

	gameID := fmt.Sprintf("arena-%d", rng.Int63())
	foodSettings := rules.DefaultFoodSettings

	for state.Turn < maxGameTurns && len(state.Snakes) > 1 {
		select {
		case <-ctx.Done():
			return "", int(state.Turn)
		default:
		}

		moves := make(map[string]int, len(state.Snakes))
		for i := range state.Snakes {
			id := state.Snakes[i].Id

			view := state.Clone()
			view.YouId = id

			start := time.Now()
			decision := engines[id].Decide(view, start.Add(cfg.Budget), sessions[id])
			sessions[id].Push(state.Snakes[i].Head())
			moves[id] = decision.Move

			if cfg.Archive != nil {
				row := store.SnapshotTurn(gameID, view, decision.Move, decision.Score, decision.Depth, time.Since(start), "arena")
				_ = cfg.Archive.Append(row)
			}
		}

		rules.StepSimultaneous(state, moves)
		rules.SpawnFood(state, rng, foodSettings)
		totalTurns.Add(1)
	}

	if len(state.Snakes) == 1 {
		return state.Snakes[0].Id, int(state.Turn)
	}
	return "", int(state.Turn)
}

// newArenaBoard places snakes on the corner ring the official board
// generator uses, stacked to length 3, with one food each.
func newArenaBoard(cfg arenaConfig, rng *rand.Rand) *game.BoardState {
	state := &game.BoardState{
		Width:   cfg.Width,
		Height:  cfg.Height,
		Ruleset: game.RulesetStandard,
	}

	starts := [4]game.Point{
		{X: 1, Y: 1},
		{X: cfg.Width - 2, Y: cfg.Height - 2},
		{X: 1, Y: cfg.Height - 2},
		{X: cfg.Width - 2, Y: 1},
	}
	n := cfg.Snakes
	if n < 2 {
		n = 2
	}
	if n > 4 {
		n = 4
	}
	for i := 0; i < n; i++ {
		p := starts[i]
		state.Snakes = append(state.Snakes, game.Snake{
			Id:     fmt.Sprintf("snake-%d", i),
			Health: 100,
			Body:   []game.Point{p, p, p},
		})
	}

	state.RebuildObstacles()
	for i := 0; i < n; i++ {
		rules.SpawnFood(state, rng, rules.FoodSettings{MinimumFood: i + 1, FoodSpawnChance: 0})
	}
	return state
}

// Dashboard. One line of counters plus the most recent results,
// refreshed on a short tick.

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type model struct {
	gamesPlayed int
	turns       int64
	winCounts   map[string]int
	startTime   time.Time
	recent      []string
	updates     chan gameUpdate
}

func initialModel(updates chan gameUpdate) model {
	return model{
		startTime: time.Now(),
		winCounts: make(map[string]int),
		updates:   updates,
	}
}

func waitForUpdate(updates chan gameUpdate) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		m.turns = totalTurns.Load()
		return m, tickCmd()
	case gameUpdate:
		m.gamesPlayed++
		winner := msg.Winner
		if winner == "" {
			winner = "draw"
		}
		m.winCounts[winner]++
		line := fmt.Sprintf("Worker %d: winner %s, turns %d", msg.WorkerID, winner, msg.Turns)
		m.recent = append([]string{line}, m.recent...)
		if len(m.recent) > 10 {
			m.recent = m.recent[:10]
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m model) View() string {
	duration := time.Since(m.startTime)
	gamesPerSec := 0.0
	turnsPerSec := 0.0
	if duration.Seconds() >= 1 {
		gamesPerSec = float64(m.gamesPlayed) / duration.Seconds()
		turnsPerSec = float64(m.turns) / duration.Seconds()
	}

	s := fmt.Sprintf("Games Played: %d\n", m.gamesPlayed)
	s += fmt.Sprintf("Total Turns:  %d\n", m.turns)
	s += fmt.Sprintf("Duration:     %s\n", duration.Round(time.Second))
	s += fmt.Sprintf("Games/Sec:    %.2f\n", gamesPerSec)
	s += fmt.Sprintf("Turns/Sec:    %.2f\n\n", turnsPerSec)

	s += "Wins:\n"
	for id, n := range m.winCounts {
		s += fmt.Sprintf("  %s: %d\n", id, n)
	}

	s += "\nRecent Games:\n"
	for _, g := range m.recent {
		s += g + "\n"
	}

	s += "\nPress q to quit.\n"
	return s
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	workers := fs.Int("workers", 4, "Concurrent self-play games")
	snakes := fs.Int("snakes", 2, "Snakes per game (2-4)")
	width := fs.Int("width", 11, "Board width")
	height := fs.Int("height", 11, "Board height")
	budget := fs.Duration("budget", 50*time.Millisecond, "Compute budget per decision")
	maxGames := fs.Int64("max-games", 0, "Stop after this many games (0 = run until interrupted)")
	outDir := fs.String("out-dir", "", "Write decisions as parquet batches into this directory (empty = off)")
	seed := fs.Int64("seed", time.Now().UnixNano(), "Base RNG seed")
	noTUI := fs.Bool("no-tui", false, "Log results instead of showing the dashboard")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "flag parse: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := slog.New(logging.NewJSONLineHandler(os.Stderr, nil))

	var archive *store.Writer
	if *outDir != "" {
		w, err := store.NewWriter(*outDir, 0)
		if err != nil {
			log.Error("archive writer", "err", err)
			os.Exit(1)
		}
		archive = w
	}

	cfg := arenaConfig{
		Width:   int32(*width),
		Height:  int32(*height),
		Snakes:  *snakes,
		Budget:  *budget,
		Archive: archive,
	}

	updates := make(chan gameUpdate, *workers)

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(*seed + int64(workerID)))
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				winner, turns := playGame(ctx, cfg, rng)
				if ctx.Err() != nil {
					return
				}
				total := totalGames.Add(1)
				if *maxGames > 0 && total >= *maxGames {
					cancel()
				}

				// Never block shutdown on a stalled consumer.
				select {
				case updates <- gameUpdate{WorkerID: workerID, Winner: winner, Turns: turns}:
				default:
				}
			}
		}(i)
	}

	if *noTUI {
		runPlain(ctx, updates, log)
	} else {
		p := tea.NewProgram(initialModel(updates), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			log.Error("dashboard", "err", err)
		}
		cancel()
	}

	wg.Wait()
	if archive != nil {
		if _, err := archive.Flush(); err != nil {
			log.Error("flush archive", "err", err)
		}
	}
	log.Info("arena finished", "games", totalGames.Load(), "turns", totalTurns.Load())
}

func runPlain(ctx context.Context, updates chan gameUpdate, log *slog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			winner := u.Winner
			if winner == "" {
				winner = "draw"
			}
			log.Info("game finished", "worker", u.WorkerID, "winner", winner, "turns", u.Turns)
		case <-ticker.C:
			log.Info("progress", "games", totalGames.Load(), "turns", totalTurns.Load())
		}
	}
}
