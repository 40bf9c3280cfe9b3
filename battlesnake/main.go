// Package main implements the Battlesnake API server around the
// heuristic search engine.
//
// The server owns everything the decision core treats as external: wire
// parsing and validation, per-game session lifecycle, deadline
// budgeting, and the optional parquet archive of decided turns.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rfoley/apexsnake/engine"
	"github.com/rfoley/apexsnake/game"
	"github.com/rfoley/apexsnake/logging"
	"github.com/rfoley/apexsnake/store"
)

// Battlesnake API request/response types

type InfoResponse struct {
	APIVersion string `json:"apiversion"`
	Author     string `json:"author"`
	Color      string `json:"color"`
	Head       string `json:"head"`
	Tail       string `json:"tail"`
	Version    string `json:"version"`
}

type GameRequest struct {
	Game  Game        `json:"game"`
	Turn  int         `json:"turn"`
	Board Board       `json:"board"`
	You   Battlesnake `json:"you"`
}

type Game struct {
	ID      string  `json:"id"`
	Ruleset Ruleset `json:"ruleset"`
	Map     string  `json:"map"`
	Timeout int     `json:"timeout"`
	Source  string  `json:"source"`
}

type Ruleset struct {
	Name     string          `json:"name"`
	Version  string          `json:"version"`
	Settings RulesetSettings `json:"settings"`
}

type RulesetSettings struct {
	FoodSpawnChance     int `json:"foodSpawnChance"`
	MinimumFood         int `json:"minimumFood"`
	HazardDamagePerTurn int `json:"hazardDamagePerTurn"`
}

type Board struct {
	Height  int           `json:"height"`
	Width   int           `json:"width"`
	Food    []Coord       `json:"food"`
	Hazards []Coord       `json:"hazards"`
	Snakes  []Battlesnake `json:"snakes"`
}

type Battlesnake struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Health  int     `json:"health"`
	Body    []Coord `json:"body"`
	Latency string  `json:"latency"`
	Head    Coord   `json:"head"`
	Length  int     `json:"length"`
	Shout   string  `json:"shout"`
}

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type MoveResponse struct {
	Move  string `json:"move"`
	Shout string `json:"shout,omitempty"`
}

var moveNames = [4]string{"up", "down", "left", "right"}

// Server wires the engine to the API.
type Server struct {
	eng         *engine.Engine
	sessions    *engine.SessionStore
	archive     *store.Writer // nil when archiving is disabled
	moveTimeout time.Duration
	buffer      time.Duration
	log         *slog.Logger
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	response := InfoResponse{
		APIVersion: "1",
		Author:     "apexsnake",
		Color:      "#b5123a",
		Head:       "evil",
		Tail:       "sharp",
		Version:    "1.0.0",
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.sessions.Start(req.Game.ID)
	s.log.Info("game started",
		"game_id", req.Game.ID,
		"ruleset", req.Game.Ruleset.Name,
		"board", fmt.Sprintf("%dx%d", req.Board.Width, req.Board.Height))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	state := convertToBoardState(&req)
	if err := state.Validate(); err != nil {
		// Structural violations are a parsing/configuration bug, never
		// something the search patches up.
		s.log.Error("invalid board state", "game_id", req.Game.ID, "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	timeout := s.moveTimeout
	if req.Game.Timeout > 0 {
		timeout = time.Duration(req.Game.Timeout) * time.Millisecond
	}
	computeTime := timeout - s.buffer
	if computeTime < 50*time.Millisecond {
		computeTime = 50 * time.Millisecond
	}
	deadline := startTime.Add(computeTime)

	sess := s.sessions.Get(req.Game.ID)
	if sess == nil {
		// /start can be missed after a restart; recover quietly.
		sess = s.sessions.Start(req.Game.ID)
	}

	decision := s.eng.Decide(state, deadline, sess)
	if you, _ := state.You(); you != nil {
		sess.Push(you.Head())
	}
	elapsed := time.Since(startTime)

	if s.archive != nil {
		row := store.SnapshotTurn(req.Game.ID, state, decision.Move, decision.Score, decision.Depth, elapsed, "server")
		if err := s.archive.Append(row); err != nil {
			s.log.Warn("archive append failed", "err", err)
		}
	}

	s.log.Info("move",
		"game_id", req.Game.ID,
		"turn", req.Turn,
		"move", moveNames[decision.Move],
		"depth", decision.Depth,
		"score", decision.Score,
		"elapsed", elapsed)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(MoveResponse{Move: moveNames[decision.Move]})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.sessions.End(req.Game.ID)

	youAlive := false
	for _, snake := range req.Board.Snakes {
		if snake.ID == req.You.ID {
			youAlive = true
			break
		}
	}
	result := "lost"
	if youAlive {
		result = "won"
	} else if len(req.Board.Snakes) == 0 {
		result = "draw"
	}

	if s.archive != nil {
		if _, err := s.archive.Flush(); err != nil {
			s.log.Warn("archive flush failed", "err", err)
		}
	}

	s.log.Info("game ended", "game_id", req.Game.ID, "turn", req.Turn, "result", result)
	w.WriteHeader(http.StatusOK)
}

// convertToBoardState maps the wire payload onto the engine's state
// model. Ruleset names follow the engine convention of bare names with
// variants ("wrapped", "royale-constrictor", ...).
func convertToBoardState(req *GameRequest) *game.BoardState {
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

	state.Food = make([]game.Point, len(req.Board.Food))
	for i, f := range req.Board.Food {
		state.Food[i] = game.Point{X: int32(f.X), Y: int32(f.Y)}
	}
	state.Hazards = make([]game.Point, len(req.Board.Hazards))
	for i, h := range req.Board.Hazards {
		state.Hazards[i] = game.Point{X: int32(h.X), Y: int32(h.Y)}
	}

	state.Snakes = make([]game.Snake, len(req.Board.Snakes))
	for i, sn := range req.Board.Snakes {
		snake := game.Snake{
			Id:     sn.ID,
			Health: int32(sn.Health),
			Body:   make([]game.Point, len(sn.Body)),
		}
		for j, b := range sn.Body {
			snake.Body[j] = game.Point{X: int32(b.X), Y: int32(b.Y)}
		}
		state.Snakes[i] = snake
	}

	state.RebuildObstacles()
	return state
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	listen := fs.String("listen", ":8080", "HTTP listen address")
	moveTimeout := fs.Duration("move-timeout", 500*time.Millisecond, "Default move timeout when the request carries none")
	buffer := fs.Duration("response-buffer", 120*time.Millisecond, "Time reserved for serialization and network latency")
	maxDepth := fs.Int("max-depth", 12, "Iterative deepening depth cap")
	historySize := fs.Int("history", 16, "Recent-position history per game (anti-oscillation)")
	archiveDir := fs.String("archive-dir", "", "Write decided turns as parquet batches into this directory (empty = off)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "flag parse: %v\n", err)
		os.Exit(2)
	}

	log := slog.New(logging.NewJSONLineHandler(os.Stdout, nil))

	eng := engine.New()
	eng.MaxDepth = *maxDepth

	server := &Server{
		eng:         eng,
		sessions:    engine.NewSessionStore(*historySize),
		moveTimeout: *moveTimeout,
		buffer:      *buffer,
		log:         log,
	}

	if *archiveDir != "" {
		w, err := store.NewWriter(*archiveDir, 0)
		if err != nil {
			log.Error("archive writer", "err", err)
			os.Exit(1)
		}
		server.archive = w
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", server.handleIndex)
	mux.HandleFunc("/start", server.handleStart)
	mux.HandleFunc("/move", server.handleMove)
	mux.HandleFunc("/end", server.handleEnd)

	srv := &http.Server{
		Addr:              *listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("listening", "addr", *listen)
	if err := srv.ListenAndServe(); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}
