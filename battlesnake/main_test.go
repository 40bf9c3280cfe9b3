package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rfoley/apexsnake/engine"
	"github.com/rfoley/apexsnake/game"
)

func testServer() *Server {
	return &Server{
		eng:         engine.New(),
		sessions:    engine.NewSessionStore(16),
		moveTimeout: 200 * time.Millisecond,
		buffer:      100 * time.Millisecond,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func testRequest() GameRequest {
	return GameRequest{
		Game: Game{
			ID: "test-game",
			Ruleset: Ruleset{
				Name: "standard",
			},
			Timeout: 200,
		},
		Turn: 3,
		Board: Board{
			Width:  11,
			Height: 11,
			Food:   []Coord{{X: 2, Y: 2}},
			Snakes: []Battlesnake{
				{
					ID:     "me",
					Health: 90,
					Body:   []Coord{{X: 5, Y: 5}, {X: 5, Y: 4}, {X: 5, Y: 3}},
				},
				{
					ID:     "other",
					Health: 100,
					Body:   []Coord{{X: 9, Y: 9}, {X: 9, Y: 8}},
				},
			},
		},
		You: Battlesnake{ID: "me"},
	}
}

func TestConvertToBoardState(t *testing.T) {
	req := testRequest()
	req.Game.Ruleset.Name = "royale"
	req.Game.Ruleset.Settings.HazardDamagePerTurn = 14
	req.Board.Hazards = []Coord{{X: 0, Y: 0}}

	state := convertToBoardState(&req)

	if state.Ruleset != game.RulesetRoyale {
		t.Fatalf("ruleset=%v want royale", state.Ruleset)
	}
	if state.Wrapped {
		t.Fatalf("royale is not wrapped")
	}
	if state.HazardDamage != 14 || state.Turn != 3 || state.YouId != "me" {
		t.Fatalf("header fields wrong: %+v", state)
	}
	if len(state.Snakes) != 2 || state.Snakes[0].Len() != 3 {
		t.Fatalf("snakes mapped wrong")
	}
	if !state.Blocked(game.Point{X: 5, Y: 4}) {
		t.Fatalf("obstacles not rebuilt")
	}
	if state.Blocked(game.Point{X: 0, Y: 0}) {
		t.Fatalf("royale hazard must not block")
	}
	if err := state.Validate(); err != nil {
		t.Fatalf("converted state invalid: %v", err)
	}
}

func TestConvertToBoardState_VariantNames(t *testing.T) {
	cases := []struct {
		name    string
		ruleset game.Ruleset
		wrapped bool
	}{
		{"standard", game.RulesetStandard, false},
		{"wrapped", game.RulesetStandard, true},
		{"royale", game.RulesetRoyale, false},
		{"constrictor", game.RulesetConstrictor, false},
		{"wrapped-constrictor", game.RulesetConstrictor, true},
	}
	for _, tc := range cases {
		req := testRequest()
		req.Game.Ruleset.Name = tc.name
		state := convertToBoardState(&req)
		if state.Ruleset != tc.ruleset || state.Wrapped != tc.wrapped {
			t.Fatalf("%s: ruleset=%v wrapped=%v", tc.name, state.Ruleset, state.Wrapped)
		}
	}
}

func TestHandleMove_ReturnsLegalMove(t *testing.T) {
	srv := testServer()
	body, _ := json.Marshal(testRequest())

	rec := httptest.NewRecorder()
	srv.handleMove(rec, httptest.NewRequest(http.MethodPost, "/move", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp MoveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	valid := map[string]bool{"up": true, "down": true, "left": true, "right": true}
	if !valid[resp.Move] {
		t.Fatalf("move=%q not a direction", resp.Move)
	}
}

func TestHandleMove_RejectsMalformedState(t *testing.T) {
	srv := testServer()
	req := testRequest()
	req.Board.Snakes[0].Body = nil // structural violation

	body, _ := json.Marshal(req)
	rec := httptest.NewRecorder()
	srv.handleMove(rec, httptest.NewRequest(http.MethodPost, "/move", bytes.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rec.Code)
	}
}

func TestHandleMove_RejectsBadJSON(t *testing.T) {
	srv := testServer()
	rec := httptest.NewRecorder()
	srv.handleMove(rec, httptest.NewRequest(http.MethodPost, "/move", bytes.NewReader([]byte("{"))))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rec.Code)
	}
}

func TestSessionLifecycleAcrossHandlers(t *testing.T) {
	srv := testServer()
	body, _ := json.Marshal(testRequest())

	rec := httptest.NewRecorder()
	srv.handleStart(rec, httptest.NewRequest(http.MethodPost, "/start", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("start status=%d", rec.Code)
	}
	if srv.sessions.Get("test-game") == nil {
		t.Fatalf("start did not create a session")
	}

	rec = httptest.NewRecorder()
	srv.handleEnd(rec, httptest.NewRequest(http.MethodPost, "/end", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("end status=%d", rec.Code)
	}
	if srv.sessions.Get("test-game") != nil {
		t.Fatalf("end did not dispose the session")
	}
}

func TestHandleIndex(t *testing.T) {
	srv := testServer()
	rec := httptest.NewRecorder()
	srv.handleIndex(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var info InfoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("bad info response: %v", err)
	}
	if info.APIVersion != "1" {
		t.Fatalf("apiversion=%q want 1", info.APIVersion)
	}

	rec = httptest.NewRecorder()
	srv.handleIndex(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown path status=%d want 404", rec.Code)
	}
}
