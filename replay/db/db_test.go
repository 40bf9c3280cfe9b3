package db

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "replay.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInsertGame_RoundTrip(t *testing.T) {
	store := openTestDB(t)

	g := GameRecord{ID: "g1", Winner: "alpha", Ruleset: "standard"}
	frames := []FrameRecord{
		{GameID: "g1", Turn: 0, RawJSON: `{"turn":0}`},
		{GameID: "g1", Turn: 1, RawJSON: `{"turn":1}`},
	}
	if err := store.InsertGame(g, frames); err != nil {
		t.Fatalf("InsertGame: %v", err)
	}

	has, err := store.HasGame("g1")
	if err != nil || !has {
		t.Fatalf("HasGame=%v err=%v", has, err)
	}
	has, err = store.HasGame("missing")
	if err != nil || has {
		t.Fatalf("HasGame(missing)=%v err=%v", has, err)
	}

	got, err := store.GameFrames("g1")
	if err != nil {
		t.Fatalf("GameFrames: %v", err)
	}
	if len(got) != 2 || got[0].Turn != 0 || got[1].RawJSON != `{"turn":1}` {
		t.Fatalf("frames wrong: %+v", got)
	}
}

func TestInsertGame_IsIdempotent(t *testing.T) {
	store := openTestDB(t)

	g := GameRecord{ID: "g1", Winner: "alpha", Ruleset: "standard"}
	frames := []FrameRecord{{GameID: "g1", Turn: 0, RawJSON: "{}"}}
	if err := store.InsertGame(g, frames); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := store.InsertGame(g, frames); err != nil {
		t.Fatalf("repeat insert: %v", err)
	}

	total, _, totalFrames, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if total != 1 || totalFrames != 1 {
		t.Fatalf("games=%d frames=%d want 1,1", total, totalFrames)
	}
}

func TestReplayedFlagWorkflow(t *testing.T) {
	store := openTestDB(t)

	for _, id := range []string{"g1", "g2"} {
		g := GameRecord{ID: id, Winner: "w", Ruleset: "standard"}
		if err := store.InsertGame(g, []FrameRecord{{GameID: id, Turn: 0, RawJSON: "{}"}}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	pending, err := store.UnreplayedGames(10)
	if err != nil {
		t.Fatalf("UnreplayedGames: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending=%d want 2", len(pending))
	}

	if err := store.MarkReplayed("g1"); err != nil {
		t.Fatalf("MarkReplayed: %v", err)
	}
	pending, err = store.UnreplayedGames(10)
	if err != nil {
		t.Fatalf("UnreplayedGames: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "g2" {
		t.Fatalf("pending=%+v want just g2", pending)
	}

	ids, err := store.KnownGameIDs()
	if err != nil {
		t.Fatalf("KnownGameIDs: %v", err)
	}
	if len(ids) != 2 || !ids["g1"] || !ids["g2"] {
		t.Fatalf("known ids wrong: %v", ids)
	}
}
