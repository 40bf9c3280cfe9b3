// Package db stores downloaded games and their per-turn frames in
// SQLite. One writer, WAL journaling; readers are the replayer and
// stats tooling.
package db

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB serializes all access through a single connection. SQLite only
// ever has one writer; the mutex keeps our own callers honest too.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
}

// GameRecord is a fetched game. Replayed flips once cmd/replayer has
// re-decided every turn of the game.
type GameRecord struct {
	ID        string
	Winner    string
	Ruleset   string
	FetchedAt time.Time
	Replayed  bool
}

// FrameRecord is the raw engine frame for one turn, kept as the JSON
// blob the websocket delivered. Parsing is deferred to the consumer.
type FrameRecord struct {
	GameID  string
	Turn    int
	RawJSON string
}

func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,
		winner TEXT,
		ruleset TEXT,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		replayed BOOLEAN DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS frames (
		game_id TEXT,
		turn INTEGER,
		raw_json TEXT,
		PRIMARY KEY (game_id, turn),
		FOREIGN KEY(game_id) REFERENCES games(id)
	);

	CREATE INDEX IF NOT EXISTS idx_games_replayed ON games(replayed);
	CREATE INDEX IF NOT EXISTS idx_frames_game_id ON frames(game_id);
	`

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (db *DB) HasGame(gameID string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var one int
	err := db.conn.QueryRow("SELECT 1 FROM games WHERE id = ?", gameID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertGame stores a game and all of its frames in one transaction so
// a crash never leaves a game without its turns.
func (db *DB) InsertGame(g GameRecord, frames []FrameRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT OR IGNORE INTO games (id, winner, ruleset) VALUES (?, ?, ?)",
		g.ID, g.Winner, g.Ruleset,
	); err != nil {
		return fmt.Errorf("insert game: %w", err)
	}

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO frames (game_id, turn, raw_json) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare frame insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range frames {
		if _, err := stmt.Exec(f.GameID, f.Turn, f.RawJSON); err != nil {
			return fmt.Errorf("insert frame %d: %w", f.Turn, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UnreplayedGames returns up to limit games the replayer has not
// processed yet.
func (db *DB) UnreplayedGames(limit int) ([]GameRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(
		"SELECT id, winner, ruleset, fetched_at, replayed FROM games WHERE replayed = 0 LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []GameRecord
	for rows.Next() {
		var g GameRecord
		if err := rows.Scan(&g.ID, &g.Winner, &g.Ruleset, &g.FetchedAt, &g.Replayed); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// GameFrames returns a game's frames in turn order.
func (db *DB) GameFrames(gameID string) ([]FrameRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(
		"SELECT game_id, turn, raw_json FROM frames WHERE game_id = ? ORDER BY turn",
		gameID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []FrameRecord
	for rows.Next() {
		var f FrameRecord
		if err := rows.Scan(&f.GameID, &f.Turn, &f.RawJSON); err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

func (db *DB) MarkReplayed(gameID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec("UPDATE games SET replayed = 1 WHERE id = ?", gameID)
	return err
}

// KnownGameIDs returns every stored game id, used to seed discovery
// deduplication.
func (db *DB) KnownGameIDs() (map[string]bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query("SELECT id FROM games")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// Stats reports row counts for operator logging.
func (db *DB) Stats() (totalGames, replayedGames, totalFrames int64, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err = db.conn.QueryRow("SELECT COUNT(*) FROM games").Scan(&totalGames); err != nil {
		return
	}
	if err = db.conn.QueryRow("SELECT COUNT(*) FROM games WHERE replayed = 1").Scan(&replayedGames); err != nil {
		return
	}
	err = db.conn.QueryRow("SELECT COUNT(*) FROM frames").Scan(&totalFrames)
	return
}

func (db *DB) Close() error {
	return db.conn.Close()
}
