// Package store persists decided turns as zstd-compressed parquet for
// offline analysis (cmd/stats, cmd/replayer).
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/rfoley/apexsnake/game"
)

// TurnRow is a single decision: the board the engine saw and what it
// chose. One row per (game, turn); food/hazards are stored as parallel
// coordinate columns for compression.
type TurnRow struct {
	GameID  string `parquet:"game_id,dict"`
	Turn    int32  `parquet:"turn"`
	Width   int32  `parquet:"width"`
	Height  int32  `parquet:"height"`
	Ruleset string `parquet:"ruleset,dict"`
	Wrapped bool   `parquet:"wrapped"`

	FoodX []int32 `parquet:"food_x"`
	FoodY []int32 `parquet:"food_y"`

	HazardX []int32 `parquet:"hazard_x"`
	HazardY []int32 `parquet:"hazard_y"`

	Snakes []SnakeRow `parquet:"snakes"`

	// Move is the chosen action: 0=Up, 1=Down, 2=Left, 3=Right.
	Move      int32   `parquet:"move"`
	Score     float64 `parquet:"score"`
	Depth     int32   `parquet:"depth"`
	ElapsedUs int64   `parquet:"elapsed_us"`

	Source string `parquet:"source,dict"`
}

type SnakeRow struct {
	ID     string `parquet:"id,dict"`
	You    bool   `parquet:"you"`
	Health int32  `parquet:"health"`

	BodyX []int32 `parquet:"body_x"`
	BodyY []int32 `parquet:"body_y"`
}

// SnapshotTurn flattens a board state and its decision into a row.
func SnapshotTurn(gameID string, state *game.BoardState, move int, score float64, depth int, elapsed time.Duration, source string) TurnRow {
	row := TurnRow{
		GameID:    gameID,
		Turn:      state.Turn,
		Width:     state.Width,
		Height:    state.Height,
		Ruleset:   state.Ruleset.String(),
		Wrapped:   state.Wrapped,
		Move:      int32(move),
		Score:     score,
		Depth:     int32(depth),
		ElapsedUs: elapsed.Microseconds(),
		Source:    source,
	}
	for _, f := range state.Food {
		row.FoodX = append(row.FoodX, f.X)
		row.FoodY = append(row.FoodY, f.Y)
	}
	for _, h := range state.Hazards {
		row.HazardX = append(row.HazardX, h.X)
		row.HazardY = append(row.HazardY, h.Y)
	}
	for i := range state.Snakes {
		s := &state.Snakes[i]
		sr := SnakeRow{ID: s.Id, You: s.Id == state.YouId, Health: s.Health}
		for _, p := range s.Body {
			sr.BodyX = append(sr.BodyX, p.X)
			sr.BodyY = append(sr.BodyY, p.Y)
		}
		row.Snakes = append(row.Snakes, sr)
	}
	return row
}

// WriteTurnsParquet writes rows to outPath atomically (tmp then rename)
// so readers never observe a partially written file.
func WriteTurnsParquet(outPath string, rows []TurnRow) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", "turn_row_v1"),
	); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// Writer accumulates rows from concurrent games and flushes them into
// timestamped batch files under outDir. Batches are written into
// outDir/tmp and renamed into place.
type Writer struct {
	mu        sync.Mutex
	outDir    string
	batchSize int
	rows      []TurnRow
}

func NewWriter(outDir string, batchSize int) (*Writer, error) {
	if outDir == "" {
		return nil, fmt.Errorf("outDir is required")
	}
	if batchSize <= 0 {
		batchSize = 4096
	}
	if err := os.MkdirAll(filepath.Join(outDir, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("create tmp dir: %w", err)
	}
	return &Writer{outDir: outDir, batchSize: batchSize}, nil
}

// Append buffers a row and flushes when the batch is full.
func (w *Writer) Append(row TurnRow) error {
	w.mu.Lock()
	w.rows = append(w.rows, row)
	if len(w.rows) < w.batchSize {
		w.mu.Unlock()
		return nil
	}
	rows := w.rows
	w.rows = nil
	w.mu.Unlock()
	_, err := w.writeBatch(rows)
	return err
}

// Flush writes any buffered rows out. Returns the batch path, or ""
// when there was nothing to write.
func (w *Writer) Flush() (string, error) {
	w.mu.Lock()
	rows := w.rows
	w.rows = nil
	w.mu.Unlock()
	if len(rows) == 0 {
		return "", nil
	}
	return w.writeBatch(rows)
}

func (w *Writer) writeBatch(rows []TurnRow) (string, error) {
	name := fmt.Sprintf("batch_%d.parquet", time.Now().UnixNano())
	finalPath := filepath.Join(w.outDir, name)
	tmpPath := filepath.Join(w.outDir, "tmp", name+".tmp")

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", "turn_row_v1"),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return finalPath, nil
}
