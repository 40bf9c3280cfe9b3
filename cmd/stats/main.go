// Command stats reports on archived decisions. It points DuckDB at the
// parquet batches the server, arena, and replayer write and prints
// per-source aggregates: move distribution, search depth, and decision
// latency.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

var moveNames = [4]string{"up", "down", "left", "right"}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	roots := fs.String("roots", "data", "Comma-separated directories containing parquet decision batches")
	timeout := fs.Duration("timeout", 2*time.Minute, "Query timeout")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "flag parse: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := openOverParquet(strings.Split(*roots, ","))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open duckdb: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := report(ctx, db, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "stats: %v\n", err)
		os.Exit(1)
	}
}

// openOverParquet creates an in-memory DuckDB with a `turns` view over
// every parquet file under the roots, skipping in-flight tmp files.
func openOverParquet(roots []string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}
	_, _ = db.Exec("PRAGMA threads=4")

	globs := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		glob := filepath.Join(root, "**", "*.parquet")
		globs = append(globs, "'"+strings.ReplaceAll(glob, "'", "''")+"'")
	}
	if len(globs) == 0 {
		db.Close()
		return nil, fmt.Errorf("no roots given")
	}

	view := `CREATE OR REPLACE VIEW turns AS
		SELECT * FROM read_parquet([` + strings.Join(globs, ",") + `], filename=true, union_by_name=true)
		WHERE NOT contains(filename, '/tmp/')`
	if _, err := db.Exec(view); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func report(ctx context.Context, db *sql.DB, out *os.File) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer w.Flush()

	// Per-source overview.
	rows, err := db.QueryContext(ctx, `
		SELECT source,
			COUNT(DISTINCT game_id)::BIGINT AS games,
			COUNT(*)::BIGINT AS decisions,
			AVG(depth)::DOUBLE AS avg_depth,
			AVG(elapsed_us)::DOUBLE / 1000 AS avg_ms,
			quantile_cont(elapsed_us, 0.99)::DOUBLE / 1000 AS p99_ms
		FROM turns
		GROUP BY source
		ORDER BY source`)
	if err != nil {
		return err
	}
	defer rows.Close()

	fmt.Fprintln(w, "SOURCE\tGAMES\tDECISIONS\tAVG DEPTH\tAVG MS\tP99 MS")
	for rows.Next() {
		var source string
		var games, decisions int64
		var avgDepth, avgMs, p99Ms float64
		if err := rows.Scan(&source, &games, &decisions, &avgDepth, &avgMs, &p99Ms); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.1f\t%.1f\t%.1f\n", source, games, decisions, avgDepth, avgMs, p99Ms)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	// Move distribution.
	moveRows, err := db.QueryContext(ctx, `
		SELECT move, COUNT(*)::BIGINT AS n
		FROM turns
		GROUP BY move
		ORDER BY move`)
	if err != nil {
		return err
	}
	defer moveRows.Close()

	fmt.Fprintln(w, "MOVE\tCOUNT")
	for moveRows.Next() {
		var move int32
		var n int64
		if err := moveRows.Scan(&move, &n); err != nil {
			return err
		}
		name := fmt.Sprintf("%d", move)
		if move >= 0 && move < 4 {
			name = moveNames[move]
		}
		fmt.Fprintf(w, "%s\t%d\n", name, n)
	}
	if err := moveRows.Err(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	// Depth reached within budget, by ruleset.
	depthRows, err := db.QueryContext(ctx, `
		SELECT ruleset,
			MIN(depth)::INTEGER AS min_depth,
			quantile_cont(depth, 0.5)::DOUBLE AS median_depth,
			MAX(depth)::INTEGER AS max_depth
		FROM turns
		GROUP BY ruleset
		ORDER BY ruleset`)
	if err != nil {
		return err
	}
	defer depthRows.Close()

	fmt.Fprintln(w, "RULESET\tMIN DEPTH\tMEDIAN DEPTH\tMAX DEPTH")
	for depthRows.Next() {
		var ruleset string
		var minDepth, maxDepth int32
		var medianDepth float64
		if err := depthRows.Scan(&ruleset, &minDepth, &medianDepth, &maxDepth); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%.1f\t%d\n", ruleset, minDepth, medianDepth, maxDepth)
	}
	return depthRows.Err()
}
