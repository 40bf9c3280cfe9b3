// Command scrape collects finished public games into a local SQLite
// store: leaderboard discovery feeds game ids to websocket fetch
// workers, and every fetched game lands in the replay database for
// cmd/replayer to consume.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rfoley/apexsnake/logging"
	"github.com/rfoley/apexsnake/replay/db"
	"github.com/rfoley/apexsnake/replay/discovery"
	"github.com/rfoley/apexsnake/replay/fetch"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	dbPath := fs.String("db", "replay.db", "SQLite database path")
	workers := fs.Int("workers", 4, "Concurrent download workers")
	maxPlayers := fs.Int("max-players", 50, "Players to check per leaderboard")
	requestDelay := fs.Duration("delay", 500*time.Millisecond, "Delay between leaderboard page requests")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "flag parse: %v\n", err)
		os.Exit(2)
	}

	log := slog.New(logging.NewJSONLineHandler(os.Stdout, nil))

	store, err := db.Open(*dbPath)
	if err != nil {
		log.Error("open store", "path", *dbPath, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	known, err := store.KnownGameIDs()
	if err != nil {
		log.Error("load known game ids", "err", err)
		os.Exit(1)
	}
	log.Info("starting scrape", "db", *dbPath, "known_games", len(known))

	discConfig := discovery.DefaultConfig()
	discConfig.MaxPlayers = *maxPlayers
	discConfig.RequestDelay = *requestDelay
	crawler := discovery.New(discConfig, known, log)

	fetchConfig := fetch.DefaultConfig()
	fetchConfig.NumWorkers = *workers
	fetcher := fetch.New(fetchConfig, store, log)

	gameIDs := make(chan string, 1000)
	go func() {
		defer close(gameIDs)
		if err := crawler.Crawl(gameIDs); err != nil {
			log.Error("crawl failed", "err", err)
		}
	}()

	fetcher.Run(gameIDs)

	stats := fetcher.Snapshot()
	totalGames, replayed, totalFrames, err := store.Stats()
	if err != nil {
		log.Warn("store stats failed", "err", err)
	}
	log.Info("scrape complete",
		"fetched", stats.GamesFetched,
		"skipped", stats.GamesSkipped,
		"failed", stats.GamesFailed,
		"frames", stats.FramesTotal,
		"store_games", totalGames,
		"store_replayed", replayed,
		"store_frames", totalFrames)
}
