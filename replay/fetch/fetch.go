// Package fetch downloads finished games from the Battlesnake engine's
// websocket event stream and stores them through replay/db.
package fetch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rfoley/apexsnake/replay/db"
)

type Config struct {
	NumWorkers     int
	EngineURL      string // URL template with one %s for the game id
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		NumWorkers:     4,
		EngineURL:      "wss://engine.battlesnake.com/games/%s/events",
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
	}
}

type Stats struct {
	GamesFetched int64
	GamesSkipped int64
	GamesFailed  int64
	FramesTotal  int64
}

// Fetcher drains game ids from a channel with a small worker pool and
// writes each game's frames into the store.
type Fetcher struct {
	config Config
	store  *db.DB
	log    *slog.Logger
	stats  Stats
}

func New(config Config, store *db.DB, log *slog.Logger) *Fetcher {
	return &Fetcher{config: config, store: store, log: log}
}

// Run consumes gameIDs until the channel closes and all workers drain.
func (f *Fetcher) Run(gameIDs <-chan string) {
	var wg sync.WaitGroup
	workers := f.config.NumWorkers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.worker(gameIDs)
		}()
	}
	wg.Wait()
}

func (f *Fetcher) worker(gameIDs <-chan string) {
	for gameID := range gameIDs {
		exists, err := f.store.HasGame(gameID)
		if err != nil {
			f.log.Error("dedup check failed", "game_id", gameID, "err", err)
			continue
		}
		if exists {
			atomic.AddInt64(&f.stats.GamesSkipped, 1)
			continue
		}

		game, frames, err := f.Download(gameID)
		if err != nil {
			atomic.AddInt64(&f.stats.GamesFailed, 1)
			f.log.Warn("download failed", "game_id", gameID, "err", err)
			continue
		}
		if len(frames) < 2 {
			atomic.AddInt64(&f.stats.GamesFailed, 1)
			f.log.Warn("too few frames", "game_id", gameID, "frames", len(frames))
			continue
		}

		if err := f.store.InsertGame(game, frames); err != nil {
			atomic.AddInt64(&f.stats.GamesFailed, 1)
			f.log.Error("store failed", "game_id", gameID, "err", err)
			continue
		}

		atomic.AddInt64(&f.stats.GamesFetched, 1)
		atomic.AddInt64(&f.stats.FramesTotal, int64(len(frames)))
		f.log.Info("fetched game",
			"game_id", gameID, "turns", len(frames), "winner", game.Winner)
	}
}

// Engine event stream payloads. Only the fields the fetcher inspects
// are declared; frames are stored as the raw JSON they arrived in.

type engineEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type gameInfo struct {
	Game struct {
		ID      string `json:"id"`
		Timeout int    `json:"timeout"`
	} `json:"game"`
	Ruleset struct {
		Name string `json:"name"`
	} `json:"ruleset"`
}

type frameEvent struct {
	Turn   int          `json:"turn"`
	Snakes []frameSnake `json:"snakes"`
}

type frameSnake struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Health int    `json:"health"`
	Death  *struct {
		Cause string `json:"cause"`
		Turn  int    `json:"turn"`
	} `json:"death,omitempty"`
}

// Download streams one game's events until the connection closes and
// returns the game record plus every frame in arrival order.
func (f *Fetcher) Download(gameID string) (db.GameRecord, []db.FrameRecord, error) {
	url := fmt.Sprintf(f.config.EngineURL, gameID)

	dialer := websocket.Dialer{HandshakeTimeout: f.config.ConnectTimeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return db.GameRecord{}, nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	var (
		frames []db.FrameRecord
		info   gameInfo
		last   *frameEvent
	)

	for {
		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				break
			}
			// A read timeout after the stream delivered frames usually
			// means the server went quiet after game_end.
			if len(frames) > 0 {
				break
			}
			return db.GameRecord{}, nil, fmt.Errorf("read: %w", err)
		}

		var event engineEvent
		if err := json.Unmarshal(message, &event); err != nil {
			f.log.Warn("unparseable event", "game_id", gameID, "err", err)
			continue
		}

		switch event.Type {
		case "game_info":
			if err := json.Unmarshal(event.Data, &info); err != nil {
				f.log.Warn("unparseable game_info", "game_id", gameID, "err", err)
			}
		case "frame":
			var fe frameEvent
			if err := json.Unmarshal(event.Data, &fe); err != nil {
				f.log.Warn("unparseable frame", "game_id", gameID, "err", err)
				continue
			}
			frames = append(frames, db.FrameRecord{
				GameID:  gameID,
				Turn:    fe.Turn,
				RawJSON: string(event.Data),
			})
			last = &fe
		}
	}

	return db.GameRecord{
		ID:      gameID,
		Winner:  winnerOf(last),
		Ruleset: info.Ruleset.Name,
	}, frames, nil
}

func winnerOf(frame *frameEvent) string {
	if frame == nil {
		return "unknown"
	}
	var alive []frameSnake
	for _, s := range frame.Snakes {
		if s.Death == nil && s.Health > 0 {
			alive = append(alive, s)
		}
	}
	if len(alive) == 1 {
		return alive[0].Name
	}
	return "draw"
}

func (f *Fetcher) Snapshot() Stats {
	return Stats{
		GamesFetched: atomic.LoadInt64(&f.stats.GamesFetched),
		GamesSkipped: atomic.LoadInt64(&f.stats.GamesSkipped),
		GamesFailed:  atomic.LoadInt64(&f.stats.GamesFailed),
		FramesTotal:  atomic.LoadInt64(&f.stats.FramesTotal),
	}
}
