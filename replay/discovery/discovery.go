// Package discovery crawls public Battlesnake leaderboards for game
// ids to feed the fetcher.
package discovery

import (
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "apexsnake-replay/1.0 (game-replay-collector)"

type Config struct {
	LeaderboardURLs []string
	RequestDelay    time.Duration // politeness delay between page fetches
	MaxPlayers      int           // per leaderboard, 0 = unlimited
}

func DefaultConfig() Config {
	return Config{
		LeaderboardURLs: []string{
			"https://play.battlesnake.com/leaderboard/standard",
			"https://play.battlesnake.com/leaderboard/standard-duels",
		},
		RequestDelay: 500 * time.Millisecond,
		MaxPlayers:   100,
	}
}

// Crawler walks leaderboards, then each player's stats page, emitting
// game ids it has not seen before.
type Crawler struct {
	config Config
	client *http.Client
	log    *slog.Logger

	knownMu sync.Mutex
	known   map[string]bool

	gameIDRe *regexp.Regexp
	playerRe *regexp.Regexp
}

// New seeds the crawler with already-stored game ids so they are never
// re-emitted.
func New(config Config, knownIDs map[string]bool, log *slog.Logger) *Crawler {
	if knownIDs == nil {
		knownIDs = make(map[string]bool)
	}
	return &Crawler{
		config:   config,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
		known:    knownIDs,
		gameIDRe: regexp.MustCompile(`/game/([a-f0-9-]+)`),
		// Player links look like /leaderboard/{arena}/{username}/stats.
		playerRe: regexp.MustCompile(`/leaderboard/[^/]+/([^/]+)/stats`),
	}
}

// Crawl emits newly discovered game ids on out. It returns after every
// configured leaderboard has been walked once.
func (c *Crawler) Crawl(out chan<- string) error {
	total := 0
	for _, url := range c.config.LeaderboardURLs {
		players, arena, err := c.leaderboardPlayers(url)
		if err != nil {
			c.log.Warn("leaderboard fetch failed", "url", url, "err", err)
			continue
		}
		if c.config.MaxPlayers > 0 && len(players) > c.config.MaxPlayers {
			players = players[:c.config.MaxPlayers]
		}
		c.log.Info("crawling leaderboard", "arena", arena, "players", len(players))

		found := 0
		for _, p := range players {
			gameIDs, err := c.playerGames(p.statsURL)
			if err != nil {
				c.log.Warn("player page failed", "player", p.username, "err", err)
				continue
			}
			for _, id := range gameIDs {
				if c.markKnown(id) {
					out <- id
					found++
				}
			}
			time.Sleep(c.config.RequestDelay)
		}

		c.log.Info("leaderboard done", "arena", arena, "new_games", found)
		total += found
	}
	c.log.Info("crawl complete", "new_games", total)
	return nil
}

// markKnown records an id and reports whether it was new.
func (c *Crawler) markKnown(id string) bool {
	c.knownMu.Lock()
	defer c.knownMu.Unlock()
	if c.known[id] {
		return false
	}
	c.known[id] = true
	return true
}

type player struct {
	username string
	statsURL string
}

func (c *Crawler) leaderboardPlayers(url string) ([]player, string, error) {
	doc, err := c.fetchDocument(url)
	if err != nil {
		return nil, "", err
	}

	arena := "unknown"
	arenaRe := regexp.MustCompile(`/leaderboard/([^/]+)/?$`)
	if m := arenaRe.FindStringSubmatch(url); len(m) >= 2 {
		arena = m[1]
	}

	var players []player
	seen := make(map[string]bool)
	doc.Find("a[href*='/leaderboard/']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		m := c.playerRe.FindStringSubmatch(href)
		if len(m) < 2 || seen[m[1]] {
			return
		}
		seen[m[1]] = true
		players = append(players, player{
			username: m[1],
			statsURL: "https://play.battlesnake.com" + href,
		})
	})
	return players, arena, nil
}

func (c *Crawler) playerGames(statsURL string) ([]string, error) {
	doc, err := c.fetchDocument(statsURL)
	if err != nil {
		return nil, err
	}

	var gameIDs []string
	seen := make(map[string]bool)
	doc.Find("a[href*='/game/']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		m := c.gameIDRe.FindStringSubmatch(href)
		if len(m) >= 2 && !seen[m[1]] {
			seen[m[1]] = true
			gameIDs = append(gameIDs, m[1])
		}
	})
	return gameIDs, nil
}

func (c *Crawler) fetchDocument(url string) (*goquery.Document, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}
