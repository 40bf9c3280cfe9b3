package engine

import (
	"sync"

	"github.com/rfoley/apexsnake/game"
)

const defaultHistory = 16

// Session is the only state the engine keeps across turns of one game:
// a bounded ring of recently visited head positions, used by the
// evaluator's anti-oscillation term. A session belongs to exactly one
// game and is never shared between games; within a game, turns are
// sequential, so Session itself needs no locking.
type Session struct {
	recent []game.Point
	next   int
	filled int
}

func NewSession(size int) *Session {
	if size <= 0 {
		size = defaultHistory
	}
	return &Session{recent: make([]game.Point, size)}
}

func (s *Session) Push(p game.Point) {
	s.recent[s.next] = p
	s.next = (s.next + 1) % len(s.recent)
	if s.filled < len(s.recent) {
		s.filled++
	}
}

func (s *Session) Contains(p game.Point) bool {
	for i := 0; i < s.filled; i++ {
		if s.recent[i] == p {
			return true
		}
	}
	return false
}

// SessionStore owns one Session per concurrent game, keyed by game id.
// Create on game start, dispose on game end; lookups from concurrent
// games are safe.
type SessionStore struct {
	mu      sync.Mutex
	m       map[string]*Session
	history int
}

func NewSessionStore(historySize int) *SessionStore {
	return &SessionStore{m: make(map[string]*Session), history: historySize}
}

// Start creates (or returns the existing) session for a game.
func (st *SessionStore) Start(gameID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.m[gameID]; ok {
		return s
	}
	s := NewSession(st.history)
	st.m[gameID] = s
	return s
}

// Get returns the session for a game, or nil when the game was never
// started here. The engine tolerates a nil session.
func (st *SessionStore) Get(gameID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.m[gameID]
}

func (st *SessionStore) End(gameID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.m, gameID)
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.m)
}
