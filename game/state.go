// Package game defines the core board state types for the snake engine.
//
// The state is a value-type snapshot: every search branch deep-clones it
// before mutating, so no board mutation ever crosses branch boundaries.
package game

import "fmt"

// Point is a board coordinate.
// Coordinates follow Battlesnake conventions: (0,0) is bottom-left.
type Point struct {
	X int32
	Y int32
}

// Ruleset selects the game variant.
type Ruleset int

const (
	RulesetStandard Ruleset = iota
	RulesetRoyale
	RulesetConstrictor
)

func (r Ruleset) String() string {
	switch r {
	case RulesetRoyale:
		return "royale"
	case RulesetConstrictor:
		return "constrictor"
	default:
		return "standard"
	}
}

type Snake struct {
	Id     string
	Health int32
	Body   []Point // head first, tail last
}

func (s *Snake) Head() Point { return s.Body[0] }
func (s *Snake) Tail() Point { return s.Body[len(s.Body)-1] }
func (s *Snake) Len() int    { return len(s.Body) }

// BoardState is the complete per-turn snapshot the engine searches over.
// YouId selects the searching snake's perspective.
//
// The obstacle bitset is derived state: always a pure function of all
// live snakes' bodies plus constrictor-mode hazards. Mutators in the
// rules package keep it consistent incrementally; RebuildObstacles
// recomputes it from scratch.
type BoardState struct {
	Width        int32
	Height       int32
	Wrapped      bool
	Ruleset      Ruleset
	HazardDamage int32
	Turn         int32
	YouId        string

	Food    []Point
	Hazards []Point
	Snakes  []Snake

	blocked Bitset
	hazard  Bitset
}

// Idx maps a point to its bit index. The caller guarantees bounds.
func (s *BoardState) Idx(p Point) int {
	return int(p.Y)*int(s.Width) + int(p.X)
}

func (s *BoardState) InBounds(p Point) bool {
	return p.X >= 0 && p.X < s.Width && p.Y >= 0 && p.Y < s.Height
}

// WrapPoint reduces p modulo the board dimensions when the board wraps.
func (s *BoardState) WrapPoint(p Point) Point {
	if !s.Wrapped {
		return p
	}
	p.X = (p.X + s.Width) % s.Width
	p.Y = (p.Y + s.Height) % s.Height
	return p
}

func (s *BoardState) Blocked(p Point) bool { return s.blocked.Get(s.Idx(p)) }
func (s *BoardState) Hazard(p Point) bool  { return len(s.hazard) > 0 && s.hazard.Get(s.Idx(p)) }

// OccupyCell marks p blocked.
func (s *BoardState) OccupyCell(p Point) { s.blocked.Set(s.Idx(p)) }

// VacateCell clears p from the obstacle bitset unless some live body
// segment still occupies it (stacked spawn bodies, shared cells) or it
// is a constrictor-mode hazard.
func (s *BoardState) VacateCell(p Point) {
	for i := range s.Snakes {
		for _, b := range s.Snakes[i].Body {
			if b == p {
				return
			}
		}
	}
	if s.Ruleset == RulesetConstrictor && s.Hazard(p) {
		return
	}
	s.blocked.Clear(s.Idx(p))
}

// ObstaclesClone returns an independent copy of the obstacle bitset for
// analyzers that need to poke holes in it without touching the state.
func (s *BoardState) ObstaclesClone() Bitset { return s.blocked.Clone() }

// RebuildObstacles recomputes both bitsets from the authoritative
// collections. Call after constructing a state by hand.
func (s *BoardState) RebuildObstacles() {
	n := int(s.Width) * int(s.Height)
	s.blocked = NewBitset(n)
	s.hazard = NewBitset(n)
	for _, h := range s.Hazards {
		if s.InBounds(h) {
			s.hazard.Set(s.Idx(h))
			if s.Ruleset == RulesetConstrictor {
				s.blocked.Set(s.Idx(h))
			}
		}
	}
	for i := range s.Snakes {
		for _, p := range s.Snakes[i].Body {
			if s.InBounds(p) {
				s.blocked.Set(s.Idx(p))
			}
		}
	}
}

// You returns the searching snake and its index, or nil and -1 when it
// has been removed from the board.
func (s *BoardState) You() (*Snake, int) {
	for i := range s.Snakes {
		if s.Snakes[i].Id == s.YouId {
			return &s.Snakes[i], i
		}
	}
	return nil, -1
}

// Clone performs a deep copy of the board state. Branches own their
// clones outright; nothing is shared.
func (s *BoardState) Clone() *BoardState {
	if s == nil {
		return nil
	}

	out := &BoardState{
		Width:        s.Width,
		Height:       s.Height,
		Wrapped:      s.Wrapped,
		Ruleset:      s.Ruleset,
		HazardDamage: s.HazardDamage,
		Turn:         s.Turn,
		YouId:        s.YouId,
		blocked:      s.blocked.Clone(),
		hazard:       s.hazard.Clone(),
	}

	if len(s.Food) > 0 {
		out.Food = make([]Point, len(s.Food))
		copy(out.Food, s.Food)
	}
	if len(s.Hazards) > 0 {
		out.Hazards = make([]Point, len(s.Hazards))
		copy(out.Hazards, s.Hazards)
	}
	if len(s.Snakes) > 0 {
		out.Snakes = make([]Snake, len(s.Snakes))
		for i := range s.Snakes {
			out.Snakes[i] = Snake{Id: s.Snakes[i].Id, Health: s.Snakes[i].Health}
			if len(s.Snakes[i].Body) > 0 {
				out.Snakes[i].Body = make([]Point, len(s.Snakes[i].Body))
				copy(out.Snakes[i].Body, s.Snakes[i].Body)
			}
		}
	}

	return out
}

// Validate surfaces structural invariant violations. These indicate a
// parsing or configuration bug in the caller and are never patched up.
func (s *BoardState) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("invalid board dimensions %dx%d", s.Width, s.Height)
	}
	for i := range s.Snakes {
		sn := &s.Snakes[i]
		if len(sn.Body) == 0 {
			return fmt.Errorf("snake %s has empty body", sn.Id)
		}
		if sn.Health < 0 || sn.Health > 100 {
			return fmt.Errorf("snake %s health %d out of range", sn.Id, sn.Health)
		}
		for _, p := range sn.Body {
			if !s.InBounds(p) {
				return fmt.Errorf("snake %s segment (%d,%d) out of bounds", sn.Id, p.X, p.Y)
			}
		}
	}
	return nil
}
