// Package game implements the backgammon rules engine: board and dice model,
// legal move generation, move application, phase transitions, win detection
// and the doubling cube. Everything here is pure and deterministic (the only
// source of randomness is RollDice when no forced values are supplied), so
// the same package drives both the authoritative server and client-side
// simulation.
package game

import (
	"encoding/json"
	"fmt"
)

// Player identifies a side. Gold moves in the ascending-index direction and
// bears off past point 23; Red moves descending and bears off past point 0.
type Player int

const (
	// Nobody is the absent value for optional Player fields (cube owner,
	// winner).
	Nobody Player = iota - 1
	Gold
	Red
)

// Opponent returns the other side.
func (p Player) Opponent() Player {
	switch p {
	case Gold:
		return Red
	case Red:
		return Gold
	}
	return Nobody
}

func (p Player) String() string {
	switch p {
	case Gold:
		return "gold"
	case Red:
		return "red"
	}
	return "none"
}

// MarshalJSON encodes Gold/Red as "gold"/"red" and Nobody as null.
func (p Player) MarshalJSON() ([]byte, error) {
	if p == Nobody {
		return []byte("null"), nil
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts "gold", "red" or null.
func (p *Player) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil {
		*p = Nobody
		return nil
	}
	switch *s {
	case "gold":
		*p = Gold
	case "red":
		*p = Red
	default:
		return fmt.Errorf("invalid player %q", *s)
	}
	return nil
}

// Direction is +1 for Gold and -1 for Red.
func (p Player) Direction() int {
	if p == Gold {
		return 1
	}
	return -1
}

// Home returns the inclusive bounds of the player's home board
// (Gold: 18..23, Red: 0..5).
func (p Player) Home() (lo, hi int) {
	if p == Gold {
		return 18, 23
	}
	return 0, 5
}

// EntryPoint is the board index a checker enters from the bar with die d.
func (p Player) EntryPoint(d int) int {
	if p == Gold {
		return d - 1
	}
	return 24 - d
}

// Phase is the turn/phase machine state.
type Phase string

const (
	PhaseOpeningRoll Phase = "OPENING_ROLL"
	PhaseRolling     Phase = "ROLLING"
	PhaseMoving      Phase = "MOVING"
	PhaseDoubling    Phase = "DOUBLING"
	PhaseGameOver    Phase = "GAME_OVER"
)

// WinType classifies how a game was won.
type WinType string

const (
	// WinSingle is a plain win: the loser has borne off at least one checker.
	WinSingle WinType = "ya_mon"
	// WinGammon is worth double: the loser bore off nothing.
	WinGammon WinType = "big_ya_mon"
	// WinBackgammon is worth triple: the loser bore off nothing and still has
	// a checker on the bar or in the winner's home board.
	WinBackgammon WinType = "massive_ya_mon"
)

// Multiplier returns the stake multiplier for the win type (1, 2 or 3).
func (w WinType) Multiplier() int {
	switch w {
	case WinGammon:
		return 2
	case WinBackgammon:
		return 3
	}
	return 1
}

// Cube is the doubling cube: a power-of-two value and an owner
// (Nobody while centered). Ownership changes only when a double is accepted.
type Cube struct {
	Value int    `json:"value"`
	Owner Player `json:"owner"`
}

// GameState aggregates everything the rules engine operates on. It is a
// value: engine functions never mutate their input and return fresh states.
type GameState struct {
	Board       Board   `json:"board"`
	Current     Player  `json:"currentPlayer"`
	Phase       Phase   `json:"phase"`
	Dice        *Dice   `json:"dice,omitempty"`
	Cube        Cube    `json:"cube"`
	Score       [2]int  `json:"score"`
	MatchLength int     `json:"matchLength"`
	Crawford    bool    `json:"isCrawford"`
	Winner      Player  `json:"winner"`
	WinType     WinType `json:"winType,omitempty"`
}

// NewGame returns the state at the start of a game: standard starting
// position, centered cube, opening roll pending. Nobody is on move until
// OpeningRoll picks the first mover.
func NewGame(matchLength int) *GameState {
	return &GameState{
		Board:       StartingBoard(),
		Current:     Nobody,
		Phase:       PhaseOpeningRoll,
		Cube:        Cube{Value: 1, Owner: Nobody},
		MatchLength: matchLength,
		Winner:      Nobody,
	}
}

// Clone returns a deep copy of the state.
func (s *GameState) Clone() *GameState {
	ns := *s
	if s.Dice != nil {
		d := *s.Dice
		d.Remaining = append([]int(nil), s.Dice.Remaining...)
		ns.Dice = &d
	}
	return &ns
}
