// Package api is the realtime boundary of the service: it upgrades websocket
// sessions, dispatches the event protocol, enforces authorization and phase
// gating, and broadcasts rules-engine results to both seats of a room.
package api

import (
	"encoding/json"

	"github.com/yourusername/yamon/internal/store"
	"github.com/yourusername/yamon/pkg/game"
)

// Envelope is the wire frame for every message in either direction.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// outbound pairs an event name with a payload still to be encoded.
type outbound struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// ============================================================================
// Inbound payloads
// ============================================================================

// RegisterRequest restores a session by token or creates a guest.
type RegisterRequest struct {
	Token string `json:"token,omitempty"`
}

// ClaimUsernameRequest asks for a unique username.
type ClaimUsernameRequest struct {
	Username string `json:"username"`
}

// CreateRoomRequest opens a room; the sender becomes Gold.
type CreateRoomRequest struct {
	RoomName string `json:"roomName,omitempty"`
}

// JoinRoomRequest seats the sender as Red.
type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
}

// RollDiceRequest may force a pair, a seam the tests use.
type RollDiceRequest struct {
	Dice []int `json:"dice,omitempty"`
}

// MakeMoveRequest plays one atomic move.
type MakeMoveRequest struct {
	Move game.Move `json:"move"`
}

// RespondDoubleRequest answers a pending double.
type RespondDoubleRequest struct {
	Accept bool `json:"accept"`
}

// ReconnectRequest re-attaches a player to their seat after a socket drop.
type ReconnectRequest struct {
	PlayerID string `json:"playerId"`
	RoomID   string `json:"roomId"`
}

// LeaveRoomRequest vacates the sender's seat.
type LeaveRoomRequest struct {
	RoomID string `json:"roomId"`
}

// ============================================================================
// Outbound payloads
// ============================================================================

// RegisteredPayload answers register.
type RegisteredPayload struct {
	PlayerID    string  `json:"playerId"`
	DisplayName string  `json:"displayName"`
	Username    *string `json:"username"`
	Token       string  `json:"token"`
}

// UsernameClaimedPayload answers a successful claim-username.
type UsernameClaimedPayload struct {
	Username string `json:"username"`
}

// ErrorPayload is the only shape failures take on the wire.
type ErrorPayload struct {
	Message string `json:"message"`
}

// RoomCreatedPayload answers create-room.
type RoomCreatedPayload struct {
	RoomID string `json:"roomId"`
}

// RoomHost describes the waiting player of a listed room.
type RoomHost struct {
	DisplayName string `json:"displayName"`
}

// RoomSummary is one entry of the waiting-rooms snapshot.
type RoomSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	CreatedAt string   `json:"createdAt"`
	Host      RoomHost `json:"host"`
}

// RoomListPayload is the waiting-rooms snapshot.
type RoomListPayload struct {
	Rooms []RoomSummary `json:"rooms"`
}

// OpponentInfo is what a player learns about the other seat.
type OpponentInfo struct {
	DisplayName string `json:"displayName"`
}

// RoomJoinedPayload tells a player their seat and the current state.
type RoomJoinedPayload struct {
	RoomID   string          `json:"roomId"`
	Player   string          `json:"player"`
	State    *game.GameState `json:"state"`
	Opponent *OpponentInfo   `json:"opponent"`
}

// GameStartPayload carries the initial state once both seats are taken.
type GameStartPayload struct {
	State *game.GameState `json:"state"`
}

// MatchFoundPayload tells a queued player their quick-match room.
type MatchFoundPayload struct {
	RoomID string `json:"roomId"`
}

// OpeningRollTiedPayload reports an opening-roll tie; both reroll.
type OpeningRollTiedPayload struct {
	GoldDie int `json:"goldDie"`
	RedDie  int `json:"redDie"`
}

// OpeningRollResultPayload reports the resolved opening roll.
type OpeningRollResultPayload struct {
	GoldDie     int         `json:"goldDie"`
	RedDie      int         `json:"redDie"`
	FirstPlayer game.Player `json:"firstPlayer"`
	Dice        *game.Dice  `json:"dice"`
}

// DiceRolledPayload broadcasts a normal roll.
type DiceRolledPayload struct {
	Dice *game.Dice `json:"dice"`
}

// MoveMadePayload broadcasts an applied move and the resulting state.
type MoveMadePayload struct {
	Move  game.Move       `json:"move"`
	State *game.GameState `json:"state"`
}

// TurnEndedPayload broadcasts the hand-over to the next mover.
type TurnEndedPayload struct {
	State         *game.GameState `json:"state"`
	CurrentPlayer game.Player     `json:"currentPlayer"`
}

// DoubleOfferedPayload goes to the opponent of the offerer only.
type DoubleOfferedPayload struct {
	CurrentCubeValue int `json:"currentCubeValue"`
}

// DoubleResponsePayload broadcasts the answer to a double.
type DoubleResponsePayload struct {
	Accepted bool            `json:"accepted"`
	State    *game.GameState `json:"state"`
}

// GameOverPayload broadcasts the final result.
type GameOverPayload struct {
	Winner    game.Player  `json:"winner"`
	WinType   game.WinType `json:"winType"`
	PointsWon int          `json:"pointsWon"`
}

// PlayerListPayload answers list-players with the leaderboard projection.
type PlayerListPayload struct {
	Players []store.RosterEntry `json:"players"`
}
