package room

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/yourusername/yamon/pkg/game"
)

var (
	// ErrRoomNotFound means no room has the given id.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull means both seats are already taken.
	ErrRoomFull = errors.New("room is full")
	// ErrSelfJoin means a player tried to join their own room.
	ErrSelfJoin = errors.New("cannot join your own room")
)

// codeAlphabet excludes visually ambiguous characters (0/O, 1/I/l).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeLength = 5

// Registry tracks every live room and the socket-to-room index. Rooms are
// mutated only by the dispatcher.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	bySocket map[string]string // socketID -> roomID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		bySocket: make(map[string]string),
	}
}

// newCode allocates a short room code not currently in use. The caller holds
// the registry lock.
func (g *Registry) newCode() string {
	for {
		buf := make([]byte, codeLength)
		if _, err := rand.Read(buf); err != nil {
			panic(err)
		}
		for i := range buf {
			buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
		}
		code := string(buf)
		if _, taken := g.rooms[code]; !taken {
			return code
		}
	}
}

// Create opens a room with the creator seated as Gold and a fresh game
// awaiting its opening roll.
func (g *Registry) Create(gold PlayerConn, name string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := newRoom(g.newCode(), name, game.NewGame(1))
	seat := gold
	r.gold = &seat
	g.rooms[r.ID] = r
	g.bySocket[gold.SocketID] = r.ID
	return r
}

// Join seats red in the room. Fails when the room is missing, full, or the
// joiner already holds the gold seat.
func (g *Registry) Join(roomID string, red PlayerConn) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.red != nil {
		return nil, ErrRoomFull
	}
	if r.gold == nil {
		// Host left while the room was still listed.
		return nil, ErrRoomNotFound
	}
	if r.gold.PlayerID == red.PlayerID {
		return nil, ErrSelfJoin
	}
	seat := red
	r.red = &seat
	g.bySocket[red.SocketID] = r.ID
	return r, nil
}

// Get returns the room by id.
func (g *Registry) Get(roomID string) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// FindBySocket returns the room a socket is seated in, nil when none.
func (g *Registry) FindBySocket(socketID string) *Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.bySocket[socketID]
	if !ok {
		return nil
	}
	return g.rooms[id]
}

// Rebind re-attaches a reconnecting player to their seat under a new socket.
func (g *Registry) Rebind(roomID, playerID, newSocketID string) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	role := r.RoleOfPlayer(playerID)
	if role == RoleNone {
		return nil, fmt.Errorf("player %s is not a member of room %s", playerID, roomID)
	}
	if seat := r.Seat(role); seat != nil {
		delete(g.bySocket, seat.SocketID)
	}
	r.Rebind(playerID, newSocketID)
	g.bySocket[newSocketID] = roomID
	return r, nil
}

// Leave vacates the socket's seat. The room is closed and removed once both
// seats are empty. Returns the room and whether it was deleted.
func (g *Registry) Leave(roomID, socketID string) (*Room, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[roomID]
	if !ok {
		return nil, false, ErrRoomNotFound
	}
	if r.clearSeat(socketID) == RoleNone {
		return nil, false, fmt.Errorf("socket %s is not seated in room %s", socketID, roomID)
	}
	delete(g.bySocket, socketID)
	if r.Empty() {
		delete(g.rooms, roomID)
		r.Close()
		return r, true, nil
	}
	return r, false, nil
}

// DropSocket removes the socket index entry without vacating the seat; used
// on disconnect so the player can reconnect into the same role.
func (g *Registry) DropSocket(socketID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.bySocket, socketID)
}

// Waiting lists rooms with exactly one seat filled, oldest first.
func (g *Registry) Waiting() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*Room
	for _, r := range g.rooms {
		if !r.Full() && !r.Empty() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}
