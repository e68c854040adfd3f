// Package room manages game rooms and the quick-match queue: role
// assignment, identity continuity across socket reconnects, and per-room
// serialization of state access.
package room

import (
	"sync"
	"time"

	"github.com/yourusername/yamon/pkg/game"
)

// Role is a player's seat in a room.
type Role int

const (
	RoleNone Role = iota
	RoleGold
	RoleRed
)

func (r Role) String() string {
	switch r {
	case RoleGold:
		return "gold"
	case RoleRed:
		return "red"
	}
	return "none"
}

// Player returns the game side for the role.
func (r Role) Player() game.Player {
	switch r {
	case RoleGold:
		return game.Gold
	case RoleRed:
		return game.Red
	}
	return game.Nobody
}

// PlayerConn binds a stable player identity to its current transient socket.
type PlayerConn struct {
	SocketID    string
	PlayerID    string
	DisplayName string
}

// Room is one game between two connections. The GameState cell is touched
// only inside Do, whose tasks a single worker goroutine drains, so rules
// calls never see concurrent mutation. Seat slots have their own lock
// because the registry reads them for lookups.
type Room struct {
	ID        string
	Name      string
	CreatedAt time.Time

	mu     sync.RWMutex
	gold   *PlayerConn
	red    *PlayerConn
	timers map[string]*time.Timer // pending disconnect forfeits by playerId

	// closeMu gates enqueues against Close. Tasks never take it, so the
	// worker can always drain while an enqueue is in flight.
	closeMu sync.Mutex
	closed  bool

	tasks chan func(*game.GameState) *game.GameState
	done  chan struct{}
	wg    sync.WaitGroup
}

func newRoom(id, name string, state *game.GameState) *Room {
	r := &Room{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now().UTC(),
		timers:    make(map[string]*time.Timer),
		tasks:     make(chan func(*game.GameState) *game.GameState, 32),
		done:      make(chan struct{}),
	}
	r.wg.Add(1)
	go r.loop(state)
	return r
}

// loop is the room's mailbox worker: it owns the GameState and applies
// queued tasks one at a time. On shutdown it drains tasks that were already
// enqueued so their callers are released.
func (r *Room) loop(state *game.GameState) {
	defer r.wg.Done()
	for {
		select {
		case fn := <-r.tasks:
			if ns := fn(state); ns != nil {
				state = ns
			}
		case <-r.done:
			for {
				select {
				case fn := <-r.tasks:
					if ns := fn(state); ns != nil {
						state = ns
					}
				default:
					return
				}
			}
		}
	}
}

// Do enqueues fn for the room worker and blocks until it has run. fn
// receives the current state and may return a replacement (nil keeps the
// old one). After Close, fn runs against a detached fresh state so late
// events still get a coherent reply. The enqueue happens under closeMu, so
// a task either lands before the worker shuts down, and is drained, or the
// room is already closed and the task runs detached; callers never hang.
func (r *Room) Do(fn func(*game.GameState) *game.GameState) {
	ran := make(chan struct{})
	wrapped := func(s *game.GameState) *game.GameState {
		defer close(ran)
		return fn(s)
	}
	r.closeMu.Lock()
	if r.closed {
		r.closeMu.Unlock()
		fn(game.NewGame(0))
		return
	}
	r.tasks <- wrapped
	r.closeMu.Unlock()
	<-ran
}

// Close stops the mailbox worker and cancels pending forfeit timers. Tasks
// enqueued before Close still run; the worker drains them before exiting.
func (r *Room) Close() {
	r.closeMu.Lock()
	if r.closed {
		r.closeMu.Unlock()
		return
	}
	r.closed = true
	r.closeMu.Unlock()

	r.mu.Lock()
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	r.mu.Unlock()

	close(r.done)
	r.wg.Wait()
}

// Gold returns the gold seat, or nil while empty.
func (r *Room) Gold() *PlayerConn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gold
}

// Red returns the red seat, or nil while empty.
func (r *Room) Red() *PlayerConn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.red
}

// Seat returns the connection in the given role.
func (r *Room) Seat(role Role) *PlayerConn {
	switch role {
	case RoleGold:
		return r.Gold()
	case RoleRed:
		return r.Red()
	}
	return nil
}

// RoleOfSocket returns the seat bound to the socket, RoleNone when absent.
func (r *Room) RoleOfSocket(socketID string) Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.gold != nil && r.gold.SocketID == socketID {
		return RoleGold
	}
	if r.red != nil && r.red.SocketID == socketID {
		return RoleRed
	}
	return RoleNone
}

// RoleOfPlayer returns the seat owned by the player identity.
func (r *Room) RoleOfPlayer(playerID string) Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.gold != nil && r.gold.PlayerID == playerID {
		return RoleGold
	}
	if r.red != nil && r.red.PlayerID == playerID {
		return RoleRed
	}
	return RoleNone
}

// Opponent returns the seat opposite the given socket, nil when empty or the
// socket is not seated.
func (r *Room) Opponent(socketID string) *PlayerConn {
	switch r.RoleOfSocket(socketID) {
	case RoleGold:
		return r.Red()
	case RoleRed:
		return r.Gold()
	}
	return nil
}

// Full reports whether both seats are taken.
func (r *Room) Full() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gold != nil && r.red != nil
}

// Empty reports whether no seat is taken.
func (r *Room) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gold == nil && r.red == nil
}

// Rebind moves the player's seat to a new socket without changing roles and
// cancels any pending forfeit for that player. Reports whether the player
// was seated.
func (r *Room) Rebind(playerID, newSocketID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[playerID]; ok {
		t.Stop()
		delete(r.timers, playerID)
	}
	if r.gold != nil && r.gold.PlayerID == playerID {
		r.gold.SocketID = newSocketID
		return true
	}
	if r.red != nil && r.red.PlayerID == playerID {
		r.red.SocketID = newSocketID
		return true
	}
	return false
}

// StartForfeit schedules fire after grace unless the player rebinds first.
// With grace <= 0 the room waits forever and nothing is scheduled.
func (r *Room) StartForfeit(playerID string, grace time.Duration, fire func()) {
	if grace <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[playerID]; ok {
		t.Stop()
	}
	r.timers[playerID] = time.AfterFunc(grace, fire)
}

// clearSeat empties the seat bound to the socket and reports the vacated
// role.
func (r *Room) clearSeat(socketID string) Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gold != nil && r.gold.SocketID == socketID {
		delete(r.timers, r.gold.PlayerID)
		r.gold = nil
		return RoleGold
	}
	if r.red != nil && r.red.SocketID == socketID {
		delete(r.timers, r.red.PlayerID)
		r.red = nil
		return RoleRed
	}
	return RoleNone
}
