package room

import "sync"

// Queue is the FIFO quick-match queue. A player identity may be queued at
// most once; entries are removed when their socket drops.
type Queue struct {
	mu      sync.Mutex
	entries []PlayerConn
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Join appends the connection unless the player is already queued. Reports
// whether the entry was added.
func (q *Queue) Join(pc PlayerConn) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.PlayerID == pc.PlayerID {
			return false
		}
	}
	q.entries = append(q.entries, pc)
	return true
}

// LeaveByPlayer removes the player's entry. Reports whether one was removed.
func (q *Queue) LeaveByPlayer(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remove(func(e PlayerConn) bool { return e.PlayerID == playerID })
}

// LeaveBySocket removes the entry bound to the socket.
func (q *Queue) LeaveBySocket(socketID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remove(func(e PlayerConn) bool { return e.SocketID == socketID })
}

func (q *Queue) remove(match func(PlayerConn) bool) bool {
	for i, e := range q.entries {
		if match(e) {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// TryMatch pops the two oldest entries when at least two players wait.
func (q *Queue) TryMatch() (a, b PlayerConn, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) < 2 {
		return PlayerConn{}, PlayerConn{}, false
	}
	a, b = q.entries[0], q.entries[1]
	q.entries = q.entries[2:]
	return a, b, true
}

// Len returns the number of waiting players.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
