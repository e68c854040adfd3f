package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/yourusername/yamon/internal/room"
	"github.com/yourusername/yamon/internal/store"
	"github.com/yourusername/yamon/pkg/game"
)

// storeTimeout bounds persistence calls made from event handlers.
const storeTimeout = 5 * time.Second

// Dispatcher routes every inbound event through the same pipeline: resolve
// session, look up the room, authorize, gate by phase, call the rules engine
// and broadcast the result. State-mutating work for a room runs inside the
// room's mailbox, so no two events for one room ever overlap.
type Dispatcher struct {
	store   store.Store
	rooms   *room.Registry
	queue   *room.Queue
	metrics *Metrics
	grace   time.Duration

	mu      sync.Mutex
	clients map[string]*Client // socketID -> client

	// rollPair draws the two dice for a roll; tests inject fixed values.
	rollPair func() (int, int)
}

// NewDispatcher wires the dispatcher to its collaborators. grace <= 0 keeps
// rooms alive indefinitely while a player is disconnected.
func NewDispatcher(st store.Store, metrics *Metrics, grace time.Duration) *Dispatcher {
	return &Dispatcher{
		store:   st,
		rooms:   room.NewRegistry(),
		queue:   room.NewQueue(),
		metrics: metrics,
		grace:   grace,
		clients: make(map[string]*Client),
		rollPair: func() (int, int) {
			return game.RollDie(), game.RollDie()
		},
	}
}

// addClient registers a fresh socket.
func (d *Dispatcher) addClient(c *Client) {
	d.mu.Lock()
	d.clients[c.id] = c
	d.mu.Unlock()
	d.metrics.Connections.Inc()
}

// dispatch handles one inbound envelope on the sender's read goroutine.
func (d *Dispatcher) dispatch(c *Client, env Envelope) {
	d.metrics.Events.WithLabelValues(env.Event).Inc()

	switch env.Event {
	case "register":
		d.handleRegister(c, env.Payload)
	case "claim-username":
		d.handleClaimUsername(c, env.Payload)
	case "create-room":
		d.handleCreateRoom(c, env.Payload)
	case "join-room":
		d.handleJoinRoom(c, env.Payload)
	case "quick-match":
		d.handleQuickMatch(c)
	case "leave-queue":
		d.queue.LeaveBySocket(c.id)
		d.metrics.QueueDepth.Set(float64(d.queue.Len()))
	case "list-rooms":
		c.enqueue("room-list", d.roomList())
	case "roll-dice":
		d.handleRollDice(c, env.Payload)
	case "make-move":
		d.handleMakeMove(c, env.Payload)
	case "end-turn":
		d.handleEndTurn(c)
	case "offer-double":
		d.handleOfferDouble(c)
	case "respond-double":
		d.handleRespondDouble(c, env.Payload)
	case "reconnect-to-game":
		d.handleReconnect(c, env.Payload)
	case "leave-room":
		d.handleLeaveRoom(c, env.Payload)
	case "rematch":
		d.handleRematch(c)
	case "list-players":
		d.handleListPlayers(c)
	default:
		d.sendError(c, "unknown event")
	}
}

// ============================================================================
// Plumbing
// ============================================================================

// sendError surfaces a failure to the offender only; opponents learn nothing
// beyond what was already broadcast.
func (d *Dispatcher) sendError(c *Client, msg string) {
	c.enqueue("error", ErrorPayload{Message: msg})
}

// sendToSocket delivers to a socket if it is still connected. Holding the
// client lock across the enqueue keeps it ordered before any disconnect
// teardown for that socket.
func (d *Dispatcher) sendToSocket(socketID, event string, payload interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cl, ok := d.clients[socketID]; ok {
		cl.enqueue(event, payload)
	}
}

// broadcastAll fans out to every connected client (lobby updates).
func (d *Dispatcher) broadcastAll(event string, payload interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cl := range d.clients {
		cl.enqueue(event, payload)
	}
}

// sendSeats sends the same event to both seats of a room.
func (d *Dispatcher) sendSeats(r *room.Room, event string, payload interface{}) {
	if g := r.Gold(); g != nil {
		d.sendToSocket(g.SocketID, event, payload)
	}
	if rd := r.Red(); rd != nil {
		d.sendToSocket(rd.SocketID, event, payload)
	}
}

// requireRegistered resolves the sender's session.
func (d *Dispatcher) requireRegistered(c *Client) bool {
	if c.playerID == "" {
		d.sendError(c, "not registered")
		return false
	}
	return true
}

// requireSeat resolves the sender's room and role.
func (d *Dispatcher) requireSeat(c *Client) (*room.Room, room.Role, bool) {
	if !d.requireRegistered(c) {
		return nil, room.RoleNone, false
	}
	r := d.rooms.FindBySocket(c.id)
	if r == nil {
		d.sendError(c, "not in a room")
		return nil, room.RoleNone, false
	}
	role := r.RoleOfSocket(c.id)
	if role == room.RoleNone {
		d.sendError(c, "not in a room")
		return nil, room.RoleNone, false
	}
	return r, role, true
}

func (d *Dispatcher) conn(c *Client) room.PlayerConn {
	return room.PlayerConn{SocketID: c.id, PlayerID: c.playerID, DisplayName: c.displayName}
}

func (d *Dispatcher) roomList() RoomListPayload {
	waiting := d.rooms.Waiting()
	rooms := make([]RoomSummary, 0, len(waiting))
	for _, r := range waiting {
		host := r.Gold()
		if host == nil {
			host = r.Red()
		}
		rooms = append(rooms, RoomSummary{
			ID:        r.ID,
			Name:      r.Name,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
			Host:      RoomHost{DisplayName: host.DisplayName},
		})
	}
	return RoomListPayload{Rooms: rooms}
}

func (d *Dispatcher) publishRoomList() {
	d.metrics.ActiveRooms.Set(float64(d.rooms.Len()))
	d.broadcastAll("room-list", d.roomList())
}

func storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

// ============================================================================
// Identity events
// ============================================================================

func (d *Dispatcher) handleRegister(c *Client, raw json.RawMessage) {
	var req RegisterRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			d.sendError(c, "invalid payload")
			return
		}
	}

	ctx, cancel := storeCtx()
	defer cancel()

	var g *store.Guest
	var err error
	if req.Token != "" {
		g, err = d.store.GuestByToken(ctx, req.Token)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("register: token lookup failed: %v", err)
			d.sendError(c, "registration failed")
			return
		}
	}
	if g == nil {
		if g, err = d.store.CreateGuest(ctx); err != nil {
			log.Printf("register: create guest failed: %v", err)
			d.sendError(c, "registration failed")
			return
		}
	}

	c.playerID = g.ID
	c.displayName = g.DisplayName

	var username *string
	if g.Username != "" {
		username = &g.Username
	}
	c.enqueue("registered", RegisteredPayload{
		PlayerID:    g.ID,
		DisplayName: g.DisplayName,
		Username:    username,
		Token:       g.Token,
	})
}

func (d *Dispatcher) handleClaimUsername(c *Client, raw json.RawMessage) {
	if !d.requireRegistered(c) {
		return
	}
	var req ClaimUsernameRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		d.sendError(c, "invalid payload")
		return
	}

	ctx, cancel := storeCtx()
	defer cancel()
	if err := d.store.ClaimUsername(ctx, c.playerID, req.Username); err != nil {
		msg := "could not claim username"
		switch {
		case errors.Is(err, store.ErrUsernameTaken):
			msg = "username already taken"
		case errors.Is(err, store.ErrNotFound):
			msg = "unknown player"
		default:
			if verr := store.ValidateUsername(req.Username); verr != nil {
				msg = verr.Error()
			} else {
				log.Printf("claim-username: %v", err)
			}
		}
		c.enqueue("username-error", ErrorPayload{Message: msg})
		return
	}

	c.displayName = req.Username
	c.enqueue("username-claimed", UsernameClaimedPayload{Username: req.Username})
}

// ============================================================================
// Room lifecycle events
// ============================================================================

func (d *Dispatcher) handleCreateRoom(c *Client, raw json.RawMessage) {
	if !d.requireRegistered(c) {
		return
	}
	if d.rooms.FindBySocket(c.id) != nil {
		d.sendError(c, "already in a room")
		return
	}
	var req CreateRoomRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			d.sendError(c, "invalid payload")
			return
		}
	}

	r := d.rooms.Create(d.conn(c), req.RoomName)
	c.enqueue("room-created", RoomCreatedPayload{RoomID: r.ID})
	d.publishRoomList()
}

func (d *Dispatcher) handleJoinRoom(c *Client, raw json.RawMessage) {
	if !d.requireRegistered(c) {
		return
	}
	var req JoinRoomRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		d.sendError(c, "invalid payload")
		return
	}
	if d.rooms.FindBySocket(c.id) != nil {
		d.sendError(c, "already in a room")
		return
	}

	r, err := d.rooms.Join(req.RoomID, d.conn(c))
	if err != nil {
		switch {
		case errors.Is(err, room.ErrRoomNotFound):
			d.sendError(c, "room not found")
		case errors.Is(err, room.ErrRoomFull):
			d.sendError(c, "room is full")
		case errors.Is(err, room.ErrSelfJoin):
			d.sendError(c, "cannot join your own room")
		default:
			d.sendError(c, "could not join room")
		}
		return
	}

	d.startGame(r)
	d.publishRoomList()
}

// startGame announces the seating and then the initial state. Both
// room-joined messages precede game-start on each socket because per-socket
// delivery is ordered.
func (d *Dispatcher) startGame(r *room.Room) {
	r.Do(func(s *game.GameState) *game.GameState {
		gold, red := r.Gold(), r.Red()
		if gold != nil {
			d.sendToSocket(gold.SocketID, "room-joined", RoomJoinedPayload{
				RoomID:   r.ID,
				Player:   room.RoleGold.String(),
				State:    s,
				Opponent: opponentInfo(red),
			})
		}
		if red != nil {
			d.sendToSocket(red.SocketID, "room-joined", RoomJoinedPayload{
				RoomID:   r.ID,
				Player:   room.RoleRed.String(),
				State:    s,
				Opponent: opponentInfo(gold),
			})
		}
		d.sendSeats(r, "game-start", GameStartPayload{State: s})
		return nil
	})
}

func opponentInfo(pc *room.PlayerConn) *OpponentInfo {
	if pc == nil {
		return nil
	}
	return &OpponentInfo{DisplayName: pc.DisplayName}
}

func (d *Dispatcher) handleQuickMatch(c *Client) {
	if !d.requireRegistered(c) {
		return
	}
	if d.rooms.FindBySocket(c.id) != nil {
		d.sendError(c, "already in a room")
		return
	}
	d.queue.Join(d.conn(c))
	d.metrics.QueueDepth.Set(float64(d.queue.Len()))

	for {
		a, b, ok := d.queue.TryMatch()
		if !ok {
			break
		}
		d.pairMatch(a, b)
	}
	d.metrics.QueueDepth.Set(float64(d.queue.Len()))
}

// pairMatch behaves exactly like create-room plus join-room for the two
// queued players, announced with match-found instead of room-created.
func (d *Dispatcher) pairMatch(a, b room.PlayerConn) {
	r := d.rooms.Create(a, "")
	if _, err := d.rooms.Join(r.ID, b); err != nil {
		log.Printf("quick-match: pairing failed: %v", err)
		return
	}
	d.sendToSocket(a.SocketID, "match-found", MatchFoundPayload{RoomID: r.ID})
	d.sendToSocket(b.SocketID, "match-found", MatchFoundPayload{RoomID: r.ID})
	d.startGame(r)
	d.publishRoomList()
}

func (d *Dispatcher) handleLeaveRoom(c *Client, raw json.RawMessage) {
	r, _, ok := d.requireSeat(c)
	if !ok {
		return
	}
	var req LeaveRoomRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			d.sendError(c, "invalid payload")
			return
		}
	}
	// An omitted roomId means the sender's current room.
	if req.RoomID != "" && req.RoomID != r.ID {
		d.sendError(c, "not in that room")
		return
	}
	peer := r.Opponent(c.id)
	if _, _, err := d.rooms.Leave(r.ID, c.id); err != nil {
		d.sendError(c, "could not leave room")
		return
	}
	if peer != nil {
		d.sendToSocket(peer.SocketID, "opponent-left", struct{}{})
	}
	d.publishRoomList()
}

func (d *Dispatcher) handleRematch(c *Client) {
	r, _, ok := d.requireSeat(c)
	if !ok {
		return
	}
	if !r.Full() {
		d.sendError(c, "opponent missing")
		return
	}
	r.Do(func(s *game.GameState) *game.GameState {
		if s.Phase != game.PhaseGameOver {
			d.sendError(c, "game still running")
			return nil
		}
		ns := game.NewGame(s.MatchLength)
		ns.Score = s.Score
		ns.Crawford = s.Crawford
		d.sendSeats(r, "game-start", GameStartPayload{State: ns})
		return ns
	})
}

// ============================================================================
// Gameplay events
// ============================================================================

func (d *Dispatcher) handleRollDice(c *Client, raw json.RawMessage) {
	r, role, ok := d.requireSeat(c)
	if !ok {
		return
	}
	var req RollDiceRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			d.sendError(c, "invalid payload")
			return
		}
	}
	draw := func() (int, int) {
		if len(req.Dice) >= 2 {
			return req.Dice[0], req.Dice[1]
		}
		return d.rollPair()
	}

	r.Do(func(s *game.GameState) *game.GameState {
		if s.Phase == game.PhaseOpeningRoll {
			// Either seat may trigger the opening roll.
			goldDie, redDie := draw()
			ns, tied := game.OpeningRoll(s, goldDie, redDie)
			if tied {
				d.sendSeats(r, "opening-roll-tied", OpeningRollTiedPayload{
					GoldDie: goldDie, RedDie: redDie,
				})
				return ns
			}
			first := game.Gold
			if redDie > goldDie {
				first = game.Red
			}
			d.sendSeats(r, "opening-roll-result", OpeningRollResultPayload{
				GoldDie: goldDie, RedDie: redDie,
				FirstPlayer: first, Dice: game.NewDice(goldDie, redDie),
			})
			if ns.Phase != game.PhaseMoving {
				// The opening winner had no legal move.
				d.sendSeats(r, "turn-ended", TurnEndedPayload{State: ns, CurrentPlayer: ns.Current})
			}
			return ns
		}

		if role.Player() != s.Current {
			d.sendError(c, "not your turn")
			return nil
		}
		if s.Phase != game.PhaseRolling {
			d.sendError(c, "cannot roll now")
			return nil
		}

		v1, v2 := draw()
		dice := game.NewDice(v1, v2)
		ns := game.StartTurn(s, dice)
		d.sendSeats(r, "dice-rolled", DiceRolledPayload{Dice: dice})
		if ns.Phase != game.PhaseMoving {
			d.sendSeats(r, "turn-ended", TurnEndedPayload{State: ns, CurrentPlayer: ns.Current})
		}
		return ns
	})
}

func (d *Dispatcher) handleMakeMove(c *Client, raw json.RawMessage) {
	r, role, ok := d.requireSeat(c)
	if !ok {
		return
	}
	var req MakeMoveRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		d.sendError(c, "invalid payload")
		return
	}

	r.Do(func(s *game.GameState) *game.GameState {
		if role.Player() != s.Current {
			d.sendError(c, "not your turn")
			return nil
		}
		if s.Phase != game.PhaseMoving {
			d.sendError(c, "cannot move now")
			return nil
		}

		ns, err := game.PlayMove(s, req.Move)
		if err != nil {
			d.sendError(c, "illegal move")
			return nil
		}

		d.sendSeats(r, "move-made", MoveMadePayload{Move: req.Move, State: ns})
		switch {
		case ns.Phase == game.PhaseGameOver:
			d.finishGame(r, ns)
		case ns.Current != s.Current:
			d.sendSeats(r, "turn-ended", TurnEndedPayload{State: ns, CurrentPlayer: ns.Current})
		}
		return ns
	})
}

func (d *Dispatcher) handleEndTurn(c *Client) {
	r, role, ok := d.requireSeat(c)
	if !ok {
		return
	}
	r.Do(func(s *game.GameState) *game.GameState {
		if role.Player() != s.Current {
			d.sendError(c, "not your turn")
			return nil
		}
		if s.Phase != game.PhaseMoving {
			d.sendError(c, "cannot end turn now")
			return nil
		}
		if game.CanMove(s) {
			d.sendError(c, "moves are still available")
			return nil
		}
		ns := game.EndTurn(s)
		d.sendSeats(r, "turn-ended", TurnEndedPayload{State: ns, CurrentPlayer: ns.Current})
		return ns
	})
}

func (d *Dispatcher) handleOfferDouble(c *Client) {
	r, role, ok := d.requireSeat(c)
	if !ok {
		return
	}
	r.Do(func(s *game.GameState) *game.GameState {
		if !game.CanOffer(s, role.Player()) {
			d.sendError(c, "cannot offer a double now")
			return nil
		}
		ns := game.OfferDouble(s)
		if peer := r.Opponent(c.id); peer != nil {
			d.sendToSocket(peer.SocketID, "double-offered", DoubleOfferedPayload{
				CurrentCubeValue: s.Cube.Value,
			})
		}
		return ns
	})
}

func (d *Dispatcher) handleRespondDouble(c *Client, raw json.RawMessage) {
	r, role, ok := d.requireSeat(c)
	if !ok {
		return
	}
	var req RespondDoubleRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		d.sendError(c, "invalid payload")
		return
	}

	r.Do(func(s *game.GameState) *game.GameState {
		if s.Phase != game.PhaseDoubling {
			d.sendError(c, "no double pending")
			return nil
		}
		if role.Player() != s.Current.Opponent() {
			d.sendError(c, "not your double to answer")
			return nil
		}

		var ns *game.GameState
		if req.Accept {
			ns = game.AcceptDouble(s)
		} else {
			ns = game.DeclineDouble(s)
		}
		d.sendSeats(r, "double-response", DoubleResponsePayload{Accepted: req.Accept, State: ns})
		if ns.Phase == game.PhaseGameOver {
			d.finishGame(r, ns)
		}
		return ns
	})
}

// finishGame broadcasts game-over and records the match off the hot path.
// Persistence failures are logged and never block the broadcast.
func (d *Dispatcher) finishGame(r *room.Room, s *game.GameState) {
	points := game.Points(s.WinType, s.Cube.Value)
	d.sendSeats(r, "game-over", GameOverPayload{
		Winner:    s.Winner,
		WinType:   s.WinType,
		PointsWon: points,
	})

	gold, red := r.Gold(), r.Red()
	if gold == nil || red == nil {
		return
	}
	winner := gold
	if s.Winner == game.Red {
		winner = red
	}
	rec := &store.Match{
		GoldPlayerID: gold.PlayerID,
		RedPlayerID:  red.PlayerID,
		WinnerID:     winner.PlayerID,
		WinType:      string(s.WinType),
		PointsWon:    points,
		CreatedAt:    r.CreatedAt,
		CompletedAt:  time.Now().UTC(),
	}
	go func() {
		ctx, cancel := storeCtx()
		defer cancel()
		if err := d.store.RecordMatch(ctx, rec); err != nil {
			d.metrics.RecordFailures.Inc()
			log.Printf("record match for room %s: %v", r.ID, err)
			return
		}
		d.metrics.MatchesRecorded.Inc()
	}()
}

// ============================================================================
// Connection continuity
// ============================================================================

func (d *Dispatcher) handleReconnect(c *Client, raw json.RawMessage) {
	if !d.requireRegistered(c) {
		return
	}
	var req ReconnectRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		d.sendError(c, "invalid payload")
		return
	}
	if req.PlayerID != c.playerID {
		d.sendError(c, "not your seat")
		return
	}

	r, err := d.rooms.Rebind(req.RoomID, req.PlayerID, c.id)
	if err != nil {
		d.sendError(c, "could not reconnect")
		return
	}

	role := r.RoleOfPlayer(req.PlayerID)
	peer := r.Opponent(c.id)
	r.Do(func(s *game.GameState) *game.GameState {
		c.enqueue("room-joined", RoomJoinedPayload{
			RoomID:   r.ID,
			Player:   role.String(),
			State:    s,
			Opponent: opponentInfo(peer),
		})
		return nil
	})
	if peer != nil {
		d.sendToSocket(peer.SocketID, "opponent-reconnected", struct{}{})
	}
}

// handleDisconnect runs when a socket's read pump exits. The seat keeps its
// player so a reconnect restores the same role; with a configured grace
// period the seat is forfeited when the timer outlives the reconnect.
func (d *Dispatcher) handleDisconnect(c *Client) {
	d.mu.Lock()
	delete(d.clients, c.id)
	d.mu.Unlock()
	d.metrics.Connections.Dec()

	d.queue.LeaveBySocket(c.id)
	d.metrics.QueueDepth.Set(float64(d.queue.Len()))

	r := d.rooms.FindBySocket(c.id)
	if r == nil {
		return
	}
	d.rooms.DropSocket(c.id)
	if peer := r.Opponent(c.id); peer != nil {
		d.sendToSocket(peer.SocketID, "opponent-disconnected", struct{}{})
	}

	playerID := c.playerID
	roomID := r.ID
	r.StartForfeit(playerID, d.grace, func() {
		d.forfeitSeat(roomID, playerID)
	})
}

// forfeitSeat vacates a seat whose player never reconnected within the grace
// period.
func (d *Dispatcher) forfeitSeat(roomID, playerID string) {
	r, err := d.rooms.Get(roomID)
	if err != nil {
		return
	}
	role := r.RoleOfPlayer(playerID)
	seat := r.Seat(role)
	if seat == nil {
		return
	}
	peer := r.Opponent(seat.SocketID)
	if _, _, err := d.rooms.Leave(roomID, seat.SocketID); err != nil {
		log.Printf("forfeit: leave room %s: %v", roomID, err)
		return
	}
	if peer != nil {
		d.sendToSocket(peer.SocketID, "opponent-left", struct{}{})
	}
	d.publishRoomList()
}

func (d *Dispatcher) handleListPlayers(c *Client) {
	ctx, cancel := storeCtx()
	defer cancel()
	players, err := d.store.Roster(ctx)
	if err != nil {
		log.Printf("list-players: %v", err)
		d.sendError(c, "could not load players")
		return
	}
	if players == nil {
		players = []store.RosterEntry{}
	}
	c.enqueue("player-list", PlayerListPayload{Players: players})
}
