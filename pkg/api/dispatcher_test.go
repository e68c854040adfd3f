package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/yamon/internal/store"
	"github.com/yourusername/yamon/pkg/game"
)

// newTestDispatcher returns a dispatcher over an in-memory store.
func newTestDispatcher(t *testing.T) (*Dispatcher, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	d := NewDispatcher(mem, NewMetrics(prometheus.NewRegistry()), 0)
	return d, mem
}

// newTestClient builds a connected client whose outbound queue the test reads
// directly; no real socket is involved.
func newTestClient(d *Dispatcher) *Client {
	c := &Client{
		id:   uuid.NewString(),
		send: make(chan outbound, 64),
		d:    d,
	}
	d.addClient(c)
	return c
}

func raw(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func send(t *testing.T, c *Client, event string, payload interface{}) {
	t.Helper()
	env := Envelope{Event: event}
	if payload != nil {
		env.Payload = raw(t, payload)
	}
	c.d.dispatch(c, env)
}

// waitFor drains the client's queue until the given event arrives, skipping
// unrelated broadcasts like room-list updates.
func waitFor(t *testing.T, c *Client, event string) outbound {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-c.send:
			if m.Event == event {
				return m
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", event)
		}
	}
}

// drain empties the client's queue so later assertions start clean.
func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func register(t *testing.T, d *Dispatcher) *Client {
	t.Helper()
	c := newTestClient(d)
	send(t, c, "register", nil)
	p := waitFor(t, c, "registered").Payload.(RegisteredPayload)
	require.NotEmpty(t, p.PlayerID)
	require.NotEmpty(t, p.Token)
	return c
}

// setupRoom registers two players and seats them in one room, consuming the
// join/start traffic. Returns gold, red and the room id.
func setupRoom(t *testing.T, d *Dispatcher) (*Client, *Client, string) {
	t.Helper()
	gold := register(t, d)
	red := register(t, d)

	send(t, gold, "create-room", nil)
	roomID := waitFor(t, gold, "room-created").Payload.(RoomCreatedPayload).RoomID

	send(t, red, "join-room", JoinRoomRequest{RoomID: roomID})
	waitFor(t, gold, "game-start")
	waitFor(t, red, "game-start")
	drain(gold)
	drain(red)
	return gold, red, roomID
}

// openWith performs the opening roll with fixed dice and waits for the result.
func openWith(t *testing.T, gold, red *Client, goldDie, redDie int) {
	t.Helper()
	send(t, gold, "roll-dice", RollDiceRequest{Dice: []int{goldDie, redDie}})
	waitFor(t, gold, "opening-roll-result")
	waitFor(t, red, "opening-roll-result")
}

func move(from, to game.Slot) game.Move {
	return game.Move{From: from, To: to}
}

// ============================================================================
// Identity
// ============================================================================

func TestRegisterCreatesGuest(t *testing.T) {
	d, _ := newTestDispatcher(t)
	c := newTestClient(d)

	send(t, c, "register", nil)
	p := waitFor(t, c, "registered").Payload.(RegisteredPayload)

	assert.NotEmpty(t, p.PlayerID)
	assert.Contains(t, p.DisplayName, "Guest-")
	assert.Nil(t, p.Username)
}

func TestRegisterRestoresSessionByToken(t *testing.T) {
	d, _ := newTestDispatcher(t)
	c1 := newTestClient(d)
	send(t, c1, "register", nil)
	first := waitFor(t, c1, "registered").Payload.(RegisteredPayload)

	c2 := newTestClient(d)
	send(t, c2, "register", RegisterRequest{Token: first.Token})
	second := waitFor(t, c2, "registered").Payload.(RegisteredPayload)

	assert.Equal(t, first.PlayerID, second.PlayerID)
	assert.Equal(t, first.DisplayName, second.DisplayName)
}

func TestRegisterWithUnknownTokenFallsBackToNewGuest(t *testing.T) {
	d, _ := newTestDispatcher(t)
	c := newTestClient(d)

	send(t, c, "register", RegisterRequest{Token: "no-such-token"})
	p := waitFor(t, c, "registered").Payload.(RegisteredPayload)

	assert.NotEmpty(t, p.PlayerID)
	assert.NotEqual(t, "no-such-token", p.Token)
}

func TestClaimUsername(t *testing.T) {
	d, _ := newTestDispatcher(t)
	c := register(t, d)

	send(t, c, "claim-username", ClaimUsernameRequest{Username: "irie_skipper"})
	p := waitFor(t, c, "username-claimed").Payload.(UsernameClaimedPayload)
	assert.Equal(t, "irie_skipper", p.Username)

	other := register(t, d)
	send(t, other, "claim-username", ClaimUsernameRequest{Username: "irie_skipper"})
	e := waitFor(t, other, "username-error").Payload.(ErrorPayload)
	assert.Equal(t, "username already taken", e.Message)
}

func TestClaimUsernameRejectsInvalid(t *testing.T) {
	d, _ := newTestDispatcher(t)
	c := register(t, d)

	send(t, c, "claim-username", ClaimUsernameRequest{Username: "ab"})
	e := waitFor(t, c, "username-error").Payload.(ErrorPayload)
	assert.NotEmpty(t, e.Message)
}

func TestUnregisteredSocketCannotAct(t *testing.T) {
	d, _ := newTestDispatcher(t)
	c := newTestClient(d)

	send(t, c, "create-room", nil)
	e := waitFor(t, c, "error").Payload.(ErrorPayload)
	assert.Equal(t, "not registered", e.Message)
}

// ============================================================================
// Rooms and matchmaking
// ============================================================================

func TestCreateAndJoinRoom(t *testing.T) {
	d, _ := newTestDispatcher(t)
	gold := register(t, d)
	red := register(t, d)

	send(t, gold, "create-room", CreateRoomRequest{RoomName: "sunset table"})
	roomID := waitFor(t, gold, "room-created").Payload.(RoomCreatedPayload).RoomID
	assert.Len(t, roomID, 5)

	list := waitFor(t, red, "room-list").Payload.(RoomListPayload)
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, "sunset table", list.Rooms[0].Name)

	send(t, red, "join-room", JoinRoomRequest{RoomID: roomID})

	gj := waitFor(t, gold, "room-joined").Payload.(RoomJoinedPayload)
	rj := waitFor(t, red, "room-joined").Payload.(RoomJoinedPayload)
	assert.Equal(t, "gold", gj.Player)
	assert.Equal(t, "red", rj.Player)
	require.NotNil(t, gj.Opponent)
	require.NotNil(t, rj.Opponent)
	assert.Equal(t, red.displayName, gj.Opponent.DisplayName)
	assert.Equal(t, gold.displayName, rj.Opponent.DisplayName)

	gs := waitFor(t, gold, "game-start").Payload.(GameStartPayload)
	waitFor(t, red, "game-start")
	assert.Equal(t, game.PhaseOpeningRoll, gs.State.Phase)
	assert.Equal(t, game.Nobody, gs.State.Current)
}

func TestJoinUnknownRoomFails(t *testing.T) {
	d, _ := newTestDispatcher(t)
	c := register(t, d)

	send(t, c, "join-room", JoinRoomRequest{RoomID: "ZZZZZ"})
	e := waitFor(t, c, "error").Payload.(ErrorPayload)
	assert.Equal(t, "room not found", e.Message)
}

func TestJoinFullRoomFails(t *testing.T) {
	d, _ := newTestDispatcher(t)
	_, _, roomID := setupRoom(t, d)

	late := register(t, d)
	send(t, late, "join-room", JoinRoomRequest{RoomID: roomID})
	e := waitFor(t, late, "error").Payload.(ErrorPayload)
	assert.Equal(t, "room is full", e.Message)
}

func TestCannotJoinOwnRoom(t *testing.T) {
	d, _ := newTestDispatcher(t)
	host := register(t, d)
	send(t, host, "create-room", nil)
	roomID := waitFor(t, host, "room-created").Payload.(RoomCreatedPayload).RoomID

	// Same identity on a second socket.
	twin := newTestClient(d)
	send(t, twin, "register", RegisterRequest{Token: tokenOf(t, host, d)})
	waitFor(t, twin, "registered")

	send(t, twin, "join-room", JoinRoomRequest{RoomID: roomID})
	e := waitFor(t, twin, "error").Payload.(ErrorPayload)
	assert.Equal(t, "cannot join your own room", e.Message)
}

// tokenOf looks up the client's session token through the store.
func tokenOf(t *testing.T, c *Client, d *Dispatcher) string {
	t.Helper()
	mem, ok := d.store.(*store.Memory)
	require.True(t, ok)
	g, err := mem.GuestByID(t.Context(), c.playerID)
	require.NoError(t, err)
	return g.Token
}

func TestQuickMatchPairsTwoPlayers(t *testing.T) {
	d, _ := newTestDispatcher(t)
	a := register(t, d)
	b := register(t, d)

	send(t, a, "quick-match", nil)
	send(t, b, "quick-match", nil)

	ma := waitFor(t, a, "match-found").Payload.(MatchFoundPayload)
	mb := waitFor(t, b, "match-found").Payload.(MatchFoundPayload)
	assert.Equal(t, ma.RoomID, mb.RoomID)

	waitFor(t, a, "game-start")
	waitFor(t, b, "game-start")
}

func TestQuickMatchDedupesPlayer(t *testing.T) {
	d, _ := newTestDispatcher(t)
	a := register(t, d)

	send(t, a, "quick-match", nil)
	send(t, a, "quick-match", nil)
	assert.Equal(t, 1, d.queue.Len())

	send(t, a, "leave-queue", nil)
	assert.Equal(t, 0, d.queue.Len())
}

func TestLeaveRoomNotifiesOpponent(t *testing.T) {
	d, _ := newTestDispatcher(t)
	gold, red, roomID := setupRoom(t, d)

	send(t, gold, "leave-room", LeaveRoomRequest{RoomID: roomID})
	waitFor(t, red, "opponent-left")

	// The room survives with one seat, so the leaver can open a new one.
	send(t, gold, "create-room", nil)
	waitFor(t, gold, "room-created")
}

func TestLeaveRoomRejectsForeignRoomID(t *testing.T) {
	d, _ := newTestDispatcher(t)
	gold, red, _ := setupRoom(t, d)

	send(t, gold, "leave-room", LeaveRoomRequest{RoomID: "ZZZZZ"})
	e := waitFor(t, gold, "error").Payload.(ErrorPayload)
	assert.Equal(t, "not in that room", e.Message)

	// The seat is untouched and the opponent saw nothing.
	assert.Empty(t, red.send)
	send(t, gold, "leave-room", nil)
	waitFor(t, red, "opponent-left")
}

// ============================================================================
// Opening roll
// ============================================================================

func TestOpeningRollAssignsFirstPlayer(t *testing.T) {
	d, _ := newTestDispatcher(t)
	gold, red, _ := setupRoom(t, d)

	send(t, gold, "roll-dice", RollDiceRequest{Dice: []int{2, 5}})
	p := waitFor(t, red, "opening-roll-result").Payload.(OpeningRollResultPayload)
	waitFor(t, gold, "opening-roll-result")

	assert.Equal(t, 2, p.GoldDie)
	assert.Equal(t, 5, p.RedDie)
	assert.Equal(t, game.Red, p.FirstPlayer)
	assert.ElementsMatch(t, []int{2, 5}, p.Dice.Remaining)
}

func TestOpeningRollTieRerolls(t *testing.T) {
	d, _ := newTestDispatcher(t)
	gold, red, _ := setupRoom(t, d)

	send(t, gold, "roll-dice", RollDiceRequest{Dice: []int{4, 4}})
	tied := waitFor(t, gold, "opening-roll-tied").Payload.(OpeningRollTiedPayload)
	waitFor(t, red, "opening-roll-tied")
	assert.Equal(t, 4, tied.GoldDie)
	assert.Equal(t, 4, tied.RedDie)

	// Either seat may trigger the reroll.
	send(t, red, "roll-dice", RollDiceRequest{Dice: []int{6, 1}})
	p := waitFor(t, red, "opening-roll-result").Payload.(OpeningRollResultPayload)
	assert.Equal(t, game.Gold, p.FirstPlayer)
}

// ============================================================================
// Turn flow
// ============================================================================

func TestMoveFlowPlaysOutTurn(t *testing.T) {
	d, _ := newTestDispatcher(t)
	gold, red, _ := setupRoom(t, d)
	openWith(t, gold, red, 6, 1)

	// Gold opens with 6-1: 0/6 then 16/17.
	send(t, gold, "make-move", MakeMoveRequest{Move: move(game.PointSlot(0), game.PointSlot(6))})
	mm := waitFor(t, red, "move-made").Payload.(MoveMadePayload)
	assert.Equal(t, "0/6", mm.Move.String())
	assert.Equal(t, game.PhaseMoving, mm.State.Phase)

	send(t, gold, "make-move", MakeMoveRequest{Move: move(game.PointSlot(16), game.PointSlot(17))})
	waitFor(t, red, "move-made")

	te := waitFor(t, red, "turn-ended").Payload.(TurnEndedPayload)
	waitFor(t, gold, "turn-ended")
	assert.Equal(t, game.Red, te.CurrentPlayer)
	assert.Equal(t, game.PhaseRolling, te.State.Phase)
}

func TestRollRejectedOutOfTurn(t *testing.T) {
	d, _ := newTestDispatcher(t)
	gold, red, _ := setupRoom(t, d)
	openWith(t, gold, red, 6, 1)
	drain(red)

	// Gold is mid-move; red may not roll.
	send(t, red, "roll-dice", RollDiceRequest{Dice: []int{3, 2}})
	e := waitFor(t, red, "error").Payload.(ErrorPayload)
	assert.Equal(t, "not your turn", e.Message)
	assert.Empty(t, gold.send, "opponent must not observe the rejection")
}

func TestMoveRejectedOutOfTurn(t *testing.T) {
	d, _ := newTestDispatcher(t)
	gold, red, _ := setupRoom(t, d)
	openWith(t, gold, red, 6, 1)

	send(t, red, "make-move", MakeMoveRequest{Move: move(game.PointSlot(23), game.PointSlot(17))})
	e := waitFor(t, red, "error").Payload.(ErrorPayload)
	assert.Equal(t, "not your turn", e.Message)
}

func TestIllegalMoveRejected(t *testing.T) {
	d, _ := newTestDispatcher(t)
	gold, red, _ := setupRoom(t, d)
	openWith(t, gold, red, 6, 1)

	// Point 7 holds three red checkers.
	send(t, gold, "make-move", MakeMoveRequest{Move: move(game.PointSlot(0), game.PointSlot(7))})
	e := waitFor(t, gold, "error").Payload.(ErrorPayload)
	assert.Equal(t, "illegal move", e.Message)
}

func TestEndTurnRejectedWhileMovesRemain(t *testing.T) {
	d, _ := newTestDispatcher(t)
	gold, red, _ := setupRoom(t, d)
	openWith(t, gold, red, 6, 1)

	send(t, gold, "end-turn", nil)
	e := waitFor(t, gold, "error").Payload.(ErrorPayload)
	assert.Equal(t, "moves are still available", e.Message)
}

// ============================================================================
// Doubling
// ============================================================================

// toRedRolling plays gold's opening 6-1 so red sits in the rolling phase.
func toRedRolling(t *testing.T, gold, red *Client) {
	t.Helper()
	openWith(t, gold, red, 6, 1)
	send(t, gold, "make-move", MakeMoveRequest{Move: move(game.PointSlot(0), game.PointSlot(6))})
	send(t, gold, "make-move", MakeMoveRequest{Move: move(game.PointSlot(16), game.PointSlot(17))})
	waitFor(t, gold, "turn-ended")
	waitFor(t, red, "turn-ended")
	drain(gold)
	drain(red)
}

func TestDoubleOfferedAndAccepted(t *testing.T) {
	d, _ := newTestDispatcher(t)
	gold, red, _ := setupRoom(t, d)
	toRedRolling(t, gold, red)

	send(t, red, "offer-double", nil)
	off := waitFor(t, gold, "double-offered").Payload.(DoubleOfferedPayload)
	assert.Equal(t, 1, off.CurrentCubeValue)
	assert.Empty(t, red.send, "offer goes to the opponent only")

	send(t, gold, "respond-double", RespondDoubleRequest{Accept: true})
	resp := waitFor(t, red, "double-response").Payload.(DoubleResponsePayload)
	assert.True(t, resp.Accepted)
	assert.Equal(t, 2, resp.State.Cube.Value)
	assert.Equal(t, game.Gold, resp.State.Cube.Owner)
	assert.Equal(t, game.PhaseRolling, resp.State.Phase)
	assert.Equal(t, game.Red, resp.State.Current)
}

func TestDoubleDeclinedEndsGame(t *testing.T) {
	d, mem := newTestDispatcher(t)
	gold, red, _ := setupRoom(t, d)
	toRedRolling(t, gold, red)

	send(t, red, "offer-double", nil)
	waitFor(t, gold, "double-offered")

	send(t, gold, "respond-double", RespondDoubleRequest{Accept: false})
	resp := waitFor(t, gold, "double-response").Payload.(DoubleResponsePayload)
	assert.False(t, resp.Accepted)

	over := waitFor(t, red, "game-over").Payload.(GameOverPayload)
	assert.Equal(t, game.Red, over.Winner)
	assert.Equal(t, game.WinSingle, over.WinType)
	assert.Equal(t, 1, over.PointsWon)

	require.Eventually(t, func() bool {
		return len(mem.Matches()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	rec := mem.Matches()[0]
	assert.Equal(t, red.playerID, rec.WinnerID)
	assert.Equal(t, gold.playerID, rec.GoldPlayerID)
	assert.Equal(t, 1, rec.PointsWon)
}

func TestDoubleRefusedWhenNotEntitled(t *testing.T) {
	d, _ := newTestDispatcher(t)
	gold, red, _ := setupRoom(t, d)
	toRedRolling(t, gold, red)

	// Gold is not on roll.
	send(t, gold, "offer-double", nil)
	e := waitFor(t, gold, "error").Payload.(ErrorPayload)
	assert.Equal(t, "cannot offer a double now", e.Message)
	assert.Empty(t, red.send)
}

func TestRespondDoubleOnlyFromOpponent(t *testing.T) {
	d, _ := newTestDispatcher(t)
	gold, red, _ := setupRoom(t, d)
	toRedRolling(t, gold, red)

	send(t, red, "offer-double", nil)
	waitFor(t, gold, "double-offered")

	send(t, red, "respond-double", RespondDoubleRequest{Accept: true})
	e := waitFor(t, red, "error").Payload.(ErrorPayload)
	assert.Equal(t, "not your double to answer", e.Message)
}

// ============================================================================
// Continuity
// ============================================================================

func TestDisconnectKeepsSeatAndReconnectRestoresIt(t *testing.T) {
	d, _ := newTestDispatcher(t)
	gold, red, roomID := setupRoom(t, d)
	openWith(t, gold, red, 6, 1)
	drain(gold)
	redToken := tokenOf(t, red, d)

	d.handleDisconnect(red)
	waitFor(t, gold, "opponent-disconnected")

	back := newTestClient(d)
	send(t, back, "register", RegisterRequest{Token: redToken})
	waitFor(t, back, "registered")

	send(t, back, "reconnect-to-game", ReconnectRequest{PlayerID: back.playerID, RoomID: roomID})
	rj := waitFor(t, back, "room-joined").Payload.(RoomJoinedPayload)
	assert.Equal(t, "red", rj.Player)
	assert.Equal(t, game.PhaseMoving, rj.State.Phase)

	waitFor(t, gold, "opponent-reconnected")
}

func TestReconnectRejectsForeignSeat(t *testing.T) {
	d, _ := newTestDispatcher(t)
	gold, red, roomID := setupRoom(t, d)
	drain(gold)

	intruder := register(t, d)
	send(t, intruder, "reconnect-to-game", ReconnectRequest{PlayerID: red.playerID, RoomID: roomID})
	e := waitFor(t, intruder, "error").Payload.(ErrorPayload)
	assert.Equal(t, "not your seat", e.Message)
}

func TestDisconnectWithGraceForfeitsSeat(t *testing.T) {
	mem := store.NewMemory()
	d := NewDispatcher(mem, NewMetrics(prometheus.NewRegistry()), 20*time.Millisecond)

	gold := register(t, d)
	red := register(t, d)
	send(t, gold, "create-room", nil)
	roomID := waitFor(t, gold, "room-created").Payload.(RoomCreatedPayload).RoomID
	send(t, red, "join-room", JoinRoomRequest{RoomID: roomID})
	waitFor(t, red, "game-start")
	drain(gold)
	drain(red)

	d.handleDisconnect(red)
	waitFor(t, gold, "opponent-disconnected")
	waitFor(t, gold, "opponent-left")

	r, err := d.rooms.Get(roomID)
	require.NoError(t, err)
	assert.Nil(t, r.Red())
}

// ============================================================================
// Roster and rematch
// ============================================================================

func TestListPlayersShowsClaimedUsernames(t *testing.T) {
	d, mem := newTestDispatcher(t)
	gold, red, _ := setupRoom(t, d)

	send(t, gold, "claim-username", ClaimUsernameRequest{Username: "jammin_gold"})
	waitFor(t, gold, "username-claimed")
	send(t, red, "claim-username", ClaimUsernameRequest{Username: "steady_red"})
	waitFor(t, red, "username-claimed")

	toRedRolling(t, gold, red)
	send(t, red, "offer-double", nil)
	waitFor(t, gold, "double-offered")
	send(t, gold, "respond-double", RespondDoubleRequest{Accept: false})
	require.Eventually(t, func() bool {
		return len(mem.Matches()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	send(t, gold, "list-players", nil)
	p := waitFor(t, gold, "player-list").Payload.(PlayerListPayload)
	require.Len(t, p.Players, 2)
	assert.Equal(t, "steady_red", p.Players[0].Username)
	assert.Equal(t, 1, p.Players[0].Wins)
	assert.Equal(t, "jammin_gold", p.Players[1].Username)
	assert.Equal(t, 1, p.Players[1].Losses)
}

func TestRematchResetsBoardKeepsScore(t *testing.T) {
	d, _ := newTestDispatcher(t)
	gold, red, _ := setupRoom(t, d)
	toRedRolling(t, gold, red)

	send(t, red, "offer-double", nil)
	waitFor(t, gold, "double-offered")
	send(t, gold, "respond-double", RespondDoubleRequest{Accept: false})
	waitFor(t, gold, "game-over")
	waitFor(t, red, "game-over")

	send(t, gold, "rematch", nil)
	gs := waitFor(t, red, "game-start").Payload.(GameStartPayload)
	waitFor(t, gold, "game-start")

	assert.Equal(t, game.PhaseOpeningRoll, gs.State.Phase)
	assert.Equal(t, game.StartingBoard(), gs.State.Board)
	assert.Equal(t, [2]int{0, 1}, gs.State.Score)
}

func TestRematchRejectedMidGame(t *testing.T) {
	d, _ := newTestDispatcher(t)
	gold, red, _ := setupRoom(t, d)
	openWith(t, gold, red, 6, 1)

	send(t, gold, "rematch", nil)
	e := waitFor(t, gold, "error").Payload.(ErrorPayload)
	assert.Equal(t, "game still running", e.Message)
}

func TestUnknownEventReturnsError(t *testing.T) {
	d, _ := newTestDispatcher(t)
	c := register(t, d)

	send(t, c, "walk-the-plank", nil)
	e := waitFor(t, c, "error").Payload.(ErrorPayload)
	assert.Equal(t, "unknown event", e.Message)
}
