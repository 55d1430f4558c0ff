package hub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seojin-dev/chessroom/internal/game"
	"github.com/seojin-dev/chessroom/internal/msgcat"
	"github.com/seojin-dev/chessroom/internal/room"
	"github.com/seojin-dev/chessroom/internal/store"
	"github.com/seojin-dev/chessroom/pkg/wire"
)

// fakeConn records every event the dispatcher sends to it.
type fakeConn struct {
	mu     sync.Mutex
	events []any
	closed bool
}

func (f *fakeConn) Send(ctx context.Context, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, v)
	return nil
}

func (f *fakeConn) Close(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) drain() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.events
	f.events = nil
	return out
}

func (f *fakeConn) last() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return nil
	}
	return f.events[len(f.events)-1]
}

func newTestDispatcher(t *testing.T) (*Dispatcher, store.Store) {
	t.Helper()
	st := store.NewMemory()
	cat, err := msgcat.New("")
	require.NoError(t, err)
	sessions := NewSessionManager()
	d := NewDispatcher(room.NewRegistry(st), game.NewMachine(st), st, sessions, NewRouter(sessions), cat, 100)
	return d, st
}

func send(t *testing.T, d *Dispatcher, conn Conn, msg wire.ClientMessage) {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	d.Dispatch(context.Background(), conn, raw)
}

// createAndJoin runs the full pairing flow and returns both connections
// with their per-connection event buffers drained.
func createAndJoin(t *testing.T, d *Dispatcher) (white, black *fakeConn, code string) {
	t.Helper()
	ctx := context.Background()
	white = &fakeConn{}
	black = &fakeConn{}
	d.HandleConnect(ctx, white)
	d.HandleConnect(ctx, black)

	send(t, d, white, wire.ClientMessage{Type: wire.TypeCreateRoom, PlayerName: "anna"})
	created := findEvent[*wire.RoomCreated](white.drain())
	require.NotNil(t, created)
	code = created.RoomCode

	send(t, d, black, wire.ClientMessage{Type: wire.TypeJoinRoom, PlayerName: "ben", RoomCode: code})
	white.drain()
	black.drain()
	return white, black, code
}

func findEvent[T any](events []any) T {
	var zero T
	for _, e := range events {
		if v, ok := e.(T); ok {
			return v
		}
	}
	return zero
}

func TestConnectGreeting(t *testing.T) {
	d, _ := newTestDispatcher(t)
	conn := &fakeConn{}
	d.HandleConnect(context.Background(), conn)

	ev := findEvent[*wire.Connected](conn.drain())
	require.NotNil(t, ev)
	assert.Equal(t, wire.TypeConnected, ev.Type)
}

func TestCreateAndJoinFlow(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()
	creator := &fakeConn{}
	joiner := &fakeConn{}
	d.HandleConnect(ctx, creator)
	d.HandleConnect(ctx, joiner)
	creator.drain()
	joiner.drain()

	send(t, d, creator, wire.ClientMessage{Type: wire.TypeCreateRoom, PlayerName: "anna"})
	created := findEvent[*wire.RoomCreated](creator.drain())
	require.NotNil(t, created)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, created.RoomCode)
	assert.Equal(t, "white", created.Color)
	require.NotNil(t, created.GameState)
	assert.Equal(t, "waiting", created.GameState.Status)
	assert.False(t, created.GameState.GameOver)

	send(t, d, joiner, wire.ClientMessage{Type: wire.TypeJoinRoom, PlayerName: "ben", RoomCode: created.RoomCode})
	joinerEvents := joiner.drain()
	joined := findEvent[*wire.RoomJoined](joinerEvents)
	require.NotNil(t, joined)
	assert.Equal(t, created.RoomID, joined.RoomID)
	assert.Equal(t, "black", joined.Color)
	assert.Empty(t, joined.ChatMessages)

	// Both sides see the game start.
	started := findEvent[*wire.GameStarted](joinerEvents)
	require.NotNil(t, started)
	assert.Equal(t, "active", started.GameState.Status)
	creatorStarted := findEvent[*wire.GameStarted](creator.drain())
	require.NotNil(t, creatorStarted)
	assert.Equal(t, "white", creatorStarted.GameState.CurrentTurn)
}

func TestJoinUnknownCode(t *testing.T) {
	d, _ := newTestDispatcher(t)
	conn := &fakeConn{}
	d.HandleConnect(context.Background(), conn)
	conn.drain()

	send(t, d, conn, wire.ClientMessage{Type: wire.TypeJoinRoom, RoomCode: "ZZZZZZ"})
	ev := findEvent[*wire.ErrorEvent](conn.drain())
	require.NotNil(t, ev)
	assert.Contains(t, ev.Message, "Room not found")
}

func TestJoinFullRoom(t *testing.T) {
	d, _ := newTestDispatcher(t)
	_, _, code := createAndJoin(t, d)

	third := &fakeConn{}
	d.HandleConnect(context.Background(), third)
	third.drain()
	send(t, d, third, wire.ClientMessage{Type: wire.TypeJoinRoom, RoomCode: code})
	ev := findEvent[*wire.ErrorEvent](third.drain())
	require.NotNil(t, ev)
	assert.Contains(t, ev.Message, "two players")
}

func TestCreateWhileBound(t *testing.T) {
	d, _ := newTestDispatcher(t)
	white, _, _ := createAndJoin(t, d)

	send(t, d, white, wire.ClientMessage{Type: wire.TypeCreateRoom})
	ev := findEvent[*wire.ErrorEvent](white.drain())
	require.NotNil(t, ev)
	assert.Contains(t, ev.Message, "already in a room")
}

func TestMakeMoveBroadcasts(t *testing.T) {
	d, _ := newTestDispatcher(t)
	white, black, _ := createAndJoin(t, d)

	send(t, d, white, wire.ClientMessage{Type: wire.TypeMakeMove, From: "e2", To: "e4"})
	whiteMove := findEvent[*wire.MoveMade](white.drain())
	blackMove := findEvent[*wire.MoveMade](black.drain())
	require.NotNil(t, whiteMove)
	require.NotNil(t, blackMove)

	assert.Equal(t, "e4", whiteMove.Move.SAN)
	assert.Equal(t, "p", whiteMove.Move.Piece)
	assert.Equal(t, "black", whiteMove.GameState.CurrentTurn)
	assert.Equal(t, []string{"e4"}, whiteMove.GameState.MoveHistory)
	assert.False(t, whiteMove.GameState.GameOver)
	assert.Nil(t, whiteMove.GameState.Winner)
}

func TestOutOfTurnErrorsOnlySender(t *testing.T) {
	d, _ := newTestDispatcher(t)
	white, black, _ := createAndJoin(t, d)

	send(t, d, black, wire.ClientMessage{Type: wire.TypeMakeMove, From: "e7", To: "e5"})
	ev := findEvent[*wire.ErrorEvent](black.drain())
	require.NotNil(t, ev)
	assert.Contains(t, ev.Message, "not your turn")

	// The opponent hears nothing about the rejected attempt.
	assert.Empty(t, white.drain())
}

func TestMakeMoveWithoutRoom(t *testing.T) {
	d, _ := newTestDispatcher(t)
	conn := &fakeConn{}
	d.HandleConnect(context.Background(), conn)
	conn.drain()

	send(t, d, conn, wire.ClientMessage{Type: wire.TypeMakeMove, From: "e2", To: "e4"})
	ev := findEvent[*wire.ErrorEvent](conn.drain())
	require.NotNil(t, ev)
	assert.Contains(t, ev.Message, "Join or create a room")
}

func TestChatPersistsAndBroadcasts(t *testing.T) {
	d, st := newTestDispatcher(t)
	white, black, _ := createAndJoin(t, d)

	send(t, d, white, wire.ClientMessage{Type: wire.TypeSendChat, Message: "good luck"})
	whiteChat := findEvent[*wire.ChatEvent](white.drain())
	blackChat := findEvent[*wire.ChatEvent](black.drain())
	require.NotNil(t, whiteChat)
	require.NotNil(t, blackChat)
	assert.Equal(t, "good luck", whiteChat.Message.Message)
	assert.Equal(t, "anna", whiteChat.Message.PlayerName)

	s := d.sessions.Get(white)
	rows, err := st.ChatHistory(context.Background(), s.RoomID, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "good luck", rows[0].Message)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	d, _ := newTestDispatcher(t)
	white, black, _ := createAndJoin(t, d)

	send(t, d, white, wire.ClientMessage{Type: wire.TypeSendChat, Message: "   "})
	ev := findEvent[*wire.ErrorEvent](white.drain())
	require.NotNil(t, ev)
	assert.Empty(t, black.drain())
}

func TestResignEndsGame(t *testing.T) {
	d, _ := newTestDispatcher(t)
	white, black, _ := createAndJoin(t, d)

	send(t, d, black, wire.ClientMessage{Type: wire.TypeResign})
	whiteEnd := findEvent[*wire.GameEnded](white.drain())
	blackEnd := findEvent[*wire.GameEnded](black.drain())
	require.NotNil(t, whiteEnd)
	require.NotNil(t, blackEnd)
	assert.Equal(t, "resignation", whiteEnd.Reason)
	assert.Equal(t, "white", whiteEnd.Winner)
	assert.Equal(t, "black", whiteEnd.ResignedPlayer)

	// Nothing further is accepted on a finished game.
	send(t, d, white, wire.ClientMessage{Type: wire.TypeMakeMove, From: "e2", To: "e4"})
	ev := findEvent[*wire.ErrorEvent](white.drain())
	require.NotNil(t, ev)
	assert.Contains(t, ev.Message, "not in progress")
}

func TestDrawOfferExcludesSender(t *testing.T) {
	d, _ := newTestDispatcher(t)
	white, black, _ := createAndJoin(t, d)

	send(t, d, white, wire.ClientMessage{Type: wire.TypeOfferDraw})
	offer := findEvent[*wire.DrawOffered](black.drain())
	require.NotNil(t, offer)
	assert.Equal(t, "white", offer.OfferedBy)
	assert.Empty(t, white.drain())
}

func TestCheckmateReportedInGameState(t *testing.T) {
	d, _ := newTestDispatcher(t)
	white, black, _ := createAndJoin(t, d)

	moves := []struct {
		conn     *fakeConn
		from, to string
	}{
		{white, "f2", "f3"}, {black, "e7", "e5"},
		{white, "g2", "g4"}, {black, "d8", "h4"},
	}
	var last *wire.MoveMade
	for _, mv := range moves {
		send(t, d, mv.conn, wire.ClientMessage{Type: wire.TypeMakeMove, From: mv.from, To: mv.to})
		last = findEvent[*wire.MoveMade](white.drain())
		black.drain()
	}
	require.NotNil(t, last)
	assert.True(t, last.GameState.Checkmate)
	assert.True(t, last.GameState.GameOver)
	assert.Equal(t, "checkmate", last.GameState.Status)
	require.NotNil(t, last.GameState.Winner)
	assert.Equal(t, "black", *last.GameState.Winner)
}

func TestChatHistoryReplayOnJoin(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()
	creator := &fakeConn{}
	d.HandleConnect(ctx, creator)
	send(t, d, creator, wire.ClientMessage{Type: wire.TypeCreateRoom, PlayerName: "anna"})
	created := findEvent[*wire.RoomCreated](creator.drain())
	require.NotNil(t, created)

	send(t, d, creator, wire.ClientMessage{Type: wire.TypeSendChat, Message: "waiting for you"})
	creator.drain()

	joiner := &fakeConn{}
	d.HandleConnect(ctx, joiner)
	send(t, d, joiner, wire.ClientMessage{Type: wire.TypeJoinRoom, PlayerName: "ben", RoomCode: created.RoomCode})
	joined := findEvent[*wire.RoomJoined](joiner.drain())
	require.NotNil(t, joined)
	require.Len(t, joined.ChatMessages, 1)
	assert.Equal(t, "waiting for you", joined.ChatMessages[0].Message)
	assert.Equal(t, "anna", joined.ChatMessages[0].PlayerName)
}

func TestMalformedAndUnknownMessages(t *testing.T) {
	d, _ := newTestDispatcher(t)
	conn := &fakeConn{}
	d.HandleConnect(context.Background(), conn)
	conn.drain()

	d.Dispatch(context.Background(), conn, []byte("{not json"))
	ev := findEvent[*wire.ErrorEvent](conn.drain())
	require.NotNil(t, ev)
	assert.Contains(t, ev.Message, "understand")

	send(t, d, conn, wire.ClientMessage{Type: "teleport"})
	ev = findEvent[*wire.ErrorEvent](conn.drain())
	require.NotNil(t, ev)
	assert.Contains(t, ev.Message, "Unknown message type")
}

func TestDisconnectNotifiesRoom(t *testing.T) {
	d, _ := newTestDispatcher(t)
	white, black, _ := createAndJoin(t, d)

	d.HandleDisconnect(context.Background(), black)
	left := findEvent[*wire.PlayerLeft](white.drain())
	require.NotNil(t, left)
	assert.Equal(t, "black", left.Color)

	// Unbound connections vanish silently.
	loner := &fakeConn{}
	d.HandleConnect(context.Background(), loner)
	d.HandleDisconnect(context.Background(), loner)
	assert.Empty(t, white.drain())
}

func TestRoomDeactivatedWhenEmpty(t *testing.T) {
	d, st := newTestDispatcher(t)
	white, black, code := createAndJoin(t, d)
	ctx := context.Background()

	rm, err := st.GetRoomByCode(ctx, code)
	require.NoError(t, err)
	require.True(t, rm.IsActive)

	// One occupant remaining keeps the room active.
	d.HandleDisconnect(ctx, black)
	rm, err = st.GetRoomByCode(ctx, code)
	require.NoError(t, err)
	assert.True(t, rm.IsActive)

	d.HandleDisconnect(ctx, white)
	rm, err = st.GetRoomByCode(ctx, code)
	require.NoError(t, err)
	assert.False(t, rm.IsActive)

	// The game record is untouched by the departures.
	g, err := st.GetGameByRoom(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, "active", string(g.Status))
}

func TestPromotionRequiredSurfacesToSender(t *testing.T) {
	d, _ := newTestDispatcher(t)
	white, black, _ := createAndJoin(t, d)

	seq := []struct {
		conn     *fakeConn
		from, to string
	}{
		{white, "a2", "a4"}, {black, "b8", "c6"},
		{white, "a4", "a5"}, {black, "c6", "b8"},
		{white, "a5", "a6"}, {black, "b8", "c6"},
		{white, "a6", "b7"}, {black, "c6", "b8"},
	}
	for _, mv := range seq {
		send(t, d, mv.conn, wire.ClientMessage{Type: wire.TypeMakeMove, From: mv.from, To: mv.to})
		white.drain()
		black.drain()
	}

	send(t, d, white, wire.ClientMessage{Type: wire.TypeMakeMove, From: "b7", To: "a8"})
	ev := findEvent[*wire.ErrorEvent](white.drain())
	require.NotNil(t, ev)
	assert.Contains(t, ev.Message, "promote")
	assert.Empty(t, black.drain())

	send(t, d, white, wire.ClientMessage{Type: wire.TypeMakeMove, From: "b7", To: "a8", Promotion: "q"})
	mv := findEvent[*wire.MoveMade](black.drain())
	require.NotNil(t, mv)
	assert.Equal(t, "q", mv.Move.Promotion)
}
