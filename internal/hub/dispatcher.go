package hub

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seojin-dev/chessroom/internal/domain"
	"github.com/seojin-dev/chessroom/internal/game"
	"github.com/seojin-dev/chessroom/internal/msgcat"
	"github.com/seojin-dev/chessroom/internal/obslog"
	"github.com/seojin-dev/chessroom/internal/room"
	"github.com/seojin-dev/chessroom/internal/store"
	"github.com/seojin-dev/chessroom/pkg/wire"
)

// Dispatcher routes each inbound client message to its handler and turns
// handler errors into catalog-rendered error events for the sender. State
// changes are announced through the router; errors never fan out past the
// connection that caused them.
type Dispatcher struct {
	registry  *room.Registry
	games     *game.Machine
	store     store.Store
	sessions  *SessionManager
	router    *Router
	cat       *msgcat.Catalog
	chatLimit int
}

func NewDispatcher(reg *room.Registry, games *game.Machine, st store.Store, sessions *SessionManager, router *Router, cat *msgcat.Catalog, chatLimit int) *Dispatcher {
	if chatLimit <= 0 {
		chatLimit = 100
	}
	return &Dispatcher{
		registry:  reg,
		games:     games,
		store:     st,
		sessions:  sessions,
		router:    router,
		cat:       cat,
		chatLimit: chatLimit,
	}
}

// HandleConnect registers the connection and greets it.
func (d *Dispatcher) HandleConnect(ctx context.Context, conn Conn) *Session {
	s := d.sessions.Attach(conn)
	if err := conn.Send(ctx, &wire.Connected{Type: wire.TypeConnected}); err != nil {
		obslog.L().Warn("greeting send failed", zap.String("player", s.PlayerID), zap.Error(err))
	}
	return s
}

// HandleDisconnect drops the session and, if it was seated, tells the
// remaining occupant. When the last occupant leaves, the room record is
// marked inactive; the game itself is never mutated by a disconnect.
func (d *Dispatcher) HandleDisconnect(ctx context.Context, conn Conn) {
	s := d.sessions.Detach(conn)
	if s == nil || !s.Bound() {
		return
	}
	obslog.L().Info("player disconnected",
		zap.String("room_id", s.RoomID),
		zap.String("player", s.PlayerID),
		zap.String("color", string(s.Color)))
	d.router.Broadcast(ctx, s.RoomID, &wire.PlayerLeft{
		Type:  wire.TypePlayerLeft,
		Color: string(s.Color),
	}, nil)
	if len(d.sessions.SessionsInRoom(s.RoomID)) == 0 {
		if _, err := d.registry.Deactivate(ctx, s.RoomID); err != nil {
			obslog.L().Warn("room deactivation failed", zap.String("room_id", s.RoomID), zap.Error(err))
		}
	}
}

// Dispatch parses one raw frame and runs the matching handler. Handlers
// run synchronously on the connection's read loop, so a single client's
// messages are processed in order.
func (d *Dispatcher) Dispatch(ctx context.Context, conn Conn, raw []byte) {
	var msg wire.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		d.sendError(ctx, conn, domain.ErrMalformedMessage)
		return
	}
	if !msg.KnownType() {
		d.sendErrorKey(ctx, conn, "unknown_type", "Unknown message type.")
		return
	}

	var err error
	switch strings.TrimSpace(msg.Type) {
	case wire.TypeCreateRoom:
		err = d.handleCreateRoom(ctx, conn, &msg)
	case wire.TypeJoinRoom:
		err = d.handleJoinRoom(ctx, conn, &msg)
	case wire.TypeMakeMove:
		err = d.handleMakeMove(ctx, conn, &msg)
	case wire.TypeSendChat:
		err = d.handleSendChat(ctx, conn, &msg)
	case wire.TypeResign:
		err = d.handleResign(ctx, conn)
	case wire.TypeOfferDraw:
		err = d.handleOfferDraw(ctx, conn)
	}
	if err != nil {
		d.sendError(ctx, conn, err)
	}
}

func (d *Dispatcher) handleCreateRoom(ctx context.Context, conn Conn, msg *wire.ClientMessage) error {
	s := d.sessions.Get(conn)
	if s == nil {
		return domain.ErrNotInRoom
	}
	if s.Bound() {
		return domain.ErrAlreadyInRoom
	}
	rm, g, err := d.registry.CreateRoom(ctx, s.PlayerID)
	if err != nil {
		return err
	}
	if _, err := d.sessions.BindToRoom(conn, rm.ID, g.ID, strings.TrimSpace(msg.PlayerName), 1); err != nil {
		return err
	}
	return conn.Send(ctx, &wire.RoomCreated{
		Type:      wire.TypeRoomCreated,
		RoomCode:  rm.Code,
		RoomID:    rm.ID,
		Color:     string(domain.White),
		GameState: gameState(g, false, false),
	})
}

func (d *Dispatcher) handleJoinRoom(ctx context.Context, conn Conn, msg *wire.ClientMessage) error {
	s := d.sessions.Get(conn)
	if s == nil {
		return domain.ErrNotInRoom
	}
	if s.Bound() {
		return domain.ErrAlreadyInRoom
	}
	rm, err := d.registry.FindByCode(ctx, msg.RoomCode)
	if err != nil {
		return err
	}
	if _, err := d.registry.AssignSeat(ctx, rm.ID, 2, s.PlayerID); err != nil {
		return err
	}
	g, err := d.store.GetGameByRoom(ctx, rm.ID)
	if err != nil {
		obslog.L().Error("store operation failed", zap.String("op", "game_by_room"), zap.Error(err))
		return domain.ErrPersistence
	}
	if g == nil {
		return domain.ErrRoomNotFound
	}
	if _, err := d.sessions.BindToRoom(conn, rm.ID, g.ID, strings.TrimSpace(msg.PlayerName), 2); err != nil {
		return err
	}

	history, err := d.store.ChatHistory(ctx, rm.ID, d.chatLimit)
	if err != nil {
		obslog.L().Warn("chat history load failed", zap.String("room_id", rm.ID), zap.Error(err))
		history = nil
	}
	if err := conn.Send(ctx, &wire.RoomJoined{
		Type:         wire.TypeRoomJoined,
		RoomCode:     rm.Code,
		RoomID:       rm.ID,
		Color:        string(domain.Black),
		GameState:    gameState(g, false, false),
		ChatMessages: chatToWire(history),
	}); err != nil {
		obslog.L().Warn("room_joined send failed", zap.String("player", s.PlayerID), zap.Error(err))
	}

	started, err := d.games.Start(ctx, g.ID)
	if err != nil {
		return err
	}
	d.router.Broadcast(ctx, rm.ID, &wire.GameStarted{
		Type:      wire.TypeGameStarted,
		GameState: gameState(started, false, false),
	}, nil)
	return nil
}

func (d *Dispatcher) handleMakeMove(ctx context.Context, conn Conn, msg *wire.ClientMessage) error {
	s := d.sessions.Get(conn)
	if !s.Bound() {
		return domain.ErrNotInRoom
	}
	res, err := d.games.ApplyMove(ctx, s.GameID, s.Color, msg.From, msg.To, msg.Promotion)
	if err != nil {
		return err
	}
	d.router.Broadcast(ctx, s.RoomID, &wire.MoveMade{
		Type: wire.TypeMoveMade,
		Move: wire.Move{
			From:      res.From,
			To:        res.To,
			Promotion: res.Promotion,
			SAN:       res.SAN,
			Piece:     res.Piece,
			Captured:  res.Captured,
		},
		GameState: gameState(res.Game, res.Check, res.Checkmate),
	}, nil)
	return nil
}

func (d *Dispatcher) handleSendChat(ctx context.Context, conn Conn, msg *wire.ClientMessage) error {
	s := d.sessions.Get(conn)
	if !s.Bound() {
		return domain.ErrNotInRoom
	}
	text := strings.TrimSpace(msg.Message)
	if text == "" {
		return domain.ErrMalformedMessage
	}
	row := &domain.ChatMessage{
		ID:         uuid.NewString(),
		RoomID:     s.RoomID,
		PlayerID:   s.PlayerID,
		PlayerName: s.Name,
		Message:    text,
		CreatedAt:  time.Now().UTC(),
	}
	if err := d.store.AppendChat(ctx, row); err != nil {
		obslog.L().Error("store operation failed", zap.String("op", "chat_append"), zap.Error(err))
		return domain.ErrPersistence
	}
	d.router.Broadcast(ctx, s.RoomID, &wire.ChatEvent{
		Type: wire.TypeChatMessage,
		Message: wire.ChatMessage{
			ID:         row.ID,
			PlayerName: row.PlayerName,
			Message:    row.Message,
			CreatedAt:  row.CreatedAt,
		},
	}, nil)
	return nil
}

func (d *Dispatcher) handleResign(ctx context.Context, conn Conn) error {
	s := d.sessions.Get(conn)
	if !s.Bound() {
		return domain.ErrNotInRoom
	}
	g, err := d.games.Resign(ctx, s.GameID, s.Color)
	if err != nil {
		return err
	}
	d.router.Broadcast(ctx, s.RoomID, &wire.GameEnded{
		Type:           wire.TypeGameEnded,
		Reason:         "resignation",
		Winner:         string(g.Winner),
		ResignedPlayer: string(s.Color),
	}, nil)
	return nil
}

func (d *Dispatcher) handleOfferDraw(ctx context.Context, conn Conn) error {
	s := d.sessions.Get(conn)
	if !s.Bound() {
		return domain.ErrNotInRoom
	}
	if err := d.games.OfferDraw(ctx, s.GameID, s.Color); err != nil {
		return err
	}
	d.router.Broadcast(ctx, s.RoomID, &wire.DrawOffered{
		Type:      wire.TypeDrawOffered,
		OfferedBy: string(s.Color),
	}, conn)
	return nil
}

func (d *Dispatcher) sendError(ctx context.Context, conn Conn, err error) {
	key, fallback := errKey(err)
	d.sendErrorKey(ctx, conn, key, fallback)
}

func (d *Dispatcher) sendErrorKey(ctx context.Context, conn Conn, key, fallback string) {
	text := d.cat.Text("error."+key, fallback)
	if sendErr := conn.Send(ctx, &wire.ErrorEvent{Type: wire.TypeError, Message: text}); sendErr != nil {
		obslog.L().Warn("error send failed", zap.String("key", key), zap.Error(sendErr))
	}
}

// errKey maps a taxonomy sentinel to its catalog key. The sentinel text
// doubles as the fallback when the catalog has no entry.
func errKey(err error) (string, string) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return "room_not_found", err.Error()
	case errors.Is(err, domain.ErrRoomFull):
		return "room_full", err.Error()
	case errors.Is(err, domain.ErrNotInRoom):
		return "not_in_room", err.Error()
	case errors.Is(err, domain.ErrAlreadyInRoom):
		return "already_in_room", err.Error()
	case errors.Is(err, domain.ErrNotActive):
		return "not_active", err.Error()
	case errors.Is(err, domain.ErrOutOfTurn):
		return "out_of_turn", err.Error()
	case errors.Is(err, domain.ErrNoPiece):
		return "no_piece", err.Error()
	case errors.Is(err, domain.ErrWrongOwner):
		return "wrong_owner", err.Error()
	case errors.Is(err, domain.ErrIllegalMove):
		return "illegal_move", err.Error()
	case errors.Is(err, domain.ErrNeedsPromotion):
		return "needs_promotion", err.Error()
	case errors.Is(err, domain.ErrMalformedMessage):
		return "malformed", err.Error()
	default:
		return "persistence", "Something went wrong on our side."
	}
}

func gameState(g *domain.Game, check, checkmate bool) *wire.GameState {
	var winner *string
	if g.Winner != "" {
		w := string(g.Winner)
		winner = &w
	}
	history := append([]string(nil), g.MovesSAN...)
	return &wire.GameState{
		FEN:         g.FEN,
		CurrentTurn: string(g.Turn),
		MoveHistory: history,
		Status:      string(g.Status),
		Winner:      winner,
		Check:       check,
		Checkmate:   checkmate,
		Draw:        false,
		Stalemate:   false,
		Turn:        string(g.Turn),
		GameOver:    g.Status.Terminal(),
	}
}

func chatToWire(rows []*domain.ChatMessage) []wire.ChatMessage {
	out := make([]wire.ChatMessage, 0, len(rows))
	for _, r := range rows {
		out = append(out, wire.ChatMessage{
			ID:         r.ID,
			PlayerName: r.PlayerName,
			Message:    r.Message,
			CreatedAt:  r.CreatedAt,
		})
	}
	return out
}
