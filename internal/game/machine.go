package game

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seojin-dev/chessroom/internal/domain"
	"github.com/seojin-dev/chessroom/internal/obslog"
	"github.com/seojin-dev/chessroom/internal/rules"
	"github.com/seojin-dev/chessroom/internal/store"
)

// MoveResult carries everything the router needs to announce a move.
type MoveResult struct {
	Game      *domain.Game
	UCI       string
	SAN       string
	From      string
	To        string
	Promotion string
	Piece     string
	Captured  string
	Check     bool
	Checkmate bool
}

// Machine runs every game mutation under a per-game lock so concurrent
// submissions serialize into load, validate, apply, persist. Positions
// are reconstructed by replaying the stored move list, never by trusting
// the stored FEN.
type Machine struct {
	store store.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMachine(s store.Store) *Machine {
	return &Machine{store: s, locks: make(map[string]*sync.Mutex)}
}

func (m *Machine) lockFor(gameID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[gameID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[gameID] = l
	}
	return l
}

// Start transitions a waiting game to active. Any other starting state is
// left untouched so a duplicate start is harmless.
func (m *Machine) Start(ctx context.Context, gameID string) (*domain.Game, error) {
	l := m.lockFor(gameID)
	l.Lock()
	defer l.Unlock()

	g, err := m.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.Status != domain.StatusWaiting {
		return g, nil
	}
	g.Status = domain.StatusActive
	g.UpdatedAt = time.Now().UTC()
	if err := m.persist(ctx, "game_start", g); err != nil {
		return nil, err
	}
	obslog.L().Info("game started", zap.String("game_id", g.ID), zap.String("room_id", g.RoomID))
	return g, nil
}

// ApplyMove validates and applies one move for the given side. Validation
// order is fixed: game must be active, it must be the mover's turn, the
// squares must parse, the source square must hold the mover's piece, a
// promotion-rank pawn push must name its piece, and finally the rules
// engine has the last word on legality. Exactly one application attempt
// is made.
func (m *Machine) ApplyMove(ctx context.Context, gameID string, mover domain.Color, from, to, promotion string) (*MoveResult, error) {
	l := m.lockFor(gameID)
	l.Lock()
	defer l.Unlock()

	g, err := m.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.Status != domain.StatusActive {
		return nil, domain.ErrNotActive
	}
	if g.Turn != mover {
		return nil, domain.ErrOutOfTurn
	}

	fromSq, ok := rules.ParseSquare(from)
	if !ok {
		return nil, domain.ErrIllegalMove
	}
	toSq, ok := rules.ParseSquare(to)
	if !ok {
		return nil, domain.ErrIllegalMove
	}

	pos, err := rules.Replay(g.MovesUCI)
	if err != nil {
		obslog.L().Error("stored move list does not replay",
			zap.String("game_id", g.ID), zap.Error(err))
		return nil, domain.ErrPersistence
	}

	owner, _, occupied := pos.PieceAt(fromSq)
	if !occupied {
		return nil, domain.ErrNoPiece
	}
	if owner != mover {
		return nil, domain.ErrWrongOwner
	}

	promotion = strings.ToLower(strings.TrimSpace(promotion))
	if pos.NeedsPromotion(fromSq, toSq) {
		if promotion == "" {
			return nil, domain.ErrNeedsPromotion
		}
		if !rules.ValidPromotion(promotion) {
			return nil, domain.ErrIllegalMove
		}
	}

	applied, err := pos.Apply(fromSq, toSq, promotion)
	if err != nil {
		return nil, domain.ErrIllegalMove
	}

	g.MovesUCI = append(g.MovesUCI, applied.UCI)
	g.MovesSAN = append(g.MovesSAN, applied.SAN)
	g.FEN = applied.FEN
	g.Turn = applied.Turn
	g.UpdatedAt = time.Now().UTC()
	if applied.Checkmate {
		g.Status = domain.StatusCheckmate
		g.Winner = mover
	}
	if err := m.persist(ctx, "move_apply", g); err != nil {
		return nil, err
	}

	obslog.L().Info("move applied",
		zap.String("game_id", g.ID),
		zap.String("uci", applied.UCI),
		zap.String("san", applied.SAN),
		zap.String("by", string(mover)),
		zap.Bool("checkmate", applied.Checkmate))
	return &MoveResult{
		Game:      g,
		UCI:       applied.UCI,
		SAN:       applied.SAN,
		From:      fromSq.String(),
		To:        toSq.String(),
		Promotion: promotion,
		Piece:     applied.Piece,
		Captured:  applied.Captured,
		Check:     applied.Check,
		Checkmate: applied.Checkmate,
	}, nil
}

// Resign ends an active game in favor of the resigner's opponent. A
// resignation is accepted on either player's turn.
func (m *Machine) Resign(ctx context.Context, gameID string, resigner domain.Color) (*domain.Game, error) {
	l := m.lockFor(gameID)
	l.Lock()
	defer l.Unlock()

	g, err := m.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.Status != domain.StatusActive {
		return nil, domain.ErrNotActive
	}
	g.Status = domain.StatusResigned
	g.Winner = resigner.Opponent()
	g.UpdatedAt = time.Now().UTC()
	if err := m.persist(ctx, "game_resign", g); err != nil {
		return nil, err
	}
	obslog.L().Info("game resigned",
		zap.String("game_id", g.ID),
		zap.String("resigner", string(resigner)),
		zap.String("winner", string(g.Winner)))
	return g, nil
}

// OfferDraw validates that a draw offer is allowed. The offer itself is a
// notification between players and mutates nothing.
func (m *Machine) OfferDraw(ctx context.Context, gameID string, offerer domain.Color) error {
	g, err := m.load(ctx, gameID)
	if err != nil {
		return err
	}
	if g.Status != domain.StatusActive {
		return domain.ErrNotActive
	}
	obslog.L().Info("draw offered",
		zap.String("game_id", g.ID), zap.String("by", string(offerer)))
	return nil
}

// Get loads a game without taking its lock.
func (m *Machine) Get(ctx context.Context, gameID string) (*domain.Game, error) {
	return m.load(ctx, gameID)
}

func (m *Machine) load(ctx context.Context, gameID string) (*domain.Game, error) {
	g, err := m.store.GetGame(ctx, gameID)
	if err != nil {
		obslog.L().Error("store operation failed", zap.String("op", "game_lookup"), zap.Error(err))
		return nil, domain.ErrPersistence
	}
	if g == nil {
		return nil, domain.ErrRoomNotFound
	}
	return g, nil
}

func (m *Machine) persist(ctx context.Context, op string, g *domain.Game) error {
	if err := m.store.UpdateGame(ctx, g); err != nil {
		obslog.L().Error("store operation failed", zap.String("op", op), zap.Error(err))
		return domain.ErrPersistence
	}
	return nil
}
