package room

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seojin-dev/chessroom/internal/domain"
	"github.com/seojin-dev/chessroom/internal/obslog"
	"github.com/seojin-dev/chessroom/internal/rules"
	"github.com/seojin-dev/chessroom/internal/store"
)

const (
	codeLetters  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
	codeMaxTries = 5
)

// Registry owns room lifecycle: code allocation, lookup, seat assignment
// and deactivation. Every room is created with its paired game record so
// a joiner always finds a game to start.
//
// Room mutations are read-modify-write against plain CRUD stores, so the
// registry serializes them itself: code allocation under one mutex, and
// each room's seat/state updates under a per-room mutex, the same policy
// the game state machine applies to game records.
type Registry struct {
	store store.Store

	alloc sync.Mutex

	mu    sync.Mutex
	rooms map[string]*sync.Mutex
}

func NewRegistry(s store.Store) *Registry {
	return &Registry{store: s, rooms: make(map[string]*sync.Mutex)}
}

func (r *Registry) lockFor(roomID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rooms[roomID]
	if !ok {
		l = &sync.Mutex{}
		r.rooms[roomID] = l
	}
	return l
}

// CreateRoom allocates a fresh room with a unique join code, seats the
// creator as player 1 (white), and creates the paired waiting game. The
// generate-check-create sequence runs under the allocation lock so two
// concurrent creators cannot claim the same code.
func (r *Registry) CreateRoom(ctx context.Context, creatorID string) (*domain.Room, *domain.Game, error) {
	r.alloc.Lock()
	defer r.alloc.Unlock()

	var code string
	for i := 0; i < codeMaxTries; i++ {
		c, err := generateCode()
		if err != nil {
			return nil, nil, fmt.Errorf("generate code: %w", err)
		}
		existing, err := r.store.GetRoomByCode(ctx, c)
		if err != nil {
			return nil, nil, r.persistErr("room_code_lookup", err)
		}
		if existing == nil {
			code = c
			break
		}
	}
	if code == "" {
		return nil, nil, fmt.Errorf("room code space exhausted after %d attempts", codeMaxTries)
	}

	now := time.Now().UTC()
	room := &domain.Room{
		ID:        uuid.NewString(),
		Code:      code,
		Player1ID: creatorID,
		IsActive:  true,
		CreatedAt: now,
	}
	if err := r.store.CreateRoom(ctx, room); err != nil {
		return nil, nil, r.persistErr("room_create", err)
	}

	game := &domain.Game{
		ID:        uuid.NewString(),
		RoomID:    room.ID,
		FEN:       rules.StartFEN,
		Turn:      domain.White,
		Status:    domain.StatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.CreateGame(ctx, game); err != nil {
		return nil, nil, r.persistErr("game_create", err)
	}

	obslog.L().Info("room created",
		zap.String("room_id", room.ID),
		zap.String("code", room.Code),
		zap.String("player1", creatorID))
	return room, game, nil
}

// FindByCode resolves a join code. Codes are case-insensitive on input
// and stored uppercase.
func (r *Registry) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	room, err := r.store.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, r.persistErr("room_code_lookup", err)
	}
	if room == nil {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// AssignSeat places a player on seat 1 or 2 under the room's lock, so of
// two concurrent joiners exactly one wins the seat and the other gets
// RoomFull. Re-assigning the seat to its current occupant is a no-op.
func (r *Registry) AssignSeat(ctx context.Context, roomID string, seat int, playerID string) (*domain.Room, error) {
	l := r.lockFor(roomID)
	l.Lock()
	defer l.Unlock()

	room, err := r.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, r.persistErr("room_lookup", err)
	}
	if room == nil {
		return nil, domain.ErrRoomNotFound
	}
	switch seat {
	case 1:
		if room.Player1ID != "" && room.Player1ID != playerID {
			return nil, domain.ErrRoomFull
		}
		room.Player1ID = playerID
	case 2:
		if room.Player2ID != "" && room.Player2ID != playerID {
			return nil, domain.ErrRoomFull
		}
		room.Player2ID = playerID
	default:
		return nil, fmt.Errorf("invalid seat %d", seat)
	}
	if err := r.store.UpdateRoom(ctx, room); err != nil {
		return nil, r.persistErr("room_update", err)
	}
	obslog.L().Info("seat assigned",
		zap.String("room_id", room.ID),
		zap.Int("seat", seat),
		zap.String("player", playerID))
	return room, nil
}

// Deactivate marks a room inactive once its last occupant is gone. The
// record itself is kept; deactivating an already-inactive room is a
// no-op.
func (r *Registry) Deactivate(ctx context.Context, roomID string) (*domain.Room, error) {
	l := r.lockFor(roomID)
	l.Lock()
	defer l.Unlock()

	room, err := r.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, r.persistErr("room_lookup", err)
	}
	if room == nil {
		return nil, domain.ErrRoomNotFound
	}
	if !room.IsActive {
		return room, nil
	}
	room.IsActive = false
	if err := r.store.UpdateRoom(ctx, room); err != nil {
		return nil, r.persistErr("room_update", err)
	}
	obslog.L().Info("room deactivated", zap.String("room_id", room.ID))
	return room, nil
}

func (r *Registry) persistErr(op string, err error) error {
	obslog.L().Error("store operation failed", zap.String("op", op), zap.Error(err))
	return domain.ErrPersistence
}

// generateCode draws 6 characters uniformly-enough from A-Z0-9 using
// crypto/rand.
func generateCode() (string, error) {
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = codeLetters[int(b[i])%len(codeLetters)]
	}
	return string(b), nil
}
