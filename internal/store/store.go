package store

import (
	"context"

	"github.com/seojin-dev/chessroom/internal/domain"
)

// Store is the persistence collaborator for rooms, games and chat rows.
// Lookups return (nil, nil) when the record does not exist; callers decide
// which taxonomy error a miss maps to. Implementations provide plain CRUD;
// cross-record consistency (turn checks, terminal-state immutability) is the
// state machine's responsibility, guarded by its per-game lock.
type Store interface {
	CreateRoom(ctx context.Context, room *domain.Room) error
	GetRoom(ctx context.Context, id string) (*domain.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*domain.Room, error)
	UpdateRoom(ctx context.Context, room *domain.Room) error

	CreateGame(ctx context.Context, game *domain.Game) error
	GetGame(ctx context.Context, id string) (*domain.Game, error)
	GetGameByRoom(ctx context.Context, roomID string) (*domain.Game, error)
	UpdateGame(ctx context.Context, game *domain.Game) error

	AppendChat(ctx context.Context, msg *domain.ChatMessage) error
	ChatHistory(ctx context.Context, roomID string, limit int) ([]*domain.ChatMessage, error)

	Close() error
}
