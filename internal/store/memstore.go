package store

import (
	"context"
	"strings"
	"sync"

	"github.com/seojin-dev/chessroom/internal/domain"
)

// memstore is the in-memory Store used for development and tests, and the
// fallback when no backend is configured. Values are copied on the way in
// and out so callers never share record memory.
type memstore struct {
	mu sync.RWMutex

	rooms      map[string]*domain.Room
	roomByCode map[string]string
	games      map[string]*domain.Game
	gameByRoom map[string]string
	chat       map[string][]*domain.ChatMessage
}

func NewMemory() Store {
	return &memstore{
		rooms:      make(map[string]*domain.Room),
		roomByCode: make(map[string]string),
		games:      make(map[string]*domain.Game),
		gameByRoom: make(map[string]string),
		chat:       make(map[string][]*domain.ChatMessage),
	}
}

func (m *memstore) CreateRoom(ctx context.Context, room *domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *room
	m.rooms[room.ID] = &cp
	m.roomByCode[strings.ToUpper(room.Code)] = room.ID
	return nil
}

func (m *memstore) GetRoom(ctx context.Context, id string) (*domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memstore) GetRoomByCode(ctx context.Context, code string) (*domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.roomByCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, nil
	}
	r, ok := m.rooms[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memstore) UpdateRoom(ctx context.Context, room *domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *room
	m.rooms[room.ID] = &cp
	return nil
}

func (m *memstore) CreateGame(ctx context.Context, game *domain.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := copyGame(game)
	m.games[game.ID] = cp
	m.gameByRoom[game.RoomID] = game.ID
	return nil
}

func (m *memstore) GetGame(ctx context.Context, id string) (*domain.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	return copyGame(g), nil
}

func (m *memstore) GetGameByRoom(ctx context.Context, roomID string) (*domain.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.gameByRoom[roomID]
	if !ok {
		return nil, nil
	}
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	return copyGame(g), nil
}

func (m *memstore) UpdateGame(ctx context.Context, game *domain.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[game.ID] = copyGame(game)
	return nil
}

func (m *memstore) AppendChat(ctx context.Context, msg *domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.chat[msg.RoomID] = append(m.chat[msg.RoomID], &cp)
	return nil
}

func (m *memstore) ChatHistory(ctx context.Context, roomID string, limit int) ([]*domain.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.chat[roomID]
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	out := make([]*domain.ChatMessage, 0, len(list))
	for _, c := range list {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memstore) Close() error { return nil }

func copyGame(g *domain.Game) *domain.Game {
	cp := *g
	cp.MovesUCI = append([]string(nil), g.MovesUCI...)
	cp.MovesSAN = append([]string(nil), g.MovesSAN...)
	return &cp
}
