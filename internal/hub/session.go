package hub

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/seojin-dev/chessroom/internal/domain"
)

// Conn is the transport half of a client connection. The dispatcher only
// ever writes events and closes; reading stays in the transport layer.
type Conn interface {
	Send(ctx context.Context, v any) error
	Close(reason string)
}

// Session is the server-side identity of one connection: a generated
// player id plus, once the player creates or joins a room, the room
// binding. Seat 1 plays white, seat 2 plays black.
type Session struct {
	Conn     Conn
	PlayerID string
	Name     string
	RoomID   string
	GameID   string
	Seat     int
	Color    domain.Color
}

// Bound reports whether the session has a room binding.
func (s *Session) Bound() bool { return s != nil && s.RoomID != "" }

// SessionManager tracks live sessions keyed by connection. It is handed
// to the dispatcher as a collaborator; nothing in the protocol path
// touches package-level state.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[Conn]*Session
	byRoom   map[string]map[Conn]*Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[Conn]*Session),
		byRoom:   make(map[string]map[Conn]*Session),
	}
}

// Attach registers a connection and mints its player id.
func (m *SessionManager) Attach(conn Conn) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Session{Conn: conn, PlayerID: uuid.NewString()}
	m.sessions[conn] = s
	return s
}

func (m *SessionManager) Get(conn Conn) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[conn]
}

// BindToRoom ties the session to a room and seat. Rebinding to the same
// room is a no-op; a session already bound elsewhere is rejected.
func (m *SessionManager) BindToRoom(conn Conn, roomID, gameID, name string, seat int) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[conn]
	if !ok {
		return nil, domain.ErrNotInRoom
	}
	if s.RoomID != "" && s.RoomID != roomID {
		return nil, domain.ErrAlreadyInRoom
	}
	s.RoomID = roomID
	s.GameID = gameID
	s.Name = name
	s.Seat = seat
	if seat == 1 {
		s.Color = domain.White
	} else {
		s.Color = domain.Black
	}
	room, ok := m.byRoom[roomID]
	if !ok {
		room = make(map[Conn]*Session)
		m.byRoom[roomID] = room
	}
	room[conn] = s
	return s, nil
}

// Detach removes the connection and returns its last session state, or
// nil if it was never attached.
func (m *SessionManager) Detach(conn Conn) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[conn]
	if !ok {
		return nil
	}
	delete(m.sessions, conn)
	if s.RoomID != "" {
		if room, ok := m.byRoom[s.RoomID]; ok {
			delete(room, conn)
			if len(room) == 0 {
				delete(m.byRoom, s.RoomID)
			}
		}
	}
	return s
}

// SessionsInRoom snapshots the sessions currently bound to a room.
func (m *SessionManager) SessionsInRoom(roomID string) []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room := m.byRoom[roomID]
	out := make([]*Session, 0, len(room))
	for _, s := range room {
		out = append(out, s)
	}
	return out
}
