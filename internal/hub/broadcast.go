package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/seojin-dev/chessroom/internal/obslog"
)

// Router fans events out to every session in a room. Delivery is best
// effort: a failed send is logged and the remaining recipients still get
// the event. Event ordering per connection follows from the per-game lock
// upstream; the router adds no queueing of its own.
type Router struct {
	sessions *SessionManager
}

func NewRouter(sessions *SessionManager) *Router {
	return &Router{sessions: sessions}
}

// Broadcast sends an event to all sessions in the room, skipping exclude
// when non-nil.
func (r *Router) Broadcast(ctx context.Context, roomID string, event any, exclude Conn) {
	for _, s := range r.sessions.SessionsInRoom(roomID) {
		if exclude != nil && s.Conn == exclude {
			continue
		}
		if err := s.Conn.Send(ctx, event); err != nil {
			obslog.L().Warn("broadcast send failed",
				zap.String("room_id", roomID),
				zap.String("player", s.PlayerID),
				zap.Error(err))
		}
	}
}
