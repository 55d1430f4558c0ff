package domain

import "time"

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Status represents a game lifecycle state.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCheckmate Status = "checkmate"
	StatusResigned  Status = "resigned"
	StatusDraw      Status = "draw"
)

// Terminal reports whether no further mutation of the game is permitted.
func (s Status) Terminal() bool {
	return s == StatusCheckmate || s == StatusResigned || s == StatusDraw
}

// Room is the persisted pairing record. A room holds at most two seats;
// seat 1 is always white, seat 2 always black.
type Room struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Player1ID string    `json:"player1_id,omitempty"`
	Player2ID string    `json:"player2_id,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Game is the authoritative state of a match, paired 1:1 with a room.
// FEN and Turn are always the position reachable by replaying MovesUCI
// from the start position.
type Game struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	FEN       string    `json:"fen"`
	MovesUCI  []string  `json:"moves_uci"`
	MovesSAN  []string  `json:"moves_san"`
	Turn      Color     `json:"turn"`
	Status    Status    `json:"status"`
	Winner    Color     `json:"winner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is an append-only chat row scoped to a room.
type ChatMessage struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"room_id"`
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}
