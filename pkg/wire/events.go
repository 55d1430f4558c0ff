package wire

import "time"

// Server → client event types.
const (
	TypeConnected   = "connected"
	TypeRoomCreated = "room_created"
	TypeRoomJoined  = "room_joined"
	TypeGameStarted = "game_started"
	TypeMoveMade    = "move_made"
	TypeChatMessage = "chat_message"
	TypeGameEnded   = "game_ended"
	TypeDrawOffered = "draw_offered"
	TypePlayerLeft  = "player_left"
	TypeError       = "error"
)

// GameState is the post-operation snapshot attached to state-changing events.
// Draw and Stalemate are always false: non-checkmate terminal chess positions
// do not end a game automatically, only resignation does.
type GameState struct {
	FEN         string   `json:"fen"`
	CurrentTurn string   `json:"currentTurn"`
	MoveHistory []string `json:"moveHistory"`
	Status      string   `json:"status"`
	Winner      *string  `json:"winner"`
	Check       bool     `json:"check"`
	Checkmate   bool     `json:"checkmate"`
	Draw        bool     `json:"draw"`
	Stalemate   bool     `json:"stalemate"`
	Turn        string   `json:"turn"`
	GameOver    bool     `json:"gameOver"`
}

// Move describes a single applied move.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san"`
	Piece     string `json:"piece"`
	Captured  string `json:"captured,omitempty"`
}

// ChatMessage is the wire form of a persisted chat row.
type ChatMessage struct {
	ID         string    `json:"id"`
	PlayerName string    `json:"playerName"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Connected struct {
	Type string `json:"type"`
}

type RoomCreated struct {
	Type      string     `json:"type"`
	RoomCode  string     `json:"roomCode"`
	RoomID    string     `json:"roomId"`
	Color     string     `json:"color"`
	GameState *GameState `json:"gameState"`
}

type RoomJoined struct {
	Type         string        `json:"type"`
	RoomCode     string        `json:"roomCode"`
	RoomID       string        `json:"roomId"`
	Color        string        `json:"color"`
	GameState    *GameState    `json:"gameState"`
	ChatMessages []ChatMessage `json:"chatMessages"`
}

type GameStarted struct {
	Type      string     `json:"type"`
	GameState *GameState `json:"gameState"`
}

type MoveMade struct {
	Type      string     `json:"type"`
	Move      Move       `json:"move"`
	GameState *GameState `json:"gameState"`
}

type ChatEvent struct {
	Type    string      `json:"type"`
	Message ChatMessage `json:"message"`
}

type GameEnded struct {
	Type           string `json:"type"`
	Reason         string `json:"reason"`
	Winner         string `json:"winner"`
	ResignedPlayer string `json:"resignedPlayer"`
}

type DrawOffered struct {
	Type      string `json:"type"`
	OfferedBy string `json:"offeredBy"`
}

type PlayerLeft struct {
	Type  string `json:"type"`
	Color string `json:"color"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
