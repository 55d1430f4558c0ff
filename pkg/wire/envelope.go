package wire

import "strings"

// Client → server message types.
const (
	TypeCreateRoom = "create_room"
	TypeJoinRoom   = "join_room"
	TypeMakeMove   = "make_move"
	TypeSendChat   = "send_chat"
	TypeResign     = "resign"
	TypeOfferDraw  = "offer_draw"
)

// ClientMessage is the tagged-union envelope for every inbound message.
// Only the fields relevant to Type are expected to be set; validation of
// the shape happens before dispatch.
type ClientMessage struct {
	Type       string `json:"type"`
	PlayerName string `json:"playerName,omitempty"`
	RoomCode   string `json:"roomCode,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	Promotion  string `json:"promotion,omitempty"`
	Message    string `json:"message,omitempty"`
}

// KnownType reports whether the envelope carries a recognized discriminator.
func (m *ClientMessage) KnownType() bool {
	switch strings.TrimSpace(m.Type) {
	case TypeCreateRoom, TypeJoinRoom, TypeMakeMove, TypeSendChat, TypeResign, TypeOfferDraw:
		return true
	}
	return false
}
