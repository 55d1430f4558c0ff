package domain

// Error taxonomy for the session/room protocol. Every error a handler can
// surface to a client maps to exactly one of these sentinels; the dispatcher
// converts them to user-facing text through the message catalog.
var (
	ErrRoomNotFound     = errf("room not found")
	ErrRoomFull         = errf("room already has two players")
	ErrNotInRoom        = errf("connection is not bound to a room")
	ErrAlreadyInRoom    = errf("connection is already bound to a room")
	ErrNotActive        = errf("game is not active")
	ErrOutOfTurn        = errf("not this player's turn")
	ErrNoPiece          = errf("no piece on the source square")
	ErrWrongOwner       = errf("piece belongs to the opponent")
	ErrIllegalMove      = errf("illegal move")
	ErrNeedsPromotion   = errf("move requires a promotion piece")
	ErrMalformedMessage = errf("malformed message")
	ErrPersistence      = errf("storage unavailable")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

func errf(s string) error { return staticErr(s) }
