package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/seojin-dev/chessroom/internal/domain"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Adapter wraps the chess rules engine for a single position. It is cheap to
// construct and is rebuilt per call from the stored move list, never shared
// between operations.
type Adapter struct {
	game *nchess.Game
}

func New() *Adapter { return &Adapter{game: nchess.NewGame()} }

// FromFEN builds an adapter from a FEN string. Empty input and the
// "startpos" marker load the standard initial position.
func FromFEN(fen string) (*Adapter, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" || fen == StartFEN {
		return New(), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("load fen: %w", err)
	}
	return &Adapter{game: nchess.NewGame(opt)}, nil
}

// Replay reconstructs a position by applying stored UCI moves from the start
// position. The stored FEN is presentation state; replaying the history is
// the authoritative reconstruction.
func Replay(movesUCI []string) (*Adapter, error) {
	a := New()
	for _, mv := range movesUCI {
		if err := a.game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay %q: %w", mv, err)
		}
	}
	return a, nil
}

func (a *Adapter) FEN() string { return a.game.FEN() }

func (a *Adapter) SideToMove() domain.Color { return colorFrom(a.game.Position().Turn()) }

// ParseSquare converts algebraic square notation ("e4") to an engine square.
func ParseSquare(s string) (nchess.Square, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return 0, false
	}
	f := int(s[0] - 'a')
	r := int(s[1] - '1')
	if f < 0 || f > 7 || r < 0 || r > 7 {
		return 0, false
	}
	return nchess.NewSquare(nchess.File(f), nchess.Rank(r)), true
}

// PieceAt reports the side and piece token occupying a square.
func (a *Adapter) PieceAt(sq nchess.Square) (domain.Color, string, bool) {
	p := a.game.Position().Board().Piece(sq)
	if p == nchess.NoPiece {
		return "", "", false
	}
	return colorFrom(p.Color()), pieceToken(p.Type()), true
}

// NeedsPromotion reports whether the move pushes a pawn onto its last rank
// and therefore cannot be applied without a promotion piece.
func (a *Adapter) NeedsPromotion(from, to nchess.Square) bool {
	p := a.game.Position().Board().Piece(from)
	if p == nchess.NoPiece || p.Type() != nchess.Pawn {
		return false
	}
	if p.Color() == nchess.White {
		return int(to)/8 == 7
	}
	return int(to)/8 == 0
}

// ValidPromotion reports whether the token names a piece a pawn may become.
func ValidPromotion(promotion string) bool {
	switch strings.ToLower(strings.TrimSpace(promotion)) {
	case "q", "r", "b", "n":
		return true
	}
	return false
}

// Applied is the result of a successfully pushed move.
type Applied struct {
	UCI       string
	SAN       string
	Piece     string
	Captured  string
	Check     bool
	Checkmate bool
	FEN       string
	Turn      domain.Color
}

// Apply decodes a from/to(/promotion) move against the current position and
// pushes it. Decode failure means the move is illegal in this position;
// legality (check safety, castling, en passant, promotion requirement) is
// entirely the engine's verdict. Exactly one attempt is made: a promotion
// move submitted without a promotion piece fails here, it is never retried.
func (a *Adapter) Apply(from, to nchess.Square, promotion string) (*Applied, error) {
	pos := a.game.Position()
	uci := from.String() + to.String() + strings.ToLower(strings.TrimSpace(promotion))
	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", uci, err)
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	mover := pos.Board().Piece(from)

	captured := ""
	if mv.HasTag(nchess.EnPassant) {
		captured = "p"
	} else if mv.HasTag(nchess.Capture) {
		if cp := pos.Board().Piece(to); cp != nchess.NoPiece {
			captured = pieceToken(cp.Type())
		}
	}

	a.game.Move(mv, nil)
	return &Applied{
		UCI:       uci,
		SAN:       san,
		Piece:     pieceToken(mover.Type()),
		Captured:  captured,
		Check:     mv.HasTag(nchess.Check),
		Checkmate: a.game.Method() == nchess.Checkmate,
		FEN:       a.game.FEN(),
		Turn:      colorFrom(a.game.Position().Turn()),
	}, nil
}

// LegalMovesFrom lists the legal moves from a square in UCI notation.
func (a *Adapter) LegalMovesFrom(from nchess.Square) []string {
	var out []string
	for _, mv := range a.game.ValidMoves() {
		if mv.S1() == from {
			out = append(out, mv.String())
		}
	}
	return out
}

// InCheck reports whether the side to move is currently in check.
func (a *Adapter) InCheck() bool {
	moves := a.game.Moves()
	if len(moves) == 0 {
		return false
	}
	return moves[len(moves)-1].HasTag(nchess.Check)
}

func pieceToken(pt nchess.PieceType) string {
	switch pt {
	case nchess.King:
		return "k"
	case nchess.Queen:
		return "q"
	case nchess.Rook:
		return "r"
	case nchess.Bishop:
		return "b"
	case nchess.Knight:
		return "n"
	case nchess.Pawn:
		return "p"
	}
	return ""
}

func colorFrom(c nchess.Color) domain.Color {
	if c == nchess.White {
		return domain.White
	}
	return domain.Black
}
