package board

// PieceKind represents a chess piece kind without color: Pawn, Knight, Bishop,
// Rook, Queen or King. Used to index the per-color bitboard array Board.bb.
// 3 bits.
type PieceKind uint8

const (
	Pawn PieceKind = iota
	Knight
	Bishop
	Rook
	Queen
	King
)

const NumPieceKinds PieceKind = 6

func ParsePieceKind(r rune) (PieceKind, bool) {
	switch r {
	case 'p', 'P':
		return Pawn, true
	case 'n', 'N':
		return Knight, true
	case 'b', 'B':
		return Bishop, true
	case 'r', 'R':
		return Rook, true
	case 'q', 'Q':
		return Queen, true
	case 'k', 'K':
		return King, true
	default:
		return 0, false
	}
}

func (p PieceKind) IsValid() bool {
	return p < NumPieceKinds
}

func (p PieceKind) String() string {
	switch p {
	case Pawn:
		return "p"
	case Knight:
		return "n"
	case Bishop:
		return "b"
	case Rook:
		return "r"
	case Queen:
		return "q"
	case King:
		return "k"
	default:
		return "?"
	}
}

// Piece represents a coloured piece occupying a mailbox square, or NoPiece for
// an empty square. 4 bits: NoPiece=0, then WhitePawn..WhiteKing=1..6,
// BlackPawn..BlackKing=7..12.
type Piece uint8

const NoPiece Piece = 0

func NewPiece(c Color, k PieceKind) Piece {
	return Piece(1 + int(c)*int(NumPieceKinds) + int(k))
}

func (p Piece) IsEmpty() bool {
	return p == NoPiece
}

// Split returns the color and kind of the piece. ok is false for NoPiece.
func (p Piece) Split() (Color, PieceKind, bool) {
	if p == NoPiece {
		return 0, 0, false
	}
	v := int(p) - 1
	return Color(v / int(NumPieceKinds)), PieceKind(v % int(NumPieceKinds)), true
}

func (p Piece) Kind() PieceKind {
	_, k, _ := p.Split()
	return k
}

func (p Piece) Color() Color {
	c, _, _ := p.Split()
	return c
}

func (p Piece) String() string {
	c, k, ok := p.Split()
	if !ok {
		return "."
	}
	if c == White {
		switch k {
		case Pawn:
			return "P"
		case Knight:
			return "N"
		case Bishop:
			return "B"
		case Rook:
			return "R"
		case Queen:
			return "Q"
		case King:
			return "K"
		}
	}
	return k.String()
}
