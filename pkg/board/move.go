package board

import "fmt"

// MoveKind indicates the kind of move, used both to drive make/unmake and to
// classify moves for search heuristics. The no-progress (50-move) counter is
// reset by any Capture, EPCapture, PromoQuiet, PromoCapture or pawn push.
type MoveKind uint8

const (
	Quiet MoveKind = iota
	DoublePush        // pawn two-square push; sets en passant target
	KingCastle
	QueenCastle
	Capture
	EPCapture // en passant capture
	PromoQuiet
	PromoCapture
)

func (k MoveKind) IsCapture() bool {
	return k == Capture || k == EPCapture || k == PromoCapture
}

func (k MoveKind) IsPromotion() bool {
	return k == PromoQuiet || k == PromoCapture
}

func (k MoveKind) IsCastle() bool {
	return k == KingCastle || k == QueenCastle
}

// Move is a packed move representation: 6 bits from, 6 bits to, 3 bits kind,
// 3 bits promotion piece kind (valid only when Kind().IsPromotion()). The
// spec's illustrative 16-bit layout (6+6+2+2) cannot represent 8 move kinds
// and 4 promotion choices simultaneously, so this uses a 32-bit word instead
// -- see DESIGN.md for the open-question resolution. Captured piece is not
// part of the Move; it is recovered from the board (mailbox lookup before
// the destructive make) and recorded in the Undo for unmake, keeping Move
// itself small and comparable with ==.
type Move uint32

const NoMove Move = 0 // a1a1 Quiet is never a legal move, so zero is a safe sentinel

func NewMove(from, to Square, kind MoveKind, promo PieceKind) Move {
	return Move(uint32(from) | uint32(to)<<6 | uint32(kind)<<12 | uint32(promo)<<15)
}

func (m Move) From() Square {
	return Square(m & 0x3f)
}

func (m Move) To() Square {
	return Square((m >> 6) & 0x3f)
}

func (m Move) Kind() MoveKind {
	return MoveKind((m >> 12) & 0x7)
}

// Promo returns the promotion piece kind and true, iff this move is a promotion.
func (m Move) Promo() (PieceKind, bool) {
	if !m.Kind().IsPromotion() {
		return 0, false
	}
	return PieceKind((m >> 15) & 0x7), true
}

func (m Move) IsZero() bool {
	return m == NoMove
}

// ParseMove parses a move in pure algebraic coordinate notation, such as "a2a4"
// or "a7a8q". The parsed move carries only From/To/promotion-piece-letter; it
// is not yet classified as Quiet/Capture/etc. -- that requires board context,
// so callers must match it against board.GenerateLegal output (see movegen.go).
func ParseMove(str string) (from, to Square, promo PieceKind, hasPromo bool, err error) {
	runes := []rune(str)
	if len(runes) < 4 || len(runes) > 5 {
		return 0, 0, 0, false, fmt.Errorf("invalid move: %q", str)
	}

	from, err = ParseSquare(runes[0], runes[1])
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("invalid from: %q: %w", str, err)
	}
	to, err = ParseSquare(runes[2], runes[3])
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("invalid to: %q: %w", str, err)
	}

	if len(runes) == 5 {
		p, ok := ParsePieceKind(runes[4])
		if !ok || p == Pawn || p == King {
			return 0, 0, 0, false, fmt.Errorf("invalid promotion: %q", str)
		}
		return from, to, p, true, nil
	}
	return from, to, 0, false, nil
}

// Matches reports whether this legal move corresponds to the given UCI from/to/promo triple.
func (m Move) Matches(from, to Square, promo PieceKind, hasPromo bool) bool {
	if m.From() != from || m.To() != to {
		return false
	}
	p, ok := m.Promo()
	if hasPromo != ok {
		return false
	}
	return !hasPromo || p == promo
}

func (m Move) String() string {
	if promo, ok := m.Promo(); ok {
		return fmt.Sprintf("%v%v%v", m.From(), m.To(), promo)
	}
	return fmt.Sprintf("%v%v", m.From(), m.To())
}
