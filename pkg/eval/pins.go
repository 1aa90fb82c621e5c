package eval

import "github.com/corvid-chess/engine/pkg/board"

// Pin represents an absolute or relative pin: attacker and pinned belong to
// opposing sides; target is the piece (often the king) behind the pinned
// piece along the same ray.
type Pin struct {
	Attacker, Pinned, Target board.Square
}

// FindPins returns all pins along ranks/files/diagonals targeting side's
// pieces of the given kind (typically King, for king-safety scoring).
func FindPins(b *board.Board, side board.Color, kind board.PieceKind) []Pin {
	var pins []Pin
	occ := b.Occupied()
	opp := side.Opponent()

	targets := b.Pieces(side, kind)
	for targets != 0 {
		var target board.Square
		target, targets = targets.PopLSB()

		pins = append(pins, findRayPins(b, target, side, opp, occ, board.RookAttacks, board.Rook)...)
		pins = append(pins, findRayPins(b, target, side, opp, occ, board.BishopAttacks, board.Bishop)...)
	}
	return pins
}

func findRayPins(b *board.Board, target board.Square, side, opp board.Color, occ board.Bitboard, rayFn func(board.Square, board.Bitboard) board.Bitboard, slider board.PieceKind) []Pin {
	var pins []Pin

	rays := rayFn(target, occ)
	candidates := rays & b.OccupiedBy(side)
	for candidates != 0 {
		var pinned board.Square
		pinned, candidates = candidates.PopLSB()

		beyond := rayFn(target, occ&^board.BitMask(pinned)) &^ rays & (b.Pieces(opp, slider) | b.Pieces(opp, board.Queen))
		if beyond != 0 {
			pins = append(pins, Pin{Attacker: beyond.LSB(), Pinned: pinned, Target: target})
		}
	}
	return pins
}
