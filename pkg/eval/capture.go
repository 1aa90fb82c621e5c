package eval

import "github.com/corvid-chess/engine/pkg/board"

// FindHanging returns the pieces of side that are attacked by the opponent
// but not defended by any piece of side's own -- material eval's "hanging
// piece" term uses this as a cheap proxy for tactical danger, without the
// cost of full SEE per piece.
func FindHanging(b *board.Board, side board.Color) []board.Square {
	var hanging []board.Square
	opp := side.Opponent()
	occ := b.Occupied()

	for k := board.Pawn; k < board.NumPieceKinds; k++ {
		pieces := b.Pieces(side, k)
		for pieces != 0 {
			var sq board.Square
			sq, pieces = pieces.PopLSB()

			if b.AttackersOfColor(opp, sq, occ) != 0 && b.AttackersOfColor(side, sq, occ) == 0 {
				hanging = append(hanging, sq)
			}
		}
	}
	return hanging
}
