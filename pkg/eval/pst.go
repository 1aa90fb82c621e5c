package eval

import "github.com/corvid-chess/engine/pkg/board"

// Piece-square tables, indexed [rank][file] from the owning side's own
// perspective (rank 0 = home rank, rank 7 = far rank) so the same table
// serves both colors via Rank.Relative. Values are illustrative, not tuned.

var pstPawnMG = [8][8]Score{
	{0, 0, 0, 0, 0, 0, 0, 0},
	{5, 10, 10, -20, -20, 10, 10, 5},
	{5, -5, -10, 0, 0, -10, -5, 5},
	{0, 0, 0, 20, 20, 0, 0, 0},
	{5, 5, 10, 25, 25, 10, 5, 5},
	{10, 10, 20, 30, 30, 20, 10, 10},
	{50, 50, 50, 50, 50, 50, 50, 50},
	{0, 0, 0, 0, 0, 0, 0, 0},
}

var pstPawnEG = [8][8]Score{
	{0, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0},
	{10, 10, 10, 10, 10, 10, 10, 10},
	{20, 20, 20, 20, 20, 20, 20, 20},
	{35, 35, 35, 35, 35, 35, 35, 35},
	{60, 60, 60, 60, 60, 60, 60, 60},
	{90, 90, 90, 90, 90, 90, 90, 90},
	{0, 0, 0, 0, 0, 0, 0, 0},
}

var pstKnight = [8][8]Score{
	{-50, -40, -30, -30, -30, -30, -40, -50},
	{-40, -20, 0, 5, 5, 0, -20, -40},
	{-30, 5, 10, 15, 15, 10, 5, -30},
	{-30, 0, 15, 20, 20, 15, 0, -30},
	{-30, 5, 15, 20, 20, 15, 5, -30},
	{-30, 0, 10, 15, 15, 10, 0, -30},
	{-40, -20, 0, 0, 0, 0, -20, -40},
	{-50, -40, -30, -30, -30, -30, -40, -50},
}

var pstBishop = [8][8]Score{
	{-20, -10, -10, -10, -10, -10, -10, -20},
	{-10, 5, 0, 0, 0, 0, 5, -10},
	{-10, 10, 10, 10, 10, 10, 10, -10},
	{-10, 0, 10, 10, 10, 10, 0, -10},
	{-10, 5, 5, 10, 10, 5, 5, -10},
	{-10, 0, 5, 10, 10, 5, 0, -10},
	{-10, 0, 0, 0, 0, 0, 0, -10},
	{-20, -10, -10, -10, -10, -10, -10, -20},
}

var pstRook = [8][8]Score{
	{0, 0, 0, 5, 5, 0, 0, 0},
	{-5, 0, 0, 0, 0, 0, 0, -5},
	{-5, 0, 0, 0, 0, 0, 0, -5},
	{-5, 0, 0, 0, 0, 0, 0, -5},
	{-5, 0, 0, 0, 0, 0, 0, -5},
	{-5, 0, 0, 0, 0, 0, 0, -5},
	{5, 10, 10, 10, 10, 10, 10, 5},
	{0, 0, 0, 0, 0, 0, 0, 0},
}

var pstQueen = [8][8]Score{
	{-20, -10, -10, -5, -5, -10, -10, -20},
	{-10, 0, 5, 0, 0, 0, 0, -10},
	{-10, 5, 5, 5, 5, 5, 0, -10},
	{0, 0, 5, 5, 5, 5, 0, -5},
	{-5, 0, 5, 5, 5, 5, 0, -5},
	{-10, 0, 5, 5, 5, 5, 0, -10},
	{-10, 0, 0, 0, 0, 0, 0, -10},
	{-20, -10, -10, -5, -5, -10, -10, -20},
}

var pstKingMG = [8][8]Score{
	{20, 30, 10, 0, 0, 10, 30, 20},
	{20, 20, 0, 0, 0, 0, 20, 20},
	{-10, -20, -20, -20, -20, -20, -20, -10},
	{-20, -30, -30, -40, -40, -30, -30, -20},
	{-30, -40, -40, -50, -50, -40, -40, -30},
	{-30, -40, -40, -50, -50, -40, -40, -30},
	{-30, -40, -40, -50, -50, -40, -40, -30},
	{-30, -40, -40, -50, -50, -40, -40, -30},
}

var pstKingEG = [8][8]Score{
	{-50, -30, -30, -30, -30, -30, -30, -50},
	{-30, -30, 0, 0, 0, 0, -30, -30},
	{-30, -10, 20, 30, 30, 20, -10, -30},
	{-30, -10, 30, 40, 40, 30, -10, -30},
	{-30, -10, 30, 40, 40, 30, -10, -30},
	{-30, -10, 20, 30, 30, 20, -10, -30},
	{-30, -20, -10, 0, 0, -10, -20, -30},
	{-50, -40, -30, -20, -20, -30, -40, -50},
}

// pst returns the (mg, eg) piece-square contribution for a piece of kind k,
// color c, on sq.
func pst(k board.PieceKind, sq board.Square, c board.Color) (mg, eg Score) {
	r := int(sq.Rank().Relative(c))
	f := int(sq.File())

	switch k {
	case board.Pawn:
		return pstPawnMG[r][f], pstPawnEG[r][f]
	case board.Knight:
		return pstKnight[r][f], pstKnight[r][f]
	case board.Bishop:
		return pstBishop[r][f], pstBishop[r][f]
	case board.Rook:
		return pstRook[r][f], pstRook[r][f]
	case board.Queen:
		return pstQueen[r][f], pstQueen[r][f]
	case board.King:
		return pstKingMG[r][f], pstKingEG[r][f]
	default:
		return 0, 0
	}
}
