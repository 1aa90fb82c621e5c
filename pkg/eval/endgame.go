package eval

import "github.com/corvid-chess/engine/pkg/board"

// endgameMaterialThreshold gates the knowledge hooks below (C14): they only
// fire once total non-pawn, non-king material for both sides is at most
// 1300 centipawns, a lower gate than the original engine's
// "totalMaterial < 2000" on its own king-centralization term.
const endgameMaterialThreshold = 1300

// nonPawnMaterial sums material for every piece except pawns and kings.
func nonPawnMaterial(b *board.Board) Score {
	var total Score
	for c := board.ZeroColor; c < board.NumColors; c++ {
		for k := board.Knight; k < board.King; k++ {
			total += Score(b.Pieces(c, k).PopCount()) * NominalValue(k)
		}
	}
	return total
}

// kingActivity rewards a centralized king once material has thinned out
// enough that king safety no longer dominates and the king becomes an
// attacking piece, per §4.14's "King activity" hook.
func kingActivity(b *board.Board, c board.Color) Score {
	king := b.Pieces(c, board.King)
	if king == 0 {
		return 0
	}
	sq := king.LSB()
	return Score(7-centerDistance(sq)) * 5
}

// centerDistance is the Chebyshev distance from sq to the nearest of the
// board's four center squares, following the original evaluator's
// max(|file-3.5|, |rank-3.5|) measure but doubled to stay in integer ranks.
func centerDistance(sq board.Square) int {
	df := 2*int(sq.File()) - 7
	if df < 0 {
		df = -df
	}
	dr := 2*int(sq.Rank()) - 7
	if dr < 0 {
		dr = -dr
	}
	d := df
	if dr > d {
		d = dr
	}
	return d / 2
}

// kpkBonus implements the K+P-K rule-of-the-square heuristic (§4.14): when
// exactly one pawn and the two kings remain, a pawn whose queening square
// the defending king cannot reach in time is worth most of a queen, since no
// search depth is needed to know it promotes.
func kpkBonus(b *board.Board, c board.Color) Score {
	if nonPawnMaterial(b) != 0 {
		return 0
	}
	pawns := b.Pieces(c, board.Pawn)
	opp := c.Opponent()
	if pawns.PopCount() != 1 || b.Pieces(opp, board.Pawn) != 0 {
		return 0
	}

	pawnSq := pawns.LSB()
	defenderKing := b.Pieces(opp, board.King).LSB()
	if kingCatchesPawn(defenderKing, pawnSq, c, b.Turn()) {
		return 0
	}
	return 700 // just short of a new queen, since promotion still costs a ply
}

// kingCatchesPawn applies the rule of the square: draw a square with the
// pawn at one corner and its queening square at the opposite corner; the
// defending king catches the pawn iff it stands inside that square. Whoever
// is on the move gets the tempo, so the square shrinks by one rank towards
// the defender when it is the pawn's side to move.
func kingCatchesPawn(king, pawn board.Square, pawnColor, sideToMove board.Color) bool {
	promotionRank := board.PromotionRankOf(pawnColor)
	dist := int(promotionRank) - int(pawn.Rank())
	if dist < 0 {
		dist = -dist
	}
	if sideToMove == pawnColor {
		dist-- // the pawn's side moves first, costing the defender a tempo
	}
	if dist < 0 {
		dist = 0
	}

	fileLo, fileHi := int(pawn.File())-dist, int(pawn.File())+dist
	kf := int(king.File())
	if kf < fileLo || kf > fileHi {
		return false
	}

	dr := int(king.Rank()) - int(promotionRank)
	if dr < 0 {
		dr = -dr
	}
	return dr <= dist
}

// opposition reports which color, if either, currently holds direct
// opposition: the kings face each other on the same file or rank separated
// by exactly one square. The side NOT to move holds it, since the side to
// move must concede ground (§4.14).
func opposition(b *board.Board) (board.Color, bool) {
	wk := b.Pieces(board.White, board.King).LSB()
	bk := b.Pieces(board.Black, board.King).LSB()

	df := int(wk.File()) - int(bk.File())
	dr := int(wk.Rank()) - int(bk.Rank())
	direct := (df == 0 && (dr == 2 || dr == -2)) || (dr == 0 && (df == 2 || df == -2))
	if !direct {
		return board.ZeroColor, false
	}
	return b.Turn().Opponent(), true
}

// oppositionBonus is added to the side holding direct opposition whenever
// the endgame hooks are active (see endgameMaterialThreshold), since the
// opponent is the one who must eventually step aside.
const oppositionBonus = 15
