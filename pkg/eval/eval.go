// Package eval contains static position evaluation.
package eval

import (
	"context"

	"github.com/corvid-chess/engine/pkg/board"
)

// Evaluator is a static position evaluator, returning centipawns from the
// side-to-move's perspective.
type Evaluator interface {
	Evaluate(ctx context.Context, b *board.Board) Score
}

// NominalValue is the material value of a piece kind, used by move ordering
// (MVV-LVA) and SEE in addition to full evaluation.
func NominalValue(k board.PieceKind) Score {
	switch k {
	case board.Pawn:
		return 100
	case board.Knight:
		return 320
	case board.Bishop:
		return 330
	case board.Rook:
		return 500
	case board.Queen:
		return 900
	case board.King:
		return 20000
	default:
		return 0
	}
}

// phaseWeight is the game-phase contribution of each piece kind; pawns and
// kings do not count towards the non-pawn material phase (§4.6).
func phaseWeight(k board.PieceKind) int {
	switch k {
	case board.Knight, board.Bishop:
		return 1
	case board.Rook:
		return 2
	case board.Queen:
		return 4
	default:
		return 0
	}
}

const maxPhase = 24

// Classic is the reference tapered evaluator: material + piece-square
// tables blended by game phase, plus pawn structure, king safety, mobility
// and a handful of positional terms.
type Classic struct{}

func (Classic) Evaluate(ctx context.Context, b *board.Board) Score {
	if b.HasInsufficientMaterial() {
		return 0
	}

	var mg, eg [board.NumColors]Score
	phase := 0

	for c := board.ZeroColor; c < board.NumColors; c++ {
		for k := board.Pawn; k < board.NumPieceKinds; k++ {
			bb := b.Pieces(c, k)
			count := bb.PopCount()
			phase += count * phaseWeight(k)

			pieces := bb
			for pieces != 0 {
				var sq board.Square
				sq, pieces = pieces.PopLSB()
				m, e := pst(k, sq, c)
				mg[c] += NominalValue(k) + m
				eg[c] += NominalValue(k) + e
			}
		}

		mg[c] += mobility(b, c)
		eg[c] += mobility(b, c)

		mg[c] += pawnStructure(b, c, true)
		eg[c] += pawnStructure(b, c, false)

		if b.Pieces(c, board.Bishop).PopCount() >= 2 {
			mg[c] += 50
			eg[c] += 50
		}

		mg[c] += rookFiles(b, c)
		eg[c] += rookFiles(b, c) / 2

		mg[c] += centerControl(b, c)

		mg[c] += kingSafety(b, c)

		mg[c] -= hangingPenalty(b, c)
		eg[c] -= hangingPenalty(b, c)

		mg[c] -= pinPenalty(b, c)
		eg[c] -= pinPenalty(b, c)
	}

	if phase > maxPhase {
		phase = maxPhase
	}

	if nonPawnMaterial(b) <= endgameMaterialThreshold {
		for c := board.ZeroColor; c < board.NumColors; c++ {
			eg[c] += kingActivity(b, c)
			eg[c] += kpkBonus(b, c)
		}
		if holder, ok := opposition(b); ok {
			eg[holder] += oppositionBonus
		}
	}

	white := (mg[board.White]-mg[board.Black])*Score(phase) + (eg[board.White]-eg[board.Black])*Score(maxPhase-phase)
	score := white / maxPhase

	if b.Turn() == board.Black {
		score = -score
	}
	score += 10 * Score(phase) / maxPhase // tempo bonus for side to move, MG-only

	return Crop(score)
}

// mobilityWeight is centipawns per reachable square, indexed by PieceKind;
// zero for kinds that don't score mobility (Pawn, King).
var mobilityWeight = [board.NumPieceKinds]Score{board.Knight: 4, board.Bishop: 3, board.Rook: 2, board.Queen: 1}

func mobility(b *board.Board, c board.Color) Score {
	occ := b.Occupied()

	var total Score
	for _, k := range [...]board.PieceKind{board.Knight, board.Bishop, board.Rook, board.Queen} {
		w := mobilityWeight[k]
		pieces := b.Pieces(c, k)
		for pieces != 0 {
			var sq board.Square
			sq, pieces = pieces.PopLSB()
			moves := board.Attacks(k, sq, occ) &^ b.OccupiedBy(c)
			total += Score(moves.PopCount()) * w
		}
	}
	return total
}

func pawnStructure(b *board.Board, c board.Color, midgame bool) Score {
	pawns := b.Pieces(c, board.Pawn)
	var score Score

	for f := board.ZeroFile; f < board.NumFiles; f++ {
		onFile := pawns & board.BitFile(f)
		n := onFile.PopCount()
		if n > 1 {
			score -= Score(n-1) * 20
		}
		if n > 0 {
			adjacent := board.EmptyBitboard
			if f > board.ZeroFile {
				adjacent |= pawns & board.BitFile(f - 1)
			}
			if f < board.FileH {
				adjacent |= pawns & board.BitFile(f + 1)
			}
			if adjacent == 0 {
				score -= Score(n) * 30
			}
		}
	}

	opp := b.Pieces(c.Opponent(), board.Pawn)
	p := pawns
	for p != 0 {
		var sq board.Square
		sq, p = p.PopLSB()
		if isPassed(sq, c, opp) {
			rank := sq.Rank().Relative(c)
			bonus := Score(int(rank)*20 + 10)
			if !midgame {
				bonus += bonus / 2
			}
			score += bonus
		}
	}

	return score
}

// isPassed reports whether the pawn on sq (color c) has no opposing pawn on
// its own or adjacent files ahead of it.
func isPassed(sq board.Square, c board.Color, oppPawns board.Bitboard) bool {
	f := sq.File()
	var files board.Bitboard
	files |= board.BitFile(f)
	if f > board.ZeroFile {
		files |= board.BitFile(f - 1)
	}
	if f < board.FileH {
		files |= board.BitFile(f + 1)
	}

	var ahead board.Bitboard
	if c == board.White {
		for r := int(sq.Rank()) + 1; r <= int(board.Rank8); r++ {
			ahead |= board.BitRank(board.Rank(r))
		}
	} else {
		for r := int(sq.Rank()) - 1; r >= int(board.Rank1); r-- {
			ahead |= board.BitRank(board.Rank(r))
		}
	}

	return oppPawns&files&ahead == 0
}

func rookFiles(b *board.Board, c board.Color) Score {
	rooks := b.Pieces(c, board.Rook)
	ownPawns := b.Pieces(c, board.Pawn)
	oppPawns := b.Pieces(c.Opponent(), board.Pawn)

	var score Score
	for rooks != 0 {
		var sq board.Square
		sq, rooks = rooks.PopLSB()
		file := board.BitFile(sq.File())
		switch {
		case ownPawns&file == 0 && oppPawns&file == 0:
			score += 20
		case ownPawns&file == 0:
			score += 10
		}
	}
	return score
}

func centerControl(b *board.Board, c board.Color) Score {
	center := board.BitMask(board.D4) | board.BitMask(board.E4) | board.BitMask(board.D5) | board.BitMask(board.E5)
	count := 0
	for k := board.Pawn; k < board.NumPieceKinds; k++ {
		count += (b.Pieces(c, k) & center).PopCount()
	}
	return Score(count) * 30
}

// kingAttackerWeight is the king-safety penalty per nearby enemy piece,
// indexed by PieceKind; zero for kinds that don't contribute (Pawn, King).
var kingAttackerWeight = [board.NumPieceKinds]Score{board.Queen: 50, board.Rook: 30, board.Knight: 25, board.Bishop: 20}

func kingSafety(b *board.Board, c board.Color) Score {
	king := b.Pieces(c, board.King)
	if king == 0 {
		return 0
	}
	sq := king.LSB()
	own := b.Pieces(c, board.Pawn)

	var score Score
	shield := board.KingAttacks(sq) | board.BitMask(sq)
	score += Score((shield & own).PopCount()) * 30

	for _, f := range adjacentFiles(sq.File()) {
		if own&board.BitFile(f) == 0 {
			score -= 20
		}
	}

	opp := c.Opponent()
	for _, k := range [...]board.PieceKind{board.Queen, board.Rook, board.Knight, board.Bishop} {
		w := kingAttackerWeight[k]
		pieces := b.Pieces(opp, k)
		for pieces != 0 {
			var psq board.Square
			psq, pieces = pieces.PopLSB()
			if chebyshev(sq, psq) <= 2 {
				score -= w
			}
		}
	}

	castledSq := board.NewSquare(board.FileG, board.Rank1.Relative(c))
	castledSqQ := board.NewSquare(board.FileC, board.Rank1.Relative(c))
	if sq == castledSq || sq == castledSqQ {
		score += 50
	}

	return score
}

func adjacentFiles(f board.File) []board.File {
	var files []board.File
	if f > board.ZeroFile {
		files = append(files, f-1)
	}
	files = append(files, f)
	if f < board.FileH {
		files = append(files, f+1)
	}
	return files
}

func chebyshev(a, b board.Square) int {
	df := int(a.File()) - int(b.File())
	if df < 0 {
		df = -df
	}
	dr := int(a.Rank()) - int(b.Rank())
	if dr < 0 {
		dr = -dr
	}
	if df > dr {
		return df
	}
	return dr
}

func hangingPenalty(b *board.Board, c board.Color) Score {
	var total Score
	for _, sq := range FindHanging(b, c) {
		k := b.PieceAt(sq).Kind()
		total += Score(float64(NominalValue(k)) * 0.8)
	}
	return total
}

// pinPenalty scores pieces of c pinned to its own king: every pinned piece
// costs a quarter of its nominal value, whatever the attacker pinning it,
// since it cannot move off the pin ray without exposing the king.
func pinPenalty(b *board.Board, c board.Color) Score {
	var total Score
	for _, pin := range FindPins(b, c, board.King) {
		pinned := b.PieceAt(pin.Pinned).Kind()
		total += Score(float64(NominalValue(pinned)) * 0.25)
	}
	return total
}
