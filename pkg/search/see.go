package search

import (
	"github.com/corvid-chess/engine/pkg/board"
	"github.com/corvid-chess/engine/pkg/eval"
)

// see computes the static exchange evaluation of m, from the mover's
// perspective, without mutating b. It simulates an alternating capture
// sequence using the least-valuable attacker each turn and returns the
// material swing assuming both sides play optimally, including the option
// to stop capturing ("standing pat") at any point.
//
// Algorithm (§4.13): walk the gain list backwards, each step collapsing
// g[i] to min(g[i], -g[i+1]), i.e. -max(-g[i], g[i+1]) -- the side to
// capture at step i+1 either stops or continues, whichever is better
// for it.
func see(b *board.Board, m board.Move) eval.Score {
	from, to := m.From(), m.To()
	capSq := captureSquare(m)
	occ := b.Occupied()

	target := b.PieceAt(capSq)
	var gains [32]eval.Score
	gains[0] = eval.NominalValue(target.Kind())

	attacker := b.PieceAt(from)
	side := attacker.Color().Opponent()
	occ = occ.Clear(from)
	if capSq != to {
		occ = occ.Clear(capSq)
	}

	n := 1
	attackerValue := eval.NominalValue(attacker.Kind())

	for n < len(gains) {
		sq, kind, ok := leastValuableAttacker(b, side, to, occ)
		if !ok {
			break
		}

		gains[n] = attackerValue - gains[n-1]
		attackerValue = eval.NominalValue(kind)
		occ = occ.Clear(sq)
		side = side.Opponent()
		n++
	}

	for i := n - 1; i > 0; i-- {
		if -gains[i] < gains[i-1] {
			gains[i-1] = -gains[i]
		}
	}
	return gains[0]
}

// leastValuableAttacker finds the cheapest piece of color side attacking sq
// given occupancy occ, re-probing sliding attacks through occ so that
// x-ray attackers revealed by a vacated square are found.
func leastValuableAttacker(b *board.Board, side board.Color, sq board.Square, occ board.Bitboard) (board.Square, board.PieceKind, bool) {
	attackers := b.AttackersOfColor(side, sq, occ) & occ
	if attackers == 0 {
		return 0, 0, false
	}

	for k := board.Pawn; k < board.NumPieceKinds; k++ {
		bb := b.Pieces(side, k) & attackers
		if bb != 0 {
			return bb.LSB(), k, true
		}
	}
	return 0, 0, false
}
