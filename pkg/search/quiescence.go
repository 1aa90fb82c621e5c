package search

import (
	"github.com/corvid-chess/engine/pkg/board"
	"github.com/corvid-chess/engine/pkg/eval"
)

// seeMargin is the SEE pruning threshold in quiescence, widening slightly
// with ply so tactics close to the horizon are resolved more generously.
func seeMargin(ply int) eval.Score {
	return eval.Score(ply)
}

// quiesce resolves hanging tactics by searching only captures until the
// position is "quiet". Fail-hard: the return value is always within
// [alpha, beta].
func (w *worker) quiesce(b *board.Board, alpha, beta eval.Score, ply int) eval.Score {
	if w.shouldStop() {
		return alpha
	}
	if ply > w.selDepth {
		w.selDepth = ply
	}
	w.nodes++

	standPat := w.eval.Evaluate(w.ctx, b)
	if standPat >= beta {
		return beta
	}
	if standPat > alpha {
		alpha = standPat
	}

	captures := b.GenerateCaptures()

	for _, m := range captures {
		victim := b.PieceAt(captureSquare(m))
		gain := eval.NominalValue(victim.Kind())
		if promo, ok := m.Promo(); ok {
			gain += eval.NominalValue(promo) - eval.NominalValue(board.Pawn)
		}

		// Delta pruning: even winning the whole exchange can't reach alpha.
		if standPat+gain+200 < alpha {
			continue
		}
		// SEE pruning: skip captures that lose material beyond the margin.
		if see(b, m) < -seeMargin(ply) {
			continue
		}

		b.Make(m)
		score := -w.quiesce(b, -beta, -alpha, ply+1)
		b.Unmake()

		if score >= beta {
			return beta
		}
		if score > alpha {
			alpha = score
		}
	}

	return alpha
}
