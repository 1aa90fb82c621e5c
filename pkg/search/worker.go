package search

import (
	"context"

	"github.com/corvid-chess/engine/pkg/board"
	"github.com/corvid-chess/engine/pkg/eval"
	"go.uber.org/atomic"
)

// shared holds the state visible to every Lazy-SMP worker: the transposition
// table, a single stop flag and a global node counter. Per-worker state
// (board, killers, history, counters) is never shared (§5).
type shared struct {
	tt    TranspositionTable
	stop  atomic.Bool
	nodes atomic.Uint64
	age   int
}

// worker runs iterative deepening PVS on its own board and tables, reporting
// into a shared transposition table. A single worker is a complete search
// engine; Lazy-SMP simply runs several concurrently (see Lazy in iterative.go).
type worker struct {
	ctx      context.Context
	id       int
	sh       *shared
	eval     eval.Evaluator
	nodes    uint64
	selDepth int // deepest ply reached this iteration, including quiescence (§6.4 seldepth)

	killers  killerTable
	history  historyTable
	counters counterTable

	// disableNullMove diversifies a minority of Lazy-SMP workers per §4.11.
	disableNullMove bool

	rootPV []board.Move

	// excludeRoot holds root moves already reported by an earlier MultiPV
	// line at the current depth, so the next line searches the rest.
	excludeRoot map[board.Move]bool

	// handle receives this worker's completed-depth PVs, if it is the
	// primary worker (id 0) whose results the caller actually reads.
	handle *lazyHandle
}

func newWorker(ctx context.Context, id int, sh *shared, ev eval.Evaluator) *worker {
	return &worker{ctx: ctx, id: id, sh: sh, eval: ev}
}

func (w *worker) shouldStop() bool {
	return w.sh.stop.Load()
}

const (
	nullMoveMinDepth = 3
	iidMinDepth      = 6
	futilityMaxDepth = 6
	lmpMaxDepth      = 6
	razorMaxDepth    = 3

	multiCutMinDepth = nullMoveMinDepth
	multiCutMaxDepth = 8
	multiCutTries    = 6
	multiCutCutoffs  = 3

	singularMinDepth = 8
)

// search implements §4.10's node algorithm: search(board, depth, alpha, beta,
// ply, isPV) -> score, fail-soft: the result may lie outside [alpha, beta]
// (TT scores and the best move's score are returned as-is). Mate scores encode
// distance-to-mate so that closer mates compare as larger magnitudes.
func (w *worker) search(b *board.Board, depth, ply int, alpha, beta eval.Score, isPV bool) eval.Score {
	if w.shouldStop() {
		return alpha
	}

	if ply > w.selDepth {
		w.selDepth = ply
	}

	if ply > 0 {
		if b.IsFiftyMoveRule() || b.IsThreefoldRepetition() || b.HasInsufficientMaterial() {
			return 0
		}
	}

	if depth <= 0 {
		return w.quiesce(b, alpha, beta, ply)
	}

	w.nodes++
	w.sh.nodes.Inc()

	origAlpha := alpha

	var ttMove board.Move
	var ttScore eval.Score
	var ttDepth int
	var ttBound Bound
	var ttHit bool
	if bound, d, score, move, ok := w.sh.tt.Read(b.Hash()); ok {
		score = scoreFromTT(score, ply)
		ttMove, ttScore, ttDepth, ttBound, ttHit = move, score, d, bound, true
		if !isPV && ttDepth >= depth {
			switch bound {
			case ExactBound:
				return score
			case LowerBound:
				if score >= beta {
					return score
				}
			case UpperBound:
				if score <= alpha {
					return score
				}
			}
		}
	}

	inCheck := b.IsChecked(b.Turn())
	staticEval := w.eval.Evaluate(w.ctx, b)

	if !isPV && !inCheck {
		// Reverse futility / razoring: position is so good (or so bad) that
		// deeper search is very unlikely to change the outcome.
		if depth <= razorMaxDepth && staticEval+razorMargin(depth) < alpha {
			reduced := w.quiesce(b, alpha, beta, ply)
			if reduced <= alpha {
				return reduced
			}
		}
		if depth <= futilityMaxDepth && staticEval-reverseFutilityMargin(depth) >= beta {
			return beta
		}

		// Null-move pruning: give the opponent a free move and see if we
		// still fail high; if so, our position is too good to need a real
		// search here. Skipped when the mover has no non-pawn material
		// (zugzwang risk) or for diversified Lazy-SMP workers.
		if !w.disableNullMove && depth >= nullMoveMinDepth && hasNonPawnMaterial(b, b.Turn()) {
			r := 3 + depth/6
			b.MakeNull()
			score := -w.search(b, depth-1-r, ply+1, -beta, -beta+1, false)
			b.UnmakeNull()

			if score >= beta {
				if depth >= nullMoveMinDepth+3 {
					// Verify at high depth with a reduced, non-null search
					// to guard against zugzwang false positives.
					verify := w.search(b, depth-1-r, ply, beta-1, beta, false)
					if verify >= beta {
						return beta
					}
				} else {
					return beta
				}
			}
		}

		// Multi-cut: a handful of moves searched at reduced depth, enough of
		// which already fail high, stands in for a full search of this node.
		if depth >= multiCutMinDepth && depth <= multiCutMaxDepth {
			if w.multiCut(b, depth, ply, beta) {
				return beta
			}
		}
	}

	if ttMove == board.NoMove && depth >= iidMinDepth {
		w.search(b, depth-2, ply, alpha, beta, isPV)
		if _, _, _, move, ok := w.sh.tt.Read(b.Hash()); ok {
			ttMove = move
		}
	}

	legal := b.GenerateLegal()
	if len(legal) == 0 {
		if inCheck {
			return eval.Mated(ply)
		}
		return 0
	}

	if ply == 0 && len(w.excludeRoot) > 0 {
		legal = excludeMoves(legal, w.excludeRoot)
		if w.excludeRoot[ttMove] {
			ttMove = board.NoMove
		}
		if len(legal) == 0 {
			return alpha
		}
	}

	singular := board.NoMove
	if ttHit && ttMove != board.NoMove && ttBound != UpperBound && depth >= singularMinDepth && ttDepth >= depth-3 {
		if w.isSingular(b, ttMove, ttScore, depth, ply) {
			singular = ttMove
		}
	}

	picker := newMovePicker(b, legal, ttMove, &w.killers, &w.counters, &w.history, ply)

	var best board.Move
	bestScore := eval.NegInf
	moveNum := 0
	extendedThisNode := false

	for {
		m, ok := picker.Next()
		if !ok {
			break
		}
		moveNum++

		quiet := !m.Kind().IsCapture()
		givesCheck := moveGivesCheck(b, m)

		// Futility pruning: a quiet move near the horizon that can't plausibly
		// raise alpha even with the position's static eval as a ceiling.
		if quiet && !isPV && !inCheck && !givesCheck && depth <= futilityMaxDepth && moveNum > 1 {
			if staticEval+futilityMargin(depth) < alpha {
				continue
			}
		}
		// Late-move pruning: skip very late quiets at shallow depth.
		if quiet && !isPV && !inCheck && depth <= lmpMaxDepth && moveNum > lateMoveThreshold(depth) {
			continue
		}
		// History pruning: late quiets with strongly negative history.
		if quiet && !isPV && !inCheck && moveNum > 4 && w.history.get(b.Turn(), m) < -2000 {
			continue
		}

		// Recapture/passed-pawn-push must be judged against the board as it
		// stood before this move: afterwards LastMove() and PieceAt(m.To())
		// would describe m itself, not the position it replies to.
		recapture := isRecapture(b, m)
		passedPush := isPassedPawnPush(b, m)

		b.Make(m)

		extension := 0
		if !extendedThisNode {
			switch {
			case b.IsChecked(b.Turn()):
				extension = 1
			case recapture:
				extension = 1
			case passedPush:
				extension = 1
			case m == singular:
				extension = 1
			}
			if extension > 0 {
				extendedThisNode = true
			}
		}
		newDepth := depth - 1 + extension

		var score eval.Score
		if moveNum == 1 {
			score = -w.search(b, newDepth, ply+1, -beta, -alpha, isPV)
		} else {
			reduction := 0
			if quiet && extension == 0 && moveNum > 3 && depth >= 3 && !inCheck {
				reduction = lmrReduction(depth, moveNum)
			}
			score = -w.search(b, newDepth-reduction, ply+1, -alpha-1, -alpha, false)
			if score > alpha && reduction > 0 {
				score = -w.search(b, newDepth, ply+1, -alpha-1, -alpha, false)
			}
			if score > alpha && score < beta {
				score = -w.search(b, newDepth, ply+1, -beta, -alpha, true)
			}
		}

		b.Unmake()

		if w.shouldStop() {
			return alpha
		}

		if score > bestScore {
			bestScore = score
			best = m
			if ply == 0 {
				w.rootPV = []board.Move{m}
			}
		}
		if score > alpha {
			alpha = score
		}
		if alpha >= beta {
			if quiet {
				w.killers.add(ply, m)
				w.history.add(b.Turn(), m, depth)
				if last, ok := b.LastMove(); ok {
					w.counters.add(last, m)
				}
			}
			break
		}
	}

	// A root search with excluded moves is hunting for the next MultiPV line,
	// not the position's true best move; its result must not overwrite the
	// primary line's TT entry for this hash.
	if !(ply == 0 && len(w.excludeRoot) > 0) {
		bound := ExactBound
		switch {
		case bestScore <= origAlpha:
			bound = UpperBound
		case bestScore >= beta:
			bound = LowerBound
		}
		w.sh.tt.Write(b.Hash(), bound, w.sh.age, depth, scoreToTT(bestScore, ply), best)
	}

	return bestScore
}

func razorMargin(depth int) eval.Score          { return eval.Score(200 + 150*depth) }
func reverseFutilityMargin(depth int) eval.Score { return eval.Score(80 * depth) }
func futilityMargin(depth int) eval.Score        { return eval.Score(100 + 80*depth) }

func lateMoveThreshold(depth int) int {
	return 3 + depth*depth
}

func lmrReduction(depth, moveNum int) int {
	r := 1
	if depth >= 6 && moveNum >= 8 {
		r = 2
	}
	return r
}

// multiCut tries a handful of moves at reduced depth and reports whether
// enough of them independently fail high to justify pruning this node
// without a full search (§4.10 step 4).
func (w *worker) multiCut(b *board.Board, depth, ply int, beta eval.Score) bool {
	legal := b.GenerateLegal()
	if len(legal) == 0 {
		return false
	}

	picker := newMovePicker(b, legal, board.NoMove, &w.killers, &w.counters, &w.history, ply)

	r := 3 + depth/6
	reduced := depth - 1 - r
	if reduced < 0 {
		reduced = 0
	}

	cuts, tried := 0, 0
	for tried < multiCutTries {
		m, ok := picker.Next()
		if !ok {
			break
		}
		tried++

		b.Make(m)
		score := -w.search(b, reduced, ply+1, -beta, -beta+1, false)
		b.Unmake()

		if score >= beta {
			cuts++
			if cuts >= multiCutCutoffs {
				return true
			}
		}
	}
	return false
}

// isSingular reports whether ttMove is singular: every other legal move,
// searched at half depth with a window just below the TT score, fails low.
// A singular move earns a search extension since nothing else comes close
// (§4.10 step 6.e).
func (w *worker) isSingular(b *board.Board, ttMove board.Move, ttScore eval.Score, depth, ply int) bool {
	margin := eval.Score(2 * depth)
	beta := ttScore - margin
	reduced := depth / 2

	for _, m := range b.GenerateLegal() {
		if m == ttMove {
			continue
		}

		b.Make(m)
		score := -w.search(b, reduced, ply+1, -beta, -beta+1, false)
		b.Unmake()

		if score >= beta {
			return false
		}
	}
	return true
}

// excludeMoves filters exclude out of moves in place, for MultiPV root
// searches that must not repeat an already-reported line.
func excludeMoves(moves []board.Move, exclude map[board.Move]bool) []board.Move {
	out := moves[:0]
	for _, m := range moves {
		if !exclude[m] {
			out = append(out, m)
		}
	}
	return out
}

// scoreToTT converts a score computed at ply (distance from this search's
// root) into the ply-independent form stored in the table: mate distance
// measured from the stored position itself, so the entry is still valid
// when a later probe transposes into this position at a different ply.
func scoreToTT(score eval.Score, ply int) eval.Score {
	switch {
	case score > eval.MateThreshold:
		return score + eval.Score(ply)
	case score < -eval.MateThreshold:
		return score - eval.Score(ply)
	default:
		return score
	}
}

// scoreFromTT is the inverse of scoreToTT: it re-expresses a stored mate
// score relative to the probing node's own ply.
func scoreFromTT(score eval.Score, ply int) eval.Score {
	switch {
	case score > eval.MateThreshold:
		return score - eval.Score(ply)
	case score < -eval.MateThreshold:
		return score + eval.Score(ply)
	default:
		return score
	}
}

func hasNonPawnMaterial(b *board.Board, c board.Color) bool {
	return b.Pieces(c, board.Knight) != 0 || b.Pieces(c, board.Bishop) != 0 ||
		b.Pieces(c, board.Rook) != 0 || b.Pieces(c, board.Queen) != 0
}

func moveGivesCheck(b *board.Board, m board.Move) bool {
	b.Make(m)
	defer b.Unmake()
	return b.IsChecked(b.Turn())
}

func isRecapture(b *board.Board, m board.Move) bool {
	last, ok := b.LastMove()
	return ok && m.Kind().IsCapture() && last.To() == captureSquare(m)
}

// isPassedPawnPush reports whether m pushes a genuinely passed pawn (no
// enemy pawn on its own or adjacent files ahead of it) to its 6th rank or
// beyond, warranting a search extension (§4.9). Evaluated pre-move: m.From()
// still holds the mover.
func isPassedPawnPush(b *board.Board, m board.Move) bool {
	mover := b.PieceAt(m.From())
	if mover.Kind() != board.Pawn {
		return false
	}
	color := mover.Color()
	rank := m.To().Rank().Relative(color)
	if rank < board.Rank6 {
		return false
	}
	return isPassedAt(b, m.To(), color)
}

// isPassedAt reports whether the square sq, if occupied by a pawn of color
// c, has no opposing pawn ahead of it on its own or adjacent files.
func isPassedAt(b *board.Board, sq board.Square, c board.Color) bool {
	oppPawns := b.Pieces(c.Opponent(), board.Pawn)

	f := sq.File()
	files := board.BitFile(f)
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
