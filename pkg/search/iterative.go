package search

import (
	"context"
	"sync"
	"time"

	"github.com/corvid-chess/engine/pkg/board"
	"github.com/corvid-chess/engine/pkg/eval"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/util/contextx"
	"github.com/seekerror/stdlib/pkg/util/iox"
)

// aspirationStart is the initial half-width of the aspiration window in
// centipawns; it doubles on each failed re-search, and after four failed
// re-searches the window opens to the full range.
const aspirationStart = eval.Score(50)

// deepen runs this worker's own iterative deepening loop (§4.12), writing
// into the shared transposition table and reporting completed-depth PVs to
// out. Only worker 0's PVs are meant to be read by the caller; other
// workers exist purely to diversify the shared table (§4.11).
func (w *worker) deepen(b *board.Board, opt Options, out chan PV) {
	maxDepth := opt.DepthLimit
	if maxDepth == 0 {
		maxDepth = 64
	}

	startDepth := 1
	if w.id > 0 {
		startDepth = 1 + (w.id % 2) // diversify non-primary workers' starting depth
	}

	lines := opt.MultiPV
	if lines < 1 {
		lines = 1
	}
	multiPV := lines > 1 && w.id == 0

	start := time.Now()
	var lastScore eval.Score
	var lastPV []board.Move

	for depth := startDepth; depth <= maxDepth; depth++ {
		if w.shouldStop() {
			break
		}

		if multiPV {
			w.deepenMultiPV(b, depth, lines, out, start)
			if w.shouldStop() || (opt.SoftLimit > 0 && time.Since(start) > opt.SoftLimit) {
				break
			}
			continue
		}

		alpha, beta := eval.NegInf, eval.Inf
		delta := aspirationStart
		if w.id > 0 {
			delta += eval.Score(10 * w.id)
		}
		if depth >= 4 {
			alpha, beta = lastScore-delta, lastScore+delta
		}

		var score eval.Score
		for fails := 0; ; fails++ {
			if fails == 4 {
				alpha, beta = eval.NegInf, eval.Inf
			}
			w.rootPV = nil
			w.selDepth = 0
			score = w.search(b, depth, 0, alpha, beta, true)
			if w.shouldStop() {
				break
			}
			if score <= alpha {
				alpha -= delta
				delta *= 2
				continue
			}
			if score >= beta {
				beta += delta
				delta *= 2
				continue
			}
			break
		}
		if w.shouldStop() {
			break
		}

		lastScore = score
		if len(w.rootPV) > 0 {
			lastPV = w.rootPV
		}

		if w.id == 0 {
			pv := PV{
				Depth:    depth,
				SelDepth: w.selDepth,
				Index:    1,
				Moves:    lastPV,
				Score:    score,
				Nodes:    w.sh.nodes.Load(),
				Time:     time.Since(start),
			}
			logw.Debugf(w.ctx, "searched %v", pv)
			publish(out, pv)

			if w.handle != nil {
				w.handle.mu.Lock()
				w.handle.pv = pv
				w.handle.mu.Unlock()
			}

			if opt.SoftLimit > 0 && time.Since(start) > opt.SoftLimit {
				break
			}
		}

		if score.IsMate() {
			break
		}
	}
}

// deepenMultiPV searches lines distinct root lines at the given depth by
// excluding each previously found best root move from the next search, and
// reports every completed line with its 1-based index (§6.1 MultiPV). Only
// the primary worker runs this; a full aspiration window is skipped in favor
// of a plain full-width search per line, since the center score differs per
// line and per depth.
func (w *worker) deepenMultiPV(b *board.Board, depth, lines int, out chan PV, start time.Time) {
	w.excludeRoot = nil
	defer func() { w.excludeRoot = nil }()

	for k := 0; k < lines; k++ {
		w.rootPV = nil
		w.selDepth = 0
		score := w.search(b, depth, 0, eval.NegInf, eval.Inf, true)
		if w.shouldStop() {
			return
		}
		if len(w.rootPV) == 0 {
			return // fewer legal root lines than requested MultiPV slots
		}

		pv := PV{
			Depth:    depth,
			SelDepth: w.selDepth,
			Index:    k + 1,
			Moves:    w.rootPV,
			Score:    score,
			Nodes:    w.sh.nodes.Load(),
			Time:     time.Since(start),
		}
		logw.Debugf(w.ctx, "searched %v", pv)
		publish(out, pv)

		if w.handle != nil && k == 0 {
			w.handle.mu.Lock()
			w.handle.pv = pv
			w.handle.mu.Unlock()
		}

		if w.excludeRoot == nil {
			w.excludeRoot = map[board.Move]bool{}
		}
		w.excludeRoot[w.rootPV[0]] = true
	}
}

// publish pushes pv into the buffered channel, dropping the oldest
// unconsumed PV when it is full rather than blocking the search loop on a
// slow reader. The buffer holds one PV per MultiPV line, so the lines of the
// latest completed depth are never dropped.
func publish(out chan PV, pv PV) {
	select {
	case out <- pv:
	default:
		select {
		case <-out:
		default:
		}
		out <- pv
	}
}

// Lazy implements Launcher with a Lazy-SMP search: N worker goroutines each
// run independent iterative deepening over their own Board copy and move-
// ordering tables, sharing only the transposition table and a stop flag
// (§4.11, §5).
type Lazy struct {
	Table TranspositionTable        // pre-built table to reuse, e.g. across a game; takes priority over TT/Size
	TT    TranspositionTableFactory // used to build a table when Table is nil
	Size  uint64                    // transposition table size in bytes, when building via TT
	Age   int                       // search generation counter passed to the shared state (§4.7)
	Eval  func() eval.Evaluator
}

func (l Lazy) Launch(ctx context.Context, b *board.Board, opt Options) (Handle, <-chan PV) {
	threads := opt.Threads
	if threads <= 0 {
		threads = 1
	}

	tt := l.Table
	if tt == nil {
		size := l.Size
		if size == 0 {
			size = 64 << 20
		}
		factory := l.TT
		if factory == nil {
			factory = NewTranspositionTable
		}
		tt = factory(ctx, size)
	}

	sh := &shared{tt: tt, age: l.Age}

	buffered := opt.MultiPV
	if buffered < 1 {
		buffered = 1
	}
	out := make(chan PV, buffered)
	h := &lazyHandle{quit: iox.NewAsyncCloser()}

	wctx, cancel := contextx.WithQuitCancel(ctx, h.quit.Closed())

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		w := newWorker(wctx, i, sh, l.Eval())
		w.disableNullMove = i > 0 && i%4 == 0
		if i == 0 {
			w.handle = h
		}

		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			w.deepen(forkBoard(b), opt, out)
		}(w)
	}

	go func() {
		<-h.quit.Closed()
		sh.stop.Store(true)
	}()
	go func() {
		wg.Wait()
		cancel()
		close(out)
	}()

	return h, out
}

// forkBoard returns an independent copy of b for a worker goroutine to make
// and unmake moves on without racing other workers. The copy's undo history
// is cleared since it starts as the search root, not b's own ancestry.
func forkBoard(b *board.Board) *board.Board {
	clone := *b
	clone.ResetHistory()
	return &clone
}

type lazyHandle struct {
	quit iox.AsyncCloser

	mu sync.Mutex
	pv PV
}

func (h *lazyHandle) Halt() PV {
	h.quit.Close()
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pv
}
