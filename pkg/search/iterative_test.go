package search_test

import (
	"context"
	"testing"
	"time"

	"github.com/corvid-chess/engine/pkg/board"
	"github.com/corvid-chess/engine/pkg/board/fen"
	"github.com/corvid-chess/engine/pkg/eval"
	"github.com/corvid-chess/engine/pkg/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec string) *board.Board {
	t.Helper()
	b, err := fen.Decode(rec)
	require.NoError(t, err)
	return b
}

// TestLazyFindsBackRankMate exercises the full Lazy-SMP driver end to end: it
// must converge on a forced mate and report it through both the PV channel
// and Halt(). A zero-value Halt() result (the bug fixed when lazyHandle
// gained its handle back-pointer) would fail the non-empty-moves assertion.
func TestLazyFindsBackRankMate(t *testing.T) {
	ctx := context.Background()
	b := decode(t, "6k1/5ppp/8/8/8/8/5PPP/R5K1 w - - 0 1") // Ra1-a8#

	l := search.Lazy{Eval: func() eval.Evaluator { return eval.Classic{} }}
	opt := search.Options{DepthLimit: 4, Threads: 1}

	handle, out := l.Launch(ctx, b, opt)

	var last search.PV
	for pv := range out {
		if pv.Index <= 1 {
			last = pv
		}
	}

	assert.NotEmpty(t, last.Moves)
	assert.True(t, last.Score.IsMate())

	halted := handle.Halt()
	assert.NotEmpty(t, halted.Moves)
}

// TestLazyHaltStopsPromptly confirms that Halt() on an infinite search
// returns without the caller needing to drain the PV channel first.
func TestLazyHaltStopsPromptly(t *testing.T) {
	ctx := context.Background()
	b := decode(t, fen.Initial)

	l := search.Lazy{Eval: func() eval.Evaluator { return eval.Classic{} }}
	handle, out := l.Launch(ctx, b, search.Options{Threads: 2})

	time.Sleep(20 * time.Millisecond)

	done := make(chan search.PV, 1)
	go func() { done <- handle.Halt() }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Halt() did not return in time")
	}

	for range out {
		// drain until the launcher's goroutines finish closing it.
	}
}

// TestLazyTableAgesAcrossSearches mirrors how engine.Engine reuses one
// transposition table across a game: the same table handed to successive
// Launch calls must accumulate entries, and each search's writes should use
// a newer age than the previous one for replacement to work (§4.7).
func TestLazyTableAgesAcrossSearches(t *testing.T) {
	ctx := context.Background()
	tt := search.NewTranspositionTable(ctx, 1<<20)

	b := decode(t, fen.Initial)

	for age := 1; age <= 2; age++ {
		l := search.Lazy{Table: tt, Age: age, Eval: func() eval.Evaluator { return eval.Classic{} }}
		handle, out := l.Launch(ctx, b, search.Options{DepthLimit: 3, Threads: 1})
		for range out {
		}
		pv := handle.Halt()
		assert.NotEmpty(t, pv.Moves)
	}

	assert.Greater(t, tt.Used(), float64(0))
}

// TestLazyMultiPVReportsDistinctLines checks that requesting MultiPV lines
// produces that many distinct, indexed root lines rather than the same best
// move repeated.
func TestLazyMultiPVReportsDistinctLines(t *testing.T) {
	ctx := context.Background()
	b := decode(t, fen.Initial)

	l := search.Lazy{Eval: func() eval.Evaluator { return eval.Classic{} }}
	handle, out := l.Launch(ctx, b, search.Options{DepthLimit: 3, Threads: 1, MultiPV: 3})
	defer handle.Halt()

	seen := map[int]board.Move{}
	for pv := range out {
		if len(pv.Moves) > 0 {
			seen[pv.Index] = pv.Moves[0]
		}
	}

	require.Len(t, seen, 3)
	assert.NotEqual(t, seen[1], seen[2])
	assert.NotEqual(t, seen[2], seen[3])
}
