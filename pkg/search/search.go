// Package search contains the engine's game tree search: transposition
// table, move ordering, quiescence, principal variation search and the
// Lazy-SMP driver that coordinates worker goroutines over a shared table.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/corvid-chess/engine/pkg/board"
	"github.com/corvid-chess/engine/pkg/eval"
)

// PV represents the principal variation found at some completed search depth.
type PV struct {
	Depth    int
	SelDepth int // deepest ply actually searched, including quiescence (§6.4)
	Index    int // 1-based MultiPV line number; 1 for the primary line
	Moves    []board.Move
	Score    eval.Score
	Nodes    uint64
	Time     time.Duration
}

func (p PV) String() string {
	pv := board.FormatMoves(p.Moves, func(m board.Move) string {
		return m.String()
	})
	return fmt.Sprintf("depth=%v seldepth=%v score=%v nodes=%v time=%v pv=%v", p.Depth, p.SelDepth, p.Score, p.Nodes, p.Time, pv)
}

// Options hold dynamic search options. The user may change these on a particular search.
type Options struct {
	DepthLimit int           // 0 == no limit
	Threads    int           // Lazy-SMP worker count; 0 defaults to 1
	MultiPV    int           // number of root lines to report; 0 or 1 == single line
	MoveTime   time.Duration // 0 == no explicit per-move budget
	SoftLimit  time.Duration // 0 == no soft time budget (iterative deepening stops early once stable)
}

// Launcher is a Search generator.
type Launcher interface {
	// Launch a new search from the given position. It expects an exclusive (forked) board and
	// returns a PV channel for iteratively deeper searches. If the search is exhausted, the
	// channel is closed. The search can be stopped at any time.
	Launch(ctx context.Context, b *board.Board, opt Options) (Handle, <-chan PV)
}

// Handle is an interface for the engine to manage searches. The engine is expected to spin off
// searches with forked boards and close/abandon them when no longer needed. This design keeps
// stopping conditions and re-synchronization trivial.
type Handle interface {
	// Halt halts the search, if running. Idempotent.
	Halt() PV
}
