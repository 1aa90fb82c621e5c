package search

import (
	"context"
	"fmt"
	"math/bits"
	"sync/atomic"
	"unsafe"

	"github.com/corvid-chess/engine/pkg/board"
	"github.com/corvid-chess/engine/pkg/eval"
	"github.com/seekerror/logw"
)

// Bound represents the bound of a -- possibly inexact -- search score.
type Bound uint8

const (
	ExactBound Bound = iota
	LowerBound
	UpperBound
)

func (b Bound) String() string {
	switch b {
	case ExactBound:
		return "Exact"
	case LowerBound:
		return "Lower"
	case UpperBound:
		return "Upper"
	default:
		return "?"
	}
}

// TranspositionTable speeds up search by caching previously-searched
// positions keyed by zobrist hash. Must be thread-safe: Lazy-SMP workers
// share a single table.
type TranspositionTable interface {
	// Read returns the bound, depth, score and best move for the given
	// position hash, if present. The move is returned even on a depth-
	// insufficient hit, for move ordering purposes.
	Read(hash board.ZobristHash) (Bound, int, eval.Score, board.Move, bool)
	// Write stores the entry, subject to the table's replacement policy.
	Write(hash board.ZobristHash, bound Bound, age, depth int, score eval.Score, move board.Move) bool

	// Size returns the size of the table in bytes.
	Size() uint64
	// Used returns the utilization as a fraction [0;1].
	Used() float64
}

type TranspositionTableFactory func(ctx context.Context, size uint64) TranspositionTable

// metadata captures node metadata: bound, best move and replacement-policy
// inputs (age, depth). bestmove is stored as the packed Move word directly,
// since Move is now a single uint32 rather than a {from,to,promotion} triple.
type metadata struct {
	bound Bound
	move  board.Move
	age   uint16
	depth uint16
}

// node is one transposition table entry. 24 bytes.
type node struct {
	hash  board.ZobristHash
	score eval.Score
	md    metadata
}

// table is a lock-free transposition table: each bucket is a single
// *node swapped in with an atomic CAS, subject to the replacement policy in
// §4.7. Concurrent Writes may race; the loser simply retries against the
// freshest pointer, never tearing a partially-written node.
type table struct {
	buckets []*node
	mask    uint64
	used    uint64
}

func NewTranspositionTable(ctx context.Context, size uint64) TranspositionTable {
	n := uint64(1 << (63 - 5 - bits.LeadingZeros64(size)))
	if n == 0 {
		n = 1
	}

	logw.Infof(ctx, "Allocating %vMB TT with %v entries", size>>20, n)

	return &table{
		buckets: make([]*node, n),
		mask:    n - 1,
	}
}

func (t *table) Size() uint64 {
	return uint64(len(t.buckets)) << 5
}

func (t *table) Used() float64 {
	return float64(t.used) / float64(len(t.buckets))
}

func (t *table) Read(hash board.ZobristHash) (Bound, int, eval.Score, board.Move, bool) {
	key := uint64(hash) & t.mask
	addr := (*unsafe.Pointer)(unsafe.Pointer(&t.buckets[key]))

	ptr := (*node)(atomic.LoadPointer(addr))
	if ptr != nil && hash == ptr.hash {
		return ptr.md.bound, int(ptr.md.depth), ptr.score, ptr.md.move, true
	}
	return 0, 0, 0, board.NoMove, false
}

func (t *table) Write(hash board.ZobristHash, bound Bound, age, depth int, score eval.Score, move board.Move) bool {
	key := uint64(hash) & t.mask
	addr := (*unsafe.Pointer)(unsafe.Pointer(&t.buckets[key]))

	fresh := &node{
		hash:  hash,
		score: score,
		md: metadata{
			bound: bound,
			move:  move,
			age:   uint16(age),
			depth: uint16(depth),
		},
	}

	for {
		ptr := (*node)(atomic.LoadPointer(addr))
		if !shouldReplace(ptr, fresh) {
			return false
		}
		if atomic.CompareAndSwapPointer(addr, unsafe.Pointer(ptr), unsafe.Pointer(fresh)) {
			if ptr == nil {
				t.used++
			}
			return true
		}
		// Lost the race to another writer; re-read and re-evaluate.
	}
}

// shouldReplace implements the store policy of §4.7: replace when (a) the
// bucket is empty, (b) fresh is from a deeper search, (c) same depth but
// the stored bound was not Exact and fresh is Exact, or (d) the stored
// entry is from an older search generation (age). A store to the same key
// always refreshes, whatever its depth, bound or age.
func shouldReplace(old, fresh *node) bool {
	if old == nil || old.hash == fresh.hash {
		return true
	}
	if old.md.age != fresh.md.age {
		return old.md.age < fresh.md.age
	}
	if fresh.md.depth != old.md.depth {
		return fresh.md.depth > old.md.depth
	}
	return fresh.md.bound == ExactBound && old.md.bound != ExactBound
}

func (t *table) String() string {
	return fmt.Sprintf("TT[%v @ %v%%]", t.Size(), int(100*t.Used()))
}

// WriteFilter is a predicate on the Write operation; returning true skips the write.
type WriteFilter func(hash board.ZobristHash, bound Bound, age, depth int, score eval.Score, move board.Move) bool

// WriteLimited wraps a TranspositionTable to ignore certain writes, such as
// those below a minimum depth -- useful if evaluation depends on recent
// move history that a shallow, quickly-overwritten entry wouldn't capture
// well anyway.
type WriteLimited struct {
	Filter WriteFilter
	TT     TranspositionTable
}

func (w WriteLimited) Read(hash board.ZobristHash) (Bound, int, eval.Score, board.Move, bool) {
	return w.TT.Read(hash)
}

func (w WriteLimited) Write(hash board.ZobristHash, bound Bound, age, depth int, score eval.Score, move board.Move) bool {
	if w.Filter(hash, bound, age, depth, score, move) {
		return false
	}
	return w.TT.Write(hash, bound, age, depth, score, move)
}

func (w WriteLimited) Size() uint64 { return w.TT.Size() }
func (w WriteLimited) Used() float64 { return w.TT.Used() }

// NewMinDepthTranspositionTable creates depth-limited TranspositionTables.
func NewMinDepthTranspositionTable(min int) TranspositionTableFactory {
	return func(ctx context.Context, size uint64) TranspositionTable {
		return WriteLimited{
			Filter: func(hash board.ZobristHash, bound Bound, age, depth int, score eval.Score, move board.Move) bool {
				return depth < min
			},
			TT: NewTranspositionTable(ctx, size),
		}
	}
}

// NoTranspositionTable is a Nop implementation, useful for perft or testing
// search logic without cache effects.
type NoTranspositionTable struct{}

func (n NoTranspositionTable) Read(hash board.ZobristHash) (Bound, int, eval.Score, board.Move, bool) {
	return 0, 0, 0, board.NoMove, false
}

func (n NoTranspositionTable) Write(hash board.ZobristHash, bound Bound, age, depth int, score eval.Score, move board.Move) bool {
	return false
}

func (n NoTranspositionTable) Size() uint64  { return 0 }
func (n NoTranspositionTable) Used() float64 { return 0 }
