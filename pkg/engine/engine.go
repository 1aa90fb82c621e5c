// Package engine wires together board state, evaluation and search into a
// single stateful object suitable for driving from a UCI front end.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/corvid-chess/engine/pkg/board"
	"github.com/corvid-chess/engine/pkg/board/fen"
	"github.com/corvid-chess/engine/pkg/eval"
	"github.com/corvid-chess/engine/pkg/search"
	"github.com/seekerror/build"
	"github.com/seekerror/logw"
)

var version = build.NewVersion(0, 1, 0)

// Options are engine-wide default search options, overridable per Analyze call.
type Options struct {
	Depth   uint // search depth limit; 0 == no limit
	Hash    uint // transposition table size in MB; 0 selects the 64 MB default
	Threads uint // Lazy-SMP worker count; 0 defaults to 1
	Noise   uint // centipawns of evaluation noise, for worker diversification
}

func (o Options) String() string {
	return fmt.Sprintf("{depth=%v, hash=%v, threads=%v, noise=%v}", o.Depth, o.Hash, o.Threads, o.Noise)
}

// Engine encapsulates game-playing logic, search and evaluation around a
// single mutable position. Safe for concurrent use: every method that reads
// or changes engine state serializes through the engine's own mutex.
type Engine struct {
	name, author string

	factory search.TranspositionTableFactory
	opts    Options

	b      *board.Board
	eval   eval.Evaluator
	tt     search.TranspositionTable // persists across positions; cleared by NewGame
	age    int                      // search generation counter (§4.7); zeroed by NewGame
	active search.Handle
	mu     sync.Mutex
}

// Option is an engine creation option.
type Option func(*Engine)

// WithTable configures the engine to use the given transposition table factory.
func WithTable(factory search.TranspositionTableFactory) Option {
	return func(e *Engine) {
		e.factory = factory
	}
}

// WithOptions sets default runtime options.
func WithOptions(opts Options) Option {
	return func(e *Engine) {
		e.opts = opts
	}
}

// WithEvaluator overrides the default Classic evaluator.
func WithEvaluator(ev eval.Evaluator) Option {
	return func(e *Engine) {
		e.eval = ev
	}
}

func New(ctx context.Context, name, author string, opts ...Option) *Engine {
	e := &Engine{
		name:    name,
		author:  author,
		factory: search.NewTranspositionTable,
		eval:    eval.Classic{},
	}
	for _, fn := range opts {
		fn(e)
	}

	_ = e.Reset(ctx, fen.Initial)
	e.rebuildTableLocked(ctx)

	logw.Infof(ctx, "Initialized engine: %v, options=%v", e.Name(), e.opts)
	return e
}

// rebuildTableLocked allocates a fresh transposition table sized per the
// current Hash option and resets the search generation counter. Callers
// must hold e.mu (or, as in New, own the Engine exclusively).
func (e *Engine) rebuildTableLocked(ctx context.Context) {
	sizeMB := uint64(e.opts.Hash)
	if sizeMB == 0 {
		sizeMB = 64
	}
	e.tt = e.factory(ctx, sizeMB<<20)
	e.age = 0
}

// NewGame clears the transposition table and search generation counter, per
// the UCI "ucinewgame" contract: stale entries from a prior game must never
// leak into the next one.
func (e *Engine) NewGame(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	logw.Infof(ctx, "new game")

	e.haltSearchIfActiveLocked(ctx)
	e.rebuildTableLocked(ctx)
}

// Name returns the engine name and version.
func (e *Engine) Name() string {
	return fmt.Sprintf("%v %v", e.name, version)
}

// Author returns the author.
func (e *Engine) Author() string {
	return e.author
}

func (e *Engine) Options() Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

func (e *Engine) SetDepth(depth uint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Depth = depth
}

func (e *Engine) SetHash(ctx context.Context, sizeMB uint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Hash = sizeMB
	e.rebuildTableLocked(ctx)
}

func (e *Engine) SetThreads(n uint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Threads = n
}

func (e *Engine) SetNoise(centipawns uint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Noise = centipawns
}

// Hashfull returns the transposition table's occupancy in per-mille
// (0-1000), for the UCI "info hashfull" field (§6.4).
func (e *Engine) Hashfull() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tt == nil {
		return 0
	}
	return int(e.tt.Used() * 1000)
}

// Position returns the current position in FEN format.
func (e *Engine) Position() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fen.Encode(e.b)
}

// Reset resets the engine to a new starting position in FEN format.
func (e *Engine) Reset(ctx context.Context, position string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	logw.Infof(ctx, "reset %v, opts=%v", position, e.opts)

	e.haltSearchIfActiveLocked(ctx)

	b, err := fen.Decode(position)
	if err != nil {
		return err
	}
	e.b = b

	logw.Infof(ctx, "new position:\n%v", e.b)
	return nil
}

// Move applies the given move in UCI coordinate notation, usually an
// opponent's move relayed by the GUI.
func (e *Engine) Move(ctx context.Context, move string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	logw.Infof(ctx, "move %v", move)

	from, to, promo, hasPromo, err := board.ParseMove(move)
	if err != nil {
		return fmt.Errorf("invalid move: %w", err)
	}

	e.haltSearchIfActiveLocked(ctx)

	for _, m := range e.b.GenerateLegal() {
		if m.Matches(from, to, promo, hasPromo) {
			e.b.Make(m)
			return nil
		}
	}
	return fmt.Errorf("illegal move: %v", move)
}

// Analyze launches a search of the current position with the given options,
// falling back to engine-wide defaults where opt leaves a field at zero.
func (e *Engine) Analyze(ctx context.Context, opt search.Options) (<-chan search.PV, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if opt.DepthLimit == 0 {
		opt.DepthLimit = int(e.opts.Depth)
	}
	if opt.Threads == 0 {
		opt.Threads = int(e.opts.Threads)
		if opt.Threads == 0 {
			opt.Threads = 1
		}
	}

	logw.Infof(ctx, "analyze %v, opt=%v", e.b, opt)

	if e.active != nil {
		return nil, fmt.Errorf("search already active")
	}

	e.age++

	ev := e.eval
	launcher := search.Lazy{
		Table: e.tt,
		Age:   e.age,
		Eval: func() eval.Evaluator {
			if e.opts.Noise > 0 {
				return eval.NewRandom(ev, int(e.opts.Noise), int64(e.opts.Noise))
			}
			return ev
		},
	}

	fork := *e.b
	fork.ResetHistory()

	handle, out := launcher.Launch(ctx, &fork, opt)
	e.active = handle
	return out, nil
}

// Halt halts the active search and returns the principal variation, if any.
func (e *Engine) Halt(ctx context.Context) (search.PV, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	logw.Infof(ctx, "halt")

	pv, ok := e.haltSearchIfActiveLocked(ctx)
	if !ok {
		return search.PV{}, fmt.Errorf("no active search")
	}
	return pv, nil
}

func (e *Engine) haltSearchIfActiveLocked(ctx context.Context) (search.PV, bool) {
	if e.active != nil {
		pv := e.active.Halt()
		logw.Infof(ctx, "search halted: %v", pv)

		e.active = nil
		return pv, true
	}
	return search.PV{}, false
}
