// Package uci contains a driver for using the engine under the UCI protocol.
//
// See: http://wbec-ridderkerk.nl/html/UCIProtocol.html
// See: https://en.wikipedia.org/wiki/Universal_Chess_Interface
package uci

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/corvid-chess/engine/pkg/board"
	"github.com/corvid-chess/engine/pkg/board/fen"
	"github.com/corvid-chess/engine/pkg/engine"
	"github.com/corvid-chess/engine/pkg/eval"
	"github.com/corvid-chess/engine/pkg/search"
	"github.com/seekerror/logw"
	"go.uber.org/atomic"
)

const ProtocolName = "uci"

// Option is an UCI driver option.
type Option func(*options)

type options struct {
	useBook bool
	book    engine.Book
	rand    *rand.Rand

	moveOverhead time.Duration // subtracted from the computed time budget as a safety margin
	multiPV      int           // number of root lines to report; 1 == single line
}

// UseBook instructs the driver to use the given opening book.
func UseBook(book engine.Book, seed int64) Option {
	return func(opt *options) {
		opt.useBook = true
		opt.book = book
		opt.rand = rand.New(rand.NewSource(seed))
	}
}

// Driver implements a UCI driver for an engine. It is activated if sent "uci".
type Driver struct {
	e   *engine.Engine
	opt options

	out chan<- string

	active       atomic.Bool    // user is waiting for engine to move
	ponder       chan search.PV // chan for intermediate search information
	lastPosition string         // last position line (empty if no last position)

	quit   chan struct{}
	closed atomic.Bool
}

func NewDriver(ctx context.Context, e *engine.Engine, in <-chan string, opts ...Option) (*Driver, <-chan string) {
	opt := options{moveOverhead: 30 * time.Millisecond, multiPV: 1}
	for _, fn := range opts {
		fn(&opt)
	}

	out := make(chan string, 100)
	d := &Driver{
		e:      e,
		opt:    opt,
		out:    out,
		ponder: make(chan search.PV, 400),
		quit:   make(chan struct{}),
	}
	go d.process(ctx, in)

	return d, out
}

func (d *Driver) Close() {
	if d.closed.CAS(false, true) {
		close(d.quit)
	}
}

func (d *Driver) Closed() <-chan struct{} {
	return d.quit
}

func (d *Driver) process(ctx context.Context, in <-chan string) {
	defer d.Close()
	defer close(d.out)

	// * uci
	//
	//	tell engine to use the uci (universal chess interface),
	//	this will be send once as a first command after program boot
	//	to tell the engine to switch to uci mode.
	//	After receiving the uci command the engine must identify itself with the "id" command
	//	and sent the "option" commands to tell the GUI which engine settings the engine supports if any.
	//	After that the engine should sent "uciok" to acknowledge the uci mode.
	//	If no uciok is sent within a certain time period, the engine task will be killed by the GUI.

	logw.Infof(ctx, "UCI protocol initialized")

	// * id
	//	* name <x>
	//	* author <x>
	//		this must be sent after receiving the "uci" command to identify the engine.

	d.out <- fmt.Sprintf("id name %v", d.e.Name())
	d.out <- fmt.Sprintf("id author %v", d.e.Author())

	// * option
	//	This command tells the GUI which parameters can be changed in the engine.
	//	Ponder is accepted but has no effect; UCI_* extensions are not implemented.

	d.out <- "option name Hash type spin default 64 min 1 max 4096"
	d.out <- "option name Threads type spin default 1 min 1 max 64"
	d.out <- "option name MultiPV type spin default 1 min 1 max 10"
	d.out <- "option name Move Overhead type spin default 30 min 0 max 5000"
	d.out <- "option name Contempt type spin default 0 min -100 max 100"
	d.out <- "option name Ponder type check default false"
	if d.opt.book != nil {
		d.out <- fmt.Sprintf("option name OwnBook type check default %v", d.opt.useBook)
	}

	// * uciok
	//
	//	Must be sent after the id and optional options to tell the GUI that the engine
	//	has sent all infos and is ready in uci mode.

	d.out <- "uciok"

	for {
		select {
		case line, ok := <-in:
			if !ok {
				logw.Infof(ctx, "Input stream broken. Exiting")
				return
			}

			parts := strings.Split(strings.TrimSpace(line), " ")
			if len(parts) == 0 {
				break
			}

			cmd := parts[0]
			args := parts[1:]

			switch strings.ToLower(cmd) {
			case "isready":
				// * isready / readyok
				//
				//	Used to synchronize the engine with the GUI. Must always be answered with
				//	"readyok", even mid-search.

				d.out <- "readyok"

			case "debug":
				// * debug [ on | off ]
				//
				//	Not implemented: this engine doesn't emit extra "info string" debug traffic.

			case "setoption":
				// * setoption name <id> [value <x>]
				//
				//	Sent to change the internal parameters of the engine. Only sent when the
				//	engine is idle.

				name, value := parseSetOption(args)

				switch name {
				case "OwnBook":
					d.opt.useBook, _ = strconv.ParseBool(value)
				case "Hash":
					if n, err := strconv.Atoi(value); err == nil {
						d.e.SetHash(ctx, uint(n))
					}
				case "Threads":
					if n, err := strconv.Atoi(value); err == nil {
						d.e.SetThreads(uint(n))
					}
				case "Contempt":
					if n, err := strconv.Atoi(value); err == nil {
						noise := n
						if noise < 0 {
							noise = -noise
						}
						d.e.SetNoise(uint(noise))
					}
				case "Move Overhead":
					if n, err := strconv.Atoi(value); err == nil && n >= 0 {
						d.opt.moveOverhead = time.Duration(n) * time.Millisecond
					}
				case "MultiPV":
					if n, err := strconv.Atoi(value); err == nil && n >= 1 {
						d.opt.multiPV = n
					}
				}

			case "register":
				// * register
				//
				//	This engine requires no registration.

			case "ucinewgame":
				// * ucinewgame
				//
				//	Sent when the next search will be from a different game. Clears
				//	the transposition table so stale entries don't leak across games.

				d.ensureInactive(ctx)
				d.e.NewGame(ctx)
				d.lastPosition = ""

			case "position":
				// * position [fen <fenstring> | startpos ]  moves <move1> .... <movei>
				//
				//	Set up the position described in fenstring on the internal board and
				//	play the moves on the internal chess board.

				d.ensureInactive(ctx)

				if d.lastPosition != "" && strings.HasPrefix(line, d.lastPosition) {
					// Continuation of game.

					moves := strings.TrimSpace(strings.TrimPrefix(line, d.lastPosition))
					for _, arg := range strings.Split(moves, " ") {
						if arg == "" || arg == "moves" {
							continue
						}

						if err := d.e.Move(ctx, arg); err != nil {
							logw.Errorf(ctx, "Invalid position move '%v': %v: %v", arg, line, err)
							return
						}
					}

					d.lastPosition = line
					break
				}

				// New position.

				position := fen.Initial
				if len(args) >= 7 && args[0] == "fen" {
					position = strings.Join(args[1:7], " ")
				}

				if err := d.e.Reset(ctx, position); err != nil {
					logw.Errorf(ctx, "Invalid position: %v", line)
					return
				}

				move := false
				for _, arg := range args {
					if arg == "moves" {
						move = true
						continue
					}
					if !move {
						continue
					}

					if err := d.e.Move(ctx, arg); err != nil {
						logw.Errorf(ctx, "Invalid position move '%v': %v: %v", arg, line, err)
						return
					}
				}
				d.lastPosition = line

			case "go":
				// * go
				//
				//	Start calculating on the current position set up with the "position" command.
				//	* searchmoves <move1> .... <movei>  -- not supported, silently ignored.
				//	* ponder  -- treated as a normal search; there is no dedicated ponder mode.
				//	* wtime/btime/winc/binc/movestogo  -- converted into a soft/hard time budget.
				//	* depth <x> -- plies.
				//	* movetime <x> -- exact budget in msec.
				//	* infinite -- search until "stop".
				//	* nodes/mate -- not supported by the search driver, silently ignored.

				d.ensureInactive(ctx)

				opt := search.Options{MultiPV: d.opt.multiPV}
				infinite := false
				var wtime, btime, winc, binc time.Duration
				movesToGo := 0

				for i := 0; i < len(args); i++ {
					cmd := args[i]
					switch cmd {
					case "wtime", "btime", "winc", "binc", "movestogo", "depth", "movetime", "nodes", "mate":
						i++
						if i == len(args) {
							logw.Errorf(ctx, "No argument for %v: %v", cmd, line)
							return
						}
						n, err := strconv.Atoi(args[i])
						if err != nil {
							logw.Errorf(ctx, "Invalid argument for %v: %v", line, err)
							return
						}

						switch cmd {
						case "depth":
							opt.DepthLimit = n
						case "movetime":
							opt.MoveTime = time.Millisecond * time.Duration(n)
						case "wtime":
							wtime = time.Millisecond * time.Duration(n)
						case "btime":
							btime = time.Millisecond * time.Duration(n)
						case "winc":
							winc = time.Millisecond * time.Duration(n)
						case "binc":
							binc = time.Millisecond * time.Duration(n)
						case "movestogo":
							movesToGo = n
						case "nodes", "mate":
							// not supported; argument consumed above and dropped.
						}

					case "infinite":
						infinite = true

					default:
						// silently ignore anything not handled, including searchmoves.
					}
				}

				timeout := opt.MoveTime
				if !infinite && timeout == 0 && (wtime > 0 || btime > 0) {
					mine, inc := wtime, winc
					if !d.whiteToMove() {
						mine, inc = btime, binc
					}
					opt.SoftLimit, timeout = allocateTime(mine, inc, movesToGo)
					opt.MoveTime = timeout
				}

				// Move Overhead trims the hard budget to leave headroom for GUI or
				// network latency outside the engine's own think time.
				if timeout > 0 {
					timeout -= d.opt.moveOverhead
					if timeout <= 0 {
						timeout = time.Millisecond
					}
					opt.MoveTime = timeout
					if opt.SoftLimit > timeout {
						opt.SoftLimit = timeout
					}
				}

				if d.opt.useBook && d.opt.book != nil {
					// Use opening book if possible.

					moves, err := d.opt.book.Find(ctx, d.e.Position())
					if err != nil {
						logw.Errorf(ctx, "Failed to find book move for %v: %v", d.e.Position(), err)
						return
					}

					if len(moves) > 0 {
						winner := moves[d.opt.rand.Intn(len(moves))]
						pv := search.PV{Moves: []board.Move{winner}}

						d.active.Store(true)
						d.searchCompleted(ctx, pv)
						break
					} // else: no book move
				}

				out, err := d.e.Analyze(ctx, opt)
				if err != nil {
					logw.Errorf(ctx, "Analyze failed: %v", err)
					return
				}
				d.active.Store(true)

				// Forward ponder info. Complete search if it ends, unless infinite.

				go func() {
					var last search.PV
					for pv := range out {
						if pv.Index <= 1 {
							last = pv
						}
						d.ponder <- pv
					}
					if !infinite {
						d.searchCompleted(ctx, last)
					}
				}()

				// Enforce a hard move time limit, if set.

				if timeout > 0 {
					time.AfterFunc(timeout, func() {
						_, _ = d.e.Halt(ctx)
					})
				}

			case "stop":
				// * stop
				//
				//	Stop calculating as soon as possible; "bestmove" always follows.

				pv, err := d.e.Halt(ctx)
				if err == nil {
					d.searchCompleted(ctx, pv)
				}

			case "ponderhit":
				// * ponderhit
				//
				//	No-op: this engine does not special-case pondering internally.

			case "quit":
				// * quit
				//
				//	Quit the program as soon as possible.

				return

			default:
				logw.Warningf(ctx, "Unknown command '%v': %v", cmd, args)
			}

		case pv := <-d.ponder:
			// * info
			//
			//	"info depth 2 score cp 214 time 1242 nodes 2124 nps 34928 pv e2e4 e7e5 g1f3"

			if d.active.Load() {
				d.out <- d.printPV(pv)
			}

		case <-d.quit:
			d.ensureInactive(ctx)

			logw.Infof(ctx, "Driver closed")
			return
		}
	}
}

func (d *Driver) ensureInactive(ctx context.Context) {
	d.active.Store(false)
	_, _ = d.e.Halt(ctx)
}

// whiteToMove reports whether the side to move in the current position is white.
func (d *Driver) whiteToMove() bool {
	parts := strings.Split(d.e.Position(), " ")
	return len(parts) < 2 || parts[1] != "b"
}

// allocateTime derives a soft (stop-early-once-stable) and hard (must-stop) budget
// from the clock remaining for the side to move, its increment and the number of
// moves left to the next time control. movesToGo of 0 means sudden death.
func allocateTime(remaining, inc time.Duration, movesToGo int) (soft, hard time.Duration) {
	if remaining <= 0 {
		return 0, 0
	}

	n := movesToGo
	if n <= 0 {
		n = 30
	}

	budget := remaining/time.Duration(n) + inc
	if budget <= 0 {
		budget = time.Millisecond
	}

	soft = budget
	hard = budget * 3
	if max := remaining / 2; hard > max {
		hard = max
	}
	if hard < soft {
		hard = soft
	}
	return soft, hard
}

func parseSetOption(args []string) (name, value string) {
	// "name <id...> value <x...>" -- both <id> and <x> may contain spaces.
	var nameParts, valueParts []string
	inValue := false
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "name" && !inValue && len(nameParts) == 0:
			continue
		case args[i] == "value":
			inValue = true
		case inValue:
			valueParts = append(valueParts, args[i])
		default:
			nameParts = append(nameParts, args[i])
		}
	}
	return strings.Join(nameParts, " "), strings.Join(valueParts, " ")
}

func (d *Driver) searchCompleted(ctx context.Context, pv search.PV) {
	if d.active.CAS(true, false) {
		if len(pv.Moves) > 0 {
			// * bestmove <move1> [ ponder <move2> ]
			//
			//	Must always be sent if the engine stops searching, directly after a final
			//	"info" line with the completed search statistics.

			d.out <- d.printPV(pv)
			d.out <- fmt.Sprintf("bestmove %v", pv.Moves[0])
		} else {
			// No PV. Position is checkmate or stalemate.

			d.out <- "bestmove 0000"
		}
	} // else: stale or duplicate result
}

// printPV formats a completed-depth PV as a UCI "info" line (§6.4): depth,
// selective depth, score, node count, hashfull per-mille, time and nps,
// then the principal variation itself.
func (d *Driver) printPV(pv search.PV) string {
	parts := []string{"info"}
	parts = append(parts, fmt.Sprintf("depth %v", pv.Depth))
	if pv.SelDepth > 0 {
		parts = append(parts, fmt.Sprintf("seldepth %v", pv.SelDepth))
	}
	if pv.Index > 0 {
		parts = append(parts, fmt.Sprintf("multipv %v", pv.Index))
	}
	parts = append(parts, fmt.Sprintf("score %v", scoreToUCI(pv.Score)))
	if pv.Nodes > 0 {
		parts = append(parts, fmt.Sprintf("nodes %v", pv.Nodes))
	}
	parts = append(parts, fmt.Sprintf("hashfull %v", d.e.Hashfull()))
	if pv.Time > 0 {
		parts = append(parts, fmt.Sprintf("time %v", pv.Time.Milliseconds()))
	}
	if pv.Nodes > 0 && pv.Time > 0 {
		parts = append(parts, fmt.Sprintf("nps %v", uint64(time.Second)*pv.Nodes/uint64(pv.Time)))
	}
	if len(pv.Moves) > 0 {
		parts = append(parts, "pv")
		parts = append(parts, board.FormatMoves(pv.Moves, func(m board.Move) string { return m.String() }))
	}

	return strings.Join(parts, " ")
}

func scoreToUCI(s eval.Score) string {
	if !s.IsMate() {
		return fmt.Sprintf("cp %d", int32(s))
	}

	if s > 0 {
		return fmt.Sprintf("mate %d", (int32(eval.MateValue-s)+1)/2)
	}
	return fmt.Sprintf("mate %d", -(int32(eval.MateValue+s)+1)/2)
}
