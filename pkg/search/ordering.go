package search

import (
	"github.com/corvid-chess/engine/pkg/board"
	"github.com/corvid-chess/engine/pkg/eval"
)

const maxPly = 128

// killerTable stores, per ply, up to two quiet moves that recently caused a
// beta-cutoff. The first slot outranks the second in move ordering.
type killerTable struct {
	moves [maxPly][2]board.Move
}

func (k *killerTable) add(ply int, m board.Move) {
	if ply >= maxPly {
		return
	}
	if k.moves[ply][0] == m {
		return
	}
	k.moves[ply][1] = k.moves[ply][0]
	k.moves[ply][0] = m
}

func (k *killerTable) get(ply int) (board.Move, board.Move) {
	if ply >= maxPly {
		return board.NoMove, board.NoMove
	}
	return k.moves[ply][0], k.moves[ply][1]
}

// historyTable scores quiet moves by [color][from][to] based on how often
// they have caused a cutoff, weighted by the depth at which it happened.
type historyTable struct {
	score [board.NumColors][64][64]int32
}

func (h *historyTable) add(c board.Color, m board.Move, depth int) {
	d := int32(depth * depth)
	v := &h.score[c][m.From()][m.To()]
	*v += d
	if *v > 1<<20 {
		h.decay()
	}
}

func (h *historyTable) decay() {
	for c := range h.score {
		for f := range h.score[c] {
			for t := range h.score[c][f] {
				h.score[c][f][t] /= 2
			}
		}
	}
}

func (h *historyTable) get(c board.Color, m board.Move) int32 {
	return h.score[c][m.From()][m.To()]
}

// counterTable stores, per opponent last-move (from,to), the move that most
// recently refuted it.
type counterTable struct {
	move [64][64]board.Move
}

func (c *counterTable) add(last board.Move, reply board.Move) {
	c.move[last.From()][last.To()] = reply
}

func (c *counterTable) get(last board.Move) board.Move {
	return c.move[last.From()][last.To()]
}

// stage identifies where the picker is in the ordering state machine of §4.8.
type stage int

const (
	stageHash stage = iota
	stageGoodCaptures
	stageKillers
	stageCounter
	stageQuiets
	stageBadCaptures
	stageDone
)

// movePicker yields pseudo-legal moves in staged priority order: hash move,
// good captures (SEE>=0), killers, counter-move, quiets, then bad captures
// (SEE<0) deferred to the tail. Each move is yielded exactly once even if it
// qualifies for more than one stage.
//
// Scoring is lazy: the constructor only buckets moves into captures and
// quiets by cheap inspection (Kind().IsCapture()); SEE and history lookups,
// which cost a make/unmake-free board probe each, are deferred until the
// picker actually enters the captures or quiets stage. A hash-move cutoff
// at stageHash never pays for scoring the rest of the list (§4.8).
type movePicker struct {
	b    *board.Board
	hash board.Move

	stage stage

	captures, quietMoves []board.Move
	good, bad            []scored
	capturesScored       bool
	quietsScored         bool

	killer1, killer2 board.Move
	counter          board.Move
	quiets           []scored
	history          *historyTable

	idx int

	yielded map[board.Move]bool
}

type scored struct {
	m     board.Move
	score int32
}

func newMovePicker(b *board.Board, all []board.Move, hash board.Move, killers *killerTable, counters *counterTable, history *historyTable, ply int) *movePicker {
	p := &movePicker{
		b:       b,
		hash:    hash,
		history: history,
		yielded: make(map[board.Move]bool, len(all)),
	}
	p.killer1, p.killer2 = killers.get(ply)
	if last, ok := b.LastMove(); ok {
		p.counter = counters.get(last)
	}

	for _, m := range all {
		if m == hash {
			continue
		}
		if m.Kind().IsCapture() {
			p.captures = append(p.captures, m)
			continue
		}
		p.quietMoves = append(p.quietMoves, m) // killers/counter are yielded early by their own stages
	}

	return p
}

// scoreCaptures runs SEE and MVV-LVA over the bucketed captures and splits
// them into the good/bad lists, sorted best-first. Deferred until the
// picker's stage machine actually reaches the captures.
func (p *movePicker) scoreCaptures() {
	if p.capturesScored {
		return
	}
	p.capturesScored = true

	for _, m := range p.captures {
		victim := p.b.PieceAt(captureSquare(m))
		attacker := p.b.PieceAt(m.From())
		mvvLva := eval.NominalValue(victim.Kind())*1000 - eval.NominalValue(attacker.Kind())
		s := scored{m: m, score: int32(mvvLva)}
		if see(p.b, m) >= 0 {
			p.good = append(p.good, s)
		} else {
			p.bad = append(p.bad, s)
		}
	}

	sortScored(p.good)
	sortScored(p.bad)
}

// scoreQuiets runs history-table lookups over the bucketed quiets, sorted
// best-first. Deferred until the picker's stage machine actually reaches
// the quiets.
func (p *movePicker) scoreQuiets() {
	if p.quietsScored {
		return
	}
	p.quietsScored = true

	us := p.b.Turn()
	for _, m := range p.quietMoves {
		p.quiets = append(p.quiets, scored{m: m, score: p.history.get(us, m)})
	}

	sortScored(p.quiets)
}

func captureSquare(m board.Move) board.Square {
	if m.Kind() == board.EPCapture {
		return board.NewSquare(m.To().File(), m.From().Rank())
	}
	return m.To()
}

func sortScored(s []scored) {
	// Small lists; insertion sort avoids sort.Slice's interface overhead and
	// keeps the staged picker allocation-light.
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].score > s[j-1].score; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// Next returns the next move in staged priority order, or false when exhausted.
func (p *movePicker) Next() (board.Move, bool) {
	for {
		switch p.stage {
		case stageHash:
			p.stage = stageGoodCaptures
			if p.hash != board.NoMove && !p.yielded[p.hash] {
				p.yielded[p.hash] = true
				return p.hash, true
			}
		case stageGoodCaptures:
			p.scoreCaptures()
			if p.idx < len(p.good) {
				m := p.good[p.idx].m
				p.idx++
				if p.yielded[m] {
					continue
				}
				p.yielded[m] = true
				return m, true
			}
			p.idx = 0
			p.stage = stageKillers
		case stageKillers:
			p.idx++
			switch p.idx {
			case 1:
				if p.killer1 != board.NoMove && !p.yielded[p.killer1] && p.isPseudoLegalQuiet(p.killer1) {
					p.yielded[p.killer1] = true
					return p.killer1, true
				}
			case 2:
				if p.killer2 != board.NoMove && !p.yielded[p.killer2] && p.isPseudoLegalQuiet(p.killer2) {
					p.yielded[p.killer2] = true
					return p.killer2, true
				}
			default:
				p.idx = 0
				p.stage = stageCounter
			}
		case stageCounter:
			p.stage = stageQuiets
			if p.counter != board.NoMove && !p.yielded[p.counter] && p.isPseudoLegalQuiet(p.counter) {
				p.yielded[p.counter] = true
				return p.counter, true
			}
		case stageQuiets:
			p.scoreQuiets()
			if p.idx < len(p.quiets) {
				m := p.quiets[p.idx].m
				p.idx++
				if p.yielded[m] {
					continue
				}
				p.yielded[m] = true
				return m, true
			}
			p.idx = 0
			p.stage = stageBadCaptures
		case stageBadCaptures:
			if p.idx < len(p.bad) {
				m := p.bad[p.idx].m
				p.idx++
				if p.yielded[m] {
					continue
				}
				p.yielded[m] = true
				return m, true
			}
			p.stage = stageDone
		case stageDone:
			return board.NoMove, false
		}
	}
}

// isPseudoLegalQuiet is a cheap membership check used only to validate that
// a remembered killer/counter move is actually present among this node's
// quiet moves (killer tables are shared across positions at the same ply).
func (p *movePicker) isPseudoLegalQuiet(m board.Move) bool {
	for _, q := range p.quietMoves {
		if q == m {
			return true
		}
	}
	return false
}
