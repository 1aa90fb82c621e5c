package board

// GenerateLegal returns all legal moves for the side to move. Pseudo-legal
// moves are generated first and then filtered by making each one and
// checking whether the mover's own king is left in check (§4.4); this is
// simpler than pin-aware generation and cheap enough given the magic
// attack tables, at the cost of a make/unmake per candidate.
func (b *Board) GenerateLegal() []Move {
	pseudo := b.GeneratePseudoLegal()
	legal := make([]Move, 0, len(pseudo))

	mover := b.turn
	for _, m := range pseudo {
		b.Make(m)
		if !b.IsChecked(mover) {
			legal = append(legal, m)
		}
		b.Unmake()
	}
	return legal
}

// GenerateCaptures returns legal captures and capture-promotions for the
// side to move (§4.4), for use in quiescence search where generating and
// legality-filtering the full pseudo-legal move list would waste a
// make/unmake pair on every quiet move. En passant counts as a capture.
func (b *Board) GenerateCaptures() []Move {
	pseudo := b.genCapturesPseudoLegal()
	legal := make([]Move, 0, len(pseudo))

	mover := b.turn
	for _, m := range pseudo {
		b.Make(m)
		if !b.IsChecked(mover) {
			legal = append(legal, m)
		}
		b.Unmake()
	}
	return legal
}

// genCapturesPseudoLegal generates only capturing moves (including en
// passant and capture-promotions), ignoring whether the mover's own king
// ends up in check. Quiet promotions are excluded: they are not captures
// and are irrelevant to quiescence's tactical-resolution goal.
func (b *Board) genCapturesPseudoLegal() []Move {
	var moves []Move

	us, them := b.turn, b.turn.Opponent()
	enemy, occ := b.occ[them], b.all

	moves = b.genPawnCaptures(moves, us)

	for _, k := range []PieceKind{Knight, Bishop, Rook, Queen, King} {
		pieces := b.bb[us][k]
		for pieces != 0 {
			var from Square
			from, pieces = pieces.PopLSB()
			targets := Attacks(k, from, occ) & enemy
			for targets != 0 {
				var to Square
				to, targets = targets.PopLSB()
				moves = append(moves, NewMove(from, to, Capture, 0))
			}
		}
	}

	return moves
}

// genPawnCaptures generates pawn captures, en passant captures, and
// capture-promotions (but not quiet promotions) for color us.
func (b *Board) genPawnCaptures(moves []Move, us Color) []Move {
	pawns := b.bb[us][Pawn]
	them := us.Opponent()

	attacks := pawns
	for attacks != 0 {
		var from Square
		from, attacks = attacks.PopLSB()
		targets := PawnAttacks(us, BitMask(from)) & b.occ[them]
		for targets != 0 {
			var to Square
			to, targets = targets.PopLSB()
			moves = b.genPawnArrival(moves, from, to, Capture, us)
		}
	}

	if ep, ok := b.EnPassant(); ok {
		attackers := PawnAttacks(them, BitMask(ep)) & pawns
		for attackers != 0 {
			var from Square
			from, attackers = attackers.PopLSB()
			moves = append(moves, NewMove(from, ep, EPCapture, 0))
		}
	}

	return moves
}

// GeneratePseudoLegal returns all moves for the side to move that are legal
// ignoring whether the mover's own king ends up in check.
func (b *Board) GeneratePseudoLegal() []Move {
	var moves []Move

	us, them := b.turn, b.turn.Opponent()
	own, occ := b.occ[us], b.all

	moves = b.genPawnMoves(moves, us)

	for _, k := range []PieceKind{Knight, Bishop, Rook, Queen, King} {
		pieces := b.bb[us][k]
		for pieces != 0 {
			var from Square
			from, pieces = pieces.PopLSB()
			targets := Attacks(k, from, occ) &^ own
			moves = b.genTargets(moves, from, targets)
		}
	}

	moves = b.genCastles(moves, us)
	_ = them
	return moves
}

func (b *Board) genTargets(moves []Move, from Square, targets Bitboard) []Move {
	for targets != 0 {
		var to Square
		to, targets = targets.PopLSB()
		if b.mailbox[to].IsEmpty() {
			moves = append(moves, NewMove(from, to, Quiet, 0))
		} else {
			moves = append(moves, NewMove(from, to, Capture, 0))
		}
	}
	return moves
}

var promoKinds = [4]PieceKind{Queen, Rook, Bishop, Knight}

func (b *Board) genPawnMoves(moves []Move, us Color) []Move {
	pawns := b.bb[us][Pawn]
	empty := ^b.all
	them := us.Opponent()

	singlePush := PawnPushes(us, pawns, empty)
	var doublePush Bitboard
	if us == White {
		doublePush = PawnPushes(us, singlePush&BitRank(Rank3), empty)
	} else {
		doublePush = PawnPushes(us, singlePush&BitRank(Rank6), empty)
	}

	moves = b.genPawnShift(moves, singlePush, stepBack(us, 1), us, false)
	moves = b.genPawnShift(moves, doublePush, stepBack(us, 2), us, true)

	attacks := pawns
	for attacks != 0 {
		var from Square
		from, attacks = attacks.PopLSB()
		targets := PawnAttacks(us, BitMask(from)) & b.occ[them]
		for targets != 0 {
			var to Square
			to, targets = targets.PopLSB()
			moves = b.genPawnArrival(moves, from, to, Capture, us)
		}
	}

	if ep, ok := b.EnPassant(); ok {
		attackers := PawnAttacks(them, BitMask(ep)) & pawns
		for attackers != 0 {
			var from Square
			from, attackers = attackers.PopLSB()
			moves = append(moves, NewMove(from, ep, EPCapture, 0))
		}
	}

	return moves
}

// stepBack returns the square-distance function's inverse direction helper:
// given a destination square reached by n single-square forward steps for
// color c, stepBack computes the originating square.
func stepBack(c Color, n int) func(to Square) Square {
	return func(to Square) Square {
		if c == White {
			return Square(int(to) - 8*n)
		}
		return Square(int(to) + 8*n)
	}
}

func (b *Board) genPawnShift(moves []Move, targets Bitboard, back func(Square) Square, us Color, isDouble bool) []Move {
	for targets != 0 {
		var to Square
		to, targets = targets.PopLSB()
		from := back(to)
		if isDouble {
			moves = append(moves, NewMove(from, to, DoublePush, 0))
			continue
		}
		moves = b.genPawnArrival(moves, from, to, Quiet, us)
	}
	return moves
}

func (b *Board) genPawnArrival(moves []Move, from, to Square, kind MoveKind, us Color) []Move {
	if to.Rank() == PromotionRankOf(us) {
		promoKind := PromoQuiet
		if kind == Capture {
			promoKind = PromoCapture
		}
		for _, p := range promoKinds {
			moves = append(moves, NewMove(from, to, promoKind, p))
		}
		return moves
	}
	return append(moves, NewMove(from, to, kind, 0))
}

// PromotionRankOf returns the rank on which color c's pawns promote.
func PromotionRankOf(c Color) Rank {
	if c == White {
		return Rank8
	}
	return Rank1
}

func (b *Board) genCastles(moves []Move, us Color) []Move {
	rank := Rank1
	if us == Black {
		rank = Rank8
	}
	kingSq := NewSquare(FileE, rank)
	if b.mailbox[kingSq] != NewPiece(us, King) {
		return moves
	}
	if b.IsChecked(us) {
		return moves
	}
	them := us.Opponent()

	if b.castling.IsAllowed(KingSide(us)) {
		f, g := NewSquare(FileF, rank), NewSquare(FileG, rank)
		if b.mailbox[f].IsEmpty() && b.mailbox[g].IsEmpty() &&
			!b.IsAttacked(them, f) && !b.IsAttacked(them, g) {
			moves = append(moves, NewMove(kingSq, g, KingCastle, 0))
		}
	}
	if b.castling.IsAllowed(QueenSide(us)) {
		d, c, bq := NewSquare(FileD, rank), NewSquare(FileC, rank), NewSquare(FileB, rank)
		if b.mailbox[d].IsEmpty() && b.mailbox[c].IsEmpty() && b.mailbox[bq].IsEmpty() &&
			!b.IsAttacked(them, d) && !b.IsAttacked(them, c) {
			moves = append(moves, NewMove(kingSq, c, QueenCastle, 0))
		}
	}
	return moves
}
