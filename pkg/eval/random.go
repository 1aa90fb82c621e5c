package eval

import (
	"context"
	"math/rand"

	"github.com/corvid-chess/engine/pkg/board"
)

// Random adds a small amount of centipawn noise to an underlying evaluator,
// used to diversify Lazy-SMP worker lines that would otherwise search
// identical principal variations (§4.11).
type Random struct {
	Base  Evaluator
	rand  *rand.Rand
	limit int
}

func NewRandom(base Evaluator, limit int, seed int64) Random {
	return Random{
		Base:  base,
		rand:  rand.New(rand.NewSource(seed)),
		limit: limit,
	}
}

func (n Random) Evaluate(ctx context.Context, b *board.Board) Score {
	base := n.Base.Evaluate(ctx, b)
	if n.limit <= 0 {
		return base
	}
	return base + Score(n.rand.Intn(n.limit)-n.limit/2)
}
