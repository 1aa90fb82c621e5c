package eval

import (
	"context"
	"fmt"

	"github.com/corvid-chess/engine/pkg/board"
)

// NN is a placeholder for a learned (neural network) evaluator implementing
// the same Evaluator interface as Classic. No network format or inference
// path is specified; Evaluate always errors via panic until one is wired
// in, keeping the interface boundary real without faking a model.
type NN struct{}

func (NN) Evaluate(ctx context.Context, b *board.Board) Score {
	panic(fmt.Sprintf("NN evaluator not implemented; got board %v", b))
}
