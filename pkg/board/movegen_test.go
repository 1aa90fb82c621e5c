package board_test

import (
	"testing"

	"github.com/corvid-chess/engine/pkg/board"
	"github.com/corvid-chess/engine/pkg/board/fen"
	"github.com/stretchr/testify/require"
)

func perft(b *board.Board, depth int) int {
	if depth == 0 {
		return 1
	}
	moves := b.GenerateLegal()
	if depth == 1 {
		return len(moves)
	}

	nodes := 0
	for _, m := range moves {
		b.Make(m)
		nodes += perft(b, depth-1)
		b.Unmake()
	}
	return nodes
}

func TestPerftInitialPosition(t *testing.T) {
	tests := []struct {
		depth    int
		expected int
	}{
		{1, 20},
		{2, 400},
		{3, 8902},
	}

	for _, tt := range tests {
		b, err := fen.Decode(fen.Initial)
		require.NoError(t, err)

		require.Equal(t, tt.expected, perft(b, tt.depth))
	}
}

func TestPerftKiwipete(t *testing.T) {
	// Standard "Kiwipete" perft position, exercising castling, en passant and promotions.
	b, err := fen.Decode("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	require.NoError(t, err)

	require.Equal(t, 48, perft(b, 1))
	require.Equal(t, 2039, perft(b, 2))
}

func TestPerftEnPassantPosition(t *testing.T) {
	b, err := fen.Decode("r4rk1/1pp1qppp/p1np1n2/2b1p1B1/1PB1P1b1/P1NP1N2/2P1QPPP/R4RK1 b - b3 0 10")
	require.NoError(t, err)

	require.Equal(t, 45, perft(b, 1))
}

func TestMakeUnmakeRoundTrip(t *testing.T) {
	b, err := fen.Decode(fen.Initial)
	require.NoError(t, err)

	before := fen.Encode(b)
	hashBefore := b.Hash()

	moves := b.GenerateLegal()
	require.NotEmpty(t, moves)

	for _, m := range moves {
		b.Make(m)
		b.Unmake()
		require.Equal(t, before, fen.Encode(b))
		require.Equal(t, hashBefore, b.Hash())
	}
}

func TestCheckmateHasNoLegalMoves(t *testing.T) {
	// Fool's mate final position: white to move, checkmated.
	b, err := fen.Decode("rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	require.NoError(t, err)

	moves := b.GenerateLegal()
	result := b.Adjudicate(moves)
	require.Equal(t, board.Checkmate, result.Reason)
	require.Equal(t, board.BlackWins, result.Outcome)
}

func TestStalemate(t *testing.T) {
	// Classic K+Q vs K stalemate: black king trapped with no checks and no moves.
	b, err := fen.Decode("7k/8/6QK/8/8/8/8/8 b - - 0 1")
	require.NoError(t, err)

	moves := b.GenerateLegal()
	result := b.Adjudicate(moves)
	require.Equal(t, board.Stalemate, result.Reason)
	require.Equal(t, board.Draw, result.Outcome)
}

func TestInsufficientMaterial(t *testing.T) {
	b, err := fen.Decode("8/8/4k3/8/8/3NK3/8/8 w - - 0 1")
	require.NoError(t, err)

	require.True(t, b.HasInsufficientMaterial())
}
