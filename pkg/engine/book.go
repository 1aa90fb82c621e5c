package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/corvid-chess/engine/pkg/board"
	"github.com/corvid-chess/engine/pkg/board/fen"
)

// Book represents an opening book.
type Book interface {
	// Find returns a list -- potentially empty -- of moves given a position. Once an empty
	// list is returned, the book should not be consulted again for the game.
	Find(ctx context.Context, fenStr string) ([]board.Move, error)
}

// Line represents an opening line: e2e4 d7d5.
type Line []string

func (l Line) String() string {
	return strings.Join(l, " ")
}

// NoBook is an empty opening book.
var NoBook = &book{moves: map[string][]board.Move{}}

// NewBook creates an opening book from a set of opening lines.
func NewBook(lines []Line) (Book, error) {
	m := map[string]map[board.Move]bool{}

	for _, line := range lines {
		b, err := fen.Decode(fen.Initial)
		if err != nil {
			return nil, err
		}

		for _, str := range line {
			from, to, promo, hasPromo, err := board.ParseMove(str)
			if err != nil {
				return nil, fmt.Errorf("invalid line %q: %w", line, err)
			}

			key := fenKey(fen.Encode(b))

			var matched board.Move
			found := false
			for _, candidate := range b.GenerateLegal() {
				if candidate.Matches(from, to, promo, hasPromo) {
					matched = candidate
					found = true
					break
				}
			}
			if !found {
				return nil, fmt.Errorf("invalid line %q: move %v not legal", line, str)
			}

			if m[key] == nil {
				m[key] = map[board.Move]bool{}
			}
			m[key][matched] = true

			b.Make(matched)
		}
	}

	dedup := map[string][]board.Move{}
	for k, v := range m {
		var list []board.Move
		for move := range v {
			list = append(list, move)
		}
		sort.Slice(list, func(i, j int) bool {
			return list[i].String() < list[j].String()
		})
		dedup[k] = list
	}
	return &book{moves: dedup}, nil
}

type book struct {
	moves map[string][]board.Move // cropped fen -> []move
}

func (b *book) Find(ctx context.Context, fenStr string) ([]board.Move, error) {
	return b.moves[fenKey(fenStr)], nil
}

// fenKey crops a FEN record to its first four fields (placement, turn,
// castling, en passant), ignoring the halfmove/fullmove counters so that
// transpositions reached via different move orders still hit the book.
func fenKey(pos string) string {
	parts := strings.Split(pos, " ")
	return strings.Join(parts[:4], " ")
}
