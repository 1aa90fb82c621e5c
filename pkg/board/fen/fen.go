// Package fen contains utilities for reading and writing board positions in
// Forsyth-Edwards Notation.
package fen

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/corvid-chess/engine/pkg/board"
)

const Initial = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Decode parses a FEN record into a Board.
//
// Example: "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
func Decode(rec string) (*board.Board, error) {
	parts := strings.Fields(strings.TrimSpace(rec))
	if len(parts) != 6 {
		return nil, fmt.Errorf("invalid number of fields in FEN: %q", rec)
	}

	placement, err := decodePlacement(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid piece placement in FEN %q: %w", rec, err)
	}

	turn, ok := parseColor(parts[1])
	if !ok {
		return nil, fmt.Errorf("invalid active color in FEN: %q", rec)
	}

	castling, ok := parseCastling(parts[2])
	if !ok {
		return nil, fmt.Errorf("invalid castling rights in FEN: %q", rec)
	}

	ep := board.NoSquare
	if parts[3] != "-" {
		sq, err := board.ParseSquareStr(parts[3])
		if err != nil {
			return nil, fmt.Errorf("invalid en passant square in FEN %q: %w", rec, err)
		}
		ep = sq
	}

	halfmove, err := strconv.Atoi(parts[4])
	if err != nil || halfmove < 0 {
		return nil, fmt.Errorf("invalid halfmove clock in FEN: %q", rec)
	}

	fullmove, err := strconv.Atoi(parts[5])
	if err != nil || fullmove < 1 {
		return nil, fmt.Errorf("invalid fullmove number in FEN: %q", rec)
	}

	return board.NewBoard(placement, turn, castling, ep, halfmove, fullmove)
}

func decodePlacement(field string) ([]board.Placement, error) {
	ranks := strings.Split(field, "/")
	if len(ranks) != 8 {
		return nil, fmt.Errorf("expected 8 ranks, got %v", len(ranks))
	}

	var placements []board.Placement
	for i, rankStr := range ranks {
		rank := board.Rank8 - board.Rank(i)
		file := board.ZeroFile

		for _, r := range rankStr {
			switch {
			case unicode.IsDigit(r):
				file += board.File(r - '0')
			case unicode.IsLetter(r):
				if file >= board.NumFiles {
					return nil, fmt.Errorf("rank %v overflows 8 files", rankStr)
				}
				c, k, ok := parsePiece(r)
				if !ok {
					return nil, fmt.Errorf("invalid piece letter %q", r)
				}
				placements = append(placements, board.Placement{
					Square: board.NewSquare(file, rank),
					Color:  c,
					Kind:   k,
				})
				file++
			default:
				return nil, fmt.Errorf("invalid rank character %q", r)
			}
		}
		if file != board.NumFiles {
			return nil, fmt.Errorf("rank %q does not span 8 files", rankStr)
		}
	}
	return placements, nil
}

// Encode renders a Board as a FEN record.
func Encode(b *board.Board) string {
	var sb strings.Builder
	for r := int(board.Rank8); r >= 0; r-- {
		blanks := 0
		for f := board.ZeroFile; f < board.NumFiles; f++ {
			sq := board.NewSquare(f, board.Rank(r))
			p := b.PieceAt(sq)
			if p.IsEmpty() {
				blanks++
				continue
			}
			if blanks > 0 {
				sb.WriteString(strconv.Itoa(blanks))
				blanks = 0
			}
			sb.WriteString(p.String())
		}
		if blanks > 0 {
			sb.WriteString(strconv.Itoa(blanks))
		}
		if r != 0 {
			sb.WriteString("/")
		}
	}

	ep := "-"
	if sq, ok := b.EnPassant(); ok {
		ep = sq.String()
	}

	return fmt.Sprintf("%v %v %v %v %v %v", sb.String(), b.Turn(), b.Castling(), ep, b.HalfMoveClock(), b.FullMoves())
}

func parseColor(str string) (board.Color, bool) {
	switch str {
	case "w", "W":
		return board.White, true
	case "b", "B":
		return board.Black, true
	default:
		return 0, false
	}
}

func parseCastling(str string) (board.Castling, bool) {
	var ret board.Castling
	if str == "-" {
		return ret, true
	}
	for _, r := range str {
		switch r {
		case 'K':
			ret |= board.WhiteKingSideCastle
		case 'Q':
			ret |= board.WhiteQueenSideCastle
		case 'k':
			ret |= board.BlackKingSideCastle
		case 'q':
			ret |= board.BlackQueenSideCastle
		default:
			return 0, false
		}
	}
	return ret, true
}

func parsePiece(r rune) (board.Color, board.PieceKind, bool) {
	k, ok := board.ParsePieceKind(r)
	if !ok {
		return 0, 0, false
	}
	if unicode.IsUpper(r) {
		return board.White, k, true
	}
	return board.Black, k, true
}
