package game

import (
	"fmt"
	"strings"
)

// ParseBoard reads a position written row by row from the top, one character
// per cell: '.' empty, 'Y' yellow (Player1), 'R' red (Player2). Whitespace
// and '|' are ignored, so the output of String parses back.
func ParseBoard(s string) (Board, error) {
	var cells [Rows][Cols]Player
	n := 0
	for _, r := range s {
		var p Player
		switch r {
		case ' ', '\t', '\n', '\r', '|':
			continue
		case '.':
			p = Empty
		case 'Y', 'y':
			p = Player1
		case 'R', 'r':
			p = Player2
		default:
			return Board{}, fmt.Errorf("%w: unexpected character %q", ErrInvalidPosition, r)
		}
		if n >= Cells {
			return Board{}, fmt.Errorf("%w: more than %d cells", ErrInvalidPosition, Cells)
		}
		cells[n/Cols][n%Cols] = p
		n++
	}
	if n != Cells {
		return Board{}, fmt.Errorf("%w: got %d cells, want %d", ErrInvalidPosition, n, Cells)
	}
	return FromCells(cells)
}

func (b Board) String() string {
	var sb strings.Builder
	for y := 0; y < Rows; y++ {
		sb.WriteByte('|')
		for x := 0; x < Cols; x++ {
			if x > 0 {
				sb.WriteByte(' ')
			}
			switch b.cells[y][x] {
			case Player1:
				sb.WriteByte('Y')
			case Player2:
				sb.WriteByte('R')
			default:
				sb.WriteByte('.')
			}
		}
		sb.WriteString("|\n")
	}
	return sb.String()
}
