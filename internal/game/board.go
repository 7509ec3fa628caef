package game

import (
	"encoding/json"
	"fmt"
)

type Outcome uint8

const (
	Ongoing Outcome = iota
	Draw
	Player1Wins
	Player2Wins
)

func (o Outcome) String() string {
	switch o {
	case Draw:
		return "draw"
	case Player1Wins:
		return "player1_wins"
	case Player2Wins:
		return "player2_wins"
	}
	return "ongoing"
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// OutcomeFor maps a winner to its outcome; Empty maps to Draw.
func OutcomeFor(winner Player) Outcome {
	switch winner {
	case Player1:
		return Player1Wins
	case Player2:
		return Player2Wins
	}
	return Draw
}

// Result describes whether a board is finished. WinningCells holds exactly
// WinLength cells when someone won and is nil otherwise.
type Result struct {
	Over         bool    `json:"over"`
	Outcome      Outcome `json:"outcome"`
	Winner       Player  `json:"winner"`
	WinningCells []Cell  `json:"winningCells,omitempty"`
}

// Key identifies a position by its cell contents. Bit y*Cols+x is set in
// Occupied for every filled cell and in First for every Player1 cell.
type Key struct {
	Occupied uint64
	First    uint64
}

// Board is a value type: assigning it copies the whole position, so search
// branches can diverge without sharing state. Cells are stored as
// cells[y][x] with y = 0 the top row.
type Board struct {
	cells     [Rows][Cols]Player
	moveCount int
	last      Cell
	hasLast   bool
	key       Key
	winner    Player
	line      [WinLength]Cell
}

// columnOrder lists columns centre first. Central moves tend to be stronger,
// so searching them first tightens alpha-beta bounds early.
var columnOrder = [Cols]int{3, 4, 2, 5, 1, 6, 0}

func NewBoard() Board {
	return Board{}
}

// FromCells builds a board from raw cell contents. The move count and the
// terminal result are recomputed; the last move is unknown.
func FromCells(cells [Rows][Cols]Player) (Board, error) {
	var first, second int
	for x := 0; x < Cols; x++ {
		gap := false
		for y := Rows - 1; y >= 0; y-- {
			switch cells[y][x] {
			case Empty:
				gap = true
			case Player1, Player2:
				if gap {
					return Board{}, fmt.Errorf("%w: floating token at (%d,%d)", ErrInvalidPosition, x, y)
				}
				if cells[y][x] == Player1 {
					first++
				} else {
					second++
				}
			default:
				return Board{}, fmt.Errorf("%w: unknown marker %d at (%d,%d)", ErrInvalidPosition, cells[y][x], x, y)
			}
		}
	}
	if first != second && first != second+1 {
		return Board{}, fmt.Errorf("%w: %d yellow and %d red tokens", ErrInvalidPosition, first, second)
	}

	b := Board{cells: cells, moveCount: first + second}
	for y := 0; y < Rows; y++ {
		for x := 0; x < Cols; x++ {
			b.markKey(x, y, cells[y][x])
		}
	}
	b.scanAll()
	return b, nil
}

func (b *Board) Marker(x, y int) Player {
	if x < 0 || x >= Cols || y < 0 || y >= Rows {
		return Empty
	}
	return b.cells[y][x]
}

func (b *Board) Cells() [Rows][Cols]Player {
	return b.cells
}

func (b *Board) MoveCount() int {
	return b.moveCount
}

func (b *Board) LastMove() (Cell, bool) {
	return b.last, b.hasLast
}

func (b *Board) Key() Key {
	return b.key
}

// CurrentPlayer is derived from the number of tokens; Player1 always starts.
func (b *Board) CurrentPlayer() Player {
	if b.moveCount%2 == 0 {
		return Player1
	}
	return Player2
}

func (b *Board) Full() bool {
	return b.moveCount == Cells
}

// Winner returns the player with four in a row, or Empty.
func (b *Board) Winner() Player {
	return b.winner
}

// Over reports whether the game has ended by a win or a full board.
func (b *Board) Over() bool {
	return b.winner != Empty || b.moveCount == Cells
}

func (b *Board) Legal(column int) bool {
	if column < 0 || column >= Cols {
		return false
	}
	return b.cells[0][column] == Empty
}

// LegalMoves returns the playable columns, centre first. It is empty once
// the game is over.
func (b *Board) LegalMoves() []int {
	if b.winner != Empty {
		return nil
	}
	moves := make([]int, 0, Cols)
	for _, col := range columnOrder {
		if b.cells[0][col] == Empty {
			moves = append(moves, col)
		}
	}
	return moves
}

func (b *Board) Place(column int) error {
	_, err := b.Drop(column)
	return err
}

// Drop places a token for the current player in column and returns the cell
// it came to rest on. The board is unchanged when an error is returned.
func (b *Board) Drop(column int) (Cell, error) {
	if column < 0 || column >= Cols {
		return Cell{}, fmt.Errorf("%w: %d", ErrInvalidColumn, column)
	}
	if b.Over() {
		return Cell{}, ErrGameOver
	}
	if b.cells[0][column] != Empty {
		return Cell{}, ErrColumnFull
	}

	row := Rows - 1
	for b.cells[row][column] != Empty {
		row--
	}
	player := b.CurrentPlayer()
	b.cells[row][column] = player
	b.markKey(column, row, player)
	b.moveCount++
	b.last = Cell{X: column, Y: row}
	b.hasLast = true
	b.detectThrough(b.last)
	return b.last, nil
}

// IsTerminal reports the state of the game. Wins take precedence over a
// full board, since the last token can both fill the grid and connect four.
func (b *Board) IsTerminal() Result {
	if b.winner != Empty {
		cells := make([]Cell, WinLength)
		copy(cells, b.line[:])
		return Result{Over: true, Outcome: OutcomeFor(b.winner), Winner: b.winner, WinningCells: cells}
	}
	if b.moveCount == Cells {
		return Result{Over: true, Outcome: Draw}
	}
	return Result{Outcome: Ongoing}
}

func (b *Board) Reset() {
	*b = Board{}
}

func (b *Board) markKey(x, y int, p Player) {
	if p == Empty {
		return
	}
	bit := uint64(1) << uint(y*Cols+x)
	b.key.Occupied |= bit
	if p == Player1 {
		b.key.First |= bit
	}
}

// detectThrough checks only the windows containing c. A new line can only
// have been formed by the token just placed.
func (b *Board) detectThrough(c Cell) {
	for start := c.X - (WinLength - 1); start <= c.X; start++ {
		if b.connected(start, c.Y, 1, 0) {
			return
		}
	}

	// A vertical line needs three tokens below the new one.
	if c.Y <= Rows-WinLength && b.connected(c.X, c.Y, 0, 1) {
		return
	}

	for k := 0; k < WinLength; k++ {
		if b.connected(c.X-k, c.Y-k, 1, 1) {
			return
		}
		if b.connected(c.X-k, c.Y+k, 1, -1) {
			return
		}
	}
}

func (b *Board) scanAll() {
	for _, w := range windows {
		if b.connected(w.x, w.y, w.dx, w.dy) {
			return
		}
	}
}

// connected tests the window starting at (x, y) in direction (dx, dy) and
// records it as the winning line when all four cells hold the same player.
func (b *Board) connected(x, y, dx, dy int) bool {
	endX, endY := x+dx*(WinLength-1), y+dy*(WinLength-1)
	if x < 0 || x >= Cols || y < 0 || y >= Rows || endX < 0 || endX >= Cols || endY < 0 || endY >= Rows {
		return false
	}
	p := b.cells[y][x]
	if p == Empty {
		return false
	}
	for i := 1; i < WinLength; i++ {
		if b.cells[y+dy*i][x+dx*i] != p {
			return false
		}
	}
	b.winner = p
	for i := 0; i < WinLength; i++ {
		b.line[i] = Cell{X: x + dx*i, Y: y + dy*i}
	}
	return true
}

type boardJSON struct {
	Cells         [Rows][Cols]Player `json:"cells"`
	MoveCount     int                `json:"moveCount"`
	CurrentPlayer Player             `json:"currentPlayer"`
	LastMove      *Cell              `json:"lastMove"`
	Result        Result             `json:"result"`
}

func (b Board) MarshalJSON() ([]byte, error) {
	out := boardJSON{
		Cells:         b.cells,
		MoveCount:     b.moveCount,
		CurrentPlayer: b.CurrentPlayer(),
		Result:        b.IsTerminal(),
	}
	if b.hasLast {
		last := b.last
		out.LastMove = &last
	}
	return json.Marshal(out)
}
