package game

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	Rows      = 6
	Cols      = 7
	WinLength = 4
	Cells     = Rows * Cols
)

// Player is the marker stored in a cell. The numeric values are part of the
// JSON contract with clients: 0 empty, 1 yellow (moves first), 2 red.
type Player uint8

const (
	Empty   Player = 0
	Player1 Player = 1
	Player2 Player = 2
)

var (
	ErrInvalidColumn   = errors.New("invalid column")
	ErrColumnFull      = errors.New("column is full")
	ErrGameOver        = errors.New("game is already over")
	ErrInvalidPosition = errors.New("invalid position")
)

func (p Player) Valid() bool {
	return p == Player1 || p == Player2
}

func (p Player) String() string {
	switch p {
	case Player1:
		return "yellow"
	case Player2:
		return "red"
	case Empty:
		return "empty"
	}
	return "player(" + strconv.Itoa(int(p)) + ")"
}

// Opponent returns the other player. Empty has no opponent.
func Opponent(p Player) Player {
	switch p {
	case Player1:
		return Player2
	case Player2:
		return Player1
	}
	return Empty
}

type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Move struct {
	Column int    `json:"column"`
	Row    int    `json:"row"`
	Player Player `json:"player"`
}

// GameState is one recorded game between two named players.
type GameState struct {
	ID          string    `json:"id"`
	Player1     string    `json:"player1"`
	Player2     string    `json:"player2"`
	Board       Board     `json:"board"`
	Moves       []Move    `json:"moves"`
	CurrentTurn Player    `json:"currentTurn"`
	Winner      string    `json:"winner,omitempty"`
	Result      Result    `json:"result"`
	IsFinished  bool      `json:"isFinished"`
	StartedAt   time.Time `json:"startedAt"`
}

func NewGameState(id, player1, player2 string) *GameState {
	return &GameState{
		ID:          id,
		Player1:     player1,
		Player2:     player2,
		Board:       NewBoard(),
		Moves:       []Move{},
		CurrentTurn: Player1,
		StartedAt:   time.Now(),
	}
}

// Play drops a token for the player to move and records the result.
func (g *GameState) Play(column int) (Move, error) {
	player := g.Board.CurrentPlayer()
	cell, err := g.Board.Drop(column)
	if err != nil {
		return Move{}, err
	}

	move := Move{Column: cell.X, Row: cell.Y, Player: player}
	g.Moves = append(g.Moves, move)
	g.CurrentTurn = g.Board.CurrentPlayer()

	g.Result = g.Board.IsTerminal()
	if g.Result.Over {
		g.IsFinished = true
		g.Winner = g.WinnerName()
	}
	return move, nil
}

// Forfeit ends an unfinished game in favour of the opponent of loser.
func (g *GameState) Forfeit(loser Player) {
	if g.IsFinished {
		return
	}
	g.IsFinished = true
	g.Result = Result{Over: true, Outcome: OutcomeFor(Opponent(loser)), Winner: Opponent(loser)}
	g.Winner = g.WinnerName()
}

func (g *GameState) PlayerName(p Player) string {
	switch p {
	case Player1:
		return g.Player1
	case Player2:
		return g.Player2
	}
	return ""
}

// WinnerName is the winner's name, "Draw", or empty while the game runs.
func (g *GameState) WinnerName() string {
	switch {
	case !g.Result.Over:
		return ""
	case g.Result.Outcome == Draw:
		return "Draw"
	}
	return g.PlayerName(g.Result.Winner)
}

// Columns returns the played columns in order, e.g. "3,3,4".
func (g *GameState) Columns() string {
	parts := make([]string, len(g.Moves))
	for i, m := range g.Moves {
		parts[i] = strconv.Itoa(m.Column)
	}
	return strings.Join(parts, ",")
}

func (g *GameState) Clone() *GameState {
	c := *g
	c.Moves = append([]Move(nil), g.Moves...)
	c.Result.WinningCells = append([]Cell(nil), g.Result.WinningCells...)
	return &c
}
