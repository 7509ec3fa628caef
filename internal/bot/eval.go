package bot

import "connectfour/internal/game"

// Window scores. An open opponent three weighs more than an own three:
// blocking a loss comes before building a win.
const (
	ownThreeScore      = 3
	ownTwoScore        = 2
	opponentThreeScore = -4
)

// ScoreWindow scores a single four-cell line from perspective's side.
// Lines holding both colours score zero.
func ScoreWindow(w [game.WinLength]game.Player, perspective game.Player) int {
	opponent := game.Opponent(perspective)
	var own, opp, empty int
	for _, p := range w {
		switch p {
		case perspective:
			own++
		case opponent:
			opp++
		case game.Empty:
			empty++
		}
	}

	switch {
	case own == 3 && empty == 1:
		return ownThreeScore
	case own == 2 && empty == 2:
		return ownTwoScore
	case opp == 3 && empty == 1:
		return opponentThreeScore
	}
	return 0
}

// Evaluate is the static evaluation used at the search frontier: the sum of
// ScoreWindow over every line on the board.
func Evaluate(b *game.Board, perspective game.Player) int {
	score := 0
	for i := 0; i < game.WindowCount; i++ {
		score += ScoreWindow(b.Window(i), perspective)
	}
	return score
}
