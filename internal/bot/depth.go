package bot

import "connectfour/internal/game"

type DepthStep struct {
	Below int // applies while the move count is below this
	Depth int
}

// Schedule maps the number of tokens on the board to a search depth in
// plies. Later positions have fewer continuations, so they get more depth.
type Schedule struct {
	Steps []DepthStep
	Late  int
}

var DefaultSchedule = Schedule{
	Steps: []DepthStep{
		{Below: 12, Depth: 4},
		{Below: 20, Depth: 5},
		{Below: 26, Depth: 6},
		{Below: 34, Depth: 7},
	},
	Late: 8,
}

// Depth never exceeds the number of empty cells, so near the end the
// search always reaches the real end of the game.
func (s Schedule) Depth(moveCount int) int {
	depth := s.Late
	for _, step := range s.Steps {
		if moveCount < step.Below {
			depth = step.Depth
			break
		}
	}
	if remaining := game.Cells - moveCount; remaining < depth {
		depth = remaining
	}
	if depth < 1 {
		depth = 1
	}
	return depth
}
