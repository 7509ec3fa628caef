// Command play is a terminal game of connect four against the engine.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"connectfour/internal/bot"
	"connectfour/internal/config"
	"connectfour/internal/game"

	"github.com/rs/zerolog/log"
)

type options struct {
	human game.Player
	depth int
}

func main() {
	color := flag.String("color", "yellow", "your color: yellow moves first, red second")
	depth := flag.Int("depth", 0, "fixed search depth; 0 uses the default schedule")
	level := flag.String("log-level", "warn", "log level")
	flag.Parse()

	config.SetupLogging(*level, "console", os.Stderr)

	human, err := parseColor(*color)
	if err != nil {
		log.Fatal().Err(err).Msg("bad -color")
	}
	if err := run(os.Stdin, os.Stdout, options{human: human, depth: *depth}); err != nil {
		log.Fatal().Err(err).Msg("game aborted")
	}
}

func parseColor(s string) (game.Player, error) {
	switch strings.ToLower(s) {
	case "yellow", "y", "1":
		return game.Player1, nil
	case "red", "r", "2":
		return game.Player2, nil
	}
	return game.Empty, fmt.Errorf("unknown color %q", s)
}

func run(in io.Reader, out io.Writer, opts options) error {
	var engineOpts []bot.Option
	if opts.depth > 0 {
		engineOpts = append(engineOpts, bot.WithSchedule(bot.Schedule{Late: opts.depth}))
	}
	engine := bot.NewEngine(engineOpts...)
	computer := game.Opponent(opts.human)
	board := game.NewBoard()
	scanner := bufio.NewScanner(in)

	fmt.Fprintf(out, "You play %s. Columns are numbered 1-%d.\n", opts.human, game.Cols)
	for !board.Over() {
		if board.CurrentPlayer() == computer {
			col, err := engine.BestMove(&board, computer)
			if err != nil {
				return err
			}
			if err := board.Place(col); err != nil {
				return err
			}
			stats := engine.Stats()
			fmt.Fprintf(out, "Computer plays %d (depth %d, %d nodes)\n", col+1, stats.Depth, stats.Nodes)
			continue
		}

		fmt.Fprint(out, board.String(), header(), "Your move: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			fmt.Fprintln(out)
			return io.ErrUnexpectedEOF
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "q" || line == "quit" {
			fmt.Fprintln(out, "Bye.")
			return nil
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			fmt.Fprintf(out, "%q is not a column\n", line)
			continue
		}
		if err := board.Place(n - 1); err != nil {
			switch {
			case errors.Is(err, game.ErrColumnFull):
				fmt.Fprintf(out, "Column %d is full\n", n)
			case errors.Is(err, game.ErrInvalidColumn):
				fmt.Fprintf(out, "Pick a column between 1 and %d\n", game.Cols)
			default:
				return err
			}
		}
	}

	fmt.Fprint(out, board.String())
	switch res := board.IsTerminal(); {
	case res.Outcome == game.Draw:
		fmt.Fprintln(out, "Draw.")
	case res.Winner == opts.human:
		fmt.Fprintln(out, "You win!")
	default:
		fmt.Fprintln(out, "The computer wins.")
	}
	return nil
}

func header() string {
	var sb strings.Builder
	sb.WriteString(" ")
	for c := 1; c <= game.Cols; c++ {
		fmt.Fprintf(&sb, "%d ", c)
	}
	sb.WriteString("\n")
	return sb.String()
}
