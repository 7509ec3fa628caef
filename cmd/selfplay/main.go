// Command selfplay runs engine-against-engine games in parallel and prints
// how they ended.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"runtime"
	"sync"

	"connectfour/internal/bot"
	"connectfour/internal/config"
	"connectfour/internal/game"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type options struct {
	games       int
	parallel    int
	openingPlys int
	seed        int64
	depth       int
}

type tally struct {
	mu      sync.Mutex
	results map[game.Outcome]int
	plies   int
}

func (t *tally) add(res game.Result, plies int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results[res.Outcome]++
	t.plies += plies
}

func main() {
	var opts options
	flag.IntVar(&opts.games, "games", 20, "number of games")
	flag.IntVar(&opts.parallel, "parallel", runtime.NumCPU(), "games played at once")
	flag.IntVar(&opts.openingPlys, "opening", 4, "random plies played before the engines take over")
	flag.Int64Var(&opts.seed, "seed", 1, "seed for the random openings")
	flag.IntVar(&opts.depth, "depth", 0, "fixed search depth; 0 uses the default schedule")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	config.SetupLogging(*level, "console", os.Stderr)

	if err := run(context.Background(), os.Stdout, opts); err != nil {
		log.Fatal().Err(err).Msg("self-play failed")
	}
}

func run(ctx context.Context, out io.Writer, opts options) error {
	t := &tally{results: make(map[game.Outcome]int)}

	g, ctx := errgroup.WithContext(ctx)
	if opts.parallel > 0 {
		g.SetLimit(opts.parallel)
	}
	for i := 0; i < opts.games; i++ {
		i := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(opts.seed + int64(i)))
			res, plies, err := playGame(ctx, rng, opts)
			if err != nil {
				return fmt.Errorf("game %d: %w", i, err)
			}
			log.Debug().Int("game", i).Stringer("outcome", res.Outcome).Int("plies", plies).Msg("game finished")
			t.add(res, plies)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(out, "games:        %d\n", opts.games)
	fmt.Fprintf(out, "yellow wins:  %d\n", t.results[game.Player1Wins])
	fmt.Fprintf(out, "red wins:     %d\n", t.results[game.Player2Wins])
	fmt.Fprintf(out, "draws:        %d\n", t.results[game.Draw])
	if opts.games > 0 {
		fmt.Fprintf(out, "avg length:   %.1f plies\n", float64(t.plies)/float64(opts.games))
	}
	return nil
}

// playGame plays random opening moves and then lets one engine per side
// finish the game.
func playGame(ctx context.Context, rng *rand.Rand, opts options) (game.Result, int, error) {
	var engineOpts []bot.Option
	if opts.depth > 0 {
		engineOpts = append(engineOpts, bot.WithSchedule(bot.Schedule{Late: opts.depth}))
	}
	engines := map[game.Player]*bot.Engine{
		game.Player1: bot.NewEngine(engineOpts...),
		game.Player2: bot.NewEngine(engineOpts...),
	}

	b := game.NewBoard()
	for i := 0; i < opts.openingPlys && !b.Over(); i++ {
		legal := b.LegalMoves()
		if err := b.Place(legal[rng.Intn(len(legal))]); err != nil {
			return game.Result{}, 0, err
		}
	}
	for !b.Over() {
		mover := b.CurrentPlayer()
		col, err := engines[mover].BestMoveContext(ctx, &b, mover)
		if err != nil {
			return game.Result{}, 0, err
		}
		if err := b.Place(col); err != nil {
			return game.Result{}, 0, err
		}
	}
	return b.IsTerminal(), b.MoveCount(), nil
}
