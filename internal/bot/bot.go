package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"connectfour/internal/game"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const BotUsername = "AI Bot"

const (
	// WinScore is the value of a decided game. It is larger than any sum
	// Evaluate can produce, so a real win always beats a good-looking frontier.
	WinScore = 1000

	infinity         = 1 << 30
	ctxCheckInterval = 1 << 10
)

var (
	ErrNotYourTurn   = errors.New("not the engine's turn")
	ErrInvalidPlayer = errors.New("invalid player")
	ErrNoLegalMoves  = errors.New("no legal moves")
)

type Stats struct {
	Depth       int
	Score       int
	Nodes       uint64
	CacheProbes uint64
	CacheHits   uint64
	CacheSize   int
	Elapsed     time.Duration
}

// Engine picks moves with depth-limited minimax and alpha-beta pruning.
// An Engine is not safe for concurrent use; give each game its own.
type Engine struct {
	schedule Schedule
	cache    *Cache
	logger   zerolog.Logger
	stats    Stats
}

type Option func(*Engine)

func WithSchedule(s Schedule) Option {
	return func(e *Engine) {
		e.schedule = s
	}
}

func WithCacheLimit(limit int) Option {
	return func(e *Engine) {
		e.cache = NewCache(limit)
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		schedule: DefaultSchedule,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = NewCache(DefaultCacheLimit)
	}
	return e
}

// Stats describes the most recent BestMove call.
func (e *Engine) Stats() Stats {
	return e.stats
}

func (e *Engine) BestMove(b *game.Board, perspective game.Player) (int, error) {
	return e.BestMoveContext(context.Background(), b, perspective)
}

// BestMoveContext returns the column that is best for perspective, which
// must be the player to move. A move that wins on the spot is returned
// without searching. The search stops with ctx.Err() once ctx is done.
func (e *Engine) BestMoveContext(ctx context.Context, b *game.Board, perspective game.Player) (int, error) {
	if err := checkTurn(b, perspective); err != nil {
		return 0, err
	}
	start := time.Now()
	e.stats = Stats{}

	if col, ok := winningMove(b); ok {
		e.stats.Score = WinScore
		e.stats.Elapsed = time.Since(start)
		e.logger.Debug().
			Int("column", col).
			Str("player", perspective.String()).
			Msg("taking immediate win")
		return col, nil
	}

	depth := e.schedule.Depth(b.MoveCount())
	col, score, err := e.searchRoot(ctx, b, perspective, depth)
	if err != nil {
		return 0, err
	}

	e.stats.Depth = depth
	e.stats.Score = score
	e.stats.CacheSize = e.cache.Len()
	e.stats.Elapsed = time.Since(start)
	e.logger.Debug().
		Int("column", col).
		Int("score", score).
		Int("depth", depth).
		Uint64("nodes", e.stats.Nodes).
		Uint64("cache_probes", e.stats.CacheProbes).
		Uint64("cache_hits", e.stats.CacheHits).
		Int("cache_size", e.stats.CacheSize).
		Dur("elapsed", e.stats.Elapsed).
		Msg("search finished")
	return col, nil
}

// Score returns the minimax value of b for perspective, searching depth
// plies with pruning and the cache. Either player may be to move.
func (e *Engine) Score(b *game.Board, perspective game.Player, depth int) (int, error) {
	if !perspective.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPlayer, perspective)
	}
	if depth < 0 {
		depth = 0
	}
	return e.minimax(context.Background(), b, depth, -infinity, infinity, perspective)
}

func checkTurn(b *game.Board, perspective game.Player) error {
	if !perspective.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPlayer, perspective)
	}
	if b.Over() {
		return fmt.Errorf("%w: %w", ErrNoLegalMoves, game.ErrGameOver)
	}
	if current := b.CurrentPlayer(); current != perspective {
		return fmt.Errorf("%w: %v to move", ErrNotYourTurn, current)
	}
	return nil
}

func winningMove(b *game.Board) (int, bool) {
	mover := b.CurrentPlayer()
	for _, col := range b.LegalMoves() {
		next := *b
		if err := next.Place(col); err != nil {
			continue
		}
		if next.Winner() == mover {
			return col, true
		}
	}
	return 0, false
}

// searchRoot plays every legal move and keeps the first one with the
// highest score. Ties go to the earlier column in LegalMoves order.
func (e *Engine) searchRoot(ctx context.Context, b *game.Board, perspective game.Player, depth int) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	alpha, beta := -infinity, infinity
	best, bestScore := -1, -infinity
	for _, col := range b.LegalMoves() {
		next := *b
		if err := next.Place(col); err != nil {
			return 0, 0, err
		}
		score, err := e.minimax(ctx, &next, depth-1, alpha, beta, perspective)
		if err != nil {
			return 0, 0, err
		}
		if score > bestScore {
			bestScore = score
			best = col
		}
		if bestScore > alpha {
			alpha = bestScore
		}
	}
	if best < 0 {
		return 0, 0, game.ErrGameOver
	}
	return best, bestScore, nil
}

func (e *Engine) minimax(ctx context.Context, b *game.Board, depth, alpha, beta int, perspective game.Player) (int, error) {
	e.stats.Nodes++
	if e.stats.Nodes%ctxCheckInterval == 0 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}

	if b.Over() {
		return terminalScore(b.Winner(), perspective), nil
	}
	if depth == 0 {
		return Evaluate(b, perspective), nil
	}

	key := cacheKey{board: b.Key(), depth: int8(depth), perspective: perspective}
	alphaOrig, betaOrig := alpha, beta
	e.stats.CacheProbes++
	if entry, ok := e.cache.probe(key); ok {
		e.stats.CacheHits++
		score := int(entry.score)
		switch entry.bound {
		case boundExact:
			return score, nil
		case boundLower:
			if score > alpha {
				alpha = score
			}
		case boundUpper:
			if score < beta {
				beta = score
			}
		}
		if beta <= alpha {
			return score, nil
		}
	}

	maximize := b.CurrentPlayer() == perspective
	best := infinity
	if maximize {
		best = -infinity
	}
	for _, col := range b.LegalMoves() {
		next := *b
		if err := next.Place(col); err != nil {
			return 0, err
		}
		score, err := e.minimax(ctx, &next, depth-1, alpha, beta, perspective)
		if err != nil {
			return 0, err
		}
		if maximize {
			if score > best {
				best = score
			}
			if best > alpha {
				alpha = best
			}
		} else {
			if score < best {
				best = score
			}
			if best < beta {
				beta = best
			}
		}
		if beta <= alpha {
			break
		}
	}

	e.cache.store(key, cacheEntry{score: int32(best), bound: boundFor(best, alphaOrig, betaOrig)})
	return best, nil
}

// terminalScore does not decay with depth: a win is a win however far away.
func terminalScore(winner, perspective game.Player) int {
	switch winner {
	case game.Empty:
		return 0
	case perspective:
		return WinScore
	}
	return -WinScore
}
