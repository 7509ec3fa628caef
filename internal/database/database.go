package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"connectfour/internal/bot"
	"connectfour/internal/game"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

var errUnfinished = errors.New("game is not finished")

type DB struct {
	conn *sql.DB
}

type PlayerStats struct {
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
}

// GameRecord is a finished game as stored in the games table.
type GameRecord struct {
	GameID  string `json:"gameId"`
	Player1 string `json:"player1"`
	Player2 string `json:"player2"`
	Winner  string `json:"winner"`
	Outcome string `json:"outcome"`
	Moves   string `json:"moves"`
}

const schema = `
CREATE TABLE IF NOT EXISTS players (
	username VARCHAR(255) PRIMARY KEY,
	wins INTEGER DEFAULT 0,
	losses INTEGER DEFAULT 0,
	draws INTEGER DEFAULT 0,
	created_at TIMESTAMP DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS games (
	id SERIAL PRIMARY KEY,
	game_id VARCHAR(255) UNIQUE,
	player1 VARCHAR(255),
	player2 VARCHAR(255),
	winner VARCHAR(255),
	outcome VARCHAR(32),
	moves_data TEXT,
	created_at TIMESTAMP DEFAULT NOW()
);`

// NewDB connects to url. An empty url gives a DB on which every method is
// a no-op.
func NewDB(ctx context.Context, url string) (*DB, error) {
	if url == "" {
		log.Warn().Msg("DATABASE_URL not set, database features disabled")
		return &DB{}, nil
	}

	conn, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info().Msg("database connection established")
	return &DB{conn: conn}, nil
}

func (db *DB) Enabled() bool {
	return db.conn != nil
}

func (db *DB) Initialize(ctx context.Context) error {
	if db.conn == nil {
		return nil
	}
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	log.Info().Msg("database tables initialized")
	return nil
}

// SaveGame stores a finished game and credits the human players with the
// result. The engine has no row in players.
func (db *DB) SaveGame(ctx context.Context, g *game.GameState) error {
	if db.conn == nil {
		return nil
	}
	if !g.IsFinished {
		return fmt.Errorf("save game %s: %w", g.ID, errUnfinished)
	}

	rec := recordOf(g)
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO games (game_id, player1, player2, winner, outcome, moves_data)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (game_id) DO NOTHING`,
		rec.GameID, rec.Player1, rec.Player2, rec.Winner, rec.Outcome, rec.Moves,
	)
	if err != nil {
		return fmt.Errorf("save game %s: %w", g.ID, err)
	}

	for _, d := range statDeltas(g) {
		if err := db.updatePlayerStats(ctx, d); err != nil {
			log.Error().Err(err).Str("username", d.Username).Msg("failed to update player stats")
		}
	}
	return nil
}

func (db *DB) updatePlayerStats(ctx context.Context, d PlayerStats) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO players (username, wins, losses, draws)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (username)
		 DO UPDATE SET
		   wins = players.wins + $2,
		   losses = players.losses + $3,
		   draws = players.draws + $4`,
		d.Username, d.Wins, d.Losses, d.Draws,
	)
	return err
}

func (db *DB) GetLeaderboard(ctx context.Context, limit int) ([]PlayerStats, error) {
	if db.conn == nil {
		return []PlayerStats{}, nil
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT username, wins, losses, draws
		 FROM players
		 ORDER BY wins DESC, losses ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	stats := []PlayerStats{}
	for rows.Next() {
		var s PlayerStats
		if err := rows.Scan(&s.Username, &s.Wins, &s.Losses, &s.Draws); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

func recordOf(g *game.GameState) GameRecord {
	return GameRecord{
		GameID:  g.ID,
		Player1: g.Player1,
		Player2: g.Player2,
		Winner:  g.Winner,
		Outcome: g.Result.Outcome.String(),
		Moves:   g.Columns(),
	}
}

// statDeltas returns the leaderboard change for each human in g.
func statDeltas(g *game.GameState) []PlayerStats {
	var deltas []PlayerStats
	for _, p := range []game.Player{game.Player1, game.Player2} {
		name := g.PlayerName(p)
		if name == bot.BotUsername || name == "" {
			continue
		}
		d := PlayerStats{Username: name}
		switch {
		case g.Result.Outcome == game.Draw:
			d.Draws = 1
		case g.Result.Winner == p:
			d.Wins = 1
		default:
			d.Losses = 1
		}
		deltas = append(deltas, d)
	}
	return deltas
}
