package database

import (
	"context"
	"reflect"
	"testing"

	"connectfour/internal/bot"
	"connectfour/internal/game"
)

func finished(t *testing.T, player1, player2 string, columns ...int) *game.GameState {
	t.Helper()
	g := game.NewGameState("g1", player1, player2)
	for _, c := range columns {
		if _, err := g.Play(c); err != nil {
			t.Fatalf("Play(%d): %v", c, err)
		}
	}
	return g
}

func TestDisabledDB(t *testing.T) {
	ctx := context.Background()
	db, err := NewDB(ctx, "")
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	if db.Enabled() {
		t.Fatalf("empty url should disable the database")
	}
	if err := db.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := db.SaveGame(ctx, game.NewGameState("g", "a", "b")); err != nil {
		t.Fatalf("SaveGame: %v", err)
	}
	stats, err := db.GetLeaderboard(ctx, 10)
	if err != nil || stats == nil || len(stats) != 0 {
		t.Fatalf("GetLeaderboard = %v, %v", stats, err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRecordOf(t *testing.T) {
	g := finished(t, "alice", bot.BotUsername, 0, 1, 0, 1, 0, 1, 0)
	want := GameRecord{
		GameID:  "g1",
		Player1: "alice",
		Player2: bot.BotUsername,
		Winner:  "alice",
		Outcome: "player1_wins",
		Moves:   "0,1,0,1,0,1,0",
	}
	if got := recordOf(g); got != want {
		t.Fatalf("recordOf = %+v, want %+v", got, want)
	}
}

func TestStatDeltas(t *testing.T) {
	tests := []struct {
		name string
		g    *game.GameState
		want []PlayerStats
	}{
		{
			name: "human beats engine",
			g:    finished(t, "alice", bot.BotUsername, 0, 1, 0, 1, 0, 1, 0),
			want: []PlayerStats{{Username: "alice", Wins: 1}},
		},
		{
			name: "engine beats human",
			g:    finished(t, bot.BotUsername, "bob", 0, 1, 0, 1, 0, 1, 0),
			want: []PlayerStats{{Username: "bob", Losses: 1}},
		},
		{
			name: "two humans",
			g:    finished(t, "alice", "bob", 0, 1, 0, 1, 0, 1, 0),
			want: []PlayerStats{{Username: "alice", Wins: 1}, {Username: "bob", Losses: 1}},
		},
	}
	for _, tt := range tests {
		if got := statDeltas(tt.g); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: statDeltas = %+v, want %+v", tt.name, got, tt.want)
		}
	}

	draw := game.NewGameState("d", "alice", bot.BotUsername)
	draw.IsFinished = true
	draw.Result = game.Result{Over: true, Outcome: game.Draw}
	if got := statDeltas(draw); !reflect.DeepEqual(got, []PlayerStats{{Username: "alice", Draws: 1}}) {
		t.Errorf("draw: statDeltas = %+v", got)
	}
}
