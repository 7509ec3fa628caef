package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"connectfour/internal/bot"
	"connectfour/internal/game"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	EventGameStarted = "game_started"
	EventMoveMade    = "move_made"
	EventGameEnded   = "game_ended"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrNotYourTurn  = errors.New("not your turn")
)

// Session is one human playing against the engine.
type Session struct {
	mu       sync.Mutex
	state    *game.GameState
	human    game.Player
	computer game.Player
	engine   *bot.Engine
}

// Turn is everything that happened in response to one request: the human's
// move, if any, followed by the computer's reply.
type Turn struct {
	GameID string          `json:"gameId"`
	Moves  []game.Move     `json:"moves"`
	Result game.Result     `json:"result"`
	State  *game.GameState `json:"state"`
}

type event struct {
	kind string
	data interface{}
}

type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	engineOpts []bot.Option
	onEvent    func(string, interface{})
}

func NewManager(engineOpts ...bot.Option) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		engineOpts: engineOpts,
	}
}

func (m *Manager) SetEventCallback(callback func(string, interface{})) {
	m.onEvent = callback
}

func (m *Manager) Create(username string, color game.Player) (Turn, error) {
	return m.CreateContext(context.Background(), username, color)
}

// CreateContext starts a game for username playing color. When the human
// picks red the computer opens, and its move is part of the returned Turn.
// If that opening search fails no game is created.
func (m *Manager) CreateContext(ctx context.Context, username string, color game.Player) (Turn, error) {
	if !color.Valid() {
		return Turn{}, fmt.Errorf("%w: %d", bot.ErrInvalidPlayer, color)
	}
	if username == "" {
		username = "anonymous"
	}

	id := uuid.New().String()
	player1, player2 := username, bot.BotUsername
	if color == game.Player2 {
		player1, player2 = bot.BotUsername, username
	}
	s := &Session{
		state:    game.NewGameState(id, player1, player2),
		human:    color,
		computer: game.Opponent(color),
		engine:   bot.NewEngine(m.engineOpts...),
	}

	events := []event{{EventGameStarted, s.state.Clone()}}
	var moves []game.Move
	if s.state.Board.CurrentPlayer() == s.computer {
		mv, err := s.computerMove(ctx)
		if err != nil {
			return Turn{}, err
		}
		moves = append(moves, mv)
		events = append(events, moveEvent(s.state, mv))
	}
	turn := s.turn(moves)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	log.Info().Str("game_id", id).Str("username", username).Stringer("color", color).Msg("game created")

	m.emit(events)
	return turn, nil
}

func (m *Manager) Move(id string, column int) (Turn, error) {
	return m.MoveContext(context.Background(), id, column)
}

// MoveContext plays the human's column and, unless that ends the game, the
// computer's answer. A move is all or nothing: if the search fails, the
// human move is taken back and no event is emitted.
func (m *Manager) MoveContext(ctx context.Context, id string, column int) (Turn, error) {
	s, ok := m.lookup(id)
	if !ok {
		return Turn{}, ErrGameNotFound
	}

	s.mu.Lock()
	if s.state.IsFinished {
		s.mu.Unlock()
		return Turn{}, game.ErrGameOver
	}
	if s.state.Board.CurrentPlayer() != s.human {
		s.mu.Unlock()
		return Turn{}, ErrNotYourTurn
	}

	before := s.state.Clone()
	mv, err := s.state.Play(column)
	if err != nil {
		s.mu.Unlock()
		return Turn{}, err
	}
	moves := []game.Move{mv}
	events := []event{moveEvent(s.state, mv)}

	if !s.state.IsFinished {
		reply, err := s.computerMove(ctx)
		if err != nil {
			s.state = before
			s.mu.Unlock()
			return Turn{}, err
		}
		moves = append(moves, reply)
		events = append(events, moveEvent(s.state, reply))
	}
	if s.state.IsFinished {
		events = append(events, event{EventGameEnded, s.state.Clone()})
		log.Info().Str("game_id", id).Str("winner", s.state.Winner).Int("moves", len(s.state.Moves)).Msg("game finished")
	}
	turn := s.turn(moves)
	s.mu.Unlock()

	m.emit(events)
	return turn, nil
}

// Abandon ends a running game as a loss for the human, e.g. after the
// client disconnected for too long.
func (m *Manager) Abandon(id string) bool {
	s, ok := m.lookup(id)
	if !ok {
		return false
	}

	s.mu.Lock()
	if s.state.IsFinished {
		s.mu.Unlock()
		return false
	}
	s.state.Forfeit(s.human)
	snapshot := s.state.Clone()
	s.mu.Unlock()

	log.Info().Str("game_id", id).Msg("game abandoned")
	m.emit([]event{{EventGameEnded, snapshot}})
	return true
}

func (m *Manager) Get(id string) (*game.GameState, bool) {
	s, ok := m.lookup(id)
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), true
}

// Color returns the color the human plays in game id.
func (m *Manager) Color(id string) (game.Player, bool) {
	s, ok := m.lookup(id)
	if !ok {
		return game.Empty, false
	}
	return s.human, true
}

func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		delete(m.sessions, id)
		log.Debug().Str("game_id", id).Msg("game removed")
	}
}

// All returns snapshots of every game, oldest first.
func (m *Manager) All() []*game.GameState {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	games := make([]*game.GameState, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		games = append(games, s.state.Clone())
		s.mu.Unlock()
	}
	sort.Slice(games, func(i, j int) bool {
		return games[i].StartedAt.Before(games[j].StartedAt)
	})
	return games
}

func (m *Manager) lookup(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) emit(events []event) {
	if m.onEvent == nil {
		return
	}
	for _, ev := range events {
		m.onEvent(ev.kind, ev.data)
	}
}

// computerMove must be called with s.mu held or before s is shared.
func (s *Session) computerMove(ctx context.Context) (game.Move, error) {
	col, err := s.engine.BestMoveContext(ctx, &s.state.Board, s.computer)
	if err != nil {
		return game.Move{}, fmt.Errorf("engine: %w", err)
	}
	stats := s.engine.Stats()
	log.Debug().
		Str("game_id", s.state.ID).
		Int("column", col).
		Int("depth", stats.Depth).
		Uint64("nodes", stats.Nodes).
		Dur("elapsed", stats.Elapsed).
		Msg("computer move")
	return s.state.Play(col)
}

func (s *Session) turn(moves []game.Move) Turn {
	if moves == nil {
		moves = []game.Move{}
	}
	return Turn{
		GameID: s.state.ID,
		Moves:  moves,
		Result: s.state.Result,
		State:  s.state.Clone(),
	}
}

func moveEvent(g *game.GameState, mv game.Move) event {
	return event{EventMoveMade, map[string]interface{}{
		"gameId": g.ID,
		"player": g.PlayerName(mv.Player),
		"move":   mv,
	}}
}
