package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"connectfour/internal/game"
	"connectfour/internal/session"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	pingInterval   = 30 * time.Second
	sendBufferSize = 64
	maxMessageSize = 4096
)

type Client struct {
	ID       string
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	Username string
	GameID   string
}

// Message is used in both directions. Clients send start, move and resume;
// the server answers with game_start, move, game_over and error.
type Message struct {
	Type     string      `json:"type"`
	Data     interface{} `json:"data,omitempty"`
	Username string      `json:"username,omitempty"`
	Color    game.Player `json:"color,omitempty"`
	Column   *int        `json:"column,omitempty"`
	GameID   string      `json:"gameId,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Sessions is the part of session.Manager the hub drives.
type Sessions interface {
	Create(username string, color game.Player) (session.Turn, error)
	Move(id string, column int) (session.Turn, error)
	Get(id string) (*game.GameState, bool)
	Color(id string) (game.Player, bool)
	Abandon(id string) bool
	Remove(id string)
}

type Hub struct {
	mu               sync.Mutex
	clients          map[*Client]bool
	games            map[string]*Client
	pending          map[string]*time.Timer
	register         chan *Client
	unregister       chan *Client
	sessions         Sessions
	reconnectTimeout time.Duration
}

func NewHub(sessions Sessions, reconnectTimeout time.Duration) *Hub {
	return &Hub{
		clients:          make(map[*Client]bool),
		games:            make(map[string]*Client),
		pending:          make(map[string]*time.Timer),
		register:         make(chan *Client),
		unregister:       make(chan *Client),
		sessions:         sessions,
		reconnectTimeout: reconnectTimeout,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Debug().Str("client_id", client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.detach(client)
		}
	}
}

// detach drops a closed client. If it was in the middle of a game, the game
// is forfeited unless someone resumes it within the reconnect timeout.
func (h *Hub) detach(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.Send)

	id := client.GameID
	owned := id != "" && h.games[id] == client
	if owned {
		delete(h.games, id)
	}
	h.mu.Unlock()

	if !owned {
		log.Debug().Str("client_id", client.ID).Msg("client unregistered")
		return
	}
	h.park(id, client.ID)
}

// park starts the reconnect timer for a game nobody is attached to. The
// session is read without h.mu held, since a search may be holding it.
func (h *Hub) park(id, clientID string) {
	state, ok := h.sessions.Get(id)
	if !ok || state.IsFinished {
		h.sessions.Remove(id)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, attached := h.games[id]; attached {
		return
	}
	if _, waiting := h.pending[id]; waiting {
		return
	}
	log.Info().
		Str("client_id", clientID).
		Str("game_id", id).
		Dur("timeout", h.reconnectTimeout).
		Msg("game left without a connection, waiting for reconnection")
	h.pending[id] = time.AfterFunc(h.reconnectTimeout, func() { h.expire(id) })
}

func (h *Hub) expire(id string) {
	h.mu.Lock()
	if _, ok := h.pending[id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.pending, id)
	h.mu.Unlock()

	if h.sessions.Abandon(id) {
		log.Info().Str("game_id", id).Msg("player did not reconnect, game forfeited")
	}
	h.sessions.Remove(id)
}

func (h *Hub) handle(c *Client, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn().Err(err).Str("client_id", c.ID).Msg("error unmarshaling message")
		h.sendError(c, "malformed message")
		return
	}

	switch msg.Type {
	case "start":
		h.handleStart(c, msg)
	case "move":
		h.handleMove(c, msg)
	case "resume":
		h.handleResume(c, msg)
	default:
		h.sendError(c, "unknown message type "+msg.Type)
	}
}

func (h *Hub) handleStart(c *Client, msg Message) {
	color := msg.Color
	if color == game.Empty {
		color = game.Player1
	}
	h.release(c)

	turn, err := h.sessions.Create(msg.Username, color)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}

	h.mu.Lock()
	c.Username = turn.State.PlayerName(color)
	c.GameID = turn.GameID
	h.games[turn.GameID] = c
	h.mu.Unlock()

	h.sendStart(c, turn.State, color)
	h.sendTurn(c, turn)
}

func (h *Hub) handleMove(c *Client, msg Message) {
	if msg.Column == nil {
		h.sendError(c, "missing column")
		return
	}
	h.mu.Lock()
	id := c.GameID
	h.mu.Unlock()
	if id == "" {
		h.sendError(c, "no active game")
		return
	}

	turn, err := h.sessions.Move(id, *msg.Column)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}
	h.sendTurn(c, turn)
}

func (h *Hub) handleResume(c *Client, msg Message) {
	state, ok := h.sessions.Get(msg.GameID)
	if !ok {
		h.sendError(c, session.ErrGameNotFound.Error())
		return
	}
	color, _ := h.sessions.Color(msg.GameID)

	h.mu.Lock()
	if prev, taken := h.games[msg.GameID]; taken && prev != c {
		h.mu.Unlock()
		h.sendError(c, "game is already attached to another connection")
		return
	}
	if timer, ok := h.pending[msg.GameID]; ok {
		timer.Stop()
		delete(h.pending, msg.GameID)
	}
	previous := c.GameID
	if previous == msg.GameID || h.games[previous] != c {
		previous = ""
	}
	if previous != "" {
		delete(h.games, previous)
	}
	c.Username = state.PlayerName(color)
	c.GameID = msg.GameID
	h.games[msg.GameID] = c
	h.mu.Unlock()

	if previous != "" {
		h.park(previous, c.ID)
	}

	log.Info().Str("client_id", c.ID).Str("game_id", msg.GameID).Msg("client resumed game")
	h.sendStart(c, state, color)
	if state.IsFinished {
		h.sendGameOver(c, state.Result, state.Winner)
	}
}

// release detaches c from its current game before it starts a new one.
func (h *Hub) release(c *Client) {
	h.mu.Lock()
	id := c.GameID
	if id != "" && h.games[id] == c {
		delete(h.games, id)
	}
	c.GameID = ""
	h.mu.Unlock()

	if id != "" {
		h.sessions.Abandon(id)
		h.sessions.Remove(id)
	}
}

func (h *Hub) sendStart(c *Client, state *game.GameState, color game.Player) {
	h.send(c, Message{
		Type:   "game_start",
		GameID: state.ID,
		Data: map[string]interface{}{
			"gameId":   state.ID,
			"player1":  state.Player1,
			"player2":  state.Player2,
			"color":    color,
			"yourTurn": !state.IsFinished && state.CurrentTurn == color,
			"state":    state,
		},
	})
}

func (h *Hub) sendTurn(c *Client, turn session.Turn) {
	for _, mv := range turn.Moves {
		h.send(c, Message{
			Type:   "move",
			GameID: turn.GameID,
			Data: map[string]interface{}{
				"row":    mv.Row,
				"column": mv.Column,
				"player": mv.Player,
			},
		})
	}
	if turn.Result.Over {
		h.sendGameOver(c, turn.Result, turn.State.Winner)
	}
}

func (h *Hub) sendGameOver(c *Client, result game.Result, winnerName string) {
	h.send(c, Message{
		Type: "game_over",
		Data: map[string]interface{}{
			"winner":       result.Winner,
			"winnerName":   winnerName,
			"outcome":      result.Outcome,
			"winningCells": result.WinningCells,
		},
	})
}

func (h *Hub) sendError(c *Client, message string) {
	h.send(c, Message{Type: "error", Error: message})
}

func (h *Hub) send(c *Client, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("error marshaling message")
		return
	}
	select {
	case c.Send <- payload:
	default:
		log.Warn().Str("client_id", c.ID).Str("type", msg.Type).Msg("send buffer full, dropping message")
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("client_id", c.ID).Msg("websocket read error")
			}
			return
		}
		c.Hub.handle(c, message)
	}
}

// WritePump forwards Send to the connection and pings idle connections.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	lastWrite := time.Now()

	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
			lastWrite = time.Now()
		case <-ticker.C:
			if time.Since(lastWrite) < pingInterval {
				continue
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			lastWrite = time.Now()
		}
	}
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.New().String(),
		Hub:  hub,
		Conn: conn,
		Send: make(chan []byte, sendBufferSize),
	}
}

func ServeWS(hub *Hub, conn *websocket.Conn) {
	client := newClient(hub, conn)
	hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}
