package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"connectfour/internal/bot"
	"connectfour/internal/game"
	"connectfour/internal/session"

	"github.com/gorilla/websocket"
)

type reply struct {
	Type   string                 `json:"type"`
	GameID string                 `json:"gameId"`
	Data   map[string]interface{} `json:"data"`
	Error  string                 `json:"error"`
}

func newTestManager() *session.Manager {
	return session.NewManager(bot.WithSchedule(bot.Schedule{Late: 2}), bot.WithCacheLimit(1<<12))
}

func newTestHub(timeout time.Duration) *Hub {
	return NewHub(newTestManager(), timeout)
}

func attach(h *Hub) *Client {
	c := &Client{ID: "c", Hub: h, Send: make(chan []byte, sendBufferSize)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

func drain(t *testing.T, c *Client) []reply {
	t.Helper()
	var out []reply
	for {
		select {
		case raw := <-c.Send:
			var r reply
			if err := json.Unmarshal(raw, &r); err != nil {
				t.Fatalf("bad payload %s: %v", raw, err)
			}
			out = append(out, r)
		default:
			return out
		}
	}
}

func types(rs []reply) string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Type
	}
	return strings.Join(names, ",")
}

func TestStartAndMove(t *testing.T) {
	h := newTestHub(time.Minute)
	c := attach(h)

	h.handle(c, []byte(`{"type":"start","username":"alice","color":1}`))
	got := drain(t, c)
	if types(got) != "game_start" || got[0].Data["yourTurn"] != true {
		t.Fatalf("start replies = %+v", got)
	}
	if c.GameID == "" || c.Username != "alice" {
		t.Fatalf("client not bound to game: %+v", c)
	}

	h.handle(c, []byte(`{"type":"move","column":0}`))
	got = drain(t, c)
	if types(got) != "move,move" {
		t.Fatalf("move replies = %s", types(got))
	}
	if got[0].Data["column"] != float64(0) || got[0].Data["player"] != float64(game.Player1) {
		t.Fatalf("first move = %+v", got[0].Data)
	}
	if got[1].Data["player"] != float64(game.Player2) {
		t.Fatalf("reply = %+v", got[1].Data)
	}
}

func TestStartAsRed(t *testing.T) {
	h := newTestHub(time.Minute)
	c := attach(h)

	h.handle(c, []byte(`{"type":"start","username":"bob","color":2}`))
	got := drain(t, c)
	if types(got) != "game_start,move" {
		t.Fatalf("replies = %s", types(got))
	}
	if got[0].Data["yourTurn"] != false || got[1].Data["player"] != float64(game.Player1) {
		t.Fatalf("replies = %+v", got)
	}
}

func TestErrors(t *testing.T) {
	h := newTestHub(time.Minute)
	c := attach(h)

	tests := []struct {
		raw  string
		want string
	}{
		{`not json`, "malformed message"},
		{`{"type":"dance"}`, "unknown message type dance"},
		{`{"type":"move","column":3}`, "no active game"},
		{`{"type":"resume","gameId":"nope"}`, session.ErrGameNotFound.Error()},
	}
	for _, tt := range tests {
		h.handle(c, []byte(tt.raw))
		got := drain(t, c)
		if len(got) != 1 || got[0].Type != "error" || got[0].Error != tt.want {
			t.Errorf("%s: replies = %+v", tt.raw, got)
		}
	}

	h.handle(c, []byte(`{"type":"start","username":"alice"}`))
	drain(t, c)
	h.handle(c, []byte(`{"type":"move"}`))
	if got := drain(t, c); len(got) != 1 || got[0].Error != "missing column" {
		t.Errorf("move without column: %+v", got)
	}
	h.handle(c, []byte(`{"type":"move","column":9}`))
	if got := drain(t, c); len(got) != 1 || !strings.HasPrefix(got[0].Error, game.ErrInvalidColumn.Error()) {
		t.Errorf("move to column 9: %+v", got)
	}
}

func TestResumeAfterDisconnect(t *testing.T) {
	h := newTestHub(time.Minute)
	c := attach(h)
	h.handle(c, []byte(`{"type":"start","username":"alice"}`))
	drain(t, c)
	id := c.GameID

	h.detach(c)
	h.mu.Lock()
	_, waiting := h.pending[id]
	h.mu.Unlock()
	if !waiting {
		t.Fatalf("disconnect did not start the reconnect timer")
	}

	c2 := attach(h)
	h.handle(c2, []byte(`{"type":"resume","gameId":"`+id+`"}`))
	got := drain(t, c2)
	if types(got) != "game_start" || got[0].GameID != id {
		t.Fatalf("resume replies = %+v", got)
	}
	h.mu.Lock()
	_, waiting = h.pending[id]
	h.mu.Unlock()
	if waiting {
		t.Fatalf("resume left the reconnect timer running")
	}

	h.handle(c2, []byte(`{"type":"move","column":3}`))
	if types(drain(t, c2)) != "move,move" {
		t.Fatalf("resumed game does not accept moves")
	}
}

func TestDisconnectTimeoutForfeits(t *testing.T) {
	h := newTestHub(10 * time.Millisecond)
	c := attach(h)
	h.handle(c, []byte(`{"type":"start","username":"alice"}`))
	drain(t, c)
	id := c.GameID

	h.detach(c)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := h.sessions.Get(id); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("game %s survived the reconnect timeout", id)
}

func TestServeWS(t *testing.T) {
	h := newTestHub(time.Minute)
	go h.Run()

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		ServeWS(h, conn)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteJSON(map[string]interface{}{"type": "start", "username": "carol", "color": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var r reply
	if err := conn.ReadJSON(&r); err != nil || r.Type != "game_start" {
		t.Fatalf("first reply = %+v, %v", r, err)
	}

	if err := conn.WriteJSON(map[string]interface{}{"type": "move", "column": 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := conn.ReadJSON(&r); err != nil || r.Type != "move" {
			t.Fatalf("move reply %d = %+v, %v", i, r, err)
		}
	}
}

// switchGames leaves a attached to the game b started, with a's own first
// game left behind. Games parked after b drops use the given timeout.
func switchGames(t *testing.T, h *Hub, timeout time.Duration) (a *Client, first, second string) {
	t.Helper()
	a = attach(h)
	h.handle(a, []byte(`{"type":"start","username":"alice"}`))
	drain(t, a)
	first = a.GameID

	b := attach(h)
	h.handle(b, []byte(`{"type":"start","username":"bob"}`))
	drain(t, b)
	second = b.GameID
	h.detach(b)
	h.mu.Lock()
	h.reconnectTimeout = timeout
	h.mu.Unlock()

	h.handle(a, []byte(`{"type":"resume","gameId":"`+second+`"}`))
	if got := drain(t, a); types(got) != "game_start" {
		t.Fatalf("resume replies = %+v", got)
	}
	return a, first, second
}

func TestResumeReleasesPreviousGame(t *testing.T) {
	h := newTestHub(time.Minute)
	a, first, second := switchGames(t, h, time.Minute)

	h.mu.Lock()
	owner, mapped := h.games[first]
	_, waiting := h.pending[first]
	current := h.games[second]
	h.mu.Unlock()
	if mapped {
		t.Fatalf("first game still attached to %v", owner)
	}
	if !waiting {
		t.Fatalf("first game has no reconnect timer")
	}
	if current != a {
		t.Fatalf("second game not attached to the resuming client")
	}

	c := attach(h)
	h.handle(c, []byte(`{"type":"resume","gameId":"`+first+`"}`))
	if got := drain(t, c); types(got) != "game_start" || got[0].GameID != first {
		t.Fatalf("first game cannot be resumed: %+v", got)
	}
}

func TestPreviousGameForfeitedAfterResume(t *testing.T) {
	h := newTestHub(time.Minute)
	a, first, second := switchGames(t, h, 20*time.Millisecond)

	gone := func(id string) bool {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if _, ok := h.sessions.Get(id); !ok {
				return true
			}
			time.Sleep(5 * time.Millisecond)
		}
		return false
	}
	if !gone(first) {
		t.Fatalf("first game leaked after the client moved on")
	}
	if _, ok := h.sessions.Get(second); !ok {
		t.Fatalf("attached game was dropped")
	}
	h.detach(a)
	if !gone(second) {
		t.Fatalf("second game survived the disconnect")
	}
}

// slowSessions blocks the first Get until release is closed.
type slowSessions struct {
	*session.Manager
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *slowSessions) Get(id string) (*game.GameState, bool) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.Manager.Get(id)
}

func TestDetachLeavesHubUnlockedWhileSessionBusy(t *testing.T) {
	sessions := &slowSessions{
		Manager: newTestManager(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	h := NewHub(sessions, time.Minute)
	c := attach(h)
	h.handle(c, []byte(`{"type":"start","username":"alice"}`))
	drain(t, c)

	done := make(chan struct{})
	go func() {
		h.detach(c)
		close(done)
	}()
	<-sessions.entered

	locked := make(chan struct{})
	go func() {
		h.mu.Lock()
		h.mu.Unlock()
		close(locked)
	}()
	select {
	case <-locked:
	case <-time.After(time.Second):
		close(sessions.release)
		t.Fatalf("hub lock held while waiting on the session")
	}

	close(sessions.release)
	<-done
	h.mu.Lock()
	_, waiting := h.pending[c.GameID]
	h.mu.Unlock()
	if !waiting {
		t.Fatalf("detach did not start the reconnect timer")
	}
}
