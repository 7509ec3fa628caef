package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"connectfour/internal/bot"
	"connectfour/internal/database"
	"connectfour/internal/game"
	"connectfour/internal/session"
	"connectfour/internal/websocket"

	"github.com/gorilla/mux"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const leaderboardSize = 10

var upgrader = ws.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type api struct {
	sessions    *session.Manager
	hub         *websocket.Hub
	db          *database.DB
	frontendDir string
}

type createRequest struct {
	Username string      `json:"username"`
	Color    game.Player `json:"color"`
}

type moveRequest struct {
	Column *int `json:"column"`
}

func (a *api) routes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/ws", a.serveWS)
	router.HandleFunc("/api/health", a.health).Methods("GET")
	router.HandleFunc("/api/games", a.createGame).Methods("POST")
	router.HandleFunc("/api/games/{id}", a.getGame).Methods("GET")
	router.HandleFunc("/api/games/{id}", a.deleteGame).Methods("DELETE")
	router.HandleFunc("/api/games/{id}/moves", a.playMove).Methods("POST")
	router.HandleFunc("/api/leaderboard", a.leaderboard).Methods("GET")

	if a.frontendDir != "" {
		router.PathPrefix("/").Handler(a.frontend())
	}
	return router
}

func (a *api) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}
	websocket.ServeWS(a.hub, conn)
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) createGame(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Color == game.Empty {
		req.Color = game.Player1
	}

	turn, err := a.sessions.CreateContext(r.Context(), req.Username, req.Color)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, turn)
}

func (a *api) getGame(w http.ResponseWriter, r *http.Request) {
	state, ok := a.sessions.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, session.ErrGameNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *api) deleteGame(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := a.sessions.Get(id); !ok {
		writeError(w, http.StatusNotFound, session.ErrGameNotFound.Error())
		return
	}
	a.sessions.Abandon(id)
	a.sessions.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) playMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Column == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"column\": n}")
		return
	}

	turn, err := a.sessions.MoveContext(r.Context(), mux.Vars(r)["id"], *req.Column)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (a *api) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := leaderboardSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	stats, err := a.db.GetLeaderboard(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to load leaderboard")
		writeError(w, http.StatusInternalServerError, "leaderboard unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// frontend serves the built single page app, falling back to index.html
// for client-side routes.
func (a *api) frontend() http.Handler {
	fs := http.FileServer(http.Dir(a.frontendDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(a.frontendDir, filepath.Clean("/"+r.URL.Path))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(a.frontendDir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrInvalidColumn), errors.Is(err, bot.ErrInvalidPlayer):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrColumnFull), errors.Is(err, game.ErrGameOver), errors.Is(err, session.ErrNotYourTurn):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
