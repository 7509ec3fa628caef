package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"connectfour/internal/bot"
	"connectfour/internal/config"
	"connectfour/internal/database"
	"connectfour/internal/game"
	"connectfour/internal/kafka"
	"connectfour/internal/session"
	"connectfour/internal/websocket"

	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	cfg.SetupLogging()
	log.Info().Msg("starting connect four server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	sessions := session.NewManager(bot.WithCacheLimit(cfg.BotCacheLimit))
	sessions.SetEventCallback(recordEvent(db, producer))

	hub := websocket.NewHub(sessions, cfg.ReconnectTimeout)
	go hub.Run()

	a := &api{
		sessions:    sessions,
		hub:         hub,
		db:          db,
		frontendDir: cfg.FrontendDir,
	}
	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

// recordEvent forwards game events to kafka and stores finished games.
// Failures are logged; they never affect the game itself.
func recordEvent(db *database.DB, producer *kafka.Producer) func(string, interface{}) {
	return func(eventType string, data interface{}) {
		ctx := context.Background()
		if err := producer.ProduceEvent(ctx, eventType, data); err != nil {
			log.Error().Err(err).Str("type", eventType).Msg("failed to produce kafka event")
		}

		if eventType != session.EventGameEnded {
			return
		}
		if state, ok := data.(*game.GameState); ok {
			if err := db.SaveGame(ctx, state); err != nil {
				log.Error().Err(err).Str("game_id", state.ID).Msg("failed to save game")
			}
		}
	}
}
