package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port             string
	DatabaseURL      string
	Kafka            KafkaConfig
	LogLevel         string
	LogFormat        string
	BotCacheLimit    int
	FrontendDir      string
	ReconnectTimeout time.Duration
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:        withDefault(getenv("PORT"), "8080"),
		DatabaseURL: getenv("DATABASE_URL"),
		Kafka: KafkaConfig{
			Enabled: strings.ToLower(getenv("KAFKA_ENABLED")) == "true",
			Brokers: splitList(withDefault(getenv("KAFKA_BROKER"), "localhost:9092")),
			Topic:   withDefault(getenv("KAFKA_TOPIC"), "game-events"),
		},
		LogLevel:    withDefault(getenv("LOG_LEVEL"), "info"),
		LogFormat:   withDefault(getenv("LOG_FORMAT"), "json"),
		FrontendDir: withDefault(getenv("FRONTEND_DIR"), "../frontend/dist"),
	}

	limit, err := intValue(getenv, "BOT_CACHE_LIMIT", 1<<20)
	if err != nil {
		return Config{}, err
	}
	cfg.BotCacheLimit = limit

	timeout, err := durationValue(getenv, "RECONNECT_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.ReconnectTimeout = timeout

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

// SetupLogging configures the global zerolog logger.
func (c Config) SetupLogging() {
	SetupLogging(c.LogLevel, c.LogFormat, os.Stderr)
}

func SetupLogging(level, format string, w io.Writer) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func intValue(getenv func(string) string, name string, def int) (int, error) {
	v := getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %d", name, n)
	}
	return n, nil
}

func durationValue(getenv func(string) string, name string, def time.Duration) (time.Duration, error) {
	v := getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}
