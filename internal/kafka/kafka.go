package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"connectfour/internal/config"
	"connectfour/internal/game"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	writeTimeout = 5 * time.Second
	// batchTimeout bounds how long a single event waits for its batch to
	// fill; ProduceEvent runs on the request path.
	batchTimeout = 10 * time.Millisecond
)

// Event is the envelope written to the topic for every game event.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer returns a producer for cfg. When Kafka is disabled the
// producer drops every event.
func NewProducer(cfg config.KafkaConfig) *Producer {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Warn().Msg("kafka disabled or not configured")
		return &Producer{}
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           writeTimeout,
		BatchTimeout:           batchTimeout,
	}

	log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("kafka producer initialized")
	return &Producer{writer: writer, topic: cfg.Topic}
}

func (p *Producer) Enabled() bool {
	return p.writer != nil
}

// ProduceEvent publishes one event. Events of one game share a key and
// therefore a partition.
func (p *Producer) ProduceEvent(ctx context.Context, eventType string, data interface{}) error {
	if p.writer == nil {
		return nil
	}

	msg, err := encode(eventType, data, time.Now())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Error().Err(err).Str("type", eventType).Str("topic", p.topic).Msg("error producing kafka event")
		return fmt.Errorf("produce %s: %w", eventType, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encode(eventType string, data interface{}, at time.Time) (kafka.Message, error) {
	value, err := json.Marshal(Event{Type: eventType, Data: data, Timestamp: at.UTC()})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s event: %w", eventType, err)
	}
	key := gameID(data)
	if key == "" {
		key = eventType
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  at,
	}, nil
}

func gameID(data interface{}) string {
	switch d := data.(type) {
	case *game.GameState:
		return d.ID
	case map[string]interface{}:
		if id, ok := d["gameId"].(string); ok {
			return id
		}
	}
	return ""
}
