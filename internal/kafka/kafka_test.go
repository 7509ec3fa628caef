package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"connectfour/internal/config"
	"connectfour/internal/game"
)

func TestDisabledProducer(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Enabled: false, Brokers: []string{"localhost:9092"}})
	if p.Enabled() {
		t.Fatalf("producer should be disabled")
	}
	if err := p.ProduceEvent(context.Background(), "game_started", nil); err != nil {
		t.Fatalf("ProduceEvent: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if NewProducer(config.KafkaConfig{Enabled: true}).Enabled() {
		t.Fatalf("producer without brokers should be disabled")
	}
}

func TestProducerFlushesSingleEventsQuickly(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Enabled: true, Brokers: []string{"localhost:9092"}, Topic: "game-events"})
	defer p.Close()

	if !p.Enabled() {
		t.Fatalf("producer should be enabled")
	}
	if p.writer.BatchTimeout != batchTimeout || batchTimeout > 50*time.Millisecond {
		t.Fatalf("BatchTimeout = %v, a lone event would wait that long", p.writer.BatchTimeout)
	}
}

func TestEncode(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	g := game.NewGameState("g-42", "alice", "AI Bot")

	msg, err := encode("game_ended", g, at)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(msg.Key) != "g-42" || !msg.Time.Equal(at) {
		t.Fatalf("key %q, time %v", msg.Key, msg.Time)
	}

	var ev struct {
		Type      string          `json:"type"`
		Data      json.RawMessage `json:"data"`
		Timestamp time.Time       `json:"timestamp"`
	}
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if ev.Type != "game_ended" || !ev.Timestamp.Equal(at) {
		t.Fatalf("envelope = %+v", ev)
	}
	var data struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(ev.Data, &data); err != nil || data.ID != "g-42" {
		t.Fatalf("data = %s, %v", ev.Data, err)
	}
}

func TestEncodeKeys(t *testing.T) {
	tests := []struct {
		data interface{}
		want string
	}{
		{map[string]interface{}{"gameId": "g-1", "column": 3}, "g-1"},
		{map[string]interface{}{"column": 3}, "move_made"},
		{nil, "move_made"},
	}
	for _, tt := range tests {
		msg, err := encode("move_made", tt.data, time.Now())
		if err != nil {
			t.Fatalf("encode(%v): %v", tt.data, err)
		}
		if string(msg.Key) != tt.want {
			t.Errorf("key for %v = %q, want %q", tt.data, msg.Key, tt.want)
		}
	}

	if _, err := encode("bad", func() {}, time.Now()); err == nil {
		t.Fatalf("encoding a func should fail")
	}
}
