// Package events publishes translation events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/deeplbot/deeplbot/internal/config"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// TypeTranslationCompleted is the event type of a finished translation.
const TypeTranslationCompleted = "translation.completed"

// Event describes one completed translation. The text itself is never
// included.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Identity  int64     `json:"identity"`
	Language  string    `json:"language"`
	Chars     int       `json:"chars"`
	Empty     bool      `json:"empty"`
	ElapsedMs int64     `json:"elapsed_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTranslationEvent builds a completed-translation event.
func NewTranslationEvent(identity int64, lang string, chars int, empty bool, elapsed time.Duration) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      TypeTranslationCompleted,
		Identity:  identity,
		Language:  lang,
		Chars:     chars,
		Empty:     empty,
		ElapsedMs: elapsed.Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
}

// Publisher sends events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes JSON events keyed by identity.
type KafkaPublisher struct {
	w     messageWriter
	topic string
}

// NewKafkaPublisher returns a publisher writing to topic on brokers
// (comma separated).
func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	var addrs []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{w: w, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(strconv.FormatInt(ev.Identity, 10)),
		Value:   data,
		Headers: []kafka.Header{{Key: "type", Value: []byte(ev.Type)}},
		Time:    ev.Timestamp,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// New returns a Kafka publisher when events are enabled, NopPublisher
// otherwise.
func New(cfg config.EventsConfig) Publisher {
	if !cfg.Enabled {
		return NopPublisher{}
	}
	slog.Info("Translation events enabled", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}
