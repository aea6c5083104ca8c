// Package events publishes domain events (runs saved, achievements granted, artifacts
// collected) to Kafka so that downstream consumers can build leaderboards and feeds.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	KindRunSaved           = "run.saved"
	KindRunDeleted         = "run.deleted"
	KindAchievementGranted = "achievement.granted"
	KindArtifactCollected  = "artifact.collected"
)

// Publisher is what services depend on.
type Publisher interface {
	Publish(ctx context.Context, kind, key string, payload any) error
}

// Envelope is the JSON body written to the topic.
type Envelope struct {
	Kind       string          `json:"kind"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Nop discards every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, any) error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher lazily manages one writer per topic. Topics are named
// "<prefix>.<kind>".
type KafkaPublisher struct {
	brokers []string
	prefix  string
	now     func() time.Time

	mu        sync.Mutex
	writers   map[string]messageWriter
	newWriter func(topic string) messageWriter
}

// NewKafkaPublisher creates a KafkaPublisher.
func NewKafkaPublisher(brokers []string, prefix string) *KafkaPublisher {
	p := &KafkaPublisher{
		brokers: brokers,
		prefix:  prefix,
		now:     time.Now,
		writers: make(map[string]messageWriter),
	}
	p.newWriter = p.kafkaWriter
	return p
}

// New returns a Kafka publisher, or Nop when brokers is empty.
func New(brokers []string, prefix string) Publisher {
	if len(brokers) == 0 {
		return Nop{}
	}
	return NewKafkaPublisher(brokers, prefix)
}

// Publish wraps payload in an Envelope and writes it keyed by key.
func (p *KafkaPublisher) Publish(ctx context.Context, kind, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}
	value, err := json.Marshal(Envelope{Kind: kind, Key: key, OccurredAt: p.now().UTC(), Payload: body})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", kind, err)
	}

	topic := p.Topic(kind)
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(kind)},
		},
	}
	if err := p.writerForTopic(topic).WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Topic maps an event kind to its topic name.
func (p *KafkaPublisher) Topic(kind string) string {
	if p.prefix == "" {
		return kind
	}
	return p.prefix + "." + kind
}

func (p *KafkaPublisher) writerForTopic(topic string) messageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := p.newWriter(topic)
	p.writers[topic] = w
	return w
}

func (p *KafkaPublisher) kafkaWriter(topic string) messageWriter {
	return &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Close releases all writers.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}
