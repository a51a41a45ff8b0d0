package queue

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer publishes via a pooled *kafka.Writer per topic, created
// lazily the first time each topic is used.
type KafkaProducer struct {
	brokers []string
	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaProducer dials no connections up front; writers are created on
// first Publish per topic.
func NewKafkaProducer(brokers string) *KafkaProducer {
	return &KafkaProducer{
		brokers: strings.Split(brokers, ","),
		writers: make(map[string]*kafka.Writer),
	}
}

func (p *KafkaProducer) writerFor(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	p.writers[topic] = w
	return w
}

// Publish writes one message, keyed so related events (same entity, same
// commitment) land on the same partition and stay ordered.
func (p *KafkaProducer) Publish(ctx context.Context, msg Message) error {
	w := p.writerFor(msg.Topic)
	return w.WriteMessages(ctx, kafka.Message{Key: msg.Key, Value: msg.Value})
}

// Close flushes and closes every writer opened so far.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// KafkaConsumer reads from a fixed set of topics under one consumer group,
// fanning every topic's messages into a single channel: one *kafka.Reader
// goroutine per topic, and a read error is logged, not fatal.
type KafkaConsumer struct {
	brokers       []string
	consumerGroup string
	topics        []string
	readers       []*kafka.Reader
	messages      chan Message
}

// NewKafkaConsumer builds a consumer over topics under consumerGroup.
func NewKafkaConsumer(brokers, consumerGroup string, topics []string) *KafkaConsumer {
	return &KafkaConsumer{
		brokers:       strings.Split(brokers, ","),
		consumerGroup: consumerGroup,
		topics:        topics,
		messages:      make(chan Message, 256),
	}
}

// Start launches one reader goroutine per topic.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	for _, topic := range c.topics {
		c.startReader(ctx, topic)
	}
	return nil
}

func (c *KafkaConsumer) startReader(ctx context.Context, topic string) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.brokers,
		Topic:    topic,
		GroupID:  c.consumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	c.readers = append(c.readers, reader)

	go func() {
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("queue: kafka read error", "topic", topic, "error", err)
				continue
			}
			c.messages <- Message{Topic: topic, Key: msg.Key, Value: msg.Value}
		}
	}()
}

// Messages returns the fan-in channel.
func (c *KafkaConsumer) Messages() <-chan Message { return c.messages }

// Close stops every reader.
func (c *KafkaConsumer) Close() error {
	var firstErr error
	for _, r := range c.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	close(c.messages)
	return firstErr
}
