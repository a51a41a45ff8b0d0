// Package queue wraps Kafka as the durable, at-least-once job substrate for
// the embedding worker and the commitment reminder dispatcher, with an
// in-process channel-backed double for tests. The Producer/Consumer pair is
// deliberately small so any component can use it against any topic.
package queue

import "context"

// Message is one durable job envelope: a topic-scoped key plus an opaque
// payload (JSON-encoded by callers).
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Producer publishes messages to a topic.
type Producer interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Consumer delivers messages from one or more topics until Close.
type Consumer interface {
	Start(ctx context.Context) error
	Messages() <-chan Message
	Close() error
}

const (
	TopicEmbeddingJobs    = "pkgraph.embedding.jobs"
	TopicNotificationsOut = "pkgraph.notifications.out"
)
