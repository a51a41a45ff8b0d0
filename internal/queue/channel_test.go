package queue

import (
	"context"
	"testing"
	"time"
)

func TestChannelQueuePublishAndReceive(t *testing.T) {
	q := NewChannelQueue(4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := q.Publish(ctx, Message{Topic: TopicEmbeddingJobs, Key: []byte("k"), Value: []byte("v")}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-q.Messages():
		if msg.Topic != TopicEmbeddingJobs || string(msg.Value) != "v" {
			t.Fatalf("Messages() = %+v, want topic=%s value=v", msg, TopicEmbeddingJobs)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestChannelQueuePublishRespectsContextCancel(t *testing.T) {
	q := NewChannelQueue(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Publish(ctx, Message{Topic: TopicEmbeddingJobs}); err == nil {
		t.Fatal("Publish() on a cancelled context should error")
	}
}
