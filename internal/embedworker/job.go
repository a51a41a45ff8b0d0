// Package embedworker consumes the durable embedding-job queue, computes
// each target's embedding, and writes it back through the store. Failed
// jobs fall through to the embedding_jobs retry table instead of being
// requeued on Kafka, so a permanently broken target eventually terminates
// instead of looping forever.
package embedworker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/queue"
)

// Job is the payload carried on the Kafka embedding-jobs topic. Text is
// included inline so the happy path never has to re-query the store for
// content that was already in hand when the job was enqueued.
type Job struct {
	TargetKind string    `json:"targetKind"`
	TargetID   uuid.UUID `json:"targetId"`
	Text       string    `json:"text"`
}

// Enqueuer publishes embedding jobs onto the durable topic the moment
// content is persisted ("message persisted -> embedding queued"). It is
// the producer-side counterpart of Service, so the HTTP tier can enqueue
// without running a worker.
type Enqueuer struct {
	Producer queue.Producer
}

// Enqueue publishes one job. Re-enqueueing an already-embedded target is
// harmless; the worker just overwrites the embedding column.
func (e *Enqueuer) Enqueue(ctx context.Context, targetKind string, targetID uuid.UUID, text string) error {
	payload, err := json.Marshal(Job{TargetKind: targetKind, TargetID: targetID, Text: text})
	if err != nil {
		return err
	}
	return e.Producer.Publish(ctx, queue.Message{
		Topic: queue.TopicEmbeddingJobs,
		Key:   []byte(targetID.String()),
		Value: payload,
	})
}
