package embedworker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mityayka1/pkgraph/internal/apperr"
	"github.com/mityayka1/pkgraph/internal/provider"
	"github.com/mityayka1/pkgraph/internal/queue"
	"github.com/mityayka1/pkgraph/internal/store"
)

// RetryBatchSize bounds how many due retry jobs one sweep claims.
const RetryBatchSize = 50

// Service computes embeddings for messages, facts, activities,
// commitments, and segments as jobs arrive on the queue, retrying
// failures through the store's embedding_jobs table.
type Service struct {
	Store    *store.Store
	Embedder provider.Embedder
	Consumer queue.Consumer
	Producer queue.Producer
}

// New builds an embedworker Service.
func New(s *store.Store, embedder provider.Embedder, consumer queue.Consumer, producer queue.Producer) *Service {
	return &Service{Store: s, Embedder: embedder, Consumer: consumer, Producer: producer}
}

// Run drains the queue until ctx is canceled, processing one job at a
// time. A job that fails is recorded against the retry table rather than
// requeued on Kafka, so retries are driven by RetrySweep's backoff
// instead of at-least-once redelivery hammering a broken target.
func (svc *Service) Run(ctx context.Context) error {
	if err := svc.Consumer.Start(ctx); err != nil {
		return apperr.Transient("embedworker: consumer start failed", err)
	}
	for {
		select {
		case <-ctx.Done():
			return svc.Consumer.Close()
		case msg, ok := <-svc.Consumer.Messages():
			if !ok {
				return nil
			}
			svc.handle(ctx, msg)
		}
	}
}

func (svc *Service) handle(ctx context.Context, msg queue.Message) {
	var job Job
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		slog.Error("embedworker: malformed job payload", "error", err)
		return
	}
	if err := svc.embedAndStore(ctx, job.TargetKind, job.TargetID, job.Text); err != nil {
		slog.Warn("embedworker: job failed, recording for retry", "target_kind", job.TargetKind, "target_id", job.TargetID, "error", err)
		if _, enqErr := svc.Store.EnqueueEmbeddingJob(ctx, job.TargetKind, job.TargetID); enqErr != nil {
			slog.Error("embedworker: failed to record retry", "error", enqErr)
		}
	}
}

func (svc *Service) embedAndStore(ctx context.Context, targetKind string, targetID uuid.UUID, text string) error {
	if text == "" {
		return nil
	}
	resp, err := svc.Embedder.Embed(ctx, &provider.EmbeddingRequest{Input: text})
	if err != nil {
		return err
	}
	return svc.setEmbedding(ctx, targetKind, targetID, resp.Vector)
}

func (svc *Service) setEmbedding(ctx context.Context, targetKind string, targetID uuid.UUID, vec []float32) error {
	switch targetKind {
	case "message":
		return svc.Store.SetMessageEmbedding(ctx, targetID, vec)
	case "fact":
		return svc.Store.SetFactEmbedding(ctx, targetID, vec)
	case "activity":
		return svc.Store.SetActivityEmbedding(ctx, targetID, vec)
	case "commitment":
		return svc.Store.SetCommitmentEmbedding(ctx, targetID, vec)
	case "segment":
		return svc.Store.SetSegmentEmbedding(ctx, targetID, vec)
	default:
		return apperr.Validation("unknown embedding target kind", nil)
	}
}

// RetrySweep is the scheduler.Run callback that drains due retries. Each
// claimed job is processed and resolved (completed or backed off again)
// in its own transaction so one bad row never blocks the rest of the
// batch.
func (svc *Service) RetrySweep(ctx context.Context, _ time.Time) error {
	tx, err := svc.Store.Pool.Begin(ctx)
	if err != nil {
		return apperr.Transient("embedworker: begin retry sweep failed", err)
	}
	jobs, err := svc.Store.ClaimDueEmbeddingJobs(ctx, tx, RetryBatchSize)
	if err != nil {
		tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Transient("embedworker: commit retry claim failed", err)
	}

	for _, j := range jobs {
		svc.retryOne(ctx, j)
	}
	return nil
}

func (svc *Service) retryOne(ctx context.Context, j *store.FailedEmbeddingJob) {
	text, err := svc.Store.EmbeddingTargetText(ctx, j.TargetKind, j.TargetID)
	if err == nil {
		err = svc.embedAndStore(ctx, j.TargetKind, j.TargetID, text)
	}

	tx, beginErr := svc.Store.Pool.Begin(ctx)
	if beginErr != nil {
		slog.Error("embedworker: begin retry resolution failed", "error", beginErr)
		return
	}
	defer tx.Rollback(ctx)

	if err != nil {
		if failErr := svc.Store.FailEmbeddingJob(ctx, tx, j.ID, err.Error()); failErr != nil {
			slog.Error("embedworker: record retry failure failed", "error", failErr)
			return
		}
	} else if compErr := svc.Store.CompleteEmbeddingJob(ctx, tx, j.ID); compErr != nil {
		slog.Error("embedworker: complete retry job failed", "error", compErr)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		slog.Error("embedworker: commit retry resolution failed", "error", err)
	}
}
