package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

// FailedEmbeddingJob is the kafka-backed retry record for an embedding
// request that could not be computed on the first attempt.
type FailedEmbeddingJob struct {
	ID          uuid.UUID
	TargetKind  string // message | fact | activity | commitment | segment | summary
	TargetID    uuid.UUID
	Attempts    int
	LastError   string
	RetryAfter  time.Time
	Status      string // pending | completed | failed
	CreatedAt   time.Time
	CompletedAt *time.Time
}

const embeddingJobColumns = `id, target_kind, target_id, attempts, last_error, retry_after, status, created_at, completed_at`

func scanEmbeddingJob(row pgx.Row) (*FailedEmbeddingJob, error) {
	var j FailedEmbeddingJob
	if err := row.Scan(&j.ID, &j.TargetKind, &j.TargetID, &j.Attempts, &j.LastError, &j.RetryAfter, &j.Status, &j.CreatedAt, &j.CompletedAt); err != nil {
		return nil, err
	}
	return &j, nil
}

// EnqueueEmbeddingJob records a retry candidate. Kafka delivery is
// at-least-once, so producers may enqueue the same (targetKind, targetId)
// more than once; callers of ClaimDueEmbeddingJobs tolerate processing the
// same target twice since SetXEmbedding writes are idempotent overwrites.
func (s *Store) EnqueueEmbeddingJob(ctx context.Context, targetKind string, targetID uuid.UUID) (*FailedEmbeddingJob, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO embedding_jobs (target_kind, target_id)
		VALUES ($1,$2)
		RETURNING `+embeddingJobColumns, targetKind, targetID)
	out, err := scanEmbeddingJob(row)
	if err != nil {
		return nil, apperr.Conflict("enqueue embedding job failed", err)
	}
	return out, nil
}

// ClaimDueEmbeddingJobs locks up to limit due jobs for a worker.
func (s *Store) ClaimDueEmbeddingJobs(ctx context.Context, tx pgx.Tx, limit int) ([]*FailedEmbeddingJob, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+embeddingJobColumns+` FROM embedding_jobs
		WHERE status='pending' AND retry_after <= now()
		ORDER BY retry_after ASC LIMIT $1 FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, apperr.Transient("claim embedding jobs failed", err)
	}
	defer rows.Close()
	var out []*FailedEmbeddingJob
	for rows.Next() {
		j, err := scanEmbeddingJob(rows)
		if err != nil {
			return nil, apperr.Transient("scan claimed embedding job failed", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// CompleteEmbeddingJob marks a job done.
func (s *Store) CompleteEmbeddingJob(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE embedding_jobs SET status='completed', completed_at=now() WHERE id=$1`, id)
	if err != nil {
		return apperr.Transient("complete embedding job failed", err)
	}
	return nil
}

// FailEmbeddingJob records a failed attempt with exponential backoff
// (2^attempts minutes, capped at 24h) and flips to a terminal "failed"
// status after 8 attempts so a permanently broken target stops being
// retried forever.
func (s *Store) FailEmbeddingJob(ctx context.Context, tx pgx.Tx, id uuid.UUID, errMsg string) error {
	var attempts int
	if err := tx.QueryRow(ctx, `UPDATE embedding_jobs SET attempts = attempts + 1, last_error = $2 WHERE id=$1 RETURNING attempts`, id, errMsg).Scan(&attempts); err != nil {
		return apperr.Transient("record embedding job failure failed", err)
	}
	if attempts >= 8 {
		_, err := tx.Exec(ctx, `UPDATE embedding_jobs SET status='failed' WHERE id=$1`, id)
		if err != nil {
			return apperr.Transient("mark embedding job failed failed", err)
		}
		return nil
	}
	backoff := time.Duration(1<<uint(attempts)) * time.Minute
	if backoff > 24*time.Hour {
		backoff = 24 * time.Hour
	}
	_, err := tx.Exec(ctx, `UPDATE embedding_jobs SET retry_after = now() + $2 WHERE id=$1`, id, backoff)
	if err != nil {
		return apperr.Transient("reschedule embedding job failed", err)
	}
	return nil
}

// PruneEmbeddingJobs keeps only the most recent keepCompleted completed
// rows and keepFailed failed rows, the retention policy for this set.
func (s *Store) PruneEmbeddingJobs(ctx context.Context, keepCompleted, keepFailed int) error {
	if _, err := s.Pool.Exec(ctx, `
		DELETE FROM embedding_jobs WHERE status='completed' AND id NOT IN (
			SELECT id FROM embedding_jobs WHERE status='completed' ORDER BY completed_at DESC LIMIT $1)`, keepCompleted); err != nil {
		return apperr.Transient("prune completed embedding jobs failed", err)
	}
	if _, err := s.Pool.Exec(ctx, `
		DELETE FROM embedding_jobs WHERE status='failed' AND id NOT IN (
			SELECT id FROM embedding_jobs WHERE status='failed' ORDER BY created_at DESC LIMIT $1)`, keepFailed); err != nil {
		return apperr.Transient("prune failed embedding jobs failed", err)
	}
	return nil
}
