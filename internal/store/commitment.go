package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/mityayka1/pkgraph/internal/apperr"
)

// Commitment is a promise, request, or deadline extracted from a
// conversation, tracked until it's completed, cancelled, or overdue.
type Commitment struct {
	ID               uuid.UUID
	Type             string // promise | request | agreement | deadline | reminder | recurring
	Title            string
	Status           string // draft | pending | in_progress | completed | cancelled | overdue | deferred
	FromEntityID     *uuid.UUID
	FromDisplayName  string // free-text "from" mention the resolver couldn't place
	ToEntityID       *uuid.UUID
	ToDisplayName    string
	ActivityID       *uuid.UUID
	SourceMessageID  *uuid.UUID
	DueDate          *time.Time
	RecurrenceRule   string
	NextReminderAt   *time.Time
	ReminderCount    int
	Confidence       float64
	Embedding        []float32
	ConfirmationCount int
	DeletedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const commitmentColumns = `id, type, title, status, from_entity_id, from_display_name, to_entity_id, to_display_name,
	activity_id, source_message_id, due_date, recurrence_rule, next_reminder_at, reminder_count, confidence, embedding,
	confirmation_count, deleted_at, created_at, updated_at`

// CommitmentColumns exposes commitmentColumns to callers outside this
// package that need to RETURNING the full row from their own query
// (internal/approval's activate, which updates status inside its own tx).
const CommitmentColumns = commitmentColumns

// ScanCommitment exposes scanCommitment to callers outside this package.
func ScanCommitment(row pgx.Row) (*Commitment, error) { return scanCommitment(row) }

func scanCommitment(row pgx.Row) (*Commitment, error) {
	var c Commitment
	var vec *pgvector.Vector
	if err := row.Scan(&c.ID, &c.Type, &c.Title, &c.Status, &c.FromEntityID, &c.FromDisplayName, &c.ToEntityID,
		&c.ToDisplayName, &c.ActivityID, &c.SourceMessageID, &c.DueDate, &c.RecurrenceRule, &c.NextReminderAt,
		&c.ReminderCount, &c.Confidence, &vec, &c.ConfirmationCount, &c.DeletedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if vec != nil {
		c.Embedding = vec.Slice()
	}
	return &c, nil
}

// CreateCommitment inserts a new commitment, typically in "pending" status
// coming out of an approved extraction.
func (s *Store) CreateCommitment(ctx context.Context, c *Commitment) (*Commitment, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO commitments (type, title, status, from_entity_id, from_display_name, to_entity_id, to_display_name,
			activity_id, source_message_id, due_date, recurrence_rule, next_reminder_at, confidence)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING `+commitmentColumns,
		c.Type, c.Title, nonEmpty(c.Status, "pending"), c.FromEntityID, c.FromDisplayName, c.ToEntityID, c.ToDisplayName,
		c.ActivityID, c.SourceMessageID, c.DueDate, c.RecurrenceRule, c.NextReminderAt, c.Confidence)
	out, err := scanCommitment(row)
	if err != nil {
		return nil, apperr.Conflict("create commitment failed", err)
	}
	return out, nil
}

// GetCommitment fetches a single commitment.
func (s *Store) GetCommitment(ctx context.Context, id uuid.UUID) (*Commitment, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+commitmentColumns+` FROM commitments WHERE id=$1 AND deleted_at IS NULL`, id)
	c, err := scanCommitment(row)
	if err != nil {
		return nil, apperr.NotFound("commitment not found", err)
	}
	return c, nil
}

// SetCommitmentStatus transitions status, used by both manual review and
// the overdue scanner.
func (s *Store) SetCommitmentStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE commitments SET status=$2, updated_at=now() WHERE id=$1 AND deleted_at IS NULL`, id, status)
	if err != nil {
		return apperr.Transient("set commitment status failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("commitment not found", nil)
	}
	return nil
}

// ScanOverdue flips pending/in_progress commitments whose dueDate has
// passed into "overdue", returning the ones just flipped so the reminder
// engine can notify on the transition.
func (s *Store) ScanOverdue(ctx context.Context, asOf time.Time) ([]*Commitment, error) {
	rows, err := s.Pool.Query(ctx, `
		UPDATE commitments SET status='overdue', updated_at=now()
		WHERE status IN ('pending','in_progress') AND due_date IS NOT NULL AND due_date < $1 AND deleted_at IS NULL
		RETURNING `+commitmentColumns, asOf)
	if err != nil {
		return nil, apperr.Transient("scan overdue commitments failed", err)
	}
	defer rows.Close()
	var out []*Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, apperr.Transient("scan overdue commitment row failed", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DueReminders returns commitments whose nextReminderAt has passed, the
// working set for the reminder dispatcher.
func (s *Store) DueReminders(ctx context.Context, asOf time.Time, limit int) ([]*Commitment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT `+commitmentColumns+` FROM commitments
		WHERE next_reminder_at IS NOT NULL AND next_reminder_at <= $1
		  AND status IN ('pending','in_progress','overdue') AND deleted_at IS NULL
		ORDER BY next_reminder_at ASC LIMIT $2`, asOf, limit)
	if err != nil {
		return nil, apperr.Transient("list due reminders failed", err)
	}
	defer rows.Close()
	var out []*Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, apperr.Transient("scan due reminder failed", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RescheduleReminder advances nextReminderAt to the recurrence engine's next
// computed time and bumps reminderCount, or clears nextReminderAt entirely
// when next is nil (no further reminders, e.g. a non-recurring commitment
// that just fired once).
func (s *Store) RescheduleReminder(ctx context.Context, id uuid.UUID, next *time.Time) error {
	_, err := s.Pool.Exec(ctx, `UPDATE commitments SET next_reminder_at=$2, reminder_count = reminder_count + 1, updated_at=now() WHERE id=$1`, id, next)
	if err != nil {
		return apperr.Transient("reschedule reminder failed", err)
	}
	return nil
}

// SetNextReminder sets nextReminderAt without bumping reminderCount, used
// to schedule a commitment's first reminder right after approval (no
// reminder has actually fired yet).
func (s *Store) SetNextReminder(ctx context.Context, id uuid.UUID, next *time.Time) error {
	_, err := s.Pool.Exec(ctx, `UPDATE commitments SET next_reminder_at=$2, updated_at=now() WHERE id=$1`, id, next)
	if err != nil {
		return apperr.Transient("set next reminder failed", err)
	}
	return nil
}

// SetCommitmentEmbedding overwrites the embedding column; idempotent on
// retry.
func (s *Store) SetCommitmentEmbedding(ctx context.Context, id uuid.UUID, vec []float32) error {
	_, err := s.Pool.Exec(ctx, `UPDATE commitments SET embedding=$2 WHERE id=$1`, id, pgvector.NewVector(vec))
	if err != nil {
		return apperr.Transient("set commitment embedding failed", err)
	}
	return nil
}

// SearchCommitmentsByEmbedding returns the top-k nearest commitments of
// type scoped to fromID by cosine distance, the "same kind+owner" scope
// the semantic deduper checks before creating a new draft.
func (s *Store) SearchCommitmentsByEmbedding(ctx context.Context, fromID uuid.UUID, commitmentType string, vec []float32, k int) ([]*Commitment, []float64, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+commitmentColumns+`, 1 - (embedding <=> $3) AS similarity
		FROM commitments
		WHERE from_entity_id=$1 AND type=$2 AND deleted_at IS NULL AND embedding IS NOT NULL
		ORDER BY embedding <=> $3
		LIMIT $4`, fromID, commitmentType, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, nil, apperr.Transient("search commitments failed", err)
	}
	defer rows.Close()
	var cs []*Commitment
	var sims []float64
	for rows.Next() {
		var c Commitment
		var cvec *pgvector.Vector
		var sim float64
		if err := rows.Scan(&c.ID, &c.Type, &c.Title, &c.Status, &c.FromEntityID, &c.FromDisplayName, &c.ToEntityID,
			&c.ToDisplayName, &c.ActivityID, &c.SourceMessageID, &c.DueDate, &c.RecurrenceRule, &c.NextReminderAt,
			&c.ReminderCount, &c.Confidence, &cvec, &c.ConfirmationCount, &c.DeletedAt, &c.CreatedAt, &c.UpdatedAt, &sim); err != nil {
			return nil, nil, apperr.Transient("scan commitment similarity failed", err)
		}
		if cvec != nil {
			c.Embedding = cvec.Slice()
		}
		cs = append(cs, &c)
		sims = append(sims, sim)
	}
	return cs, sims, rows.Err()
}

// BumpCommitmentConfirmation increments confirmationCount, used when the
// deduper decides an extracted commitment candidate matches an
// existing one.
func (s *Store) BumpCommitmentConfirmation(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := s.Pool.QueryRow(ctx, `UPDATE commitments SET confirmation_count = confirmation_count + 1, updated_at = now() WHERE id=$1 RETURNING confirmation_count`, id).Scan(&count)
	if err != nil {
		return 0, apperr.NotFound("commitment not found", err)
	}
	return count, nil
}
