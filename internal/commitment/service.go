package commitment

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mityayka1/pkgraph/internal/queue"
	"github.com/mityayka1/pkgraph/internal/store"
)

// Service scans for overdue commitments and due reminders on a
// minute-resolution tick and dispatches reminder notifications
// through the queue rather than blocking the scan loop on delivery.
type Service struct {
	Store    *store.Store
	Producer queue.Producer
}

// New builds a commitment Service.
func New(s *store.Store, p queue.Producer) *Service {
	return &Service{Store: s, Producer: p}
}

// Tick runs one pass: flip overdue commitments, then dispatch and
// reschedule every due reminder. Meant to be registered as a
// scheduler.Job with a "* * * * *" cron (every minute).
func (svc *Service) Tick(ctx context.Context, now time.Time) error {
	overdue, err := svc.Store.ScanOverdue(ctx, now.Add(-OverdueGrace))
	if err != nil {
		return err
	}
	for _, c := range overdue {
		slog.Info("commitment overdue", "commitment_id", c.ID, "due_date", c.DueDate)
	}

	due, err := svc.Store.DueReminders(ctx, now, 100)
	if err != nil {
		return err
	}
	for _, c := range due {
		if err := svc.fireReminder(ctx, c, now); err != nil {
			slog.Error("reminder dispatch failed", "commitment_id", c.ID, "error", err)
		}
	}
	return nil
}

func (svc *Service) fireReminder(ctx context.Context, c *store.Commitment, now time.Time) error {
	payload, err := json.Marshal(reminderNotification{
		CommitmentID: c.ID.String(),
		Title:        c.Title,
		Status:       c.Status,
		DueDate:      c.DueDate,
	})
	if err != nil {
		return err
	}
	if err := svc.Producer.Publish(ctx, queue.Message{
		Topic: queue.TopicNotificationsOut,
		Key:   []byte(c.ID.String()),
		Value: payload,
	}); err != nil {
		return err
	}

	var next *time.Time
	if c.DueDate != nil {
		next, err = NextReminder(*c.DueDate, c.RecurrenceRule, c.Status, now)
		if err != nil {
			return err
		}
	}
	return svc.Store.RescheduleReminder(ctx, c.ID, next)
}

type reminderNotification struct {
	CommitmentID string     `json:"commitmentId"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
}

// ScheduleFirstReminder is called right after a commitment is approved
// with a dueDate.
func (svc *Service) ScheduleFirstReminder(ctx context.Context, c *store.Commitment, now time.Time) error {
	if c.DueDate == nil && c.RecurrenceRule == "" {
		return nil
	}
	var due time.Time
	if c.DueDate != nil {
		due = *c.DueDate
	}
	next, err := FirstReminder(due, c.RecurrenceRule, now)
	if err != nil {
		return err
	}
	return svc.Store.SetNextReminder(ctx, c.ID, next)
}
