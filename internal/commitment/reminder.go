// Package commitment computes and dispatches commitment reminders:
// when a commitment is approved with a dueDate, schedule its first
// reminder; every time a reminder fires, compute the next one until the
// commitment leaves pending/in_progress.
package commitment

import (
	"time"

	"github.com/mityayka1/pkgraph/internal/scheduler"
)

// OverdueGrace is how long past dueDate a pending/in_progress commitment
// is tolerated before ScanOverdue flips it.
const OverdueGrace = time.Hour

// HourlyReminderInterval is the cadence reminders fall back to once the
// due-date-relative offsets (-24h, -1h) have both fired and the
// commitment is still open.
const HourlyReminderInterval = time.Hour

// FirstReminder computes the first nextReminderAt for a freshly-approved
// commitment. Recurring commitments use recurrenceRule's own cron
// schedule; everything else gets dueDate-24h, falling back to dueDate-1h
// if that's already past, falling back to now+1h if even that is past.
func FirstReminder(dueDate time.Time, recurrenceRule string, now time.Time) (*time.Time, error) {
	if recurrenceRule != "" {
		return nextCron(recurrenceRule, now)
	}
	candidates := []time.Time{dueDate.Add(-24 * time.Hour), dueDate.Add(-time.Hour)}
	for _, c := range candidates {
		if c.After(now) {
			return &c, nil
		}
	}
	next := now.Add(HourlyReminderInterval)
	return &next, nil
}

// NextReminder computes the reminder after the one that just fired at
// firedAt. Recurring commitments keep following recurrenceRule; a
// non-recurring commitment that has already sent both the -24h and -1h
// reminders falls into the hourly cadence until it leaves
// pending/in_progress. Returns nil once status is no longer open.
func NextReminder(dueDate time.Time, recurrenceRule, status string, firedAt time.Time) (*time.Time, error) {
	if status != "pending" && status != "in_progress" {
		return nil, nil
	}
	if recurrenceRule != "" {
		return nextCron(recurrenceRule, firedAt)
	}
	if c := dueDate.Add(-time.Hour); c.After(firedAt) {
		return &c, nil
	}
	next := firedAt.Add(HourlyReminderInterval)
	return &next, nil
}

func nextCron(recurrenceRule string, after time.Time) (*time.Time, error) {
	expr, err := scheduler.ParseCron(recurrenceRule)
	if err != nil {
		return nil, err
	}
	next := expr.Next(after)
	if next.IsZero() {
		return nil, nil
	}
	return &next, nil
}
