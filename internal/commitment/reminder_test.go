package commitment

import (
	"testing"
	"time"
)

func TestFirstReminderUsesDueMinus24h(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	due := now.Add(72 * time.Hour)
	got, err := FirstReminder(due, "", now)
	if err != nil {
		t.Fatal(err)
	}
	want := due.Add(-24 * time.Hour)
	if !got.Equal(want) {
		t.Fatalf("FirstReminder() = %v, want %v", got, want)
	}
}

func TestFirstReminderFallsBackToDueMinus1h(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	due := now.Add(10 * time.Hour) // due-24h is already past
	got, err := FirstReminder(due, "", now)
	if err != nil {
		t.Fatal(err)
	}
	want := due.Add(-time.Hour)
	if !got.Equal(want) {
		t.Fatalf("FirstReminder() = %v, want %v", got, want)
	}
}

func TestFirstReminderFallsBackToHourlyWhenBothPast(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	due := now.Add(-time.Minute) // already overdue
	got, err := FirstReminder(due, "", now)
	if err != nil {
		t.Fatal(err)
	}
	want := now.Add(HourlyReminderInterval)
	if !got.Equal(want) {
		t.Fatalf("FirstReminder() = %v, want %v", got, want)
	}
}

func TestNextReminderAdvancesToDueMinus1h(t *testing.T) {
	due := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	firedAt := due.Add(-24 * time.Hour)
	got, err := NextReminder(due, "", "pending", firedAt)
	if err != nil {
		t.Fatal(err)
	}
	want := due.Add(-time.Hour)
	if !got.Equal(want) {
		t.Fatalf("NextReminder() = %v, want %v", got, want)
	}
}

func TestNextReminderHourlyWhileOpen(t *testing.T) {
	due := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	firedAt := due.Add(-time.Hour) // the due-1h reminder just went out
	got, err := NextReminder(due, "", "pending", firedAt)
	if err != nil {
		t.Fatal(err)
	}
	want := firedAt.Add(time.Hour)
	if !got.Equal(want) {
		t.Fatalf("NextReminder() = %v, want %v", got, want)
	}
}

func TestNextReminderNilWhenClosed(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := NextReminder(now, "", "completed", now)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("NextReminder() = %v, want nil", got)
	}
}

func TestFirstReminderRecurringUsesCron(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	got, err := FirstReminder(time.Time{}, "0 9 * * *", now)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected non-nil next reminder for recurring rule")
	}
	if got.Hour() != 9 || got.Minute() != 0 {
		t.Fatalf("FirstReminder() = %v, want 09:00", got)
	}
}
