package session

import (
	"testing"
	"time"
)

func TestDecidePlacement(t *testing.T) {
	started := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	last := started.Add(30 * time.Minute)
	gap := 4 * time.Hour

	cases := []struct {
		name string
		ts   time.Time
		want placement
	}{
		{"within gap after last message", last.Add(time.Hour), placeOpen},
		{"exactly at the gap boundary", last.Add(gap), placeOpen},
		{"past the gap", last.Add(gap + time.Minute), placeCutover},
		{"out of order inside the open range", started.Add(10 * time.Minute), placeOpen},
		{"predates the open interaction", started.Add(-time.Hour), placeLookBack},
	}
	for _, tc := range cases {
		if got := decidePlacement(started, last, tc.ts, gap); got != tc.want {
			t.Errorf("%s: decidePlacement() = %d, want %d", tc.name, got, tc.want)
		}
	}
}
