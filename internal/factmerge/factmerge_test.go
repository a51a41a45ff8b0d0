package factmerge

import (
	"testing"
	"time"
)

func TestResolveHigherRankWins(t *testing.T) {
	a := Candidate{ID: "a", Rank: "preferred", Value: "Acme"}
	b := Candidate{ID: "b", Rank: "normal", Value: "Acme Corp"}
	got := Resolve(a, b)
	if got.Winner != WinnerA || got.Reason != "higher_rank" {
		t.Fatalf("Resolve() = %+v, want winner=a reason=higher_rank", got)
	}
}

func TestResolveTieBreaksOnConfidenceThenRecency(t *testing.T) {
	now := time.Now()
	a := Candidate{Rank: "normal", Confidence: 0.9, CreatedAt: now.Add(-time.Hour), Value: "x"}
	b := Candidate{Rank: "normal", Confidence: 0.9, CreatedAt: now, Value: "y"}
	if got := Resolve(a, b); got.Winner != WinnerB || got.Reason != "more_recent" {
		t.Fatalf("Resolve() = %+v, want winner=b reason=more_recent", got)
	}

	a.Confidence = 0.95
	if got := Resolve(a, b); got.Winner != WinnerA || got.Reason != "higher_confidence" {
		t.Fatalf("Resolve() = %+v, want winner=a reason=higher_confidence", got)
	}
}

func TestResolveSameContentShortCircuits(t *testing.T) {
	a := Candidate{Rank: "deprecated", Value: "same"}
	b := Candidate{Rank: "preferred", Value: "same"}
	if got := Resolve(a, b); got.Winner != WinnerA || got.Reason != "same_content" {
		t.Fatalf("Resolve() = %+v, want winner=a reason=same_content", got)
	}
}

func TestCanSupersedeRejectsCycle(t *testing.T) {
	if CanSupersede("f1", "f2", []string{"f2", "f3", "f1"}) {
		t.Fatal("CanSupersede should reject a cycle back to f1")
	}
	if CanSupersede("f1", "f1", nil) {
		t.Fatal("CanSupersede should reject superseding itself")
	}
	if !CanSupersede("f1", "f2", []string{"f2", "f3"}) {
		t.Fatal("CanSupersede should accept a fresh chain")
	}
}
