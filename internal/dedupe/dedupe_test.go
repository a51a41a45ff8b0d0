package dedupe

import "testing"

func TestNormalizeName(t *testing.T) {
	got := NormalizeName("  Groceries (424.39₽).  ")
	if got != "groceries" {
		t.Fatalf("NormalizeName() = %q, want %q", got, "groceries")
	}
	if NormalizeName(got) != got {
		t.Fatalf("NormalizeName() not idempotent: %q -> %q", got, NormalizeName(got))
	}
}

func TestIsStrongNameMatch(t *testing.T) {
	if !IsStrongNameMatch("Acme Corp", "Acme Corp.") {
		t.Fatal("near-identical names should be a strong match")
	}
	if IsStrongNameMatch("Acme Corp", "Globex Inc") {
		t.Fatal("unrelated names should not be a strong match")
	}
}

func TestDecideSkipOnHighSimilarity(t *testing.T) {
	got := Decide("Acme Corp", []Neighbor{{ID: "x", Similarity: 0.9, Name: "Acme Corp"}})
	if got.Decision != DecisionSkip || got.MatchID != "x" {
		t.Fatalf("Decide() = %+v, want skip on x", got)
	}
}

func TestDecideReviewOnMidSimilarity(t *testing.T) {
	got := Decide("some fact", []Neighbor{{ID: "y", Similarity: 0.7}})
	if got.Decision != DecisionReview {
		t.Fatalf("Decide() = %+v, want review", got)
	}
}

func TestDecideReviewOnStrongNameMatchDespiteLowSimilarity(t *testing.T) {
	got := Decide("Acme Corp", []Neighbor{{ID: "z", Similarity: 0.4, Name: "Acme Corp."}})
	if got.Decision != DecisionReview {
		t.Fatalf("Decide() = %+v, want review from name match override", got)
	}
}

func TestDecideCreateOnLowSimilarity(t *testing.T) {
	got := Decide("brand new thing", []Neighbor{{ID: "w", Similarity: 0.1}})
	if got.Decision != DecisionCreate {
		t.Fatalf("Decide() = %+v, want create", got)
	}
}
