package disambiguate

import (
	"testing"
	"time"
)

func TestScoreSumsSignals(t *testing.T) {
	score, reasons := Score(Signals{Active: true, HasRecentInteraction: true, ParticipatedInChat: true, LinkedToMentionedEntity: true})
	want := weightActive + weightRecentInteraction + weightSameChat + weightMentionedWithLink
	if score != want {
		t.Fatalf("Score() = %v, want %v", score, want)
	}
	if len(reasons) != 4 {
		t.Fatalf("Score() reasons = %v, want 4 entries", reasons)
	}
}

func TestRankOrdersByScoreThenRecency(t *testing.T) {
	now := time.Now()
	signals := map[string]Signals{
		"a": {Active: true, UpdatedAt: now.Add(-time.Hour)},
		"b": {Active: true, HasRecentInteraction: true, UpdatedAt: now.Add(-2 * time.Hour)},
		"c": {Active: true, UpdatedAt: now},
	}
	ranked := Rank([]string{"a", "b", "c"}, signals)
	if ranked[0].EntityID != "b" {
		t.Fatalf("Rank()[0] = %s, want b (highest score)", ranked[0].EntityID)
	}
	if ranked[1].EntityID != "c" {
		t.Fatalf("Rank()[1] = %s, want c (tie broken by recency)", ranked[1].EntityID)
	}
}

func TestIsAmbiguous(t *testing.T) {
	if !IsAmbiguous(nil) {
		t.Fatal("IsAmbiguous(nil) should be true")
	}
	if !IsAmbiguous([]Candidate{{Score: 0.2}}) {
		t.Fatal("a lone weak candidate should be ambiguous")
	}
	if !IsAmbiguous([]Candidate{{Score: 0.7}, {Score: 0.6}}) {
		t.Fatal("a close runner-up should make the result ambiguous")
	}
	if IsAmbiguous([]Candidate{{Score: 0.7}, {Score: 0.1}}) {
		t.Fatal("a clear winner should not be ambiguous")
	}
}
