package segmenter

import "testing"

func TestCosineDistanceIdentical(t *testing.T) {
	v := []float32{1, 0, 0}
	if d := CosineDistance(v, v); d > 1e-9 {
		t.Fatalf("CosineDistance(v,v) = %v, want ~0", d)
	}
}

func TestCosineDistanceOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	if d := CosineDistance(a, b); d < 0.99 || d > 1.01 {
		t.Fatalf("CosineDistance(orthogonal) = %v, want ~1", d)
	}
}

func TestIntersectBreaks(t *testing.T) {
	got := IntersectBreaks([]int{2, 5, 9}, []int{5, 9, 12})
	if len(got) != 2 || got[0] != 5 || got[1] != 9 {
		t.Fatalf("IntersectBreaks() = %v, want [5 9]", got)
	}
}

func TestApplyBreaksBasic(t *testing.T) {
	segs := ApplyBreaks(10, []int{4})
	if len(segs) != 2 || segs[0] != [2]int{0, 5} || segs[1] != [2]int{5, 10} {
		t.Fatalf("ApplyBreaks() = %v", segs)
	}
}

func TestApplyBreaksDropsUndersizedBreak(t *testing.T) {
	segs := ApplyBreaks(10, []int{1})
	if len(segs) != 1 || segs[0] != [2]int{0, 10} {
		t.Fatalf("ApplyBreaks() = %v, want single undivided segment", segs)
	}
}

func TestApplyBreaksForcesMaxSize(t *testing.T) {
	segs := ApplyBreaks(200, nil)
	for _, s := range segs {
		if s[1]-s[0] > MaxSegmentMessages {
			t.Fatalf("segment %v exceeds MaxSegmentMessages", s)
		}
	}
}

func TestKeywordJaccard(t *testing.T) {
	a := []string{"Budget", "Q3", "Hiring"}
	b := []string{"budget", "hiring", "roadmap"}
	got := KeywordJaccard(a, b)
	want := 2.0 / 4.0
	if got != want {
		t.Fatalf("KeywordJaccard() = %v, want %v", got, want)
	}
}

func TestSetsIntersect(t *testing.T) {
	if !SetsIntersect([]string{"a", "b"}, []string{"c", "b"}) {
		t.Fatal("expected intersection")
	}
	if SetsIntersect([]string{"a"}, []string{"z"}) {
		t.Fatal("expected no intersection")
	}
}
