package segmenter

import (
	"reflect"
	"testing"

	"github.com/mityayka1/pkgraph/internal/store"
)

func TestWindowize(t *testing.T) {
	msgs := make([]*store.Message, 12)
	for i := range msgs {
		msgs[i] = &store.Message{}
	}
	got := windowize(msgs, 5)
	if len(got) != 3 || len(got[0]) != 5 || len(got[1]) != 5 || len(got[2]) != 2 {
		t.Fatalf("windowize() shapes = %v %v %v", len(got[0]), len(got[1]), len(got[2]))
	}
}

func TestAverageEmbeddingSkipsMismatchedDims(t *testing.T) {
	msgs := []*store.Message{
		{Embedding: []float32{1, 1}},
		{Embedding: []float32{3, 3}},
		{Embedding: []float32{9, 9, 9}}, // wrong dim, skipped
	}
	got := averageEmbedding(msgs)
	want := []float32{2, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("averageEmbedding() = %v, want %v", got, want)
	}
}

func TestAverageEmbeddingNilWhenNoVectors(t *testing.T) {
	msgs := []*store.Message{{}, {}}
	if got := averageEmbedding(msgs); got != nil {
		t.Fatalf("averageEmbedding() = %v, want nil", got)
	}
}

func TestParseBreakIndices(t *testing.T) {
	got := parseBreakIndices("3, 7,12")
	want := []int{3, 7, 12}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parseBreakIndices() = %v, want %v", got, want)
	}
}

func TestParseBreakIndicesNone(t *testing.T) {
	if got := parseBreakIndices("none"); got != nil {
		t.Fatalf("parseBreakIndices(none) = %v, want nil", got)
	}
}

func TestWindowBoundaryIndexClamps(t *testing.T) {
	if got := windowBoundaryIndex(10, 5, 12); got != 11 {
		t.Fatalf("windowBoundaryIndex() = %d, want 11 (clamped)", got)
	}
}
