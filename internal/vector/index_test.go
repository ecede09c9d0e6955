package vector

import (
	"math"
	"testing"

	"github.com/qwe111-didna/auto-get-arxiv-papers/models"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name   string
		a, b   []float32
		want   float64
		wantOK bool
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0, true},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0, true},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0, true},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0, false},
		{"zero vector", []float32{0, 0}, []float32{1, 2}, 0, false},
		{"empty", nil, nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Cosine(tt.a, tt.b)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRank(t *testing.T) {
	chunks := []models.PaperChunk{
		{PaperID: "a", Title: "A", Vector: []float32{1, 0, 0}},
		{PaperID: "b", Title: "B", Vector: []float32{0.9, 0.1, 0}},
		{PaperID: "c", Title: "C", Vector: []float32{0, 1, 0}},
		{PaperID: "bad", Title: "Bad", Vector: []float32{0, 0}},
	}

	hits := Rank([]float32{1, 0, 0}, chunks, 2)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].PaperID != "a" || hits[1].PaperID != "b" {
		t.Errorf("unexpected ranking order: %q, %q", hits[0].PaperID, hits[1].PaperID)
	}
	if hits[0].Score < hits[1].Score {
		t.Error("hits not sorted by descending score")
	}
}

func TestRankTopKLargerThanCorpus(t *testing.T) {
	chunks := []models.PaperChunk{
		{PaperID: "a", Vector: []float32{1, 0}},
	}
	hits := Rank([]float32{1, 0}, chunks, 5)
	if len(hits) != 1 {
		t.Errorf("expected 1 hit, got %d", len(hits))
	}
}

func TestRankZeroTopK(t *testing.T) {
	chunks := []models.PaperChunk{
		{PaperID: "a", Vector: []float32{1, 0}},
	}
	if hits := Rank([]float32{1, 0}, chunks, 0); len(hits) != 0 {
		t.Errorf("expected no hits for topK=0, got %d", len(hits))
	}
}
