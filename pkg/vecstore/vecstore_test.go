package vecstore

import "testing"

var _ Index = (*Memory)(nil)

func TestSearchRanksByDistance(t *testing.T) {
	idx := NewMemory()
	_ = idx.Insert("fact-job", []float32{1, 0, 0, 0})
	_ = idx.Insert("fact-city", []float32{0, 1, 0, 0})
	_ = idx.Insert("fact-job-2", []float32{0.9, 0.1, 0, 0})

	matches, err := idx.Search([]float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
	if matches[0].ID != "fact-job" || matches[1].ID != "fact-job-2" {
		t.Errorf("ranking = %q, %q", matches[0].ID, matches[1].ID)
	}
	if matches[0].Distance > matches[1].Distance {
		t.Errorf("distances not ascending: %f > %f", matches[0].Distance, matches[1].Distance)
	}
}

func TestBatchInsert(t *testing.T) {
	idx := NewMemory()
	ids := []string{"fact-a", "fact-b", "fact-c"}
	vecs := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	if err := idx.BatchInsert(ids, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Len() != 3 {
		t.Errorf("Len = %d, want 3", idx.Len())
	}
}

func TestDeleteRemovesFromSearch(t *testing.T) {
	idx := NewMemory()
	_ = idx.Insert("fact-a", []float32{1, 0})
	_ = idx.Delete("fact-a")
	if idx.Len() != 0 {
		t.Errorf("Len after delete = %d, want 0", idx.Len())
	}
	// Retracting an unindexed fact must stay a no-op.
	if err := idx.Delete("fact-missing"); err != nil {
		t.Fatal(err)
	}
	matches, err := idx.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if matches != nil {
		t.Errorf("empty index returned %v", matches)
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 0},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 1},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, 2},
		{"near duplicate", []float32{1, 0.1, 0}, []float32{1, 0, 0}, 0.005},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineDistance(tt.a, tt.b)
			if diff := got - tt.want; diff > 0.01 || diff < -0.01 {
				t.Errorf("CosineDistance = %f, want ~%f", got, tt.want)
			}
		})
	}

	// Mismatched dimensions are maximally distant; zero vectors match
	// nothing and must not divide by zero.
	if d := CosineDistance([]float32{1, 0}, []float32{1, 0, 0}); d != 2 {
		t.Errorf("dimension mismatch = %f, want 2", d)
	}
	if d := CosineDistance([]float32{0, 0, 0}, []float32{1, 0, 0}); d != 0 {
		t.Errorf("zero vector = %f, want 0", d)
	}
}

func TestDedupeThreshold(t *testing.T) {
	// The store treats 1-distance >= 0.92 as a re-confirmation of an
	// existing fact. A near-duplicate embedding clears the bar, an
	// unrelated one does not.
	idx := NewMemory()
	_ = idx.Insert("fact-job", []float32{0.8, 0.6, 0})

	matches, err := idx.Search([]float32{0.82, 0.57, 0.05}, 1)
	if err != nil || len(matches) != 1 {
		t.Fatalf("Search = %v, %v", matches, err)
	}
	if sim := 1 - matches[0].Distance; sim < 0.92 {
		t.Errorf("near-duplicate similarity = %f, want >= 0.92", sim)
	}

	matches, err = idx.Search([]float32{0, 0.1, 0.99}, 1)
	if err != nil || len(matches) != 1 {
		t.Fatalf("Search = %v, %v", matches, err)
	}
	if sim := 1 - matches[0].Distance; sim >= 0.92 {
		t.Errorf("unrelated similarity = %f, want < 0.92", sim)
	}
}
