package search

import (
	"testing"

	"github.com/hyperjump/docqa/internal/models"
)

func TestNormalizeKeywordScores(t *testing.T) {
	passages := []models.Passage{
		{ChunkIndex: 0, Score: 2},
		{ChunkIndex: 1, Score: 4},
		{ChunkIndex: 2, Score: 1},
	}
	m := NormalizeKeywordScores(passages)
	if m[1] != 1.0 {
		t.Errorf("max score should be 1.0, got %f", m[1])
	}
	if m[0] != 0.5 {
		t.Errorf("chunk 0 should be 0.5, got %f", m[0])
	}
	if len(m) != 3 {
		t.Errorf("expected 3 entries, got %d", len(m))
	}
	if len(NormalizeKeywordScores(nil)) != 0 {
		t.Error("nil passages should give an empty map")
	}
}

func TestSemanticScores(t *testing.T) {
	doc := func(idx interface{}) models.Document {
		return models.Document{Metadata: map[string]interface{}{models.MetaChunkIndex: idx}}
	}
	scored := []models.ScoredDocument{
		{Document: doc(0), Score: 0.9},
		{Document: doc(float64(1)), Score: 0.5},
		{Document: doc(2), Score: -0.2},
		{Document: models.Document{}, Score: 0.7},
	}
	m := SemanticScores(scored)
	if m[0] != 0.9 || m[1] != 0.5 {
		t.Errorf("unexpected map %v", m)
	}
	if _, ok := m[2]; ok {
		t.Error("negative similarity should be dropped")
	}
	if len(m) != 2 {
		t.Errorf("expected 2 entries, got %v", m)
	}
}

func TestFuse(t *testing.T) {
	kw := map[int]float64{1: 1.0, 2: 0.5}
	sem := map[int]float64{1: 0.5, 2: 1.0, 3: 0.4}
	results := Fuse(kw, sem, 0.5, 0.5)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Score < results[i].Score {
			t.Error("results should be sorted by score descending")
		}
	}
	// Chunks 1 and 2 tie at 0.75; document order breaks the tie.
	if results[0].ChunkIndex != 1 || results[1].ChunkIndex != 2 {
		t.Errorf("tie order = %d, %d; want 1, 2", results[0].ChunkIndex, results[1].ChunkIndex)
	}
	if results[2].ChunkIndex != 3 || results[2].KeywordScore != 0 || results[2].SemanticScore != 0.4 {
		t.Errorf("semantic-only result = %+v", results[2])
	}
}

func TestFuse_keywordOnlyWeight(t *testing.T) {
	results := Fuse(map[int]float64{4: 0.3}, map[int]float64{5: 0.9}, 1, 0)
	if results[0].ChunkIndex != 4 {
		t.Errorf("keyword weight 1 should rank chunk 4 first, got %+v", results)
	}
}
