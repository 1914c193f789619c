package keyword

import (
	"context"
	"strings"
	"testing"

	"github.com/hyperjump/docqa/internal/models"
)

func chunk(content string, idx, page int) models.Document {
	return models.Document{
		Content: content,
		Metadata: map[string]interface{}{
			models.MetaSource:     "report.pdf",
			models.MetaChunkIndex: idx,
			models.MetaPage:       page,
		},
	}
}

func newTestIndex(t *testing.T, docs ...models.Document) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex(nil)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	if err := idx.Rebuild(context.Background(), docs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return idx
}

func TestBleveIndex_SearchFindsContent(t *testing.T) {
	idx := newTestIndex(t,
		chunk("The weather in Lyon was mild all week.", 0, 1),
		chunk("This report mentions Omnisyan and other findings. The Bayes app is also referenced.", 1, 2),
	)
	ctx := context.Background()

	res, err := idx.Search(ctx, "Omnisyan", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Passages) != 1 {
		t.Fatalf("expected one passage for Omnisyan, got %d", len(res.Passages))
	}
	p := res.Passages[0]
	if p.ChunkIndex != 1 || p.Page != 2 {
		t.Errorf("passage chunk/page = %d/%d, want 1/2", p.ChunkIndex, p.Page)
	}
	if !strings.Contains(p.Snippet, "Omnisyan") {
		t.Errorf("snippet should contain the match: %q", p.Snippet)
	}

	// Standard analyzer (no stemming) so "bayes" matches "Bayes"
	res, err = idx.Search(ctx, "bayes", 10, nil)
	if err != nil {
		t.Fatalf("Search bayes: %v", err)
	}
	if len(res.Passages) == 0 || res.Passages[0].ChunkIndex != 1 {
		t.Errorf("expected chunk 1 for bayes, got %+v", res.Passages)
	}
}

func TestBleveIndex_RebuildReplacesContents(t *testing.T) {
	idx := newTestIndex(t, chunk("onlyinfirst corpus", 0, 1))
	ctx := context.Background()
	if err := idx.Rebuild(ctx, []models.Document{chunk("second corpus text", 0, 1)}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	res, err := idx.Search(ctx, "onlyinfirst", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Passages) != 0 {
		t.Errorf("expected no hits from the replaced corpus, got %d", len(res.Passages))
	}
	n, err := idx.DocCount()
	if err != nil || n != 1 {
		t.Errorf("DocCount = %d, %v; want 1", n, err)
	}
}

func TestBleveIndex_EmptyIndex(t *testing.T) {
	idx := newTestIndex(t)
	res, err := idx.Search(context.Background(), "anything", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Passages == nil || len(res.Passages) != 0 {
		t.Errorf("expected empty non-nil passages, got %#v", res.Passages)
	}
}

func TestBleveIndex_Limit(t *testing.T) {
	var docs []models.Document
	for i := 0; i < 5; i++ {
		docs = append(docs, chunk("shared keyword here", i, 1))
	}
	idx := newTestIndex(t, docs...)
	res, err := idx.Search(context.Background(), "keyword", 2, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Passages) != 2 {
		t.Errorf("len = %d, want 2", len(res.Passages))
	}
}

func TestBleveIndex_PhraseBoost(t *testing.T) {
	idx := newTestIndex(t,
		chunk("france has a capital and many other cities of note", 0, 1),
		chunk("paris is the capital of france", 1, 1),
	)
	res, err := idx.Search(context.Background(), "capital of france", 10, &SearchOptions{PhraseBoost: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Passages) < 2 {
		t.Fatalf("expected both passages, got %d", len(res.Passages))
	}
	if res.Passages[0].ChunkIndex != 1 {
		t.Errorf("phrase match should rank first, got chunk %d", res.Passages[0].ChunkIndex)
	}
}

func TestBleveIndex_FuzzyAndSuggestion(t *testing.T) {
	idx := newTestIndex(t, chunk("Paris is the capital of France.", 0, 1))
	ctx := context.Background()

	res, err := idx.Search(ctx, "captial", 10, &SearchOptions{SpellCheck: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Passages) != 0 {
		t.Fatalf("exact search for a typo should miss, got %d", len(res.Passages))
	}
	if res.Suggestion != "capital" {
		t.Errorf("Suggestion = %q, want capital", res.Suggestion)
	}

	res, err = idx.Search(ctx, "captial", 10, &SearchOptions{FuzzyEnabled: true})
	if err != nil {
		t.Fatalf("Search fuzzy: %v", err)
	}
	if len(res.Passages) != 1 {
		t.Errorf("fuzzy search should find the passage, got %d", len(res.Passages))
	}
}
