package search

import (
	"context"
	"strings"
	"testing"

	"github.com/hyperjump/docqa/internal/embedding"
	"github.com/hyperjump/docqa/internal/indexer"
	"github.com/hyperjump/docqa/internal/keyword"
	"github.com/hyperjump/docqa/internal/models"
	"github.com/hyperjump/docqa/internal/vector"
)

const corpusText = `Photosynthesis converts light energy into chemical energy stored in glucose.

Cellular respiration releases the energy stored in glucose molecules.

The mitochondria is the organelle where respiration happens.`

func newTestEngine(t *testing.T, text string) *Engine {
	t.Helper()
	ctx := context.Background()
	store := vector.NewStore("")
	emb := embedding.NewHashEmbedder(128)
	kw, err := keyword.NewBleveIndex(nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	idx := indexer.NewIndexer(store, emb,
		indexer.WithKeywordIndex(kw),
		indexer.WithChunker(indexer.NewChunker(80, 0)))
	if text != "" {
		if _, err := idx.ProcessText(ctx, text, models.SourceInfo{Filename: "bio.txt"}); err != nil {
			t.Fatal(err)
		}
	}
	return NewEngine(store, emb, kw)
}

func TestEngine_Search_keywordOnly(t *testing.T) {
	e := newTestEngine(t, corpusText)
	res, err := e.Search(context.Background(), models.PassageQuery{Query: "mitochondria"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Passages) != 1 || !strings.Contains(res.Passages[0].Content, "mitochondria") {
		t.Fatalf("passages = %+v", res.Passages)
	}
	if res.Passages[0].SemanticScore != 0 {
		t.Error("keyword-only search should not carry a semantic score")
	}
}

func TestEngine_Search_hybrid(t *testing.T) {
	e := newTestEngine(t, corpusText)
	res, err := e.Search(context.Background(), models.PassageQuery{Query: "glucose energy", Limit: 2}, Options{Semantic: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Passages) == 0 || len(res.Passages) > 2 {
		t.Fatalf("expected 1-2 passages, got %d", len(res.Passages))
	}
	top := res.Passages[0]
	if !strings.Contains(top.Content, "glucose") {
		t.Errorf("top passage should mention glucose: %q", top.Content)
	}
	if top.KeywordScore <= 0 || top.SemanticScore <= 0 {
		t.Errorf("top passage should have both scores: %+v", top)
	}
	for i := 1; i < len(res.Passages); i++ {
		if res.Passages[i-1].Score < res.Passages[i].Score {
			t.Error("passages should be sorted by fused score")
		}
	}
}

func TestEngine_Search_emptyCorpus(t *testing.T) {
	e := newTestEngine(t, "")
	res, err := e.Search(context.Background(), models.PassageQuery{Query: "anything"}, Options{Semantic: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Passages) != 0 {
		t.Errorf("expected no passages, got %+v", res.Passages)
	}
}

func TestEngine_Search_suggestion(t *testing.T) {
	e := newTestEngine(t, corpusText)
	res, err := e.Search(context.Background(), models.PassageQuery{Query: "mitochondira"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Passages) != 0 {
		t.Fatalf("expected no exact passages, got %+v", res.Passages)
	}
	if res.Suggestion != "mitochondria" {
		t.Errorf("suggestion = %q, want mitochondria", res.Suggestion)
	}
}

func TestEngine_Search_invalidQuery(t *testing.T) {
	e := newTestEngine(t, corpusText)
	if _, err := e.Search(context.Background(), models.PassageQuery{Query: "   "}, Options{}); err == nil {
		t.Error("expected error for blank query")
	}
}
