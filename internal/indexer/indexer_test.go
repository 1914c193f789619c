package indexer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/docqa/internal/embedding"
	"github.com/hyperjump/docqa/internal/fileid"
	"github.com/hyperjump/docqa/internal/keyword"
	"github.com/hyperjump/docqa/internal/models"
	"github.com/hyperjump/docqa/internal/vector"
)

func testIndexer(t *testing.T, opts ...IndexerOption) (*Indexer, *vector.Store) {
	t.Helper()
	store := vector.NewStore(filepath.Join(t.TempDir(), "vector_store.json"))
	return NewIndexer(store, embedding.NewHashEmbedder(64), opts...), store
}

func TestIndexer_ProcessText_short(t *testing.T) {
	idx, store := testIndexer(t)
	res, err := idx.ProcessText(context.Background(),
		"Paris is the capital of France. It has a population of 2 million.",
		models.SourceInfo{Filename: "paris.txt"})
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if res.ChunkCount != 1 || res.PageCount != 1 {
		t.Errorf("result = %+v, want 1 page 1 chunk", res)
	}
	if store.DocumentCount() != 1 {
		t.Errorf("DocumentCount = %d", store.DocumentCount())
	}
	meta := store.Metadata()
	if meta == nil || meta.Filename != "paris.txt" || meta.ChunkCount != 1 || meta.PageCount != 1 {
		t.Errorf("metadata = %+v", meta)
	}
}

func TestIndexer_ProcessDocument_chunkMetadata(t *testing.T) {
	idx, store := testIndexer(t)
	content := []byte(strings.Repeat("The quick brown fox jumps over the lazy dog. ", 60))
	res, err := idx.ProcessDocument(context.Background(), content, "fox.txt")
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if res.ChunkCount < 2 {
		t.Fatalf("expected several chunks, got %d", res.ChunkCount)
	}
	docs := store.Documents()
	if len(docs) != res.ChunkCount {
		t.Fatalf("store has %d docs, result says %d", len(docs), res.ChunkCount)
	}
	ids := make(map[string]bool)
	for i, d := range docs {
		if d.MetaString(models.MetaSource) != "fox.txt" {
			t.Errorf("doc %d source = %q", i, d.MetaString(models.MetaSource))
		}
		if ci, _ := d.MetaInt(models.MetaChunkIndex); ci != i {
			t.Errorf("doc %d chunk_index = %d", i, ci)
		}
		if p, _ := d.MetaInt(models.MetaPage); p != 1 {
			t.Errorf("doc %d page = %d", i, p)
		}
		if d.MetaString(models.MetaChecksum) != fileid.ContentID(content) {
			t.Errorf("doc %d checksum mismatch", i)
		}
		id := d.MetaString(models.MetaChunkID)
		if id == "" || ids[id] {
			t.Errorf("doc %d chunk_id %q missing or duplicated", i, id)
		}
		ids[id] = true
		if len([]rune(d.Content)) > DefaultChunkSize {
			t.Errorf("doc %d exceeds chunk size", i)
		}
	}
}

func TestIndexer_ProcessDocument_pagesSplitSeparately(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Revenue grew in the first quarter")
	if _, err := f.NewSheet("Costs"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("Costs", "A1", "Costs fell in the second quarter")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	idx, store := testIndexer(t)
	res, err := idx.ProcessDocument(context.Background(), buf.Bytes(), "report.xlsx")
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if res.PageCount != 2 || res.ChunkCount != 2 {
		t.Fatalf("result = %+v, want 2 pages 2 chunks", res)
	}
	docs := store.Documents()
	for i, want := range []string{"Revenue", "Costs"} {
		if !strings.HasPrefix(docs[i].Content, want) {
			t.Errorf("chunk %d = %q", i, docs[i].Content)
		}
		if p, _ := docs[i].MetaInt(models.MetaPage); p != i+1 {
			t.Errorf("chunk %d page = %d, want %d", i, p, i+1)
		}
	}
}

func TestIndexer_replacesCorpus(t *testing.T) {
	idx, store := testIndexer(t)
	ctx := context.Background()
	if _, err := idx.ProcessText(ctx, strings.Repeat("alpha beta gamma. ", 200), models.SourceInfo{Filename: "a.txt"}); err != nil {
		t.Fatal(err)
	}
	res, err := idx.ProcessText(ctx, "Only document B remains.", models.SourceInfo{Filename: "b.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if store.DocumentCount() != res.ChunkCount || res.ChunkCount != 1 {
		t.Errorf("DocumentCount = %d, want B's %d", store.DocumentCount(), res.ChunkCount)
	}
	for _, d := range store.Documents() {
		if d.MetaString(models.MetaSource) != "b.txt" {
			t.Errorf("chunk from %q survived", d.MetaString(models.MetaSource))
		}
	}
}

func TestIndexer_emptyTextHasNoChunks(t *testing.T) {
	idx, store := testIndexer(t)
	res, err := idx.ProcessText(context.Background(), "  \n ", models.SourceInfo{Filename: "blank.txt"})
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if res.ChunkCount != 0 || store.DocumentCount() != 0 {
		t.Errorf("expected no chunks, got %d", res.ChunkCount)
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding backend down")
}

func TestIndexer_embedFailurePropagates(t *testing.T) {
	store := vector.NewStore("")
	idx := NewIndexer(store, failingEmbedder{})
	_, err := idx.ProcessText(context.Background(), "some text", models.SourceInfo{Filename: "x.txt"})
	if err == nil || !strings.Contains(err.Error(), "embedding backend down") {
		t.Fatalf("expected embed error, got %v", err)
	}
	if store.DocumentCount() != 0 {
		t.Errorf("no chunk should be stored, got %d", store.DocumentCount())
	}
}

func TestIndexer_ProcessFile_skipsUnchanged(t *testing.T) {
	idx, _ := testIndexer(t)
	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("# Notes\n\nSome notes."), 0644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	first, err := idx.ProcessFile(ctx, path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if first.Skipped {
		t.Fatal("first ingestion should not be skipped")
	}
	second, err := idx.ProcessFile(ctx, path)
	if err != nil {
		t.Fatalf("ProcessFile again: %v", err)
	}
	if !second.Skipped || second.ChunkCount != first.ChunkCount {
		t.Errorf("second = %+v, want skipped with %d chunks", second, first.ChunkCount)
	}
	if _, err := idx.ProcessFile(ctx, filepath.Dir(path)); err == nil {
		t.Error("expected error for a directory")
	}
}

func TestIndexer_keywordIndexFollowsCorpus(t *testing.T) {
	kw, err := keyword.NewBleveIndex(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer kw.Close()
	idx, _ := testIndexer(t, WithKeywordIndex(kw))
	ctx := context.Background()

	if _, err := idx.ProcessText(ctx, "Zanzibar spices are famous.", models.SourceInfo{Filename: "z.txt"}); err != nil {
		t.Fatal(err)
	}
	res, err := kw.Search(ctx, "zanzibar", 10, nil)
	if err != nil || len(res.Passages) != 1 {
		t.Fatalf("expected one passage, got %v, %v", res, err)
	}

	if err := idx.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	res, err = kw.Search(ctx, "zanzibar", 10, nil)
	if err != nil || len(res.Passages) != 0 {
		t.Errorf("expected no passages after Clear, got %v, %v", res, err)
	}
}

func TestIndexer_concurrentIngestionsKeepOneCorpus(t *testing.T) {
	idx, store := testIndexer(t)
	ctx := context.Background()
	texts := map[string]string{
		"a.txt": strings.Repeat("apples and pears. ", 150),
		"b.txt": strings.Repeat("boats and harbours. ", 120),
	}
	var wg sync.WaitGroup
	for name, text := range texts {
		wg.Add(1)
		go func(name, text string) {
			defer wg.Done()
			if _, err := idx.ProcessText(ctx, text, models.SourceInfo{Filename: name}); err != nil {
				t.Errorf("ProcessText(%s): %v", name, err)
			}
		}(name, text)
	}
	wg.Wait()

	c := store.Snapshot()
	if len(c.Documents) != len(c.Vectors) {
		t.Fatalf("documents %d != vectors %d", len(c.Documents), len(c.Vectors))
	}
	source := c.Documents[0].MetaString(models.MetaSource)
	for _, d := range c.Documents {
		if d.MetaString(models.MetaSource) != source {
			t.Fatalf("corpus mixes %q and %q", source, d.MetaString(models.MetaSource))
		}
	}
	if c.Metadata == nil || c.Metadata.Filename != source || c.Metadata.ChunkCount != len(c.Documents) {
		t.Errorf("metadata %+v does not describe the corpus", c.Metadata)
	}
}
