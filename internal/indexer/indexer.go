package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/extract"
	"github.com/hyperjump/docqa/internal/fileid"
	"github.com/hyperjump/docqa/internal/keyword"
	"github.com/hyperjump/docqa/internal/models"
	"github.com/hyperjump/docqa/internal/vector"
	"github.com/hyperjump/docqa/pkg/utils"
)

// Indexer replaces the active corpus with the chunks of one document. Ingestions are serialized:
// at most one clear-chunk-embed sequence runs at a time.
type Indexer struct {
	store     *vector.Store
	embedder  vector.Embedder
	extractor *extract.Extractor
	chunker   *Chunker
	keywords  keyword.PassageIndex
	logger    *zap.Logger

	mu sync.Mutex
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) {
		idx.logger = l
	}
}

// WithChunker overrides the default 1000/300 chunker.
func WithChunker(c *Chunker) IndexerOption {
	return func(idx *Indexer) {
		idx.chunker = c
	}
}

// WithKeywordIndex keeps k in sync with the corpus after every ingestion.
func WithKeywordIndex(k keyword.PassageIndex) IndexerOption {
	return func(idx *Indexer) {
		idx.keywords = k
	}
}

// NewIndexer creates an indexer writing to store with embedder.
func NewIndexer(store *vector.Store, embedder vector.Embedder, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		store:     store,
		embedder:  embedder,
		extractor: extract.NewExtractor(),
		chunker:   NewChunker(DefaultChunkSize, DefaultChunkOverlap),
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.OrNop(idx.logger)
	return idx
}

// ProcessDocument extracts content by the filename extension and makes it the active corpus.
func (idx *Indexer) ProcessDocument(ctx context.Context, content []byte, filename string) (*models.IngestResult, error) {
	res, err := idx.extractor.ExtractBytes(content, filepath.Ext(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", filename, err)
	}
	return idx.ingest(ctx, res.Pages, models.SourceInfo{
		Filename:  filename,
		PageCount: res.PageCount(),
		Checksum:  fileid.ContentID(content),
	})
}

// ProcessText makes already-extracted text the active corpus. A zero PageCount is reported as 1.
func (idx *Indexer) ProcessText(ctx context.Context, text string, src models.SourceInfo) (*models.IngestResult, error) {
	if src.PageCount <= 0 {
		src.PageCount = 1
	}
	if src.Checksum == "" {
		src.Checksum = fileid.ContentID([]byte(text))
	}
	return idx.ingest(ctx, []string{text}, src)
}

// ProcessFile ingests the file at path unless its content is already the active corpus, in which
// case the result is marked Skipped and the corpus is left untouched.
func (idx *Indexer) ProcessFile(ctx context.Context, path string) (*models.IngestResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	checksum, err := fileid.FileContentID(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	filename := filepath.Base(path)
	if idx.ActiveChecksum() == checksum {
		meta := idx.store.Metadata()
		result := &models.IngestResult{Filename: filename, Skipped: true}
		if meta != nil {
			result.PageCount = meta.PageCount
			result.ChunkCount = meta.ChunkCount
		}
		idx.logger.Debug("Skipping unchanged document", zap.String("path", path))
		return result, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return idx.ProcessDocument(ctx, content, filename)
}

// ActiveChecksum returns the content checksum of the active corpus, or "" when it is empty.
func (idx *Indexer) ActiveChecksum() string {
	docs := idx.store.Documents()
	if len(docs) == 0 {
		return ""
	}
	return docs[0].MetaString(models.MetaChecksum)
}

// Clear empties the corpus and the keyword index.
func (idx *Indexer) Clear(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear corpus: %w", err)
	}
	idx.SyncKeywords(ctx)
	idx.logger.Info("Corpus cleared")
	return nil
}

// SyncKeywords rebuilds the keyword index from the active corpus. Failures only disable passage
// search for the current corpus and are logged.
func (idx *Indexer) SyncKeywords(ctx context.Context) {
	if idx.keywords == nil {
		return
	}
	if err := idx.keywords.Rebuild(ctx, idx.store.Documents()); err != nil {
		idx.logger.Warn("Failed to rebuild keyword index", zap.Error(err))
	}
}

func (idx *Indexer) ingest(ctx context.Context, pages []string, src models.SourceInfo) (*models.IngestResult, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	done := utils.StartTimer(idx.logger, "ingest", zap.String("filename", src.Filename))

	if err := idx.store.Clear(); err != nil {
		return nil, fmt.Errorf("failed to clear corpus: %w", err)
	}
	docs := idx.buildChunks(pages, src)
	meta := &models.CorpusMetadata{
		Filename:   src.Filename,
		PageCount:  src.PageCount,
		ChunkCount: len(docs),
	}
	if err := idx.store.SetMetadata(meta); err != nil {
		return nil, fmt.Errorf("failed to set corpus metadata: %w", err)
	}
	if err := idx.store.AddDocuments(ctx, docs, idx.embedder); err != nil {
		idx.SyncKeywords(ctx)
		return nil, fmt.Errorf("failed to add chunks: %w", err)
	}
	idx.SyncKeywords(ctx)

	done("Document ingested", zap.Int("pages", src.PageCount), zap.Int("chunks", len(docs)))
	return &models.IngestResult{
		Filename:   src.Filename,
		PageCount:  src.PageCount,
		ChunkCount: len(docs),
	}, nil
}

// buildChunks splits each page on its own so no chunk spans a page break.
func (idx *Indexer) buildChunks(pages []string, src models.SourceInfo) []models.Document {
	var docs []models.Document
	for p, page := range pages {
		for _, text := range idx.chunker.Split(Preprocess(page)) {
			docs = append(docs, models.Document{
				Content: text,
				Metadata: map[string]interface{}{
					models.MetaSource:     src.Filename,
					models.MetaPage:       p + 1,
					models.MetaPageCount:  src.PageCount,
					models.MetaChunkIndex: len(docs),
					models.MetaChunkID:    uuid.New().String(),
					models.MetaChecksum:   src.Checksum,
				},
			})
		}
	}
	return docs
}
