package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/models"
)

// Store holds the single active Corpus. Mutations are serialised by writeMu and publish a new
// Corpus value; readers take the current pointer and work on it without further locking.
type Store struct {
	snap   *snapshotter
	logger *zap.Logger

	writeMu sync.Mutex
	mu      sync.RWMutex
	corpus  *Corpus
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger for load and save events.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty store persisted at path. An empty path keeps the corpus in memory only.
func NewStore(path string, opts ...StoreOption) *Store {
	s := &Store{corpus: emptyCorpus()}
	if path != "" {
		s.snap = newSnapshotter(path)
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Initialize restores the persisted snapshot. A missing snapshot leaves the store empty; an
// unreadable or inconsistent one is logged and also leaves it empty.
func (s *Store) Initialize() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.snap == nil {
		return
	}
	c, err := s.snap.load()
	if err != nil {
		s.logger.Warn("Discarding unreadable snapshot, starting empty", zap.Error(err))
		s.swap(emptyCorpus())
		return
	}
	if c == nil {
		s.logger.Info("No snapshot found, starting empty", zap.String("path", s.snap.path))
		s.swap(emptyCorpus())
		return
	}
	s.swap(c)
	s.logger.Info("Restored snapshot",
		zap.String("path", s.snap.path),
		zap.Int("documents", c.Len()))
}

// Clear drops every document and the metadata and deletes the snapshot file.
func (s *Store) Clear() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.swap(emptyCorpus())
	if s.snap == nil {
		return nil
	}
	if err := s.snap.remove(); err != nil {
		s.logger.Error("Failed to delete snapshot", zap.Error(err))
		return err
	}
	return nil
}

// SetMetadata replaces the corpus metadata and persists. A nil m clears it.
func (s *Store) SetMetadata(m *models.CorpusMetadata) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := *s.Snapshot()
	if m != nil {
		copied := *m
		next.Metadata = &copied
	} else {
		next.Metadata = nil
	}
	s.swap(&next)
	return s.persist(&next)
}

// Metadata returns a copy of the corpus metadata, or nil when none is set.
func (s *Store) Metadata() *models.CorpusMetadata {
	m := s.Snapshot().Metadata
	if m == nil {
		return nil
	}
	copied := *m
	return &copied
}

// AddDocuments embeds docs one at a time, in order, appends each with its vector and persists the
// result. When an embedding fails the documents appended before it stay in the corpus, the
// snapshot is not written and the error is returned.
func (s *Store) AddDocuments(ctx context.Context, docs []models.Document, embedder Embedder) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.Snapshot().withAppendRoom(len(docs))
	for i, doc := range docs {
		vec, err := embedder.Embed(ctx, doc.Content)
		if err != nil {
			s.swap(next)
			return fmt.Errorf("failed to embed document %d of %d: %w", i+1, len(docs), err)
		}
		next.Documents = append(next.Documents, doc)
		next.Vectors = append(next.Vectors, vec)
	}
	s.swap(next)
	return s.persist(next)
}

// SimilaritySearch returns the documents of the top min(k, count) matches for query.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int, embedder Embedder) ([]models.Document, error) {
	scored, err := s.Search(ctx, query, k, embedder)
	if err != nil {
		return nil, err
	}
	docs := make([]models.Document, len(scored))
	for i, sd := range scored {
		docs[i] = sd.Document
	}
	return docs, nil
}

// Search embeds query and ranks every stored vector by cosine similarity. Results are ordered by
// non-increasing score; equal scores keep insertion order. Returns ErrEmptyStore on an empty corpus.
func (s *Store) Search(ctx context.Context, query string, k int, embedder Embedder) ([]models.ScoredDocument, error) {
	c := s.Snapshot()
	if c.Len() == 0 {
		return nil, ErrEmptyStore
	}
	if k <= 0 {
		return []models.ScoredDocument{}, nil
	}
	qv, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(c.Vectors[0]) != len(qv) {
		s.logger.Warn("Query embedding dimension differs from stored vectors",
			zap.Int("query_dims", len(qv)),
			zap.Int("stored_dims", len(c.Vectors[0])))
	}

	type scoredIndex struct {
		idx   int
		score float64
	}
	scores := make([]scoredIndex, len(c.Vectors))
	for i, vec := range c.Vectors {
		scores[i] = scoredIndex{idx: i, score: CosineSimilarity(qv, vec)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if k > len(scores) {
		k = len(scores)
	}
	results := make([]models.ScoredDocument, k)
	for i := 0; i < k; i++ {
		results[i] = models.ScoredDocument{
			Document: c.Documents[scores[i].idx],
			Score:    scores[i].score,
		}
	}
	return results, nil
}

// DocumentCount returns the number of documents in the active corpus.
func (s *Store) DocumentCount() int {
	return s.Snapshot().Len()
}

// Documents returns the active documents. The slice is shared and must not be modified.
func (s *Store) Documents() []models.Document {
	return s.Snapshot().Documents
}

// Snapshot returns the active corpus. It is never nil and must not be modified.
func (s *Store) Snapshot() *Corpus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.corpus
}

func (s *Store) swap(c *Corpus) {
	s.mu.Lock()
	s.corpus = c
	s.mu.Unlock()
}

func (s *Store) persist(c *Corpus) error {
	if s.snap == nil {
		return nil
	}
	if err := s.snap.save(c); err != nil {
		s.logger.Error("Failed to save snapshot", zap.Error(err))
		return err
	}
	s.logger.Debug("Saved snapshot",
		zap.String("path", s.snap.path),
		zap.Int("documents", c.Len()))
	return nil
}
