// Package search ranks passages of the active corpus by keyword relevance, optionally fused with
// embedding similarity.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/keyword"
	"github.com/hyperjump/docqa/internal/models"
	"github.com/hyperjump/docqa/internal/vector"
	"github.com/hyperjump/docqa/pkg/utils"
)

const (
	phraseBoost   = 1.5
	minCandidates = 20
)

// Options selects how a search runs.
type Options struct {
	// Fuzzy matches keyword terms within a small edit distance.
	Fuzzy bool
	// Semantic fuses keyword hits with cosine similarity against the chunk vectors.
	Semantic bool
}

// Engine runs passage search.
type Engine struct {
	store          *vector.Store
	embedder       vector.Embedder
	keywords       keyword.PassageIndex
	keywordWeight  float64
	semanticWeight float64
	logger         *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithWeights sets the keyword and semantic weights for hybrid search.
func WithWeights(keywordWeight, semanticWeight float64) EngineOption {
	return func(e *Engine) {
		if keywordWeight >= 0 && semanticWeight >= 0 && keywordWeight+semanticWeight > 0 {
			e.keywordWeight = keywordWeight
			e.semanticWeight = semanticWeight
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates a search engine over store and its keyword index.
func NewEngine(store *vector.Store, embedder vector.Embedder, keywords keyword.PassageIndex, opts ...EngineOption) *Engine {
	e := &Engine{
		store:          store,
		embedder:       embedder,
		keywords:       keywords,
		keywordWeight:  0.5,
		semanticWeight: 0.5,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e
}

// Search validates q and returns up to q.Limit passages. Without opts.Semantic this is a plain
// keyword search; with it, keyword and vector candidates are gathered concurrently and fused.
// A spelling suggestion is only returned when no passage matched.
func (e *Engine) Search(ctx context.Context, q models.PassageQuery, opts Options) (*models.PassageResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	kwOpts := &keyword.SearchOptions{
		PhraseBoost:  phraseBoost,
		FuzzyEnabled: opts.Fuzzy,
		SpellCheck:   true,
	}
	if !opts.Semantic {
		return e.keywords.Search(ctx, q.Query, q.Limit, kwOpts)
	}

	candidates := q.Limit * 2
	if candidates < minCandidates {
		candidates = minCandidates
	}

	var (
		kwResult *models.PassageResult
		semantic []models.ScoredDocument
		errChan  = make(chan error, 2)
		wg       sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		res, err := e.keywords.Search(ctx, q.Query, candidates, kwOpts)
		if err != nil {
			errChan <- fmt.Errorf("keyword search failed: %w", err)
			return
		}
		kwResult = res
	}()
	go func() {
		defer wg.Done()
		res, err := e.store.Search(ctx, q.Query, candidates, e.embedder)
		if err != nil && !errors.Is(err, vector.ErrEmptyStore) {
			errChan <- fmt.Errorf("semantic search failed: %w", err)
			return
		}
		semantic = res
	}()
	wg.Wait()
	close(errChan)
	if err, ok := <-errChan; ok {
		return nil, err
	}

	fused := Fuse(NormalizeKeywordScores(kwResult.Passages), SemanticScores(semantic), e.keywordWeight, e.semanticWeight)
	e.logger.Debug("Fused passage candidates",
		zap.Int("keyword", len(kwResult.Passages)),
		zap.Int("semantic", len(semantic)),
		zap.Int("fused", len(fused)))

	byChunk := make(map[int]models.Passage, len(kwResult.Passages))
	for _, p := range kwResult.Passages {
		byChunk[p.ChunkIndex] = p
	}
	docs := make(map[int]models.Document, len(semantic))
	for _, sd := range semantic {
		if idx, ok := sd.Document.MetaInt(models.MetaChunkIndex); ok {
			docs[idx] = sd.Document
		}
	}

	if len(fused) > q.Limit {
		fused = fused[:q.Limit]
	}
	result := &models.PassageResult{Query: q.Query, Passages: make([]models.Passage, 0, len(fused))}
	for _, f := range fused {
		p, ok := byChunk[f.ChunkIndex]
		if !ok {
			d := docs[f.ChunkIndex]
			page, _ := d.MetaInt(models.MetaPage)
			p = models.Passage{ChunkIndex: f.ChunkIndex, Page: page, Content: d.Content}
		}
		p.Score = f.Score
		p.KeywordScore = f.KeywordScore
		p.SemanticScore = f.SemanticScore
		result.Passages = append(result.Passages, p)
	}
	if len(result.Passages) == 0 {
		result.Suggestion = kwResult.Suggestion
	}
	return result, nil
}
