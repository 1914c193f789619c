package keyword

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/models"
	"github.com/hyperjump/docqa/pkg/utils"
)

const snippetLength = 200

// passageDoc is the indexed shape of one chunk.
type passageDoc struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// BleveIndex implements PassageIndex with an in-memory Bleve index. The whole index is replaced
// on Rebuild, matching the single active corpus.
type BleveIndex struct {
	logger *zap.Logger

	mu      sync.RWMutex
	index   bleve.Index
	docs    []models.Document
	speller *Speller
}

// NewBleveIndex creates an empty in-memory index.
func NewBleveIndex(logger *zap.Logger) (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{
		logger:  utils.OrNop(logger),
		index:   index,
		speller: NewSpeller(nil),
	}, nil
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) keeps exact words matchable.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	sourceFieldMapping := bleve.NewKeywordFieldMapping()
	sourceFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("source", sourceFieldMapping)
	im.DefaultMapping = docMapping
	return im
}

// Rebuild replaces the index contents with docs. Document i is indexed under ID "i" so hits map
// back to corpus positions.
func (b *BleveIndex) Rebuild(ctx context.Context, docs []models.Document) error {
	next, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return fmt.Errorf("failed to create Bleve index: %w", err)
	}
	batch := next.NewBatch()
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			_ = next.Close()
			return err
		}
		pd := passageDoc{Content: doc.Content, Source: doc.MetaString(models.MetaSource)}
		if err := batch.Index(strconv.Itoa(i), pd); err != nil {
			_ = next.Close()
			return fmt.Errorf("failed to index passage %d: %w", i, err)
		}
	}
	if err := next.Batch(batch); err != nil {
		_ = next.Close()
		return fmt.Errorf("failed to apply Bleve batch: %w", err)
	}
	terms, err := termFrequencies(next)
	if err != nil {
		b.logger.Warn("Spell checking disabled for this corpus", zap.Error(err))
	}

	b.mu.Lock()
	old := b.index
	b.index = next
	b.docs = docs
	b.speller = NewSpeller(terms)
	b.mu.Unlock()

	b.logger.Debug("Keyword index rebuilt", zap.Int("passages", len(docs)), zap.Int("terms", len(terms)))
	return old.Close()
}

func termFrequencies(index bleve.Index) (map[string]int, error) {
	dict, err := index.FieldDict("content")
	if err != nil {
		return nil, fmt.Errorf("failed to open term dictionary: %w", err)
	}
	defer dict.Close()
	terms := make(map[string]int)
	for {
		entry, err := dict.Next()
		if err != nil {
			return terms, fmt.Errorf("failed to read term dictionary: %w", err)
		}
		if entry == nil {
			return terms, nil
		}
		terms[entry.Term] = int(entry.Count)
	}
}

// Search runs a match query over the passages and returns up to limit hits in score order.
// With opts.PhraseBoost > 1, passages containing the query as a phrase are boosted and the hits
// are re-ranked. With opts.FuzzyEnabled, each term matches within opts.Fuzziness edits.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) (*models.PassageResult, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	fuzziness := opts.Fuzziness
	if fuzziness <= 0 {
		fuzziness = 2
	}
	if limit <= 0 {
		limit = 10
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	result := &models.PassageResult{Query: query, Passages: []models.Passage{}}
	if len(b.docs) == 0 {
		return result, nil
	}

	terms := tokenizeQuery(query)
	boosting := opts.PhraseBoost > 1.0 && len(terms) > 1
	reqSize := limit
	if boosting {
		reqSize = limit * 2
		if reqSize < 50 {
			reqSize = 50
		}
	}

	var q blevequery.Query
	if opts.FuzzyEnabled {
		q = buildFuzzyQuery(query, terms, fuzziness)
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField("content")
		q = mq
	}
	req := bleve.NewSearchRequestOptions(q, reqSize, 0, false)
	req.Highlight = bleve.NewHighlightWithStyle(html.Name)
	req.Highlight.AddField("content")
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	var phrases map[string]bool
	if boosting {
		phrases = b.phraseMatches(ctx, query, reqSize)
	}
	for _, hit := range res.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= len(b.docs) {
			continue
		}
		score := hit.Score
		if phrases[hit.ID] {
			score *= opts.PhraseBoost
		}
		result.Passages = append(result.Passages, b.passage(i, score, hit.Fragments["content"]))
	}
	if boosting {
		sort.SliceStable(result.Passages, func(i, j int) bool {
			return result.Passages[i].Score > result.Passages[j].Score
		})
	}
	if len(result.Passages) > limit {
		result.Passages = result.Passages[:limit]
	}

	if len(result.Passages) == 0 && opts.SpellCheck {
		if corrected, ok := b.speller.Correct(query); ok {
			result.Suggestion = corrected
		}
	}
	return result, nil
}

func (b *BleveIndex) passage(i int, score float64, fragments []string) models.Passage {
	doc := b.docs[i]
	p := models.Passage{ChunkIndex: i, Score: score, Content: doc.Content}
	if idx, ok := doc.MetaInt(models.MetaChunkIndex); ok {
		p.ChunkIndex = idx
	}
	if page, ok := doc.MetaInt(models.MetaPage); ok {
		p.Page = page
	}
	if len(fragments) > 0 {
		p.Snippet = fragments[0]
	} else {
		p.Snippet = utils.Truncate(doc.Content, snippetLength)
	}
	return p
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery ORs a FuzzyQuery per term over the content field.
func buildFuzzyQuery(query string, terms []string, fuzziness int) blevequery.Query {
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		mq.SetField("content")
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField("content")
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// phraseMatches returns the IDs of passages where query appears as a phrase.
func (b *BleveIndex) phraseMatches(ctx context.Context, query string, reqSize int) map[string]bool {
	matches := make(map[string]bool)
	pq := bleve.NewMatchPhraseQuery(query)
	pq.SetField("content")
	res, err := b.index.SearchInContext(ctx, bleve.NewSearchRequestOptions(pq, reqSize, 0, false))
	if err != nil {
		b.logger.Debug("Phrase query failed", zap.Error(err))
		return matches
	}
	for _, hit := range res.Hits {
		matches[hit.ID] = true
	}
	return matches
}

// DocCount returns the number of indexed passages.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}
