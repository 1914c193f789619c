// Package keyword provides BM25 passage search over the active corpus.
package keyword

import (
	"context"

	"github.com/hyperjump/docqa/internal/models"
)

// SearchOptions optional parameters for passage search. Nil means use defaults.
type SearchOptions struct {
	// PhraseBoost multiplies the score of passages where the query terms appear as a phrase.
	// Values > 1 enable the boost (e.g. 1.5).
	PhraseBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits of the query terms.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance for fuzzy matching (1 or 2). Default 2.
	Fuzziness int
	// SpellCheck fills PassageResult.Suggestion when nothing matched.
	SpellCheck bool
}

// PassageIndex is rebuilt from the corpus after every ingestion and queried by the boundary.
type PassageIndex interface {
	Rebuild(ctx context.Context, docs []models.Document) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) (*models.PassageResult, error)
	DocCount() (uint64, error)
	Close() error
}
