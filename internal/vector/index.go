// Package vector holds the active corpus: chunk documents, their embedding vectors and corpus
// metadata. It answers brute-force cosine top-k queries and persists a single JSON snapshot.
package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/docqa/internal/models"
)

// ErrEmptyStore is returned by a search against a corpus with no documents.
var ErrEmptyStore = errors.New("vector store is empty")

// PersistenceError reports a snapshot load, save or delete failure.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("snapshot %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Corpus is an immutable view of the active knowledge base. Documents[i] pairs with Vectors[i].
// Callers must not modify a Corpus obtained from a Store.
type Corpus struct {
	Documents []models.Document
	Vectors   [][]float32
	Metadata  *models.CorpusMetadata
}

// Len returns the number of documents.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Documents)
}

// withAppendRoom returns a copy whose slices no longer alias c's backing arrays.
func (c *Corpus) withAppendRoom(extra int) *Corpus {
	docs := make([]models.Document, len(c.Documents), len(c.Documents)+extra)
	copy(docs, c.Documents)
	vecs := make([][]float32, len(c.Vectors), len(c.Vectors)+extra)
	copy(vecs, c.Vectors)
	return &Corpus{Documents: docs, Vectors: vecs, Metadata: c.Metadata}
}

func emptyCorpus() *Corpus {
	return &Corpus{Documents: []models.Document{}, Vectors: [][]float32{}}
}
