package embedding

import (
	"context"
	"strings"
	"unicode"

	"github.com/hyperjump/docqa/pkg/utils"
)

// HashEmbedder is a deterministic bag-of-words embedder. Each lowercased term is hashed into one
// of the vector's buckets with a hash-derived sign, and the result is L2-normalized, so texts
// sharing terms score higher under cosine similarity. It needs no model and is used offline and
// in tests.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the hashed term vector of text. Text without terms gives the zero vector.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	for _, term := range Terms(text) {
		h := HashString(term)
		sign := float32(1)
		if (h/e.dimensions)%2 == 1 {
			sign = -1
		}
		emb[h%e.dimensions] += sign
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}

// Terms lowercases text and splits it on anything that is not a letter or digit.
func Terms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
