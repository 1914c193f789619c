// Package embedding turns text into vectors through Ollama, a local ONNX model or a deterministic
// hashing embedder, with optional caching and rate limiting wrappers.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}
