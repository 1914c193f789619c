// Package llm talks to the language model that writes answers and quizzes.
package llm

import "context"

// Chunk is one streamed fragment. A Chunk with a non-nil Err is the last one sent.
type Chunk struct {
	Text string
	Err  error
}

// LanguageModel generates text for a prompt, either buffered or as a stream of fragments.
// The Stream channel is closed when generation ends or ctx is done.
type LanguageModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string) (<-chan Chunk, error)
}
