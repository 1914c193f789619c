package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hyperjump/docqa/internal/llm"
)

func TestStaticStream(t *testing.T) {
	s := staticStream(context.Background(), "only")
	text, err := s.Collect()
	assert.NoError(t, err)
	assert.Equal(t, "only", text)
	_, ok := s.Next()
	assert.False(t, ok)
}

func TestStaticStream_cancelledBeforeFirstFragment(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := staticStream(ctx, "never seen")
	_, ok := s.Next()
	assert.False(t, ok)
	assert.True(t, s.Cancelled())
	_, err := s.Collect()
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestTokenStream_closeStopsProducer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	chunks := make(chan llm.Chunk)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case chunks <- llm.Chunk{Text: "x"}:
			case <-ctx.Done():
				return
			}
		}
	}()
	s := newTokenStream(ctx, cancel, chunks)
	_, ok := s.Next()
	assert.True(t, ok)
	s.Close()
	<-stopped
	_, ok = s.Next()
	assert.False(t, ok)
	assert.NoError(t, s.Err())
}

func TestTokenStream_naturalEndIsNotCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	chunks := make(chan llm.Chunk, 2)
	chunks <- llm.Chunk{Text: "a"}
	chunks <- llm.Chunk{Text: "b"}
	close(chunks)
	s := newTokenStream(ctx, cancel, chunks)
	text, err := s.Collect()
	assert.NoError(t, err)
	assert.Equal(t, "ab", text)
	assert.False(t, s.Cancelled())
}

func TestPrompts(t *testing.T) {
	qa := QAPrompt("CTX-BODY", "Why?")
	assert.Contains(t, qa, "Context:\nCTX-BODY")
	assert.Contains(t, qa, "Question: Why?")

	q := QuizPrompt("CTX-BODY", "quiz me on rivers")
	assert.Contains(t, q, "quiz me on rivers")
	assert.Contains(t, q, "CTX-BODY")
	assert.Contains(t, q, `"answer": 0`)
}
