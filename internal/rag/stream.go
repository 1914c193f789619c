package rag

import (
	"context"
	"strings"

	"github.com/hyperjump/docqa/internal/llm"
)

// TokenStream yields answer fragments in order. It is finite and cannot be restarted. The
// cancellation context is checked before every fragment; once it is done the stream ends
// without an error.
type TokenStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	chunks <-chan llm.Chunk
	static []string
	err       error
	done      bool
	cancelled bool
}

func newTokenStream(ctx context.Context, cancel context.CancelFunc, chunks <-chan llm.Chunk) *TokenStream {
	return &TokenStream{ctx: ctx, cancel: cancel, chunks: chunks}
}

// staticStream yields fragments already in memory, used for buffered quiz output.
func staticStream(ctx context.Context, fragments ...string) *TokenStream {
	return &TokenStream{ctx: ctx, static: fragments}
}

// Next returns the next fragment. ok is false when the stream is exhausted, failed or cancelled.
func (s *TokenStream) Next() (fragment string, ok bool) {
	if s.done {
		return "", false
	}
	if s.ctx.Err() != nil {
		s.cancelled = true
		s.finish()
		return "", false
	}
	if s.chunks == nil {
		if len(s.static) == 0 {
			s.finish()
			return "", false
		}
		fragment, s.static = s.static[0], s.static[1:]
		return fragment, true
	}
	select {
	case c, open := <-s.chunks:
		if !open {
			s.cancelled = s.ctx.Err() != nil
			s.finish()
			return "", false
		}
		if c.Err != nil {
			if s.ctx.Err() == nil {
				s.err = c.Err
			} else {
				s.cancelled = true
			}
			s.finish()
			return "", false
		}
		return c.Text, true
	case <-s.ctx.Done():
		s.cancelled = true
		s.finish()
		return "", false
	}
}

// Err returns the model failure that ended the stream, if any. Cancellation is not an error.
func (s *TokenStream) Err() error {
	return s.err
}

// Cancelled reports whether the stream ended because its context was cancelled.
func (s *TokenStream) Cancelled() bool {
	return s.cancelled
}

// Close stops the producer. Further calls to Next return false.
func (s *TokenStream) Close() {
	s.finish()
}

// Collect drains the stream and returns the concatenated text.
func (s *TokenStream) Collect() (string, error) {
	var b strings.Builder
	for {
		fragment, ok := s.Next()
		if !ok {
			break
		}
		b.WriteString(fragment)
	}
	if s.Cancelled() {
		return b.String(), ErrCancelled
	}
	return b.String(), s.err
}

func (s *TokenStream) finish() {
	s.done = true
	if s.cancel != nil {
		s.cancel()
	}
}
