package embedding

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitedEmbedder_Delegates(t *testing.T) {
	inner := &countingEmbedder{}
	e := NewRateLimitedEmbedder(inner, 1000, 5)
	for i := 0; i < 3; i++ {
		if _, err := e.Embed(context.Background(), "abc"); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls != 3 {
		t.Errorf("inner calls = %d", inner.calls)
	}
}

func TestRateLimitedEmbedder_WaitRespectsContext(t *testing.T) {
	inner := &countingEmbedder{}
	e := NewRateLimitedEmbedder(inner, 0.001, 1)
	if _, err := e.Embed(context.Background(), "first"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := e.Embed(ctx, "second"); err == nil {
		t.Fatal("expected wait to fail once the burst is spent")
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}
