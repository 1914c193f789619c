package indexer

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunker_shortTextIsOneChunk(t *testing.T) {
	text := "Paris is the capital of France. It has a population of 2 million."
	chunks := NewChunker(1000, 300).Split(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("chunk = %q, want the whole text", chunks[0])
	}
}

func TestChunker_hardCutWithOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 250) // 2500 chars, no separators
	chunks := NewChunker(1000, 300).Split(text)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	want := []string{text[0:1000], text[700:1700], text[1400:2400], text[2100:2500]}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = [%d chars] %q..., want text[%d:]", i, len(chunks[i]), chunks[i][:10], i*700)
		}
	}
}

func TestChunker_prefersWordBoundaries(t *testing.T) {
	var b strings.Builder
	for i := 0; b.Len() < 3000; i++ {
		fmt.Fprintf(&b, "word%d ", i)
	}
	text := strings.TrimSpace(b.String())
	chunks := NewChunker(1000, 300).Split(text)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	words := make(map[string]bool)
	for _, w := range strings.Fields(text) {
		words[w] = true
	}
	for i, ch := range chunks {
		if n := utf8.RuneCountInString(ch); n > 1000 {
			t.Errorf("chunk %d has %d runes", i, n)
		}
		for _, w := range strings.Fields(ch) {
			if !words[w] {
				t.Errorf("chunk %d cut a word: %q", i, w)
			}
		}
		if i > 0 {
			head := ch[:20]
			if !strings.Contains(chunks[i-1], head) {
				t.Errorf("chunk %d does not overlap chunk %d: starts with %q", i, i-1, head)
			}
		}
	}
}

func TestChunker_prefersParagraphs(t *testing.T) {
	para := func(c string) string { return strings.TrimSpace(strings.Repeat(c+" ", 200)) } // 399 chars
	text := para("a") + "\n\n" + para("b") + "\n\n" + para("c") + "\n\n" + para("d")
	chunks := NewChunker(1000, 300).Split(text)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != para("a")+"\n\n"+para("b") {
		t.Errorf("first chunk should hold paragraphs a and b, got %q", chunks[0])
	}
	if !strings.HasPrefix(chunks[1], para("c")) {
		t.Errorf("second chunk should start at paragraph c, got %q", chunks[1][:20])
	}
}

func TestChunker_runeLengths(t *testing.T) {
	text := strings.Repeat("é", 1500)
	chunks := NewChunker(1000, 300).Split(text)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if n := utf8.RuneCountInString(chunks[0]); n != 1000 {
		t.Errorf("first chunk has %d runes, want 1000", n)
	}
	if n := utf8.RuneCountInString(chunks[1]); n != 800 {
		t.Errorf("second chunk has %d runes, want 800", n)
	}
	for i, ch := range chunks {
		if !utf8.ValidString(ch) {
			t.Errorf("chunk %d is not valid UTF-8", i)
		}
	}
}

func TestChunker_empty(t *testing.T) {
	c := NewChunker(5, 1)
	if chunks := c.Split("   \n\t  "); chunks != nil {
		t.Errorf("empty text should return nil, got %v", chunks)
	}
	if chunks := c.Split(""); chunks != nil {
		t.Errorf("empty text should return nil, got %v", chunks)
	}
}

func TestNewChunker_clamps(t *testing.T) {
	c := NewChunker(100, 200)
	if c.chunkOverlap != 25 {
		t.Errorf("overlap >= size should clamp to size/4, got %d", c.chunkOverlap)
	}
	c = NewChunker(0, -1)
	if c.chunkSize != DefaultChunkSize {
		t.Errorf("chunkSize = %d, want default", c.chunkSize)
	}
	if c.chunkOverlap != DefaultChunkSize/4 {
		t.Errorf("chunkOverlap = %d", c.chunkOverlap)
	}
}

func TestPreprocess(t *testing.T) {
	in := "Line one   \r\nLine two\r\n\r\n\r\n\r\nNext ﬁle\x00  "
	want := "Line one\nLine two\n\nNext file"
	if got := Preprocess(in); got != want {
		t.Errorf("Preprocess = %q, want %q", got, want)
	}
	if got := Preprocess("a\n\nb"); got != "a\n\nb" {
		t.Errorf("paragraph break should survive, got %q", got)
	}
}
