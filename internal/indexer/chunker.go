// Package indexer turns uploaded documents into the active corpus: extraction, normalization,
// recursive chunking, embedding and keyword indexing.
package indexer

import (
	"strings"
	"unicode/utf8"
)

// Default chunking parameters, in runes.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 300
)

// defaultSeparators are tried in order: paragraph, line, sentence, word, then a hard cut.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits text recursively on the coarsest separator that occurs, merging the pieces
// into chunks of at most chunkSize runes. Consecutive chunks share up to chunkOverlap runes.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewChunker creates a chunker with the given size and overlap (in runes). A non-positive size
// falls back to DefaultChunkSize; an overlap outside [0, size) is clamped to a quarter of size.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

// Split returns the chunks of text in document order. Whitespace-only text yields no chunks.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.split(text, c.separators)
}

func (c *Chunker) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var finer []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			finer = separators[i+1:]
			break
		}
	}

	var chunks, pending []string
	for _, piece := range splitKeep(text, separator) {
		if runeLen(piece) < c.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, c.merge(pending)...)
			pending = nil
		}
		if len(finer) == 0 {
			if s := strings.TrimSpace(piece); s != "" {
				chunks = append(chunks, s)
			}
			continue
		}
		chunks = append(chunks, c.split(piece, finer)...)
	}
	if len(pending) > 0 {
		chunks = append(chunks, c.merge(pending)...)
	}
	return chunks
}

// merge packs pieces into chunks no longer than chunkSize. When a chunk is emitted, pieces are
// dropped from its front until at most chunkOverlap runes remain and the next piece fits; the
// rest is carried into the next chunk.
func (c *Chunker) merge(pieces []string) []string {
	var chunks, window []string
	total := 0
	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > c.chunkSize && len(window) > 0 {
			if s := strings.TrimSpace(strings.Join(window, "")); s != "" {
				chunks = append(chunks, s)
			}
			for len(window) > 0 && (total > c.chunkOverlap || total+n > c.chunkSize) {
				total -= runeLen(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += n
	}
	if s := strings.TrimSpace(strings.Join(window, "")); s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

// splitKeep splits text after every occurrence of sep, keeping sep at the end of each piece.
// An empty sep splits into runes.
func splitKeep(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, len(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}
	parts := strings.SplitAfter(text, sep)
	pieces := parts[:0]
	for _, p := range parts {
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
