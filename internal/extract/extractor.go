// Package extract pulls plain text out of uploaded documents, page by page.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Result is the text of a document split by page. Slides and sheets count as pages; formats
// without pages yield a single page.
type Result struct {
	Pages []string
}

// PageCount returns the number of pages, including pages without text.
func (r *Result) PageCount() int {
	return len(r.Pages)
}

// Text joins all pages with blank lines.
func (r *Result) Text() string {
	return strings.Join(r.Pages, "\n\n")
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and extracts its text based on the file extension.
func (e *Extractor) Extract(path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content based on ext (with the leading dot, any case).
// Unknown extensions are treated as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (*Result, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	case ".pptx":
		return extractPPTX(content)
	default:
		return extractPlain(content), nil
	}
}

// Supported reports whether ext has a dedicated extractor or is a known plain text type.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".xlsx", ".pptx", ".txt", ".md", ".rst":
		return true
	}
	return false
}
