// Package models defines core data structures for documents, corpus state, questions and answers.
package models

// Metadata keys written on every ingested chunk.
const (
	MetaSource     = "source"
	MetaPageCount  = "page_count"
	MetaChunkIndex = "chunk_index"
	MetaChunkID    = "chunk_id"
	MetaChecksum   = "checksum"
	MetaPage       = "page"
)

// Document is a stored chunk with metadata. Immutable once stored.
type Document struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// MetaString returns the string metadata value for key, or "" when absent or not a string.
func (d Document) MetaString(key string) string {
	if d.Metadata == nil {
		return ""
	}
	s, _ := d.Metadata[key].(string)
	return s
}

// CorpusMetadata describes the document the active corpus was built from.
type CorpusMetadata struct {
	Filename   string `json:"filename"`
	PageCount  int    `json:"pageCount"`
	ChunkCount int    `json:"chunkCount"`
}

// SourceInfo describes an uploaded document before chunking.
type SourceInfo struct {
	Filename  string
	PageCount int
	Checksum  string
}

// IngestResult is returned by a document ingestion.
type IngestResult struct {
	Filename   string `json:"filename"`
	PageCount  int    `json:"pageCount"`
	ChunkCount int    `json:"chunkCount"`
	Skipped    bool   `json:"skipped,omitempty"`
}

// Status reports the state of the knowledge base.
type Status struct {
	Ready         bool            `json:"ready"`
	DocumentCount int             `json:"documentCount"`
	Metadata      *CorpusMetadata `json:"metadata"`
}

// MetaInt returns the integer metadata value for key. Values restored from a JSON snapshot
// arrive as float64 and are converted.
func (d Document) MetaInt(key string) (int, bool) {
	switch v := d.Metadata[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
