// Package cli formats command results for the docqa command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/docqa/internal/models"
	"github.com/hyperjump/docqa/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const rule = "─────────────────────────────────────────────────────────"

// ParseOutputFormat validates a --output flag value. Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("invalid output format %q (use text or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes a buffered answer. In text mode the answer comes first, then its sources.
func WriteAnswer(w io.Writer, resp *models.AnswerResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintln(w, resp.Answer)
	WriteSources(w, resp.SourceDocuments)
	return nil
}

// WriteSources lists the chunks an answer was grounded on, one short line each.
func WriteSources(w io.Writer, docs []models.Document) {
	if len(docs) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\nSources (%d chunks)\n", rule, len(docs))
	for _, d := range docs {
		idx, _ := d.MetaInt(models.MetaChunkIndex)
		label := fmt.Sprintf("#%d", idx)
		if page, ok := d.MetaInt(models.MetaPage); ok {
			label += fmt.Sprintf(" p.%d", page)
		}
		fmt.Fprintf(w, "  [%s] %s\n", label, oneLine(utils.Truncate(d.Content, 80)))
	}
}

// WriteStatus writes the knowledge base status.
func WriteStatus(w io.Writer, status models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	if !status.Ready {
		fmt.Fprintln(w, "Knowledge base: empty (ingest a document first)")
		return nil
	}
	fmt.Fprintln(w, "Knowledge base: ready")
	if m := status.Metadata; m != nil {
		fmt.Fprintf(w, "Document:       %s\n", m.Filename)
		fmt.Fprintf(w, "Pages:          %d\n", m.PageCount)
		fmt.Fprintf(w, "Chunks:         %d\n", m.ChunkCount)
	} else {
		fmt.Fprintf(w, "Chunks:         %d\n", status.DocumentCount)
	}
	return nil
}

// WriteIngestResult writes the outcome of an ingestion.
func WriteIngestResult(w io.Writer, res *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if res.Skipped {
		fmt.Fprintf(w, "%s is already the active document, nothing to do\n", res.Filename)
		return nil
	}
	fmt.Fprintf(w, "Ingested %s: %d pages, %d chunks\n", res.Filename, res.PageCount, res.ChunkCount)
	return nil
}

// WritePassages writes keyword search results.
func WritePassages(w io.Writer, result *models.PassageResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	if len(result.Passages) == 0 {
		fmt.Fprintf(w, "No passages match %q\n", result.Query)
		if result.Suggestion != "" {
			fmt.Fprintf(w, "Did you mean: %s\n", result.Suggestion)
		}
		return nil
	}
	fmt.Fprintf(w, "\nFound %d passages for %q\n\n", len(result.Passages), result.Query)
	for i, p := range result.Passages {
		fmt.Fprintln(w, rule)
		header := fmt.Sprintf("Rank: %d | Score: %.4f | Chunk: %d", i+1, p.Score, p.ChunkIndex)
		if p.Page > 0 {
			header += fmt.Sprintf(" | Page: %d", p.Page)
		}
		fmt.Fprintln(w, header)
		text := p.Snippet
		if text == "" {
			text = utils.Truncate(p.Content, 200)
		}
		fmt.Fprintf(w, "\n%s\n\n", stripMarks(text))
	}
	return nil
}

// stripMarks turns highlighter <mark> tags into terminal-friendly brackets.
func stripMarks(s string) string {
	return strings.NewReplacer("<mark>", "[", "</mark>", "]").Replace(s)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
