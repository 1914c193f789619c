package extract

import (
	"archive/zip"
	"fmt"
	"html"
	"regexp"
	"strings"
)

const (
	docxDefaultDocumentPath = "word/document.xml"
	contentTypesPath        = "[Content_Types].xml"
	docxMainContentType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// docxParagraph matches a <w:p> element; <w:pPr> and other w:p* tags are excluded by the
	// character after the tag name.
	docxParagraph = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	docxText      = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

	// The main part's PartName may come before or after its ContentType attribute.
	docxPartBefore = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	docxPartAfter  = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

// docxMainPart finds the main document part from [Content_Types].xml, defaulting to word/document.xml.
func docxMainPart(zr *zip.Reader) string {
	data, err := readZipFile(zr, contentTypesPath)
	if err != nil || data == nil {
		return docxDefaultDocumentPath
	}
	for _, re := range []*regexp.Regexp{docxPartBefore, docxPartAfter} {
		if m := re.FindSubmatch(data); len(m) > 1 {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return docxDefaultDocumentPath
}

// extractDOCX returns the document body as one page. Runs inside a paragraph are concatenated and
// paragraphs are separated by blank lines so the chunker can split on them.
func extractDOCX(content []byte) (*Result, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return nil, err
	}
	part := docxMainPart(zr)
	body, err := readZipFile(zr, part)
	if err != nil {
		return nil, fmt.Errorf("extract DOCX: %w", err)
	}
	if body == nil {
		return nil, fmt.Errorf("extract DOCX: %s not found", part)
	}

	var paragraphs []string
	for _, p := range docxParagraph.FindAll(body, -1) {
		var b strings.Builder
		for _, run := range docxText.FindAllSubmatch(p, -1) {
			b.Write(run[1])
		}
		if text := strings.TrimSpace(html.UnescapeString(b.String())); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return &Result{Pages: []string{strings.Join(paragraphs, "\n\n")}}, nil
}
