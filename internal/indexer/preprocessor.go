package indexer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Preprocess normalizes extracted text before splitting. It applies NFKC, converts line endings
// to "\n", strips trailing whitespace from each line and collapses runs of blank lines into a
// single paragraph break. Line and paragraph boundaries are kept for the splitter.
func Preprocess(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	text = blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text)
}
