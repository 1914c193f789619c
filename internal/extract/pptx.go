package extract

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// pptxSlide matches slide parts and captures the slide number.
	pptxSlide = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	pptxText  = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
)

// extractPPTX returns one page per slide, in slide-number order.
func extractPPTX(content []byte) (*Result, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return nil, err
	}

	type slide struct {
		num  int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		m := pptxSlide.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	pages := make([]string, 0, len(slides))
	for _, s := range slides {
		data, err := readZipFile(zr, s.name)
		if err != nil {
			return nil, fmt.Errorf("extract PPTX: %w", err)
		}
		var parts []string
		for _, m := range pptxText.FindAllSubmatch(data, -1) {
			if t := strings.TrimSpace(html.UnescapeString(string(m[1]))); t != "" {
				parts = append(parts, t)
			}
		}
		pages = append(pages, strings.Join(parts, " "))
	}
	return &Result{Pages: pages}, nil
}
