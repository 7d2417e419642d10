package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type TextReader struct {
	wordsPerPage int
}

func NewTextReader(wordsPerPage int) *TextReader {
	return &TextReader{wordsPerPage: wordsPerPage}
}

func (t *TextReader) ExtractPages(data []byte) ([]string, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: not valid utf-8", ErrCorruptContent)
	}
	return paginate(string(data), t.wordsPerPage), nil
}

// paginate splits text into pages: explicit markers first (form feed or a
// standalone "Page N" line), then a words-per-page fallback so downstream
// page numbering never collapses a long document onto one page.
func paginate(text string, wordsPerPage int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if strings.ContainsRune(text, '\f') {
		return strings.Split(text, "\f")
	}

	if pages := splitOnPageMarkers(text); len(pages) > 1 {
		return pages
	}

	if wordsPerPage <= 0 {
		wordsPerPage = 500
	}
	words := strings.Fields(text)
	if len(words) <= wordsPerPage {
		return []string{text}
	}

	pages := make([]string, 0, len(words)/wordsPerPage+1)
	for start := 0; start < len(words); start += wordsPerPage {
		end := start + wordsPerPage
		if end > len(words) {
			end = len(words)
		}
		pages = append(pages, strings.Join(words[start:end], " "))
	}
	return pages
}

func splitOnPageMarkers(text string) []string {
	lines := strings.Split(text, "\n")

	var pages []string
	var current []string
	for _, line := range lines {
		if isPageMarker(line) {
			if len(current) > 0 {
				pages = append(pages, strings.Join(current, "\n"))
				current = current[:0]
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		pages = append(pages, strings.Join(current, "\n"))
	}
	return pages
}

// isPageMarker matches standalone page-header lines such as "Page 3".
func isPageMarker(line string) bool {
	s := strings.TrimSpace(line)
	if len(s) < 5 || len(s) > 16 {
		return false
	}
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "page ") {
		return false
	}
	rest := strings.TrimSpace(s[5:])
	if rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
