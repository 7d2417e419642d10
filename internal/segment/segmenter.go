// Package segment splits per-page document text into ordered, overlapping
// chunks with section provenance.
package segment

import (
	"strings"
	"unicode"
)

// Chunk is one bounded span of a single page. Offsets are rune offsets
// within that page's text.
type Chunk struct {
	PageNumber  int
	Section     string
	Text        string
	StartOffset int
	EndOffset   int
}

type Segmenter struct {
	chunkSize int
	stride    int
}

// sentenceWindow bounds the backward scan for a sentence boundary before
// cutting at the raw character budget.
const sentenceWindow = 100

func New(chunkSize, stride int) *Segmenter {
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	if stride < 0 {
		stride = 0
	}
	if stride >= chunkSize {
		stride = chunkSize / 4
	}
	return &Segmenter{chunkSize: chunkSize, stride: stride}
}

// Segment chunks every page in order. Page numbers are 1-based positions in
// the input; a blank page contributes no chunks but still advances the page
// number. Section labels inherit across pages until a new heading appears.
func (s *Segmenter) Segment(pages []string) []Chunk {
	var out []Chunk
	section := ""
	for i, page := range pages {
		chunks, lastHeading := s.segmentPage(page, section)
		for _, c := range chunks {
			c.PageNumber = i + 1
			out = append(out, c)
		}
		if lastHeading != "" {
			section = lastHeading
		}
	}
	return out
}

func (s *Segmenter) segmentPage(page, inherited string) ([]Chunk, string) {
	if strings.TrimSpace(page) == "" {
		return nil, ""
	}

	runes := []rune(page)
	headings := findHeadings(runes)

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := s.cut(runes, start)
		text := string(runes[start:end])
		if strings.TrimSpace(text) != "" {
			section := inherited
			for _, h := range headings {
				if h.offset > start {
					break
				}
				section = h.label
			}
			chunks = append(chunks, Chunk{
				Section:     section,
				Text:        text,
				StartOffset: start,
				EndOffset:   end,
			})
		}
		if end >= len(runes) {
			break
		}
		next := end - s.stride
		if next <= start {
			next = end
		}
		start = next
	}

	last := ""
	if len(headings) > 0 {
		last = headings[len(headings)-1].label
	}
	return chunks, last
}

// cut returns the end offset for a chunk starting at start: the character
// budget, pulled back to the nearest sentence boundary when one exists
// within the scan window.
func (s *Segmenter) cut(runes []rune, start int) int {
	end := start + s.chunkSize
	if end >= len(runes) {
		return len(runes)
	}

	low := end - sentenceWindow
	if low <= start {
		low = start + 1
	}
	for i := end - 1; i >= low; i-- {
		if isSentenceEnd(runes, i) {
			return i + 1
		}
	}
	return end
}

func isSentenceEnd(runes []rune, i int) bool {
	switch runes[i] {
	case '.', '!', '?':
	default:
		return false
	}
	if i+1 >= len(runes) {
		return true
	}
	switch runes[i+1] {
	case ' ', '\n', '\t', '\r':
		return true
	}
	return false
}

type heading struct {
	offset int
	label  string
}

func findHeadings(runes []rune) []heading {
	var found []heading
	lineStart := 0
	for i := 0; i <= len(runes); i++ {
		if i < len(runes) && runes[i] != '\n' {
			continue
		}
		if label, ok := headingLabel(string(runes[lineStart:i])); ok {
			found = append(found, heading{offset: lineStart, label: label})
		}
		lineStart = i + 1
	}
	return found
}

// headingLabel reports whether the line reads like a section heading:
// short, mostly letters, no sentence punctuation at the end, and either
// fully upper-case ("PAST MEDICAL HISTORY") or a "Medications:" lead-in.
func headingLabel(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false
	}
	runes := []rune(trimmed)
	if len(runes) < 3 || len(runes) > 60 {
		return "", false
	}

	switch runes[len(runes)-1] {
	case '.', '!', '?', ',', ';':
		return "", false
	}

	letters := 0
	hasLower := false
	for _, r := range runes {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsLower(r) {
				hasLower = true
			}
		}
	}
	if letters < 3 {
		return "", false
	}

	if !hasLower {
		return strings.TrimSuffix(trimmed, ":"), true
	}
	if unicode.IsUpper(runes[0]) && strings.HasSuffix(trimmed, ":") {
		return strings.TrimSuffix(trimmed, ":"), true
	}
	return "", false
}
