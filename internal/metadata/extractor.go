// Package metadata finds dates and display context around keyword
// occurrences in chunk text.
package metadata

import (
	"regexp"
	"sort"
	"strings"
)

const monthNames = `January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec`

// datePatterns covers the date forms that show up in medical records:
// US numeric, dashed, month-name (both orders), ISO and dotted European.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`),
	regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{4}\b`),
	regexp.MustCompile(`(?i)\b(?:` + monthNames + `)\.?\s+\d{1,2},?\s+\d{4}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:` + monthNames + `)\.?,?\s+\d{4}\b`),
	regexp.MustCompile(`\b\d{4}-\d{1,2}-\d{1,2}\b`),
	regexp.MustCompile(`\b\d{1,2}\.\d{1,2}\.\d{4}\b`),
}

// Match is one keyword located in a chunk, with its nearest date and a short
// display window.
type Match struct {
	Keyword string
	Date    string
	Summary string
}

type Extractor struct {
	windowWords  int
	summaryWords int
}

func NewExtractor() *Extractor {
	return &Extractor{
		windowWords:  15,
		summaryWords: 10,
	}
}

// Dates returns every date-like substring in order of appearance.
// Overlapping matches from different patterns are reported once.
func (e *Extractor) Dates(text string) []string {
	type span struct {
		start, end int
		value      string
	}
	var spans []span
	for _, p := range datePatterns {
		for _, loc := range p.FindAllStringIndex(text, -1) {
			spans = append(spans, span{start: loc[0], end: loc[1], value: text[loc[0]:loc[1]]})
		}
	}
	if len(spans) == 0 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	var out []string
	lastEnd := -1
	for _, s := range spans {
		if s.start < lastEnd {
			continue
		}
		out = append(out, s.value)
		lastEnd = s.end
	}
	return out
}

// Annotate returns one Match per keyword found as a whole word
// (case-insensitive) in text, in the order the keywords were given.
func (e *Extractor) Annotate(text string, keywords []string) []Match {
	tokens := tokenize(text)

	var matches []Match
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		loc := findWholeWord(text, kw)
		if loc == nil {
			continue
		}
		matches = append(matches, Match{
			Keyword: kw,
			Date:    e.dateNear(text, tokens, loc[0]),
			Summary: e.summary(text, tokens, loc[0]),
		})
	}
	return matches
}

func findWholeWord(text, keyword string) []int {
	p, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(keyword) + `\b`)
	if err != nil {
		return nil
	}
	return p.FindStringIndex(text)
}

type token struct {
	start, end int
}

func tokenize(text string) []token {
	var tokens []token
	inWord := false
	start := 0
	for i, r := range text {
		space := r == ' ' || r == '\n' || r == '\t' || r == '\r' || r == '\f' || r == '\v'
		if !space && !inWord {
			inWord = true
			start = i
		}
		if space && inWord {
			inWord = false
			tokens = append(tokens, token{start: start, end: i})
		}
	}
	if inWord {
		tokens = append(tokens, token{start: start, end: len(text)})
	}
	return tokens
}

func tokenIndexAt(tokens []token, offset int) int {
	for i, t := range tokens {
		if offset < t.end {
			return i
		}
	}
	return len(tokens) - 1
}

// dateNear locates the date closest to the keyword occurrence within a
// ±windowWords word window. Nearest by character distance wins; ties go to
// the earlier occurrence. Empty when the window holds no date.
func (e *Extractor) dateNear(text string, tokens []token, keywordStart int) string {
	if len(tokens) == 0 {
		return ""
	}
	ki := tokenIndexAt(tokens, keywordStart)
	loIdx := ki - e.windowWords
	if loIdx < 0 {
		loIdx = 0
	}
	hiIdx := ki + e.windowWords
	if hiIdx >= len(tokens) {
		hiIdx = len(tokens) - 1
	}
	lo, hi := tokens[loIdx].start, tokens[hiIdx].end
	window := text[lo:hi]

	best := ""
	bestDist := -1
	offset := 0
	for _, d := range e.Dates(window) {
		idx := strings.Index(window[offset:], d)
		if idx < 0 {
			continue
		}
		start := offset + idx
		offset = start + len(d)

		dist := lo + start - keywordStart
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			best = d
			bestDist = dist
		}
	}
	return best
}

// summary builds a ~summaryWords word window centered on the match, with
// ellipses marking truncation.
func (e *Extractor) summary(text string, tokens []token, matchStart int) string {
	if len(tokens) == 0 {
		return ""
	}
	ki := tokenIndexAt(tokens, matchStart)
	before := e.summaryWords * 2 / 5
	lo := ki - before
	if lo < 0 {
		lo = 0
	}
	hi := lo + e.summaryWords
	if hi > len(tokens) {
		hi = len(tokens)
	}

	parts := make([]string, 0, hi-lo)
	for _, t := range tokens[lo:hi] {
		parts = append(parts, text[t.start:t.end])
	}
	out := strings.Join(parts, " ")
	if lo > 0 {
		out = "..." + out
	}
	if hi < len(tokens) {
		out = out + "..."
	}
	return out
}
