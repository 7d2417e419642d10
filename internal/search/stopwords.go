package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minKeywordLen excludes short tokens from keyword matching; they inflate
// FULLTEXT noise without adding signal. The full query text still reaches
// the embedder untouched.
const minKeywordLen = 4

var stopwords = map[string]struct{}{
	"about": {}, "above": {}, "after": {}, "again": {}, "against": {},
	"because": {}, "been": {}, "before": {}, "being": {}, "below": {},
	"between": {}, "both": {}, "could": {}, "does": {}, "doing": {},
	"down": {}, "during": {}, "each": {}, "from": {}, "further": {},
	"have": {}, "having": {}, "here": {}, "into": {}, "itself": {},
	"just": {}, "more": {}, "most": {}, "once": {}, "only": {},
	"other": {}, "over": {}, "same": {}, "should": {}, "some": {},
	"such": {}, "than": {}, "that": {}, "their": {}, "them": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"those": {}, "through": {}, "under": {}, "until": {}, "very": {},
	"upon": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "while": {}, "with": {}, "would": {}, "your": {},
}

// Keywords extracts the searchable terms from free query text: lowercase,
// punctuation-trimmed, stopword- and length-filtered, deduplicated in first
// occurrence order.
func Keywords(query string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(query)) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if utf8.RuneCountInString(word) < minKeywordLen {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
	}
	return out
}
