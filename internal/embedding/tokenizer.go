package embedding

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// maxWordChars guards the WordPiece loop against pathological tokens; longer
// words map straight to [UNK], matching the reference BERT tokenizer.
const maxWordChars = 100

// Tokenizer implements WordPiece encoding over a vocab.txt file, one token
// per line with the line number as id.
type Tokenizer struct {
	vocab     map[string]int64
	maxSeqLen int

	padID int64
	unkID int64
	clsID int64
	sepID int64
}

func LoadTokenizer(vocabPath string, maxSeqLen int) (*Tokenizer, error) {
	f, err := os.Open(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("open vocab file failed: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(f)
	var id int64
	for scanner.Scan() {
		token := strings.TrimSpace(scanner.Text())
		if token == "" {
			id++
			continue
		}
		vocab[token] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab file failed: %w", err)
	}

	t := &Tokenizer{vocab: vocab, maxSeqLen: maxSeqLen}
	for _, s := range []struct {
		name string
		dst  *int64
	}{
		{"[PAD]", &t.padID},
		{"[UNK]", &t.unkID},
		{"[CLS]", &t.clsID},
		{"[SEP]", &t.sepID},
	} {
		id, ok := vocab[s.name]
		if !ok {
			return nil, fmt.Errorf("vocab is missing special token %s", s.name)
		}
		*s.dst = id
	}
	return t, nil
}

// Encode converts text into a [CLS] ... [SEP] sequence padded to maxSeqLen,
// returning token ids and the attention mask. Text beyond the model limit is
// truncated silently.
func (t *Tokenizer) Encode(text string) ([]int64, []int64) {
	var sub []int64
	for _, word := range basicTokenize(text) {
		sub = append(sub, t.wordpiece(word)...)
	}
	if len(sub) > t.maxSeqLen-2 {
		sub = sub[:t.maxSeqLen-2]
	}

	ids := make([]int64, t.maxSeqLen)
	mask := make([]int64, t.maxSeqLen)
	pos := 0
	ids[pos] = t.clsID
	mask[pos] = 1
	pos++
	for _, id := range sub {
		ids[pos] = id
		mask[pos] = 1
		pos++
	}
	ids[pos] = t.sepID
	mask[pos] = 1
	pos++
	for ; pos < t.maxSeqLen; pos++ {
		ids[pos] = t.padID
	}
	return ids, mask
}

// wordpiece splits a single lowercase word into vocabulary pieces by greedy
// longest match, with "##" marking continuations. A word with any unmatched
// remainder becomes a single [UNK].
func (t *Tokenizer) wordpiece(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxWordChars {
		return []int64{t.unkID}
	}

	var out []int64
	start := 0
	for start < len(runes) {
		end := len(runes)
		matched := int64(-1)
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				matched = id
				break
			}
			end--
		}
		if matched < 0 {
			return []int64{t.unkID}
		}
		out = append(out, matched)
		start = end
	}
	return out
}

// basicTokenize lowercases the text and splits it on whitespace, emitting
// each punctuation rune as its own token the way BERT pre-tokenization does.
func basicTokenize(text string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}
