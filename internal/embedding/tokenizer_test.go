package embedding

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVocab(t *testing.T, tokens ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.txt")
	err := os.WriteFile(path, []byte(strings.Join(tokens, "\n")+"\n"), 0o644)
	require.NoError(t, err)
	return path
}

func testTokenizer(t *testing.T, maxSeqLen int) *Tokenizer {
	t.Helper()
	path := writeVocab(t, "[PAD]", "[UNK]", "[CLS]", "[SEP]", "hello", "world", "med", "##ical", ",")
	tok, err := LoadTokenizer(path, maxSeqLen)
	require.NoError(t, err)
	return tok
}

func TestLoadTokenizerMissingSpecialToken(t *testing.T) {
	path := writeVocab(t, "[PAD]", "[UNK]", "[CLS]", "hello")
	_, err := LoadTokenizer(path, 16)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[SEP]")
}

func TestEncodeWrapsAndPads(t *testing.T) {
	tok := testTokenizer(t, 8)

	ids, mask := tok.Encode("Hello world")
	assert.Equal(t, []int64{2, 4, 5, 3, 0, 0, 0, 0}, ids)
	assert.Equal(t, []int64{1, 1, 1, 1, 0, 0, 0, 0}, mask)
}

func TestEncodeWordPieceContinuation(t *testing.T) {
	tok := testTokenizer(t, 8)

	ids, _ := tok.Encode("medical")
	assert.Equal(t, []int64{2, 6, 7, 3, 0, 0, 0, 0}, ids)
}

func TestEncodeUnknownWord(t *testing.T) {
	tok := testTokenizer(t, 8)

	ids, _ := tok.Encode("xyzzy")
	assert.Equal(t, []int64{2, 1, 3, 0, 0, 0, 0, 0}, ids)
}

func TestEncodeSplitsPunctuation(t *testing.T) {
	tok := testTokenizer(t, 8)

	ids, _ := tok.Encode("hello, world")
	assert.Equal(t, []int64{2, 4, 8, 5, 3, 0, 0, 0}, ids)
}

func TestEncodeTruncatesToModelLimit(t *testing.T) {
	tok := testTokenizer(t, 8)

	ids, mask := tok.Encode("hello world hello world hello world hello")
	assert.Len(t, ids, 8)
	assert.Equal(t, []int64{2, 4, 5, 4, 5, 4, 5, 3}, ids)
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 1, 1, 1}, mask)
}

func TestMeanPoolIgnoresPadding(t *testing.T) {
	// Two real tokens and two padded positions, dimension 2. Padding rows
	// carry garbage that must not leak into the average.
	hidden := []float32{
		1, 2,
		3, 4,
		100, 100,
		100, 100,
	}
	mask := []int64{1, 1, 0, 0}

	pooled := meanPool(hidden, mask, 2)
	assert.InDelta(t, 2.0, pooled[0], 1e-6)
	assert.InDelta(t, 3.0, pooled[1], 1e-6)
}

func TestL2Normalize(t *testing.T) {
	vec := l2Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}
