package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medsearch/internal/index"
	"medsearch/internal/model"
)

type fakeStore struct {
	kwHits  []index.Hit
	vecHits []index.Hit
	kwErr   error
	vecErr  error

	kwCalls  int
	vecCalls int
	kwQuery  string
}

func (f *fakeStore) KeywordSearch(ctx context.Context, query string, limit int) ([]index.Hit, error) {
	f.kwCalls++
	f.kwQuery = query
	if f.kwErr != nil {
		return nil, f.kwErr
	}
	hits := f.kwHits
	if limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeStore) VectorSearch(ctx context.Context, query []float32, limit int) ([]index.Hit, error) {
	f.vecCalls++
	if f.vecErr != nil {
		return nil, f.vecErr
	}
	hits := f.vecHits
	if limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

func hit(uid string, docID uint, docName string, page int, content string, score float64) index.Hit {
	return index.Hit{
		Chunk: model.Chunk{
			ChunkUID:     uid,
			DocumentID:   docID,
			DocumentName: docName,
			PageNumber:   page,
			Content:      content,
		},
		Score: score,
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	store := &fakeStore{}
	engine := NewEngine(store, &fakeEmbedder{}, nil, 50)

	_, err := engine.Search(context.Background(), "   ", 10)
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Zero(t, store.kwCalls)
	assert.Zero(t, store.vecCalls)
}

func TestSearchRejectsInvalidTopK(t *testing.T) {
	engine := NewEngine(&fakeStore{}, &fakeEmbedder{}, nil, 50)

	_, err := engine.Search(context.Background(), "biopsy", 0)
	assert.ErrorIs(t, err, ErrInvalidTopK)

	_, err = engine.Search(context.Background(), "biopsy", -1)
	assert.ErrorIs(t, err, ErrInvalidTopK)
}

func TestSearchKeywordClassificationWins(t *testing.T) {
	// The same chunk surfaces in both sub-searches; it must be reported once,
	// as a keyword hit with the keyword score.
	store := &fakeStore{
		kwHits:  []index.Hit{hit("d1:1:0", 1, "notes.pdf", 1, "renal biopsy performed", 4.2)},
		vecHits: []index.Hit{hit("d1:1:0", 1, "notes.pdf", 1, "renal biopsy performed", 0.93)},
	}
	engine := NewEngine(store, &fakeEmbedder{}, nil, 50)

	res, err := engine.Search(context.Background(), "biopsy", 10)
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalHits)
	require.Len(t, res.Documents, 1)
	require.Len(t, res.Documents[0].Hits, 1)

	got := res.Documents[0].Hits[0]
	assert.Equal(t, MatchKeyword, got.MatchType)
	assert.InDelta(t, 4.2, got.Score, 1e-9)
}

func TestSearchOrdersKeywordHitsBeforeSemantic(t *testing.T) {
	store := &fakeStore{
		kwHits: []index.Hit{
			hit("a", 1, "one.pdf", 1, "alpha", 9.0),
			hit("b", 1, "one.pdf", 2, "beta", 3.0),
		},
		vecHits: []index.Hit{
			hit("c", 2, "two.pdf", 1, "gamma", 0.99),
		},
	}
	engine := NewEngine(store, &fakeEmbedder{}, nil, 50)

	res, err := engine.Search(context.Background(), "alpha beta", 10)
	require.NoError(t, err)
	require.Equal(t, 3, res.TotalHits)

	var flat []Hit
	for _, g := range res.Documents {
		flat = append(flat, g.Hits...)
	}
	require.Len(t, flat, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{flat[0].ChunkUID, flat[1].ChunkUID, flat[2].ChunkUID})
	assert.Equal(t, MatchKeyword, flat[0].MatchType)
	assert.Equal(t, MatchKeyword, flat[1].MatchType)
	assert.Equal(t, MatchSemantic, flat[2].MatchType)
}

func TestSearchTruncatesToTopK(t *testing.T) {
	store := &fakeStore{
		kwHits: []index.Hit{
			hit("a", 1, "one.pdf", 1, "x", 5),
			hit("b", 1, "one.pdf", 2, "x", 4),
			hit("c", 1, "one.pdf", 3, "x", 3),
		},
		vecHits: []index.Hit{
			hit("d", 2, "two.pdf", 1, "x", 0.9),
			hit("e", 2, "two.pdf", 2, "x", 0.8),
			hit("f", 2, "two.pdf", 3, "x", 0.7),
		},
	}
	engine := NewEngine(store, &fakeEmbedder{}, nil, 50)

	res, err := engine.Search(context.Background(), "anything matches", 5)
	require.NoError(t, err)

	total := 0
	for _, g := range res.Documents {
		total += len(g.Hits)
	}
	assert.Equal(t, 5, total)
	assert.Equal(t, 5, res.TotalHits)
	// The cut drops the lowest-ranked semantic hit.
	last := res.Documents[len(res.Documents)-1].Hits
	assert.Equal(t, "e", last[len(last)-1].ChunkUID)
}

func TestSearchGroupsByDocumentPreservingOrder(t *testing.T) {
	store := &fakeStore{
		kwHits: []index.Hit{
			hit("a", 1, "one.pdf", 1, "x", 9),
			hit("b", 2, "two.pdf", 1, "x", 7),
			hit("c", 1, "one.pdf", 4, "x", 5),
		},
	}
	engine := NewEngine(store, &fakeEmbedder{}, nil, 50)

	res, err := engine.Search(context.Background(), "alpha", 10)
	require.NoError(t, err)
	require.Len(t, res.Documents, 2)

	assert.Equal(t, "one.pdf", res.Documents[0].DocumentName)
	assert.Equal(t, []string{"a", "c"}, []string{res.Documents[0].Hits[0].ChunkUID, res.Documents[0].Hits[1].ChunkUID})
	assert.Equal(t, "two.pdf", res.Documents[1].DocumentName)
	assert.Equal(t, "b", res.Documents[1].Hits[0].ChunkUID)
}

func TestSearchNoResultsIsNotAnError(t *testing.T) {
	engine := NewEngine(&fakeStore{}, &fakeEmbedder{}, nil, 50)

	res, err := engine.Search(context.Background(), "nephrectomy", 10)
	require.NoError(t, err)
	assert.Zero(t, res.TotalHits)
	assert.Empty(t, res.Documents)
}

func TestSearchStopwordOnlyQuerySkipsKeywordPath(t *testing.T) {
	store := &fakeStore{
		vecHits: []index.Hit{hit("a", 1, "one.pdf", 1, "x", 0.8)},
	}
	embedder := &fakeEmbedder{}
	engine := NewEngine(store, embedder, nil, 50)

	// Every token is a stopword or too short for keyword matching, but the
	// full text still goes through the embedder.
	res, err := engine.Search(context.Background(), "with the and", 10)
	require.NoError(t, err)
	assert.Zero(t, store.kwCalls)
	assert.Equal(t, 1, embedder.calls)
	require.Equal(t, 1, res.TotalHits)
	assert.Equal(t, MatchSemantic, res.Documents[0].Hits[0].MatchType)
}

func TestSearchFiltersQueryTermsForKeywordPath(t *testing.T) {
	store := &fakeStore{}
	engine := NewEngine(store, &fakeEmbedder{}, nil, 50)

	_, err := engine.Search(context.Background(), "Biopsy with margins", 10)
	require.NoError(t, err)
	assert.Equal(t, "biopsy margins", store.kwQuery)
}

func TestSearchSubSearchErrorSurfaces(t *testing.T) {
	boom := errors.New("index offline")
	store := &fakeStore{vecErr: boom}
	engine := NewEngine(store, &fakeEmbedder{}, nil, 50)

	_, err := engine.Search(context.Background(), "biopsy", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestSearchKeywordHitCarriesMetadata(t *testing.T) {
	content := "Patient underwent biopsy on 01/15/2020 with clear margins and good recovery noted"
	store := &fakeStore{
		kwHits: []index.Hit{hit("d1:1:0", 1, "pathology.pdf", 1, content, 6.1)},
	}
	engine := NewEngine(store, &fakeEmbedder{}, nil, 50)

	res, err := engine.Search(context.Background(), "biopsy", 10)
	require.NoError(t, err)
	got := res.Documents[0].Hits[0]

	assert.Equal(t, []string{"biopsy"}, got.Keywords)
	assert.Equal(t, []string{"01/15/2020"}, got.Dates)
	assert.Contains(t, got.Summary, "biopsy")
	assert.Equal(t, content, got.Text)
}

func TestKeywords(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"filters short tokens", "MRI of the left knee", []string{"left", "knee"}},
		{"filters stopwords", "results from their biopsy", []string{"results", "biopsy"}},
		{"deduplicates keeping first order", "biopsy margins biopsy", []string{"biopsy", "margins"}},
		{"trims punctuation", "nephrectomy, (left-sided)", []string{"nephrectomy", "left-sided"}},
		{"empty when nothing qualifies", "of the and", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Keywords(tt.query))
		})
	}
}
