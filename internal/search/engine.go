// Package search fuses keyword and semantic retrieval into one ranked,
// document-grouped result set. The two signals are classified, never
// blended: a chunk surfaced by keyword match keeps its relevance score, a
// chunk surfaced only by vector similarity keeps its cosine score, and the
// two scales are never compared or averaged.
package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"medsearch/internal/cache"
	"medsearch/internal/embedding"
	"medsearch/internal/index"
	"medsearch/internal/metadata"
)

const (
	MatchKeyword  = "keyword"
	MatchSemantic = "semantic"
)

var (
	ErrEmptyQuery  = errors.New("query text is empty")
	ErrInvalidTopK = errors.New("top_k must be positive")
)

// Store is the slice of the index the engine reads.
type Store interface {
	KeywordSearch(ctx context.Context, query string, limit int) ([]index.Hit, error)
	VectorSearch(ctx context.Context, query []float32, limit int) ([]index.Hit, error)
}

// Hit is one chunk in a search response.
type Hit struct {
	ChunkUID   string   `json:"chunk_uid"`
	MatchType  string   `json:"match_type"`
	Score      float64  `json:"score"`
	Keywords   []string `json:"keywords,omitempty"`
	Dates      []string `json:"dates,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	PageNumber int      `json:"page_number"`
	Section    string   `json:"section,omitempty"`
	Text       string   `json:"text"`
}

// DocumentGroup collects the hits belonging to one source document, in the
// same order they ranked overall.
type DocumentGroup struct {
	DocumentID   uint   `json:"document_id"`
	DocumentName string `json:"document_name"`
	Hits         []Hit  `json:"hits"`
}

type Result struct {
	Query     string          `json:"query"`
	TotalHits int             `json:"total_hits"`
	Documents []DocumentGroup `json:"documents"`
}

type Engine struct {
	store     Store
	embedder  embedding.Embedder
	extractor *metadata.Extractor
	cache     *cache.ResultCache // nil disables caching
	maxTopK   int
}

func NewEngine(store Store, embedder embedding.Embedder, resultCache *cache.ResultCache, maxTopK int) *Engine {
	if maxTopK <= 0 {
		maxTopK = 50
	}
	return &Engine{
		store:     store,
		embedder:  embedder,
		extractor: metadata.NewExtractor(),
		cache:     resultCache,
		maxTopK:   maxTopK,
	}
}

// Search runs both retrieval paths for the query and returns up to topK hits
// grouped by document. Keyword hits rank before semantic hits; within each
// class the store's score order is preserved.
func (e *Engine) Search(ctx context.Context, query string, topK int) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}
	if topK > e.maxTopK {
		topK = e.maxTopK
	}

	if e.cache != nil {
		var cached Result
		if ok, err := e.cache.Get(ctx, query, topK, &cached); err == nil && ok {
			return &cached, nil
		}
	}

	// Short and stopword tokens are excluded from keyword matching but the
	// full query text still drives the embedding.
	keywords := Keywords(query)

	var kwHits, vecHits []index.Hit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(keywords) == 0 {
			return nil
		}
		hits, err := e.store.KeywordSearch(gctx, strings.Join(keywords, " "), topK)
		if err != nil {
			return err
		}
		kwHits = hits
		return nil
	})
	g.Go(func() error {
		vec, err := e.embedder.Embed(gctx, query)
		if err != nil {
			return err
		}
		hits, err := e.store.VectorSearch(gctx, vec, topK)
		if err != nil {
			return err
		}
		vecHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("hybrid search failed: %w", err)
	}

	hits := e.fuse(kwHits, vecHits, keywords, topK)
	result := &Result{
		Query:     query,
		TotalHits: len(hits),
		Documents: groupByDocument(hits),
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, query, topK, result); err != nil {
			log.Printf("search cache store failed: %v", err)
		}
	}
	return result, nil
}

// fusedHit pairs the transport hit with the grouping key, which never leaves
// this package.
type fusedHit struct {
	Hit
	documentID   uint
	documentName string
}

// fuse deduplicates by chunk uid with the keyword classification winning,
// concatenates keyword hits before semantic ones, and truncates to topK.
func (e *Engine) fuse(kwHits, vecHits []index.Hit, keywords []string, topK int) []fusedHit {
	fused := make([]fusedHit, 0, len(kwHits)+len(vecHits))
	seen := make(map[string]struct{}, len(kwHits))
	for i := range kwHits {
		seen[kwHits[i].Chunk.ChunkUID] = struct{}{}
		fused = append(fused, e.keywordHit(kwHits[i], keywords))
	}
	for i := range vecHits {
		if _, dup := seen[vecHits[i].Chunk.ChunkUID]; dup {
			continue
		}
		fused = append(fused, semanticHit(vecHits[i]))
	}
	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused
}

func (e *Engine) keywordHit(h index.Hit, keywords []string) fusedHit {
	matches := e.extractor.Annotate(h.Chunk.Content, keywords)
	matched := make([]string, 0, len(matches))
	var dates []string
	seenDates := make(map[string]struct{})
	summary := ""
	for _, m := range matches {
		matched = append(matched, m.Keyword)
		if m.Date != "" {
			if _, dup := seenDates[m.Date]; !dup {
				seenDates[m.Date] = struct{}{}
				dates = append(dates, m.Date)
			}
		}
		if summary == "" {
			summary = m.Summary
		}
	}

	out := newFusedHit(h, MatchKeyword)
	out.Keywords = matched
	out.Dates = dates
	out.Summary = summary
	return out
}

func semanticHit(h index.Hit) fusedHit {
	return newFusedHit(h, MatchSemantic)
}

func newFusedHit(h index.Hit, matchType string) fusedHit {
	return fusedHit{
		Hit: Hit{
			ChunkUID:   h.Chunk.ChunkUID,
			MatchType:  matchType,
			Score:      h.Score,
			PageNumber: h.Chunk.PageNumber,
			Section:    h.Chunk.Section,
			Text:       cleanText(h.Chunk.Content),
		},
		documentID:   h.Chunk.DocumentID,
		documentName: h.Chunk.DocumentName,
	}
}

// groupByDocument buckets hits by owning document in first-seen order; hit
// order within each group follows the overall ranking.
func groupByDocument(hits []fusedHit) []DocumentGroup {
	groups := make([]DocumentGroup, 0)
	pos := make(map[uint]int)
	for i := range hits {
		idx, ok := pos[hits[i].documentID]
		if !ok {
			idx = len(groups)
			pos[hits[i].documentID] = idx
			groups = append(groups, DocumentGroup{
				DocumentID:   hits[i].documentID,
				DocumentName: hits[i].documentName,
			})
		}
		groups[idx].Hits = append(groups[idx].Hits, hits[i].Hit)
	}
	return groups
}

// cleanText collapses runs of whitespace so display text reads as one line.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
