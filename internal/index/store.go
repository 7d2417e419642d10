// Package index persists chunks and serves the two retrieval paths over
// them: MySQL FULLTEXT for keyword relevance and in-process cosine over the
// stored embeddings for semantic similarity.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"medsearch/internal/model"
)

// Hit is one scored chunk returned by a sub-search. The score scale depends
// on the path that produced it: FULLTEXT relevance for keyword hits, cosine
// similarity for semantic hits. Scores from different paths never compare.
type Hit struct {
	Chunk model.Chunk
	Score float64
}

// DocumentSummary is a document row with its chunk count for listings.
type DocumentSummary struct {
	model.Document
	ChunkCount int64 `json:"chunk_count"`
}

type Store struct {
	db            *gorm.DB
	retryAttempts int
	retryBackoff  time.Duration
}

func NewStore(db *gorm.DB, retryAttempts int, retryBackoff time.Duration) *Store {
	if retryAttempts <= 0 {
		retryAttempts = 3
	}
	if retryBackoff <= 0 {
		retryBackoff = 500 * time.Millisecond
	}
	return &Store{db: db, retryAttempts: retryAttempts, retryBackoff: retryBackoff}
}

// UpsertChunks writes chunks keyed by chunk_uid, overwriting earlier rows of
// the same uid so re-ingesting a file never duplicates entries.
func (s *Store) UpsertChunks(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return s.withRetry(ctx, "upsert chunks", func() error {
		return s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "chunk_uid"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"document_id", "document_name", "page_number", "section",
				"content", "start_offset", "end_offset", "embedding", "extracted_dates",
			}),
		}).Create(&chunks).Error
	})
}

// ReplaceDocument atomically swaps a document: any earlier version ingested
// from the same source path is removed with its chunks, then the new rows go
// in. Searches see either the old version or the new one, never a mix.
func (s *Store) ReplaceDocument(ctx context.Context, doc *model.Document, chunks []model.Chunk) error {
	return s.withRetry(ctx, "replace document", func() error {
		// A retried attempt must not carry ids from a rolled-back insert.
		doc.ID = 0
		for i := range chunks {
			chunks[i].ID = 0
		}
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var stale []model.Document
			if err := tx.Where("source_path = ?", doc.SourcePath).Find(&stale).Error; err != nil {
				return err
			}
			for _, old := range stale {
				if err := tx.Where("document_id = ?", old.ID).Delete(&model.Chunk{}).Error; err != nil {
					return err
				}
			}
			if len(stale) > 0 {
				if err := tx.Where("source_path = ?", doc.SourcePath).Delete(&model.Document{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Create(doc).Error; err != nil {
				return err
			}
			if len(chunks) == 0 {
				return nil
			}
			for i := range chunks {
				chunks[i].DocumentID = doc.ID
				chunks[i].DocumentName = doc.Name
			}
			return tx.Create(&chunks).Error
		})
	})
}

// KeywordSearch ranks chunks by MySQL FULLTEXT relevance in natural language
// mode. Rows that match none of the terms are not returned at all.
func (s *Store) KeywordSearch(ctx context.Context, query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}
	var rows []keywordRow
	err := s.db.WithContext(ctx).Raw(`
SELECT chunks.*, MATCH(content) AGAINST(? IN NATURAL LANGUAGE MODE) AS score
FROM chunks
WHERE MATCH(content) AGAINST(? IN NATURAL LANGUAGE MODE)
ORDER BY score DESC
LIMIT ?`, query, query, limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	hits := make([]Hit, len(rows))
	for i := range rows {
		hits[i] = Hit{Chunk: rows[i].Chunk, Score: rows[i].Score}
	}
	return hits, nil
}

type keywordRow struct {
	model.Chunk
	Score float64
}

// VectorSearch ranks chunks by cosine similarity to the query vector. The
// candidate pass loads only ids and embeddings; full rows are fetched for
// the winners.
func (s *Store) VectorSearch(ctx context.Context, query []float32, limit int) ([]Hit, error) {
	if len(query) == 0 || limit <= 0 {
		return nil, nil
	}
	var cands []model.Chunk
	if err := s.db.WithContext(ctx).Select("id", "embedding").Find(&cands).Error; err != nil {
		return nil, fmt.Errorf("load chunk embeddings failed: %w", err)
	}
	ranked := rankByCosine(cands, query, limit)
	if len(ranked) == 0 {
		return nil, nil
	}

	ids := make([]uint, len(ranked))
	scoreByID := make(map[uint]float64, len(ranked))
	for i, r := range ranked {
		ids[i] = r.id
		scoreByID[r.id] = r.score
	}
	var chunks []model.Chunk
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("load chunks failed: %w", err)
	}
	hits := make([]Hit, 0, len(chunks))
	for _, c := range chunks {
		hits = append(hits, Hit{Chunk: c, Score: scoreByID[c.ID]})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
	return hits, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	var rows []DocumentSummary
	err := s.db.WithContext(ctx).Model(&model.Document{}).
		Select("documents.*, COUNT(chunks.id) AS chunk_count").
		Joins("LEFT JOIN chunks ON chunks.document_id = documents.id").
		Group("documents.id").
		Order("documents.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return rows, nil
}

type rankedChunk struct {
	id    uint
	score float64
}

// rankByCosine scores every candidate that carries an embedding and keeps
// the k best, ties broken by id for a stable order.
func rankByCosine(cands []model.Chunk, query []float32, k int) []rankedChunk {
	ranked := make([]rankedChunk, 0, len(cands))
	for i := range cands {
		vec := cands[i].EmbeddingVector()
		if len(vec) == 0 {
			continue
		}
		ranked = append(ranked, rankedChunk{id: cands[i].ID, score: cosineSimilarity(query, vec)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})
	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
