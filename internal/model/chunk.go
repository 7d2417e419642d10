package model

import (
	"encoding/json"
	"time"
)

// Chunk is a page-anchored span of a document's text together with its
// embedding and extracted metadata. Embedding and dates are stored as JSON
// arrays for portability. ChunkUID is "<doc_uid>:<page>:<seq>" so re-upserts
// of the same span land on the same row.
type Chunk struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ChunkUID       string    `gorm:"size:128;not null;uniqueIndex" json:"chunk_uid"`
	DocumentID     uint      `gorm:"not null;index" json:"document_id"`
	DocumentName   string    `gorm:"size:256;not null;index" json:"document_name"`
	PageNumber     int       `gorm:"not null" json:"page_number"`
	Section        string    `gorm:"size:256" json:"section"`
	Content        string    `gorm:"type:text;not null;index:idx_chunks_content,class:FULLTEXT" json:"content"`
	StartOffset    int       `gorm:"not null" json:"start_offset"`
	EndOffset      int       `gorm:"not null" json:"end_offset"`
	Embedding      string    `gorm:"type:text" json:"-"` // JSON array of float32
	ExtractedDates string    `gorm:"size:1024" json:"-"` // JSON array of strings
	CreatedAt      time.Time `json:"created_at"`
}

// EmbeddingVector returns the parsed embedding slice; empty on parse error.
func (c *Chunk) EmbeddingVector() []float32 {
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(c.Embedding), &v)
	return v
}

// SetEmbedding stores the embedding as JSON.
func (c *Chunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}

// DateList returns the parsed extracted dates; empty on parse error.
func (c *Chunk) DateList() []string {
	if c.ExtractedDates == "" {
		return nil
	}
	var v []string
	_ = json.Unmarshal([]byte(c.ExtractedDates), &v)
	return v
}

// SetDates stores the extracted dates as JSON.
func (c *Chunk) SetDates(dates []string) {
	if len(dates) == 0 {
		c.ExtractedDates = "[]"
		return
	}
	b, _ := json.Marshal(dates)
	c.ExtractedDates = string(b)
}
