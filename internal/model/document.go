package model

import "time"

// Document is one ingested source file. Rows are immutable: re-ingesting the
// same source path replaces the document and all of its chunks.
type Document struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocUID     string    `gorm:"size:64;not null;uniqueIndex" json:"doc_uid"`
	Name       string    `gorm:"size:256;not null" json:"name"`
	SourcePath string    `gorm:"size:512;not null;index" json:"source_path"`
	PageCount  int       `gorm:"not null" json:"page_count"`
	IngestedAt time.Time `json:"ingested_at"`
}
