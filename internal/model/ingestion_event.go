package model

import "time"

// IngestionEvent is one row of the append-only ingestion history log,
// persisted by the event worker from job lifecycle events.
type IngestionEvent struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	JobUID         string          `gorm:"size:64;not null;index" json:"job_uid"`
	FolderPath     string          `gorm:"size:512;not null" json:"folder_path"`
	Status         IngestionStatus `gorm:"size:16;not null" json:"status"`
	Detail         string          `gorm:"type:text" json:"detail"`
	ProcessedFiles int             `gorm:"not null;default:0" json:"processed_files"`
	OccurredAt     time.Time       `gorm:"not null;index" json:"occurred_at"`
}
