package model

import "time"

type IngestionStatus string

const (
	IngestionPending    IngestionStatus = "PENDING"
	IngestionProcessing IngestionStatus = "PROCESSING"
	IngestionCompleted  IngestionStatus = "COMPLETED"
	IngestionFailed     IngestionStatus = "FAILED"
)

// Terminal reports whether no further transition may leave this status.
func (s IngestionStatus) Terminal() bool {
	return s == IngestionCompleted || s == IngestionFailed
}

// IngestionJob tracks one asynchronous folder import. Rows are never deleted;
// every transition is mirrored into the ingestion_events history log.
type IngestionJob struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	JobUID         string          `gorm:"size:64;not null;uniqueIndex" json:"job_uid"`
	FolderPath     string          `gorm:"size:512;not null;index" json:"folder_path"`
	Status         IngestionStatus `gorm:"size:16;not null;index" json:"status"`
	ProcessedFiles int             `gorm:"not null;default:0" json:"processed_files"`
	ErrorMessage   string          `gorm:"type:text" json:"error_message"`
	ArtifactURL    string          `gorm:"size:1024" json:"artifact_url"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	CompletedAt    *time.Time      `json:"completed_at"`
}
