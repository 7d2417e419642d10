package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	fileIndexed = "indexed"
	fileSkipped = "skipped"
)

// fileReport records the outcome for one file of a job. Skipped files keep
// the reason; indexed files keep their page and chunk counts.
type fileReport struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Pages  int    `json:"pages,omitempty"`
	Chunks int    `json:"chunks,omitempty"`
	Error  string `json:"error,omitempty"`
}

// jobReport is the artifact uploaded to the object store when a job
// completes; the job row keeps its download reference.
type jobReport struct {
	JobUID         string       `json:"job_uid"`
	FolderPath     string       `json:"folder_path"`
	GeneratedAt    time.Time    `json:"generated_at"`
	ProcessedFiles int          `json:"processed_files"`
	SkippedFiles   int          `json:"skipped_files"`
	Files          []fileReport `json:"files"`
}

// skipSummary condenses the skipped files into the job's error context.
func skipSummary(reports []fileReport) string {
	var parts []string
	for _, r := range reports {
		if r.Status == fileSkipped {
			parts = append(parts, fmt.Sprintf("%s: %s", r.Path, r.Error))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("%d files skipped: %s", len(parts), strings.Join(parts, "; "))
}

func (m *Manager) uploadReport(ctx context.Context, jobUID, folderPath string, processed int, reports []fileReport) (string, error) {
	report := jobReport{
		JobUID:         jobUID,
		FolderPath:     folderPath,
		GeneratedAt:    time.Now(),
		ProcessedFiles: processed,
		SkippedFiles:   len(reports) - processed,
		Files:          reports,
	}
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal ingestion report failed: %w", err)
	}
	objectName := fmt.Sprintf("%s/ingestion_report_%s.json", folderPath, time.Now().Format("20060102_150405"))
	return m.deps.Artifacts.Put(ctx, objectName, "application/json", payload)
}
