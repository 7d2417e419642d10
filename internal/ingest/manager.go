// Package ingest orchestrates folder imports as tracked asynchronous jobs:
// list the folder from the remote document store, extract and segment each
// file, embed the chunks, and replace the document in the index. A job moves
// PENDING -> PROCESSING -> COMPLETED or FAILED and never leaves a terminal
// state.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"medsearch/internal/docstore"
	"medsearch/internal/embedding"
	"medsearch/internal/extract"
	"medsearch/internal/metadata"
	"medsearch/internal/model"
	"medsearch/internal/segment"
)

// maxWalkDepth bounds the folder recursion so a cyclic or very deep share
// cannot hang a job.
const maxWalkDepth = 5

var (
	ErrInvalidFolderPath = errors.New("invalid folder path")
	ErrIngestionActive   = errors.New("an ingestion is already running for this folder")
	ErrJobQueueFull      = errors.New("ingestion queue is full")
)

// JobStore persists job records; satisfied by repository.JobRepository.
type JobStore interface {
	Create(job *model.IngestionJob) error
	GetByUID(jobUID string) (*model.IngestionJob, error)
	UpdateFields(jobUID string, fields map[string]interface{}) error
	List(page, pageSize int) ([]model.IngestionJob, int64, error)
	CountActiveByPath(folderPath string) (int64, error)
}

// EventStore reads the persisted ingestion history log.
type EventStore interface {
	ListByJobUID(jobUID string, limit int) ([]model.IngestionEvent, error)
}

// IndexWriter is the slice of the index store the pipeline writes through.
type IndexWriter interface {
	ReplaceDocument(ctx context.Context, doc *model.Document, chunks []model.Chunk) error
}

// EventPublisher mirrors job transitions into the ingestion history log.
type EventPublisher interface {
	Publish(ctx context.Context, event model.IngestionEvent) error
}

// ArtifactStore receives the per-job ingestion report and returns a
// download reference for it.
type ArtifactStore interface {
	Put(ctx context.Context, objectName, contentType string, data []byte) (string, error)
}

// CacheInvalidator drops cached search results once the index has changed.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Deps carries the manager's collaborators. Events, Artifacts and Cache are
// optional; a nil value disables that side channel without affecting the
// pipeline itself.
type Deps struct {
	Jobs      JobStore
	Events    EventStore
	Docs      docstore.Store
	Readers   *extract.Registry
	Segmenter *segment.Segmenter
	Embedder  embedding.Embedder
	Index     IndexWriter

	Publisher EventPublisher
	Artifacts ArtifactStore
	Cache     CacheInvalidator
}

type Config struct {
	Workers        int
	QueueSize      int
	EmbedBatchSize int
	RetryAttempts  int
	RetryBackoff   time.Duration
}

type Manager struct {
	deps Deps
	pool *Pool

	embedBatch    int
	retryAttempts int
	retryBackoff  time.Duration

	// mu serializes the active-job check with job creation so two requests
	// for the same folder cannot both pass the check.
	mu sync.Mutex
}

func NewManager(deps Deps, cfg Config) *Manager {
	embedBatch := cfg.EmbedBatchSize
	if embedBatch <= 0 {
		embedBatch = 10
	}
	retryAttempts := cfg.RetryAttempts
	if retryAttempts <= 0 {
		retryAttempts = 3
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = 500 * time.Millisecond
	}
	return &Manager{
		deps:          deps,
		pool:          NewPool(cfg.Workers, cfg.QueueSize),
		embedBatch:    embedBatch,
		retryAttempts: retryAttempts,
		retryBackoff:  retryBackoff,
	}
}

// StartIngestion validates the folder path, creates a PENDING job and hands
// it to the worker pool. The caller gets the job record immediately and
// observes progress by polling. A folder with an active (non-terminal) job
// is rejected rather than allowing two ingestions to race on delete-then-
// write for the same documents.
func (m *Manager) StartIngestion(ctx context.Context, folderPath string) (*model.IngestionJob, error) {
	folderPath, err := cleanFolderPath(folderPath)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	active, err := m.deps.Jobs.CountActiveByPath(folderPath)
	if err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, ErrIngestionActive
	}

	job := &model.IngestionJob{
		JobUID:     uuid.NewString(),
		FolderPath: folderPath,
		Status:     model.IngestionPending,
	}
	if err := m.deps.Jobs.Create(job); err != nil {
		return nil, err
	}
	m.publish(ctx, job.JobUID, folderPath, model.IngestionPending, "ingestion job accepted", 0)

	if !m.pool.Submit(func() { m.run(job.JobUID, folderPath) }) {
		m.failJob(ctx, job.JobUID, folderPath, "ingestion worker queue is full", 0)
		return nil, ErrJobQueueFull
	}
	return job, nil
}

// GetJob returns the job record, or nil when the uid is unknown.
func (m *Manager) GetJob(jobUID string) (*model.IngestionJob, error) {
	return m.deps.Jobs.GetByUID(jobUID)
}

func (m *Manager) ListJobs(page, pageSize int) ([]model.IngestionJob, int64, error) {
	return m.deps.Jobs.List(page, pageSize)
}

// JobEvents returns the persisted history log for one job, oldest first.
func (m *Manager) JobEvents(jobUID string, limit int) ([]model.IngestionEvent, error) {
	if m.deps.Events == nil {
		return nil, nil
	}
	return m.deps.Events.ListByJobUID(jobUID, limit)
}

// Close drains the worker pool. In-flight jobs run to completion; there is
// no cooperative cancellation once a job is PROCESSING.
func (m *Manager) Close() {
	m.pool.Close()
}

// run executes one job on a pool worker. It deliberately uses a background
// context: the creating request is long gone and jobs are never cancelled
// mid-flight.
func (m *Manager) run(jobUID, folderPath string) {
	ctx := context.Background()
	log.Printf("ingestion job %s started for folder %q", jobUID, folderPath)

	if err := m.deps.Jobs.UpdateFields(jobUID, map[string]interface{}{"status": model.IngestionProcessing}); err != nil {
		log.Printf("ingestion job %s: mark processing failed: %v", jobUID, err)
		return
	}
	m.publish(ctx, jobUID, folderPath, model.IngestionProcessing, "listing folder", 0)

	files, err := m.collectFiles(ctx, folderPath)
	if err != nil {
		m.failJob(ctx, jobUID, folderPath, fmt.Sprintf("list folder failed: %v", err), 0)
		return
	}

	var (
		processed int
		reports   []fileReport
	)
	for _, file := range files {
		report, err := m.processFile(ctx, file)
		reports = append(reports, report)
		if err != nil {
			// Only index-store exhaustion is fatal; everything file-local was
			// already absorbed into the report as a skip.
			m.failJob(ctx, jobUID, folderPath, fmt.Sprintf("index write failed for %s: %v", file, err), processed)
			return
		}
		if report.Status == fileIndexed {
			processed++
		}
	}

	m.completeJob(ctx, jobUID, folderPath, processed, reports)
}

func (m *Manager) completeJob(ctx context.Context, jobUID, folderPath string, processed int, reports []fileReport) {
	now := time.Now()
	fields := map[string]interface{}{
		"status":          model.IngestionCompleted,
		"processed_files": processed,
		"completed_at":    &now,
	}
	if summary := skipSummary(reports); summary != "" {
		fields["error_message"] = summary
	}
	if m.deps.Artifacts != nil {
		url, err := m.uploadReport(ctx, jobUID, folderPath, processed, reports)
		if err != nil {
			log.Printf("ingestion job %s: upload report failed: %v", jobUID, err)
		} else {
			fields["artifact_url"] = url
		}
	}
	if err := m.deps.Jobs.UpdateFields(jobUID, fields); err != nil {
		log.Printf("ingestion job %s: mark completed failed: %v", jobUID, err)
	}
	m.publish(ctx, jobUID, folderPath, model.IngestionCompleted, fmt.Sprintf("processed %d files", processed), processed)
	m.invalidateCache(ctx)
	log.Printf("ingestion job %s completed: %d files processed, %d skipped", jobUID, processed, len(reports)-processed)
}

func (m *Manager) failJob(ctx context.Context, jobUID, folderPath, message string, processed int) {
	now := time.Now()
	fields := map[string]interface{}{
		"status":          model.IngestionFailed,
		"error_message":   message,
		"processed_files": processed,
		"completed_at":    &now,
	}
	if err := m.deps.Jobs.UpdateFields(jobUID, fields); err != nil {
		log.Printf("ingestion job %s: mark failed failed: %v", jobUID, err)
	}
	m.publish(ctx, jobUID, folderPath, model.IngestionFailed, message, processed)
	if processed > 0 {
		// Chunks written before the fatal error stay in the index.
		m.invalidateCache(ctx)
	}
	log.Printf("ingestion job %s failed: %s", jobUID, message)
}

// collectFiles walks the folder tree and returns the file paths to process,
// in listing order. Office lock files and hidden entries are skipped.
func (m *Manager) collectFiles(ctx context.Context, folderPath string) ([]string, error) {
	var files []string
	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		if depth > maxWalkDepth {
			log.Printf("ingestion: max folder depth reached at %q", dir)
			return nil
		}
		var entries []docstore.Entry
		err := m.withRetry(ctx, func() error {
			var listErr error
			entries, listErr = m.deps.Docs.List(ctx, dir)
			return listErr
		})
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if skipEntry(entry.Name) {
				continue
			}
			if entry.IsFolder {
				if err := walk(entry.Path, depth+1); err != nil {
					return err
				}
				continue
			}
			files = append(files, entry.Path)
		}
		return nil
	}
	if err := walk(folderPath, 0); err != nil {
		return nil, err
	}
	return files, nil
}

// processFile runs one file through the pipeline. File-local problems are
// recorded on the returned report and absorbed; the error return is reserved
// for index-store failures that must fail the whole job.
func (m *Manager) processFile(ctx context.Context, filePath string) (fileReport, error) {
	report := fileReport{Path: filePath, Status: fileSkipped}

	reader, err := m.deps.Readers.ForFile(filePath)
	if err != nil {
		report.Error = err.Error()
		return report, nil
	}

	var data []byte
	err = m.withRetry(ctx, func() error {
		var fetchErr error
		data, fetchErr = m.deps.Docs.Fetch(ctx, filePath)
		return fetchErr
	})
	if err != nil {
		report.Error = fmt.Sprintf("download failed: %v", err)
		return report, nil
	}

	pages, err := reader.ExtractPages(data)
	if err != nil {
		report.Error = err.Error()
		return report, nil
	}

	chunks := m.deps.Segmenter.Segment(pages)
	if len(chunks) == 0 {
		report.Error = "no extractable text"
		return report, nil
	}

	doc := &model.Document{
		DocUID:     uuid.NewString(),
		Name:       path.Base(filePath),
		SourcePath: filePath,
		PageCount:  len(pages),
		IngestedAt: time.Now(),
	}
	rows := make([]model.Chunk, len(chunks))
	extractor := metadata.NewExtractor()
	for i, c := range chunks {
		rows[i] = model.Chunk{
			ChunkUID:     fmt.Sprintf("%s:%d:%d", doc.DocUID, c.PageNumber, i),
			DocumentName: doc.Name,
			PageNumber:   c.PageNumber,
			Section:      c.Section,
			Content:      c.Text,
			StartOffset:  c.StartOffset,
			EndOffset:    c.EndOffset,
		}
		rows[i].SetDates(extractor.Dates(c.Text))
	}

	if err := m.embedChunks(ctx, rows); err != nil {
		report.Error = fmt.Sprintf("embedding failed: %v", err)
		return report, nil
	}

	if err := m.deps.Index.ReplaceDocument(ctx, doc, rows); err != nil {
		report.Error = err.Error()
		return report, err
	}

	report.Status = fileIndexed
	report.Pages = len(pages)
	report.Chunks = len(rows)
	report.Error = ""
	return report, nil
}

// embedChunks fills in the embedding column batch by batch so one oversized
// document cannot hold the model for the whole run.
func (m *Manager) embedChunks(ctx context.Context, rows []model.Chunk) error {
	for start := 0; start < len(rows); start += m.embedBatch {
		end := start + m.embedBatch
		if end > len(rows) {
			end = len(rows)
		}
		texts := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			texts = append(texts, rows[i].Content)
		}
		vectors, err := m.deps.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
		}
		for i := range vectors {
			rows[start+i].SetEmbedding(vectors[i])
		}
	}
	return nil
}

// withRetry retries transient document-store failures with doubling backoff.
// Missing paths and credential failures are permanent and returned at once.
// Retries never show up in the job status; only exhaustion does.
func (m *Manager) withRetry(ctx context.Context, fn func() error) error {
	backoff := m.retryBackoff
	var err error
	for attempt := 0; attempt < m.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrUnauthorized) {
			return err
		}
	}
	return err
}

func (m *Manager) publish(ctx context.Context, jobUID, folderPath string, status model.IngestionStatus, detail string, processed int) {
	if m.deps.Publisher == nil {
		return
	}
	event := model.IngestionEvent{
		JobUID:         jobUID,
		FolderPath:     folderPath,
		Status:         status,
		Detail:         detail,
		ProcessedFiles: processed,
		OccurredAt:     time.Now(),
	}
	if err := m.deps.Publisher.Publish(ctx, event); err != nil {
		log.Printf("publish ingestion event failed: %v", err)
	}
}

func (m *Manager) invalidateCache(ctx context.Context) {
	if m.deps.Cache == nil {
		return
	}
	if err := m.deps.Cache.Invalidate(ctx); err != nil {
		log.Printf("invalidate search cache failed: %v", err)
	}
}

// cleanFolderPath normalizes the requested path and rejects traversal and
// empty paths synchronously; whether the folder exists is the job's problem
// and surfaces as a FAILED status instead.
func cleanFolderPath(folderPath string) (string, error) {
	folderPath = strings.Trim(strings.TrimSpace(folderPath), "/")
	if folderPath == "" {
		return "", ErrInvalidFolderPath
	}
	cleaned := path.Clean(folderPath)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidFolderPath
	}
	return cleaned, nil
}

// skipEntry filters Office lock files and hidden entries out of the walk.
func skipEntry(name string) bool {
	return strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".")
}
