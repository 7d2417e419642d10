package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"medsearch/internal/model"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.IngestionJob) error {
	if err := r.db.Create(job).Error; err != nil {
		return fmt.Errorf("create ingestion job failed: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByUID(jobUID string) (*model.IngestionJob, error) {
	var job model.IngestionJob
	if err := r.db.Where("job_uid = ?", jobUID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query ingestion job failed: %w", err)
	}
	return &job, nil
}

// UpdateFields applies a partial update to the job row. Concurrent updates
// are last-writer-wins; the manager is the only writer after creation.
func (r *JobRepository) UpdateFields(jobUID string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.db.Model(&model.IngestionJob{}).Where("job_uid = ?", jobUID).Updates(fields).Error; err != nil {
		return fmt.Errorf("update ingestion job failed: %w", err)
	}
	return nil
}

// List returns one page of jobs, newest first, together with the total count.
func (r *JobRepository) List(page, pageSize int) ([]model.IngestionJob, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := r.db.Model(&model.IngestionJob{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count ingestion jobs failed: %w", err)
	}

	var jobs []model.IngestionJob
	offset := (page - 1) * pageSize
	if err := r.db.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&jobs).Error; err != nil {
		return nil, 0, fmt.Errorf("list ingestion jobs failed: %w", err)
	}
	return jobs, total, nil
}

// CountActiveByPath counts PENDING or PROCESSING jobs for the folder path.
func (r *JobRepository) CountActiveByPath(folderPath string) (int64, error) {
	var count int64
	err := r.db.Model(&model.IngestionJob{}).
		Where("folder_path = ? AND status IN ?", folderPath, []model.IngestionStatus{model.IngestionPending, model.IngestionProcessing}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count active ingestion jobs failed: %w", err)
	}
	return count, nil
}
