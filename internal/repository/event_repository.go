package repository

import (
	"fmt"

	"gorm.io/gorm"

	"medsearch/internal/model"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(event *model.IngestionEvent) error {
	if err := r.db.Create(event).Error; err != nil {
		return fmt.Errorf("create ingestion event failed: %w", err)
	}
	return nil
}

func (r *EventRepository) ListByJobUID(jobUID string, limit int) ([]model.IngestionEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var events []model.IngestionEvent
	if err := r.db.Where("job_uid = ?", jobUID).Order("occurred_at ASC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list ingestion events failed: %w", err)
	}
	return events, nil
}
