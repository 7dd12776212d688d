package repository

import (
	"context"
	"fmt"

	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRepository は outbox_events テーブルへの書き込みと参照です。
type EventRepository interface {
	Create(ctx context.Context, db *gorm.DB, event *model.Event) error
	FindByStudent(ctx context.Context, db *gorm.DB, studentID uuid.UUID) ([]*model.Event, error)
}

type gormEventRepository struct{}

func NewGormEventRepository() EventRepository {
	return &gormEventRepository{}
}

func (r *gormEventRepository) Create(ctx context.Context, db *gorm.DB, event *model.Event) error {
	logger := middleware.GetLogger(ctx)

	if err := db.WithContext(ctx).Create(event).Error; err != nil {
		logger.Error("Error storing outbox event", "error", err, "type", event.Type)
		return fmt.Errorf("gormEventRepository.Create: %w", err)
	}
	return nil
}

func (r *gormEventRepository) FindByStudent(ctx context.Context, db *gorm.DB, studentID uuid.UUID) ([]*model.Event, error) {
	logger := middleware.GetLogger(ctx)
	var events []*model.Event

	result := db.WithContext(ctx).Where("student_id = ?", studentID).Order("created_at ASC").Find(&events)
	if result.Error != nil {
		logger.Error("Error listing outbox events", "error", result.Error, "student_id", studentID.String())
		return nil, fmt.Errorf("gormEventRepository.FindByStudent: %w", result.Error)
	}
	return events, nil
}
