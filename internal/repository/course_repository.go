package repository

import (
	"context"
	"errors"
	"fmt"

	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CourseRepository interface {
	Create(ctx context.Context, db *gorm.DB, course *model.Course) error
	FindByID(ctx context.Context, db *gorm.DB, courseID uuid.UUID) (*model.Course, error)
	FindAll(ctx context.Context, db *gorm.DB) ([]*model.Course, error)
}

type gormCourseRepository struct{}

func NewGormCourseRepository() CourseRepository {
	return &gormCourseRepository{}
}

func (r *gormCourseRepository) Create(ctx context.Context, db *gorm.DB, course *model.Course) error {
	logger := middleware.GetLogger(ctx)

	if err := db.WithContext(ctx).Create(course).Error; err != nil {
		logger.Error("Error creating course in DB", "error", err, "title", course.Title)
		return fmt.Errorf("gormCourseRepository.Create: %w", err)
	}
	return nil
}

func (r *gormCourseRepository) FindByID(ctx context.Context, db *gorm.DB, courseID uuid.UUID) (*model.Course, error) {
	logger := middleware.GetLogger(ctx)
	var course model.Course

	result := db.WithContext(ctx).Where("id = ? AND visible = ?", courseID, true).First(&course)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		logger.Error("Error finding course by ID in DB", "error", result.Error, "course_id", courseID.String())
		return nil, fmt.Errorf("gormCourseRepository.FindByID: %w", result.Error)
	}
	return &course, nil
}

func (r *gormCourseRepository) FindAll(ctx context.Context, db *gorm.DB) ([]*model.Course, error) {
	logger := middleware.GetLogger(ctx)
	var courses []*model.Course

	result := db.WithContext(ctx).Where("visible = ?", true).Order("created_at ASC").Find(&courses)
	if result.Error != nil {
		logger.Error("Error listing courses in DB", "error", result.Error)
		return nil, fmt.Errorf("gormCourseRepository.FindAll: %w", result.Error)
	}
	return courses, nil
}
