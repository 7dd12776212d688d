package repository

import (
	"context"
	"errors"
	"fmt"

	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type EnrollmentRepository interface {
	Create(ctx context.Context, db *gorm.DB, enrollment *model.Enrollment) error
	FindByID(ctx context.Context, db *gorm.DB, enrollmentID uuid.UUID) (*model.Enrollment, error)
	FindActive(ctx context.Context, db *gorm.DB, courseID, studentID uuid.UUID) (*model.Enrollment, error)
	FindLatest(ctx context.Context, db *gorm.DB, courseID, studentID uuid.UUID) (*model.Enrollment, error)
	FindActiveByCourse(ctx context.Context, db *gorm.DB, courseID uuid.UUID) ([]*model.Enrollment, error)
	FindAllActive(ctx context.Context, db *gorm.DB) ([]*model.Enrollment, error)
	Update(ctx context.Context, db *gorm.DB, enrollment *model.Enrollment) error
	UpdateStatus(ctx context.Context, db *gorm.DB, enrollmentID uuid.UUID, status model.EnrollmentStatus) error
}

type gormEnrollmentRepository struct{}

func NewGormEnrollmentRepository() EnrollmentRepository {
	return &gormEnrollmentRepository{}
}

func (r *gormEnrollmentRepository) Create(ctx context.Context, db *gorm.DB, enrollment *model.Enrollment) error {
	logger := middleware.GetLogger(ctx)

	result := db.WithContext(ctx).Create(enrollment)
	if result.Error != nil {
		var pgErr *pgconn.PgError
		if errors.As(result.Error, &pgErr) && pgErr.Code == "23505" {
			logger.Warn(
				"Duplicate active enrollment on create",
				"error", result.Error,
				"course_id", enrollment.CourseID.String(),
				"student_id", enrollment.StudentID.String(),
			)
			return model.ErrConflict
		}
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return model.ErrConflict
		}
		logger.Error("Error creating enrollment in DB", "error", result.Error, "course_id", enrollment.CourseID.String())
		return fmt.Errorf("gormEnrollmentRepository.Create: %w", result.Error)
	}
	return nil
}

func (r *gormEnrollmentRepository) FindByID(ctx context.Context, db *gorm.DB, enrollmentID uuid.UUID) (*model.Enrollment, error) {
	return r.findOne(ctx, db, "FindByID", func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ?", enrollmentID)
	})
}

func (r *gormEnrollmentRepository) FindActive(ctx context.Context, db *gorm.DB, courseID, studentID uuid.UUID) (*model.Enrollment, error) {
	return r.findOne(ctx, db, "FindActive", func(q *gorm.DB) *gorm.DB {
		return q.Where("course_id = ? AND student_id = ? AND status = ?", courseID, studentID, model.EnrollmentStatusActive)
	})
}

// FindLatest は状態に関係なく最も新しい登録を返します (再登録の履歴チェーンの末尾)。
func (r *gormEnrollmentRepository) FindLatest(ctx context.Context, db *gorm.DB, courseID, studentID uuid.UUID) (*model.Enrollment, error) {
	return r.findOne(ctx, db, "FindLatest", func(q *gorm.DB) *gorm.DB {
		return q.Where("course_id = ? AND student_id = ?", courseID, studentID).Order("enrolled_at DESC")
	})
}

func (r *gormEnrollmentRepository) findOne(ctx context.Context, db *gorm.DB, op string, scope func(*gorm.DB) *gorm.DB) (*model.Enrollment, error) {
	logger := middleware.GetLogger(ctx)
	var enrollment model.Enrollment

	result := db.WithContext(ctx).Scopes(scope).First(&enrollment)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		logger.Error("Error finding enrollment in DB", "error", result.Error, "op", op)
		return nil, fmt.Errorf("gormEnrollmentRepository.%s: %w", op, result.Error)
	}
	return &enrollment, nil
}

func (r *gormEnrollmentRepository) FindActiveByCourse(ctx context.Context, db *gorm.DB, courseID uuid.UUID) ([]*model.Enrollment, error) {
	logger := middleware.GetLogger(ctx)
	var enrollments []*model.Enrollment

	result := db.WithContext(ctx).
		Where("course_id = ? AND status = ?", courseID, model.EnrollmentStatusActive).
		Order("enrolled_at ASC").
		Find(&enrollments)
	if result.Error != nil {
		logger.Error("Error listing enrollments by course", "error", result.Error, "course_id", courseID.String())
		return nil, fmt.Errorf("gormEnrollmentRepository.FindActiveByCourse: %w", result.Error)
	}
	return enrollments, nil
}

func (r *gormEnrollmentRepository) FindAllActive(ctx context.Context, db *gorm.DB) ([]*model.Enrollment, error) {
	logger := middleware.GetLogger(ctx)
	var enrollments []*model.Enrollment

	result := db.WithContext(ctx).Where("status = ?", model.EnrollmentStatusActive).Order("enrolled_at ASC").Find(&enrollments)
	if result.Error != nil {
		logger.Error("Error listing active enrollments", "error", result.Error)
		return nil, fmt.Errorf("gormEnrollmentRepository.FindAllActive: %w", result.Error)
	}
	return enrollments, nil
}

func (r *gormEnrollmentRepository) Update(ctx context.Context, db *gorm.DB, enrollment *model.Enrollment) error {
	logger := middleware.GetLogger(ctx)

	result := db.WithContext(ctx).Save(enrollment)
	if result.Error != nil {
		logger.Error("Error updating enrollment in DB", "error", result.Error, "enrollment_id", enrollment.ID.String())
		return fmt.Errorf("gormEnrollmentRepository.Update: %w", result.Error)
	}
	return nil
}

func (r *gormEnrollmentRepository) UpdateStatus(ctx context.Context, db *gorm.DB, enrollmentID uuid.UUID, status model.EnrollmentStatus) error {
	logger := middleware.GetLogger(ctx)

	result := db.WithContext(ctx).Model(&model.Enrollment{}).Where("id = ?", enrollmentID).Update("status", status)
	if result.Error != nil {
		logger.Error("Error updating enrollment status", "error", result.Error, "enrollment_id", enrollmentID.String())
		return fmt.Errorf("gormEnrollmentRepository.UpdateStatus: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}
