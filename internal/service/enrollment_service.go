// internal/service/enrollment_service.go
package service

import (
	"context"
	"errors"
	"time"

	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EnrollmentService interface {
	Enroll(ctx context.Context, courseID, studentID uuid.UUID) (*model.Enrollment, error)
	Unenroll(ctx context.Context, courseID, studentID uuid.UUID) error
	GetEnrollment(ctx context.Context, enrollmentID uuid.UUID) (*model.Enrollment, error)
	GetActiveEnrollment(ctx context.Context, courseID, studentID uuid.UUID) (*model.Enrollment, error)
	ListEnrollments(ctx context.Context, courseID uuid.UUID) ([]*model.Enrollment, error)
	RecomputeProgress(ctx context.Context, enrollmentID uuid.UUID) (*model.Enrollment, error)
}

type enrollmentService struct {
	db          *gorm.DB
	repos       repository.Repositories
	replication ReplicationService
	rules       *progressRules
}

func NewEnrollmentService(db *gorm.DB, repos repository.Repositories, replication ReplicationService) EnrollmentService {
	return &enrollmentService{
		db:          db,
		repos:       repos,
		replication: replication,
		rules:       newProgressRules(repos),
	}
}

// Enroll は受講登録し、コースの内容を受講者の層へ複製します。
// 以前の登録が残っていれば履歴 (historical) にして previous_enrollment_id でつなぎ、古いコピーは非表示にします。
func (s *enrollmentService) Enroll(ctx context.Context, courseID, studentID uuid.UUID) (*model.Enrollment, error) {
	logger := middleware.GetLogger(ctx).With("service", "EnrollmentService", "method", "Enroll", "course_id", courseID, "student_id", studentID)

	var enrollment *model.Enrollment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repos.Courses.FindByID(ctx, tx, courseID); err != nil {
			return err
		}
		if _, err := s.repos.Enrollments.FindActive(ctx, tx, courseID, studentID); err == nil {
			return model.ErrConflict
		} else if !errors.Is(err, model.ErrNotFound) {
			return err
		}

		enrollment = &model.Enrollment{
			ID:             uuid.New(),
			CourseID:       courseID,
			StudentID:      studentID,
			Status:         model.EnrollmentStatusActive,
			ExerciseScores: datatypes.JSONSlice[model.ExerciseScore]{},
			EnrolledAt:     time.Now(),
		}

		latest, err := s.repos.Enrollments.FindLatest(ctx, tx, courseID, studentID)
		switch {
		case err == nil:
			if latest.Status != model.EnrollmentStatusHistorical {
				if err := s.repos.Enrollments.UpdateStatus(ctx, tx, latest.ID, model.EnrollmentStatusHistorical); err != nil {
					return err
				}
			}
			previousID := latest.ID
			enrollment.PreviousEnrollmentID = &previousID
			if err := s.hideStaleContent(ctx, tx, courseID, studentID); err != nil {
				return err
			}
		case !errors.Is(err, model.ErrNotFound):
			return err
		}

		if err := s.repos.Enrollments.Create(ctx, tx, enrollment); err != nil {
			return err
		}
		if err := s.replication.CopyCourseContentToStudent(ctx, tx, enrollment); err != nil {
			return err
		}
		enrollment, err = s.rules.updateEnrollmentProgress(ctx, tx, enrollment.ID)
		return err
	})
	if err != nil {
		return nil, publicError(logger, "Failed to enroll student", err)
	}

	logger.Info("Student enrolled", "enrollment_id", enrollment.ID, "re_enrollment", enrollment.PreviousEnrollmentID != nil,
		"modules", enrollment.TotalModules, "exercises", enrollment.TotalExercises)
	return enrollment, nil
}

func (s *enrollmentService) hideStaleContent(ctx context.Context, tx *gorm.DB, courseID, studentID uuid.UUID) error {
	scope := repository.StudentModuleScope(studentID, courseID)
	modules, err := s.repos.StudentModules.HideInScope(ctx, tx, scope)
	if err != nil {
		return err
	}
	exercises, err := s.repos.StudentExercises.HideInScope(ctx, tx, scope)
	if err != nil {
		return err
	}
	middleware.GetLogger(ctx).Info("Stale student content hidden", "modules", modules, "exercises", exercises)
	return nil
}

// Unenroll は active な登録を removed にします。受講者のコピーは履歴として残します。
func (s *enrollmentService) Unenroll(ctx context.Context, courseID, studentID uuid.UUID) error {
	logger := middleware.GetLogger(ctx).With("service", "EnrollmentService", "method", "Unenroll", "course_id", courseID, "student_id", studentID)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		enrollment, err := s.repos.Enrollments.FindActive(ctx, tx, courseID, studentID)
		if err != nil {
			return err
		}
		return s.repos.Enrollments.UpdateStatus(ctx, tx, enrollment.ID, model.EnrollmentStatusRemoved)
	})
	if err != nil {
		return publicError(logger, "Failed to unenroll student", err)
	}
	logger.Info("Student unenrolled")
	return nil
}

func (s *enrollmentService) GetEnrollment(ctx context.Context, enrollmentID uuid.UUID) (*model.Enrollment, error) {
	return s.repos.Enrollments.FindByID(ctx, s.db, enrollmentID)
}

func (s *enrollmentService) GetActiveEnrollment(ctx context.Context, courseID, studentID uuid.UUID) (*model.Enrollment, error) {
	return s.repos.Enrollments.FindActive(ctx, s.db, courseID, studentID)
}

func (s *enrollmentService) ListEnrollments(ctx context.Context, courseID uuid.UUID) ([]*model.Enrollment, error) {
	enrollments, err := s.repos.Enrollments.FindActiveByCourse(ctx, s.db, courseID)
	if err != nil {
		return nil, publicError(middleware.GetLogger(ctx), "Failed to list enrollments", err)
	}
	return enrollments, nil
}

func (s *enrollmentService) RecomputeProgress(ctx context.Context, enrollmentID uuid.UUID) (*model.Enrollment, error) {
	var enrollment *model.Enrollment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		enrollment, err = s.rules.updateEnrollmentProgress(ctx, tx, enrollmentID)
		return err
	})
	if err != nil {
		return nil, publicError(middleware.GetLogger(ctx), "Failed to recompute enrollment progress", err)
	}
	return enrollment, nil
}
