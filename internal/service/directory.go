package service

import (
	"context"

	"go_5_course_keep/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

//go:generate mockery --name EnrollmentDirectory --output ./mocks --outpkg mocks --case=underscore

// EnrollmentDirectory はコースに現在登録されている受講者を返します。
// ファンアウト (同期・複製) の前に必ず参照します。
type EnrollmentDirectory interface {
	EnrolledStudents(ctx context.Context, courseID uuid.UUID) ([]uuid.UUID, error)
}

type dbEnrollmentDirectory struct {
	db             *gorm.DB
	enrollmentRepo repository.EnrollmentRepository
}

// NewEnrollmentDirectory は enrollments テーブルの active な登録を参照する実装です。
func NewEnrollmentDirectory(db *gorm.DB, enrollmentRepo repository.EnrollmentRepository) EnrollmentDirectory {
	return &dbEnrollmentDirectory{db: db, enrollmentRepo: enrollmentRepo}
}

func (d *dbEnrollmentDirectory) EnrolledStudents(ctx context.Context, courseID uuid.UUID) ([]uuid.UUID, error) {
	enrollments, err := d.enrollmentRepo.FindActiveByCourse(ctx, d.db, courseID)
	if err != nil {
		return nil, err
	}
	students := make([]uuid.UUID, 0, len(enrollments))
	for _, e := range enrollments {
		students = append(students, e.StudentID)
	}
	return students, nil
}
