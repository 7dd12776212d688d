package repository

import (
	"context"
	"fmt"

	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Models はマイグレーション対象のモデル一覧です。
func Models() []interface{} {
	return []interface{}{
		&model.Course{},
		&model.CourseModule{},
		&model.CourseExercise{},
		&model.LibraryModule{},
		&model.LibraryExercise{},
		&model.Enrollment{},
		&model.StudentModule{},
		&model.StudentExercise{},
		&model.Event{},
	}
}

// Migrate はテーブルを作成し、重複登録を整理してから部分ユニークインデックスを張ります。
func Migrate(ctx context.Context, db *gorm.DB) error {
	logger := middleware.GetLogger(ctx)

	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		logger.Error("AutoMigrate failed", "error", err)
		return fmt.Errorf("repository.Migrate: %w", err)
	}

	if _, err := DedupeActiveEnrollments(ctx, db); err != nil {
		return err
	}

	// postgres / sqlite どちらも部分インデックスをサポートしている
	err := db.WithContext(ctx).Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_enrollments_active ON enrollments (course_id, student_id) WHERE status = 'active'",
	).Error
	if err != nil {
		logger.Error("Failed to create active enrollment index", "error", err)
		return fmt.Errorf("repository.Migrate: %w", err)
	}

	logger.Info("Migration completed")
	return nil
}

// DedupeActiveEnrollments は同じ (course, student) に複数ある active 登録のうち
// 最古のもの以外を historical にします。処理した件数を返します。
func DedupeActiveEnrollments(ctx context.Context, db *gorm.DB) (int, error) {
	logger := middleware.GetLogger(ctx)

	var enrollments []*model.Enrollment
	result := db.WithContext(ctx).
		Where("status = ?", model.EnrollmentStatusActive).
		Order("enrolled_at ASC, id ASC").
		Find(&enrollments)
	if result.Error != nil {
		return 0, fmt.Errorf("repository.DedupeActiveEnrollments: %w", result.Error)
	}

	type key struct{ course, student uuid.UUID }
	seen := make(map[key]bool)
	var stale []uuid.UUID
	for _, e := range enrollments {
		k := key{e.CourseID, e.StudentID}
		if seen[k] {
			stale = append(stale, e.ID)
			continue
		}
		seen[k] = true
	}
	if len(stale) == 0 {
		return 0, nil
	}

	result = db.WithContext(ctx).Model(&model.Enrollment{}).
		Where("id IN ?", stale).
		Update("status", model.EnrollmentStatusHistorical)
	if result.Error != nil {
		logger.Error("Failed to retire duplicate enrollments", "error", result.Error)
		return 0, fmt.Errorf("repository.DedupeActiveEnrollments: %w", result.Error)
	}
	logger.Warn("Retired duplicate active enrollments", "count", len(stale))
	return len(stale), nil
}
