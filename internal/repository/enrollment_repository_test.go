package repository

import (
	"context"
	"testing"
	"time"

	"go_5_course_keep/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormEnrollmentRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewGormEnrollmentRepository()
	courseID, studentID := uuid.New(), uuid.New()
	now := time.Now()

	first := &model.Enrollment{ID: uuid.New(), CourseID: courseID, StudentID: studentID, Status: model.EnrollmentStatusHistorical, EnrolledAt: now.Add(-time.Hour)}
	second := &model.Enrollment{ID: uuid.New(), CourseID: courseID, StudentID: studentID, Status: model.EnrollmentStatusActive, EnrolledAt: now, PreviousEnrollmentID: &first.ID}
	require.NoError(t, repo.Create(ctx, db, first))
	require.NoError(t, repo.Create(ctx, db, second))

	t.Run("正常系: active な登録を取得", func(t *testing.T) {
		got, err := repo.FindActive(ctx, db, courseID, studentID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID)
		require.NotNil(t, got.PreviousEnrollmentID)
		assert.Equal(t, first.ID, *got.PreviousEnrollmentID)
	})

	t.Run("正常系: 最新の登録", func(t *testing.T) {
		got, err := repo.FindLatest(ctx, db, courseID, studentID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID)
	})

	t.Run("異常系: 同じ受講者の active 登録が重複", func(t *testing.T) {
		dup := &model.Enrollment{ID: uuid.New(), CourseID: courseID, StudentID: studentID, Status: model.EnrollmentStatusActive, EnrolledAt: now}
		err := repo.Create(ctx, db, dup)
		assert.ErrorIs(t, err, model.ErrConflict)
	})

	t.Run("正常系: ステータス更新", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(ctx, db, second.ID, model.EnrollmentStatusRemoved))
		_, err := repo.FindActive(ctx, db, courseID, studentID)
		assert.ErrorIs(t, err, model.ErrNotFound)

		active, err := repo.FindActiveByCourse(ctx, db, courseID)
		require.NoError(t, err)
		assert.Empty(t, active)
	})
}

func TestDedupeActiveEnrollments(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	courseID, studentID := uuid.New(), uuid.New()
	now := time.Now()

	// インデックス作成前の古いデータを再現する
	require.NoError(t, db.Exec("DROP INDEX uq_enrollments_active").Error)
	oldest := &model.Enrollment{ID: uuid.New(), CourseID: courseID, StudentID: studentID, Status: model.EnrollmentStatusActive, EnrolledAt: now.Add(-time.Hour)}
	newer := &model.Enrollment{ID: uuid.New(), CourseID: courseID, StudentID: studentID, Status: model.EnrollmentStatusActive, EnrolledAt: now}
	require.NoError(t, db.Create(oldest).Error)
	require.NoError(t, db.Create(newer).Error)

	n, err := DedupeActiveEnrollments(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	repo := NewGormEnrollmentRepository()
	got, err := repo.FindActive(ctx, db, courseID, studentID)
	require.NoError(t, err)
	assert.Equal(t, oldest.ID, got.ID)

	retired, err := repo.FindByID(ctx, db, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentStatusHistorical, retired.Status)

	require.NoError(t, Migrate(ctx, db))
}
