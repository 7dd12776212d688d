package service

import (
	"context"
	"testing"
	"time"

	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/ordering"
	"go_5_course_keep/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestChainRepairService_HealsBrokenCourseChain(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	course := env.createCourse(t)
	var modules []*model.CourseModule
	for _, title := range []string{"M1", "M2", "M3"} {
		m, _ := env.addModule(t, course.ID, title, model.ModuleTypeAll)
		modules = append(modules, m)
	}

	// 全ノードのポインタを消して先頭が3つある状態にする
	for _, m := range modules {
		require.NoError(t, env.repos.CourseModules.UpdateLinks(ctx, env.db, m.ID, nil, nil))
	}
	broken, err := env.repos.CourseModules.FindVisibleInScope(ctx, env.db, repository.CourseModuleScope(course.ID))
	require.NoError(t, err)
	require.False(t, ordering.IsHealthy(broken))

	report, err := env.repair.RepairAll(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, report.Healed, 1)
	assert.Zero(t, report.Failed)

	healed, err := env.repos.CourseModules.FindVisibleInScope(ctx, env.db, repository.CourseModuleScope(course.ID))
	require.NoError(t, err)
	assert.True(t, ordering.IsHealthy(healed))

	ordered, err := env.courses.GetOrderedModules(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"M1", "M2", "M3"}, courseModuleTitles(ordered))

	t.Run("2回目は何も直さない", func(t *testing.T) {
		again, err := env.repair.RepairAll(ctx)
		require.NoError(t, err)
		assert.Zero(t, again.Healed)
	})
}

func TestChainRepairService_RemovesDuplicateStudentExercises(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	enrollment, sm, exercises := setupStudentModule(t, env, model.ModuleTypeAll, "E1", "E2")

	dup := *exercises[0]
	dup.ID = uuid.New()
	dup.PreviousID, dup.NextID = nil, nil
	dup.Scores = datatypes.JSONSlice[float64]{}
	dup.CreatedAt = time.Now().Add(time.Second)
	dup.UpdatedAt = dup.CreatedAt
	require.NoError(t, env.repos.StudentExercises.Create(ctx, env.db, &dup))
	require.Len(t, env.studentExercises(t, sm.ID), 3)

	report, err := env.repair.RepairAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DuplicatesRemoved)
	assert.Zero(t, report.Failed)

	after := env.studentExercises(t, sm.ID)
	assert.Equal(t, []string{"E1", "E2"}, exerciseTitles(after))
	assert.Equal(t, exercises[0].ID, after[0].ID, "最古のものを残す")
	assert.True(t, ordering.IsHealthy(after))

	got, err := env.enrollments.GetEnrollment(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalExercises)
}

func TestChainRepairService_RemovesLinkedDuplicateKeepingOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	_, sm, exercises := setupStudentModule(t, env, model.ModuleTypeAll, "E1", "E2", "E3")
	e1, e2, e3 := exercises[0], exercises[1], exercises[2]

	x, err := env.progress.AddStudentExercise(ctx, sm.ID, &model.AddExerciseRequest{Title: "X"})
	require.NoError(t, err)
	_, err = env.progress.ReorderStudentExercise(ctx, x.ID, 1)
	require.NoError(t, err)

	// E1 の重複を X と E2 の間につなぐ: E1 -> X -> D -> E2 -> E3
	dup := *e1
	dup.ID = uuid.New()
	dup.PreviousID, dup.NextID = &x.ID, &e2.ID
	dup.Scores = datatypes.JSONSlice[float64]{}
	dup.CreatedAt = time.Now().Add(time.Second)
	dup.UpdatedAt = dup.CreatedAt
	require.NoError(t, env.repos.StudentExercises.Create(ctx, env.db, &dup))
	require.NoError(t, env.repos.StudentExercises.UpdateLinks(ctx, env.db, x.ID, &e1.ID, &dup.ID))
	require.NoError(t, env.repos.StudentExercises.UpdateLinks(ctx, env.db, e2.ID, &dup.ID, &e3.ID))
	require.Equal(t, []uuid.UUID{e1.ID, x.ID, dup.ID, e2.ID, e3.ID}, ordering.Keys(env.studentExercises(t, sm.ID)))

	report, err := env.repair.RepairAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DuplicatesRemoved)
	assert.Zero(t, report.Failed)

	after := env.studentExercises(t, sm.ID)
	assert.Equal(t, []uuid.UUID{e1.ID, x.ID, e2.ID, e3.ID}, ordering.Keys(after))
	assert.True(t, ordering.IsHealthy(after))

	module, err := env.progress.GetStudentModule(ctx, sm.ID)
	require.NoError(t, err)
	assert.Equal(t, ordering.Keys(after), []uuid.UUID(module.ExerciseIDs))
}

func TestChainRepairService_RefreshesLibraryExerciseIDs(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	ownerID := uuid.New()
	module, err := env.library.CreateModule(ctx, ownerID, &model.CreateLibraryModuleRequest{Tier: model.LibraryTierTeacher, Title: "L1"})
	require.NoError(t, err)
	for _, title := range []string{"A", "B"} {
		_, err := env.library.AddExercise(ctx, module.ID, &model.AddExerciseRequest{Title: title})
		require.NoError(t, err)
	}
	require.NoError(t, env.repos.LibraryModules.Update(ctx, env.db, module.ID, map[string]interface{}{
		"exercise_ids": datatypes.JSONSlice[uuid.UUID]{},
	}))

	_, err = env.repair.RepairAll(ctx)
	require.NoError(t, err)

	got, err := env.library.GetModule(ctx, module.ID)
	require.NoError(t, err)
	ordered, err := env.library.GetOrderedExercises(ctx, module.ID)
	require.NoError(t, err)
	assert.Equal(t, ordering.Keys(ordered), []uuid.UUID(got.ExerciseIDs))
}
