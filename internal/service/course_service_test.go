package service

import (
	"context"
	"testing"

	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/ordering"
	"go_5_course_keep/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func courseExerciseTitles(exercises []*model.CourseExercise) []string {
	out := make([]string, len(exercises))
	for i, e := range exercises {
		out[i] = e.Title
	}
	return out
}

func courseModuleTitles(modules []*model.CourseModule) []string {
	out := make([]string, len(modules))
	for i, m := range modules {
		out[i] = m.Title
	}
	return out
}

// コースC: M1(all: E1,E2), M2(progress: E3,E4) に受講者Sを登録し、E3完了とM2の並べ替えを確認する
func TestCourseService_EnrollCompleteReorderScenario(t *testing.T) {
	ctx := context.Background()
	notifier := mocks.NewNotifier(t)
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(e *model.Event) bool {
		return e.Type == model.EventExerciseCompleted && e.Title == "E3"
	})).Return(nil).Once()
	env := newTestEnv(t, notifier)

	course := env.createCourse(t)
	m1, _ := env.addModule(t, course.ID, "M1", model.ModuleTypeAll, "E1", "E2")
	m2, _ := env.addModule(t, course.ID, "M2", model.ModuleTypeProgress, "E3", "E4")

	enrollment := env.enroll(t, course.ID)
	modules := env.studentModules(t, enrollment)
	require.Len(t, modules, 2)
	assert.Equal(t, []string{"M1", "M2"}, moduleTitles(modules))

	sm1Exercises := env.studentExercises(t, modules[0].ID)
	assert.Equal(t, []string{"E1", "E2"}, exerciseTitles(sm1Exercises))
	assert.Equal(t, []model.ExerciseStatus{model.ExerciseStatusReady, model.ExerciseStatusReady}, statusesOf(sm1Exercises))

	sm2Exercises := env.studentExercises(t, modules[1].ID)
	assert.Equal(t, []string{"E3", "E4"}, exerciseTitles(sm2Exercises))
	assert.Equal(t, []model.ExerciseStatus{model.ExerciseStatusReady, model.ExerciseStatusPending}, statusesOf(sm2Exercises))

	t.Run("E3を完了するとE4が解放される", func(t *testing.T) {
		updated, err := env.progress.CompleteExercise(ctx, sm2Exercises[0].ID, nil)
		require.NoError(t, err)
		assert.Equal(t, model.ExerciseStatusCompleted, updated.Status)

		after := env.studentExercises(t, modules[1].ID)
		assert.Equal(t, []model.ExerciseStatus{model.ExerciseStatusCompleted, model.ExerciseStatusReady}, statusesOf(after))

		got, err := env.enrollments.GetEnrollment(ctx, enrollment.ID)
		require.NoError(t, err)
		assert.Equal(t, 25, got.Progress)
		assert.Equal(t, 1, got.CompletedExercises)
		assert.Equal(t, 4, got.TotalExercises)
	})

	t.Run("M2を先頭へ移動すると受講者の並びも同期される", func(t *testing.T) {
		ordered, report, err := env.courses.ReorderModule(ctx, m2.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{m2.ID, m1.ID}, []uuid.UUID{ordered[0].ID, ordered[1].ID})
		require.NotNil(t, report)
		assert.Equal(t, 1, report.Students)
		assert.Empty(t, report.Failed)

		courseModules, err := env.courses.GetOrderedModules(ctx, course.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"M2", "M1"}, courseModuleTitles(courseModules))

		studentModules := env.studentModules(t, enrollment)
		assert.Equal(t, []string{"M2", "M1"}, moduleTitles(studentModules))
		assert.Equal(t, m2.ID, studentModules[0].CourseModuleID)
		assert.Equal(t, m1.ID, studentModules[1].CourseModuleID)
	})
}

func TestCourseService_ReplicationParity(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	course := env.createCourse(t)
	module, exercises := env.addModule(t, course.ID, "M1", model.ModuleTypeAll, "A", "B", "C", "D")
	_, _, err := env.courses.ReorderExercise(ctx, exercises[3].ID, 0)
	require.NoError(t, err)
	_, _, err = env.courses.ReorderExercise(ctx, exercises[1].ID, 3)
	require.NoError(t, err)

	courseOrder, err := env.courses.GetOrderedExercises(ctx, module.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "A", "C", "B"}, courseExerciseTitles(courseOrder))

	enrollment := env.enroll(t, course.ID)
	sm := env.studentModules(t, enrollment)[0]
	studentOrder := env.studentExercises(t, sm.ID)
	require.Len(t, studentOrder, len(courseOrder))
	for i, se := range studentOrder {
		require.NotNil(t, se.CourseExerciseID)
		assert.Equal(t, courseOrder[i].ID, *se.CourseExerciseID, "position %d", i)
	}
	assert.Len(t, sm.ExerciseIDs, 4)

	got, err := env.courses.GetModule(ctx, module.ID)
	require.NoError(t, err)
	assert.Equal(t, courseOrder[0].ID, got.ExerciseIDs[0])
}

func TestCourseService_AddContentAfterEnrollment(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	course := env.createCourse(t)
	m1, _ := env.addModule(t, course.ID, "M1", model.ModuleTypeProgress, "E1")
	enrollment := env.enroll(t, course.ID)

	sm1 := env.studentModules(t, enrollment)[0]
	e1 := env.studentExercises(t, sm1.ID)[0]
	_, err := env.progress.CompleteExercise(ctx, e1.ID, nil)
	require.NoError(t, err)

	completed, err := env.progress.GetStudentModule(ctx, sm1.ID)
	require.NoError(t, err)
	require.Equal(t, model.ModuleStatusCompleted, completed.Status)

	t.Run("追加したエクササイズは位置から状態が決まり、完了済みモジュールは戻る", func(t *testing.T) {
		_, report, err := env.courses.AddExercise(ctx, m1.ID, &model.AddExerciseRequest{Title: "E2", MaxScore: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Students)
		assert.Empty(t, report.Failed)

		exercises := env.studentExercises(t, sm1.ID)
		assert.Equal(t, []string{"E1", "E2"}, exerciseTitles(exercises))
		assert.Equal(t, []model.ExerciseStatus{model.ExerciseStatusCompleted, model.ExerciseStatusReady}, statusesOf(exercises))

		module, err := env.progress.GetStudentModule(ctx, sm1.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ModuleStatusActive, module.Status)
		assert.Equal(t, 50, module.Progress)

		got, err := env.enrollments.GetEnrollment(ctx, enrollment.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.TotalExercises)
		assert.Equal(t, 50, got.Progress)
	})

	t.Run("追加したモジュールは受講者の末尾に複製される", func(t *testing.T) {
		m2, report, err := env.courses.AddModule(ctx, course.ID, &model.AddModuleRequest{Title: "M2", Type: model.ModuleTypeAll})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Students)

		modules := env.studentModules(t, enrollment)
		assert.Equal(t, []string{"M1", "M2"}, moduleTitles(modules))
		assert.Equal(t, m2.ID, modules[1].CourseModuleID)

		got, err := env.enrollments.GetEnrollment(ctx, enrollment.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.TotalModules)
	})
}

func TestCourseService_AddExerciseKeepsAdHocPlacement(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	course := env.createCourse(t)
	m1, _ := env.addModule(t, course.ID, "M1", model.ModuleTypeAll, "E1", "E2")
	enrollment := env.enroll(t, course.ID)
	sm := env.studentModules(t, enrollment)[0]

	x, err := env.progress.AddStudentExercise(ctx, sm.ID, &model.AddExerciseRequest{Title: "X"})
	require.NoError(t, err)
	_, err = env.progress.ReorderStudentExercise(ctx, x.ID, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"E1", "X", "E2"}, exerciseTitles(env.studentExercises(t, sm.ID)))

	_, report, err := env.courses.AddExercise(ctx, m1.ID, &model.AddExerciseRequest{Title: "E3", MaxScore: 10})
	require.NoError(t, err)
	assert.Empty(t, report.Failed)

	exercises := env.studentExercises(t, sm.ID)
	assert.Equal(t, []string{"E1", "X", "E2", "E3"}, exerciseTitles(exercises))
	assert.True(t, ordering.IsHealthy(exercises))

	module, err := env.progress.GetStudentModule(ctx, sm.ID)
	require.NoError(t, err)
	assert.Equal(t, ordering.Keys(exercises), []uuid.UUID(module.ExerciseIDs))

	t.Run("2つ目の追加でも位置は変わらない", func(t *testing.T) {
		_, _, err := env.courses.AddExercise(ctx, m1.ID, &model.AddExerciseRequest{Title: "E4", MaxScore: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"E1", "X", "E2", "E3", "E4"}, exerciseTitles(env.studentExercises(t, sm.ID)))
	})
}

func TestCourseService_RemoveModuleAndExercise(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	course := env.createCourse(t)
	m1, exercises := env.addModule(t, course.ID, "M1", model.ModuleTypeAll, "E1", "E2", "E3")
	m2, m2Exercises := env.addModule(t, course.ID, "M2", model.ModuleTypeAll, "E4")
	m3, _ := env.addModule(t, course.ID, "M3", model.ModuleTypeAll)
	enrollment := env.enroll(t, course.ID)

	t.Run("エクササイズの削除で前後がつなぎ直される", func(t *testing.T) {
		report, err := env.courses.RemoveExercise(ctx, exercises[1].ID)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Students)

		ordered, err := env.courses.GetOrderedExercises(ctx, m1.ID)
		require.NoError(t, err)
		require.Equal(t, []string{"E1", "E3"}, courseExerciseTitles(ordered))
		require.NotNil(t, ordered[0].NextID)
		require.NotNil(t, ordered[1].PreviousID)
		assert.Equal(t, exercises[2].ID, *ordered[0].NextID)
		assert.Equal(t, exercises[0].ID, *ordered[1].PreviousID)

		sm1 := env.studentModules(t, enrollment)[0]
		assert.Equal(t, []string{"E1", "E3"}, exerciseTitles(env.studentExercises(t, sm1.ID)))

		_, err = env.courses.GetExercise(ctx, exercises[1].ID)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("モジュールの削除で配下も受講者のコピーも外れる", func(t *testing.T) {
		report, err := env.courses.RemoveModule(ctx, m2.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Students)

		ordered, err := env.courses.GetOrderedModules(ctx, course.ID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{m1.ID, m3.ID}, []uuid.UUID{ordered[0].ID, ordered[1].ID})

		_, err = env.courses.GetExercise(ctx, m2Exercises[0].ID)
		assert.ErrorIs(t, err, model.ErrNotFound)

		assert.Equal(t, []string{"M1", "M3"}, moduleTitles(env.studentModules(t, enrollment)))

		got, err := env.enrollments.GetEnrollment(ctx, enrollment.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.TotalModules)
		assert.Equal(t, 2, got.TotalExercises)
	})

	t.Run("異常系: 存在しないモジュール", func(t *testing.T) {
		_, err := env.courses.RemoveModule(ctx, uuid.New())
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestCourseService_SetModuleStatus(t *testing.T) {
	ctx := context.Background()
	notifier := mocks.NewNotifier(t)
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(e *model.Event) bool {
		return e.Type == model.EventModuleUnlocked && e.Title == "M1"
	})).Return(nil).Once()
	env := newTestEnv(t, notifier)

	course := env.createCourse(t)
	module, _, err := env.courses.AddModule(ctx, course.ID, &model.AddModuleRequest{
		Title:  "M1",
		Type:   model.ModuleTypeProgress,
		Status: string(model.ModuleStatusInactive),
	})
	require.NoError(t, err)
	for _, title := range []string{"E1", "E2"} {
		_, _, err := env.courses.AddExercise(ctx, module.ID, &model.AddExerciseRequest{Title: title})
		require.NoError(t, err)
	}

	enrollment := env.enroll(t, course.ID)
	sm := env.studentModules(t, enrollment)[0]
	assert.Equal(t, model.ModuleStatusInactive, sm.Status)
	assert.Equal(t, []model.ExerciseStatus{model.ExerciseStatusPending, model.ExerciseStatusPending},
		statusesOf(env.studentExercises(t, sm.ID)))

	t.Run("有効化で先頭が解放され通知される", func(t *testing.T) {
		updated, report, err := env.courses.SetModuleStatus(ctx, module.ID, "active")
		require.NoError(t, err)
		assert.Equal(t, model.ModuleStatusActive, updated.Status)
		assert.Equal(t, 1, report.Students)

		got, err := env.progress.GetStudentModule(ctx, sm.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ModuleStatusActive, got.Status)
		assert.Equal(t, []model.ExerciseStatus{model.ExerciseStatusReady, model.ExerciseStatusPending},
			statusesOf(env.studentExercises(t, sm.ID)))
	})

	t.Run("異常系: 不明なステータス", func(t *testing.T) {
		_, _, err := env.courses.SetModuleStatus(ctx, module.ID, "archived")
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrInvalidStatus)
	})
}

func TestCourseService_AddModuleFromLibrary(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	source, err := env.library.CreateModule(ctx, uuid.New(), &model.CreateLibraryModuleRequest{
		Tier:  model.LibraryTierTemplate,
		Title: "テンプレート",
		Type:  model.ModuleTypeProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, source.OwnerID)

	var last *model.LibraryExercise
	for _, title := range []string{"X", "Y", "Z"} {
		last, err = env.library.AddExercise(ctx, source.ID, &model.AddExerciseRequest{Title: title})
		require.NoError(t, err)
	}
	_, err = env.library.ReorderExercise(ctx, last.ID, 0)
	require.NoError(t, err)

	course := env.createCourse(t)
	enrollment := env.enroll(t, course.ID)

	module, report, err := env.courses.AddModule(ctx, course.ID, &model.AddModuleRequest{SourceModuleID: &source.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Students)
	assert.Equal(t, "テンプレート", module.Title)
	assert.Equal(t, model.ModuleTypeProgress, module.Type)
	require.NotNil(t, module.SourceTier)
	assert.Equal(t, model.LibraryTierTemplate, *module.SourceTier)

	ordered, err := env.courses.GetOrderedExercises(ctx, module.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Z", "X", "Y"}, courseExerciseTitles(ordered))

	sm := env.studentModules(t, enrollment)[0]
	exercises := env.studentExercises(t, sm.ID)
	assert.Equal(t, []string{"Z", "X", "Y"}, exerciseTitles(exercises))
	assert.Equal(t, []model.ExerciseStatus{model.ExerciseStatusReady, model.ExerciseStatusPending, model.ExerciseStatusPending},
		statusesOf(exercises))

	t.Run("異常系: 存在しないライブラリモジュール", func(t *testing.T) {
		missing := uuid.New()
		_, _, err := env.courses.AddModule(ctx, course.ID, &model.AddModuleRequest{SourceModuleID: &missing})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}
