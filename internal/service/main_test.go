package service

import (
	"context"
	"fmt"
	"testing"

	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB はテストごとに独立したインメモリ SQLite を用意します。
// 接続は1本なので、トランザクション内から s.db を使うとデッドロックします (テストで検出できる)。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, repository.Migrate(context.Background(), db))
	return db
}

// testEnv は実際のリポジトリで組み立てたサービス一式です。
type testEnv struct {
	db          *gorm.DB
	repos       repository.Repositories
	sync        SyncService
	replication ReplicationService
	courses     CourseService
	enrollments EnrollmentService
	progress    ProgressService
	library     LibraryService
	repair      ChainRepairService
}

func newTestEnv(t *testing.T, notifier Notifier) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	repos := repository.NewGormRepositories()
	return buildTestEnv(db, repos, NewEnrollmentDirectory(db, repos.Enrollments), notifier)
}

func buildTestEnv(db *gorm.DB, repos repository.Repositories, directory EnrollmentDirectory, notifier Notifier) *testEnv {
	if notifier == nil {
		notifier = &LogNotifier{}
	}
	sync := NewSyncService(db, repos, directory, notifier, false)
	replication := NewReplicationService(repos, sync)
	return &testEnv{
		db:          db,
		repos:       repos,
		sync:        sync,
		replication: replication,
		courses:     NewCourseService(db, repos, sync, replication),
		enrollments: NewEnrollmentService(db, repos, replication),
		progress:    NewProgressService(db, repos, notifier),
		library:     NewLibraryService(db, repos.LibraryModules, repos.LibraryExercises),
		repair:      NewChainRepairService(db, repos),
	}
}

// --- フィクスチャ ---

func (e *testEnv) createCourse(t *testing.T) *model.Course {
	t.Helper()
	course, err := e.courses.CreateCourse(context.Background(), uuid.New(), &model.CreateCourseRequest{Title: "Go入門"})
	require.NoError(t, err)
	return course
}

func (e *testEnv) addModule(t *testing.T, courseID uuid.UUID, title string, moduleType model.ModuleType, exercises ...string) (*model.CourseModule, []*model.CourseExercise) {
	t.Helper()
	ctx := context.Background()
	module, _, err := e.courses.AddModule(ctx, courseID, &model.AddModuleRequest{Title: title, Type: moduleType})
	require.NoError(t, err)

	created := make([]*model.CourseExercise, 0, len(exercises))
	for _, title := range exercises {
		ex, _, err := e.courses.AddExercise(ctx, module.ID, &model.AddExerciseRequest{Title: title, MaxScore: 100})
		require.NoError(t, err)
		created = append(created, ex)
	}
	return module, created
}

func (e *testEnv) enroll(t *testing.T, courseID uuid.UUID) *model.Enrollment {
	t.Helper()
	enrollment, err := e.enrollments.Enroll(context.Background(), courseID, uuid.New())
	require.NoError(t, err)
	return enrollment
}

func (e *testEnv) studentModules(t *testing.T, enrollment *model.Enrollment) []*model.StudentModule {
	t.Helper()
	modules, err := e.progress.GetOrderedStudentModules(context.Background(), enrollment.StudentID, enrollment.CourseID)
	require.NoError(t, err)
	return modules
}

func (e *testEnv) studentExercises(t *testing.T, studentModuleID uuid.UUID) []*model.StudentExercise {
	t.Helper()
	exercises, err := e.progress.GetOrderedStudentExercises(context.Background(), studentModuleID)
	require.NoError(t, err)
	return exercises
}

func statusesOf(exercises []*model.StudentExercise) []model.ExerciseStatus {
	out := make([]model.ExerciseStatus, len(exercises))
	for i, se := range exercises {
		out[i] = se.Status
	}
	return out
}

func exerciseTitles(exercises []*model.StudentExercise) []string {
	out := make([]string, len(exercises))
	for i, se := range exercises {
		out[i] = se.Title
	}
	return out
}

func moduleTitles(modules []*model.StudentModule) []string {
	out := make([]string, len(modules))
	for i, sm := range modules {
		out[i] = sm.Title
	}
	return out
}
