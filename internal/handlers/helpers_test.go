package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go_5_course_keep/internal/handlers"
	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/repository"
	"go_5_course_keep/internal/service"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// httpRequestDetails はHTTPリクエストの送信に必要な情報をまとめます。
type httpRequestDetails struct {
	Method  string
	Path    string
	Body    interface{}
	Headers map[string]string
}

type testApp struct {
	server *httptest.Server
	db     *gorm.DB
}

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
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

// newTestApp は実サービスと開発用認証ミドルウェアでルーターを組み立てます。
func newTestApp(t *testing.T, db *gorm.DB) *testApp {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repos := repository.NewGormRepositories()
	notifier := service.NewStoreNotifier(db, repos.Events)
	sync := service.NewSyncService(db, repos, service.NewEnrollmentDirectory(db, repos.Enrollments), notifier, false)
	replication := service.NewReplicationService(repos, sync)
	h := handlers.NewHandlers(handlers.Services{
		Courses:     service.NewCourseService(db, repos, sync, replication),
		Enrollments: service.NewEnrollmentService(db, repos, replication),
		Progress:    service.NewProgressService(db, repos, notifier),
		Library:     service.NewLibraryService(db, repos.LibraryModules, repos.LibraryExercises),
		Repair:      service.NewChainRepairService(db, repos),
	}, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.NewStructuredLogger(logger))
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.DevActorMiddleware)
		h.Routes(r)
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &testApp{server: server, db: db}
}

func asTeacher(id uuid.UUID) map[string]string {
	return map[string]string{"X-User-ID": id.String(), "X-User-Role": string(model.RoleTeacher)}
}

func asStudent(id uuid.UUID) map[string]string {
	return map[string]string{"X-User-ID": id.String(), "X-User-Role": string(model.RoleStudent)}
}

// sendRequest はリクエストを送り、ステータスコードを検証してボディを返します。
func sendRequest(t *testing.T, app *testApp, details httpRequestDetails, expectedCode int) []byte {
	t.Helper()

	var reqBodyReader io.Reader
	if details.Body != nil {
		if strPayload, ok := details.Body.(string); ok {
			reqBodyReader = strings.NewReader(strPayload)
		} else {
			reqBodyBytes, err := json.Marshal(details.Body)
			require.NoError(t, err, "Failed to marshal request body")
			reqBodyReader = bytes.NewBuffer(reqBodyBytes)
		}
	}

	req, err := http.NewRequest(details.Method, app.server.URL+"/api/v1"+details.Path, reqBodyReader)
	require.NoError(t, err, "Failed to create request")
	if reqBodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range details.Headers {
		req.Header.Set(key, value)
	}

	resp, err := app.server.Client().Do(req)
	require.NoError(t, err, "Failed to execute request")
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "Failed to read response body")
	assert.Equal(t, expectedCode, resp.StatusCode, "Status code mismatch: %s", string(body))
	return body
}

// doJSON は sendRequest の結果を out にデコードします。
func doJSON(t *testing.T, app *testApp, details httpRequestDetails, expectedCode int, out interface{}) {
	t.Helper()
	body := sendRequest(t, app, details, expectedCode)
	if out != nil {
		require.NoError(t, json.Unmarshal(body, out), "Failed to decode response: %s", string(body))
	}
}

// errorCode はエラーレスポンスの code を取り出します。
func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var errResp model.APIErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp), "Error response body not valid JSON: %s", string(body))
	return errResp.Error.Code
}

// --- フィクスチャ (API 経由) ---

type moduleResult struct {
	Module *model.CourseModule `json:"module"`
	Sync   *service.SyncReport `json:"sync"`
}

type modulesResult struct {
	Modules []*model.CourseModule `json:"modules"`
	Sync    *service.SyncReport   `json:"sync"`
}

type exerciseResult struct {
	Exercise *model.CourseExercise `json:"exercise"`
	Sync     *service.SyncReport   `json:"sync"`
}

func createCourse(t *testing.T, app *testApp, teacherID uuid.UUID) *model.Course {
	t.Helper()
	var course model.Course
	doJSON(t, app, httpRequestDetails{
		Method:  http.MethodPost,
		Path:    "/courses",
		Body:    model.CreateCourseRequest{Title: "Go入門"},
		Headers: asTeacher(teacherID),
	}, http.StatusCreated, &course)
	return &course
}

func addModule(t *testing.T, app *testApp, teacherID, courseID uuid.UUID, title string, moduleType model.ModuleType, exercises ...string) (*model.CourseModule, []*model.CourseExercise) {
	t.Helper()
	var res moduleResult
	doJSON(t, app, httpRequestDetails{
		Method:  http.MethodPost,
		Path:    "/courses/" + courseID.String() + "/modules",
		Body:    model.AddModuleRequest{Title: title, Type: moduleType},
		Headers: asTeacher(teacherID),
	}, http.StatusCreated, &res)

	created := make([]*model.CourseExercise, 0, len(exercises))
	for _, ex := range exercises {
		var exRes exerciseResult
		doJSON(t, app, httpRequestDetails{
			Method:  http.MethodPost,
			Path:    "/modules/" + res.Module.ID.String() + "/exercises",
			Body:    model.AddExerciseRequest{Title: ex, MaxScore: 100},
			Headers: asTeacher(teacherID),
		}, http.StatusCreated, &exRes)
		created = append(created, exRes.Exercise)
	}
	return res.Module, created
}

func enroll(t *testing.T, app *testApp, teacherID, courseID, studentID uuid.UUID) *model.Enrollment {
	t.Helper()
	var enrollment model.Enrollment
	doJSON(t, app, httpRequestDetails{
		Method:  http.MethodPost,
		Path:    "/courses/" + courseID.String() + "/enrollments",
		Body:    model.EnrollRequest{StudentID: studentID},
		Headers: asTeacher(teacherID),
	}, http.StatusCreated, &enrollment)
	return &enrollment
}

func moduleIDs(modules []*model.CourseModule) []uuid.UUID {
	out := make([]uuid.UUID, len(modules))
	for i, m := range modules {
		out[i] = m.ID
	}
	return out
}
