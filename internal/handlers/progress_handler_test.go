package handlers_test

import (
	"net/http"
	"testing"

	"go_5_course_keep/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// studentSetup は M2(progress: E3, E4) に登録済みの受講者を用意します。
func studentSetup(t *testing.T, app *testApp) (teacherID, studentID uuid.UUID, course *model.Course, studentModule *model.StudentModule) {
	t.Helper()
	teacherID, studentID = uuid.New(), uuid.New()
	course = createCourse(t, app, teacherID)
	addModule(t, app, teacherID, course.ID, "M2", model.ModuleTypeProgress, "E3", "E4")
	enroll(t, app, teacherID, course.ID, studentID)

	var modules []*model.StudentModule
	doJSON(t, app, httpRequestDetails{
		Method:  http.MethodGet,
		Path:    "/courses/" + course.ID.String() + "/student-modules",
		Headers: asStudent(studentID),
	}, http.StatusOK, &modules)
	require.Len(t, modules, 1)
	return teacherID, studentID, course, modules[0]
}

func studentExercises(t *testing.T, app *testApp, headers map[string]string, studentModuleID uuid.UUID) []*model.StudentExercise {
	t.Helper()
	var exercises []*model.StudentExercise
	doJSON(t, app, httpRequestDetails{
		Method:  http.MethodGet,
		Path:    "/student-modules/" + studentModuleID.String() + "/exercises",
		Headers: headers,
	}, http.StatusOK, &exercises)
	return exercises
}

func TestProgressHandler_CompleteUnlocksNext(t *testing.T) {
	app := newTestApp(t, setupSQLite(t))
	_, studentID, _, sm := studentSetup(t, app)

	exercises := studentExercises(t, app, asStudent(studentID), sm.ID)
	require.Len(t, exercises, 2)
	assert.Equal(t, model.ExerciseStatusReady, exercises[0].Status)
	assert.Equal(t, model.ExerciseStatusPending, exercises[1].Status)

	var completed model.StudentExercise
	doJSON(t, app, httpRequestDetails{
		Method:  http.MethodPost,
		Path:    "/student-exercises/" + exercises[0].ID.String() + "/complete",
		Body:    model.CompleteExerciseRequest{},
		Headers: asStudent(studentID),
	}, http.StatusOK, &completed)
	assert.Equal(t, model.ExerciseStatusCompleted, completed.Status)

	exercises = studentExercises(t, app, asStudent(studentID), sm.ID)
	assert.Equal(t, model.ExerciseStatusReady, exercises[1].Status)

	t.Run("uncomplete re-locks downstream", func(t *testing.T) {
		var reverted model.StudentExercise
		doJSON(t, app, httpRequestDetails{
			Method:  http.MethodPost,
			Path:    "/student-exercises/" + exercises[0].ID.String() + "/uncomplete",
			Headers: asStudent(studentID),
		}, http.StatusOK, &reverted)
		assert.Equal(t, model.ExerciseStatusPending, reverted.Status)

		after := studentExercises(t, app, asStudent(studentID), sm.ID)
		assert.Equal(t, model.ExerciseStatusPending, after[1].Status)
	})
}

func TestProgressHandler_Access(t *testing.T) {
	app := newTestApp(t, setupSQLite(t))
	teacherID, studentID, course, sm := studentSetup(t, app)
	exercises := studentExercises(t, app, asStudent(studentID), sm.ID)

	tests := []struct {
		name         string
		path         string
		headers      map[string]string
		expectedCode int
	}{
		{"owner student", "/student-exercises/" + exercises[0].ID.String(), asStudent(studentID), http.StatusOK},
		{"course teacher", "/student-exercises/" + exercises[0].ID.String(), asTeacher(teacherID), http.StatusOK},
		{"another student", "/student-exercises/" + exercises[0].ID.String(), asStudent(uuid.New()), http.StatusForbidden},
		{"another teacher", "/student-modules/" + sm.ID.String() + "/exercises", asTeacher(uuid.New()), http.StatusForbidden},
		{"teacher views student by query", "/courses/" + course.ID.String() + "/student-modules?student_id=" + studentID.String(), asTeacher(teacherID), http.StatusOK},
		{"student cannot view another by query", "/courses/" + course.ID.String() + "/student-modules?student_id=" + uuid.NewString(), asStudent(studentID), http.StatusForbidden},
		{"malformed query", "/courses/" + course.ID.String() + "/student-modules?student_id=x", asStudent(studentID), http.StatusBadRequest},
		{"unknown exercise", "/student-exercises/" + uuid.NewString(), asStudent(studentID), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sendRequest(t, app, httpRequestDetails{Method: http.MethodGet, Path: tt.path, Headers: tt.headers}, tt.expectedCode)
		})
	}
}

func TestProgressHandler_SetExerciseStatus(t *testing.T) {
	app := newTestApp(t, setupSQLite(t))
	teacherID, studentID, _, sm := studentSetup(t, app)
	exercises := studentExercises(t, app, asStudent(studentID), sm.ID)

	t.Run("teacher grades with score", func(t *testing.T) {
		score := 80.0
		var graded model.StudentExercise
		doJSON(t, app, httpRequestDetails{
			Method:  http.MethodPut,
			Path:    "/student-exercises/" + exercises[0].ID.String() + "/status",
			Body:    model.SetExerciseStatusRequest{Status: "reviewed", Score: &score},
			Headers: asTeacher(teacherID),
		}, http.StatusOK, &graded)
		assert.Equal(t, model.ExerciseStatusReviewed, graded.Status)
		require.NotNil(t, graded.Score)
		assert.Equal(t, 80.0, *graded.Score)
		assert.Equal(t, 1, graded.Attempts)
	})

	t.Run("unknown status lists the valid set", func(t *testing.T) {
		body := sendRequest(t, app, httpRequestDetails{
			Method:  http.MethodPut,
			Path:    "/student-exercises/" + exercises[1].ID.String() + "/status",
			Body:    model.SetExerciseStatusRequest{Status: "done"},
			Headers: asStudent(studentID),
		}, http.StatusBadRequest)
		assert.Equal(t, "INVALID_STATUS", errorCode(t, body))
	})
}

func TestProgressHandler_AdHocExercises(t *testing.T) {
	app := newTestApp(t, setupSQLite(t))
	_, studentID, _, sm := studentSetup(t, app)

	var adHoc model.StudentExercise
	doJSON(t, app, httpRequestDetails{
		Method:  http.MethodPost,
		Path:    "/student-modules/" + sm.ID.String() + "/exercises",
		Body:    model.AddExerciseRequest{Title: "自習"},
		Headers: asStudent(studentID),
	}, http.StatusCreated, &adHoc)
	assert.True(t, adHoc.IsAdHoc())

	exercises := studentExercises(t, app, asStudent(studentID), sm.ID)
	require.Len(t, exercises, 3)
	assert.Equal(t, adHoc.ID, exercises[2].ID)

	t.Run("reorder within own chain", func(t *testing.T) {
		var ordered []*model.StudentExercise
		doJSON(t, app, httpRequestDetails{
			Method:  http.MethodPut,
			Path:    "/student-exercises/" + adHoc.ID.String() + "/position",
			Body:    map[string]int{"index": 0},
			Headers: asStudent(studentID),
		}, http.StatusOK, &ordered)
		require.Len(t, ordered, 3)
		assert.Equal(t, adHoc.ID, ordered[0].ID)
	})

	t.Run("course exercise cannot be removed", func(t *testing.T) {
		body := sendRequest(t, app, httpRequestDetails{
			Method:  http.MethodDelete,
			Path:    "/student-exercises/" + exercises[0].ID.String(),
			Headers: asStudent(studentID),
		}, http.StatusForbidden)
		assert.Equal(t, "COURSE_EXERCISE", errorCode(t, body))
	})

	t.Run("ad-hoc exercise can be removed", func(t *testing.T) {
		sendRequest(t, app, httpRequestDetails{
			Method:  http.MethodDelete,
			Path:    "/student-exercises/" + adHoc.ID.String(),
			Headers: asStudent(studentID),
		}, http.StatusNoContent)
		assert.Len(t, studentExercises(t, app, asStudent(studentID), sm.ID), 2)
	})
}
