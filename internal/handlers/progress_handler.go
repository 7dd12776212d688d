package handlers

import (
	"log/slog"
	"net/http"

	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/service"
	"go_5_course_keep/internal/webutil"

	"github.com/google/uuid"
)

// ProgressHandler は受講者層 (受講者ごとのコピーと進捗) の API です。
// 受講者本人と、そのコースの教師がアクセスできます。
type ProgressHandler struct {
	progress service.ProgressService
	guard    *accessGuard
	logger   *slog.Logger
}

func NewProgressHandler(progress service.ProgressService, guard *accessGuard, logger *slog.Logger) *ProgressHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressHandler{progress: progress, guard: guard, logger: logger}
}

// GetStudentModules は GET /courses/{course_id}/student-modules
// 教師は ?student_id= で受講者を指定します。受講者は自分のものだけです。
func (h *ProgressHandler) GetStudentModules(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetStudentModules"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	courseID, ok := uuidParam(w, r, logger, "course_id")
	if !ok {
		return
	}

	studentID := actor.ID
	if raw := r.URL.Query().Get("student_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			appErr := model.NewAppError("INVALID_QUERY_PARAM", "student_idの形式が正しくありません。", "student_id", model.ErrInvalidInput)
			webutil.HandleError(w, logger, appErr)
			return
		}
		studentID = parsed
	}
	if err := h.guard.student(r.Context(), actor, studentID, courseID); err != nil {
		respondServiceError(w, logger, "Student content access denied", err)
		return
	}

	modules, err := h.progress.GetOrderedStudentModules(r.Context(), studentID, courseID)
	if err != nil {
		respondServiceError(w, logger, "Error listing student modules in service", err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, emptyIfNil(modules), logger)
}

// GetStudentExercises は GET /student-modules/{student_module_id}/exercises
func (h *ProgressHandler) GetStudentExercises(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetStudentExercises"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	moduleID, ok := uuidParam(w, r, logger, "student_module_id")
	if !ok {
		return
	}
	if _, err := h.guard.studentModule(r.Context(), actor, moduleID); err != nil {
		respondServiceError(w, logger, "Student module access denied or not found", err)
		return
	}

	exercises, err := h.progress.GetOrderedStudentExercises(r.Context(), moduleID)
	if err != nil {
		respondServiceError(w, logger, "Error listing student exercises in service", err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, emptyIfNil(exercises), logger)
}

// AddStudentExercise は POST /student-modules/{student_module_id}/exercises (アドホック)
func (h *ProgressHandler) AddStudentExercise(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "AddStudentExercise"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	moduleID, ok := uuidParam(w, r, logger, "student_module_id")
	if !ok {
		return
	}

	var req model.AddExerciseRequest
	if !decodeAndValidate(w, r, logger, &req) {
		return
	}
	if _, err := h.guard.studentModule(r.Context(), actor, moduleID); err != nil {
		respondServiceError(w, logger, "Student module access denied or not found", err)
		return
	}

	exercise, err := h.progress.AddStudentExercise(r.Context(), moduleID, &req)
	if err != nil {
		respondServiceError(w, logger, "Error adding student exercise in service", err)
		return
	}
	logger.Info("Ad-hoc exercise added", slog.String("student_exercise_id", exercise.ID.String()))
	webutil.RespondWithJSON(w, http.StatusCreated, exercise, logger)
}

// GetStudentExercise は GET /student-exercises/{student_exercise_id}
func (h *ProgressHandler) GetStudentExercise(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetStudentExercise"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	exerciseID, ok := uuidParam(w, r, logger, "student_exercise_id")
	if !ok {
		return
	}

	exercise, err := h.guard.studentExercise(r.Context(), actor, exerciseID)
	if err != nil {
		respondServiceError(w, logger, "Student exercise access denied or not found", err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, exercise, logger)
}

// CompleteExercise は POST /student-exercises/{student_exercise_id}/complete
func (h *ProgressHandler) CompleteExercise(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "CompleteExercise"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	exerciseID, ok := uuidParam(w, r, logger, "student_exercise_id")
	if !ok {
		return
	}

	var req model.CompleteExerciseRequest
	if r.ContentLength != 0 && !decodeAndValidate(w, r, logger, &req) {
		return
	}
	if _, err := h.guard.studentExercise(r.Context(), actor, exerciseID); err != nil {
		respondServiceError(w, logger, "Student exercise access denied or not found", err)
		return
	}

	exercise, err := h.progress.CompleteExercise(r.Context(), exerciseID, req.Score)
	if err != nil {
		respondServiceError(w, logger, "Error completing exercise in service", err)
		return
	}
	logger.Info("Exercise completed", slog.String("student_exercise_id", exerciseID.String()), slog.String("status", string(exercise.Status)))
	webutil.RespondWithJSON(w, http.StatusOK, exercise, logger)
}

// UncompleteExercise は POST /student-exercises/{student_exercise_id}/uncomplete
func (h *ProgressHandler) UncompleteExercise(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "UncompleteExercise"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	exerciseID, ok := uuidParam(w, r, logger, "student_exercise_id")
	if !ok {
		return
	}
	if _, err := h.guard.studentExercise(r.Context(), actor, exerciseID); err != nil {
		respondServiceError(w, logger, "Student exercise access denied or not found", err)
		return
	}

	exercise, err := h.progress.UncompleteExercise(r.Context(), exerciseID)
	if err != nil {
		respondServiceError(w, logger, "Error uncompleting exercise in service", err)
		return
	}
	logger.Info("Exercise uncompleted", slog.String("student_exercise_id", exerciseID.String()))
	webutil.RespondWithJSON(w, http.StatusOK, exercise, logger)
}

// SetExerciseStatus は PUT /student-exercises/{student_exercise_id}/status
func (h *ProgressHandler) SetExerciseStatus(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "SetExerciseStatus"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	exerciseID, ok := uuidParam(w, r, logger, "student_exercise_id")
	if !ok {
		return
	}

	var req model.SetExerciseStatusRequest
	if !decodeAndValidate(w, r, logger, &req) {
		return
	}
	if _, err := h.guard.studentExercise(r.Context(), actor, exerciseID); err != nil {
		respondServiceError(w, logger, "Student exercise access denied or not found", err)
		return
	}

	exercise, err := h.progress.SetExerciseStatus(r.Context(), exerciseID, req.Status, req.Score)
	if err != nil {
		respondServiceError(w, logger, "Error setting exercise status in service", err)
		return
	}
	logger.Info("Exercise status updated", slog.String("student_exercise_id", exerciseID.String()), slog.String("status", string(exercise.Status)))
	webutil.RespondWithJSON(w, http.StatusOK, exercise, logger)
}

// ReorderStudentExercise は PUT /student-exercises/{student_exercise_id}/position
func (h *ProgressHandler) ReorderStudentExercise(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "ReorderStudentExercise"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	exerciseID, ok := uuidParam(w, r, logger, "student_exercise_id")
	if !ok {
		return
	}

	var req model.ReorderRequest
	if !decodeAndValidate(w, r, logger, &req) {
		return
	}
	if _, err := h.guard.studentExercise(r.Context(), actor, exerciseID); err != nil {
		respondServiceError(w, logger, "Student exercise access denied or not found", err)
		return
	}

	exercises, err := h.progress.ReorderStudentExercise(r.Context(), exerciseID, *req.Index)
	if err != nil {
		respondServiceError(w, logger, "Error reordering student exercise in service", err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, emptyIfNil(exercises), logger)
}

// RemoveStudentExercise は DELETE /student-exercises/{student_exercise_id} (アドホックのみ)
func (h *ProgressHandler) RemoveStudentExercise(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "RemoveStudentExercise"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	exerciseID, ok := uuidParam(w, r, logger, "student_exercise_id")
	if !ok {
		return
	}
	if _, err := h.guard.studentExercise(r.Context(), actor, exerciseID); err != nil {
		respondServiceError(w, logger, "Student exercise access denied or not found", err)
		return
	}

	if err := h.progress.RemoveStudentExercise(r.Context(), exerciseID); err != nil {
		respondServiceError(w, logger, "Error removing student exercise in service", err)
		return
	}
	logger.Info("Ad-hoc exercise removed", slog.String("student_exercise_id", exerciseID.String()))
	w.WriteHeader(http.StatusNoContent)
}
