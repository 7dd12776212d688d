package handlers

import (
	"log/slog"
	"net/http"

	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/service"
	"go_5_course_keep/internal/webutil"
)

// CourseHandler はコース層 (コース・モジュール・エクササイズ) の API です。
// 変更系は全受講者への同期結果 (sync) も返します。
type CourseHandler struct {
	courses service.CourseService
	guard   *accessGuard
	logger  *slog.Logger
}

func NewCourseHandler(courses service.CourseService, guard *accessGuard, logger *slog.Logger) *CourseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CourseHandler{courses: courses, guard: guard, logger: logger}
}

type moduleResponse struct {
	Module *model.CourseModule `json:"module"`
	Sync   *service.SyncReport `json:"sync"`
}

type modulesResponse struct {
	Modules []*model.CourseModule `json:"modules"`
	Sync    *service.SyncReport   `json:"sync"`
}

type exerciseResponse struct {
	Exercise *model.CourseExercise `json:"exercise"`
	Sync     *service.SyncReport   `json:"sync"`
}

type exercisesResponse struct {
	Exercises []*model.CourseExercise `json:"exercises"`
	Sync      *service.SyncReport     `json:"sync"`
}

type syncResponse struct {
	Sync *service.SyncReport `json:"sync"`
}

// CreateCourse は POST /courses
func (h *CourseHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "CreateCourse"))
	actor, ok := actorFrom(w, r, logger)
	if !ok || !requireTeacher(w, logger, actor) {
		return
	}

	var req model.CreateCourseRequest
	if !decodeAndValidate(w, r, logger, &req) {
		return
	}

	course, err := h.courses.CreateCourse(r.Context(), actor.ID, &req)
	if err != nil {
		respondServiceError(w, logger, "Error creating course in service", err)
		return
	}
	logger.Info("Course created successfully", slog.String("course_id", course.ID.String()))
	webutil.RespondWithJSON(w, http.StatusCreated, course, logger)
}

// ListCourses は GET /courses (自分のコースのみ)
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "ListCourses"))
	actor, ok := actorFrom(w, r, logger)
	if !ok || !requireTeacher(w, logger, actor) {
		return
	}

	courses, err := h.courses.ListCourses(r.Context(), actor.ID)
	if err != nil {
		respondServiceError(w, logger, "Error listing courses in service", err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, emptyIfNil(courses), logger)
}

// GetCourse は GET /courses/{course_id}
func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetCourse"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	courseID, ok := uuidParam(w, r, logger, "course_id")
	if !ok {
		return
	}

	course, err := h.guard.course(r.Context(), actor, courseID)
	if err != nil {
		respondServiceError(w, logger, "Course access denied or not found", err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, course, logger)
}

// GetOrderedModules は GET /courses/{course_id}/modules
func (h *CourseHandler) GetOrderedModules(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetOrderedModules"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	courseID, ok := uuidParam(w, r, logger, "course_id")
	if !ok {
		return
	}
	if _, err := h.guard.course(r.Context(), actor, courseID); err != nil {
		respondServiceError(w, logger, "Course access denied or not found", err)
		return
	}

	modules, err := h.courses.GetOrderedModules(r.Context(), courseID)
	if err != nil {
		respondServiceError(w, logger, "Error listing modules in service", err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, emptyIfNil(modules), logger)
}

// AddModule は POST /courses/{course_id}/modules
// source_module_id があればライブラリからコピーします (教師ライブラリは所有者のみ)。
func (h *CourseHandler) AddModule(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "AddModule"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	courseID, ok := uuidParam(w, r, logger, "course_id")
	if !ok {
		return
	}
	logger = logger.With(slog.String("course_id", courseID.String()))

	var req model.AddModuleRequest
	if !decodeAndValidate(w, r, logger, &req) {
		return
	}
	if _, err := h.guard.course(r.Context(), actor, courseID); err != nil {
		respondServiceError(w, logger, "Course access denied or not found", err)
		return
	}
	if req.SourceModuleID != nil {
		if _, err := h.guard.libraryModule(r.Context(), actor, *req.SourceModuleID); err != nil {
			respondServiceError(w, logger, "Library module access denied or not found", err)
			return
		}
	}

	module, report, err := h.courses.AddModule(r.Context(), courseID, &req)
	if err != nil {
		respondServiceError(w, logger, "Error adding module in service", err)
		return
	}
	logger.Info("Module added successfully", slog.String("module_id", module.ID.String()), slog.Int("students", report.Students))
	webutil.RespondWithJSON(w, http.StatusCreated, moduleResponse{Module: module, Sync: report}, logger)
}

// GetModule は GET /modules/{module_id}
func (h *CourseHandler) GetModule(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetModule"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	moduleID, ok := uuidParam(w, r, logger, "module_id")
	if !ok {
		return
	}

	module, err := h.guard.module(r.Context(), actor, moduleID)
	if err != nil {
		respondServiceError(w, logger, "Module access denied or not found", err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, module, logger)
}

// RemoveModule は DELETE /modules/{module_id}
func (h *CourseHandler) RemoveModule(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "RemoveModule"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	moduleID, ok := uuidParam(w, r, logger, "module_id")
	if !ok {
		return
	}
	if _, err := h.guard.module(r.Context(), actor, moduleID); err != nil {
		respondServiceError(w, logger, "Module access denied or not found", err)
		return
	}

	report, err := h.courses.RemoveModule(r.Context(), moduleID)
	if err != nil {
		respondServiceError(w, logger, "Error removing module in service", err)
		return
	}
	logger.Info("Module removed successfully", slog.String("module_id", moduleID.String()))
	webutil.RespondWithJSON(w, http.StatusOK, syncResponse{Sync: report}, logger)
}

// ReorderModule は PUT /modules/{module_id}/position
func (h *CourseHandler) ReorderModule(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "ReorderModule"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	moduleID, ok := uuidParam(w, r, logger, "module_id")
	if !ok {
		return
	}

	var req model.ReorderRequest
	if !decodeAndValidate(w, r, logger, &req) {
		return
	}
	if _, err := h.guard.module(r.Context(), actor, moduleID); err != nil {
		respondServiceError(w, logger, "Module access denied or not found", err)
		return
	}

	modules, report, err := h.courses.ReorderModule(r.Context(), moduleID, *req.Index)
	if err != nil {
		respondServiceError(w, logger, "Error reordering module in service", err)
		return
	}
	logger.Info("Module reordered successfully", slog.String("module_id", moduleID.String()), slog.Int("index", *req.Index))
	webutil.RespondWithJSON(w, http.StatusOK, modulesResponse{Modules: emptyIfNil(modules), Sync: report}, logger)
}

// SetModuleStatus は PUT /modules/{module_id}/status
func (h *CourseHandler) SetModuleStatus(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "SetModuleStatus"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	moduleID, ok := uuidParam(w, r, logger, "module_id")
	if !ok {
		return
	}

	var req model.SetModuleStatusRequest
	if !decodeAndValidate(w, r, logger, &req) {
		return
	}
	if _, err := h.guard.module(r.Context(), actor, moduleID); err != nil {
		respondServiceError(w, logger, "Module access denied or not found", err)
		return
	}

	module, report, err := h.courses.SetModuleStatus(r.Context(), moduleID, req.Status)
	if err != nil {
		respondServiceError(w, logger, "Error setting module status in service", err)
		return
	}
	logger.Info("Module status updated", slog.String("module_id", moduleID.String()), slog.String("status", req.Status))
	webutil.RespondWithJSON(w, http.StatusOK, moduleResponse{Module: module, Sync: report}, logger)
}

// GetOrderedExercises は GET /modules/{module_id}/exercises
func (h *CourseHandler) GetOrderedExercises(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetOrderedExercises"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	moduleID, ok := uuidParam(w, r, logger, "module_id")
	if !ok {
		return
	}
	if _, err := h.guard.module(r.Context(), actor, moduleID); err != nil {
		respondServiceError(w, logger, "Module access denied or not found", err)
		return
	}

	exercises, err := h.courses.GetOrderedExercises(r.Context(), moduleID)
	if err != nil {
		respondServiceError(w, logger, "Error listing exercises in service", err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, emptyIfNil(exercises), logger)
}

// AddExercise は POST /modules/{module_id}/exercises
func (h *CourseHandler) AddExercise(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "AddExercise"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	moduleID, ok := uuidParam(w, r, logger, "module_id")
	if !ok {
		return
	}

	var req model.AddExerciseRequest
	if !decodeAndValidate(w, r, logger, &req) {
		return
	}
	if _, err := h.guard.module(r.Context(), actor, moduleID); err != nil {
		respondServiceError(w, logger, "Module access denied or not found", err)
		return
	}

	exercise, report, err := h.courses.AddExercise(r.Context(), moduleID, &req)
	if err != nil {
		respondServiceError(w, logger, "Error adding exercise in service", err)
		return
	}
	logger.Info("Exercise added successfully", slog.String("exercise_id", exercise.ID.String()), slog.Int("students", report.Students))
	webutil.RespondWithJSON(w, http.StatusCreated, exerciseResponse{Exercise: exercise, Sync: report}, logger)
}

// GetExercise は GET /exercises/{exercise_id}
func (h *CourseHandler) GetExercise(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetExercise"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	exerciseID, ok := uuidParam(w, r, logger, "exercise_id")
	if !ok {
		return
	}

	exercise, err := h.guard.exercise(r.Context(), actor, exerciseID)
	if err != nil {
		respondServiceError(w, logger, "Exercise access denied or not found", err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, exercise, logger)
}

// RemoveExercise は DELETE /exercises/{exercise_id}
func (h *CourseHandler) RemoveExercise(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "RemoveExercise"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	exerciseID, ok := uuidParam(w, r, logger, "exercise_id")
	if !ok {
		return
	}
	if _, err := h.guard.exercise(r.Context(), actor, exerciseID); err != nil {
		respondServiceError(w, logger, "Exercise access denied or not found", err)
		return
	}

	report, err := h.courses.RemoveExercise(r.Context(), exerciseID)
	if err != nil {
		respondServiceError(w, logger, "Error removing exercise in service", err)
		return
	}
	logger.Info("Exercise removed successfully", slog.String("exercise_id", exerciseID.String()))
	webutil.RespondWithJSON(w, http.StatusOK, syncResponse{Sync: report}, logger)
}

// ReorderExercise は PUT /exercises/{exercise_id}/position
func (h *CourseHandler) ReorderExercise(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "ReorderExercise"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	exerciseID, ok := uuidParam(w, r, logger, "exercise_id")
	if !ok {
		return
	}

	var req model.ReorderRequest
	if !decodeAndValidate(w, r, logger, &req) {
		return
	}
	if _, err := h.guard.exercise(r.Context(), actor, exerciseID); err != nil {
		respondServiceError(w, logger, "Exercise access denied or not found", err)
		return
	}

	exercises, report, err := h.courses.ReorderExercise(r.Context(), exerciseID, *req.Index)
	if err != nil {
		respondServiceError(w, logger, "Error reordering exercise in service", err)
		return
	}
	logger.Info("Exercise reordered successfully", slog.String("exercise_id", exerciseID.String()), slog.Int("index", *req.Index))
	webutil.RespondWithJSON(w, http.StatusOK, exercisesResponse{Exercises: emptyIfNil(exercises), Sync: report}, logger)
}
