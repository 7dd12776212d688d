package handlers

import (
	"log/slog"
	"net/http"

	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/service"
	"go_5_course_keep/internal/webutil"
)

// LibraryHandler はテンプレート/教師ライブラリの API です (教師のみ)。
type LibraryHandler struct {
	library service.LibraryService
	guard   *accessGuard
	logger  *slog.Logger
}

func NewLibraryHandler(library service.LibraryService, guard *accessGuard, logger *slog.Logger) *LibraryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LibraryHandler{library: library, guard: guard, logger: logger}
}

// CreateModule は POST /library/modules
func (h *LibraryHandler) CreateModule(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "CreateLibraryModule"))
	actor, ok := actorFrom(w, r, logger)
	if !ok || !requireTeacher(w, logger, actor) {
		return
	}

	var req model.CreateLibraryModuleRequest
	if !decodeAndValidate(w, r, logger, &req) {
		return
	}

	module, err := h.library.CreateModule(r.Context(), actor.ID, &req)
	if err != nil {
		respondServiceError(w, logger, "Error creating library module in service", err)
		return
	}
	logger.Info("Library module created", slog.String("module_id", module.ID.String()), slog.String("tier", string(module.Tier)))
	webutil.RespondWithJSON(w, http.StatusCreated, module, logger)
}

// ListModules は GET /library/modules?tier=template|teacher (既定は teacher = 自分のライブラリ)
func (h *LibraryHandler) ListModules(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "ListLibraryModules"))
	actor, ok := actorFrom(w, r, logger)
	if !ok || !requireTeacher(w, logger, actor) {
		return
	}

	tier := model.LibraryTier(r.URL.Query().Get("tier"))
	switch tier {
	case "":
		tier = model.LibraryTierTeacher
	case model.LibraryTierTemplate, model.LibraryTierTeacher:
	default:
		appErr := model.NewAppError("INVALID_QUERY_PARAM", "tierはtemplate, teacherのいずれかを指定してください。", "tier", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}

	modules, err := h.library.ListModules(r.Context(), tier, actor.ID)
	if err != nil {
		respondServiceError(w, logger, "Error listing library modules in service", err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, emptyIfNil(modules), logger)
}

// GetModule は GET /library/modules/{library_module_id}
func (h *LibraryHandler) GetModule(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetLibraryModule"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	moduleID, ok := uuidParam(w, r, logger, "library_module_id")
	if !ok {
		return
	}

	module, err := h.guard.libraryModule(r.Context(), actor, moduleID)
	if err != nil {
		respondServiceError(w, logger, "Library module access denied or not found", err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, module, logger)
}

// GetOrderedExercises は GET /library/modules/{library_module_id}/exercises
func (h *LibraryHandler) GetOrderedExercises(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetOrderedLibraryExercises"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	moduleID, ok := uuidParam(w, r, logger, "library_module_id")
	if !ok {
		return
	}
	if _, err := h.guard.libraryModule(r.Context(), actor, moduleID); err != nil {
		respondServiceError(w, logger, "Library module access denied or not found", err)
		return
	}

	exercises, err := h.library.GetOrderedExercises(r.Context(), moduleID)
	if err != nil {
		respondServiceError(w, logger, "Error listing library exercises in service", err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, emptyIfNil(exercises), logger)
}

// AddExercise は POST /library/modules/{library_module_id}/exercises
func (h *LibraryHandler) AddExercise(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "AddLibraryExercise"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	moduleID, ok := uuidParam(w, r, logger, "library_module_id")
	if !ok {
		return
	}

	var req model.AddExerciseRequest
	if !decodeAndValidate(w, r, logger, &req) {
		return
	}
	if _, err := h.guard.libraryModule(r.Context(), actor, moduleID); err != nil {
		respondServiceError(w, logger, "Library module access denied or not found", err)
		return
	}

	exercise, err := h.library.AddExercise(r.Context(), moduleID, &req)
	if err != nil {
		respondServiceError(w, logger, "Error adding library exercise in service", err)
		return
	}
	logger.Info("Library exercise added", slog.String("exercise_id", exercise.ID.String()))
	webutil.RespondWithJSON(w, http.StatusCreated, exercise, logger)
}

// RemoveExercise は DELETE /library/exercises/{library_exercise_id}
func (h *LibraryHandler) RemoveExercise(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "RemoveLibraryExercise"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	exerciseID, ok := uuidParam(w, r, logger, "library_exercise_id")
	if !ok {
		return
	}
	if _, err := h.guard.libraryExercise(r.Context(), actor, exerciseID); err != nil {
		respondServiceError(w, logger, "Library exercise access denied or not found", err)
		return
	}

	if err := h.library.RemoveExercise(r.Context(), exerciseID); err != nil {
		respondServiceError(w, logger, "Error removing library exercise in service", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReorderExercise は PUT /library/exercises/{library_exercise_id}/position
func (h *LibraryHandler) ReorderExercise(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "ReorderLibraryExercise"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	exerciseID, ok := uuidParam(w, r, logger, "library_exercise_id")
	if !ok {
		return
	}

	var req model.ReorderRequest
	if !decodeAndValidate(w, r, logger, &req) {
		return
	}
	if _, err := h.guard.libraryExercise(r.Context(), actor, exerciseID); err != nil {
		respondServiceError(w, logger, "Library exercise access denied or not found", err)
		return
	}

	exercises, err := h.library.ReorderExercise(r.Context(), exerciseID, *req.Index)
	if err != nil {
		respondServiceError(w, logger, "Error reordering library exercise in service", err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, emptyIfNil(exercises), logger)
}
