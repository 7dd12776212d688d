package handlers

import (
	"log/slog"
	"net/http"

	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/service"
	"go_5_course_keep/internal/webutil"
)

type EnrollmentHandler struct {
	enrollments service.EnrollmentService
	guard       *accessGuard
	logger      *slog.Logger
}

func NewEnrollmentHandler(enrollments service.EnrollmentService, guard *accessGuard, logger *slog.Logger) *EnrollmentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnrollmentHandler{enrollments: enrollments, guard: guard, logger: logger}
}

// Enroll は POST /courses/{course_id}/enrollments (コースの教師が受講者を登録する)
func (h *EnrollmentHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "Enroll"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	courseID, ok := uuidParam(w, r, logger, "course_id")
	if !ok {
		return
	}

	var req model.EnrollRequest
	if !decodeAndValidate(w, r, logger, &req) {
		return
	}
	if _, err := h.guard.course(r.Context(), actor, courseID); err != nil {
		respondServiceError(w, logger, "Course access denied or not found", err)
		return
	}

	enrollment, err := h.enrollments.Enroll(r.Context(), courseID, req.StudentID)
	if err != nil {
		respondServiceError(w, logger, "Error enrolling student in service", err)
		return
	}
	logger.Info("Student enrolled successfully", slog.String("enrollment_id", enrollment.ID.String()))
	webutil.RespondWithJSON(w, http.StatusCreated, enrollment, logger)
}

// ListEnrollments は GET /courses/{course_id}/enrollments (active のみ)
func (h *EnrollmentHandler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "ListEnrollments"))
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

	enrollments, err := h.enrollments.ListEnrollments(r.Context(), courseID)
	if err != nil {
		respondServiceError(w, logger, "Error listing enrollments in service", err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, emptyIfNil(enrollments), logger)
}

// Unenroll は DELETE /courses/{course_id}/enrollments/{student_id}
func (h *EnrollmentHandler) Unenroll(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "Unenroll"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	courseID, ok := uuidParam(w, r, logger, "course_id")
	if !ok {
		return
	}
	studentID, ok := uuidParam(w, r, logger, "student_id")
	if !ok {
		return
	}
	if _, err := h.guard.course(r.Context(), actor, courseID); err != nil {
		respondServiceError(w, logger, "Course access denied or not found", err)
		return
	}

	if err := h.enrollments.Unenroll(r.Context(), courseID, studentID); err != nil {
		respondServiceError(w, logger, "Error unenrolling student in service", err)
		return
	}
	logger.Info("Student unenrolled successfully", slog.String("student_id", studentID.String()))
	w.WriteHeader(http.StatusNoContent)
}

// GetMyEnrollment は GET /courses/{course_id}/enrollment (受講者本人の active な登録)
func (h *EnrollmentHandler) GetMyEnrollment(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetMyEnrollment"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	courseID, ok := uuidParam(w, r, logger, "course_id")
	if !ok {
		return
	}

	enrollment, err := h.enrollments.GetActiveEnrollment(r.Context(), courseID, actor.ID)
	if err != nil {
		respondServiceError(w, logger, "Active enrollment not found", err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, enrollment, logger)
}

// GetEnrollment は GET /enrollments/{enrollment_id}
func (h *EnrollmentHandler) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetEnrollment"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	enrollmentID, ok := uuidParam(w, r, logger, "enrollment_id")
	if !ok {
		return
	}

	enrollment, err := h.enrollments.GetEnrollment(r.Context(), enrollmentID)
	if err != nil {
		respondServiceError(w, logger, "Error getting enrollment from service", err)
		return
	}
	if err := h.guard.student(r.Context(), actor, enrollment.StudentID, enrollment.CourseID); err != nil {
		respondServiceError(w, logger, "Enrollment access denied", err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, enrollment, logger)
}

// RecomputeProgress は POST /enrollments/{enrollment_id}/recompute
func (h *EnrollmentHandler) RecomputeProgress(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "RecomputeProgress"))
	actor, ok := actorFrom(w, r, logger)
	if !ok {
		return
	}
	enrollmentID, ok := uuidParam(w, r, logger, "enrollment_id")
	if !ok {
		return
	}

	enrollment, err := h.enrollments.GetEnrollment(r.Context(), enrollmentID)
	if err != nil {
		respondServiceError(w, logger, "Error getting enrollment from service", err)
		return
	}
	if err := h.guard.student(r.Context(), actor, enrollment.StudentID, enrollment.CourseID); err != nil {
		respondServiceError(w, logger, "Enrollment access denied", err)
		return
	}

	enrollment, err = h.enrollments.RecomputeProgress(r.Context(), enrollmentID)
	if err != nil {
		respondServiceError(w, logger, "Error recomputing progress in service", err)
		return
	}
	logger.Info("Enrollment progress recomputed", slog.String("enrollment_id", enrollmentID.String()), slog.Int("progress", enrollment.Progress))
	webutil.RespondWithJSON(w, http.StatusOK, enrollment, logger)
}
