package handlers

import (
	"log/slog"

	"go_5_course_keep/internal/service"

	"github.com/go-chi/chi/v5"
)

// Services はハンドラが使うサービス一式です。
type Services struct {
	Courses     service.CourseService
	Enrollments service.EnrollmentService
	Progress    service.ProgressService
	Library     service.LibraryService
	Repair      service.ChainRepairService
}

// Handlers は全ハンドラをまとめたものです。
type Handlers struct {
	Course     *CourseHandler
	Enrollment *EnrollmentHandler
	Progress   *ProgressHandler
	Library    *LibraryHandler
	Repair     *RepairHandler
}

func NewHandlers(s Services, logger *slog.Logger) *Handlers {
	guard := newAccessGuard(s.Courses, s.Progress, s.Library)
	return &Handlers{
		Course:     NewCourseHandler(s.Courses, guard, logger),
		Enrollment: NewEnrollmentHandler(s.Enrollments, guard, logger),
		Progress:   NewProgressHandler(s.Progress, guard, logger),
		Library:    NewLibraryHandler(s.Library, guard, logger),
		Repair:     NewRepairHandler(s.Repair, logger),
	}
}

// Routes は認証済みルートを登録します。主体 (Actor) を入れるミドルウェアは呼び出し側で適用します。
func (h *Handlers) Routes(r chi.Router) {
	r.Route("/courses", func(r chi.Router) {
		r.Post("/", h.Course.CreateCourse)
		r.Get("/", h.Course.ListCourses)
		r.Route("/{course_id}", func(r chi.Router) {
			r.Get("/", h.Course.GetCourse)
			r.Get("/modules", h.Course.GetOrderedModules)
			r.Post("/modules", h.Course.AddModule)

			r.Post("/enrollments", h.Enrollment.Enroll)
			r.Get("/enrollments", h.Enrollment.ListEnrollments)
			r.Delete("/enrollments/{student_id}", h.Enrollment.Unenroll)
			r.Get("/enrollment", h.Enrollment.GetMyEnrollment)

			r.Get("/student-modules", h.Progress.GetStudentModules)
		})
	})

	r.Route("/modules/{module_id}", func(r chi.Router) {
		r.Get("/", h.Course.GetModule)
		r.Delete("/", h.Course.RemoveModule)
		r.Put("/position", h.Course.ReorderModule)
		r.Put("/status", h.Course.SetModuleStatus)
		r.Get("/exercises", h.Course.GetOrderedExercises)
		r.Post("/exercises", h.Course.AddExercise)
	})

	r.Route("/exercises/{exercise_id}", func(r chi.Router) {
		r.Get("/", h.Course.GetExercise)
		r.Delete("/", h.Course.RemoveExercise)
		r.Put("/position", h.Course.ReorderExercise)
	})

	r.Route("/enrollments/{enrollment_id}", func(r chi.Router) {
		r.Get("/", h.Enrollment.GetEnrollment)
		r.Post("/recompute", h.Enrollment.RecomputeProgress)
	})

	r.Route("/student-modules/{student_module_id}", func(r chi.Router) {
		r.Get("/exercises", h.Progress.GetStudentExercises)
		r.Post("/exercises", h.Progress.AddStudentExercise)
	})

	r.Route("/student-exercises/{student_exercise_id}", func(r chi.Router) {
		r.Get("/", h.Progress.GetStudentExercise)
		r.Delete("/", h.Progress.RemoveStudentExercise)
		r.Post("/complete", h.Progress.CompleteExercise)
		r.Post("/uncomplete", h.Progress.UncompleteExercise)
		r.Put("/status", h.Progress.SetExerciseStatus)
		r.Put("/position", h.Progress.ReorderStudentExercise)
	})

	r.Route("/library", func(r chi.Router) {
		r.Post("/modules", h.Library.CreateModule)
		r.Get("/modules", h.Library.ListModules)
		r.Get("/modules/{library_module_id}", h.Library.GetModule)
		r.Get("/modules/{library_module_id}/exercises", h.Library.GetOrderedExercises)
		r.Post("/modules/{library_module_id}/exercises", h.Library.AddExercise)
		r.Delete("/exercises/{library_exercise_id}", h.Library.RemoveExercise)
		r.Put("/exercises/{library_exercise_id}/position", h.Library.ReorderExercise)
	})

	r.Post("/maintenance/repair", h.Repair.RepairAll)
}
