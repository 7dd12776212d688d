// internal/service/progress_service.go
package service

import (
	"context"
	"errors"

	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/ordering"
	"go_5_course_keep/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProgressService は受講者層の操作 (状態変更・アドホックなエクササイズ・並べ替え) を提供します。
type ProgressService interface {
	GetStudentModule(ctx context.Context, studentModuleID uuid.UUID) (*model.StudentModule, error)
	GetStudentExercise(ctx context.Context, studentExerciseID uuid.UUID) (*model.StudentExercise, error)
	GetOrderedStudentModules(ctx context.Context, studentID, courseID uuid.UUID) ([]*model.StudentModule, error)
	GetOrderedStudentExercises(ctx context.Context, studentModuleID uuid.UUID) ([]*model.StudentExercise, error)
	SetExerciseStatus(ctx context.Context, studentExerciseID uuid.UUID, status string, score *float64) (*model.StudentExercise, error)
	CompleteExercise(ctx context.Context, studentExerciseID uuid.UUID, score *float64) (*model.StudentExercise, error)
	UncompleteExercise(ctx context.Context, studentExerciseID uuid.UUID) (*model.StudentExercise, error)
	ReorderStudentExercise(ctx context.Context, studentExerciseID uuid.UUID, index int) ([]*model.StudentExercise, error)
	AddStudentExercise(ctx context.Context, studentModuleID uuid.UUID, req *model.AddExerciseRequest) (*model.StudentExercise, error)
	RemoveStudentExercise(ctx context.Context, studentExerciseID uuid.UUID) error
}

type progressService struct {
	db           *gorm.DB
	repos        repository.Repositories
	studentOrder StudentOrderService
	rules        *progressRules
	notifier     Notifier
}

func NewProgressService(db *gorm.DB, repos repository.Repositories, notifier Notifier) ProgressService {
	return &progressService{
		db:           db,
		repos:        repos,
		studentOrder: NewStudentOrderService(repos.StudentModules, repos.StudentExercises),
		rules:        newProgressRules(repos),
		notifier:     notifier,
	}
}

func (s *progressService) GetStudentModule(ctx context.Context, studentModuleID uuid.UUID) (*model.StudentModule, error) {
	return s.repos.StudentModules.FindByID(ctx, s.db, studentModuleID)
}

func (s *progressService) GetStudentExercise(ctx context.Context, studentExerciseID uuid.UUID) (*model.StudentExercise, error) {
	return s.repos.StudentExercises.FindByID(ctx, s.db, studentExerciseID)
}

func (s *progressService) GetOrderedStudentModules(ctx context.Context, studentID, courseID uuid.UUID) ([]*model.StudentModule, error) {
	return s.studentOrder.OrderedModules(ctx, s.db, studentID, courseID)
}

func (s *progressService) GetOrderedStudentExercises(ctx context.Context, studentModuleID uuid.UUID) ([]*model.StudentExercise, error) {
	if _, err := s.repos.StudentModules.FindByID(ctx, s.db, studentModuleID); err != nil {
		return nil, err
	}
	return s.studentOrder.OrderedExercises(ctx, s.db, studentModuleID)
}

// SetExerciseStatus は未知の状態文字列を変換せずに拒否します。
func (s *progressService) SetExerciseStatus(ctx context.Context, studentExerciseID uuid.UUID, status string, score *float64) (*model.StudentExercise, error) {
	parsed, err := model.ParseExerciseStatus(status)
	if err != nil {
		middleware.GetLogger(ctx).Warn("Rejected exercise status", "status", status, "student_exercise_id", studentExerciseID)
		return nil, err
	}
	return s.apply(ctx, "SetExerciseStatus", studentExerciseID, parsed, score)
}

// CompleteExercise は得点があれば reviewed (採点済み)、無ければ completed にします。
func (s *progressService) CompleteExercise(ctx context.Context, studentExerciseID uuid.UUID, score *float64) (*model.StudentExercise, error) {
	status := model.ExerciseStatusCompleted
	if score != nil {
		status = model.ExerciseStatusReviewed
	}
	return s.apply(ctx, "CompleteExercise", studentExerciseID, status, score)
}

func (s *progressService) UncompleteExercise(ctx context.Context, studentExerciseID uuid.UUID) (*model.StudentExercise, error) {
	return s.apply(ctx, "UncompleteExercise", studentExerciseID, model.ExerciseStatusPending, nil)
}

func (s *progressService) apply(ctx context.Context, method string, studentExerciseID uuid.UUID, status model.ExerciseStatus, score *float64) (*model.StudentExercise, error) {
	logger := middleware.GetLogger(ctx).With("service", "ProgressService", "method", method, "student_exercise_id", studentExerciseID)

	var (
		updated *model.StudentExercise
		events  []*model.Event
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exercise, err := s.repos.StudentExercises.FindByID(ctx, tx, studentExerciseID)
		if err != nil {
			return err
		}
		events, err = s.rules.applyStatus(ctx, tx, exercise, status, score)
		if err != nil {
			return err
		}
		updated, err = s.repos.StudentExercises.FindByID(ctx, tx, studentExerciseID)
		return err
	})
	if err != nil {
		return nil, publicError(logger, "Failed to apply exercise status", err)
	}

	emit(ctx, s.notifier, events)
	logger.Info("Exercise status changed", "status", updated.Status)
	return updated, nil
}

// ReorderStudentExercise は受講者のチェーン内で並べ替えます。
// 隣への移動で、動かしたものが ready かつ移動先にいたものが pending なら状態を入れ替えます。
func (s *progressService) ReorderStudentExercise(ctx context.Context, studentExerciseID uuid.UUID, index int) ([]*model.StudentExercise, error) {
	logger := middleware.GetLogger(ctx).With("service", "ProgressService", "method", "ReorderStudentExercise", "student_exercise_id", studentExerciseID)

	var (
		ordered []*model.StudentExercise
		swapped bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exercise, err := s.repos.StudentExercises.FindByID(ctx, tx, studentExerciseID)
		if err != nil {
			return err
		}
		siblings, err := s.studentOrder.OrderedExercises(ctx, tx, exercise.StudentModuleID)
		if err != nil {
			return err
		}
		before, after, err := s.studentOrder.ReorderExercise(ctx, tx, exercise, index)
		if err != nil {
			return err
		}

		if other, ok := swapTarget(before, after, studentExerciseID); ok {
			occupant := findExercise(siblings, other)
			if exercise.Status == model.ExerciseStatusReady && occupant != nil && occupant.Status == model.ExerciseStatusPending {
				if err := s.rules.setStatus(ctx, tx, exercise.ID, model.ExerciseStatusPending); err != nil {
					return err
				}
				if err := s.rules.setStatus(ctx, tx, occupant.ID, model.ExerciseStatusReady); err != nil {
					return err
				}
				swapped = true
			}
		}

		module, err := s.repos.StudentModules.FindByID(ctx, tx, exercise.StudentModuleID)
		if err != nil {
			return err
		}
		if _, err := s.rules.updateEnrollmentProgress(ctx, tx, module.EnrollmentID); err != nil {
			return err
		}
		ordered, err = s.studentOrder.OrderedExercises(ctx, tx, exercise.StudentModuleID)
		return err
	})
	if err != nil {
		return nil, publicError(logger, "Failed to reorder student exercise", err)
	}

	logger.Info("Student exercise reordered", "index", index, "status_swapped", swapped)
	return ordered, nil
}

// swapTarget は距離1の移動なら、移動前に移動先の位置にいたノードを返します。
func swapTarget(before, after []uuid.UUID, id uuid.UUID) (uuid.UUID, bool) {
	from, to := ordering.IndexOf(before, id), ordering.IndexOf(after, id)
	if from < 0 || to < 0 || (to-from != 1 && from-to != 1) {
		return uuid.Nil, false
	}
	return before[to], true
}

func findExercise(exercises []*model.StudentExercise, id uuid.UUID) *model.StudentExercise {
	for _, se := range exercises {
		if se.ID == id {
			return se
		}
	}
	return nil
}

// AddStudentExercise は受講者独自のエクササイズを頑健な末尾に追加します。
func (s *progressService) AddStudentExercise(ctx context.Context, studentModuleID uuid.UUID, req *model.AddExerciseRequest) (*model.StudentExercise, error) {
	logger := middleware.GetLogger(ctx).With("service", "ProgressService", "method", "AddStudentExercise", "student_module_id", studentModuleID)

	var created *model.StudentExercise
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		module, err := s.repos.StudentModules.FindByID(ctx, tx, studentModuleID)
		if err != nil {
			return err
		}
		exercise := &model.StudentExercise{
			ID:              uuid.New(),
			StudentID:       module.StudentID,
			CourseID:        module.CourseID,
			StudentModuleID: module.ID,
			ExerciseContent: contentFromRequest(req),
			Status:          model.ExerciseStatusPending,
			Scores:          datatypes.JSONSlice[float64]{},
			ChainLinks:      model.ChainLinks{Visible: true},
		}
		if err := s.repos.StudentExercises.Create(ctx, tx, exercise); err != nil {
			return err
		}
		if err := s.studentOrder.AppendExercise(ctx, tx, exercise); err != nil {
			return err
		}

		siblings, err := s.studentOrder.OrderedExercises(ctx, tx, module.ID)
		if err != nil {
			return err
		}
		if pos := ordering.IndexOf(ordering.Keys(siblings), exercise.ID); pos >= 0 {
			if status := positionalStatus(module, siblings, pos); status != exercise.Status {
				if err := s.rules.setStatus(ctx, tx, exercise.ID, status); err != nil {
					return err
				}
			}
		}
		if _, err := s.rules.updateEnrollmentProgress(ctx, tx, module.EnrollmentID); err != nil {
			return err
		}
		created, err = s.repos.StudentExercises.FindByID(ctx, tx, exercise.ID)
		return err
	})
	if err != nil {
		return nil, publicError(logger, "Failed to add student exercise", err)
	}

	logger.Info("Ad-hoc exercise added", "student_exercise_id", created.ID, "status", created.Status)
	return created, nil
}

// RemoveStudentExercise で消せるのは受講者独自のエクササイズだけです。
// コース由来のものは次の同期で元に戻せないため拒否します。
func (s *progressService) RemoveStudentExercise(ctx context.Context, studentExerciseID uuid.UUID) error {
	logger := middleware.GetLogger(ctx).With("service", "ProgressService", "method", "RemoveStudentExercise", "student_exercise_id", studentExerciseID)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exercise, err := s.repos.StudentExercises.FindByID(ctx, tx, studentExerciseID)
		if err != nil {
			return err
		}
		if !exercise.IsAdHoc() {
			return model.NewAppError("COURSE_EXERCISE", "コースのエクササイズは削除できません", "", model.ErrForbidden)
		}
		if err := s.studentOrder.RemoveExercise(ctx, tx, exercise); err != nil {
			return err
		}
		module, err := s.repos.StudentModules.FindByID(ctx, tx, exercise.StudentModuleID)
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = s.rules.updateEnrollmentProgress(ctx, tx, module.EnrollmentID)
		return err
	})
	if err != nil {
		return publicError(logger, "Failed to remove student exercise", err)
	}
	logger.Info("Ad-hoc exercise removed")
	return nil
}
