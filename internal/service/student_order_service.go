package service

import (
	"context"

	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StudentOrderService は受講者ごとのモジュールとエクササイズの並びを管理します。
type StudentOrderService interface {
	OrderedModules(ctx context.Context, db *gorm.DB, studentID, courseID uuid.UUID) ([]*model.StudentModule, error)
	WriteModuleOrder(ctx context.Context, db *gorm.DB, modules []*model.StudentModule, order []uuid.UUID) error
	HealModules(ctx context.Context, db *gorm.DB, studentID, courseID uuid.UUID) (bool, error)
	AppendModule(ctx context.Context, db *gorm.DB, module *model.StudentModule) error
	RemoveModule(ctx context.Context, db *gorm.DB, module *model.StudentModule) error

	OrderedExercises(ctx context.Context, db *gorm.DB, studentModuleID uuid.UUID) ([]*model.StudentExercise, error)
	AppendExercise(ctx context.Context, db *gorm.DB, exercise *model.StudentExercise) error
	RemoveExercise(ctx context.Context, db *gorm.DB, exercise *model.StudentExercise) error
	ReorderExercise(ctx context.Context, db *gorm.DB, exercise *model.StudentExercise, index int) (before, after []uuid.UUID, err error)
	WriteExerciseOrder(ctx context.Context, db *gorm.DB, studentModuleID uuid.UUID, exercises []*model.StudentExercise, order []uuid.UUID) error
	HealExercises(ctx context.Context, db *gorm.DB, studentModuleID uuid.UUID) (bool, error)
}

type studentOrderService struct {
	modules    chainList[*model.StudentModule]
	exercises  chainList[*model.StudentExercise]
	moduleRepo repository.StudentModuleRepository
}

func NewStudentOrderService(moduleRepo repository.StudentModuleRepository, exerciseRepo repository.StudentExerciseRepository) StudentOrderService {
	return &studentOrderService{
		modules:    newChainList(moduleRepo, "studentModules"),
		exercises:  newChainList(exerciseRepo, "studentExercises"),
		moduleRepo: moduleRepo,
	}
}

func (s *studentOrderService) OrderedModules(ctx context.Context, db *gorm.DB, studentID, courseID uuid.UUID) ([]*model.StudentModule, error) {
	return s.modules.Ordered(ctx, db, repository.StudentModuleScope(studentID, courseID))
}

func (s *studentOrderService) WriteModuleOrder(ctx context.Context, db *gorm.DB, modules []*model.StudentModule, order []uuid.UUID) error {
	return s.modules.WriteOrder(ctx, db, modules, order)
}

func (s *studentOrderService) HealModules(ctx context.Context, db *gorm.DB, studentID, courseID uuid.UUID) (bool, error) {
	return s.modules.Heal(ctx, db, repository.StudentModuleScope(studentID, courseID))
}

func (s *studentOrderService) AppendModule(ctx context.Context, db *gorm.DB, module *model.StudentModule) error {
	return s.modules.AppendToTail(ctx, db, repository.StudentModuleScope(module.StudentID, module.CourseID), module)
}

func (s *studentOrderService) RemoveModule(ctx context.Context, db *gorm.DB, module *model.StudentModule) error {
	return s.modules.RemoveAndSplice(ctx, db, repository.StudentModuleScope(module.StudentID, module.CourseID), module)
}

func (s *studentOrderService) OrderedExercises(ctx context.Context, db *gorm.DB, studentModuleID uuid.UUID) ([]*model.StudentExercise, error) {
	return s.exercises.Ordered(ctx, db, repository.StudentExerciseScope(studentModuleID))
}

// AppendExercise は頑健な末尾 (最も長い断片の末尾) に追加します。
func (s *studentOrderService) AppendExercise(ctx context.Context, db *gorm.DB, exercise *model.StudentExercise) error {
	if err := s.exercises.AppendToRobustTail(ctx, db, repository.StudentExerciseScope(exercise.StudentModuleID), exercise); err != nil {
		return err
	}
	return s.refresh(ctx, db, exercise.StudentModuleID)
}

func (s *studentOrderService) RemoveExercise(ctx context.Context, db *gorm.DB, exercise *model.StudentExercise) error {
	if err := s.exercises.RemoveAndSplice(ctx, db, repository.StudentExerciseScope(exercise.StudentModuleID), exercise); err != nil {
		return err
	}
	return s.refresh(ctx, db, exercise.StudentModuleID)
}

func (s *studentOrderService) ReorderExercise(ctx context.Context, db *gorm.DB, exercise *model.StudentExercise, index int) ([]uuid.UUID, []uuid.UUID, error) {
	before, after, err := s.exercises.ReorderByIndex(ctx, db, repository.StudentExerciseScope(exercise.StudentModuleID), exercise.ID, index)
	if err != nil {
		return nil, nil, err
	}
	return before, after, s.refresh(ctx, db, exercise.StudentModuleID)
}

func (s *studentOrderService) WriteExerciseOrder(ctx context.Context, db *gorm.DB, studentModuleID uuid.UUID, exercises []*model.StudentExercise, order []uuid.UUID) error {
	if err := s.exercises.WriteOrder(ctx, db, exercises, order); err != nil {
		return err
	}
	return s.refresh(ctx, db, studentModuleID)
}

func (s *studentOrderService) HealExercises(ctx context.Context, db *gorm.DB, studentModuleID uuid.UUID) (bool, error) {
	healed, err := s.exercises.Heal(ctx, db, repository.StudentExerciseScope(studentModuleID))
	if err != nil || !healed {
		return healed, err
	}
	return true, s.refresh(ctx, db, studentModuleID)
}

func (s *studentOrderService) refresh(ctx context.Context, db *gorm.DB, studentModuleID uuid.UUID) error {
	ordered, err := s.OrderedExercises(ctx, db, studentModuleID)
	if err != nil {
		return err
	}
	return s.moduleRepo.Update(ctx, db, studentModuleID, map[string]interface{}{
		"exercise_ids": exerciseIDs(ordered),
	})
}
