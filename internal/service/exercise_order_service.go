package service

import (
	"context"

	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/ordering"
	"go_5_course_keep/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExerciseOrderService はコースモジュール内のエクササイズの並びを管理します。
// 変更のたびにモジュールの exercise_ids キャッシュをチェーン順で更新します。
type ExerciseOrderService interface {
	Append(ctx context.Context, db *gorm.DB, exercise *model.CourseExercise) error
	Remove(ctx context.Context, db *gorm.DB, exercise *model.CourseExercise) error
	Reorder(ctx context.Context, db *gorm.DB, exercise *model.CourseExercise, index int) ([]uuid.UUID, error)
	Ordered(ctx context.Context, db *gorm.DB, courseModuleID uuid.UUID) ([]*model.CourseExercise, error)
	Heal(ctx context.Context, db *gorm.DB, courseModuleID uuid.UUID) (bool, error)
}

type exerciseOrderService struct {
	chain      chainList[*model.CourseExercise]
	moduleRepo repository.CourseModuleRepository
}

func NewExerciseOrderService(exerciseRepo repository.CourseExerciseRepository, moduleRepo repository.CourseModuleRepository) ExerciseOrderService {
	return &exerciseOrderService{
		chain:      newChainList(exerciseRepo, "courseExercises"),
		moduleRepo: moduleRepo,
	}
}

func (s *exerciseOrderService) Append(ctx context.Context, db *gorm.DB, exercise *model.CourseExercise) error {
	if err := s.chain.AppendToTail(ctx, db, repository.CourseExerciseScope(exercise.CourseModuleID), exercise); err != nil {
		return err
	}
	return s.refresh(ctx, db, exercise.CourseModuleID)
}

func (s *exerciseOrderService) Remove(ctx context.Context, db *gorm.DB, exercise *model.CourseExercise) error {
	if err := s.chain.RemoveAndSplice(ctx, db, repository.CourseExerciseScope(exercise.CourseModuleID), exercise); err != nil {
		return err
	}
	return s.refresh(ctx, db, exercise.CourseModuleID)
}

func (s *exerciseOrderService) Reorder(ctx context.Context, db *gorm.DB, exercise *model.CourseExercise, index int) ([]uuid.UUID, error) {
	_, after, err := s.chain.ReorderByIndex(ctx, db, repository.CourseExerciseScope(exercise.CourseModuleID), exercise.ID, index)
	if err != nil {
		return nil, err
	}
	return after, s.refresh(ctx, db, exercise.CourseModuleID)
}

func (s *exerciseOrderService) Ordered(ctx context.Context, db *gorm.DB, courseModuleID uuid.UUID) ([]*model.CourseExercise, error) {
	return s.chain.Ordered(ctx, db, repository.CourseExerciseScope(courseModuleID))
}

func (s *exerciseOrderService) Heal(ctx context.Context, db *gorm.DB, courseModuleID uuid.UUID) (bool, error) {
	healed, err := s.chain.Heal(ctx, db, repository.CourseExerciseScope(courseModuleID))
	if err != nil || !healed {
		return healed, err
	}
	return true, s.refresh(ctx, db, courseModuleID)
}

func (s *exerciseOrderService) refresh(ctx context.Context, db *gorm.DB, courseModuleID uuid.UUID) error {
	ordered, err := s.Ordered(ctx, db, courseModuleID)
	if err != nil {
		return err
	}
	return s.moduleRepo.Update(ctx, db, courseModuleID, map[string]interface{}{
		"exercise_ids": exerciseIDs(ordered),
	})
}

// exerciseIDs はチェーン順の ID を JSON 配列カラム用に変換します。
func exerciseIDs[T ordering.Node](ordered []T) datatypes.JSONSlice[uuid.UUID] {
	return datatypes.JSONSlice[uuid.UUID](ordering.Keys(ordered))
}
