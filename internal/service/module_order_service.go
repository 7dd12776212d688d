package service

import (
	"context"

	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ModuleOrderService はコース内のモジュールの並びを管理します。
// 全メソッドは呼び出し側のトランザクション (db) 上で動きます。
type ModuleOrderService interface {
	Append(ctx context.Context, db *gorm.DB, module *model.CourseModule) error
	Remove(ctx context.Context, db *gorm.DB, module *model.CourseModule) error
	Reorder(ctx context.Context, db *gorm.DB, module *model.CourseModule, index int) ([]uuid.UUID, error)
	Ordered(ctx context.Context, db *gorm.DB, courseID uuid.UUID) ([]*model.CourseModule, error)
	Heal(ctx context.Context, db *gorm.DB, courseID uuid.UUID) (bool, error)
}

type moduleOrderService struct {
	chain chainList[*model.CourseModule]
}

func NewModuleOrderService(moduleRepo repository.CourseModuleRepository) ModuleOrderService {
	return &moduleOrderService{chain: newChainList(moduleRepo, "courseModules")}
}

func (s *moduleOrderService) Append(ctx context.Context, db *gorm.DB, module *model.CourseModule) error {
	return s.chain.AppendToTail(ctx, db, repository.CourseModuleScope(module.CourseID), module)
}

func (s *moduleOrderService) Remove(ctx context.Context, db *gorm.DB, module *model.CourseModule) error {
	return s.chain.RemoveAndSplice(ctx, db, repository.CourseModuleScope(module.CourseID), module)
}

func (s *moduleOrderService) Reorder(ctx context.Context, db *gorm.DB, module *model.CourseModule, index int) ([]uuid.UUID, error) {
	_, after, err := s.chain.ReorderByIndex(ctx, db, repository.CourseModuleScope(module.CourseID), module.ID, index)
	return after, err
}

func (s *moduleOrderService) Ordered(ctx context.Context, db *gorm.DB, courseID uuid.UUID) ([]*model.CourseModule, error) {
	return s.chain.Ordered(ctx, db, repository.CourseModuleScope(courseID))
}

func (s *moduleOrderService) Heal(ctx context.Context, db *gorm.DB, courseID uuid.UUID) (bool, error) {
	return s.chain.Heal(ctx, db, repository.CourseModuleScope(courseID))
}
