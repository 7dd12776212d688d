package repository

import (
	"context"
	"errors"
	"fmt"

	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/ordering"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Scope はチェーンの範囲を決める列条件です (例: {"course_id": id})。
type Scope map[string]interface{}

// ChainRepository は prev/next を持つエンティティの永続化です。
// 読み取りは常に visible=true のものだけを対象にします。
type ChainRepository[T ordering.Node] interface {
	Create(ctx context.Context, db *gorm.DB, entity T) error
	FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (T, error)
	FindOne(ctx context.Context, db *gorm.DB, scope Scope) (T, error)
	FindVisibleInScope(ctx context.Context, db *gorm.DB, scope Scope) ([]T, error)
	Update(ctx context.Context, db *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	UpdateLinks(ctx context.Context, db *gorm.DB, id uuid.UUID, prev, next *uuid.UUID) error
	Hide(ctx context.Context, db *gorm.DB, id uuid.UUID) error
	HideInScope(ctx context.Context, db *gorm.DB, scope Scope) (int64, error)
	HardDelete(ctx context.Context, db *gorm.DB, id uuid.UUID) error
}

type gormChainRepository[E any, T interface {
	*E
	ordering.Node
}] struct {
	name string
}

// NewGormChainRepository は E のテーブルに対するチェーンリポジトリを作ります。
func NewGormChainRepository[E any, T interface {
	*E
	ordering.Node
}](name string) ChainRepository[T] {
	return &gormChainRepository[E, T]{name: name}
}

func (r *gormChainRepository[E, T]) Create(ctx context.Context, db *gorm.DB, entity T) error {
	logger := middleware.GetLogger(ctx)
	if err := db.WithContext(ctx).Create(entity).Error; err != nil {
		logger.Error("Error creating chain node in DB", "error", err, "repository", r.name, "id", entity.OrderKey())
		return fmt.Errorf("%s.Create: %w", r.name, err)
	}
	return nil
}

func (r *gormChainRepository[E, T]) FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (T, error) {
	return r.FindOne(ctx, db, Scope{"id": id})
}

func (r *gormChainRepository[E, T]) FindOne(ctx context.Context, db *gorm.DB, scope Scope) (T, error) {
	logger := middleware.GetLogger(ctx)
	var entity E
	result := db.WithContext(ctx).
		Where(map[string]interface{}(scope)).
		Where("visible = ?", true).
		Order("created_at ASC").
		First(&entity)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		logger.Error("Error finding chain node in DB", "error", result.Error, "repository", r.name, "scope", scope)
		return nil, fmt.Errorf("%s.FindOne: %w", r.name, result.Error)
	}
	return T(&entity), nil
}

func (r *gormChainRepository[E, T]) FindVisibleInScope(ctx context.Context, db *gorm.DB, scope Scope) ([]T, error) {
	logger := middleware.GetLogger(ctx)
	var rows []T
	result := db.WithContext(ctx).
		Where(map[string]interface{}(scope)).
		Where("visible = ?", true).
		Order("created_at ASC").
		Find(&rows)
	if result.Error != nil {
		logger.Error("Error loading chain scope from DB", "error", result.Error, "repository", r.name, "scope", scope)
		return nil, fmt.Errorf("%s.FindVisibleInScope: %w", r.name, result.Error)
	}
	return rows, nil
}

func (r *gormChainRepository[E, T]) Update(ctx context.Context, db *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	logger := middleware.GetLogger(ctx)
	if len(updates) == 0 {
		return nil
	}
	result := db.WithContext(ctx).Model(new(E)).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		logger.Error("Error updating chain node in DB", "error", result.Error, "repository", r.name, "id", id)
		return fmt.Errorf("%s.Update: %w", r.name, result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *gormChainRepository[E, T]) UpdateLinks(ctx context.Context, db *gorm.DB, id uuid.UUID, prev, next *uuid.UUID) error {
	return r.Update(ctx, db, id, map[string]interface{}{
		"previous_id": nullableID(prev),
		"next_id":     nullableID(next),
	})
}

// Hide は論理削除します。ポインタの付け替えは呼び出し側 (splice) の責務です。
func (r *gormChainRepository[E, T]) Hide(ctx context.Context, db *gorm.DB, id uuid.UUID) error {
	return r.Update(ctx, db, id, map[string]interface{}{
		"visible":     false,
		"previous_id": nil,
		"next_id":     nil,
	})
}

// HideInScope はスコープ内の可視ノードをまとめて非表示にします (チェーンごと捨てる場合)。
func (r *gormChainRepository[E, T]) HideInScope(ctx context.Context, db *gorm.DB, scope Scope) (int64, error) {
	logger := middleware.GetLogger(ctx)
	result := db.WithContext(ctx).Model(new(E)).
		Where(map[string]interface{}(scope)).
		Where("visible = ?", true).
		Updates(map[string]interface{}{
			"visible":     false,
			"previous_id": nil,
			"next_id":     nil,
		})
	if result.Error != nil {
		logger.Error("Error hiding chain scope", "error", result.Error, "repository", r.name, "scope", scope)
		return 0, fmt.Errorf("%s.HideInScope: %w", r.name, result.Error)
	}
	return result.RowsAffected, nil
}

// HardDelete は完全重複の修復にだけ使います。
func (r *gormChainRepository[E, T]) HardDelete(ctx context.Context, db *gorm.DB, id uuid.UUID) error {
	logger := middleware.GetLogger(ctx)
	result := db.WithContext(ctx).Where("id = ?", id).Delete(new(E))
	if result.Error != nil {
		logger.Error("Error hard deleting chain node", "error", result.Error, "repository", r.name, "id", id)
		return fmt.Errorf("%s.HardDelete: %w", r.name, result.Error)
	}
	return nil
}

func nullableID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}
