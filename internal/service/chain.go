package service

import (
	"context"
	"fmt"

	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/ordering"
	"go_5_course_keep/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// chainList は1つのスコープ内の連結リスト操作です。
// 書き込みは常に「望ましい並び」を計算してから差分だけを書きます。
type chainList[T ordering.Node] struct {
	repo repository.ChainRepository[T]
	name string
}

func newChainList[T ordering.Node](repo repository.ChainRepository[T], name string) chainList[T] {
	return chainList[T]{repo: repo, name: name}
}

// Ordered はスコープの全順序を返します。チェーンが壊れていても必ず全ノードを返します。
func (c chainList[T]) Ordered(ctx context.Context, db *gorm.DB, scope repository.Scope) ([]T, error) {
	nodes, err := c.repo.FindVisibleInScope(ctx, db, scope)
	if err != nil {
		return nil, err
	}
	return ordering.Sequence(nodes), nil
}

// AppendToTail は作成済みのノードを末尾につなぎます。
func (c chainList[T]) AppendToTail(ctx context.Context, db *gorm.DB, scope repository.Scope, node T) error {
	return c.appendAfter(ctx, db, scope, node, ordering.Tail[T])
}

// AppendToRobustTail は断片化したチェーンでも最も長い断片の末尾へつなぎます。
func (c chainList[T]) AppendToRobustTail(ctx context.Context, db *gorm.DB, scope repository.Scope, node T) error {
	return c.appendAfter(ctx, db, scope, node, ordering.RobustTail[T])
}

func (c chainList[T]) appendAfter(ctx context.Context, db *gorm.DB, scope repository.Scope, node T, pickTail func([]T) (T, bool)) error {
	nodes, err := c.repo.FindVisibleInScope(ctx, db, scope)
	if err != nil {
		return err
	}
	id := node.OrderKey()
	others := make([]T, 0, len(nodes))
	for _, n := range nodes {
		if n.OrderKey() != id {
			others = append(others, n)
		}
	}

	order := ordering.Keys(ordering.Sequence(others))
	at := len(order)
	if tail, ok := pickTail(others); ok {
		at = ordering.IndexOf(order, tail.OrderKey()) + 1
	}
	order = ordering.Move(append(order, id), id, at)

	if !ordering.IsHealthy(others) {
		middleware.GetLogger(ctx).Warn("Chain unhealthy on append, rewriting scope",
			"chain", c.name, "scope", scope, "size", len(others))
	}
	return c.write(ctx, db, append(others, node), order)
}

// RemoveAndSplice は前後のノードをつなぎ直してからノードを非表示にします。
func (c chainList[T]) RemoveAndSplice(ctx context.Context, db *gorm.DB, scope repository.Scope, node T) error {
	nodes, err := c.repo.FindVisibleInScope(ctx, db, scope)
	if err != nil {
		return err
	}
	id := node.OrderKey()
	index := make(map[uuid.UUID]T, len(nodes))
	for _, n := range nodes {
		index[n.OrderKey()] = n
	}

	prevID, nextID := node.Previous(), node.Next()
	if prevID != nil && *prevID != id {
		if prev, ok := index[*prevID]; ok {
			if err := c.repo.UpdateLinks(ctx, db, *prevID, prev.Previous(), nextID); err != nil {
				return err
			}
		}
	}
	if nextID != nil && *nextID != id {
		if next, ok := index[*nextID]; ok {
			if err := c.repo.UpdateLinks(ctx, db, *nextID, prevID, next.Next()); err != nil {
				return err
			}
		}
	}
	if err := c.repo.Hide(ctx, db, id); err != nil {
		return err
	}

	_, err = c.Heal(ctx, db, scope)
	return err
}

// ReorderByIndex は node を target の位置へ移動し、変更のあったポインタだけを書き直します。
// 移動前と移動後の並びを返します。
func (c chainList[T]) ReorderByIndex(ctx context.Context, db *gorm.DB, scope repository.Scope, id uuid.UUID, target int) ([]uuid.UUID, []uuid.UUID, error) {
	nodes, err := c.repo.FindVisibleInScope(ctx, db, scope)
	if err != nil {
		return nil, nil, err
	}
	before := ordering.Keys(ordering.Sequence(nodes))
	if ordering.IndexOf(before, id) < 0 {
		return nil, nil, model.ErrNotFound
	}
	after := ordering.Move(before, id, target)
	if err := c.write(ctx, db, nodes, after); err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

// WriteOrder は外部で決めた並び (同期など) をスコープに書きます。
func (c chainList[T]) WriteOrder(ctx context.Context, db *gorm.DB, nodes []T, order []uuid.UUID) error {
	return c.write(ctx, db, nodes, order)
}

// Heal はチェーンが壊れていれば現在の全順序からポインタを書き直します。書き直した場合は true。
func (c chainList[T]) Heal(ctx context.Context, db *gorm.DB, scope repository.Scope) (bool, error) {
	nodes, err := c.repo.FindVisibleInScope(ctx, db, scope)
	if err != nil {
		return false, err
	}
	if ordering.IsHealthy(nodes) {
		return false, nil
	}
	middleware.GetLogger(ctx).Warn("Healing broken chain", "chain", c.name, "scope", scope, "size", len(nodes))
	if err := c.write(ctx, db, nodes, ordering.Keys(ordering.Sequence(nodes))); err != nil {
		return false, err
	}
	return true, nil
}

func (c chainList[T]) write(ctx context.Context, db *gorm.DB, nodes []T, order []uuid.UUID) error {
	for _, l := range ordering.Changes(nodes, order) {
		if err := c.repo.UpdateLinks(ctx, db, l.ID, l.Previous, l.Next); err != nil {
			return fmt.Errorf("%s.write: %w", c.name, err)
		}
	}
	return nil
}
