package service

import (
	"context"
	"testing"

	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/ordering"
	"go_5_course_keep/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newChainFixture(t *testing.T, n int) (*gorm.DB, chainList[*model.CourseModule], repository.Scope, []*model.CourseModule) {
	t.Helper()
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.NewGormCourseModuleRepository()
	chain := newChainList(repo, "courseModules")
	courseID := uuid.New()
	scope := repository.CourseModuleScope(courseID)

	nodes := make([]*model.CourseModule, 0, n)
	for i := 0; i < n; i++ {
		m := &model.CourseModule{
			ID:         uuid.New(),
			CourseID:   courseID,
			Title:      string(rune('A' + i)),
			Type:       model.ModuleTypeAll,
			Status:     model.ModuleStatusActive,
			ChainLinks: model.ChainLinks{Visible: true},
		}
		require.NoError(t, repo.Create(ctx, db, m))
		require.NoError(t, chain.AppendToTail(ctx, db, scope, m))
		nodes = append(nodes, m)
	}
	return db, chain, scope, nodes
}

func orderedIDs(t *testing.T, db *gorm.DB, chain chainList[*model.CourseModule], scope repository.Scope) []uuid.UUID {
	t.Helper()
	ordered, err := chain.Ordered(context.Background(), db, scope)
	require.NoError(t, err)
	return ordering.Keys(ordered)
}

func TestChainList_AppendToTail(t *testing.T) {
	db, chain, scope, nodes := newChainFixture(t, 3)
	assert.Equal(t, []uuid.UUID{nodes[0].ID, nodes[1].ID, nodes[2].ID}, orderedIDs(t, db, chain, scope))

	rows, err := chain.repo.FindVisibleInScope(context.Background(), db, scope)
	require.NoError(t, err)
	assert.True(t, ordering.IsHealthy(rows))
}

func TestChainList_RemoveAndSplice(t *testing.T) {
	ctx := context.Background()
	db, chain, scope, nodes := newChainFixture(t, 3)

	middle, err := chain.repo.FindByID(ctx, db, nodes[1].ID)
	require.NoError(t, err)
	require.NoError(t, chain.RemoveAndSplice(ctx, db, scope, middle))

	prev, err := chain.repo.FindByID(ctx, db, nodes[0].ID)
	require.NoError(t, err)
	next, err := chain.repo.FindByID(ctx, db, nodes[2].ID)
	require.NoError(t, err)
	require.NotNil(t, prev.NextID)
	require.NotNil(t, next.PreviousID)
	assert.Equal(t, next.ID, *prev.NextID)
	assert.Equal(t, prev.ID, *next.PreviousID)
	assert.NotContains(t, orderedIDs(t, db, chain, scope), middle.ID)

	_, err = chain.repo.FindByID(ctx, db, middle.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestChainList_ReorderByIndex(t *testing.T) {
	ctx := context.Background()
	db, chain, scope, nodes := newChainFixture(t, 4)

	tests := []struct {
		name   string
		id     uuid.UUID
		target int
		want   []uuid.UUID
	}{
		{"先頭へ", nodes[3].ID, 0, []uuid.UUID{nodes[3].ID, nodes[0].ID, nodes[1].ID, nodes[2].ID}},
		{"同じ位置 (冪等)", nodes[3].ID, 0, []uuid.UUID{nodes[3].ID, nodes[0].ID, nodes[1].ID, nodes[2].ID}},
		{"範囲外は末尾に丸める", nodes[3].ID, 99, []uuid.UUID{nodes[0].ID, nodes[1].ID, nodes[2].ID, nodes[3].ID}},
		{"負の値は先頭に丸める", nodes[2].ID, -5, []uuid.UUID{nodes[2].ID, nodes[0].ID, nodes[1].ID, nodes[3].ID}},
		{"隣と入れ替え", nodes[0].ID, 0, []uuid.UUID{nodes[0].ID, nodes[2].ID, nodes[1].ID, nodes[3].ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, after, err := chain.ReorderByIndex(ctx, db, scope, tt.id, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, after)
			assert.Equal(t, tt.want, orderedIDs(t, db, chain, scope))

			rows, err := chain.repo.FindVisibleInScope(ctx, db, scope)
			require.NoError(t, err)
			assert.True(t, ordering.IsHealthy(rows))
		})
	}

	t.Run("異常系: スコープ外のノード", func(t *testing.T) {
		_, _, err := chain.ReorderByIndex(ctx, db, scope, uuid.New(), 0)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestChainList_AppendToBrokenChain(t *testing.T) {
	ctx := context.Background()
	db, chain, scope, nodes := newChainFixture(t, 3)

	// 循環させる: C.next = A, A.prev = C
	require.NoError(t, chain.repo.UpdateLinks(ctx, db, nodes[0].ID, &nodes[2].ID, &nodes[1].ID))
	require.NoError(t, chain.repo.UpdateLinks(ctx, db, nodes[2].ID, &nodes[1].ID, &nodes[0].ID))
	assert.Len(t, orderedIDs(t, db, chain, scope), 3, "壊れていても全ノードを返す")

	extra := &model.CourseModule{
		ID:         uuid.New(),
		CourseID:   nodes[0].CourseID,
		Title:      "Z",
		Type:       model.ModuleTypeAll,
		Status:     model.ModuleStatusActive,
		ChainLinks: model.ChainLinks{Visible: true},
	}
	require.NoError(t, chain.repo.Create(ctx, db, extra))
	require.NoError(t, chain.AppendToTail(ctx, db, scope, extra))

	ids := orderedIDs(t, db, chain, scope)
	require.Len(t, ids, 4)
	assert.Equal(t, extra.ID, ids[3])

	rows, err := chain.repo.FindVisibleInScope(ctx, db, scope)
	require.NoError(t, err)
	assert.True(t, ordering.IsHealthy(rows))
}
