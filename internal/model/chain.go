package model

import "github.com/google/uuid"

// ChainLinks は同一スコープ内の兄弟ノードとの双方向リンクです。
// Visible=false のノードは論理削除扱いで、走査対象から外れます。
type ChainLinks struct {
	PreviousID *uuid.UUID `gorm:"type:uuid;index" json:"previous_id"`
	NextID     *uuid.UUID `gorm:"type:uuid;index" json:"next_id"`
	Visible    bool       `gorm:"not null;index" json:"-"`
}

func (l ChainLinks) Previous() *uuid.UUID { return l.PreviousID }

func (l ChainLinks) Next() *uuid.UUID { return l.NextID }
