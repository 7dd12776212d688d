// internal/model/library.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// LibraryModule はテンプレート層と教師層を1つのテーブルで表します (Tier で区別)。
// チェーンのスコープは (tier, owner_id) です。
type LibraryModule struct {
	ID               uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	Tier             LibraryTier                    `gorm:"type:varchar(20);not null;index:idx_library_owner" json:"tier"`
	OwnerID          uuid.UUID                      `gorm:"type:uuid;not null;index:idx_library_owner" json:"owner_id"`
	Title            string                         `gorm:"not null" json:"title"`
	Description      string                         `json:"description"`
	EstimatedMinutes int                            `json:"estimated_minutes"`
	Type             ModuleType                     `gorm:"type:varchar(20);not null" json:"type"`
	Status           ModuleStatus                   `gorm:"type:varchar(20);not null" json:"status"`
	ExerciseIDs      datatypes.JSONSlice[uuid.UUID] `json:"exercise_ids"` // チェーン順に常に更新する
	ChainLinks
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (LibraryModule) TableName() string {
	return "library_modules"
}

func (m *LibraryModule) OrderKey() uuid.UUID    { return m.ID }
func (m *LibraryModule) CreatedTime() time.Time { return m.CreatedAt }

type LibraryExercise struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LibraryModuleID uuid.UUID `gorm:"type:uuid;not null;index" json:"library_module_id"`
	ExerciseContent
	ChainLinks
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (LibraryExercise) TableName() string {
	return "library_exercises"
}

func (e *LibraryExercise) OrderKey() uuid.UUID    { return e.ID }
func (e *LibraryExercise) CreatedTime() time.Time { return e.CreatedAt }
