// internal/model/course.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Course は教師が組み立てるカリキュラムです。
type Course struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TeacherID   uuid.UUID `gorm:"type:uuid;not null;index" json:"teacher_id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description"`
	Visible     bool      `gorm:"not null" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Course) TableName() string {
	return "courses"
}

// CourseModule はコース層のモジュール。コース内でチェーンを構成します。
type CourseModule struct {
	ID               uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID         uuid.UUID                      `gorm:"type:uuid;not null;index" json:"course_id"`
	SourceModuleID   *uuid.UUID                     `gorm:"type:uuid" json:"source_module_id,omitempty"`
	SourceTier       *LibraryTier                   `gorm:"type:varchar(20)" json:"source_tier,omitempty"`
	Title            string                         `gorm:"not null" json:"title"`
	Description      string                         `json:"description"`
	EstimatedMinutes int                            `json:"estimated_minutes"`
	Type             ModuleType                     `gorm:"type:varchar(20);not null" json:"type"`
	Status           ModuleStatus                   `gorm:"type:varchar(20);not null" json:"status"`
	ExerciseIDs      datatypes.JSONSlice[uuid.UUID] `json:"exercise_ids"`
	ChainLinks
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CourseModule) TableName() string {
	return "course_modules"
}

func (m *CourseModule) OrderKey() uuid.UUID    { return m.ID }
func (m *CourseModule) CreatedTime() time.Time { return m.CreatedAt }

// CourseExercise はコース層のエクササイズ。モジュール内でチェーンを構成します。
type CourseExercise struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"course_id"`
	CourseModuleID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"course_module_id"`
	SourceExerciseID *uuid.UUID `gorm:"type:uuid" json:"source_exercise_id,omitempty"`
	ExerciseContent
	ChainLinks
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CourseExercise) TableName() string {
	return "course_exercises"
}

func (e *CourseExercise) OrderKey() uuid.UUID    { return e.ID }
func (e *CourseExercise) CreatedTime() time.Time { return e.CreatedAt }

// ExerciseContent は全層で共通のエクササイズ定義部分です。
type ExerciseContent struct {
	Title      string  `gorm:"not null" json:"title"`
	Content    string  `json:"content"`
	Type       string  `gorm:"type:varchar(50)" json:"type"`
	Difficulty string  `gorm:"type:varchar(20)" json:"difficulty"`
	MaxScore   float64 `json:"max_score"`
}
