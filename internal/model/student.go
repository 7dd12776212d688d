// internal/model/student.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StudentModule は受講者ごとのモジュールのコピー。チェーンのスコープは (student_id, course_id)。
type StudentModule struct {
	ID               uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID        uuid.UUID                      `gorm:"type:uuid;not null;index:idx_student_course" json:"student_id"`
	CourseID         uuid.UUID                      `gorm:"type:uuid;not null;index:idx_student_course" json:"course_id"`
	EnrollmentID     uuid.UUID                      `gorm:"type:uuid;not null;index" json:"enrollment_id"`
	CourseModuleID   uuid.UUID                      `gorm:"type:uuid;not null;index" json:"course_module_id"`
	Title            string                         `gorm:"not null" json:"title"`
	Description      string                         `json:"description"`
	EstimatedMinutes int                            `json:"estimated_minutes"`
	Type             ModuleType                     `gorm:"type:varchar(20);not null" json:"type"`
	Status           ModuleStatus                   `gorm:"type:varchar(20);not null" json:"status"`
	Progress         int                            `gorm:"not null;default:0" json:"progress"`
	ExerciseIDs      datatypes.JSONSlice[uuid.UUID] `json:"exercise_ids"`
	ChainLinks
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StudentModule) TableName() string {
	return "student_modules"
}

func (m *StudentModule) OrderKey() uuid.UUID    { return m.ID }
func (m *StudentModule) CreatedTime() time.Time { return m.CreatedAt }

// StudentExercise は受講者ごとのエクササイズ。
// CourseExerciseID が nil のものは受講者独自 (アドホック) のエクササイズです。
type StudentExercise struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"student_id"`
	CourseID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"course_id"`
	StudentModuleID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"student_module_id"`
	CourseExerciseID *uuid.UUID `gorm:"type:uuid;index" json:"course_exercise_id,omitempty"`
	ExerciseContent
	Status      ExerciseStatus               `gorm:"type:varchar(20);not null" json:"status"`
	Score       *float64                     `json:"score,omitempty"`
	BestScore   *float64                     `json:"best_score,omitempty"`
	Attempts    int                          `gorm:"not null;default:0" json:"attempts"`
	Scores      datatypes.JSONSlice[float64] `json:"scores"`
	CompletedAt *time.Time                   `json:"completed_at,omitempty"`
	ChainLinks
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StudentExercise) TableName() string {
	return "student_exercises"
}

func (e *StudentExercise) OrderKey() uuid.UUID    { return e.ID }
func (e *StudentExercise) CreatedTime() time.Time { return e.CreatedAt }

// IsAdHoc はコース層に対応元を持たないエクササイズかどうか
func (e *StudentExercise) IsAdHoc() bool {
	return e.CourseExerciseID == nil
}
