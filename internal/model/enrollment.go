// internal/model/enrollment.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Enrollment は受講登録と集計済みの進捗。
// PreviousEnrollmentID は再登録の履歴チェーン (追記のみ) で、並び順のチェーンとは別物です。
type Enrollment struct {
	ID                   uuid.UUID                          `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID             uuid.UUID                          `gorm:"type:uuid;not null;index:idx_enrollment_course_student" json:"course_id"`
	StudentID            uuid.UUID                          `gorm:"type:uuid;not null;index:idx_enrollment_course_student" json:"student_id"`
	Status               EnrollmentStatus                   `gorm:"type:varchar(20);not null;index" json:"status"`
	Progress             int                                `gorm:"not null;default:0" json:"progress"`
	TotalExercises       int                                `json:"total_exercises"`
	CompletedExercises   int                                `json:"completed_exercises"`
	TotalModules         int                                `json:"total_modules"`
	CompletedModules     int                                `json:"completed_modules"`
	AverageScore         *float64                           `json:"average_score,omitempty"`
	ExerciseScores       datatypes.JSONSlice[ExerciseScore] `json:"exercise_scores"`
	PreviousEnrollmentID *uuid.UUID                         `gorm:"type:uuid" json:"previous_enrollment_id,omitempty"`
	EnrolledAt           time.Time                          `json:"enrolled_at"`
	CreatedAt            time.Time                          `json:"created_at"`
	UpdatedAt            time.Time                          `json:"updated_at"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// ExerciseScore は集計時点の各エクササイズの得点 (並びは決定的なチェーン順)
type ExerciseScore struct {
	StudentExerciseID uuid.UUID      `json:"student_exercise_id"`
	StudentModuleID   uuid.UUID      `json:"student_module_id"`
	Status            ExerciseStatus `json:"status"`
	Score             *float64       `json:"score,omitempty"`
	MaxScore          float64        `json:"max_score"`
}
