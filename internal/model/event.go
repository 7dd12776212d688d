package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type EventType string

const (
	EventExerciseCompleted EventType = "exercise_completed"
	EventModuleUnlocked    EventType = "module_unlocked"
)

// Event は外部の通知コンポーネントへ渡す事実です。
type Event struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Type      EventType      `gorm:"type:varchar(50);not null;index" json:"type"`
	StudentID uuid.UUID      `gorm:"type:uuid;not null;index" json:"student_id"`
	CourseID  uuid.UUID      `gorm:"type:uuid;not null" json:"course_id"`
	SubjectID uuid.UUID      `gorm:"type:uuid;not null" json:"subject_id"` // student_exercise_id / student_module_id
	Title     string         `json:"title"`
	Payload   datatypes.JSON `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (Event) TableName() string {
	return "outbox_events"
}
