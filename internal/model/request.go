// internal/model/request.go
package model

import "github.com/google/uuid"

// AddModuleRequest はコースへのモジュール追加。SourceModuleID があればライブラリからコピーします。
type AddModuleRequest struct {
	SourceModuleID   *uuid.UUID `json:"source_module_id,omitempty"`
	Title            string     `json:"title" validate:"required_without=SourceModuleID,max=200"`
	Description      string     `json:"description" validate:"max=2000"`
	EstimatedMinutes int        `json:"estimated_minutes" validate:"min=0"`
	Type             ModuleType `json:"type" validate:"omitempty,oneof=all progress"`
	Status           string     `json:"status" validate:"omitempty,oneof=active inactive"`
}

// AddExerciseRequest はモジュールへのエクササイズ追加 (コース層・ライブラリ層・受講者層で共通)
type AddExerciseRequest struct {
	Title      string  `json:"title" validate:"required,max=200"`
	Content    string  `json:"content"`
	Type       string  `json:"type" validate:"max=50"`
	Difficulty string  `json:"difficulty" validate:"max=20"`
	MaxScore   float64 `json:"max_score" validate:"min=0"`
}

type ReorderRequest struct {
	Index *int `json:"index" validate:"required"`
}

type SetModuleStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

type EnrollRequest struct {
	StudentID uuid.UUID `json:"student_id" validate:"required"`
}

type CompleteExerciseRequest struct {
	Score *float64 `json:"score,omitempty" validate:"omitempty,min=0"`
}

// SetExerciseStatusRequest の Status はサービス層で厳密に検証する (未知の値はエラー)
type SetExerciseStatusRequest struct {
	Status string   `json:"status" validate:"required"`
	Score  *float64 `json:"score,omitempty" validate:"omitempty,min=0"`
}

type CreateLibraryModuleRequest struct {
	Tier             LibraryTier `json:"tier" validate:"required,oneof=template teacher"`
	Title            string      `json:"title" validate:"required,max=200"`
	Description      string      `json:"description" validate:"max=2000"`
	EstimatedMinutes int         `json:"estimated_minutes" validate:"min=0"`
	Type             ModuleType  `json:"type" validate:"omitempty,oneof=all progress"`
}

type CreateCourseRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}
