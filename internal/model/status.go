package model

import (
	"fmt"
	"strings"
)

// ModuleType は兄弟エクササイズの解放方式を表します。
type ModuleType string

const (
	ModuleTypeAll      ModuleType = "all"      // 全エクササイズを同時に解放
	ModuleTypeProgress ModuleType = "progress" // 先頭から順番に解放
)

func (t ModuleType) Valid() bool {
	return t == ModuleTypeAll || t == ModuleTypeProgress
}

type ModuleStatus string

const (
	ModuleStatusActive    ModuleStatus = "active"
	ModuleStatusInactive  ModuleStatus = "inactive"
	ModuleStatusCompleted ModuleStatus = "completed"
)

// ExerciseStatus は受講者エクササイズの進捗状態です。
type ExerciseStatus string

const (
	ExerciseStatusPending    ExerciseStatus = "pending"
	ExerciseStatusReady      ExerciseStatus = "ready"
	ExerciseStatusInProgress ExerciseStatus = "in_progress"
	ExerciseStatusCompleted  ExerciseStatus = "completed"
	ExerciseStatusReviewed   ExerciseStatus = "reviewed"
	ExerciseStatusBlocked    ExerciseStatus = "blocked"
)

var validExerciseStatuses = []ExerciseStatus{
	ExerciseStatusPending,
	ExerciseStatusReady,
	ExerciseStatusInProgress,
	ExerciseStatusCompleted,
	ExerciseStatusReviewed,
	ExerciseStatusBlocked,
}

// IsDone は解放判定と集計で「完了」とみなす状態かどうかを返します。
func (s ExerciseStatus) IsDone() bool {
	return s == ExerciseStatusCompleted || s == ExerciseStatusReviewed
}

// ParseExerciseStatus は文字列を厳密に検証します。未知の値は変換せずにエラーにします。
func ParseExerciseStatus(raw string) (ExerciseStatus, error) {
	for _, s := range validExerciseStatuses {
		if string(s) == raw {
			return s, nil
		}
	}
	names := make([]string, len(validExerciseStatuses))
	for i, s := range validExerciseStatuses {
		names[i] = string(s)
	}
	valid := strings.Join(names, ", ")
	return "", NewAppError(
		"INVALID_STATUS",
		fmt.Sprintf("ステータス %q は無効です。有効な値: %s", raw, valid),
		"status",
		fmt.Errorf("%w: %q", ErrInvalidStatus, raw),
	)
}

type EnrollmentStatus string

const (
	EnrollmentStatusActive     EnrollmentStatus = "active"
	EnrollmentStatusHistorical EnrollmentStatus = "historical"
	EnrollmentStatusRemoved    EnrollmentStatus = "removed"
)

// LibraryTier は公開テンプレートと教師個人ライブラリを区別します。
type LibraryTier string

const (
	LibraryTierTemplate LibraryTier = "template"
	LibraryTierTeacher  LibraryTier = "teacher"
)
