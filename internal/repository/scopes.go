package repository

import (
	"go_5_course_keep/internal/model"

	"github.com/google/uuid"
)

// 各層のチェーンのスコープ

func CourseModuleScope(courseID uuid.UUID) Scope {
	return Scope{"course_id": courseID}
}

func CourseExerciseScope(courseModuleID uuid.UUID) Scope {
	return Scope{"course_module_id": courseModuleID}
}

func StudentModuleScope(studentID, courseID uuid.UUID) Scope {
	return Scope{"student_id": studentID, "course_id": courseID}
}

func StudentExerciseScope(studentModuleID uuid.UUID) Scope {
	return Scope{"student_module_id": studentModuleID}
}

func LibraryModuleScope(tier model.LibraryTier, ownerID uuid.UUID) Scope {
	return Scope{"tier": string(tier), "owner_id": ownerID}
}

func LibraryExerciseScope(libraryModuleID uuid.UUID) Scope {
	return Scope{"library_module_id": libraryModuleID}
}

// 各層のリポジトリ型
type (
	CourseModuleRepository    = ChainRepository[*model.CourseModule]
	CourseExerciseRepository  = ChainRepository[*model.CourseExercise]
	StudentModuleRepository   = ChainRepository[*model.StudentModule]
	StudentExerciseRepository = ChainRepository[*model.StudentExercise]
	LibraryModuleRepository   = ChainRepository[*model.LibraryModule]
	LibraryExerciseRepository = ChainRepository[*model.LibraryExercise]
)

func NewGormCourseModuleRepository() CourseModuleRepository {
	return NewGormChainRepository[model.CourseModule]("gormCourseModuleRepository")
}

func NewGormCourseExerciseRepository() CourseExerciseRepository {
	return NewGormChainRepository[model.CourseExercise]("gormCourseExerciseRepository")
}

func NewGormStudentModuleRepository() StudentModuleRepository {
	return NewGormChainRepository[model.StudentModule]("gormStudentModuleRepository")
}

func NewGormStudentExerciseRepository() StudentExerciseRepository {
	return NewGormChainRepository[model.StudentExercise]("gormStudentExerciseRepository")
}

func NewGormLibraryModuleRepository() LibraryModuleRepository {
	return NewGormChainRepository[model.LibraryModule]("gormLibraryModuleRepository")
}

func NewGormLibraryExerciseRepository() LibraryExerciseRepository {
	return NewGormChainRepository[model.LibraryExercise]("gormLibraryExerciseRepository")
}
