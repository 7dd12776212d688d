package handlers

import (
	"context"

	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/service"

	"github.com/google/uuid"
)

var (
	errTeacherOnly     = model.NewAppError("TEACHER_ONLY", "この操作は教師のみ実行できます。", "", model.ErrForbidden)
	errNotCourseOwner  = model.NewAppError("NOT_COURSE_OWNER", "このコースへのアクセス権がありません。", "", model.ErrForbidden)
	errNotOwnContent   = model.NewAppError("NOT_OWN_CONTENT", "この受講内容へのアクセス権がありません。", "", model.ErrForbidden)
	errNotLibraryOwner = model.NewAppError("NOT_LIBRARY_OWNER", "このライブラリへのアクセス権がありません。", "", model.ErrForbidden)
)

// accessGuard はサービスを呼ぶ前の認可です (教師は自分のコース、受講者は自分のコピーのみ)。
// サービス層は認可済みの呼び出しを前提にしています。
type accessGuard struct {
	courses  service.CourseService
	progress service.ProgressService
	library  service.LibraryService
}

func newAccessGuard(courses service.CourseService, progress service.ProgressService, library service.LibraryService) *accessGuard {
	return &accessGuard{courses: courses, progress: progress, library: library}
}

func (g *accessGuard) course(ctx context.Context, actor model.Actor, courseID uuid.UUID) (*model.Course, error) {
	if actor.Role != model.RoleTeacher {
		return nil, errTeacherOnly
	}
	course, err := g.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.TeacherID != actor.ID {
		return nil, errNotCourseOwner
	}
	return course, nil
}

func (g *accessGuard) module(ctx context.Context, actor model.Actor, moduleID uuid.UUID) (*model.CourseModule, error) {
	if actor.Role != model.RoleTeacher {
		return nil, errTeacherOnly
	}
	module, err := g.courses.GetModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if _, err := g.course(ctx, actor, module.CourseID); err != nil {
		return nil, err
	}
	return module, nil
}

func (g *accessGuard) exercise(ctx context.Context, actor model.Actor, exerciseID uuid.UUID) (*model.CourseExercise, error) {
	if actor.Role != model.RoleTeacher {
		return nil, errTeacherOnly
	}
	exercise, err := g.courses.GetExercise(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	if _, err := g.course(ctx, actor, exercise.CourseID); err != nil {
		return nil, err
	}
	return exercise, nil
}

// student は受講者本人か、そのコースの教師であることを確認します。
func (g *accessGuard) student(ctx context.Context, actor model.Actor, studentID, courseID uuid.UUID) error {
	switch actor.Role {
	case model.RoleStudent:
		if actor.ID != studentID {
			return errNotOwnContent
		}
		return nil
	case model.RoleTeacher:
		_, err := g.course(ctx, actor, courseID)
		return err
	default:
		return errNotOwnContent
	}
}

func (g *accessGuard) studentModule(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.StudentModule, error) {
	sm, err := g.progress.GetStudentModule(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := g.student(ctx, actor, sm.StudentID, sm.CourseID); err != nil {
		return nil, err
	}
	return sm, nil
}

func (g *accessGuard) studentExercise(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.StudentExercise, error) {
	se, err := g.progress.GetStudentExercise(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := g.student(ctx, actor, se.StudentID, se.CourseID); err != nil {
		return nil, err
	}
	return se, nil
}

// libraryModule はテンプレートなら教師全員、教師ライブラリなら所有者だけに許可します。
func (g *accessGuard) libraryModule(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.LibraryModule, error) {
	if actor.Role != model.RoleTeacher {
		return nil, errTeacherOnly
	}
	module, err := g.library.GetModule(ctx, id)
	if err != nil {
		return nil, err
	}
	if module.Tier == model.LibraryTierTeacher && module.OwnerID != actor.ID {
		return nil, errNotLibraryOwner
	}
	return module, nil
}

func (g *accessGuard) libraryExercise(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.LibraryExercise, error) {
	if actor.Role != model.RoleTeacher {
		return nil, errTeacherOnly
	}
	exercise, err := g.library.GetExercise(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := g.libraryModule(ctx, actor, exercise.LibraryModuleID); err != nil {
		return nil, err
	}
	return exercise, nil
}
