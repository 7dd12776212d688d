// internal/service/course_service.go
package service

import (
	"context"
	"errors"
	"fmt"

	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CourseService は教師がコースを組み立てる操作です。
// コース層の変更は1トランザクションで確定させ、その後に受講者ごとのファンアウトを行います。
type CourseService interface {
	CreateCourse(ctx context.Context, teacherID uuid.UUID, req *model.CreateCourseRequest) (*model.Course, error)
	GetCourse(ctx context.Context, courseID uuid.UUID) (*model.Course, error)
	ListCourses(ctx context.Context, teacherID uuid.UUID) ([]*model.Course, error)

	AddModule(ctx context.Context, courseID uuid.UUID, req *model.AddModuleRequest) (*model.CourseModule, *SyncReport, error)
	RemoveModule(ctx context.Context, courseModuleID uuid.UUID) (*SyncReport, error)
	ReorderModule(ctx context.Context, courseModuleID uuid.UUID, index int) ([]*model.CourseModule, *SyncReport, error)
	SetModuleStatus(ctx context.Context, courseModuleID uuid.UUID, status string) (*model.CourseModule, *SyncReport, error)
	GetModule(ctx context.Context, courseModuleID uuid.UUID) (*model.CourseModule, error)
	GetOrderedModules(ctx context.Context, courseID uuid.UUID) ([]*model.CourseModule, error)

	AddExercise(ctx context.Context, courseModuleID uuid.UUID, req *model.AddExerciseRequest) (*model.CourseExercise, *SyncReport, error)
	RemoveExercise(ctx context.Context, courseExerciseID uuid.UUID) (*SyncReport, error)
	ReorderExercise(ctx context.Context, courseExerciseID uuid.UUID, index int) ([]*model.CourseExercise, *SyncReport, error)
	GetExercise(ctx context.Context, courseExerciseID uuid.UUID) (*model.CourseExercise, error)
	GetOrderedExercises(ctx context.Context, courseModuleID uuid.UUID) ([]*model.CourseExercise, error)
}

type courseService struct {
	db            *gorm.DB
	repos         repository.Repositories
	moduleOrder   ModuleOrderService
	exerciseOrder ExerciseOrderService
	studentOrder  StudentOrderService
	replication   ReplicationService
	sync          SyncService
	rules         *progressRules
}

func NewCourseService(db *gorm.DB, repos repository.Repositories, sync SyncService, replication ReplicationService) CourseService {
	return &courseService{
		db:            db,
		repos:         repos,
		moduleOrder:   NewModuleOrderService(repos.CourseModules),
		exerciseOrder: NewExerciseOrderService(repos.CourseExercises, repos.CourseModules),
		studentOrder:  NewStudentOrderService(repos.StudentModules, repos.StudentExercises),
		replication:   replication,
		sync:          sync,
		rules:         newProgressRules(repos),
	}
}

func (s *courseService) CreateCourse(ctx context.Context, teacherID uuid.UUID, req *model.CreateCourseRequest) (*model.Course, error) {
	logger := middleware.GetLogger(ctx).With("service", "CourseService", "method", "CreateCourse")

	course := &model.Course{
		ID:          uuid.New(),
		TeacherID:   teacherID,
		Title:       req.Title,
		Description: req.Description,
		Visible:     true,
	}
	if err := s.repos.Courses.Create(ctx, s.db, course); err != nil {
		return nil, publicError(logger, "Failed to create course", err)
	}
	logger.Info("Course created", "course_id", course.ID, "teacher_id", teacherID)
	return course, nil
}

func (s *courseService) GetCourse(ctx context.Context, courseID uuid.UUID) (*model.Course, error) {
	return s.repos.Courses.FindByID(ctx, s.db, courseID)
}

// ListCourses は teacherID が uuid.Nil なら全コースを返します。
func (s *courseService) ListCourses(ctx context.Context, teacherID uuid.UUID) ([]*model.Course, error) {
	courses, err := s.repos.Courses.FindAll(ctx, s.db)
	if err != nil {
		return nil, publicError(middleware.GetLogger(ctx), "Failed to list courses", err)
	}
	if teacherID == uuid.Nil {
		return courses, nil
	}
	owned := make([]*model.Course, 0, len(courses))
	for _, c := range courses {
		if c.TeacherID == teacherID {
			owned = append(owned, c)
		}
	}
	return owned, nil
}

// AddModule はモジュールをコースの末尾に追加します。SourceModuleID があればライブラリからツリーごとコピーします。
// 登録済みの受講者には後から複製します。
func (s *courseService) AddModule(ctx context.Context, courseID uuid.UUID, req *model.AddModuleRequest) (*model.CourseModule, *SyncReport, error) {
	logger := middleware.GetLogger(ctx).With("service", "CourseService", "method", "AddModule", "course_id", courseID)

	status := model.ModuleStatusActive
	if req.Status != "" {
		parsed, err := parseModuleStatus(req.Status)
		if err != nil {
			return nil, nil, err
		}
		status = parsed
	}

	var module *model.CourseModule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repos.Courses.FindByID(ctx, tx, courseID); err != nil {
			return err
		}
		if req.SourceModuleID != nil {
			source, err := s.repos.LibraryModules.FindByID(ctx, tx, *req.SourceModuleID)
			if err != nil {
				return err
			}
			module, err = s.replication.CopyModuleTreeToCourse(ctx, tx, source, courseID, status)
			return err
		}

		moduleType := req.Type
		if moduleType == "" {
			moduleType = model.ModuleTypeAll
		}
		module = &model.CourseModule{
			ID:               uuid.New(),
			CourseID:         courseID,
			Title:            req.Title,
			Description:      req.Description,
			EstimatedMinutes: req.EstimatedMinutes,
			Type:             moduleType,
			Status:           status,
			ExerciseIDs:      datatypes.JSONSlice[uuid.UUID]{},
			ChainLinks:       model.ChainLinks{Visible: true},
		}
		if err := s.repos.CourseModules.Create(ctx, tx, module); err != nil {
			return err
		}
		return s.moduleOrder.Append(ctx, tx, module)
	})
	if err != nil {
		return nil, nil, publicError(logger, "Failed to add module", err)
	}
	logger.Info("Module added to course", "course_module_id", module.ID, "from_library", req.SourceModuleID != nil)

	report, err := s.sync.ForEachEnrolled(ctx, courseID, "AddModule",
		func(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment) ([]*model.Event, error) {
			_, err := s.repos.StudentModules.FindOne(ctx, tx, repository.Scope{
				"student_id":       enrollment.StudentID,
				"course_module_id": module.ID,
			})
			if err == nil {
				return nil, nil
			}
			if !errors.Is(err, model.ErrNotFound) {
				return nil, err
			}
			if _, err := s.replication.ReplicateModule(ctx, tx, module, enrollment); err != nil {
				return nil, err
			}
			_, err = s.rules.updateEnrollmentProgress(ctx, tx, enrollment.ID)
			return nil, err
		})
	if err != nil {
		return module, report, publicError(logger, "Fan-out failed after adding module", err)
	}
	return module, report, nil
}

// RemoveModule はモジュールと配下のエクササイズを非表示にし、受講者のコピーもチェーンから外します。
func (s *courseService) RemoveModule(ctx context.Context, courseModuleID uuid.UUID) (*SyncReport, error) {
	logger := middleware.GetLogger(ctx).With("service", "CourseService", "method", "RemoveModule", "course_module_id", courseModuleID)

	var module *model.CourseModule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		module, err = s.repos.CourseModules.FindByID(ctx, tx, courseModuleID)
		if err != nil {
			return err
		}
		if _, err := s.repos.CourseExercises.HideInScope(ctx, tx, repository.CourseExerciseScope(module.ID)); err != nil {
			return err
		}
		return s.moduleOrder.Remove(ctx, tx, module)
	})
	if err != nil {
		return nil, publicError(logger, "Failed to remove module", err)
	}
	logger.Info("Module removed from course", "course_id", module.CourseID)

	report, err := s.sync.ForEachEnrolled(ctx, module.CourseID, "RemoveModule",
		func(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment) ([]*model.Event, error) {
			sm, err := s.repos.StudentModules.FindOne(ctx, tx, repository.Scope{
				"student_id":       enrollment.StudentID,
				"course_module_id": module.ID,
			})
			if errors.Is(err, model.ErrNotFound) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			if _, err := s.repos.StudentExercises.HideInScope(ctx, tx, repository.StudentExerciseScope(sm.ID)); err != nil {
				return nil, err
			}
			if err := s.studentOrder.RemoveModule(ctx, tx, sm); err != nil {
				return nil, err
			}
			_, err = s.rules.updateEnrollmentProgress(ctx, tx, enrollment.ID)
			return nil, err
		})
	if err != nil {
		return report, publicError(logger, "Fan-out failed after removing module", err)
	}
	return report, nil
}

// ReorderModule はコース層を並べ替えてから全受講者へ並びを同期します。
func (s *courseService) ReorderModule(ctx context.Context, courseModuleID uuid.UUID, index int) ([]*model.CourseModule, *SyncReport, error) {
	logger := middleware.GetLogger(ctx).With("service", "CourseService", "method", "ReorderModule", "course_module_id", courseModuleID)

	var (
		module  *model.CourseModule
		ordered []*model.CourseModule
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		module, err = s.repos.CourseModules.FindByID(ctx, tx, courseModuleID)
		if err != nil {
			return err
		}
		if _, err := s.moduleOrder.Reorder(ctx, tx, module, index); err != nil {
			return err
		}
		ordered, err = s.moduleOrder.Ordered(ctx, tx, module.CourseID)
		return err
	})
	if err != nil {
		return nil, nil, publicError(logger, "Failed to reorder module", err)
	}
	logger.Info("Module reordered", "index", index)

	report, err := s.sync.SyncModuleOrderToStudents(ctx, module.CourseID)
	if err != nil {
		return ordered, report, publicError(logger, "Module order sync failed", err)
	}
	return ordered, report, nil
}

// SetModuleStatus はモジュールの有効・無効を切り替え、受講者のコピーへ伝えます。
// 有効化したときはエクササイズを解放し、module_unlocked を通知します。
// 無効化しても既に開いたエクササイズは閉じません。
func (s *courseService) SetModuleStatus(ctx context.Context, courseModuleID uuid.UUID, status string) (*model.CourseModule, *SyncReport, error) {
	logger := middleware.GetLogger(ctx).With("service", "CourseService", "method", "SetModuleStatus", "course_module_id", courseModuleID)

	parsed, err := parseModuleStatus(status)
	if err != nil {
		return nil, nil, err
	}

	var module *model.CourseModule
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repos.CourseModules.Update(ctx, tx, courseModuleID, map[string]interface{}{"status": parsed}); err != nil {
			return err
		}
		var err error
		module, err = s.repos.CourseModules.FindByID(ctx, tx, courseModuleID)
		return err
	})
	if err != nil {
		return nil, nil, publicError(logger, "Failed to set module status", err)
	}
	logger.Info("Module status changed", "status", parsed)

	report, err := s.sync.ForEachEnrolled(ctx, module.CourseID, "SetModuleStatus",
		func(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment) ([]*model.Event, error) {
			sm, err := s.repos.StudentModules.FindOne(ctx, tx, repository.Scope{
				"student_id":       enrollment.StudentID,
				"course_module_id": module.ID,
			})
			if errors.Is(err, model.ErrNotFound) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			return s.applyModuleStatus(ctx, tx, sm, parsed)
		})
	if err != nil {
		return module, report, publicError(logger, "Fan-out failed after module status change", err)
	}
	return module, report, nil
}

func (s *courseService) applyModuleStatus(ctx context.Context, tx *gorm.DB, sm *model.StudentModule, status model.ModuleStatus) ([]*model.Event, error) {
	// 完了済みは派生状態なので上書きしない
	if sm.Status == model.ModuleStatusCompleted || sm.Status == status {
		return nil, nil
	}
	if err := s.repos.StudentModules.Update(ctx, tx, sm.ID, map[string]interface{}{"status": status}); err != nil {
		return nil, err
	}
	sm.Status = status

	var events []*model.Event
	if status == model.ModuleStatusActive {
		unlocked, err := s.rules.unlockModule(ctx, tx, sm)
		if err != nil {
			return nil, err
		}
		events = append(events, newEvent(model.EventModuleUnlocked, sm.StudentID, sm.CourseID, sm.ID, sm.Title,
			map[string]interface{}{"unlocked_exercises": unlocked, "course_module_id": sm.CourseModuleID}))
	}
	if err := s.rules.recomputeModule(ctx, tx, sm); err != nil {
		return nil, err
	}
	if _, err := s.rules.updateEnrollmentProgress(ctx, tx, sm.EnrollmentID); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *courseService) GetModule(ctx context.Context, courseModuleID uuid.UUID) (*model.CourseModule, error) {
	return s.repos.CourseModules.FindByID(ctx, s.db, courseModuleID)
}

func (s *courseService) GetOrderedModules(ctx context.Context, courseID uuid.UUID) ([]*model.CourseModule, error) {
	if _, err := s.repos.Courses.FindByID(ctx, s.db, courseID); err != nil {
		return nil, err
	}
	return s.moduleOrder.Ordered(ctx, s.db, courseID)
}

// AddExercise はエクササイズをモジュールの末尾に追加し、受講者のモジュールにも複製します。
func (s *courseService) AddExercise(ctx context.Context, courseModuleID uuid.UUID, req *model.AddExerciseRequest) (*model.CourseExercise, *SyncReport, error) {
	logger := middleware.GetLogger(ctx).With("service", "CourseService", "method", "AddExercise", "course_module_id", courseModuleID)

	var exercise *model.CourseExercise
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		module, err := s.repos.CourseModules.FindByID(ctx, tx, courseModuleID)
		if err != nil {
			return err
		}
		exercise = &model.CourseExercise{
			ID:              uuid.New(),
			CourseID:        module.CourseID,
			CourseModuleID:  module.ID,
			ExerciseContent: contentFromRequest(req),
			ChainLinks:      model.ChainLinks{Visible: true},
		}
		if err := s.repos.CourseExercises.Create(ctx, tx, exercise); err != nil {
			return err
		}
		return s.exerciseOrder.Append(ctx, tx, exercise)
	})
	if err != nil {
		return nil, nil, publicError(logger, "Failed to add exercise", err)
	}
	logger.Info("Exercise added to module", "course_exercise_id", exercise.ID)

	report, err := s.sync.ForEachEnrolled(ctx, exercise.CourseID, "AddExercise",
		func(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment) ([]*model.Event, error) {
			sm, err := s.repos.StudentModules.FindOne(ctx, tx, repository.Scope{
				"student_id":       enrollment.StudentID,
				"course_module_id": courseModuleID,
			})
			if errors.Is(err, model.ErrNotFound) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			if _, err := s.replication.ReplicateExercise(ctx, tx, exercise, sm); err != nil {
				return nil, err
			}
			if err := s.rules.recomputeModule(ctx, tx, sm); err != nil {
				return nil, err
			}
			_, err = s.rules.updateEnrollmentProgress(ctx, tx, enrollment.ID)
			return nil, err
		})
	if err != nil {
		return exercise, report, publicError(logger, "Fan-out failed after adding exercise", err)
	}
	return exercise, report, nil
}

// RemoveExercise はエクササイズをチェーンから外し、受講者のコピーも同様に外します。
func (s *courseService) RemoveExercise(ctx context.Context, courseExerciseID uuid.UUID) (*SyncReport, error) {
	logger := middleware.GetLogger(ctx).With("service", "CourseService", "method", "RemoveExercise", "course_exercise_id", courseExerciseID)

	var exercise *model.CourseExercise
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		exercise, err = s.repos.CourseExercises.FindByID(ctx, tx, courseExerciseID)
		if err != nil {
			return err
		}
		return s.exerciseOrder.Remove(ctx, tx, exercise)
	})
	if err != nil {
		return nil, publicError(logger, "Failed to remove exercise", err)
	}
	logger.Info("Exercise removed from module", "course_module_id", exercise.CourseModuleID)

	report, err := s.sync.ForEachEnrolled(ctx, exercise.CourseID, "RemoveExercise",
		func(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment) ([]*model.Event, error) {
			copies, err := s.repos.StudentExercises.FindVisibleInScope(ctx, tx, repository.Scope{
				"student_id":         enrollment.StudentID,
				"course_exercise_id": exercise.ID,
			})
			if err != nil {
				return nil, err
			}
			for _, se := range copies {
				if err := s.studentOrder.RemoveExercise(ctx, tx, se); err != nil {
					return nil, err
				}
				sm, err := s.repos.StudentModules.FindByID(ctx, tx, se.StudentModuleID)
				if errors.Is(err, model.ErrNotFound) {
					continue
				}
				if err != nil {
					return nil, err
				}
				if err := s.rules.recomputeModule(ctx, tx, sm); err != nil {
					return nil, err
				}
			}
			_, err = s.rules.updateEnrollmentProgress(ctx, tx, enrollment.ID)
			return nil, err
		})
	if err != nil {
		return report, publicError(logger, "Fan-out failed after removing exercise", err)
	}
	return report, nil
}

// ReorderExercise はコース層を並べ替えてから全受講者へ並びを同期します。
func (s *courseService) ReorderExercise(ctx context.Context, courseExerciseID uuid.UUID, index int) ([]*model.CourseExercise, *SyncReport, error) {
	logger := middleware.GetLogger(ctx).With("service", "CourseService", "method", "ReorderExercise", "course_exercise_id", courseExerciseID)

	var (
		exercise *model.CourseExercise
		ordered  []*model.CourseExercise
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		exercise, err = s.repos.CourseExercises.FindByID(ctx, tx, courseExerciseID)
		if err != nil {
			return err
		}
		if _, err := s.exerciseOrder.Reorder(ctx, tx, exercise, index); err != nil {
			return err
		}
		ordered, err = s.exerciseOrder.Ordered(ctx, tx, exercise.CourseModuleID)
		return err
	})
	if err != nil {
		return nil, nil, publicError(logger, "Failed to reorder exercise", err)
	}
	logger.Info("Exercise reordered", "index", index)

	report, err := s.sync.SyncExerciseOrderToStudents(ctx, exercise.CourseModuleID)
	if err != nil {
		return ordered, report, publicError(logger, "Exercise order sync failed", err)
	}
	return ordered, report, nil
}

func (s *courseService) GetExercise(ctx context.Context, courseExerciseID uuid.UUID) (*model.CourseExercise, error) {
	return s.repos.CourseExercises.FindByID(ctx, s.db, courseExerciseID)
}

func (s *courseService) GetOrderedExercises(ctx context.Context, courseModuleID uuid.UUID) ([]*model.CourseExercise, error) {
	if _, err := s.repos.CourseModules.FindByID(ctx, s.db, courseModuleID); err != nil {
		return nil, err
	}
	return s.exerciseOrder.Ordered(ctx, s.db, courseModuleID)
}

// parseModuleStatus は教師が設定できる状態 (active / inactive) だけを受け付けます。
func parseModuleStatus(raw string) (model.ModuleStatus, error) {
	switch model.ModuleStatus(raw) {
	case model.ModuleStatusActive, model.ModuleStatusInactive:
		return model.ModuleStatus(raw), nil
	}
	return "", model.NewAppError(
		"INVALID_STATUS",
		fmt.Sprintf("モジュールのステータス %q は無効です。有効な値: active, inactive", raw),
		"status",
		fmt.Errorf("%w: %q", model.ErrInvalidStatus, raw),
	)
}
