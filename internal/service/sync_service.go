// internal/service/sync_service.go
package service

import (
	"context"
	"errors"
	"fmt"

	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/ordering"
	"go_5_course_keep/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncReport はファンアウトの結果です。失敗した受講者がいても他の受講者の処理は続けます。
type SyncReport struct {
	Students int         `json:"students"`
	Failed   []uuid.UUID `json:"failed,omitempty"`
}

// StudentFunc は受講者1人分の処理です。受講者ごとに1トランザクションで実行されます。
// 返したイベントはコミット後に通知されます。
type StudentFunc func(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment) ([]*model.Event, error)

type SyncService interface {
	SyncModuleOrderToStudents(ctx context.Context, courseID uuid.UUID) (*SyncReport, error)
	SyncExerciseOrderToStudents(ctx context.Context, courseModuleID uuid.UUID) (*SyncReport, error)
	SyncStudentModules(ctx context.Context, tx *gorm.DB, courseID, studentID uuid.UUID) error
	SyncStudentExercises(ctx context.Context, tx *gorm.DB, courseModuleID uuid.UUID, studentModule *model.StudentModule) error
	ForEachEnrolled(ctx context.Context, courseID uuid.UUID, op string, fn StudentFunc) (*SyncReport, error)
}

type syncService struct {
	db            *gorm.DB
	repos         repository.Repositories
	directory     EnrollmentDirectory
	notifier      Notifier
	moduleOrder   ModuleOrderService
	exerciseOrder ExerciseOrderService
	studentOrder  StudentOrderService
	failFast      bool
}

func NewSyncService(db *gorm.DB, repos repository.Repositories, directory EnrollmentDirectory, notifier Notifier, failFast bool) SyncService {
	return &syncService{
		db:            db,
		repos:         repos,
		directory:     directory,
		notifier:      notifier,
		moduleOrder:   NewModuleOrderService(repos.CourseModules),
		exerciseOrder: NewExerciseOrderService(repos.CourseExercises, repos.CourseModules),
		studentOrder:  NewStudentOrderService(repos.StudentModules, repos.StudentExercises),
		failFast:      failFast,
	}
}

// ForEachEnrolled は登録中の受講者を順番に処理します (並列にはしない)。
func (s *syncService) ForEachEnrolled(ctx context.Context, courseID uuid.UUID, op string, fn StudentFunc) (*SyncReport, error) {
	logger := middleware.GetLogger(ctx).With("service", "SyncService", "op", op, "course_id", courseID)

	students, err := s.directory.EnrolledStudents(ctx, courseID)
	if err != nil {
		logger.Error("Failed to load enrolled students", "error", err)
		return nil, fmt.Errorf("SyncService.ForEachEnrolled: %w", err)
	}

	report := &SyncReport{Students: len(students)}
	for _, studentID := range students {
		var events []*model.Event
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			enrollment, err := s.repos.Enrollments.FindActive(ctx, tx, courseID, studentID)
			if err != nil {
				return err
			}
			events, err = fn(ctx, tx, enrollment)
			return err
		})
		if err != nil {
			report.Failed = append(report.Failed, studentID)
			logger.Warn("Fan-out failed for student, continuing", "student_id", studentID, "error", err)
			if s.failFast {
				return report, fmt.Errorf("SyncService.%s: student %s: %w", op, studentID, err)
			}
			continue
		}
		emit(ctx, s.notifier, events)
	}

	if len(report.Failed) > 0 {
		logger.Warn("Fan-out finished with failures", "students", report.Students, "failed", len(report.Failed))
	} else {
		logger.Info("Fan-out finished", "students", report.Students)
	}
	return report, nil
}

func (s *syncService) SyncModuleOrderToStudents(ctx context.Context, courseID uuid.UUID) (*SyncReport, error) {
	return s.ForEachEnrolled(ctx, courseID, "SyncModuleOrderToStudents",
		func(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment) ([]*model.Event, error) {
			return nil, s.SyncStudentModules(ctx, tx, courseID, enrollment.StudentID)
		})
}

func (s *syncService) SyncExerciseOrderToStudents(ctx context.Context, courseModuleID uuid.UUID) (*SyncReport, error) {
	courseModule, err := s.repos.CourseModules.FindByID(ctx, s.db, courseModuleID)
	if err != nil {
		return nil, err
	}
	return s.ForEachEnrolled(ctx, courseModule.CourseID, "SyncExerciseOrderToStudents",
		func(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment) ([]*model.Event, error) {
			studentModule, err := s.repos.StudentModules.FindOne(ctx, tx, repository.Scope{
				"student_id":       enrollment.StudentID,
				"course_module_id": courseModuleID,
			})
			if errors.Is(err, model.ErrNotFound) {
				// 受講者側に無いモジュールは複製の責務なのでここでは作らない
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			return nil, s.SyncStudentExercises(ctx, tx, courseModuleID, studentModule)
		})
}

// SyncStudentModules はコース層のモジュール順を1人の受講者のモジュールチェーンに写します。
// 対応するコースモジュールが無い受講者モジュールは現在の相対順のまま後ろに残ります。
func (s *syncService) SyncStudentModules(ctx context.Context, tx *gorm.DB, courseID, studentID uuid.UUID) error {
	courseModules, err := s.moduleOrder.Ordered(ctx, tx, courseID)
	if err != nil {
		return err
	}
	studentModules, err := s.studentOrder.OrderedModules(ctx, tx, studentID, courseID)
	if err != nil {
		return err
	}

	mapping := make(map[uuid.UUID]uuid.UUID, len(studentModules))
	for _, sm := range studentModules {
		if _, ok := mapping[sm.CourseModuleID]; !ok {
			mapping[sm.CourseModuleID] = sm.ID
		}
	}
	order := ordering.Project(ordering.Keys(courseModules), mapping, ordering.Keys(studentModules))
	return s.studentOrder.WriteModuleOrder(ctx, tx, studentModules, order)
}

// SyncStudentExercises はコース層のエクササイズ順を受講者モジュールに写し、
// アドホックなエクササイズの連続区間を元の位置の近くへ差し戻します。
func (s *syncService) SyncStudentExercises(ctx context.Context, tx *gorm.DB, courseModuleID uuid.UUID, studentModule *model.StudentModule) error {
	courseExercises, err := s.exerciseOrder.Ordered(ctx, tx, courseModuleID)
	if err != nil {
		return err
	}
	studentExercises, err := s.studentOrder.OrderedExercises(ctx, tx, studentModule.ID)
	if err != nil {
		return err
	}

	entries := make([]ordering.Entry, len(studentExercises))
	for i, se := range studentExercises {
		entries[i] = ordering.Entry{ID: se.ID, Anchor: se.CourseExerciseID}
	}
	order := ordering.MergeAdHoc(ordering.Keys(courseExercises), entries)
	return s.studentOrder.WriteExerciseOrder(ctx, tx, studentModule.ID, studentExercises, order)
}
