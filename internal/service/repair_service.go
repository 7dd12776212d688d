// internal/service/repair_service.go
package service

import (
	"context"
	"fmt"

	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/ordering"
	"go_5_course_keep/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RepairReport は修復ジョブ1回分の結果です。
type RepairReport struct {
	Scopes            int `json:"scopes"`
	Healed            int `json:"healed"`
	DuplicatesRemoved int `json:"duplicates_removed"`
	Failed            int `json:"failed"`
}

// ChainRepairService は全スコープを走査して壊れたチェーンを書き直します。
// 読み出しは壊れていても全順序を返すので、これは定期的な掃除です。
type ChainRepairService interface {
	RepairAll(ctx context.Context) (*RepairReport, error)
}

type chainRepairService struct {
	db               *gorm.DB
	repos            repository.Repositories
	moduleOrder      ModuleOrderService
	exerciseOrder    ExerciseOrderService
	studentOrder     StudentOrderService
	libraryModules   chainList[*model.LibraryModule]
	libraryExercises chainList[*model.LibraryExercise]
	rules            *progressRules
}

func NewChainRepairService(db *gorm.DB, repos repository.Repositories) ChainRepairService {
	return &chainRepairService{
		db:               db,
		repos:            repos,
		moduleOrder:      NewModuleOrderService(repos.CourseModules),
		exerciseOrder:    NewExerciseOrderService(repos.CourseExercises, repos.CourseModules),
		studentOrder:     NewStudentOrderService(repos.StudentModules, repos.StudentExercises),
		libraryModules:   newChainList(repos.LibraryModules, "libraryModules"),
		libraryExercises: newChainList(repos.LibraryExercises, "libraryExercises"),
		rules:            newProgressRules(repos),
	}
}

// RepairAll はスコープ単位のトランザクションで修復し、失敗したスコープは飛ばして続けます。
func (s *chainRepairService) RepairAll(ctx context.Context) (*RepairReport, error) {
	logger := middleware.GetLogger(ctx).With("service", "ChainRepairService")
	report := &RepairReport{}

	courses, err := s.repos.Courses.FindAll(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("ChainRepairService.RepairAll: %w", err)
	}
	for _, course := range courses {
		s.run(ctx, report, "course", course.ID, func(tx *gorm.DB) error {
			return s.repairCourse(ctx, tx, course.ID, report)
		})
	}

	owners, err := s.libraryOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("ChainRepairService.RepairAll: %w", err)
	}
	for _, scope := range owners {
		s.run(ctx, report, "library", uuid.Nil, func(tx *gorm.DB) error {
			return s.repairLibrary(ctx, tx, scope, report)
		})
	}

	enrollments, err := s.repos.Enrollments.FindAllActive(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("ChainRepairService.RepairAll: %w", err)
	}
	for _, enrollment := range enrollments {
		s.run(ctx, report, "enrollment", enrollment.ID, func(tx *gorm.DB) error {
			return s.repairEnrollment(ctx, tx, enrollment, report)
		})
	}

	logger.Info("Chain repair finished",
		"scopes", report.Scopes, "healed", report.Healed,
		"duplicates_removed", report.DuplicatesRemoved, "failed", report.Failed)
	return report, nil
}

func (s *chainRepairService) run(ctx context.Context, report *RepairReport, kind string, id uuid.UUID, fn func(tx *gorm.DB) error) {
	if err := s.db.WithContext(ctx).Transaction(fn); err != nil {
		report.Failed++
		middleware.GetLogger(ctx).Error("Chain repair failed, skipping", "kind", kind, "id", id, "error", err)
	}
}

func (s *chainRepairService) count(report *RepairReport, healed bool) {
	report.Scopes++
	if healed {
		report.Healed++
	}
}

func (s *chainRepairService) repairCourse(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, report *RepairReport) error {
	healed, err := s.moduleOrder.Heal(ctx, tx, courseID)
	if err != nil {
		return err
	}
	s.count(report, healed)

	modules, err := s.moduleOrder.Ordered(ctx, tx, courseID)
	if err != nil {
		return err
	}
	for _, m := range modules {
		healed, err := s.exerciseOrder.Heal(ctx, tx, m.ID)
		if err != nil {
			return err
		}
		s.count(report, healed)
	}
	return nil
}

// libraryOwners はテンプレート層と、モジュールを持つ教師ごとのスコープを返します。
func (s *chainRepairService) libraryOwners(ctx context.Context) ([]repository.Scope, error) {
	scopes := []repository.Scope{repository.LibraryModuleScope(model.LibraryTierTemplate, uuid.Nil)}

	teacherModules, err := s.repos.LibraryModules.FindVisibleInScope(ctx, s.db, repository.Scope{"tier": string(model.LibraryTierTeacher)})
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]bool)
	for _, m := range teacherModules {
		if seen[m.OwnerID] {
			continue
		}
		seen[m.OwnerID] = true
		scopes = append(scopes, repository.LibraryModuleScope(model.LibraryTierTeacher, m.OwnerID))
	}
	return scopes, nil
}

func (s *chainRepairService) repairLibrary(ctx context.Context, tx *gorm.DB, scope repository.Scope, report *RepairReport) error {
	healed, err := s.libraryModules.Heal(ctx, tx, scope)
	if err != nil {
		return err
	}
	s.count(report, healed)

	modules, err := s.libraryModules.Ordered(ctx, tx, scope)
	if err != nil {
		return err
	}
	for _, m := range modules {
		exerciseScope := repository.LibraryExerciseScope(m.ID)
		healed, err := s.libraryExercises.Heal(ctx, tx, exerciseScope)
		if err != nil {
			return err
		}
		s.count(report, healed)

		// exercise_ids はコピーの順序の元になるので、壊れていなくても揃えておく
		ordered, err := s.libraryExercises.Ordered(ctx, tx, exerciseScope)
		if err != nil {
			return err
		}
		ids := ordering.Keys(ordered)
		if !sameOrder(m.ExerciseIDs, ids) {
			if err := s.repos.LibraryModules.Update(ctx, tx, m.ID, map[string]interface{}{"exercise_ids": exerciseIDs(ordered)}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *chainRepairService) repairEnrollment(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment, report *RepairReport) error {
	healed, err := s.studentOrder.HealModules(ctx, tx, enrollment.StudentID, enrollment.CourseID)
	if err != nil {
		return err
	}
	s.count(report, healed)
	changed := healed

	modules, err := s.studentOrder.OrderedModules(ctx, tx, enrollment.StudentID, enrollment.CourseID)
	if err != nil {
		return err
	}
	for _, m := range modules {
		removed, err := s.removeDuplicates(ctx, tx, m.ID)
		if err != nil {
			return err
		}
		report.DuplicatesRemoved += removed

		healed, err := s.studentOrder.HealExercises(ctx, tx, m.ID)
		if err != nil {
			return err
		}
		s.count(report, healed)
		if removed > 0 || healed {
			changed = true
			if err := s.rules.recomputeModule(ctx, tx, m); err != nil {
				return err
			}
		}
	}

	if changed {
		if _, err := s.rules.updateEnrollmentProgress(ctx, tx, enrollment.ID); err != nil {
			return err
		}
	}
	return nil
}

// removeDuplicates は同じコースエクササイズに対応する受講者エクササイズのうち最古の1件だけを残します。
// 重複を抜いた現在の並びで残りをつなぎ直すので、アドホックの位置や並べ替えは保たれます。
func (s *chainRepairService) removeDuplicates(ctx context.Context, tx *gorm.DB, studentModuleID uuid.UUID) (int, error) {
	exercises, err := s.studentOrder.OrderedExercises(ctx, tx, studentModuleID)
	if err != nil {
		return 0, err
	}
	groups := make(map[uuid.UUID][]*model.StudentExercise)
	for _, se := range exercises {
		if se.IsAdHoc() {
			continue
		}
		groups[*se.CourseExerciseID] = append(groups[*se.CourseExerciseID], se)
	}

	drop := make(map[uuid.UUID]bool)
	for courseExerciseID, group := range groups {
		if len(group) < 2 {
			continue
		}
		for _, dup := range ordering.ByCreation(group)[1:] {
			drop[dup.ID] = true
		}
		middleware.GetLogger(ctx).Warn("Duplicate student exercises removed",
			"student_module_id", studentModuleID, "course_exercise_id", courseExerciseID, "removed", len(group)-1)
	}
	if len(drop) == 0 {
		return 0, nil
	}

	survivors := make([]*model.StudentExercise, 0, len(exercises)-len(drop))
	for _, se := range exercises {
		if drop[se.ID] {
			if err := s.repos.StudentExercises.HardDelete(ctx, tx, se.ID); err != nil {
				return 0, err
			}
			continue
		}
		survivors = append(survivors, se)
	}
	if err := s.studentOrder.WriteExerciseOrder(ctx, tx, studentModuleID, survivors, ordering.Keys(survivors)); err != nil {
		return 0, err
	}
	return len(drop), nil
}

func sameOrder(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
