// internal/service/replication_service.go
package service

import (
	"context"
	"errors"

	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/ordering"
	"go_5_course_keep/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReplicationService は上位の層の内容を下位の層へ複製します。
// ID が付け替わるため、作成してからリンクする2段階で行います。
type ReplicationService interface {
	CopyModuleTreeToCourse(ctx context.Context, tx *gorm.DB, source *model.LibraryModule, courseID uuid.UUID, status model.ModuleStatus) (*model.CourseModule, error)
	CopyCourseContentToStudent(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment) error
	ReplicateModule(ctx context.Context, tx *gorm.DB, courseModule *model.CourseModule, enrollment *model.Enrollment) (*model.StudentModule, error)
	ReplicateExercise(ctx context.Context, tx *gorm.DB, courseExercise *model.CourseExercise, studentModule *model.StudentModule) (*model.StudentExercise, error)
}

type replicationService struct {
	repos         repository.Repositories
	moduleOrder   ModuleOrderService
	exerciseOrder ExerciseOrderService
	studentOrder  StudentOrderService
	sync          SyncService
}

func NewReplicationService(repos repository.Repositories, sync SyncService) ReplicationService {
	return &replicationService{
		repos:         repos,
		moduleOrder:   NewModuleOrderService(repos.CourseModules),
		exerciseOrder: NewExerciseOrderService(repos.CourseExercises, repos.CourseModules),
		studentOrder:  NewStudentOrderService(repos.StudentModules, repos.StudentExercises),
		sync:          sync,
	}
}

// CopyModuleTreeToCourse はライブラリのモジュールをコースの末尾へコピーします。
// エクササイズは exercise_ids 配列の順に1件ずつ末尾へ追加するので、配列の順がそのままコース上の順になります。
func (s *replicationService) CopyModuleTreeToCourse(ctx context.Context, tx *gorm.DB, source *model.LibraryModule, courseID uuid.UUID, status model.ModuleStatus) (*model.CourseModule, error) {
	logger := middleware.GetLogger(ctx).With("service", "ReplicationService", "source_module_id", source.ID, "course_id", courseID)

	if status == "" {
		status = model.ModuleStatusActive
	}
	tier := source.Tier
	sourceID := source.ID
	module := &model.CourseModule{
		ID:               uuid.New(),
		CourseID:         courseID,
		SourceModuleID:   &sourceID,
		SourceTier:       &tier,
		Title:            source.Title,
		Description:      source.Description,
		EstimatedMinutes: source.EstimatedMinutes,
		Type:             source.Type,
		Status:           status,
		ExerciseIDs:      datatypes.JSONSlice[uuid.UUID]{},
		ChainLinks:       model.ChainLinks{Visible: true},
	}
	if err := s.repos.CourseModules.Create(ctx, tx, module); err != nil {
		return nil, err
	}
	if err := s.moduleOrder.Append(ctx, tx, module); err != nil {
		return nil, err
	}

	copied := 0
	for _, exerciseID := range source.ExerciseIDs {
		src, err := s.repos.LibraryExercises.FindByID(ctx, tx, exerciseID)
		if errors.Is(err, model.ErrNotFound) {
			logger.Warn("Library exercise listed but missing, skipping", "exercise_id", exerciseID)
			continue
		}
		if err != nil {
			return nil, err
		}
		srcID := src.ID
		exercise := &model.CourseExercise{
			ID:               uuid.New(),
			CourseID:         courseID,
			CourseModuleID:   module.ID,
			SourceExerciseID: &srcID,
			ExerciseContent:  src.ExerciseContent,
			ChainLinks:       model.ChainLinks{Visible: true},
		}
		if err := s.repos.CourseExercises.Create(ctx, tx, exercise); err != nil {
			return nil, err
		}
		if err := s.exerciseOrder.Append(ctx, tx, exercise); err != nil {
			return nil, err
		}
		copied++
	}

	logger.Info("Module tree copied to course", "course_module_id", module.ID, "exercises", copied, "template", tier == model.LibraryTierTemplate)
	return s.repos.CourseModules.FindByID(ctx, tx, module.ID)
}

// CopyCourseContentToStudent はコースの内容を受講者の層へ丸ごと複製します。
//  1. コースモジュールごとに受講者モジュールを作る (リンクなし)
//  2. コースモジュールのリンクを ID 対応表で写す
//  3. モジュールごとにエクササイズを作ってからリンクし、初期状態を決める
func (s *replicationService) CopyCourseContentToStudent(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment) error {
	logger := middleware.GetLogger(ctx).With("service", "ReplicationService", "enrollment_id", enrollment.ID)

	courseModules, err := s.moduleOrder.Ordered(ctx, tx, enrollment.CourseID)
	if err != nil {
		return err
	}

	studentModules := make(map[uuid.UUID]*model.StudentModule, len(courseModules))
	for _, cm := range courseModules {
		sm := newStudentModule(cm, enrollment)
		if err := s.repos.StudentModules.Create(ctx, tx, sm); err != nil {
			return err
		}
		studentModules[cm.ID] = sm
	}

	for _, cm := range courseModules {
		sm := studentModules[cm.ID]
		if err := s.repos.StudentModules.UpdateLinks(ctx, tx, sm.ID, mapLink(cm.PreviousID, studentModules), mapLink(cm.NextID, studentModules)); err != nil {
			return err
		}
	}
	if _, err := s.studentOrder.HealModules(ctx, tx, enrollment.StudentID, enrollment.CourseID); err != nil {
		return err
	}

	exercises := 0
	for _, cm := range courseModules {
		n, err := s.copyExercises(ctx, tx, cm, studentModules[cm.ID])
		if err != nil {
			return err
		}
		exercises += n
	}

	logger.Info("Course content copied to student", "student_id", enrollment.StudentID, "modules", len(courseModules), "exercises", exercises)
	return nil
}

func (s *replicationService) copyExercises(ctx context.Context, tx *gorm.DB, cm *model.CourseModule, sm *model.StudentModule) (int, error) {
	courseExercises, err := s.exerciseOrder.Ordered(ctx, tx, cm.ID)
	if err != nil {
		return 0, err
	}

	created := make(map[uuid.UUID]*model.StudentExercise, len(courseExercises))
	for i, ce := range courseExercises {
		se := newStudentExercise(ce, sm, initialStatus(sm, i))
		if err := s.repos.StudentExercises.Create(ctx, tx, se); err != nil {
			return 0, err
		}
		created[ce.ID] = se
	}
	for _, ce := range courseExercises {
		se := created[ce.ID]
		if err := s.repos.StudentExercises.UpdateLinks(ctx, tx, se.ID, mapLink(ce.PreviousID, created), mapLink(ce.NextID, created)); err != nil {
			return 0, err
		}
	}
	if _, err := s.studentOrder.HealExercises(ctx, tx, sm.ID); err != nil {
		return 0, err
	}
	ordered, err := s.studentOrder.OrderedExercises(ctx, tx, sm.ID)
	if err != nil {
		return 0, err
	}
	if err := s.repos.StudentModules.Update(ctx, tx, sm.ID, map[string]interface{}{"exercise_ids": exerciseIDs(ordered)}); err != nil {
		return 0, err
	}
	return len(courseExercises), nil
}

// ReplicateModule は後から追加されたコースモジュールを1人の受講者へ複製し、並びを同期します。
func (s *replicationService) ReplicateModule(ctx context.Context, tx *gorm.DB, courseModule *model.CourseModule, enrollment *model.Enrollment) (*model.StudentModule, error) {
	sm := newStudentModule(courseModule, enrollment)
	if err := s.repos.StudentModules.Create(ctx, tx, sm); err != nil {
		return nil, err
	}
	if err := s.studentOrder.AppendModule(ctx, tx, sm); err != nil {
		return nil, err
	}
	if _, err := s.copyExercises(ctx, tx, courseModule, sm); err != nil {
		return nil, err
	}
	if err := s.sync.SyncStudentModules(ctx, tx, enrollment.CourseID, enrollment.StudentID); err != nil {
		return nil, err
	}
	return s.repos.StudentModules.FindByID(ctx, tx, sm.ID)
}

// ReplicateExercise は後から追加されたコースエクササイズを受講者モジュールへ複製します。
// 初期状態は同期後の位置から決めます。
func (s *replicationService) ReplicateExercise(ctx context.Context, tx *gorm.DB, courseExercise *model.CourseExercise, studentModule *model.StudentModule) (*model.StudentExercise, error) {
	se := newStudentExercise(courseExercise, studentModule, model.ExerciseStatusPending)
	if err := s.repos.StudentExercises.Create(ctx, tx, se); err != nil {
		return nil, err
	}
	// 同期の前に末尾へつないでチェーンを1本に保つ
	if err := s.studentOrder.AppendExercise(ctx, tx, se); err != nil {
		return nil, err
	}
	if err := s.sync.SyncStudentExercises(ctx, tx, courseExercise.CourseModuleID, studentModule); err != nil {
		return nil, err
	}

	siblings, err := s.studentOrder.OrderedExercises(ctx, tx, studentModule.ID)
	if err != nil {
		return nil, err
	}
	pos := ordering.IndexOf(ordering.Keys(siblings), se.ID)
	if pos >= 0 {
		if status := positionalStatus(studentModule, siblings, pos); status != se.Status {
			if err := s.repos.StudentExercises.Update(ctx, tx, se.ID, map[string]interface{}{"status": status}); err != nil {
				return nil, err
			}
		}
	}
	return s.repos.StudentExercises.FindByID(ctx, tx, se.ID)
}

// initialStatus は初回複製時の状態です。
// all: 全部 ready (モジュールが active でなければ pending)。progress: 先頭だけ ready。
func initialStatus(sm *model.StudentModule, pos int) model.ExerciseStatus {
	if sm.Status == model.ModuleStatusInactive {
		return model.ExerciseStatusPending
	}
	if sm.Type == model.ModuleTypeAll || pos == 0 {
		return model.ExerciseStatusReady
	}
	return model.ExerciseStatusPending
}

func newStudentModule(cm *model.CourseModule, enrollment *model.Enrollment) *model.StudentModule {
	return &model.StudentModule{
		ID:               uuid.New(),
		StudentID:        enrollment.StudentID,
		CourseID:         enrollment.CourseID,
		EnrollmentID:     enrollment.ID,
		CourseModuleID:   cm.ID,
		Title:            cm.Title,
		Description:      cm.Description,
		EstimatedMinutes: cm.EstimatedMinutes,
		Type:             cm.Type,
		Status:           cm.Status,
		ExerciseIDs:      datatypes.JSONSlice[uuid.UUID]{},
		ChainLinks:       model.ChainLinks{Visible: true},
	}
}

func newStudentExercise(ce *model.CourseExercise, sm *model.StudentModule, status model.ExerciseStatus) *model.StudentExercise {
	ceID := ce.ID
	return &model.StudentExercise{
		ID:               uuid.New(),
		StudentID:        sm.StudentID,
		CourseID:         sm.CourseID,
		StudentModuleID:  sm.ID,
		CourseExerciseID: &ceID,
		ExerciseContent:  ce.ExerciseContent,
		Status:           status,
		Scores:           datatypes.JSONSlice[float64]{},
		ChainLinks:       model.ChainLinks{Visible: true},
	}
}

// mapLink はコース側のリンク先を受講者側の ID に写します。対応が無ければ nil です。
func mapLink[T ordering.Node](id *uuid.UUID, mapped map[uuid.UUID]T) *uuid.UUID {
	if id == nil {
		return nil
	}
	n, ok := mapped[*id]
	if !ok {
		return nil
	}
	key := n.OrderKey()
	return &key
}
