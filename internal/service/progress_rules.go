package service

import (
	"context"
	"errors"
	"math"
	"time"

	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// progressRules は進捗の状態機械です。呼び出し側のトランザクション上で動きます。
type progressRules struct {
	repos        repository.Repositories
	studentOrder StudentOrderService
}

func newProgressRules(repos repository.Repositories) *progressRules {
	return &progressRules{
		repos:        repos,
		studentOrder: NewStudentOrderService(repos.StudentModules, repos.StudentExercises),
	}
}

// applyStatus は status を設定し、前後のエクササイズの解放・再ロック、モジュールと登録の集計まで行います。
func (p *progressRules) applyStatus(ctx context.Context, tx *gorm.DB, exercise *model.StudentExercise, status model.ExerciseStatus, score *float64) ([]*model.Event, error) {
	logger := middleware.GetLogger(ctx).With("student_exercise_id", exercise.ID, "status", status)

	module, err := p.repos.StudentModules.FindByID(ctx, tx, exercise.StudentModuleID)
	if err != nil {
		return nil, err
	}
	siblings, err := p.studentOrder.OrderedExercises(ctx, tx, module.ID)
	if err != nil {
		return nil, err
	}
	pos := -1
	for i, se := range siblings {
		if se.ID == exercise.ID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil, model.ErrNotFound
	}

	wasDone := exercise.Status.IsDone()
	updates := map[string]interface{}{"status": status}
	switch {
	case status.IsDone():
		now := time.Now()
		updates["completed_at"] = now
		updates["attempts"] = exercise.Attempts + 1
		if score != nil {
			updates["score"] = *score
			updates["scores"] = append(exercise.Scores, *score)
			if exercise.BestScore == nil || *score > *exercise.BestScore {
				updates["best_score"] = *score
			}
		}
	case status == model.ExerciseStatusPending:
		// 履歴 (scores, best_score, attempts) は残す
		updates["score"] = nil
		updates["completed_at"] = nil
	}
	if err := p.repos.StudentExercises.Update(ctx, tx, exercise.ID, updates); err != nil {
		return nil, err
	}

	switch {
	case status.IsDone():
		// 後ろのエクササイズを完了したら前の pending はすべて開く
		for _, se := range siblings[:pos] {
			if se.Status == model.ExerciseStatusPending {
				if err := p.setStatus(ctx, tx, se.ID, model.ExerciseStatusReady); err != nil {
					return nil, err
				}
			}
		}
		if module.Status != model.ModuleStatusInactive && pos+1 < len(siblings) {
			if next := siblings[pos+1]; next.Status == model.ExerciseStatusPending {
				if err := p.setStatus(ctx, tx, next.ID, model.ExerciseStatusReady); err != nil {
					return nil, err
				}
			}
		}
	case status == model.ExerciseStatusPending && module.Type != model.ModuleTypeAll:
		for _, se := range siblings[pos+1:] {
			if se.Status == model.ExerciseStatusReady {
				if err := p.setStatus(ctx, tx, se.ID, model.ExerciseStatusPending); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := p.recomputeModule(ctx, tx, module); err != nil {
		return nil, err
	}
	if _, err := p.updateEnrollmentProgress(ctx, tx, module.EnrollmentID); err != nil {
		return nil, err
	}

	var events []*model.Event
	if status.IsDone() && !wasDone {
		events = append(events, newEvent(model.EventExerciseCompleted, exercise.StudentID, exercise.CourseID, exercise.ID, exercise.Title,
			map[string]interface{}{"status": status, "score": score, "student_module_id": module.ID}))
	}
	logger.Debug("Exercise status applied", "position", pos, "siblings", len(siblings))
	return events, nil
}

func (p *progressRules) setStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status model.ExerciseStatus) error {
	return p.repos.StudentExercises.Update(ctx, tx, id, map[string]interface{}{"status": status})
}

// unlockModule はモジュールが有効化されたときにエクササイズを開きます。開いた数を返します。
// all: pending をすべて ready に。progress: 先頭と、直前が完了済みの pending を ready に。
func (p *progressRules) unlockModule(ctx context.Context, tx *gorm.DB, module *model.StudentModule) (int, error) {
	siblings, err := p.studentOrder.OrderedExercises(ctx, tx, module.ID)
	if err != nil {
		return 0, err
	}
	unlocked := 0
	for i, se := range siblings {
		if se.Status != model.ExerciseStatusPending {
			continue
		}
		open := module.Type == model.ModuleTypeAll || i == 0 || siblings[i-1].Status.IsDone()
		if !open {
			continue
		}
		if err := p.setStatus(ctx, tx, se.ID, model.ExerciseStatusReady); err != nil {
			return unlocked, err
		}
		unlocked++
	}
	return unlocked, nil
}

// positionalStatus は後から複製されたエクササイズの初期状態を並び上の位置から決めます。
func positionalStatus(module *model.StudentModule, siblings []*model.StudentExercise, pos int) model.ExerciseStatus {
	if module.Status == model.ModuleStatusInactive {
		return model.ExerciseStatusPending
	}
	if module.Type == model.ModuleTypeAll || pos == 0 || siblings[pos-1].Status.IsDone() {
		return model.ExerciseStatusReady
	}
	return model.ExerciseStatusPending
}

// recomputeModule はコース由来のエクササイズだけでモジュールの完了と進捗率を判定します。
func (p *progressRules) recomputeModule(ctx context.Context, tx *gorm.DB, module *model.StudentModule) error {
	siblings, err := p.studentOrder.OrderedExercises(ctx, tx, module.ID)
	if err != nil {
		return err
	}
	total, done := 0, 0
	for _, se := range siblings {
		if se.IsAdHoc() {
			continue
		}
		total++
		if se.Status.IsDone() {
			done++
		}
	}

	progress := 0
	if total > 0 {
		progress = int(math.Round(100 * float64(done) / float64(total)))
	}
	status := module.Status
	switch {
	case total > 0 && done == total:
		status = model.ModuleStatusCompleted
	case module.Status == model.ModuleStatusCompleted:
		// 完了が取り消されたらコースモジュールの状態に戻す
		status = model.ModuleStatusActive
		courseModule, err := p.repos.CourseModules.FindByID(ctx, tx, module.CourseModuleID)
		if err == nil && courseModule.Status == model.ModuleStatusInactive {
			status = model.ModuleStatusInactive
		} else if err != nil && !errors.Is(err, model.ErrNotFound) {
			return err
		}
	}

	if status == module.Status && progress == module.Progress {
		return nil
	}
	if err := p.repos.StudentModules.Update(ctx, tx, module.ID, map[string]interface{}{
		"status":   status,
		"progress": progress,
	}); err != nil {
		return err
	}
	module.Status, module.Progress = status, progress
	return nil
}

// updateEnrollmentProgress は登録の集計を決定的な順序 (モジュール順、その中のエクササイズ順) で作り直します。
// 平均点は得点のあるエクササイズだけで計算します。
func (p *progressRules) updateEnrollmentProgress(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID) (*model.Enrollment, error) {
	enrollment, err := p.repos.Enrollments.FindByID(ctx, tx, enrollmentID)
	if err != nil {
		return nil, err
	}
	modules, err := p.studentOrder.OrderedModules(ctx, tx, enrollment.StudentID, enrollment.CourseID)
	if err != nil {
		return nil, err
	}

	var (
		totalExercises, doneExercises, doneModules int
		scoreSum                                   float64
		scored                                     int
		scores                                     = make([]model.ExerciseScore, 0)
	)
	for _, m := range modules {
		if m.Status == model.ModuleStatusCompleted {
			doneModules++
		}
		exercises, err := p.studentOrder.OrderedExercises(ctx, tx, m.ID)
		if err != nil {
			return nil, err
		}
		for _, se := range exercises {
			totalExercises++
			if se.Status.IsDone() {
				doneExercises++
			}
			if se.Score != nil {
				scored++
				scoreSum += normalizedScore(*se.Score, se.MaxScore)
			}
			scores = append(scores, model.ExerciseScore{
				StudentExerciseID: se.ID,
				StudentModuleID:   m.ID,
				Status:            se.Status,
				Score:             se.Score,
				MaxScore:          se.MaxScore,
			})
		}
	}

	enrollment.TotalModules = len(modules)
	enrollment.CompletedModules = doneModules
	enrollment.TotalExercises = totalExercises
	enrollment.CompletedExercises = doneExercises
	enrollment.Progress = 0
	if totalExercises > 0 {
		enrollment.Progress = int(math.Round(100 * float64(doneExercises) / float64(totalExercises)))
	}
	enrollment.AverageScore = nil
	if scored > 0 {
		avg := scoreSum / float64(scored)
		enrollment.AverageScore = &avg
	}
	enrollment.ExerciseScores = scores

	if err := p.repos.Enrollments.Update(ctx, tx, enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// normalizedScore は満点に対する百分率です。満点が未設定なら素点をそのまま使います。
func normalizedScore(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return score
	}
	return score / maxScore * 100
}
