// internal/service/library_service.go
package service

import (
	"context"
	"errors"

	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LibraryService はテンプレート層と教師層のモジュール・エクササイズを扱います。
// テンプレート層は公開ライブラリなので owner_id は uuid.Nil に揃えます。
type LibraryService interface {
	CreateModule(ctx context.Context, ownerID uuid.UUID, req *model.CreateLibraryModuleRequest) (*model.LibraryModule, error)
	GetModule(ctx context.Context, moduleID uuid.UUID) (*model.LibraryModule, error)
	ListModules(ctx context.Context, tier model.LibraryTier, ownerID uuid.UUID) ([]*model.LibraryModule, error)
	AddExercise(ctx context.Context, moduleID uuid.UUID, req *model.AddExerciseRequest) (*model.LibraryExercise, error)
	GetExercise(ctx context.Context, exerciseID uuid.UUID) (*model.LibraryExercise, error)
	RemoveExercise(ctx context.Context, exerciseID uuid.UUID) error
	ReorderExercise(ctx context.Context, exerciseID uuid.UUID, index int) ([]*model.LibraryExercise, error)
	GetOrderedExercises(ctx context.Context, moduleID uuid.UUID) ([]*model.LibraryExercise, error)
}

type libraryService struct {
	db           *gorm.DB
	moduleRepo   repository.LibraryModuleRepository
	exerciseRepo repository.LibraryExerciseRepository
	modules      chainList[*model.LibraryModule]
	exercises    chainList[*model.LibraryExercise]
}

func NewLibraryService(db *gorm.DB, moduleRepo repository.LibraryModuleRepository, exerciseRepo repository.LibraryExerciseRepository) LibraryService {
	return &libraryService{
		db:           db,
		moduleRepo:   moduleRepo,
		exerciseRepo: exerciseRepo,
		modules:      newChainList(moduleRepo, "libraryModules"),
		exercises:    newChainList(exerciseRepo, "libraryExercises"),
	}
}

// LibraryOwner はその階層でのスコープ所有者を返します。
func LibraryOwner(tier model.LibraryTier, ownerID uuid.UUID) uuid.UUID {
	if tier == model.LibraryTierTemplate {
		return uuid.Nil
	}
	return ownerID
}

func (s *libraryService) CreateModule(ctx context.Context, ownerID uuid.UUID, req *model.CreateLibraryModuleRequest) (*model.LibraryModule, error) {
	logger := middleware.GetLogger(ctx).With("service", "LibraryService", "method", "CreateModule")

	moduleType := req.Type
	if moduleType == "" {
		moduleType = model.ModuleTypeAll
	}
	module := &model.LibraryModule{
		ID:               uuid.New(),
		Tier:             req.Tier,
		OwnerID:          LibraryOwner(req.Tier, ownerID),
		Title:            req.Title,
		Description:      req.Description,
		EstimatedMinutes: req.EstimatedMinutes,
		Type:             moduleType,
		Status:           model.ModuleStatusActive,
		ExerciseIDs:      datatypes.JSONSlice[uuid.UUID]{},
		ChainLinks:       model.ChainLinks{Visible: true},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.moduleRepo.Create(ctx, tx, module); err != nil {
			return err
		}
		return s.modules.AppendToTail(ctx, tx, repository.LibraryModuleScope(module.Tier, module.OwnerID), module)
	})
	if err != nil {
		logger.Error("Failed to create library module", "error", err)
		return nil, model.ErrInternalServer
	}

	logger.Info("Library module created", "module_id", module.ID, "tier", module.Tier)
	return s.moduleRepo.FindByID(ctx, s.db, module.ID)
}

func (s *libraryService) GetModule(ctx context.Context, moduleID uuid.UUID) (*model.LibraryModule, error) {
	return s.moduleRepo.FindByID(ctx, s.db, moduleID)
}

func (s *libraryService) ListModules(ctx context.Context, tier model.LibraryTier, ownerID uuid.UUID) ([]*model.LibraryModule, error) {
	return s.modules.Ordered(ctx, s.db, repository.LibraryModuleScope(tier, LibraryOwner(tier, ownerID)))
}

func (s *libraryService) AddExercise(ctx context.Context, moduleID uuid.UUID, req *model.AddExerciseRequest) (*model.LibraryExercise, error) {
	logger := middleware.GetLogger(ctx).With("service", "LibraryService", "method", "AddExercise")

	exercise := &model.LibraryExercise{
		ID:              uuid.New(),
		LibraryModuleID: moduleID,
		ExerciseContent: contentFromRequest(req),
		ChainLinks:      model.ChainLinks{Visible: true},
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.moduleRepo.FindByID(ctx, tx, moduleID); err != nil {
			return err
		}
		if err := s.exerciseRepo.Create(ctx, tx, exercise); err != nil {
			return err
		}
		if err := s.exercises.AppendToTail(ctx, tx, repository.LibraryExerciseScope(moduleID), exercise); err != nil {
			return err
		}
		return s.refresh(ctx, tx, moduleID)
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		logger.Error("Failed to add library exercise", "error", err, "module_id", moduleID)
		return nil, model.ErrInternalServer
	}
	return s.exerciseRepo.FindByID(ctx, s.db, exercise.ID)
}

func (s *libraryService) GetExercise(ctx context.Context, exerciseID uuid.UUID) (*model.LibraryExercise, error) {
	return s.exerciseRepo.FindByID(ctx, s.db, exerciseID)
}

func (s *libraryService) RemoveExercise(ctx context.Context, exerciseID uuid.UUID) error {
	logger := middleware.GetLogger(ctx).With("service", "LibraryService", "method", "RemoveExercise")

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exercise, err := s.exerciseRepo.FindByID(ctx, tx, exerciseID)
		if err != nil {
			return err
		}
		if err := s.exercises.RemoveAndSplice(ctx, tx, repository.LibraryExerciseScope(exercise.LibraryModuleID), exercise); err != nil {
			return err
		}
		return s.refresh(ctx, tx, exercise.LibraryModuleID)
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return err
		}
		logger.Error("Failed to remove library exercise", "error", err, "exercise_id", exerciseID)
		return model.ErrInternalServer
	}
	return nil
}

func (s *libraryService) ReorderExercise(ctx context.Context, exerciseID uuid.UUID, index int) ([]*model.LibraryExercise, error) {
	logger := middleware.GetLogger(ctx).With("service", "LibraryService", "method", "ReorderExercise")

	var moduleID uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exercise, err := s.exerciseRepo.FindByID(ctx, tx, exerciseID)
		if err != nil {
			return err
		}
		moduleID = exercise.LibraryModuleID
		if _, _, err := s.exercises.ReorderByIndex(ctx, tx, repository.LibraryExerciseScope(moduleID), exerciseID, index); err != nil {
			return err
		}
		return s.refresh(ctx, tx, moduleID)
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		logger.Error("Failed to reorder library exercise", "error", err, "exercise_id", exerciseID)
		return nil, model.ErrInternalServer
	}
	return s.GetOrderedExercises(ctx, moduleID)
}

func (s *libraryService) GetOrderedExercises(ctx context.Context, moduleID uuid.UUID) ([]*model.LibraryExercise, error) {
	if _, err := s.moduleRepo.FindByID(ctx, s.db, moduleID); err != nil {
		return nil, err
	}
	return s.exercises.Ordered(ctx, s.db, repository.LibraryExerciseScope(moduleID))
}

// refresh は exercise_ids をチェーン順で書き直します。コースへのコピーはこの配列の順に行われます。
func (s *libraryService) refresh(ctx context.Context, db *gorm.DB, moduleID uuid.UUID) error {
	ordered, err := s.exercises.Ordered(ctx, db, repository.LibraryExerciseScope(moduleID))
	if err != nil {
		return err
	}
	return s.moduleRepo.Update(ctx, db, moduleID, map[string]interface{}{
		"exercise_ids": exerciseIDs(ordered),
	})
}

func contentFromRequest(req *model.AddExerciseRequest) model.ExerciseContent {
	return model.ExerciseContent{
		Title:      req.Title,
		Content:    req.Content,
		Type:       req.Type,
		Difficulty: req.Difficulty,
		MaxScore:   req.MaxScore,
	}
}
