package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go_5_course_keep/internal/config"
	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

//go:generate mockery --name Notifier --output ./mocks --outpkg mocks --case=underscore

// Notifier は「エクササイズ完了」「モジュール解放」の事実を外部の通知コンポーネントへ渡します。
// 配信や既読管理は通知コンポーネント側の責務です。
type Notifier interface {
	Notify(ctx context.Context, event *model.Event) error
}

// --- LogNotifier ---
type LogNotifier struct{}

func (n *LogNotifier) Notify(ctx context.Context, event *model.Event) error {
	logger := middleware.GetLogger(ctx)
	logger.Info("--- Event (LogNotifier) ---",
		"type", event.Type,
		"student_id", event.StudentID,
		"course_id", event.CourseID,
		"subject_id", event.SubjectID,
		"title", event.Title,
	)
	return nil
}

// --- StoreNotifier ---
// outbox_events テーブルに追記し、通知コンポーネントはそこから読み出します。
type StoreNotifier struct {
	db        *gorm.DB
	eventRepo repository.EventRepository
}

func NewStoreNotifier(db *gorm.DB, eventRepo repository.EventRepository) *StoreNotifier {
	return &StoreNotifier{db: db, eventRepo: eventRepo}
}

func (n *StoreNotifier) Notify(ctx context.Context, event *model.Event) error {
	return n.eventRepo.Create(ctx, n.db, event)
}

// --- NewNotifier ファクトリ関数 ---
func NewNotifier(cfg *config.Config, db *gorm.DB, eventRepo repository.EventRepository) Notifier {
	logger := slog.Default()
	switch cfg.Notifier.Type {
	case "store":
		logger.Info("Initializing outbox notifier...")
		return NewStoreNotifier(db, eventRepo)
	case "ses":
		logger.Info("Initializing SES notifier...")
		return NewSESNotifier(cfg)
	case "log":
		logger.Info("Initializing Log notifier...")
		return &LogNotifier{}
	default:
		logger.Warn("Unknown notifier type, defaulting to LogNotifier", "type", cfg.Notifier.Type)
		return &LogNotifier{}
	}
}

func newEvent(eventType model.EventType, studentID, courseID, subjectID uuid.UUID, title string, payload map[string]interface{}) *model.Event {
	event := &model.Event{
		ID:        uuid.New(),
		Type:      eventType,
		StudentID: studentID,
		CourseID:  courseID,
		SubjectID: subjectID,
		Title:     title,
		CreatedAt: time.Now(),
	}
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			event.Payload = datatypes.JSON(b)
		}
	}
	return event
}

// emit はコミット後に呼びます。通知の失敗は本体の操作を失敗させません。
func emit(ctx context.Context, notifier Notifier, events []*model.Event) {
	if notifier == nil {
		return
	}
	logger := middleware.GetLogger(ctx)
	for _, e := range events {
		if err := notifier.Notify(ctx, e); err != nil {
			logger.Error("Failed to deliver event", "error", err, "type", e.Type, "subject_id", e.SubjectID)
		}
	}
}
