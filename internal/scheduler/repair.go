// Package scheduler は定期実行するバックグラウンドジョブです。
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/service"

	"github.com/robfig/cron/v3"
)

// RepairScheduler はチェーン修復ジョブを cron 式で定期実行します。
type RepairScheduler struct {
	cron   *cron.Cron
	repair service.ChainRepairService
	logger *slog.Logger
}

// NewRepairScheduler は schedule (標準の5フィールド cron 式) でジョブを登録します。
// 前回の実行が終わっていなければ次の実行は飛ばします。
func NewRepairScheduler(repair service.ChainRepairService, schedule string, logger *slog.Logger) (*RepairScheduler, error) {
	s := &RepairScheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		repair: repair,
		logger: logger.With("job", "chain_repair"),
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid repair schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *RepairScheduler) Start() {
	s.logger.Info("Repair scheduler started")
	s.cron.Start()
}

// Stop は新しい実行を止め、走っているジョブの終了か ctx の期限まで待ちます。
func (s *RepairScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Repair scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("Repair scheduler stop timed out", "error", ctx.Err())
	}
}

// RunOnce は修復を1回実行します。
func (s *RepairScheduler) RunOnce(ctx context.Context) *service.RepairReport {
	ctx = middleware.WithLogger(ctx, s.logger)
	report, err := s.repair.RepairAll(ctx)
	if err != nil {
		s.logger.Error("Chain repair failed", "error", err)
		return nil
	}
	s.logger.Info("Chain repair finished",
		"scopes", report.Scopes,
		"healed", report.Healed,
		"duplicates_removed", report.DuplicatesRemoved,
		"failed", report.Failed,
	)
	return report
}
