package cron

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/apply_go_server/internal/model/dto"
	"github.com/qs3c/apply_go_server/internal/pkg/screenshot"
	"github.com/qs3c/apply_go_server/internal/supervisor"
)

// Reconciler 周期性处理孤儿申请，由 supervisor.Manager 实现
type Reconciler interface {
	Status() *dto.ManagerStatus
	Reconcile(ctx context.Context) (*supervisor.ReconcileResult, error)
}

type Service struct {
	reconciler    Reconciler
	sweepInterval time.Duration
	screenshotDir string
	retention     time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// NewService retentionDays 为 0 表示不清理本地截图
func NewService(reconciler Reconciler, sweepInterval time.Duration, screenshotDir string, retentionDays int) *Service {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &Service{
		reconciler:    reconciler,
		sweepInterval: sweepInterval,
		screenshotDir: screenshotDir,
		retention:     time.Duration(retentionDays) * 24 * time.Hour,
		stopChan:      make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	s.wg.Add(2)
	go s.runSweep()
	go s.runCleanup()
	zap.L().Info("cron service started",
		zap.Duration("sweep_interval", s.sweepInterval),
		zap.Duration("screenshot_retention", s.retention),
	)
}

// Stop 停止定时任务，可重复调用
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		zap.L().Info("cron service stopped")
	})
}

// runSweep 定期对账
func (s *Service) runSweep() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep 执行一次对账，只有持有单例锁且正在运行的管理器才对账
func (s *Service) Sweep() {
	if s.reconciler == nil {
		return
	}
	if state := s.reconciler.Status().ManagerStatus; state != supervisor.StatusRunning {
		zap.L().Debug("skip reconciliation, task manager not running", zap.String("state", state))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.sweepInterval)
	defer cancel()

	if _, err := s.reconciler.Reconcile(ctx); err != nil {
		zap.L().Error("periodic reconciliation failed", zap.Error(err))
	}
}

// runCleanup 每小时清理一次过期截图
func (s *Service) runCleanup() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.CleanupScreenshots(time.Now())
		}
	}
}

// CleanupScreenshots 删除早于保留期的本地截图
func (s *Service) CleanupScreenshots(now time.Time) int {
	if s.screenshotDir == "" || s.retention <= 0 {
		return 0
	}

	removed, err := screenshot.Cleanup(s.screenshotDir, now.Add(-s.retention))
	if err != nil {
		zap.L().Warn("screenshot cleanup failed", zap.String("dir", s.screenshotDir), zap.Error(err))
	}
	if removed > 0 {
		zap.L().Info("screenshot cleanup", zap.Int("removed", removed))
	}
	return removed
}
