package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/apply_go_server/internal/model"
	"github.com/qs3c/apply_go_server/internal/pkg/queue"
	"github.com/qs3c/apply_go_server/internal/repository"
)

// Runner worker 进程的领取循环，一次只处理一个申请
type Runner struct {
	appRepo      *repository.ApplicationRepository
	wake         *queue.Queue
	processor    *Processor
	workerID     string
	pid          int
	pollInterval time.Duration
}

func NewRunner(
	appRepo *repository.ApplicationRepository,
	wake *queue.Queue,
	processor *Processor,
	workerID string,
	pid int,
	pollInterval time.Duration,
) *Runner {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Runner{
		appRepo:      appRepo,
		wake:         wake,
		processor:    processor,
		workerID:     workerID,
		pid:          pid,
		pollInterval: pollInterval,
	}
}

// Run ctx 取消后不再领取新申请，正在处理的申请会先完成
func (r *Runner) Run(ctx context.Context) {
	log := zap.L().With(zap.String("worker", r.workerID), zap.Int("pid", r.pid))
	log.Info("worker started")

	for ctx.Err() == nil {
		app, err := r.claim()
		if err != nil {
			log.Error("claim failed", zap.Error(err))
			r.idle(ctx)
			continue
		}
		if app == nil {
			r.idle(ctx)
			continue
		}
		r.processor.Process(ctx, app)
	}

	log.Info("worker stopped")
}

func (r *Runner) claim() (*model.Application, error) {
	return r.appRepo.Claim(r.workerID, r.pid)
}

// idle 等待唤醒提示或轮询间隔
func (r *Runner) idle(ctx context.Context) {
	if r.wake != nil {
		if _, err := r.wake.Pop(ctx, r.pollInterval); err != nil && ctx.Err() == nil {
			zap.L().Debug("wait for wake hint failed", zap.String("worker", r.workerID), zap.Error(err))
			r.sleep(ctx)
		}
		return
	}
	r.sleep(ctx)
}

func (r *Runner) sleep(ctx context.Context) {
	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
