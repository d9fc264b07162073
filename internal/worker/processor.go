package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/apply_go_server/internal/automation"
	"github.com/qs3c/apply_go_server/internal/model"
	"github.com/qs3c/apply_go_server/internal/pkg/notify"
	"github.com/qs3c/apply_go_server/internal/pkg/pubsub"
	"github.com/qs3c/apply_go_server/internal/repository"
)

// SessionFactory 为每个申请打开独立的浏览器会话
type SessionFactory interface {
	NewSession() (automation.Driver, error)
}

// Engine 执行自动化流程，由 automation.Engine 实现
type Engine interface {
	Run(ctx context.Context, d automation.Driver, job automation.Job, rec automation.Recorder) automation.Outcome
}

// Processor 处理单个已领取的申请
type Processor struct {
	appRepo     *repository.ApplicationRepository
	logRepo     *repository.LogRepository
	engine      Engine
	sessions    SessionFactory
	publisher   *pubsub.Publisher
	notifier    notify.Notifier
	workerID    string
	itemTimeout time.Duration
}

func NewProcessor(
	appRepo *repository.ApplicationRepository,
	logRepo *repository.LogRepository,
	engine Engine,
	sessions SessionFactory,
	publisher *pubsub.Publisher,
	notifier notify.Notifier,
	workerID string,
	itemTimeout time.Duration,
) *Processor {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if itemTimeout <= 0 {
		itemTimeout = 15 * time.Minute
	}
	return &Processor{
		appRepo:     appRepo,
		logRepo:     logRepo,
		engine:      engine,
		sessions:    sessions,
		publisher:   publisher,
		notifier:    notifier,
		workerID:    workerID,
		itemTimeout: itemTimeout,
	}
}

// Process 运行引擎并写入终态，调用方的取消不会中断当前申请
func (p *Processor) Process(ctx context.Context, app *model.Application) automation.Outcome {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.itemTimeout)
	defer cancel()

	rec := NewRecorder(p.appRepo, p.logRepo, p.publisher, app.ID, p.workerID)
	log := zap.L().With(zap.Int64("application_id", app.ID), zap.String("worker", p.workerID))
	log.Info("processing application", zap.String("url", app.URL))

	out := p.run(ctx, app, rec)

	if err := p.appRepo.Release(app.ID, p.workerID, repository.Outcome{
		Status:           out.Status,
		Reason:           out.Reason,
		ErrorMessage:     errorMessage(out),
		ReviewScreenshot: out.Screenshot,
	}); err != nil {
		if errors.Is(err, repository.ErrNotOwner) {
			// 已被对账处理，不覆盖
			log.Warn("application no longer owned, outcome dropped", zap.String("status", out.Status))
			return out
		}
		log.Error("release application failed", zap.Error(err))
		return out
	}

	log.Info("application finished", zap.String("status", out.Status), zap.String("reason", out.Reason))
	rec.publish(ctx, &pubsub.Event{
		Type:    pubsub.EventStatus,
		Status:  out.Status,
		Reason:  out.Reason,
		Message: out.Message,
	})
	p.notify(ctx, app, out)
	return out
}

// run 浏览器启动失败和 panic 都视为 worker 异常
func (p *Processor) run(ctx context.Context, app *model.Application, rec *Recorder) (out automation.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("automation panicked",
				zap.Int64("application_id", app.ID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			out = workerException(fmt.Sprintf("worker panic: %v", r))
			rec.Log(ctx, model.LevelError, "", out.Message, "")
		}
	}()

	session, err := p.sessions.NewSession()
	if err != nil {
		out = workerException("browser launch failed: " + err.Error())
		rec.Log(ctx, model.LevelError, "", out.Message, "")
		return out
	}
	defer func() {
		if err := session.Close(); err != nil {
			zap.L().Warn("close browser session failed", zap.Int64("application_id", app.ID), zap.Error(err))
		}
	}()

	return p.engine.Run(ctx, session, automation.Job{ApplicationID: app.ID, URL: app.URL}, rec)
}

func workerException(msg string) automation.Outcome {
	return automation.Outcome{
		Status:  model.StatusFailedWorkerException,
		Reason:  model.ReasonWorkerException,
		Message: msg,
	}
}

// errorMessage 只有失败状态才写入错误信息
func errorMessage(out automation.Outcome) string {
	if model.IsFailure(out.Status) {
		return out.Message
	}
	return ""
}

// notify 需要人工介入时通知
func (p *Processor) notify(ctx context.Context, app *model.Application, out automation.Outcome) {
	if out.Status != model.StatusPendingReview && !model.IsFailure(out.Status) {
		return
	}

	n := notify.Notice{
		ApplicationID: app.ID,
		URL:           app.URL,
		Status:        out.Status,
		Reason:        out.Reason,
		Message:       out.Message,
	}
	if fresh, err := p.appRepo.GetByID(app.ID); err == nil {
		n.JobTitle, n.CompanyName = fresh.JobTitle, fresh.CompanyName
	}

	if err := p.notifier.Notify(ctx, n); err != nil {
		zap.L().Warn("notify failed", zap.Int64("application_id", app.ID), zap.Error(err))
	}
}
