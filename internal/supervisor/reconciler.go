package supervisor

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/qs3c/apply_go_server/internal/model"
	"github.com/qs3c/apply_go_server/internal/pkg/pubsub"
	"github.com/qs3c/apply_go_server/internal/repository"
)

// 孤儿处理策略
const (
	PolicyFail    = "fail"
	PolicyRequeue = "requeue"
)

// LivenessChecker 通过心跳判断 worker 是否存活
type LivenessChecker interface {
	Alive(ctx context.Context, instance string) (bool, error)
}

// ReconcileResult 一次对账的处理数量
type ReconcileResult struct {
	Requeued int `json:"requeued"`
	Failed   int `json:"failed"`
}

// Reconciler 处理 owner 已不存在的 processing 申请
type Reconciler struct {
	appRepo   *repository.ApplicationRepository
	logRepo   *repository.LogRepository
	checker   LivenessChecker
	publisher *pubsub.Publisher
	policy    string
}

func NewReconciler(
	appRepo *repository.ApplicationRepository,
	logRepo *repository.LogRepository,
	checker LivenessChecker,
	publisher *pubsub.Publisher,
	policy string,
) *Reconciler {
	if policy != PolicyRequeue {
		policy = PolicyFail
	}
	return &Reconciler{
		appRepo:   appRepo,
		logRepo:   logRepo,
		checker:   checker,
		publisher: publisher,
		policy:    policy,
	}
}

// Reconcile live 返回 true 的 owner 视为存活，其余再看心跳
func (r *Reconciler) Reconcile(ctx context.Context, live func(instance string) bool) (*ReconcileResult, error) {
	apps, err := r.appRepo.ListProcessing()
	if err != nil {
		return nil, eris.Wrap(err, "supervisor: list processing")
	}

	result := &ReconcileResult{}
	for _, app := range apps {
		if live != nil && live(app.ClaimedBy) {
			continue
		}
		if r.heartbeatAlive(ctx, app.ClaimedBy) {
			continue
		}
		r.orphan(ctx, app, result)
	}

	if result.Requeued+result.Failed > 0 {
		zap.L().Info("reconciled orphaned applications",
			zap.String("policy", r.policy),
			zap.Int("requeued", result.Requeued),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}

// ReconcileWorker 被强制结束的 worker，不看心跳直接按策略处理
func (r *Reconciler) ReconcileWorker(ctx context.Context, instance string) (*ReconcileResult, error) {
	apps, err := r.appRepo.ListProcessingBy(instance)
	if err != nil {
		return nil, eris.Wrapf(err, "supervisor: list processing by %s", instance)
	}

	result := &ReconcileResult{}
	for _, app := range apps {
		r.orphan(ctx, app, result)
	}
	return result, nil
}

// FailWorker worker 意外退出，其处理中的申请标记为 worker 异常
func (r *Reconciler) FailWorker(ctx context.Context, instance, message string) (int, error) {
	apps, err := r.appRepo.ListProcessingBy(instance)
	if err != nil {
		return 0, eris.Wrapf(err, "supervisor: list processing by %s", instance)
	}

	failed := 0
	for _, app := range apps {
		if r.fail(ctx, app, model.ReasonWorkerException, message) {
			failed++
		}
	}
	return failed, nil
}

func (r *Reconciler) heartbeatAlive(ctx context.Context, instance string) bool {
	if r.checker == nil || instance == "" {
		return false
	}
	alive, err := r.checker.Alive(ctx, instance)
	if err != nil {
		// 无法确认时不动该申请
		zap.L().Warn("check worker heartbeat failed", zap.String("worker", instance), zap.Error(err))
		return true
	}
	return alive
}

func (r *Reconciler) orphan(ctx context.Context, app *model.Application, result *ReconcileResult) {
	if r.policy == PolicyRequeue {
		if r.requeue(ctx, app) {
			result.Requeued++
		}
		return
	}
	if r.fail(ctx, app, model.ReasonOrphaned, "worker no longer running") {
		result.Failed++
	}
}

func (r *Reconciler) requeue(ctx context.Context, app *model.Application) bool {
	if err := r.appRepo.Requeue(app.ID, app.ClaimedBy); err != nil {
		r.logSkip(app, err)
		return false
	}
	r.record(ctx, app.ID, model.LevelWarning, "re-queued after worker loss", model.StatusQueued, model.ReasonOrphaned)
	return true
}

func (r *Reconciler) fail(ctx context.Context, app *model.Application, reason, message string) bool {
	err := r.appRepo.Release(app.ID, app.ClaimedBy, repository.Outcome{
		Status:       model.StatusFailedWorkerException,
		Reason:       reason,
		ErrorMessage: message,
	})
	if err != nil {
		r.logSkip(app, err)
		return false
	}
	r.record(ctx, app.ID, model.LevelError, message, model.StatusFailedWorkerException, reason)
	return true
}

func (r *Reconciler) logSkip(app *model.Application, err error) {
	if errors.Is(err, repository.ErrNotOwner) {
		// worker 刚好自己结束了
		return
	}
	zap.L().Error("reconcile application failed",
		zap.Int64("application_id", app.ID),
		zap.String("worker", app.ClaimedBy),
		zap.Error(err),
	)
}

func (r *Reconciler) record(ctx context.Context, appID int64, level, message, status, reason string) {
	if err := r.logRepo.Append(&model.LogEntry{
		ApplicationID: appID,
		Level:         level,
		Message:       message,
	}); err != nil {
		zap.L().Error("append log failed", zap.Int64("application_id", appID), zap.Error(err))
	}

	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, &pubsub.Event{
		Type:          pubsub.EventStatus,
		ApplicationID: appID,
		Status:        status,
		Reason:        reason,
		Message:       message,
	}); err != nil {
		zap.L().Debug("publish event failed", zap.Int64("application_id", appID), zap.Error(err))
	}
}
