package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/apply_go_server/internal/model"
	"github.com/qs3c/apply_go_server/internal/pkg/pubsub"
	"github.com/qs3c/apply_go_server/internal/repository"
)

// Recorder 把引擎的状态写回数据库，并推送事件
type Recorder struct {
	appRepo   *repository.ApplicationRepository
	logRepo   *repository.LogRepository
	publisher *pubsub.Publisher
	appID     int64
	workerID  string
}

func NewRecorder(
	appRepo *repository.ApplicationRepository,
	logRepo *repository.LogRepository,
	publisher *pubsub.Publisher,
	appID int64,
	workerID string,
) *Recorder {
	return &Recorder{
		appRepo:   appRepo,
		logRepo:   logRepo,
		publisher: publisher,
		appID:     appID,
		workerID:  workerID,
	}
}

func (r *Recorder) Log(ctx context.Context, level, state, message, ref string) {
	entry := &model.LogEntry{
		ApplicationID: r.appID,
		Level:         level,
		State:         state,
		Message:       message,
		ScreenshotRef: ref,
	}
	if err := r.logRepo.Append(entry); err != nil {
		zap.L().Error("append log failed",
			zap.Int64("application_id", r.appID),
			zap.String("state", state),
			zap.Error(err),
		)
	}

	r.publish(ctx, &pubsub.Event{
		Type:    pubsub.EventLog,
		State:   state,
		Level:   level,
		Message: message,
		At:      entry.CreatedAt,
	})
}

func (r *Recorder) SetPlatform(_ context.Context, platform string) {
	if _, err := r.appRepo.SetDetectedPlatform(r.appID, r.workerID, platform); err != nil {
		zap.L().Warn("set platform failed", zap.Int64("application_id", r.appID), zap.Error(err))
	}
}

func (r *Recorder) SetDetails(_ context.Context, jobTitle, company string) {
	if err := r.appRepo.UpdateDetails(r.appID, r.workerID, jobTitle, company); err != nil {
		zap.L().Warn("update details failed", zap.Int64("application_id", r.appID), zap.Error(err))
	}
}

func (r *Recorder) SetCredential(_ context.Context, credentialID int64) error {
	return r.appRepo.SetCredential(r.appID, r.workerID, credentialID)
}

// publish 推送失败只记录，不影响处理
func (r *Recorder) publish(ctx context.Context, ev *pubsub.Event) {
	if r.publisher == nil {
		return
	}
	ev.ApplicationID = r.appID
	ev.Worker = r.workerID
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if err := r.publisher.Publish(ctx, ev); err != nil {
		zap.L().Debug("publish event failed", zap.Int64("application_id", r.appID), zap.Error(err))
	}
}
