package service

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/apply_go_server/config"
	"github.com/qs3c/apply_go_server/internal/model"
	"github.com/qs3c/apply_go_server/internal/model/dto"
	"github.com/qs3c/apply_go_server/internal/pkg/oss"
	"github.com/qs3c/apply_go_server/internal/pkg/queue"
	"github.com/qs3c/apply_go_server/internal/pkg/screenshot"
	"github.com/qs3c/apply_go_server/internal/repository"
)

var (
	ErrApplicationNotFound = errors.New("申请不存在")
	ErrNoValidURL          = errors.New("没有有效的职位链接")
	ErrNotPendingReview    = errors.New("申请不在待审核状态")
	ErrInvalidOutcome      = errors.New("无效的处理结果")
	ErrNotRetryable        = errors.New("申请仍在队列或处理中")
	ErrScreenshotNotFound  = errors.New("截图不存在")
)

// 跳过原因
const (
	SkipBlank      = "blank"
	SkipInvalidURL = "invalid_url"
)

type ApplicationService struct {
	appRepo   *repository.ApplicationRepository
	logRepo   *repository.LogRepository
	wake      *queue.Queue
	ossClient *oss.Client
	cfg       *config.Config
}

func NewApplicationService(
	appRepo *repository.ApplicationRepository,
	logRepo *repository.LogRepository,
	wake *queue.Queue,
	ossClient *oss.Client,
	cfg *config.Config,
) *ApplicationService {
	return &ApplicationService{
		appRepo:   appRepo,
		logRepo:   logRepo,
		wake:      wake,
		ossClient: ossClient,
		cfg:       cfg,
	}
}

// validURL 只接受带主机名的 http(s) 绝对地址
func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Enqueue 批量入队，无效链接跳过并返回原因
func (s *ApplicationService) Enqueue(ctx context.Context, urls []string) (*dto.EnqueueResponse, error) {
	resp := &dto.EnqueueResponse{
		ApplicationIDs: []int64{},
		Skipped:        []dto.SkippedURL{},
	}

	var apps []*model.Application
	for _, raw := range urls {
		u := strings.TrimSpace(raw)
		switch {
		case u == "":
			resp.Skipped = append(resp.Skipped, dto.SkippedURL{URL: raw, Reason: SkipBlank})
			continue
		case !validURL(u):
			resp.Skipped = append(resp.Skipped, dto.SkippedURL{URL: raw, Reason: SkipInvalidURL})
			continue
		}
		apps = append(apps, &model.Application{
			URL:         u,
			JobTitle:    "unknown",
			CompanyName: "unknown",
			Status:      model.StatusQueued,
		})
	}

	if len(apps) == 0 {
		return resp, ErrNoValidURL
	}
	if err := s.appRepo.CreateBatch(apps); err != nil {
		return nil, err
	}

	for _, app := range apps {
		resp.ApplicationIDs = append(resp.ApplicationIDs, app.ID)
		s.notifyWorkers(ctx, app)
	}
	return resp, nil
}

// notifyWorkers 唤醒空闲 worker，失败只影响延迟，不影响正确性
func (s *ApplicationService) notifyWorkers(ctx context.Context, app *model.Application) {
	if s.wake == nil {
		return
	}
	if err := s.wake.Push(ctx, &queue.Message{ApplicationID: app.ID, URL: app.URL}); err != nil {
		zap.L().Warn("push wake hint failed", zap.Int64("application_id", app.ID), zap.Error(err))
	}
}

func (s *ApplicationService) getApp(id int64) (*model.Application, error) {
	app, err := s.appRepo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrApplicationNotFound
	}
	return app, err
}

func toDetail(app *model.Application, lastLog string) *dto.ApplicationDetail {
	return &dto.ApplicationDetail{
		ID:               app.ID,
		URL:              app.URL,
		JobTitle:         app.JobTitle,
		CompanyName:      app.CompanyName,
		Status:           app.Status,
		DisplayStatus:    app.DisplayStatus(),
		StatusReason:     app.StatusReason,
		DetectedPlatform: app.DetectedPlatform,
		CredentialID:     app.CredentialID,
		ReviewScreenshot: app.ReviewScreenshot,
		ErrorMessage:     app.ErrorMessage,
		LastLogMessage:   lastLog,
		CreatedAt:        app.CreatedAt,
		StartedAt:        app.StartedAt,
		EndedAt:          app.EndedAt,
	}
}

// Get 申请详情，附带最近一条日志
func (s *ApplicationService) Get(id int64) (*dto.ApplicationDetail, error) {
	app, err := s.getApp(id)
	if err != nil {
		return nil, err
	}

	last, err := s.logRepo.Latest(id)
	if err != nil {
		return nil, err
	}
	msg := ""
	if last != nil {
		msg = last.Message
	}
	return toDetail(app, msg), nil
}

func (s *ApplicationService) List(page, pageSize int, status string) ([]*dto.ApplicationDetail, int64, error) {
	apps, total, err := s.appRepo.List(page, pageSize, status)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]int64, 0, len(apps))
	for _, app := range apps {
		ids = append(ids, app.ID)
	}
	messages, err := s.logRepo.LatestMessages(ids)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.ApplicationDetail, 0, len(apps))
	for _, app := range apps {
		items = append(items, toDetail(app, messages[app.ID]))
	}
	return items, total, nil
}

// Logs 按时间顺序返回日志
func (s *ApplicationService) Logs(id int64) ([]*dto.LogItem, error) {
	if _, err := s.getApp(id); err != nil {
		return nil, err
	}

	entries, err := s.logRepo.ListByApplication(id)
	if err != nil {
		return nil, err
	}
	items := make([]*dto.LogItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, &dto.LogItem{
			ID:            e.ID,
			Level:         e.Level,
			State:         e.State,
			Message:       e.Message,
			ScreenshotRef: e.ScreenshotRef,
			CreatedAt:     e.CreatedAt,
		})
	}
	return items, nil
}

// Review 记录人工处理结果：submitted 或 completed
func (s *ApplicationService) Review(id int64, outcome string) error {
	var status string
	switch outcome {
	case "submitted":
		status = model.StatusSubmittedManual
	case "completed":
		status = model.StatusCompletedManual
	default:
		return ErrInvalidOutcome
	}

	if _, err := s.getApp(id); err != nil {
		return err
	}
	err := s.appRepo.MarkReviewed(id, status)
	if errors.Is(err, repository.ErrInvalidTransition) {
		return ErrNotPendingReview
	}
	if err != nil {
		return err
	}

	zap.L().Info("application reviewed", zap.Int64("application_id", id), zap.String("status", status))
	return nil
}

// Retry 对同一链接重新入队，原记录保留
func (s *ApplicationService) Retry(ctx context.Context, id int64) (int64, error) {
	app, err := s.getApp(id)
	if err != nil {
		return 0, err
	}
	if app.Status == model.StatusQueued || app.Status == model.StatusProcessing {
		return 0, ErrNotRetryable
	}

	fresh := &model.Application{
		URL:         app.URL,
		JobTitle:    app.JobTitle,
		CompanyName: app.CompanyName,
		Status:      model.StatusQueued,
	}
	if err := s.appRepo.Create(fresh); err != nil {
		return 0, err
	}
	s.notifyWorkers(ctx, fresh)
	zap.L().Info("application re-enqueued", zap.Int64("application_id", id), zap.Int64("new_application_id", fresh.ID))
	return fresh.ID, nil
}

// ScreenshotLocation 截图位置，本地文件或 OSS 签名地址二选一
type ScreenshotLocation struct {
	Path string
	URL  string
}

func (s *ApplicationService) Screenshot(id int64) (*ScreenshotLocation, error) {
	app, err := s.getApp(id)
	if err != nil {
		return nil, err
	}
	ref := app.ReviewScreenshot
	if ref == "" {
		return nil, ErrScreenshotNotFound
	}

	if path, ok := screenshot.LocalPath(s.cfg.Automation.ScreenshotDir, ref); ok {
		return &ScreenshotLocation{Path: path}, nil
	}
	if key, ok := oss.ObjectKey(ref); ok && s.ossClient != nil {
		signed, err := s.ossClient.GetSignedURL(key)
		if err != nil {
			return nil, err
		}
		return &ScreenshotLocation{URL: signed}, nil
	}
	return nil, ErrScreenshotNotFound
}

// Stats 队列深度和各状态数量
func (s *ApplicationService) Stats() (*dto.QueueStats, error) {
	counts, err := s.appRepo.CountByStatus()
	if err != nil {
		return nil, err
	}
	return &dto.QueueStats{Depth: counts[model.StatusQueued], Counts: counts}, nil
}
