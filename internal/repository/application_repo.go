package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/apply_go_server/internal/model"
)

// ErrNotOwner 申请不在该 worker 的处理中
var ErrNotOwner = errors.New("application is not processing under this worker")

// ErrInvalidTransition 状态不允许该操作
var ErrInvalidTransition = errors.New("invalid status transition")

// 领取时 CAS 失败的最大重试次数
const maxClaimAttempts = 8

// Outcome worker 释放申请时写入的终态
type Outcome struct {
	Status           string
	Reason           string
	ErrorMessage     string
	ReviewScreenshot string
}

type ApplicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) Create(app *model.Application) error {
	return r.db.Create(app).Error
}

// CreateBatch 在一个事务内批量入队
func (r *ApplicationRepository) CreateBatch(apps []*model.Application) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, app := range apps {
			if err := tx.Create(app).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ApplicationRepository) GetByID(id int64) (*model.Application, error) {
	var app model.Application
	err := r.db.Where("id = ?", id).First(&app).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// List 分页查询，status 为空表示全部，也接受展示状态 conflict_pending
func (r *ApplicationRepository) List(page, pageSize int, status string) ([]*model.Application, int64, error) {
	var apps []*model.Application
	var total int64

	query := r.db.Model(&model.Application{})
	switch status {
	case "":
	case model.ReasonConflictPending:
		query = query.Where("status = ? AND status_reason = ?", model.StatusPendingReview, model.ReasonConflictPending)
	default:
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&apps).Error
	if err != nil {
		return nil, 0, err
	}

	return apps, total, nil
}

// CountByStatus 统计各状态数量
func (r *ApplicationRepository) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.Model(&model.Application{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Claim 原子领取最早入队的申请，队列为空时返回 nil
func (r *ApplicationRepository) Claim(workerID string, pid int) (*model.Application, error) {
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		var app model.Application
		err := r.db.Where("status = ?", model.StatusQueued).
			Order("created_at ASC, id ASC").
			First(&app).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		now := time.Now()
		result := r.db.Model(&model.Application{}).
			Where("id = ? AND status = ?", app.ID, model.StatusQueued).
			Updates(map[string]interface{}{
				"status":        model.StatusProcessing,
				"status_reason": "",
				"claimed_by":    workerID,
				"worker_pid":    pid,
				"started_at":    gorm.Expr("COALESCE(started_at, ?)", now),
			})
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 1 {
			app.Status = model.StatusProcessing
			app.StatusReason = ""
			app.ClaimedBy = workerID
			app.WorkerPID = pid
			if app.StartedAt == nil {
				app.StartedAt = &now
			}
			return &app, nil
		}
		// 被其他 worker 抢先，换下一条
	}
	return nil, nil
}

// owned 限定只能修改自己处理中的申请
func (r *ApplicationRepository) owned(id int64, workerID string) *gorm.DB {
	return r.db.Model(&model.Application{}).
		Where("id = ? AND status = ? AND claimed_by = ?", id, model.StatusProcessing, workerID)
}

// Release 写入终态并结束处理
func (r *ApplicationRepository) Release(id int64, workerID string, out Outcome) error {
	if out.Status == model.StatusQueued || out.Status == model.StatusProcessing ||
		out.Status == model.StatusSubmittedManual || out.Status == model.StatusCompletedManual {
		return ErrInvalidTransition
	}

	updates := map[string]interface{}{
		"status":        out.Status,
		"status_reason": out.Reason,
		"error_message": out.ErrorMessage,
		"ended_at":      time.Now(),
	}
	if out.ReviewScreenshot != "" {
		updates["review_screenshot"] = out.ReviewScreenshot
	}

	result := r.owned(id, workerID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotOwner
	}
	return nil
}

// UpdateDetails 更新职位名称和公司，空值保持不变
func (r *ApplicationRepository) UpdateDetails(id int64, workerID, jobTitle, companyName string) error {
	updates := map[string]interface{}{}
	if jobTitle != "" {
		updates["job_title"] = jobTitle
	}
	if companyName != "" {
		updates["company_name"] = companyName
	}
	if len(updates) == 0 {
		return nil
	}

	result := r.owned(id, workerID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotOwner
	}
	return nil
}

// SetDetectedPlatform 只在首次识别时写入平台，已写入或不属于该 worker 时返回 false
func (r *ApplicationRepository) SetDetectedPlatform(id int64, workerID, platform string) (bool, error) {
	result := r.owned(id, workerID).
		Where("detected_platform = '' OR detected_platform IS NULL").
		Update("detected_platform", platform)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetCredential 记录本次使用的账号
func (r *ApplicationRepository) SetCredential(id int64, workerID string, credentialID int64) error {
	result := r.owned(id, workerID).Update("credential_id", credentialID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotOwner
	}
	return nil
}

// ListProcessing 列出所有处理中的申请
func (r *ApplicationRepository) ListProcessing() ([]*model.Application, error) {
	var apps []*model.Application
	err := r.db.Where("status = ?", model.StatusProcessing).
		Order("started_at ASC, id ASC").
		Find(&apps).Error
	return apps, err
}

// ListProcessingBy 列出某个 worker 处理中的申请
func (r *ApplicationRepository) ListProcessingBy(workerID string) ([]*model.Application, error) {
	var apps []*model.Application
	err := r.db.Where("status = ? AND claimed_by = ?", model.StatusProcessing, workerID).
		Find(&apps).Error
	return apps, err
}

// Requeue 将孤儿申请放回队列，保持原入队顺序和首次领取时间
func (r *ApplicationRepository) Requeue(id int64, workerID string) error {
	result := r.owned(id, workerID).Updates(map[string]interface{}{
		"status":        model.StatusQueued,
		"status_reason": model.ReasonOrphaned,
		"claimed_by":    "",
		"worker_pid":    0,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotOwner
	}
	return nil
}

// MarkReviewed 人工确认结果，只允许从 pending_review 转出
func (r *ApplicationRepository) MarkReviewed(id int64, status string) error {
	if status != model.StatusSubmittedManual && status != model.StatusCompletedManual {
		return ErrInvalidTransition
	}

	result := r.db.Model(&model.Application{}).
		Where("id = ? AND status = ?", id, model.StatusPendingReview).
		Updates(map[string]interface{}{
			"status":        status,
			"status_reason": "",
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}
