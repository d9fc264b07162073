package model

import (
	"time"
)

// Application 状态
const (
	StatusQueued                = "queued"
	StatusProcessing            = "processing"
	StatusPendingReview         = "pending_review"
	StatusFailed                = "failed"
	StatusFailedFinal           = "failed_final"
	StatusFailedWorkerException = "failed_worker_exception"
	StatusSubmittedManual       = "submitted_manual"
	StatusCompletedManual       = "completed_manual"
)

// 状态原因，细化当前状态
const (
	ReasonReviewReady         = "review_ready"
	ReasonConflictPending     = "conflict_pending"
	ReasonIdentityConflict    = "identity_conflict"
	ReasonCredentialReset     = "credential_reset"
	ReasonPasswordRequired    = "password_required"
	ReasonUnknownQuestion     = "unknown_question"
	ReasonStructural          = "structural"
	ReasonUnsupportedPlatform = "unsupported_platform"
	ReasonProfileMissing      = "profile_missing"
	ReasonWorkerException     = "worker_exception"
	ReasonOrphaned            = "orphaned"
)

type Application struct {
	ID               int64      `gorm:"primaryKey" json:"id"`
	URL              string     `gorm:"size:1000;not null" json:"url"`
	JobTitle         string     `gorm:"size:255;default:unknown" json:"job_title"`
	CompanyName      string     `gorm:"size:255;default:unknown" json:"company_name"`
	Status           string     `gorm:"size:30;default:queued;index" json:"status"`
	StatusReason     string     `gorm:"size:30" json:"status_reason,omitempty"`
	DetectedPlatform string     `gorm:"size:50" json:"detected_platform,omitempty"`
	ClaimedBy        string     `gorm:"size:100;index" json:"claimed_by,omitempty"`
	WorkerPID        int        `json:"worker_pid,omitempty"`
	CredentialID     *int64     `json:"credential_id,omitempty"`
	ReviewScreenshot string     `gorm:"size:500" json:"review_screenshot,omitempty"`
	ErrorMessage     string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
}

func (Application) TableName() string {
	return "applications"
}

// IsTerminal 自动化流程是否已结束（含人工后续状态）
func IsTerminal(status string) bool {
	switch status {
	case StatusPendingReview, StatusFailed, StatusFailedFinal, StatusFailedWorkerException,
		StatusSubmittedManual, StatusCompletedManual:
		return true
	}
	return false
}

// IsFailure 是否为失败类状态
func IsFailure(status string) bool {
	return status == StatusFailed || status == StatusFailedFinal || status == StatusFailedWorkerException
}

// DisplayStatus 对外展示的状态，冲突阻塞作为独立的伪状态
func (a *Application) DisplayStatus() string {
	if a.Status == StatusPendingReview && a.StatusReason == ReasonConflictPending {
		return ReasonConflictPending
	}
	return a.Status
}
