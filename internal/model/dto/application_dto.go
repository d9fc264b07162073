package dto

import "time"

// EnqueueRequest 批量提交职位链接
type EnqueueRequest struct {
	URLs []string `json:"urls" binding:"required,min=1"`
}

type SkippedURL struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

type EnqueueResponse struct {
	ApplicationIDs []int64      `json:"application_ids"`
	Skipped        []SkippedURL `json:"skipped"`
}

// ApplicationDetail 申请详情
type ApplicationDetail struct {
	ID               int64      `json:"id"`
	URL              string     `json:"url"`
	JobTitle         string     `json:"job_title"`
	CompanyName      string     `json:"company_name"`
	Status           string     `json:"status"`
	DisplayStatus    string     `json:"display_status"`
	StatusReason     string     `json:"status_reason,omitempty"`
	DetectedPlatform string     `json:"detected_platform,omitempty"`
	CredentialID     *int64     `json:"credential_id,omitempty"`
	ReviewScreenshot string     `json:"review_screenshot,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	LastLogMessage   string     `json:"last_log_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
}

type LogItem struct {
	ID            int64     `json:"id"`
	Level         string    `json:"level"`
	State         string    `json:"state,omitempty"`
	Message       string    `json:"message"`
	ScreenshotRef string    `json:"screenshot_ref,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ReviewRequest 人工处理结果
type ReviewRequest struct {
	Outcome string `json:"outcome" binding:"required,oneof=submitted completed"`
}

type RetryResponse struct {
	ApplicationID int64 `json:"application_id"`
}
