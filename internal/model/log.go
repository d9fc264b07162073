package model

import (
	"time"
)

const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// LogEntry 追加写入的处理日志，不允许修改或删除
type LogEntry struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	ApplicationID int64     `gorm:"not null;index" json:"application_id"`
	Level         string    `gorm:"size:10;not null" json:"level"`
	State         string    `gorm:"size:30" json:"state,omitempty"`
	Message       string    `gorm:"type:text;not null" json:"message"`
	ScreenshotRef string    `gorm:"size:500" json:"screenshot_ref,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

func (LogEntry) TableName() string {
	return "application_logs"
}
