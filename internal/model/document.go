package model

import (
	"time"
)

const DocumentKindCoverLetter = "cover_letter"

// Document 外部生成的申请材料（如求职信）
type Document struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	ApplicationID int64     `gorm:"not null;index" json:"application_id"`
	Kind          string    `gorm:"size:30;not null" json:"kind"`
	Path          string    `gorm:"size:500;not null" json:"path"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Document) TableName() string {
	return "documents"
}
