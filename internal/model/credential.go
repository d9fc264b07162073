package model

import (
	"time"
)

const (
	CredentialSourceProfile   = "profile"
	CredentialSourceGenerated = "generated"
)

// Credential 站点账号，写入后只允许标记 superseded
type Credential struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	Site           string     `gorm:"size:255;not null;index" json:"site"`
	Username       string     `gorm:"size:255;not null" json:"username"`
	PasswordCipher string     `gorm:"type:text;not null" json:"-"`
	Source         string     `gorm:"size:20;not null" json:"source"`
	ApplicationID  *int64     `gorm:"index" json:"application_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	SupersededAt   *time.Time `json:"superseded_at,omitempty"`
}

func (Credential) TableName() string {
	return "credentials"
}
