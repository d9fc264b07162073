package model

import (
	"time"
)

const (
	PasswordStrategyGenerate = "generate"
	PasswordStrategyAsk      = "ask"
)

// 可能出现冲突的字段
const (
	FieldEmail = "email"
	FieldPhone = "phone"
)

type Profile struct {
	ID                    int64     `gorm:"primaryKey" json:"id"`
	FirstName             string    `gorm:"size:100" json:"first_name"`
	LastName              string    `gorm:"size:100" json:"last_name"`
	Email                 string    `gorm:"size:255" json:"email"`
	Phone                 string    `gorm:"size:50" json:"phone"`
	Location              string    `gorm:"size:255" json:"location"`
	LinkedInURL           string    `gorm:"size:500" json:"linkedin_url"`
	WebsiteURL            string    `gorm:"size:500" json:"website_url"`
	Experience            string    `gorm:"type:text" json:"experience"`
	Education             string    `gorm:"type:text" json:"education"`
	ResumePath            string    `gorm:"size:500" json:"resume_path"`
	DefaultPasswordCipher string    `gorm:"type:text" json:"-"`
	PasswordStrategy      string    `gorm:"size:20;default:generate" json:"password_strategy"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

// ProfileCandidate 从简历、LinkedIn 等来源发现的字段取值
type ProfileCandidate struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Field     string    `gorm:"size:30;not null;index" json:"field"`
	Value     string    `gorm:"size:255;not null" json:"value"`
	Source    string    `gorm:"size:30" json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

func (ProfileCandidate) TableName() string {
	return "profile_candidates"
}

// ConflictResolution 人工选定的字段取值
type ConflictResolution struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Field       string    `gorm:"size:30;not null;uniqueIndex" json:"field"`
	ChosenValue string    `gorm:"size:255;not null" json:"chosen_value"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

func (ConflictResolution) TableName() string {
	return "conflict_resolutions"
}
