package model

import (
	"time"
)

type StandardAnswer struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StandardAnswer) TableName() string {
	return "standard_answers"
}
