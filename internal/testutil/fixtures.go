package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/apply_go_server/internal/model"
)

// TestApplication 创建测试申请
func TestApplication(t *testing.T, db *gorm.DB, opts ...func(*model.Application)) *model.Application {
	t.Helper()

	app := &model.Application{
		URL:         fmt.Sprintf("https://jobs.example.com/posting/%d", time.Now().UnixNano()),
		JobTitle:    "unknown",
		CompanyName: "unknown",
		Status:      model.StatusQueued,
	}

	for _, opt := range opts {
		opt(app)
	}

	if err := db.Create(app).Error; err != nil {
		t.Fatalf("Failed to create test application: %v", err)
	}

	return app
}

// WithURL 设置职位链接
func WithURL(url string) func(*model.Application) {
	return func(a *model.Application) {
		a.URL = url
	}
}

// WithStatus 设置状态
func WithStatus(status string) func(*model.Application) {
	return func(a *model.Application) {
		a.Status = status
	}
}

// WithClaim 设置为被指定 worker 处理中
func WithClaim(workerID string, pid int) func(*model.Application) {
	return func(a *model.Application) {
		now := time.Now()
		a.Status = model.StatusProcessing
		a.ClaimedBy = workerID
		a.WorkerPID = pid
		a.StartedAt = &now
	}
}

// WithCreatedAt 设置创建时间
func WithCreatedAt(at time.Time) func(*model.Application) {
	return func(a *model.Application) {
		a.CreatedAt = at
	}
}

// TestAnswer 创建标准答案
func TestAnswer(t *testing.T, db *gorm.DB, question, answer string) *model.StandardAnswer {
	t.Helper()

	sa := &model.StandardAnswer{Question: question, Answer: answer}
	if err := db.Create(sa).Error; err != nil {
		t.Fatalf("Failed to create test answer: %v", err)
	}
	return sa
}

// TestProfile 创建个人资料
func TestProfile(t *testing.T, db *gorm.DB, opts ...func(*model.Profile)) *model.Profile {
	t.Helper()

	profile := &model.Profile{
		FirstName:        "Ada",
		LastName:         "Lovelace",
		Email:            "ada@example.com",
		Phone:            "+44 20 7946 0000",
		Location:         "London",
		LinkedInURL:      "https://www.linkedin.com/in/ada",
		ResumePath:       "/tmp/resume.pdf",
		PasswordStrategy: model.PasswordStrategyGenerate,
	}

	for _, opt := range opts {
		opt(profile)
	}

	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("Failed to create test profile: %v", err)
	}
	return profile
}

// WithPasswordStrategy 设置密码策略
func WithPasswordStrategy(strategy string) func(*model.Profile) {
	return func(p *model.Profile) {
		p.PasswordStrategy = strategy
	}
}

// TestCandidate 创建候选字段值
func TestCandidate(t *testing.T, db *gorm.DB, field, value, source string) *model.ProfileCandidate {
	t.Helper()

	c := &model.ProfileCandidate{Field: field, Value: value, Source: source}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("Failed to create test candidate: %v", err)
	}
	return c
}
