package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Notice 需要人工处理的申请
type Notice struct {
	ApplicationID int64
	URL           string
	JobTitle      string
	CompanyName   string
	Status        string
	Reason        string
	Message       string
}

// Title 一行摘要
func (n Notice) Title() string {
	label := n.Status
	if n.Reason != "" {
		label += "/" + n.Reason
	}
	return fmt.Sprintf("Application #%d %s", n.ApplicationID, label)
}

// Body 纯文本正文
func (n Notice) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", n.Title())
	if n.JobTitle != "" || n.CompanyName != "" {
		fmt.Fprintf(&b, "%s @ %s\n", n.JobTitle, n.CompanyName)
	}
	fmt.Fprintf(&b, "%s\n", n.URL)
	if n.Message != "" {
		fmt.Fprintf(&b, "\n%s\n", n.Message)
	}
	return b.String()
}

type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Multi 依次发送，单个渠道失败不影响其他渠道
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notice) error {
	var firstErr error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			zap.L().Warn("notification failed",
				zap.Int64("application_id", n.ApplicationID),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Nop 未配置任何渠道时使用
type Nop struct{}

func (Nop) Notify(context.Context, Notice) error { return nil }
