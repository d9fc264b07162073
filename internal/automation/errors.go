package automation

import (
	"errors"
	"fmt"

	"github.com/qs3c/apply_go_server/internal/model"
)

// 浏览器驱动返回的暂时性错误，在单步重试预算内重试
var (
	ErrTimeout         = errors.New("automation: timeout")
	ErrElementNotFound = errors.New("automation: element not found")
)

// ErrNoProfile 没有可用的个人资料
var ErrNoProfile = errors.New("automation: no profile on record")

// IsTransient 超时和元素未找到视为暂时性错误
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrElementNotFound)
}

// HaltError 主动停止处理，带上目标状态
type HaltError struct {
	Status  string
	Reason  string
	Message string
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("%s/%s: %s", e.Status, e.Reason, e.Message)
}

func halt(status, reason, format string, args ...interface{}) *HaltError {
	return &HaltError{Status: status, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func pendingReview(reason, format string, args ...interface{}) *HaltError {
	return halt(model.StatusPendingReview, reason, format, args...)
}

// UnknownQuestionError 没有匹配的标准答案
type UnknownQuestionError struct {
	Question string
}

func (e *UnknownQuestionError) Error() string {
	return fmt.Sprintf("unknown question: %q", e.Question)
}

// StepError 某个状态中的结构性失败
type StepError struct {
	State string
	Op    string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.State, e.Op, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
