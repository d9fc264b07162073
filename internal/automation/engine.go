package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/apply_go_server/internal/model"
	"github.com/qs3c/apply_go_server/internal/pkg/retry"
)

// 状态按顺序执行，只能前进到下一个状态或直接结束
const (
	StateDetect           = "detect"
	StateResolveIdentity  = "resolve_identity"
	StateValidateProfile  = "validate_profile"
	StateFormFill         = "form_fill"
	StateQuestionMatching = "question_matching"
	StateCheckpoint       = "checkpoint"
)

type Options struct {
	MatchThreshold          float64
	UnknownQuestionFallback string
	// 寻找审核页时最多翻页次数
	MaxReviewAdvances int
	// 等待登录结果等页面反馈的最长时间
	WaitTimeout  time.Duration
	PollInterval time.Duration
	Retry        retry.Config
}

func (o Options) withDefaults() Options {
	if o.MatchThreshold <= 0 {
		o.MatchThreshold = DefaultMatchThreshold
	}
	if o.MaxReviewAdvances <= 0 {
		o.MaxReviewAdvances = 8
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = 10 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 250 * time.Millisecond
	}
	return o
}

type Engine struct {
	opts        Options
	profiles    ProfileSource
	answers     AnswerSource
	credentials CredentialStore
	documents   DocumentProvider
	screenshots ScreenshotStore
}

func NewEngine(
	opts Options,
	profiles ProfileSource,
	answers AnswerSource,
	credentials CredentialStore,
	documents DocumentProvider,
	screenshots ScreenshotStore,
) *Engine {
	return &Engine{
		opts:        opts.withDefaults(),
		profiles:    profiles,
		answers:     answers,
		credentials: credentials,
		documents:   documents,
		screenshots: screenshots,
	}
}

type Job struct {
	ApplicationID int64
	URL           string
}

// Outcome 一次执行的结果，Status 只会是 pending_review 或失败类状态
type Outcome struct {
	Status     string
	Reason     string
	Message    string
	Screenshot string
}

// run 单次执行的上下文
type run struct {
	e       *Engine
	d       Driver
	job     Job
	rec     Recorder
	state   string
	variant Variant
	profile *Profile
}

// Run 驱动一个申请走完状态机，在最终提交前停止
func (e *Engine) Run(ctx context.Context, d Driver, job Job, rec Recorder) Outcome {
	r := &run{e: e, d: d, job: job, rec: rec}

	out, err := r.execute(ctx)
	if err != nil {
		return r.fail(ctx, err)
	}
	return out
}

func (r *run) execute(ctx context.Context) (Outcome, error) {
	r.enter(ctx, StateDetect)
	if err := r.detect(ctx); err != nil {
		return Outcome{}, err
	}

	r.enter(ctx, StateResolveIdentity)
	if err := r.loadProfile(ctx); err != nil {
		return Outcome{}, err
	}
	if err := r.resolveIdentity(ctx); err != nil {
		return Outcome{}, err
	}

	r.enter(ctx, StateValidateProfile)
	if err := r.validateProfile(ctx); err != nil {
		return Outcome{}, err
	}

	r.enter(ctx, StateFormFill)
	if err := r.formFill(ctx); err != nil {
		return Outcome{}, err
	}

	r.enter(ctx, StateQuestionMatching)
	if err := r.questionMatching(ctx); err != nil {
		return Outcome{}, err
	}

	r.enter(ctx, StateCheckpoint)
	return r.checkpoint(ctx), nil
}

func (r *run) enter(ctx context.Context, state string) {
	r.state = state
	r.rec.Log(ctx, model.LevelInfo, state, "entering "+state, "")
}

// fail 把错误映射为终态，并附带截图写日志
func (r *run) fail(ctx context.Context, err error) Outcome {
	var out Outcome
	level := model.LevelError

	var he *HaltError
	var uq *UnknownQuestionError
	switch {
	case errors.As(err, &he):
		out = Outcome{Status: he.Status, Reason: he.Reason, Message: he.Message}
		if he.Status == model.StatusPendingReview {
			level = model.LevelWarning
		}
	case errors.As(err, &uq):
		out = Outcome{
			Status:  model.StatusFailed,
			Reason:  model.ReasonUnknownQuestion,
			Message: fmt.Sprintf("Unknown question: %s", uq.Question),
		}
	case errors.Is(err, context.DeadlineExceeded):
		out = Outcome{
			Status:  model.StatusFailed,
			Reason:  model.ReasonStructural,
			Message: fmt.Sprintf("timed out in %s", r.state),
		}
	default:
		out = Outcome{Status: model.StatusFailed, Reason: model.ReasonStructural, Message: err.Error()}
	}

	// 原 ctx 可能已超时，截图用独立的短超时
	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	ref := r.capture(shotCtx, "failure_"+r.state)

	r.rec.Log(shotCtx, level, r.state, out.Message, ref)
	zap.L().Info("automation halted",
		zap.Int64("application_id", r.job.ApplicationID),
		zap.String("state", r.state),
		zap.String("status", out.Status),
		zap.String("reason", out.Reason),
		zap.Error(err),
	)
	return out
}

// capture 截图并保存，失败时返回空引用
func (r *run) capture(ctx context.Context, stage string) string {
	if r.e.screenshots == nil {
		return ""
	}

	png, err := r.d.Screenshot(ctx)
	if err != nil {
		zap.L().Warn("screenshot failed",
			zap.Int64("application_id", r.job.ApplicationID),
			zap.String("stage", stage),
			zap.Error(err),
		)
		return ""
	}

	ref, err := r.e.screenshots.Save(ctx, r.job.ApplicationID, stage, png)
	if err != nil {
		zap.L().Warn("save screenshot failed",
			zap.Int64("application_id", r.job.ApplicationID),
			zap.String("stage", stage),
			zap.Error(err),
		)
		return ""
	}
	return ref
}

// do 在重试预算内执行一个浏览器动作
func (r *run) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := doVal(ctx, r, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func doVal[T any](ctx context.Context, r *run, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg := r.e.opts.Retry
	cfg.ShouldRetry = IsTransient
	cfg.OnRetry = retry.Logger(op,
		zap.Int64("application_id", r.job.ApplicationID),
		zap.String("state", r.state),
	)

	val, err := retry.DoVal(ctx, cfg, fn)
	if err != nil {
		var zero T
		return zero, &StepError{State: r.state, Op: op, Err: err}
	}
	return val, nil
}

// exists 空选择器视为不存在
func (r *run) exists(ctx context.Context, selector string) (bool, error) {
	if selector == "" {
		return false, nil
	}
	return doVal(ctx, r, "exists "+selector, func(ctx context.Context) (bool, error) {
		return r.d.Exists(ctx, selector)
	})
}

// waitForAny 轮询直到任一选择器出现，返回其下标，超时返回 -1
func (r *run) waitForAny(ctx context.Context, selectors ...string) (int, error) {
	deadline := time.Now().Add(r.e.opts.WaitTimeout)
	for {
		for i, sel := range selectors {
			if sel == "" {
				continue
			}
			ok, err := r.d.Exists(ctx, sel)
			if err != nil && !IsTransient(err) {
				return -1, &StepError{State: r.state, Op: "wait", Err: err}
			}
			if ok {
				return i, nil
			}
		}

		if time.Now().After(deadline) {
			return -1, nil
		}

		timer := time.NewTimer(r.e.opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return -1, ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *run) detect(ctx context.Context) error {
	if err := r.do(ctx, "navigate", func(ctx context.Context) error {
		return r.d.Navigate(ctx, r.job.URL)
	}); err != nil {
		return err
	}

	title, err := doVal(ctx, r, "title", r.d.Title)
	if err != nil {
		return err
	}
	lower := strings.ToLower(title)
	if strings.Contains(lower, "page not found") || strings.Contains(lower, "404") {
		return &StepError{State: r.state, Op: "navigate", Err: fmt.Errorf("job page not found (title %q)", title)}
	}

	content, err := doVal(ctx, r, "content", r.d.Content)
	if err != nil {
		return err
	}

	current := r.d.URL()
	if current == "" {
		current = r.job.URL
	}
	r.variant = Detect(current, content)
	if r.variant.Platform == PlatformUnknown {
		// 跳转后的地址识别不出时，再用原始链接试一次
		r.variant = Detect(r.job.URL, "")
	}
	r.rec.SetPlatform(ctx, string(r.variant.Platform))

	if r.variant.Platform == PlatformUnknown {
		r.rec.Log(ctx, model.LevelWarning, r.state, "platform not recognized, using generic form handling", "")
		ok, err := r.exists(ctx, r.variant.Selectors.Form)
		if err != nil {
			return err
		}
		if !ok {
			return halt(model.StatusFailedFinal, model.ReasonUnsupportedPlatform,
				"no application form found on unrecognized platform")
		}
	} else {
		r.rec.Log(ctx, model.LevelInfo, r.state, "detected platform "+string(r.variant.Platform), "")
	}

	r.rec.SetDetails(ctx, r.readText(ctx, r.variant.Selectors.JobTitle), r.readText(ctx, r.variant.Selectors.Company))
	return nil
}

// readText 读取可选的页面信息，失败时返回空
func (r *run) readText(ctx context.Context, selector string) string {
	ok, err := r.exists(ctx, selector)
	if err != nil || !ok {
		return ""
	}
	text, err := r.d.Text(ctx, selector)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func (r *run) loadProfile(ctx context.Context) error {
	profile, err := r.e.profiles.Consolidated(ctx)
	if errors.Is(err, ErrNoProfile) {
		return halt(model.StatusFailedFinal, model.ReasonProfileMissing, "no profile on record")
	}
	if err != nil {
		return &StepError{State: r.state, Op: "load profile", Err: err}
	}
	r.profile = profile
	return nil
}

// validateProfile 冲突未解决时不进入表单填写
func (r *run) validateProfile(ctx context.Context) error {
	if len(r.profile.Conflicts) == 0 {
		r.rec.Log(ctx, model.LevelInfo, r.state, "profile has no unresolved conflicts", "")
		return nil
	}

	fields := make([]string, 0, len(r.profile.Conflicts))
	for _, c := range r.profile.Conflicts {
		fields = append(fields, fmt.Sprintf("%s (%d candidates)", c.Field, len(c.Candidates)))
	}
	return pendingReview(model.ReasonConflictPending,
		"unresolved profile conflicts: %s", strings.Join(fields, ", "))
}

func (r *run) checkpoint(ctx context.Context) Outcome {
	ref := r.capture(ctx, "review")
	if ref == "" {
		r.rec.Log(ctx, model.LevelWarning, r.state, "review screenshot unavailable", "")
	}

	msg := "reached review page, waiting for manual submission"
	r.rec.Log(ctx, model.LevelInfo, r.state, msg, ref)
	return Outcome{
		Status:     model.StatusPendingReview,
		Reason:     model.ReasonReviewReady,
		Message:    msg,
		Screenshot: ref,
	}
}
