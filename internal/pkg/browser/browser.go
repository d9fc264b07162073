package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/qs3c/apply_go_server/internal/automation"
)

type Options struct {
	Browser           string // chromium | firefox | webkit
	Headless          bool
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Browser == "" {
		o.Browser = "chromium"
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 30 * time.Second
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 10 * time.Second
	}
	return o
}

// Install 下载浏览器二进制
func Install(name string) error {
	if name == "" {
		name = "chromium"
	}
	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{name}}); err != nil {
		return eris.Wrapf(err, "browser: install %s", name)
	}
	return nil
}

// Launcher 每个 worker 进程持有一个浏览器，每个申请使用独立的上下文
type Launcher struct {
	opts    Options
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewLauncher(opts Options) (*Launcher, error) {
	opts = opts.withDefaults()

	pw, err := playwright.Run()
	if err != nil {
		return nil, eris.Wrap(err, "browser: start playwright")
	}

	var bt playwright.BrowserType
	switch opts.Browser {
	case "chromium":
		bt = pw.Chromium
	case "firefox":
		bt = pw.Firefox
	case "webkit":
		bt = pw.WebKit
	default:
		_ = pw.Stop()
		return nil, eris.Errorf("browser: unsupported browser %q", opts.Browser)
	}

	b, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, eris.Wrapf(err, "browser: launch %s", opts.Browser)
	}

	zap.L().Info("browser launched", zap.String("browser", opts.Browser), zap.Bool("headless", opts.Headless))
	return &Launcher{opts: opts, pw: pw, browser: b}, nil
}

// NewSession 打开新的浏览器上下文和页面
func (l *Launcher) NewSession() (*Session, error) {
	bctx, err := l.browser.NewContext()
	if err != nil {
		return nil, eris.Wrap(err, "browser: new context")
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, eris.Wrap(err, "browser: new page")
	}
	page.SetDefaultTimeout(ms(l.opts.ActionTimeout))
	page.SetDefaultNavigationTimeout(ms(l.opts.NavigationTimeout))

	return &Session{bctx: bctx, page: page, opts: l.opts}, nil
}

func (l *Launcher) Close() error {
	var errs []error
	if err := l.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := l.pw.Stop(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return eris.Wrap(errors.Join(errs...), "browser: close")
	}
	return nil
}

// Session 实现 automation.Driver
type Session struct {
	bctx playwright.BrowserContext
	page playwright.Page
	opts Options
	// Questions 给输入框打标记用的序号
	seq int
}

var _ automation.Driver = (*Session)(nil)

func ms(d time.Duration) float64 {
	return float64(d / time.Millisecond)
}

// timeout 取默认超时和 ctx 剩余时间中较小者
func timeout(ctx context.Context, base time.Duration) (*float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < base {
			if left <= 0 {
				return nil, context.DeadlineExceeded
			}
			base = left
		}
	}
	return playwright.Float(ms(base)), nil
}

func (s *Session) locator(selector string) playwright.Locator {
	return s.page.Locator(selector).First()
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	t, err := timeout(ctx, s.opts.NavigationTimeout)
	if err != nil {
		return err
	}
	_, err = s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   t,
	})
	return classify("navigate", err)
}

func (s *Session) URL() string {
	return s.page.URL()
}

func (s *Session) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	title, err := s.page.Title()
	return title, classify("title", err)
}

func (s *Session) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content, err := s.page.Content()
	return content, classify("content", err)
}

func (s *Session) Exists(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	n, err := s.page.Locator(selector).Count()
	if err != nil {
		return false, classify("exists "+selector, err)
	}
	return n > 0, nil
}

func (s *Session) Fill(ctx context.Context, selector, value string) error {
	t, err := timeout(ctx, s.opts.ActionTimeout)
	if err != nil {
		return err
	}
	return classify("fill "+selector, s.locator(selector).Fill(value, playwright.LocatorFillOptions{Timeout: t}))
}

func (s *Session) Click(ctx context.Context, selector string) error {
	t, err := timeout(ctx, s.opts.ActionTimeout)
	if err != nil {
		return err
	}
	return classify("click "+selector, s.locator(selector).Click(playwright.LocatorClickOptions{Timeout: t}))
}

func (s *Session) SetFiles(ctx context.Context, selector string, paths ...string) error {
	t, err := timeout(ctx, s.opts.ActionTimeout)
	if err != nil {
		return err
	}
	err = s.locator(selector).SetInputFiles(paths, playwright.LocatorSetInputFilesOptions{Timeout: t})
	return classify("set files "+selector, err)
}

func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	t, err := timeout(ctx, s.opts.ActionTimeout)
	if err != nil {
		return "", err
	}
	text, err := s.locator(selector).InnerText(playwright.LocatorInnerTextOptions{Timeout: t})
	return text, classify("text "+selector, err)
}

// Questions 读取每个问题块的标题，并给输入框打上唯一标记作为选择器
func (s *Session) Questions(ctx context.Context, block, label, input string) ([]automation.Question, error) {
	t, err := timeout(ctx, s.opts.ActionTimeout)
	if err != nil {
		return nil, err
	}

	blocks := s.page.Locator(block)
	n, err := blocks.Count()
	if err != nil {
		return nil, classify("questions", err)
	}

	var out []automation.Question
	for i := 0; i < n; i++ {
		b := blocks.Nth(i)

		field := b.Locator(input).First()
		if c, err := field.Count(); err != nil || c == 0 {
			continue
		}
		text, err := b.Locator(label).First().InnerText(playwright.LocatorInnerTextOptions{Timeout: t})
		if err != nil {
			continue
		}

		s.seq++
		mark := fmt.Sprintf("q%d", s.seq)
		if _, err := field.Evaluate("(el, mark) => el.setAttribute('data-apply-question', mark)", mark); err != nil {
			return nil, classify("mark question", err)
		}
		out = append(out, automation.Question{
			Label: strings.TrimSpace(text),
			Input: fmt.Sprintf("[data-apply-question='%s']", mark),
		})
	}
	return out, nil
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	t, err := timeout(ctx, s.opts.ActionTimeout)
	if err != nil {
		return nil, err
	}
	png, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Timeout:  t,
	})
	return png, classify("screenshot", err)
}

func (s *Session) Close() error {
	if err := s.bctx.Close(); err != nil {
		return eris.Wrap(err, "browser: close context")
	}
	return nil
}

// classify 把 playwright 错误归类为可重试的超时或元素缺失
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, playwright.ErrTimeout), strings.Contains(msg, "timeout"):
		return fmt.Errorf("%s: %w: %v", op, automation.ErrTimeout, err)
	case strings.Contains(msg, "not attached"),
		strings.Contains(msg, "not visible"),
		strings.Contains(msg, "no element"),
		strings.Contains(msg, "resolved to 0 elements"),
		strings.Contains(msg, "element is outside of the viewport"):
		return fmt.Errorf("%s: %w: %v", op, automation.ErrElementNotFound, err)
	default:
		return eris.Wrap(err, op)
	}
}
