package automation

import (
	"context"
	"fmt"
	"sync"
)

// fakeDriver 内存中的页面，present 表示当前存在的元素
type fakeDriver struct {
	mu sync.Mutex

	url       string
	title     string
	content   string
	present   map[string]bool
	texts     map[string]string
	questions []Question

	// 点击某个元素后的页面变化
	onClick map[string]func(d *fakeDriver)
	// 前 N 次 Exists 返回超时
	flaky map[string]int

	filled  map[string]string
	files   map[string][]string
	clicks  []string
	visited []string
	closed  bool
}

func newFakeDriver(url string) *fakeDriver {
	return &fakeDriver{
		url:     url,
		title:   "Job posting",
		present: map[string]bool{},
		texts:   map[string]string{},
		onClick: map[string]func(d *fakeDriver){},
		flaky:   map[string]int{},
		filled:  map[string]string{},
		files:   map[string][]string{},
	}
}

func (d *fakeDriver) with(selectors ...string) *fakeDriver {
	for _, s := range selectors {
		d.present[s] = true
	}
	return d
}

func (d *fakeDriver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visited = append(d.visited, url)
	return nil
}

func (d *fakeDriver) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

func (d *fakeDriver) Title(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title, nil
}

func (d *fakeDriver) Content(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.content, nil
}

func (d *fakeDriver) Exists(_ context.Context, selector string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.flaky[selector] > 0 {
		d.flaky[selector]--
		return false, fmt.Errorf("locator %s: %w", selector, ErrTimeout)
	}
	return d.present[selector], nil
}

func (d *fakeDriver) Fill(_ context.Context, selector, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.present[selector] && !isQuestionInput(selector) {
		return fmt.Errorf("fill %s: %w", selector, ErrElementNotFound)
	}
	d.filled[selector] = value
	return nil
}

func (d *fakeDriver) Click(_ context.Context, selector string) error {
	d.mu.Lock()
	if !d.present[selector] {
		d.mu.Unlock()
		return fmt.Errorf("click %s: %w", selector, ErrElementNotFound)
	}
	d.clicks = append(d.clicks, selector)
	hook := d.onClick[selector]
	d.mu.Unlock()

	if hook != nil {
		d.mu.Lock()
		hook(d)
		d.mu.Unlock()
	}
	return nil
}

func (d *fakeDriver) SetFiles(_ context.Context, selector string, paths ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[selector] = append(d.files[selector], paths...)
	return nil
}

func (d *fakeDriver) Text(_ context.Context, selector string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.texts[selector], nil
}

func (d *fakeDriver) Questions(context.Context, string, string, string) ([]Question, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.questions
	// 每页的问题只出现一次
	d.questions = nil
	return out, nil
}

func (d *fakeDriver) Screenshot(context.Context) ([]byte, error) {
	return []byte("\x89PNG"), nil
}

func (d *fakeDriver) Close() error {
	d.closed = true
	return nil
}

func (d *fakeDriver) clicked(selector string) bool {
	for _, c := range d.clicks {
		if c == selector {
			return true
		}
	}
	return false
}

func isQuestionInput(selector string) bool {
	return len(selector) > 2 && selector[:2] == "q:"
}

type logLine struct {
	Level, State, Message, Screenshot string
}

type fakeRecorder struct {
	logs        []logLine
	platform    string
	jobTitle    string
	company     string
	credentials []int64
}

func (r *fakeRecorder) Log(_ context.Context, level, state, message, ref string) {
	r.logs = append(r.logs, logLine{level, state, message, ref})
}

func (r *fakeRecorder) SetPlatform(_ context.Context, platform string) {
	if r.platform == "" {
		r.platform = platform
	}
}

func (r *fakeRecorder) SetDetails(_ context.Context, jobTitle, company string) {
	r.jobTitle, r.company = jobTitle, company
}

func (r *fakeRecorder) SetCredential(_ context.Context, id int64) error {
	r.credentials = append(r.credentials, id)
	return nil
}

func (r *fakeRecorder) states() []string {
	var out []string
	for _, l := range r.logs {
		if len(out) == 0 || out[len(out)-1] != l.State {
			out = append(out, l.State)
		}
	}
	return out
}

type fakeProfiles struct {
	profile *Profile
	err     error
}

func (f *fakeProfiles) Consolidated(context.Context) (*Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.profile == nil {
		return nil, ErrNoProfile
	}
	p := *f.profile
	return &p, nil
}

type fakeAnswers []Answer

func (f fakeAnswers) StandardAnswers(context.Context) ([]Answer, error) {
	return f, nil
}

type fakeCredentials struct {
	saved   []Credential
	current map[string]*Credential
	// err 模拟未配置密钥等存储故障
	err error
}

func (f *fakeCredentials) Current(_ context.Context, site string) (*Credential, error) {
	if f.err != nil && f.current[site] != nil {
		return nil, f.err
	}
	return f.current[site], nil
}

func (f *fakeCredentials) Save(_ context.Context, _ int64, cred Credential) (*Credential, error) {
	if f.err != nil {
		return nil, f.err
	}
	cred.ID = int64(len(f.saved) + 100)
	f.saved = append(f.saved, cred)
	if f.current == nil {
		f.current = map[string]*Credential{}
	}
	f.current[cred.Site] = &cred
	return &cred, nil
}

type fakeDocuments struct {
	letter     *CoverLetter
	autoAttach bool
}

func (f *fakeDocuments) CoverLetter(context.Context, int64) (*CoverLetter, bool, error) {
	return f.letter, f.autoAttach, nil
}

type fakeScreenshots struct {
	stages []string
}

func (f *fakeScreenshots) Save(_ context.Context, id int64, stage string, _ []byte) (string, error) {
	f.stages = append(f.stages, stage)
	return fmt.Sprintf("local://app_%d_%s.png", id, stage), nil
}
