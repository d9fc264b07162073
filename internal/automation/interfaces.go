package automation

import (
	"context"
)

// Driver 浏览器操作接口，选择器来自平台静态表
type Driver interface {
	Navigate(ctx context.Context, url string) error
	URL() string
	Title(ctx context.Context) (string, error)
	Content(ctx context.Context) (string, error)
	Exists(ctx context.Context, selector string) (bool, error)
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	SetFiles(ctx context.Context, selector string, paths ...string) error
	Text(ctx context.Context, selector string) (string, error)
	// Questions 枚举问题块，返回问题文本和可直接填写的输入框选择器
	Questions(ctx context.Context, block, label, input string) ([]Question, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

type Question struct {
	Label string
	Input string
}

// Conflict 同一字段存在多个未决取值
type Conflict struct {
	Field      string
	Candidates []string
}

// Profile 合并后的个人资料
type Profile struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Location    string
	LinkedInURL string
	WebsiteURL  string
	Experience  string
	Education   string
	ResumePath  string

	DefaultPassword  string
	PasswordStrategy string

	Conflicts []Conflict
}

// Value 按字段名取值
func (p *Profile) Value(field string) string {
	switch field {
	case FieldFirstName:
		return p.FirstName
	case FieldLastName:
		return p.LastName
	case FieldFullName:
		if p.FirstName == "" || p.LastName == "" {
			return p.FirstName + p.LastName
		}
		return p.FirstName + " " + p.LastName
	case FieldEmail:
		return p.Email
	case FieldPhone:
		return p.Phone
	case FieldLocation:
		return p.Location
	case FieldLinkedIn:
		return p.LinkedInURL
	case FieldWebsite:
		return p.WebsiteURL
	}
	return ""
}

// Credential 站点账号，Password 为明文，只在内存中使用
type Credential struct {
	ID       int64
	Site     string
	Username string
	Password string
	Source   string
}

// CoverLetter 外部生成的求职信
type CoverLetter struct {
	Path string
}

type ProfileSource interface {
	// Consolidated 没有资料时返回 ErrNoProfile
	Consolidated(ctx context.Context) (*Profile, error)
}

type AnswerSource interface {
	StandardAnswers(ctx context.Context) ([]Answer, error)
}

type CredentialStore interface {
	// Current 站点当前有效的账号，没有时返回 nil
	Current(ctx context.Context, site string) (*Credential, error)
	// Save 写入新账号并使同站点旧账号失效
	Save(ctx context.Context, applicationID int64, cred Credential) (*Credential, error)
}

type DocumentProvider interface {
	// CoverLetter 返回可选的求职信和是否自动附加
	CoverLetter(ctx context.Context, applicationID int64) (*CoverLetter, bool, error)
}

type ScreenshotStore interface {
	Save(ctx context.Context, applicationID int64, stage string, png []byte) (string, error)
}

// Recorder 处理过程中的状态回写，由 worker 实现
type Recorder interface {
	Log(ctx context.Context, level, state, message, screenshotRef string)
	SetPlatform(ctx context.Context, platform string)
	SetDetails(ctx context.Context, jobTitle, companyName string)
	SetCredential(ctx context.Context, credentialID int64) error
}
