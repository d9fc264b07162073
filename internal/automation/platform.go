package automation

import (
	"strings"
)

type Platform string

const (
	PlatformWorkday    Platform = "workday"
	PlatformGreenhouse Platform = "greenhouse"
	PlatformLever      Platform = "lever"
	PlatformUnknown    Platform = "unknown"
)

// 个人资料字段，与表单选择器对应
const (
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldFullName  = "full_name"
	FieldEmail     = "email"
	FieldPhone     = "phone"
	FieldLocation  = "location"
	FieldLinkedIn  = "linkedin_url"
	FieldWebsite   = "website_url"
)

// LoginSelectors 登录、注册和重置密码相关元素
type LoginSelectors struct {
	Form     string
	Email    string
	Password string
	Submit   string

	SignedIn         string
	PasswordRejected string
	IdentityRejected string

	CreateAccount   string
	NewPassword     string
	ConfirmPassword string
	CreateSubmit    string
	AccountExists   string

	ForgotPassword string
	ResetSubmit    string
}

type FieldSelector struct {
	Field    string
	Selector string
}

// Selectors 平台静态选择器表，不包含任何提交按钮
type Selectors struct {
	Apply    string
	JobTitle string
	Company  string
	Login    LoginSelectors

	Fields      []FieldSelector
	Resume      string
	CoverLetter string

	QuestionBlock string
	QuestionLabel string
	QuestionInput string

	Next   string
	Review string
	// 通用表单标记，缺失时无法处理
	Form string
}

type Variant struct {
	Platform    Platform
	URLPatterns []string
	PageMarkers []string
	Selectors   Selectors
}

var workday = Variant{
	Platform:    PlatformWorkday,
	URLPatterns: []string{"myworkdayjobs.com", "workday"},
	PageMarkers: []string{"data-automation-id"},
	Selectors: Selectors{
		Apply:    "[data-automation-id='adventureButton'], a[data-automation-id='applyButton']",
		JobTitle: "[data-automation-id='jobPostingHeader']",
		Company:  "[data-automation-id='company']",
		Login: LoginSelectors{
			Form:             "[data-automation-id='signInContent']",
			Email:            "input[data-automation-id='email']",
			Password:         "input[data-automation-id='password']",
			Submit:           "[data-automation-id='signInSubmitButton']",
			SignedIn:         "[data-automation-id='applyFlowPage'], [data-automation-id='navigationItem-My Information']",
			PasswordRejected: "[data-automation-id='errorMessage']:has-text('password')",
			IdentityRejected: "[data-automation-id='errorMessage']:has-text('account')",
			CreateAccount:    "[data-automation-id='createAccountLink']",
			NewPassword:      "input[data-automation-id='password']",
			ConfirmPassword:  "input[data-automation-id='verifyPassword']",
			CreateSubmit:     "[data-automation-id='createAccountSubmitButton']",
			AccountExists:    "[data-automation-id='errorMessage']:has-text('already')",
			ForgotPassword:   "[data-automation-id='forgotPasswordLink']",
			ResetSubmit:      "[data-automation-id='resetPasswordSubmitButton']",
		},
		Fields: []FieldSelector{
			{FieldFirstName, "input[data-automation-id='legalNameSection_firstName']"},
			{FieldLastName, "input[data-automation-id='legalNameSection_lastName']"},
			{FieldEmail, "input[data-automation-id='email']"},
			{FieldPhone, "input[data-automation-id='phone-number']"},
			{FieldLocation, "input[data-automation-id='addressSection_city']"},
			{FieldLinkedIn, "input[data-automation-id='linkedinQuestion']"},
			{FieldWebsite, "input[data-automation-id='websiteQuestion']"},
		},
		Resume:        "input[data-automation-id='file-upload-input-ref']",
		CoverLetter:   "input[data-automation-id='coverLetter-upload-input-ref']",
		QuestionBlock: "[data-automation-id='primaryQuestionnairePage'] [data-automation-id^='formField-']",
		QuestionLabel: "label",
		QuestionInput: "input, textarea",
		Next:          "[data-automation-id='bottom-navigation-next-button']",
		Review:        "[data-automation-id='reviewJobApplicationPage']",
		Form:          "[data-automation-id='applyFlowPage']",
	},
}

var greenhouse = Variant{
	Platform:    PlatformGreenhouse,
	URLPatterns: []string{"greenhouse.io"},
	PageMarkers: []string{"grnhse", "greenhouse"},
	Selectors: Selectors{
		Apply:    "a#apply_button",
		JobTitle: "h1.app-title, .job__title h1",
		Company:  "span.company-name, .company-name",
		Fields: []FieldSelector{
			{FieldFirstName, "input#first_name"},
			{FieldLastName, "input#last_name"},
			{FieldEmail, "input#email"},
			{FieldPhone, "input#phone"},
			{FieldLocation, "input#job_application_location"},
			{FieldLinkedIn, "input[autocomplete='custom-question-linkedin-profile'], input[aria-label*='LinkedIn']"},
			{FieldWebsite, "input[aria-label*='Website']"},
		},
		Resume:        "input#resume",
		CoverLetter:   "input#cover_letter",
		QuestionBlock: "#custom_fields .field, .application--questions .field",
		QuestionLabel: "label",
		QuestionInput: "input[type='text'], textarea",
		// 单页表单，表单底部即为审核位置
		Review: "#submit_app, button[type='submit']",
		Form:   "form#application_form, form#application-form",
	},
}

var lever = Variant{
	Platform:    PlatformLever,
	URLPatterns: []string{"lever.co"},
	PageMarkers: []string{"lever-jobs", "lever.co"},
	Selectors: Selectors{
		Apply:    "a.postings-btn[href$='/apply']",
		JobTitle: ".posting-headline h2",
		Company:  ".main-header-logo img[alt]",
		Fields: []FieldSelector{
			{FieldFullName, "input[name='name']"},
			{FieldEmail, "input[name='email']"},
			{FieldPhone, "input[name='phone']"},
			{FieldLocation, "input[name='location']"},
			{FieldLinkedIn, "input[name='urls[LinkedIn]']"},
			{FieldWebsite, "input[name='urls[Portfolio]']"},
		},
		Resume:        "input#resume-upload-input",
		CoverLetter:   "",
		QuestionBlock: ".application-question.custom-question",
		QuestionLabel: ".application-label",
		QuestionInput: "input[type='text'], textarea",
		Review:        "button#btn-submit",
		Form:          "form#application-form, .application-form",
	},
}

// generic 未识别平台的兜底处理，只填常见字段，不处理登录
var generic = Variant{
	Platform: PlatformUnknown,
	Selectors: Selectors{
		Fields: []FieldSelector{
			{FieldFirstName, "input[name*='first' i]"},
			{FieldLastName, "input[name*='last' i]"},
			{FieldEmail, "input[type='email'], input[name*='email' i]"},
			{FieldPhone, "input[type='tel'], input[name*='phone' i]"},
		},
		Resume:        "input[type='file'][name*='resume' i], input[type='file'][name*='cv' i]",
		QuestionBlock: "form .question, form fieldset",
		QuestionLabel: "label, legend",
		QuestionInput: "input[type='text'], textarea",
		Review:        "form button[type='submit'], form input[type='submit']",
		Form:          "form",
	},
}

// variants 按检测优先级排列
var variants = []Variant{workday, greenhouse, lever}

// Detect 先按 URL 再按页面标记识别平台，识别不出时返回通用处理
func Detect(url, content string) Variant {
	lowerURL := strings.ToLower(url)
	for _, v := range variants {
		for _, p := range v.URLPatterns {
			if strings.Contains(lowerURL, p) {
				return v
			}
		}
	}

	lowerContent := strings.ToLower(content)
	for _, v := range variants {
		for _, m := range v.PageMarkers {
			if strings.Contains(lowerContent, m) {
				return v
			}
		}
	}

	return generic
}

// VariantFor 按平台名取选择器表
func VariantFor(p Platform) Variant {
	for _, v := range variants {
		if v.Platform == p {
			return v
		}
	}
	return generic
}
