package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/qs3c/apply_go_server/internal/automation"
	"github.com/qs3c/apply_go_server/internal/model"
	"github.com/qs3c/apply_go_server/internal/model/dto"
	"github.com/qs3c/apply_go_server/internal/pkg/secret"
	"github.com/qs3c/apply_go_server/internal/repository"
)

var (
	ErrProfileNotFound   = errors.New("个人资料不存在")
	ErrUnknownField      = errors.New("该字段不需要消解冲突")
	ErrValueNotCandidate = errors.New("所选值不在候选列表中")
	ErrInvalidStrategy   = errors.New("密码策略只能是 generate 或 ask")
	ErrNoCredentialKey   = errors.New("未配置 credential_key，无法读写密码")
)

// 参与冲突检测的字段
var conflictFields = []string{model.FieldEmail, model.FieldPhone}

type ProfileService struct {
	repo *repository.ProfileRepository
	box  *secret.Box
}

func NewProfileService(repo *repository.ProfileRepository, box *secret.Box) *ProfileService {
	return &ProfileService{repo: repo, box: box}
}

// normalizeValue 比较候选值时忽略空白，邮箱忽略大小写
func normalizeValue(field, value string) string {
	v := strings.TrimSpace(value)
	if field == model.FieldEmail {
		v = strings.ToLower(v)
	}
	return v
}

func baseValue(p *model.Profile, field string) string {
	switch field {
	case model.FieldEmail:
		return p.Email
	case model.FieldPhone:
		return p.Phone
	}
	return ""
}

// fieldState 单个字段的候选集合和最终取值
type fieldState struct {
	candidates []string
	value      string
	resolved   bool
}

func (s *ProfileService) load() (*model.Profile, map[string]*fieldState, error) {
	profile, err := s.repo.Get()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	candidates, err := s.repo.ListCandidates()
	if err != nil {
		return nil, nil, err
	}
	resolutions, err := s.repo.ListResolutions()
	if err != nil {
		return nil, nil, err
	}

	chosen := make(map[string]string, len(resolutions))
	for _, r := range resolutions {
		chosen[r.Field] = r.ChosenValue
	}

	states := make(map[string]*fieldState, len(conflictFields))
	for _, field := range conflictFields {
		st := &fieldState{}
		seen := map[string]bool{}
		add := func(v string) {
			key := normalizeValue(field, v)
			if key == "" || seen[key] {
				return
			}
			seen[key] = true
			st.candidates = append(st.candidates, strings.TrimSpace(v))
		}

		add(baseValue(profile, field))
		for _, c := range candidates {
			if c.Field == field {
				add(c.Value)
			}
		}

		if v, ok := chosen[field]; ok {
			st.value, st.resolved = v, true
		} else if len(st.candidates) == 1 {
			st.value = st.candidates[0]
		}
		states[field] = st
	}
	return profile, states, nil
}

// Consolidated 合并资料和候选值，未消解的冲突随资料一并返回
func (s *ProfileService) Consolidated(_ context.Context) (*automation.Profile, error) {
	profile, states, err := s.load()
	if errors.Is(err, ErrProfileNotFound) {
		return nil, automation.ErrNoProfile
	}
	if err != nil {
		return nil, err
	}

	password := ""
	if profile.DefaultPasswordCipher != "" && s.box != nil {
		password, err = s.box.Open(profile.DefaultPasswordCipher)
		if err != nil {
			return nil, err
		}
	}

	out := &automation.Profile{
		FirstName:        profile.FirstName,
		LastName:         profile.LastName,
		Email:            profile.Email,
		Phone:            profile.Phone,
		Location:         profile.Location,
		LinkedInURL:      profile.LinkedInURL,
		WebsiteURL:       profile.WebsiteURL,
		Experience:       profile.Experience,
		Education:        profile.Education,
		ResumePath:       profile.ResumePath,
		DefaultPassword:  password,
		PasswordStrategy: profile.PasswordStrategy,
	}
	if out.PasswordStrategy == "" {
		out.PasswordStrategy = model.PasswordStrategyGenerate
	}

	for _, field := range conflictFields {
		st := states[field]
		if st.value == "" && len(st.candidates) > 1 {
			out.Conflicts = append(out.Conflicts, automation.Conflict{Field: field, Candidates: st.candidates})
			continue
		}
		switch field {
		case model.FieldEmail:
			out.Email = st.value
		case model.FieldPhone:
			out.Phone = st.value
		}
	}
	return out, nil
}

// Conflicts 未消解的冲突字段
func (s *ProfileService) Conflicts() ([]dto.ConflictItem, error) {
	_, states, err := s.load()
	if err != nil {
		return nil, err
	}

	items := []dto.ConflictItem{}
	for _, field := range conflictFields {
		st := states[field]
		if !st.resolved && len(st.candidates) > 1 {
			items = append(items, dto.ConflictItem{Field: field, Candidates: st.candidates})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Field < items[j].Field })
	return items, nil
}

// ResolveConflict 记录人工选择，值必须是候选之一
func (s *ProfileService) ResolveConflict(field, value string) error {
	_, states, err := s.load()
	if err != nil {
		return err
	}
	st, ok := states[field]
	if !ok {
		return ErrUnknownField
	}

	want := normalizeValue(field, value)
	for _, c := range st.candidates {
		if normalizeValue(field, c) == want {
			return s.repo.SaveResolution(field, c)
		}
	}
	return ErrValueNotCandidate
}

// ProfileFile 个人资料导入文件
type ProfileFile struct {
	FirstName        string `yaml:"first_name"`
	LastName         string `yaml:"last_name"`
	Email            string `yaml:"email"`
	Phone            string `yaml:"phone"`
	Location         string `yaml:"location"`
	LinkedInURL      string `yaml:"linkedin_url"`
	WebsiteURL       string `yaml:"website_url"`
	Experience       string `yaml:"experience"`
	Education        string `yaml:"education"`
	ResumePath       string `yaml:"resume_path"`
	DefaultPassword  string `yaml:"default_password"`
	PasswordStrategy string `yaml:"password_strategy"`
	Candidates       []struct {
		Field  string `yaml:"field"`
		Value  string `yaml:"value"`
		Source string `yaml:"source"`
	} `yaml:"candidates"`
}

// ImportYAML 覆盖唯一的个人资料并追加候选值，密码加密后保存
func (s *ProfileService) ImportYAML(r io.Reader) (*model.Profile, error) {
	var f ProfileFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Join(ErrInvalidImport, err)
	}

	strategy := f.PasswordStrategy
	if strategy == "" {
		strategy = model.PasswordStrategyGenerate
	}
	if strategy != model.PasswordStrategyGenerate && strategy != model.PasswordStrategyAsk {
		return nil, ErrInvalidStrategy
	}

	profile, err := s.repo.Get()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile, err = &model.Profile{}, nil
	}
	if err != nil {
		return nil, err
	}

	profile.FirstName = strings.TrimSpace(f.FirstName)
	profile.LastName = strings.TrimSpace(f.LastName)
	profile.Email = strings.TrimSpace(f.Email)
	profile.Phone = strings.TrimSpace(f.Phone)
	profile.Location = f.Location
	profile.LinkedInURL = f.LinkedInURL
	profile.WebsiteURL = f.WebsiteURL
	profile.Experience = f.Experience
	profile.Education = f.Education
	profile.ResumePath = f.ResumePath
	profile.PasswordStrategy = strategy

	if f.DefaultPassword != "" {
		if s.box == nil {
			return nil, ErrNoCredentialKey
		}
		sealed, err := s.box.Seal(f.DefaultPassword)
		if err != nil {
			return nil, err
		}
		profile.DefaultPasswordCipher = sealed
	}

	if err := s.repo.Save(profile); err != nil {
		return nil, err
	}

	for _, c := range f.Candidates {
		if strings.TrimSpace(c.Value) == "" {
			continue
		}
		err := s.repo.AddCandidate(&model.ProfileCandidate{Field: c.Field, Value: c.Value, Source: c.Source})
		if err != nil {
			return nil, err
		}
	}
	return profile, nil
}
