package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/qs3c/apply_go_server/internal/automation"
	"github.com/qs3c/apply_go_server/internal/model"
	"github.com/qs3c/apply_go_server/internal/repository"
)

var (
	ErrAnswerNotFound = errors.New("标准答案不存在")
	ErrEmptyAnswer    = errors.New("问题和答案不能为空")
	ErrInvalidImport  = errors.New("导入文件格式错误")
)

type AnswerService struct {
	repo *repository.AnswerRepository
}

func NewAnswerService(repo *repository.AnswerRepository) *AnswerService {
	return &AnswerService{repo: repo}
}

// StandardAnswers 供自动化匹配使用
func (s *AnswerService) StandardAnswers(_ context.Context) ([]automation.Answer, error) {
	rows, err := s.repo.List()
	if err != nil {
		return nil, err
	}
	out := make([]automation.Answer, 0, len(rows))
	for _, r := range rows {
		out = append(out, automation.Answer{
			ID:        r.ID,
			Question:  r.Question,
			Answer:    r.Answer,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return out, nil
}

func (s *AnswerService) List() ([]*model.StandardAnswer, error) {
	return s.repo.List()
}

func (s *AnswerService) Create(question, answer string) (*model.StandardAnswer, error) {
	question, answer = strings.TrimSpace(question), strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return nil, ErrEmptyAnswer
	}
	sa := &model.StandardAnswer{Question: question, Answer: answer}
	if err := s.repo.Create(sa); err != nil {
		return nil, err
	}
	return sa, nil
}

func (s *AnswerService) Update(id int64, question, answer string) (*model.StandardAnswer, error) {
	question, answer = strings.TrimSpace(question), strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return nil, ErrEmptyAnswer
	}

	sa, err := s.repo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAnswerNotFound
	}
	if err != nil {
		return nil, err
	}

	sa.Question, sa.Answer = question, answer
	if err := s.repo.Update(sa); err != nil {
		return nil, err
	}
	return sa, nil
}

// AnswerEntry 导入文件中的一条问答
type AnswerEntry struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

// ImportResult 导入统计
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// ImportYAML 导入 YAML 列表，按问题原文新增或覆盖
func (s *AnswerService) ImportYAML(r io.Reader) (*ImportResult, error) {
	var entries []AnswerEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrInvalidImport, err)
	}

	res := &ImportResult{}
	for _, e := range entries {
		q, a := strings.TrimSpace(e.Question), strings.TrimSpace(e.Answer)
		if q == "" || a == "" {
			res.Skipped++
			continue
		}
		_, created, err := s.repo.Upsert(q, a)
		if err != nil {
			return res, err
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}
	return res, nil
}
