package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/apply_go_server/internal/model"
)

type AnswerRepository struct {
	db *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

func (r *AnswerRepository) Create(answer *model.StandardAnswer) error {
	return r.db.Create(answer).Error
}

func (r *AnswerRepository) GetByID(id int64) (*model.StandardAnswer, error) {
	var answer model.StandardAnswer
	if err := r.db.Where("id = ?", id).First(&answer).Error; err != nil {
		return nil, err
	}
	return &answer, nil
}

func (r *AnswerRepository) Update(answer *model.StandardAnswer) error {
	return r.db.Save(answer).Error
}

func (r *AnswerRepository) List() ([]*model.StandardAnswer, error) {
	var answers []*model.StandardAnswer
	err := r.db.Order("id ASC").Find(&answers).Error
	return answers, err
}

// Upsert 按问题原文更新或新增
func (r *AnswerRepository) Upsert(question, answer string) (*model.StandardAnswer, bool, error) {
	var existing model.StandardAnswer
	err := r.db.Where("question = ?", question).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		sa := &model.StandardAnswer{Question: question, Answer: answer}
		if err := r.db.Create(sa).Error; err != nil {
			return nil, false, err
		}
		return sa, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	existing.Answer = answer
	if err := r.db.Save(&existing).Error; err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}
