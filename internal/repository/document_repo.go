package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/apply_go_server/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

// LatestByKind 申请最新的某类材料，没有时返回 nil
func (r *DocumentRepository) LatestByKind(applicationID int64, kind string) (*model.Document, error) {
	var docs []*model.Document
	err := r.db.Where("application_id = ? AND kind = ?", applicationID, kind).
		Order("id DESC").
		Limit(1).
		Find(&docs).Error
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}
