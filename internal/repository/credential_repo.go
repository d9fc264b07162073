package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/apply_go_server/internal/model"
)

type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// CreateSuperseding 写入新账号，并把同站点的旧账号标记为 superseded
func (r *CredentialRepository) CreateSuperseding(cred *model.Credential) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(cred).Error; err != nil {
			return err
		}
		return tx.Model(&model.Credential{}).
			Where("site = ? AND id <> ? AND superseded_at IS NULL", cred.Site, cred.ID).
			Update("superseded_at", time.Now()).Error
	})
}

func (r *CredentialRepository) GetByID(id int64) (*model.Credential, error) {
	var cred model.Credential
	if err := r.db.Where("id = ?", id).First(&cred).Error; err != nil {
		return nil, err
	}
	return &cred, nil
}

// Current 站点当前有效账号
func (r *CredentialRepository) Current(site string) (*model.Credential, error) {
	var cred model.Credential
	err := r.db.Where("site = ? AND superseded_at IS NULL", site).
		Order("id DESC").
		First(&cred).Error
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *CredentialRepository) ListBySite(site string) ([]*model.Credential, error) {
	var creds []*model.Credential
	err := r.db.Where("site = ?", site).Order("id ASC").Find(&creds).Error
	return creds, err
}
