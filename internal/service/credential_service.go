package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/apply_go_server/internal/automation"
	"github.com/qs3c/apply_go_server/internal/model"
	"github.com/qs3c/apply_go_server/internal/pkg/secret"
	"github.com/qs3c/apply_go_server/internal/repository"
)

// CredentialService 站点账号，密码加密存储
type CredentialService struct {
	repo *repository.CredentialRepository
	box  *secret.Box
}

func NewCredentialService(repo *repository.CredentialRepository, box *secret.Box) *CredentialService {
	return &CredentialService{repo: repo, box: box}
}

// Current 站点当前有效账号，没有时返回 nil
func (s *CredentialService) Current(_ context.Context, site string) (*automation.Credential, error) {
	cred, err := s.repo.Current(site)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.box == nil {
		return nil, ErrNoCredentialKey
	}

	password, err := s.box.Open(cred.PasswordCipher)
	if err != nil {
		return nil, err
	}
	return &automation.Credential{
		ID:       cred.ID,
		Site:     cred.Site,
		Username: cred.Username,
		Password: password,
		Source:   cred.Source,
	}, nil
}

// Save 先加密再写入，同站点旧账号被标记为 superseded
func (s *CredentialService) Save(_ context.Context, applicationID int64, c automation.Credential) (*automation.Credential, error) {
	if s.box == nil {
		return nil, ErrNoCredentialKey
	}
	cipher, err := s.box.Seal(c.Password)
	if err != nil {
		return nil, err
	}

	source := c.Source
	if source == "" {
		source = model.CredentialSourceGenerated
	}
	record := &model.Credential{
		Site:           c.Site,
		Username:       c.Username,
		PasswordCipher: cipher,
		Source:         source,
	}
	if applicationID > 0 {
		record.ApplicationID = &applicationID
	}
	if err := s.repo.CreateSuperseding(record); err != nil {
		return nil, err
	}

	c.ID = record.ID
	c.Source = source
	return &c, nil
}
