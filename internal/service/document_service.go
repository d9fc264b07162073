package service

import (
	"context"

	"github.com/qs3c/apply_go_server/internal/automation"
	"github.com/qs3c/apply_go_server/internal/model"
	"github.com/qs3c/apply_go_server/internal/repository"
)

// DocumentService 提供外部生成的求职信
type DocumentService struct {
	repo       *repository.DocumentRepository
	autoAttach bool
}

func NewDocumentService(repo *repository.DocumentRepository, autoAttach bool) *DocumentService {
	return &DocumentService{repo: repo, autoAttach: autoAttach}
}

func (s *DocumentService) CoverLetter(_ context.Context, applicationID int64) (*automation.CoverLetter, bool, error) {
	doc, err := s.repo.LatestByKind(applicationID, model.DocumentKindCoverLetter)
	if err != nil {
		return nil, s.autoAttach, err
	}
	if doc == nil {
		return nil, s.autoAttach, nil
	}
	return &automation.CoverLetter{Path: doc.Path}, s.autoAttach, nil
}

// Register 登记某个申请的材料文件
func (s *DocumentService) Register(applicationID int64, kind, path string) (*model.Document, error) {
	doc := &model.Document{ApplicationID: applicationID, Kind: kind, Path: path}
	if err := s.repo.Create(doc); err != nil {
		return nil, err
	}
	return doc, nil
}
