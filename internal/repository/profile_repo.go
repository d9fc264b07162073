package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/apply_go_server/internal/model"
)

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get 单用户系统只有一份资料
func (r *ProfileRepository) Get() (*model.Profile, error) {
	var profile model.Profile
	if err := r.db.Order("id ASC").First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) Save(profile *model.Profile) error {
	return r.db.Save(profile).Error
}

func (r *ProfileRepository) AddCandidate(c *model.ProfileCandidate) error {
	return r.db.Create(c).Error
}

func (r *ProfileRepository) ListCandidates() ([]*model.ProfileCandidate, error) {
	var candidates []*model.ProfileCandidate
	err := r.db.Order("id ASC").Find(&candidates).Error
	return candidates, err
}

func (r *ProfileRepository) ListResolutions() ([]*model.ConflictResolution, error) {
	var resolutions []*model.ConflictResolution
	err := r.db.Order("id ASC").Find(&resolutions).Error
	return resolutions, err
}

// SaveResolution 记录或覆盖字段的人工选择
func (r *ProfileRepository) SaveResolution(field, value string) error {
	resolution := &model.ConflictResolution{
		Field:       field,
		ChosenValue: value,
		ResolvedAt:  time.Now(),
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "field"}},
		DoUpdates: clause.AssignmentColumns([]string{"chosen_value", "resolved_at"}),
	}).Create(resolution).Error
}
