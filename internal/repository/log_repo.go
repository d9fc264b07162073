package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/apply_go_server/internal/model"
)

// LogRepository 只提供追加和读取
type LogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) Append(entry *model.LogEntry) error {
	return r.db.Create(entry).Error
}

// ListByApplication 按时间顺序返回日志
func (r *LogRepository) ListByApplication(applicationID int64) ([]*model.LogEntry, error) {
	var entries []*model.LogEntry
	err := r.db.Where("application_id = ?", applicationID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// Latest 最近一条日志，没有时返回 nil
func (r *LogRepository) Latest(applicationID int64) (*model.LogEntry, error) {
	var entries []*model.LogEntry
	err := r.db.Where("application_id = ?", applicationID).
		Order("id DESC").
		Limit(1).
		Find(&entries).Error
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return entries[0], nil
}

// LatestMessages 批量获取每个申请的最新日志内容
func (r *LogRepository) LatestMessages(applicationIDs []int64) (map[int64]string, error) {
	result := make(map[int64]string, len(applicationIDs))
	if len(applicationIDs) == 0 {
		return result, nil
	}

	var entries []*model.LogEntry
	sub := r.db.Model(&model.LogEntry{}).
		Select("MAX(id)").
		Where("application_id IN ?", applicationIDs).
		Group("application_id")
	if err := r.db.Where("id IN (?)", sub).Find(&entries).Error; err != nil {
		return nil, err
	}

	for _, e := range entries {
		result[e.ApplicationID] = e.Message
	}
	return result, nil
}
