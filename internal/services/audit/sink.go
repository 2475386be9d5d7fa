package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"gorm.io/gorm"
)

// Sink persists audit records
type Sink interface {
	Save(ctx context.Context, entry *models.AIRequestLog) error
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// GormSink writes audit records through gorm
type GormSink struct {
	db *gorm.DB
}

// NewGormSink creates a sink on db. The table must already be migrated.
func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

// Save inserts one record
func (s *GormSink) Save(ctx context.Context, entry *models.AIRequestLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to save audit record: %w", err)
	}
	return nil
}

// Prune deletes records created before the cutoff and returns how many went
func (s *GormSink) Prune(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&models.AIRequestLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune audit records: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Recent returns the newest records, newest first
func (s *GormSink) Recent(ctx context.Context, limit int) ([]models.AIRequestLog, error) {
	var logs []models.AIRequestLog
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	return logs, nil
}
