package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"news-agent/internal/logging"
	"news-agent/internal/model"
)

// DefaultRetention 文章保留时长
const DefaultRetention = 30 * 24 * time.Hour

// RetentionService 清理过期文章
type RetentionService struct {
	db     *gorm.DB
	maxAge time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewRetentionService(db *gorm.DB, maxAge time.Duration, logger *slog.Logger) *RetentionService {
	if maxAge <= 0 {
		maxAge = DefaultRetention
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &RetentionService{
		db:     db,
		maxAge: maxAge,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Cleanup 删除抓取时间早于保留期的文章
func (s *RetentionService) Cleanup(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.maxAge)
	res := s.db.WithContext(ctx).Where("fetched_at < ?", cutoff).Delete(&model.Article{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired articles: %w", res.Error)
	}
	s.logger.Info("expired articles removed", "count", res.RowsAffected, "cutoff", cutoff)
	return res.RowsAffected, nil
}
