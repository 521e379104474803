package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"news-agent/internal/model"
)

var ErrAlertNotFound = errors.New("alert not found")

// AlertService 预警查询与解除
type AlertService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAlertService(db *gorm.DB) *AlertService {
	return &AlertService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Active 未解除的预警,最新的在前
func (s *AlertService) Active(ctx context.Context, limit int) ([]model.Alert, error) {
	var alerts []model.Alert
	q := s.db.WithContext(ctx).Where("active = ?", true).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}
	return alerts, nil
}

// Resolve 解除预警,之后同标题可以再次触发。已解除的预警原样返回。
func (s *AlertService) Resolve(ctx context.Context, id uint) (*model.Alert, error) {
	var alert model.Alert
	err := s.db.WithContext(ctx).First(&alert, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load alert %d: %w", id, err)
	}
	if !alert.Active {
		return &alert, nil
	}

	resolvedAt := s.now()
	// active 带默认值,必须用 map 更新 false
	err = s.db.WithContext(ctx).Model(&alert).Updates(map[string]any{
		"active":      false,
		"resolved_at": resolvedAt,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("resolve alert %d: %w", id, err)
	}
	alert.Active = false
	alert.ResolvedAt = &resolvedAt
	return &alert, nil
}
