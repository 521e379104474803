package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"news-agent/internal/model"
)

// JobSchedule 由调度器提供的任务下次运行时间
type JobSchedule interface {
	NextRuns() map[string]time.Time
}

type StatusService struct {
	db       *gorm.DB
	sources  *SourceManager
	channels ChannelResolver
	live     *Broadcaster
	schedule JobSchedule
}

type SystemStatus struct {
	// 文章统计
	TotalArticles    int64 `json:"total_articles"`
	UnscoredArticles int64 `json:"unscored_articles"`
	UnpushedArticles int64 `json:"unpushed_articles"`

	// 预警与日报
	ActiveAlerts int64 `json:"active_alerts"`
	TotalReports int64 `json:"total_reports"`

	// 数据源与推送渠道
	EnabledSources  []string `json:"enabled_sources"`
	EnabledChannels []string `json:"enabled_channels"`

	// 定时任务信息
	NextRuns map[string]time.Time `json:"next_runs,omitempty"`

	Subscribers int `json:"live_subscribers"`
}

func NewStatusService(db *gorm.DB, sources *SourceManager, channels ChannelResolver, live *Broadcaster) *StatusService {
	return &StatusService{db: db, sources: sources, channels: channels, live: live}
}

// SetSchedule 调度器启动后注入
func (s *StatusService) SetSchedule(schedule JobSchedule) {
	s.schedule = schedule
}

// GetSystemStatus 获取系统状态
func (s *StatusService) GetSystemStatus(ctx context.Context) (*SystemStatus, error) {
	status := &SystemStatus{
		EnabledSources:  []string{},
		EnabledChannels: []string{},
	}
	db := s.db.WithContext(ctx)

	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&status.TotalArticles, db.Model(&model.Article{})},
		{&status.UnscoredArticles, db.Model(&model.Article{}).Where("ai_analysis IS NULL")},
		{&status.UnpushedArticles, db.Model(&model.Article{}).Where("pushed = ?", false)},
		{&status.ActiveAlerts, db.Model(&model.Alert{}).Where("active = ?", true)},
		{&status.TotalReports, db.Model(&model.DailyReport{})},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("count status: %w", err)
		}
	}

	if s.sources != nil {
		for _, src := range s.sources.Enabled(ctx) {
			status.EnabledSources = append(status.EnabledSources, src.Name())
		}
	}
	if s.channels != nil {
		for _, ch := range s.channels.Channels(ctx) {
			status.EnabledChannels = append(status.EnabledChannels, ch.Name())
		}
	}
	if s.schedule != nil {
		status.NextRuns = s.schedule.NextRuns()
	}
	if s.live != nil {
		status.Subscribers = s.live.Subscribers()
	}
	return status, nil
}
