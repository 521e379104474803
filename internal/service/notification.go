package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"news-agent/internal/logging"
	"news-agent/internal/model"
	"news-agent/internal/notifier"
	"news-agent/internal/settings"
)

const (
	importantMinScore  = 3
	importantBatchSize = 10
	digestWindow       = 30 * time.Minute
	digestBatchSize    = 20
	digestTitle        = "新闻摘要"
)

// ChannelResolver returns the channels to use for one invocation.
type ChannelResolver interface {
	Channels(ctx context.Context) []notifier.Notifier
}

// ChannelResolverFunc adapts a function to ChannelResolver.
type ChannelResolverFunc func(ctx context.Context) []notifier.Notifier

func (f ChannelResolverFunc) Channels(ctx context.Context) []notifier.Notifier {
	return f(ctx)
}

// SettingsChannels resolves channels from the current settings on every call.
func SettingsChannels(p settings.Provider, opts ...notifier.Option) ChannelResolver {
	return ChannelResolverFunc(func(ctx context.Context) []notifier.Notifier {
		return notifier.FromSettings(ctx, p, opts...)
	})
}

// NotificationService 多渠道推送,记录文章推送状态
type NotificationService struct {
	db       *gorm.DB
	settings settings.Provider
	channels ChannelResolver
	logger   *slog.Logger
	now      func() time.Time
}

func NewNotificationService(db *gorm.DB, provider settings.Provider, channels ChannelResolver, logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &NotificationService{
		db:       db,
		settings: provider,
		channels: channels,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PushImportant 推送未推送的重要文章(重要度 ≥3),
// 无论各渠道是否成功都标记为已推送。
func (s *NotificationService) PushImportant(ctx context.Context) (int, error) {
	if !settings.Bool(ctx, s.settings, model.SettingPushImportant, true) {
		return 0, nil
	}
	channels := s.channels.Channels(ctx)
	if len(channels) == 0 {
		return 0, nil
	}

	var articles []model.Article
	err := s.db.WithContext(ctx).
		Where("pushed = ? AND importance >= ?", false, importantMinScore).
		Order("importance DESC, fetched_at DESC").
		Limit(importantBatchSize).
		Find(&articles).Error
	if err != nil {
		return 0, fmt.Errorf("load important articles: %w", err)
	}
	if len(articles) == 0 {
		return 0, nil
	}

	for _, a := range articles {
		body := a.Summary
		if body == "" {
			body = a.Title
		}
		s.fanout(ctx, channels, "important", func(ch notifier.Notifier) bool {
			return ch.Send(ctx, importanceEmoji(a.Importance)+" "+a.Title, body, a.URL)
		})
	}

	if err := s.markPushed(ctx, articles); err != nil {
		return 0, err
	}
	s.logger.Info("pushed important articles", "count", len(articles), "channels", len(channels))
	return len(articles), nil
}

// PushDigest 汇总最近 30 分钟未推送的文章,每个渠道发送一条摘要
func (s *NotificationService) PushDigest(ctx context.Context) (int, error) {
	channels := s.channels.Channels(ctx)
	if len(channels) == 0 {
		return 0, nil
	}

	var articles []model.Article
	err := s.db.WithContext(ctx).
		Where("pushed = ? AND fetched_at >= ?", false, s.now().Add(-digestWindow)).
		Order("importance DESC, fetched_at DESC").
		Limit(digestBatchSize).
		Find(&articles).Error
	if err != nil {
		return 0, fmt.Errorf("load digest articles: %w", err)
	}
	if len(articles) == 0 {
		return 0, nil
	}

	digest := FormatDigest(articles)
	s.fanout(ctx, channels, "digest", func(ch notifier.Notifier) bool {
		return ch.SendMarkdown(ctx, digestTitle, digest)
	})

	if err := s.markPushed(ctx, articles); err != nil {
		return 0, err
	}
	s.logger.Info("pushed digest", "count", len(articles), "channels", len(channels))
	return len(articles), nil
}

// PushAlert 推送单条预警,不修改任何状态。返回成功的渠道数。
func (s *NotificationService) PushAlert(ctx context.Context, alert model.Alert) int {
	channels := s.channels.Channels(ctx)
	title := alertEmoji(alert.Level) + " 预警: " + alert.Title
	return s.fanout(ctx, channels, "alert", func(ch notifier.Notifier) bool {
		return ch.Send(ctx, title, alert.Description, "")
	})
}

// PushReport 以 Markdown 推送日报。返回成功的渠道数。
func (s *NotificationService) PushReport(ctx context.Context, report model.DailyReport) int {
	channels := s.channels.Channels(ctx)
	return s.fanout(ctx, channels, "report", func(ch notifier.Notifier) bool {
		return ch.SendMarkdown(ctx, report.Title, report.Content)
	})
}

// fanout 逐个渠道发送,单个渠道失败或 panic 不影响其他渠道
func (s *NotificationService) fanout(ctx context.Context, channels []notifier.Notifier, kind string, send func(notifier.Notifier) bool) int {
	delivered := 0
	for _, ch := range channels {
		if ctx.Err() != nil {
			break
		}
		if s.sendOne(ch, kind, send) {
			delivered++
		}
	}
	return delivered
}

func (s *NotificationService) sendOne(ch notifier.Notifier, kind string, send func(notifier.Notifier) bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("push panicked", "channel", ch.Name(), "kind", kind, "panic", r)
			ok = false
		}
	}()
	if ok = send(ch); !ok {
		s.logger.Warn("push failed", "channel", ch.Name(), "kind", kind)
	}
	return ok
}

func (s *NotificationService) markPushed(ctx context.Context, articles []model.Article) error {
	ids := make([]uint, 0, len(articles))
	for _, a := range articles {
		ids = append(ids, a.ID)
	}
	err := s.db.WithContext(ctx).Model(&model.Article{}).
		Where("id IN ?", ids).
		Update("pushed", true).Error
	if err != nil {
		return fmt.Errorf("mark articles pushed: %w", err)
	}
	return nil
}

// FormatDigest 摘要正文,重要文章用红点标注
func FormatDigest(articles []model.Article) string {
	lines := make([]string, 0, len(articles)+1)
	lines = append(lines, fmt.Sprintf("📰 *%s* (%d 条)\n", digestTitle, len(articles)))
	for _, a := range articles {
		mark := "🔵"
		if a.Importance >= importantMinScore {
			mark = "🔴"
		}
		lines = append(lines, mark+" "+a.Title)
	}
	return strings.Join(lines, "\n")
}

func importanceEmoji(importance int) string {
	switch importance {
	case 5:
		return "🚨"
	case 4:
		return "⚠️"
	case 3:
		return "📢"
	default:
		return "📰"
	}
}

func alertEmoji(level model.AlertLevel) string {
	switch level {
	case model.AlertCritical:
		return "🚨"
	case model.AlertHigh:
		return "⚠️"
	case model.AlertLow:
		return "ℹ️"
	default:
		return "📢"
	}
}
