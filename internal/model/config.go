package model

import "time"

// Setting 运行期配置项,键值存储
type Setting struct {
	ID          uint   `gorm:"primaryKey"`
	Key         string `gorm:"size:100;uniqueIndex;not null"`
	Value       string `gorm:"type:text"`
	Category    string `gorm:"size:50;default:general"`
	Label       string `gorm:"size:200"`
	Description string `gorm:"type:text"`
	FieldType   string `gorm:"size:20;default:text"`
	UpdatedAt   time.Time
}

// 预定义配置键
const (
	SettingTimezone = "timezone"

	SettingAIEnabled = "ai_enabled"
	SettingAIApiKey  = "ai_api_key"
	SettingAIApiBase = "ai_api_base"
	SettingAIModel   = "ai_model"

	SettingSourceRSSEnabled     = "source_rss_enabled"
	SettingSourceRSSFeeds       = "source_rss_feeds"
	SettingSourceCryptoEnabled  = "source_crypto_enabled"
	SettingSourceNewsAPIEnabled = "source_newsapi_enabled"
	SettingSourceNewsAPIKey     = "source_newsapi_key"

	SettingTelegramEnabled  = "telegram_enabled"
	SettingTelegramBotToken = "telegram_bot_token"
	SettingTelegramChatID   = "telegram_chat_id"
	SettingWeChatEnabled    = "wechat_enabled"
	SettingPushPlusToken    = "pushplus_token"
	SettingQQEnabled        = "qq_enabled"
	SettingQmsgKey          = "qmsg_key"

	SettingPushImportant     = "push_important_immediately"
	SettingPushMorningReport = "push_morning_report"
	SettingPushEveningReport = "push_evening_report"
)
