package settings

import (
	"os"

	"news-agent/internal/model"
)

// Defaults 首次启动写入的默认配置
func Defaults() []model.Setting {
	return []model.Setting{
		// 系统配置
		{Key: model.SettingTimezone, Value: "Asia/Shanghai", Category: "system", Label: "时区", Description: "报告日期使用的时区", FieldType: "text"},
		// AI 配置
		{Key: model.SettingAIEnabled, Value: "true", Category: "ai", Label: "启用 AI 分析", Description: "是否启用 AI 驱动的新闻评分", FieldType: "boolean"},
		{Key: model.SettingAIApiKey, Value: "", Category: "ai", Label: "AI API Key", Description: "OpenAI 兼容接口的 API Key", FieldType: "password"},
		{Key: model.SettingAIApiBase, Value: "https://api.openai.com/v1", Category: "ai", Label: "AI API Base URL", Description: "可替换为 DeepSeek 等兼容接口地址", FieldType: "text"},
		{Key: model.SettingAIModel, Value: "gpt-4o-mini", Category: "ai", Label: "AI 模型", Description: "使用的模型名称", FieldType: "text"},
		// 数据源配置
		{Key: model.SettingSourceRSSEnabled, Value: "true", Category: "sources", Label: "启用 RSS 源", Description: "从财经 RSS 源采集新闻", FieldType: "boolean"},
		{Key: model.SettingSourceRSSFeeds, Value: "[]", Category: "sources", Label: "RSS 源列表", Description: "JSON 格式的 RSS 源配置,为空使用内置列表", FieldType: "json"},
		{Key: model.SettingSourceCryptoEnabled, Value: "true", Category: "sources", Label: "启用加密货币新闻", Description: "从 CoinGecko 采集加密货币资讯", FieldType: "boolean"},
		{Key: model.SettingSourceNewsAPIEnabled, Value: "false", Category: "sources", Label: "启用 NewsAPI", Description: "从 NewsAPI 采集国际财经新闻", FieldType: "boolean"},
		{Key: model.SettingSourceNewsAPIKey, Value: "", Category: "sources", Label: "NewsAPI Key", Description: "NewsAPI.org 的 API Key", FieldType: "password"},
		// 推送渠道
		{Key: model.SettingTelegramEnabled, Value: "false", Category: "notifications", Label: "启用 Telegram 推送", Description: "通过 Telegram Bot 推送新闻和预警", FieldType: "boolean"},
		{Key: model.SettingTelegramBotToken, Value: "", Category: "notifications", Label: "Telegram Bot Token", Description: "从 @BotFather 获取的 Bot Token", FieldType: "password"},
		{Key: model.SettingTelegramChatID, Value: "", Category: "notifications", Label: "Telegram Chat ID", Description: "推送目标的 Chat ID", FieldType: "text"},
		{Key: model.SettingWeChatEnabled, Value: "false", Category: "notifications", Label: "启用微信推送", Description: "通过 PushPlus 推送到微信", FieldType: "boolean"},
		{Key: model.SettingPushPlusToken, Value: "", Category: "notifications", Label: "PushPlus Token", Description: "从 pushplus.plus 获取的 Token", FieldType: "password"},
		{Key: model.SettingQQEnabled, Value: "false", Category: "notifications", Label: "启用 QQ 推送", Description: "通过 Qmsg 推送到 QQ", FieldType: "boolean"},
		{Key: model.SettingQmsgKey, Value: "", Category: "notifications", Label: "Qmsg Key", Description: "从 qmsg.zendee.cn 获取的 Key", FieldType: "password"},
		// 推送策略
		{Key: model.SettingPushImportant, Value: "true", Category: "push_strategy", Label: "重要新闻立即推送", Description: "重要度 >= 3 的新闻立即推送", FieldType: "boolean"},
		{Key: model.SettingPushMorningReport, Value: "true", Category: "push_strategy", Label: "推送早间日报", Description: "生成早报后推送到各渠道", FieldType: "boolean"},
		{Key: model.SettingPushEveningReport, Value: "true", Category: "push_strategy", Label: "推送晚间日报", Description: "生成晚报后推送到各渠道", FieldType: "boolean"},
	}
}

// FromEnv 从环境变量读取需要注入的密钥
func FromEnv() map[string]string {
	return map[string]string{
		model.SettingAIApiKey:         os.Getenv("AI_API_KEY"),
		model.SettingAIApiBase:        os.Getenv("AI_API_BASE"),
		model.SettingAIModel:          os.Getenv("AI_MODEL"),
		model.SettingTelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		model.SettingTelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		model.SettingPushPlusToken:    os.Getenv("PUSHPLUS_TOKEN"),
		model.SettingQmsgKey:          os.Getenv("QMSG_KEY"),
		model.SettingSourceNewsAPIKey: os.Getenv("NEWSAPI_KEY"),
	}
}

// IsSecret 密钥类配置在接口中需要隐藏
func IsSecret(s model.Setting) bool {
	return s.FieldType == "password"
}
