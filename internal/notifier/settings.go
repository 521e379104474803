package notifier

import (
	"context"

	"news-agent/internal/model"
	"news-agent/internal/settings"
)

// FromSettings builds the channels that are enabled and fully configured.
// A channel with missing credentials is left out silently.
func FromSettings(ctx context.Context, p settings.Provider, opts ...Option) []Notifier {
	var channels []Notifier

	if settings.Bool(ctx, p, model.SettingTelegramEnabled, false) {
		token := settings.String(ctx, p, model.SettingTelegramBotToken, "")
		chatID := settings.String(ctx, p, model.SettingTelegramChatID, "")
		if token != "" && chatID != "" {
			channels = append(channels, NewTelegram(token, chatID, opts...))
		}
	}

	if settings.Bool(ctx, p, model.SettingWeChatEnabled, false) {
		if token := settings.String(ctx, p, model.SettingPushPlusToken, ""); token != "" {
			channels = append(channels, NewPushPlus(token, opts...))
		}
	}

	if settings.Bool(ctx, p, model.SettingQQEnabled, false) {
		if key := settings.String(ctx, p, model.SettingQmsgKey, ""); key != "" {
			channels = append(channels, NewQmsg(key, opts...))
		}
	}

	return channels
}
