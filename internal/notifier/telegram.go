package notifier

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"
)

const (
	defaultTelegramURL = "https://api.telegram.org"
	telegramMaxText    = 4096
)

// MarkdownV2 要求转义的字符
const markdownV2Special = "_*[]()~`>#+-=|{}.!"

var telegramEscaper = strings.NewReplacer(
	"_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`,
	"=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
)

// Telegram 通过 Bot API 推送到会话
type Telegram struct {
	base
	token  string
	chatID string
}

var _ Notifier = (*Telegram)(nil)

func NewTelegram(token, chatID string, opts ...Option) *Telegram {
	return &Telegram{base: newBase(defaultTelegramURL, opts), token: token, chatID: chatID}
}

func (t *Telegram) Name() string { return "Telegram" }

// Send 先按长度上限截取原文再转义,转义序列不会被截断
func (t *Telegram) Send(ctx context.Context, title, body, link string) bool {
	var footer string
	if link != "" {
		footer = "\n\n[阅读原文](" + link + ")"
	}
	budget := telegramMaxText - utf8.RuneCountInString(footer) - utf8.RuneCountInString("**\n\n")
	head := escapeWithin(title, budget)
	budget -= utf8.RuneCountInString(head)
	text := "*" + head + "*\n\n" + escapeWithin(body, budget) + footer
	return t.sendMessage(ctx, text, "MarkdownV2")
}

func (t *Telegram) SendMarkdown(ctx context.Context, title, body string) bool {
	return t.sendMessage(ctx, "📊 *"+title+"*\n\n"+body, "Markdown")
}

func (t *Telegram) sendMessage(ctx context.Context, text, parseMode string) bool {
	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     truncate(text, telegramMaxText),
		"parse_mode":               parseMode,
		"disable_web_page_preview": false,
	}
	var reply struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	status, err := t.postJSON(ctx, t.baseURL+"/bot"+t.token+"/sendMessage", payload, &reply)
	if err != nil {
		t.logger.Error("telegram send failed", "error", err)
		return false
	}
	if status != http.StatusOK || !reply.OK {
		t.logger.Error("telegram send rejected", "status", status, "description", reply.Description)
		return false
	}
	return true
}

// EscapeMarkdownV2 escapes text for Telegram's MarkdownV2 parse mode.
func EscapeMarkdownV2(s string) string {
	return telegramEscaper.Replace(s)
}

// escapeWithin 转义 s,结果最多 limit 个字符
func escapeWithin(s string, limit int) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		width := 1
		if strings.ContainsRune(markdownV2Special, r) {
			width = 2
		}
		if n+width > limit {
			break
		}
		if width == 2 {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
		n += width
	}
	return b.String()
}
