package notifier

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultQmsgURL = "https://qmsg.zendee.cn"
	qmsgMaxMessage = 1500
)

// Qmsg 通过 Qmsg 酱推送到 QQ
type Qmsg struct {
	base
	key string
}

var _ Notifier = (*Qmsg)(nil)

func NewQmsg(key string, opts ...Option) *Qmsg {
	return &Qmsg{base: newBase(defaultQmsgURL, opts), key: key}
}

func (q *Qmsg) Name() string { return "QQ" }

func (q *Qmsg) Send(ctx context.Context, title, body, link string) bool {
	msg := "【" + title + "】\n" + body
	if link != "" {
		msg += "\n" + link
	}
	return q.push(ctx, msg)
}

func (q *Qmsg) SendMarkdown(ctx context.Context, title, body string) bool {
	return q.push(ctx, "【"+title+"】\n"+body)
}

func (q *Qmsg) push(ctx context.Context, msg string) bool {
	form := url.Values{}
	form.Set("msg", truncate(msg, qmsgMaxMessage))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.baseURL+"/send/"+url.PathEscape(q.key), strings.NewReader(form.Encode()))
	if err != nil {
		q.logger.Error("qmsg create request failed", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var reply struct {
		Success bool   `json:"success"`
		Reason  string `json:"reason"`
	}
	if _, err := q.do(req, &reply); err != nil {
		q.logger.Error("qmsg send failed", "error", err)
		return false
	}
	if !reply.Success {
		q.logger.Error("qmsg send rejected", "reason", reply.Reason)
		return false
	}
	return true
}
