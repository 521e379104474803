package notifier

import "context"

const (
	defaultPushPlusURL = "https://www.pushplus.plus"
	pushPlusMaxTitle   = 100
)

// PushPlus 通过 PushPlus 推送到微信
type PushPlus struct {
	base
	token string
}

var _ Notifier = (*PushPlus)(nil)

func NewPushPlus(token string, opts ...Option) *PushPlus {
	return &PushPlus{base: newBase(defaultPushPlusURL, opts), token: token}
}

func (p *PushPlus) Name() string { return "WeChat" }

func (p *PushPlus) Send(ctx context.Context, title, body, link string) bool {
	if link != "" {
		body += "\n\n<a href=\"" + link + "\">阅读原文</a>"
	}
	return p.push(ctx, title, body, "txt")
}

func (p *PushPlus) SendMarkdown(ctx context.Context, title, body string) bool {
	return p.push(ctx, title, body, "markdown")
}

func (p *PushPlus) push(ctx context.Context, title, content, template string) bool {
	payload := map[string]any{
		"token":    p.token,
		"title":    truncate(title, pushPlusMaxTitle),
		"content":  content,
		"template": template,
	}
	var reply struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if _, err := p.postJSON(ctx, p.baseURL+"/send", payload, &reply); err != nil {
		p.logger.Error("pushplus send failed", "error", err)
		return false
	}
	if reply.Code != 200 {
		p.logger.Error("pushplus send rejected", "code", reply.Code, "msg", reply.Msg)
		return false
	}
	return true
}
