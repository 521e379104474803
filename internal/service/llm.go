package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"news-agent/internal/logging"
	"news-agent/internal/model"
	"news-agent/internal/settings"
)

const (
	DefaultAIBase  = "https://api.openai.com/v1"
	DefaultAIModel = "gpt-4o-mini"

	defaultAITimeout = 60 * time.Second
)

// AI is the chat-completion capability the skills depend on.
// A false result means "unavailable, try again later" and is never an error.
type AI interface {
	Chat(ctx context.Context, req ChatRequest) (string, bool)
	ChatJSON(ctx context.Context, req ChatRequest) (map[string]any, bool)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 单次对话请求
type ChatRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// JSON 要求模型返回 JSON 对象
	JSON bool
}

type chatPayload struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// AIConfig 当前生效的 AI 配置
type AIConfig struct {
	Enabled bool
	APIKey  string
	APIBase string
	Model   string
}

// AIClient is the single gateway to the remote chat-completion endpoint.
type AIClient struct {
	settings settings.Provider
	client   *http.Client
	logger   *slog.Logger
}

var _ AI = (*AIClient)(nil)

func NewAIClient(provider settings.Provider, timeout time.Duration, logger *slog.Logger) *AIClient {
	if timeout <= 0 {
		timeout = defaultAITimeout
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &AIClient{
		settings: provider,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Config 每次调用都重新读取配置
func (c *AIClient) Config(ctx context.Context) AIConfig {
	return AIConfig{
		Enabled: settings.Bool(ctx, c.settings, model.SettingAIEnabled, true),
		APIKey:  settings.String(ctx, c.settings, model.SettingAIApiKey, ""),
		APIBase: strings.TrimRight(settings.String(ctx, c.settings, model.SettingAIApiBase, DefaultAIBase), "/"),
		Model:   settings.String(ctx, c.settings, model.SettingAIModel, DefaultAIModel),
	}
}

// Chat 调用模型,失败时返回 false
func (c *AIClient) Chat(ctx context.Context, req ChatRequest) (string, bool) {
	cfg := c.Config(ctx)
	if !cfg.Enabled || cfg.APIKey == "" {
		return "", false
	}

	payload := chatPayload{
		Model:       cfg.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("encode ai request failed", "error", err)
		return "", false
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("create ai request failed", "error", err)
		return "", false
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Error("ai request failed", "error", err)
		return "", false
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("read ai response failed", "error", err)
		return "", false
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("ai api error", "status", resp.StatusCode, "body", snippet(string(raw)))
		return "", false
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		c.logger.Error("decode ai response failed", "error", err)
		return "", false
	}
	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		c.logger.Error("ai response has no content")
		return "", false
	}
	return chat.Choices[0].Message.Content, true
}

// ChatJSON 以 JSON 模式调用模型并解析结果
func (c *AIClient) ChatJSON(ctx context.Context, req ChatRequest) (map[string]any, bool) {
	req.JSON = true
	text, ok := c.Chat(ctx, req)
	if !ok {
		return nil, false
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &out); err != nil || out == nil {
		c.logger.Error("parse ai json failed", "error", err, "content", snippet(text))
		return nil, false
	}
	return out, true
}

// stripCodeFence 去掉部分模型包裹的 ```json 代码块
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) > 200 {
		return string(r[:200])
	}
	return s
}
