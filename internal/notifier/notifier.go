// Package notifier implements the outbound push channels.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"news-agent/internal/logging"
)

const defaultTimeout = 30 * time.Second

// Notifier is one push channel. Implementations never return errors: every
// failure is logged and reported as false.
type Notifier interface {
	Name() string
	// Send pushes a plain message, with an optional link to the original article.
	Send(ctx context.Context, title, body, link string) bool
	// SendMarkdown pushes a preformatted digest or report.
	SendMarkdown(ctx context.Context, title, body string) bool
}

// Option customizes a channel.
type Option func(*base)

type base struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

func newBase(defaultURL string, opts []Option) base {
	b := base{
		client:  &http.Client{Timeout: defaultTimeout},
		baseURL: defaultURL,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&b)
		}
	}
	b.baseURL = strings.TrimRight(b.baseURL, "/")
	return b
}

// WithHTTPClient overrides the HTTP client, including its timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(b *base) {
		if hc != nil {
			b.client = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *base) {
		if d > 0 {
			b.client = &http.Client{Timeout: d}
		}
	}
}

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(url string) Option {
	return func(b *base) {
		if url != "" {
			b.baseURL = url
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// postJSON sends payload and decodes the JSON reply into out.
// It returns the HTTP status code; decoding failures are returned as errors.
func (b *base) postJSON(ctx context.Context, url string, payload, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return b.do(req, out)
}

func (b *base) do(req *http.Request, out any) (int, error) {
	resp, err := b.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}

// truncate cuts s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
