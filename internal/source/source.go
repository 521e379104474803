// Package source implements the external news providers.
package source

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"news-agent/internal/logging"
	"news-agent/internal/model"
)

const (
	// MaxSummaryLength bounds stored summaries, in characters.
	MaxSummaryLength = 500
	// MaxItemsPerFeed caps how many entries a single feed or API page contributes.
	MaxItemsPerFeed = 20
	// maxResponseBytes caps JSON provider responses.
	maxResponseBytes = 4 << 20

	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 NewsAgent/2.0"
)

// Source fetches candidate items from one provider.
//
// Expected provider failures (bad status, empty or malformed payload) are
// logged and yield a partial or empty list with a nil error. A non-nil error
// means something unexpected happened and is reported per source by the caller.
type Source interface {
	Name() string
	// EnabledKey is the settings key that toggles this source. Empty means always on.
	EnabledKey() string
	Fetch(ctx context.Context) ([]model.Candidate, error)
}

// Option customizes an adapter.
type Option func(*base)

type base struct {
	client    *http.Client
	baseURL   string
	userAgent string
	logger    *slog.Logger
}

func newBase(defaultURL string, opts []Option) base {
	b := base{
		client:    &http.Client{Timeout: defaultTimeout},
		baseURL:   defaultURL,
		userAgent: defaultUserAgent,
		logger:    logging.Discard(),
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

// WithTimeout sets the per-request timeout on the adapter's client.
func WithTimeout(d time.Duration) Option {
	return func(b *base) {
		if d > 0 {
			b.client = &http.Client{Timeout: d}
		}
	}
}

// WithBaseURL overrides the provider endpoint (useful for tests).
func WithBaseURL(url string) Option {
	return func(b *base) {
		if url != "" {
			b.baseURL = url
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// CleanText strips HTML markup and collapses whitespace.
func CleanText(s string) string {
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// Summary cleans and bounds provider text for storage.
func Summary(s string) string {
	return Truncate(CleanText(s), MaxSummaryLength)
}

// parseTimestamp accepts RFC3339 strings or unix seconds.
func parseTimestamp(raw json.RawMessage) *time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if str == "" {
			return nil
		}
		if t, err := time.Parse(time.RFC3339, str); err == nil {
			t = t.UTC()
			return &t
		}
		if secs, err := strconv.ParseInt(str, 10, 64); err == nil {
			t := time.Unix(secs, 0).UTC()
			return &t
		}
		return nil
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil && num > 0 {
		t := time.Unix(int64(num), 0).UTC()
		return &t
	}
	return nil
}
