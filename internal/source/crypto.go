package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"news-agent/internal/model"
)

const defaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// CryptoSource 从 CoinGecko 抓取加密货币新闻
type CryptoSource struct {
	base
}

var _ Source = (*CryptoSource)(nil)

type coinGeckoEntry struct {
	Title       string          `json:"title"`
	URL         string          `json:"url"`
	Description string          `json:"description"`
	UpdatedAt   json.RawMessage `json:"updated_at"`
	Thumb2x     string          `json:"thumb_2x"`
	LargeImg    string          `json:"large_img"`
}

func NewCryptoSource(opts ...Option) *CryptoSource {
	return &CryptoSource{base: newBase(defaultCoinGeckoURL, opts)}
}

func (s *CryptoSource) Name() string       { return "CoinGecko" }
func (s *CryptoSource) EnabledKey() string { return model.SettingSourceCryptoEnabled }

func (s *CryptoSource) Fetch(ctx context.Context) ([]model.Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/news", nil)
	if err != nil {
		return nil, fmt.Errorf("coingecko: create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("coingecko request failed", "error", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("coingecko news api returned non-200", "status", resp.StatusCode)
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		s.logger.Warn("coingecko read body failed", "error", err)
		return nil, nil
	}

	entries, ok := decodeCoinGecko(body)
	if !ok {
		s.logger.Warn("coingecko payload not understood", "bytes", len(body))
		return nil, nil
	}
	if len(entries) > MaxItemsPerFeed {
		entries = entries[:MaxItemsPerFeed]
	}

	items := make([]model.Candidate, 0, len(entries))
	for _, e := range entries {
		image := e.Thumb2x
		if image == "" {
			image = e.LargeImg
		}
		items = append(items, model.Candidate{
			Title:       strings.TrimSpace(e.Title),
			URL:         strings.TrimSpace(e.URL),
			Source:      "CoinGecko",
			Category:    "crypto",
			Summary:     Summary(e.Description),
			ImageURL:    image,
			PublishedAt: parseTimestamp(e.UpdatedAt),
		})
	}
	return items, nil
}

// decodeCoinGecko 兼容 {"data": [...]} 与直接数组两种格式
func decodeCoinGecko(body []byte) ([]coinGeckoEntry, bool) {
	var wrapped struct {
		Data []coinGeckoEntry `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Data != nil {
		return wrapped.Data, true
	}
	var list []coinGeckoEntry
	if err := json.Unmarshal(body, &list); err == nil {
		return list, true
	}
	return nil, false
}
