package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"news-agent/internal/model"
	"news-agent/internal/settings"
)

const defaultNewsAPIURL = "https://newsapi.org/v2"

// NewsAPISource 从 NewsAPI 抓取国际财经头条
type NewsAPISource struct {
	base
	settings settings.Provider
}

var _ Source = (*NewsAPISource)(nil)

type newsAPIResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string          `json:"title"`
		Description string          `json:"description"`
		URL         string          `json:"url"`
		URLToImage  string          `json:"urlToImage"`
		PublishedAt json.RawMessage `json:"publishedAt"`
	} `json:"articles"`
}

func NewNewsAPISource(provider settings.Provider, opts ...Option) *NewsAPISource {
	return &NewsAPISource{base: newBase(defaultNewsAPIURL, opts), settings: provider}
}

func (s *NewsAPISource) Name() string       { return "NewsAPI" }
func (s *NewsAPISource) EnabledKey() string { return model.SettingSourceNewsAPIEnabled }

func (s *NewsAPISource) Fetch(ctx context.Context) ([]model.Candidate, error) {
	apiKey := settings.String(ctx, s.settings, model.SettingSourceNewsAPIKey, "")
	if apiKey == "" {
		s.logger.Debug("newsapi key not configured, skipping")
		return nil, nil
	}

	q := url.Values{}
	q.Set("category", "business")
	q.Set("language", "en")
	q.Set("pageSize", "30")
	q.Set("apiKey", apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/top-headlines?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("newsapi: create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("newsapi request failed", "error", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("newsapi returned non-200", "status", resp.StatusCode)
		return nil, nil
	}

	var payload newsAPIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		s.logger.Warn("newsapi decode failed", "error", err)
		return nil, nil
	}

	items := make([]model.Candidate, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		name := a.Source.Name
		if name == "" {
			name = "NewsAPI"
		}
		items = append(items, model.Candidate{
			Title:       strings.TrimSpace(a.Title),
			URL:         strings.TrimSpace(a.URL),
			Source:      name,
			Category:    "global",
			Summary:     Summary(a.Description),
			ImageURL:    a.URLToImage,
			PublishedAt: parseTimestamp(a.PublishedAt),
		})
	}
	return items, nil
}
