package source

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"news-agent/internal/model"
	"news-agent/internal/settings"
)

// 同时抓取的 RSS 源数量
const rssConcurrency = 4

// DefaultFeeds 内置 RSS 源列表
func DefaultFeeds() []model.Feed {
	return []model.Feed{
		// 中文财经
		{Name: "新浪财经", URL: "https://finance.sina.com.cn/rss/economy.xml", Category: "a_stock"},
		{Name: "华尔街见闻", URL: "https://wallstreetcn.com/rss", Category: "global"},
		{Name: "36氪", URL: "https://36kr.com/feed", Category: "tech"},
		{Name: "金十数据", URL: "https://rsshub.app/jin10", Category: "global"},
		{Name: "东方财富", URL: "https://rsshub.app/eastmoney/report/stock", Category: "a_stock"},
		{Name: "FT中文网", URL: "https://rsshub.app/ft/chinese/hotstoryby7day", Category: "global"},
		// 国际财经
		{Name: "CoinDesk", URL: "https://www.coindesk.com/arc/outboundfeeds/rss/", Category: "crypto"},
		{Name: "Reuters Business", URL: "https://www.reutersagency.com/feed/?best-topics=business-finance", Category: "global"},
		{Name: "CNBC", URL: "https://search.cnbc.com/rs/search/combinedcms/view.xml?partnerId=wrss01&id=100003114", Category: "global"},
		{Name: "Bloomberg", URL: "https://rsshub.app/bloomberg/markets", Category: "global"},
		{Name: "TechCrunch", URL: "https://techcrunch.com/feed/", Category: "tech"},
		{Name: "The Block", URL: "https://www.theblock.co/rss.xml", Category: "crypto"},
		{Name: "SEC Filings", URL: "https://rsshub.app/sec/latest", Category: "a_stock"},
		{Name: "Hacker News", URL: "https://hnrss.org/frontpage", Category: "tech"},
	}
}

// RSSSource 抓取多个 RSS/Atom 源
type RSSSource struct {
	base
	settings settings.Provider
	defaults []model.Feed
}

var _ Source = (*RSSSource)(nil)

// NewRSSSource feeds come from the source_rss_feeds setting when it holds a
// non-empty list, otherwise from defaults.
func NewRSSSource(provider settings.Provider, defaults []model.Feed, opts ...Option) *RSSSource {
	if defaults == nil {
		defaults = DefaultFeeds()
	}
	return &RSSSource{
		base:     newBase("", opts),
		settings: provider,
		defaults: defaults,
	}
}

func (s *RSSSource) Name() string       { return "RSS" }
func (s *RSSSource) EnabledKey() string { return model.SettingSourceRSSEnabled }

// Feeds 当前生效的 RSS 源列表
func (s *RSSSource) Feeds(ctx context.Context) []model.Feed {
	raw := settings.String(ctx, s.settings, model.SettingSourceRSSFeeds, "")
	if raw == "" {
		return s.defaults
	}
	var feeds []model.Feed
	if err := json.Unmarshal([]byte(raw), &feeds); err != nil {
		s.logger.Warn("invalid rss feed list, using defaults", "error", err)
		return s.defaults
	}
	valid := feeds[:0]
	for _, f := range feeds {
		if f.URL != "" {
			valid = append(valid, f)
		}
	}
	if len(valid) == 0 {
		return s.defaults
	}
	return valid
}

// Fetch 抓取所有 RSS 源,单个源失败只记录日志
func (s *RSSSource) Fetch(ctx context.Context) ([]model.Candidate, error) {
	feeds := s.Feeds(ctx)
	results := make([][]model.Candidate, len(feeds))

	g := new(errgroup.Group)
	g.SetLimit(rssConcurrency)
	for i, feed := range feeds {
		g.Go(func() error {
			results[i] = s.fetchFeed(ctx, feed)
			return nil
		})
	}
	_ = g.Wait()

	var items []model.Candidate
	for _, r := range results {
		items = append(items, r...)
	}
	return items, nil
}

func (s *RSSSource) fetchFeed(ctx context.Context, feed model.Feed) []model.Candidate {
	parser := gofeed.NewParser()
	parser.Client = s.client
	parser.UserAgent = s.userAgent

	parsed, err := parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		s.logger.Warn("rss fetch failed", "feed", feed.Name, "error", err)
		return nil
	}

	category := feed.Category
	if category == "" {
		category = "general"
	}

	entries := parsed.Items
	if len(entries) > MaxItemsPerFeed {
		entries = entries[:MaxItemsPerFeed]
	}

	items := make([]model.Candidate, 0, len(entries))
	for _, entry := range entries {
		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}
		items = append(items, model.Candidate{
			Title:       strings.TrimSpace(entry.Title),
			URL:         strings.TrimSpace(entry.Link),
			Source:      feed.Name,
			Category:    category,
			Summary:     Summary(summary),
			ImageURL:    imageOf(entry),
			PublishedAt: publishedAt(entry),
		})
	}
	return items
}

func publishedAt(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		return &t
	}
	if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC()
		return &t
	}
	return nil
}

func imageOf(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if enc.Type == "" || strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}
