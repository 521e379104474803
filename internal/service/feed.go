package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"news-agent/internal/logging"
	"news-agent/internal/model"
	"news-agent/internal/settings"
	"news-agent/internal/source"
)

// 每次 IN 查询携带的 URL 数量上限
const urlLookupChunk = 500

// SourceStat 单个数据源的抓取结果
type SourceStat struct {
	Fetched int    `json:"fetched"`
	Error   string `json:"error,omitempty"`
}

// FetchStats 一次抓取的汇总
type FetchStats struct {
	Sources      map[string]SourceStat `json:"sources"`
	TotalFetched int                   `json:"total_fetched"`
	TotalSaved   int                   `json:"total_saved"`
}

// SourceManager runs the enabled sources and stores what is new.
type SourceManager struct {
	db        *gorm.DB
	settings  settings.Provider
	sources   []source.Source
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewSourceManager(db *gorm.DB, provider settings.Provider, sources []source.Source, publisher Publisher, logger *slog.Logger) *SourceManager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &SourceManager{
		db:        db,
		settings:  provider,
		sources:   sources,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Sources 已注册的数据源
func (m *SourceManager) Sources() []source.Source {
	return m.sources
}

// Enabled 当前启用的数据源,配置缺失视为启用
func (m *SourceManager) Enabled(ctx context.Context) []source.Source {
	var enabled []source.Source
	for _, src := range m.sources {
		if key := src.EnabledKey(); key == "" || settings.Bool(ctx, m.settings, key, true) {
			enabled = append(enabled, src)
		}
	}
	return enabled
}

type fetchResult struct {
	items []model.Candidate
	err   error
}

// FetchAll 并发抓取所有启用的数据源并保存新文章
func (m *SourceManager) FetchAll(ctx context.Context) (*FetchStats, error) {
	stats := &FetchStats{Sources: make(map[string]SourceStat)}

	enabled := m.Enabled(ctx)
	if len(enabled) == 0 {
		m.logger.Info("no enabled sources")
		return stats, nil
	}

	results := make([]fetchResult, len(enabled))
	g := new(errgroup.Group)
	for i, src := range enabled {
		g.Go(func() error {
			results[i] = m.fetchOne(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	var candidates []model.Candidate
	for i, src := range enabled {
		r := results[i]
		if r.err != nil {
			m.logger.Error("source failed", "source", src.Name(), "error", r.err)
			stats.Sources[src.Name()] = SourceStat{Error: r.err.Error()}
			continue
		}
		stats.Sources[src.Name()] = SourceStat{Fetched: len(r.items)}
		stats.TotalFetched += len(r.items)
		candidates = append(candidates, r.items...)
	}

	saved, err := m.Save(ctx, candidates)
	if err != nil {
		return stats, err
	}
	stats.TotalSaved = len(saved)

	m.logger.Info("fetch complete", "fetched", stats.TotalFetched, "saved", stats.TotalSaved)
	if len(saved) > 0 {
		m.publish(ctx, saved)
	}
	return stats, nil
}

func (m *SourceManager) fetchOne(ctx context.Context, src source.Source) (res fetchResult) {
	defer func() {
		if r := recover(); r != nil {
			res = fetchResult{err: fmt.Errorf("panic: %v", r)}
		}
	}()
	items, err := src.Fetch(ctx)
	return fetchResult{items: items, err: err}
}

// Save 按 URL 去重后在一个事务内写入,返回新写入的文章
func (m *SourceManager) Save(ctx context.Context, candidates []model.Candidate) ([]model.Article, error) {
	seen := make(map[string]struct{}, len(candidates))
	var fresh []model.Candidate
	for _, c := range candidates {
		if !c.Valid() {
			continue
		}
		if _, dup := seen[c.URL]; dup {
			continue
		}
		seen[c.URL] = struct{}{}
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	existing, err := m.existingURLs(ctx, fresh)
	if err != nil {
		return nil, err
	}

	fetchedAt := m.now()
	var saved []model.Article
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range fresh {
			if _, ok := existing[c.URL]; ok {
				continue
			}
			article := model.NewArticle(c, fetchedAt)
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&article)
			if res.Error != nil {
				return fmt.Errorf("insert article %s: %w", c.URL, res.Error)
			}
			// 并发抓取时由唯一索引兜底
			if res.RowsAffected == 1 {
				saved = append(saved, article)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save articles: %w", err)
	}
	return saved, nil
}

func (m *SourceManager) existingURLs(ctx context.Context, items []model.Candidate) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	for start := 0; start < len(items); start += urlLookupChunk {
		end := min(start+urlLookupChunk, len(items))
		urls := make([]string, 0, end-start)
		for _, c := range items[start:end] {
			urls = append(urls, c.URL)
		}
		var hits []string
		if err := m.db.WithContext(ctx).Model(&model.Article{}).Where("url IN ?", urls).Pluck("url", &hits).Error; err != nil {
			return nil, fmt.Errorf("lookup existing urls: %w", err)
		}
		for _, u := range hits {
			found[u] = struct{}{}
		}
	}
	return found, nil
}

func (m *SourceManager) publish(ctx context.Context, articles []model.Article) {
	if m.publisher == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("publish new articles panicked", "panic", r)
		}
	}()
	if err := m.publisher.PublishArticles(ctx, articles); err != nil {
		m.logger.Warn("publish new articles failed", "error", err)
	}
}
