package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"news-agent/internal/logging"
	"news-agent/internal/model"
	"news-agent/internal/settings"
)

const (
	scoreWindow     = 24 * time.Hour
	scoreBatchSize  = 50
	anomalyWindow   = time.Hour
	anomalyMinScore = 4
	reportMinScore  = 2
	reportMaxItems  = 30
	reportKeyEvents = 8

	anomalySkillName = "anomaly_detector"
	reportDateLayout = "2006-01-02"
)

const scoringPrompt = `你是一个专业的财经新闻分析 Agent。请对以下新闻进行重要度评分。

评分标准：
- 5分：涉及央行政策重大变化、金融危机级别事件、市场单日暴涨暴跌(>5%)
- 4分：涉及重大地缘政治、Top 公司重大财报意外、重要宏观数据大幅偏离预期
- 3分：涉及重要行业政策、知名公司业绩发布、关键经济数据公布
- 2分：行业动态、一般公司新闻、市场评论
- 1分：一般性财经资讯
- 0分：与财经/投资无关

请以 JSON 格式返回：
{"importance": 数字0-5, "sentiment": "bullish/bearish/neutral", "tags": ["标签1","标签2"], "reason": "评分理由"}`

const reportPrompt = `你是一个专业的投研分析 Agent。请基于以下新闻生成%s。

要求：
1. 用 Markdown 格式输出
2. 包含以下部分：
   - ## 市场概览（1-2段总结今日/近期市场状况）
   - ## 重点事件（列出 Top 5-8 最重要的事件并简要分析其影响）
   - ## 市场情绪（整体多空判断）
   - ## 关注要点（今日/明日需要重点关注的事项）
3. 语言专业但易懂，适合投资者快速阅读
4. 用中文撰写`

// SkillService 基于 AI 的文章评分、异常检测与日报生成
type SkillService struct {
	db       *gorm.DB
	ai       AI
	settings settings.Provider
	loc      *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// NewSkillService loc decides which calendar date a report belongs to unless
// the timezone setting names a valid zone.
func NewSkillService(db *gorm.DB, ai AI, provider settings.Provider, loc *time.Location, logger *slog.Logger) *SkillService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &SkillService{
		db:       db,
		ai:       ai,
		settings: provider,
		loc:      loc,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ScoreImportance 为最近 24 小时内尚未分析的文章评分。
// AI 不可用时文章保持未评分,下次运行重试。
func (s *SkillService) ScoreImportance(ctx context.Context) (int, error) {
	var articles []model.Article
	err := s.db.WithContext(ctx).
		Where("fetched_at >= ?", s.now().Add(-scoreWindow)).
		Where("ai_analysis IS NULL").
		Order("fetched_at DESC").
		Limit(scoreBatchSize).
		Find(&articles).Error
	if err != nil {
		return 0, fmt.Errorf("load unscored articles: %w", err)
	}

	scored := 0
	for i := range articles {
		if err := ctx.Err(); err != nil {
			return scored, err
		}
		article := &articles[i]
		analysis, ok := s.ai.ChatJSON(ctx, scoringRequest(article))
		if !ok {
			continue
		}
		s.applyAnalysis(article, analysis)
		err := s.db.WithContext(ctx).Model(article).
			Select("importance", "sentiment", "tags", "ai_analysis").
			Updates(article).Error
		if err != nil {
			return scored, fmt.Errorf("save score for article %d: %w", article.ID, err)
		}
		scored++
	}

	s.logger.Info("importance scoring finished", "candidates", len(articles), "scored", scored)
	return scored, nil
}

func scoringRequest(a *model.Article) ChatRequest {
	summary := a.Summary
	if summary == "" {
		summary = "无"
	}
	return ChatRequest{
		Messages: []Message{
			{Role: "system", Content: scoringPrompt},
			{Role: "user", Content: fmt.Sprintf("标题: %s\n来源: %s\n分类: %s\n摘要: %s", a.Title, a.Source, a.Category, summary)},
		},
		Temperature: 0.3,
		MaxTokens:   300,
	}
}

func (s *SkillService) applyAnalysis(a *model.Article, analysis map[string]any) {
	raw, present := analysis["importance"]
	score, ok := parseImportance(raw)
	switch {
	case !present || !ok:
		s.logger.Warn("ai returned no usable importance", "article_id", a.ID, "value", raw)
		score = model.MinImportance
	case score != model.ClampImportance(score):
		s.logger.Warn("ai importance out of range, clamped", "article_id", a.ID, "value", score)
	}
	a.Importance = model.ClampImportance(score)
	a.Sentiment = parseSentiment(analysis["sentiment"])
	a.Tags = parseTags(analysis["tags"])

	// 存储的分析结果与规范化后的列保持一致
	stored := maps.Clone(analysis)
	if stored == nil {
		stored = make(map[string]any, 3)
	}
	stored["importance"] = a.Importance
	stored["sentiment"] = a.Sentiment
	stored["tags"] = a.Tags
	a.AIAnalysis = stored
}

func parseImportance(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(math.Round(n)), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return parseImportance(f)
		}
	}
	return 0, false
}

func parseSentiment(v any) string {
	s, _ := v.(string)
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case model.SentimentBullish, model.SentimentBearish, model.SentimentNeutral:
		return s
	}
	return ""
}

func parseTags(v any) []string {
	list, _ := v.([]any)
	tags := make([]string, 0, len(list))
	for _, item := range list {
		if t, ok := item.(string); ok && strings.TrimSpace(t) != "" {
			tags = append(tags, strings.TrimSpace(t))
		}
	}
	return tags
}

// DetectAnomalies 最近 1 小时内重要度 ≥4 的文章生成预警,
// 同标题已有未解除预警时跳过。返回本次新建的预警。
func (s *SkillService) DetectAnomalies(ctx context.Context) ([]model.Alert, error) {
	var articles []model.Article
	err := s.db.WithContext(ctx).
		Where("fetched_at >= ?", s.now().Add(-anomalyWindow)).
		Where("importance >= ?", anomalyMinScore).
		Order("importance DESC, fetched_at DESC").
		Find(&articles).Error
	if err != nil {
		return nil, fmt.Errorf("load anomaly candidates: %w", err)
	}

	var created []model.Alert
	for i := range articles {
		a := &articles[i]

		var active int64
		err := s.db.WithContext(ctx).Model(&model.Alert{}).
			Where("title = ? AND active = ?", a.Title, true).
			Count(&active).Error
		if err != nil {
			return created, fmt.Errorf("check active alert: %w", err)
		}
		if active > 0 {
			continue
		}

		alert := model.Alert{
			Level:       model.AlertHigh,
			Title:       a.Title,
			Description: fmt.Sprintf("来源: %s\n%s", a.Source, a.Summary),
			SkillName:   anomalySkillName,
			Suggestion:  a.Reason(),
			Active:      true,
		}
		if a.Importance >= model.MaxImportance {
			alert.Level = model.AlertCritical
		}
		res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&alert)
		if res.Error != nil {
			return created, fmt.Errorf("create alert: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			created = append(created, alert)
		}
	}

	if len(created) > 0 {
		s.logger.Info("anomaly alerts created", "count", len(created))
	}
	return created, nil
}

// ReportDate 报告所属日期
func (s *SkillService) ReportDate(ctx context.Context) string {
	return s.now().In(s.location(ctx)).Format(reportDateLayout)
}

func (s *SkillService) location(ctx context.Context) *time.Location {
	if s.settings == nil {
		return s.loc
	}
	name := settings.String(ctx, s.settings, model.SettingTimezone, "")
	if name == "" {
		return s.loc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		s.logger.Warn("invalid timezone setting, using scheduler zone", "timezone", name)
		return s.loc
	}
	return loc
}

// GenerateReport 生成早报或晚报,同一天同类型只生成一次。
// 没有可用文章、AI 不可用或当天已生成时返回 nil。
func (s *SkillService) GenerateReport(ctx context.Context, reportType model.ReportType) (*model.DailyReport, error) {
	if !reportType.Valid() {
		return nil, fmt.Errorf("unknown report type %q", reportType)
	}
	date := s.ReportDate(ctx)

	var existing model.DailyReport
	err := s.db.WithContext(ctx).
		Where("report_type = ? AND report_date = ?", reportType, date).
		First(&existing).Error
	switch {
	case err == nil:
		s.logger.Info("report already exists", "type", reportType, "date", date)
		return nil, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("check existing report: %w", err)
	}

	lookback := 24 * time.Hour
	if reportType == model.ReportEvening {
		lookback = 12 * time.Hour
	}
	var articles []model.Article
	err = s.db.WithContext(ctx).
		Where("fetched_at >= ?", s.now().Add(-lookback)).
		Where("importance >= ?", reportMinScore).
		Order("importance DESC, published_at DESC").
		Limit(reportMaxItems).
		Find(&articles).Error
	if err != nil {
		return nil, fmt.Errorf("load report articles: %w", err)
	}
	if len(articles) == 0 {
		s.logger.Info("no articles to build report from", "type", reportType)
		return nil, nil
	}

	content, ok := s.ai.Chat(ctx, reportRequest(reportType, articles))
	if !ok {
		return nil, nil
	}

	report := &model.DailyReport{
		ReportType:    reportType,
		ReportDate:    date,
		Title:         date + " " + reportType.Label(),
		Content:       content,
		KeyEvents:     keyEvents(articles),
		SentimentData: sentimentBreakdown(articles),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(report)
	if res.Error != nil {
		return nil, fmt.Errorf("save report: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	s.logger.Info("report generated", "type", reportType, "date", date, "articles", len(articles))
	return report, nil
}

func reportRequest(reportType model.ReportType, articles []model.Article) ChatRequest {
	var b strings.Builder
	for _, a := range articles {
		sentiment := a.Sentiment
		if sentiment == "" {
			sentiment = "未知"
		}
		fmt.Fprintf(&b, "- [%s] %s (重要度:%d, 情绪:%s)\n", a.Source, a.Title, a.Importance, sentiment)
	}
	return ChatRequest{
		Messages: []Message{
			{Role: "system", Content: fmt.Sprintf(reportPrompt, reportType.Label())},
			{Role: "user", Content: "最近的重要新闻：\n" + strings.TrimRight(b.String(), "\n")},
		},
		Temperature: 0.4,
		MaxTokens:   2000,
	}
}

func keyEvents(articles []model.Article) []model.KeyEvent {
	n := min(len(articles), reportKeyEvents)
	events := make([]model.KeyEvent, 0, n)
	for _, a := range articles[:n] {
		events = append(events, model.KeyEvent{
			ID:         a.ID,
			Title:      a.Title,
			URL:        a.URL,
			Source:     a.Source,
			Importance: a.Importance,
			Sentiment:  a.Sentiment,
		})
	}
	return events
}

// sentimentBreakdown 未标注情绪的文章计为 neutral
func sentimentBreakdown(articles []model.Article) map[string]int {
	counts := map[string]int{
		model.SentimentBullish: 0,
		model.SentimentBearish: 0,
		model.SentimentNeutral: 0,
	}
	for _, a := range articles {
		switch a.Sentiment {
		case model.SentimentBullish, model.SentimentBearish:
			counts[a.Sentiment]++
		default:
			counts[model.SentimentNeutral]++
		}
	}
	return counts
}
