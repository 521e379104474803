package model

import "time"

// 重要度取值范围
const (
	MinImportance = 0
	MaxImportance = 5
)

// 情绪标签
const (
	SentimentBullish = "bullish"
	SentimentBearish = "bearish"
	SentimentNeutral = "neutral"
)

// Candidate 数据源抓取到的候选条目,尚未去重入库
type Candidate struct {
	Title       string
	URL         string
	Source      string
	Category    string
	Summary     string
	Content     string
	ImageURL    string
	PublishedAt *time.Time
	Importance  int
}

// Valid 标题和链接都不能为空
func (c Candidate) Valid() bool {
	return c.Title != "" && c.URL != ""
}

type Article struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Title       string         `gorm:"size:500;not null" json:"title"`
	URL         string         `gorm:"size:1000;uniqueIndex;not null" json:"url"`
	Source      string         `gorm:"size:100;index;not null" json:"source"`
	Category    string         `gorm:"size:50;index;default:general" json:"category"`
	Summary     string         `gorm:"type:text" json:"summary"`
	Content     string         `gorm:"type:text" json:"content,omitempty"`
	ImageURL    string         `gorm:"size:1000" json:"image_url,omitempty"`
	PublishedAt *time.Time     `gorm:"index" json:"published_at,omitempty"`
	FetchedAt   time.Time      `gorm:"index;not null" json:"fetched_at"`
	Pushed      bool           `gorm:"index;default:false" json:"is_pushed"`
	Importance  int            `gorm:"index;default:0" json:"importance"`
	Sentiment   string         `gorm:"size:20" json:"sentiment,omitempty"`
	AIAnalysis  map[string]any `gorm:"serializer:json;type:text" json:"ai_analysis,omitempty"`
	Tags        []string       `gorm:"serializer:json;type:text" json:"tags"`
}

// NewArticle 由候选条目生成待入库文章
func NewArticle(c Candidate, fetchedAt time.Time) Article {
	category := c.Category
	if category == "" {
		category = "general"
	}
	return Article{
		Title:       c.Title,
		URL:         c.URL,
		Source:      c.Source,
		Category:    category,
		Summary:     c.Summary,
		Content:     c.Content,
		ImageURL:    c.ImageURL,
		PublishedAt: c.PublishedAt,
		FetchedAt:   fetchedAt,
		Importance:  ClampImportance(c.Importance),
	}
}

// ClampImportance 将重要度限制在 [0,5]
func ClampImportance(v int) int {
	if v < MinImportance {
		return MinImportance
	}
	if v > MaxImportance {
		return MaxImportance
	}
	return v
}

// Reason AI 评分理由,没有则为空
func (a *Article) Reason() string {
	if a.AIAnalysis == nil {
		return ""
	}
	reason, _ := a.AIAnalysis["reason"].(string)
	return reason
}
