package model

import "time"

type ReportType string

const (
	ReportMorning ReportType = "morning"
	ReportEvening ReportType = "evening"
)

// Valid 仅支持早报和晚报
func (t ReportType) Valid() bool {
	return t == ReportMorning || t == ReportEvening
}

// Label 报告标题用的名称
func (t ReportType) Label() string {
	if t == ReportEvening {
		return "晚间市场日报"
	}
	return "早间市场日报"
}

// KeyEvent 报告中引用的文章快照
type KeyEvent struct {
	ID         uint   `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Source     string `json:"source"`
	Importance int    `json:"importance"`
	Sentiment  string `json:"sentiment,omitempty"`
}

// DailyReport 每日报告,(类型, 日期) 唯一
type DailyReport struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	ReportType    ReportType     `gorm:"size:20;not null;uniqueIndex:uq_report_type_date" json:"report_type"`
	ReportDate    string         `gorm:"size:10;not null;uniqueIndex:uq_report_type_date" json:"report_date"`
	Title         string         `gorm:"size:200" json:"title"`
	Content       string         `gorm:"type:text;not null" json:"content"`
	KeyEvents     []KeyEvent     `gorm:"serializer:json;type:text" json:"key_events"`
	SentimentData map[string]int `gorm:"serializer:json;type:text" json:"sentiment_data"`
	CreatedAt     time.Time      `json:"created_at"`
}
