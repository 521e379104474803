package model

import "time"

type AlertLevel string

const (
	AlertCritical AlertLevel = "critical"
	AlertHigh     AlertLevel = "high"
	AlertMedium   AlertLevel = "medium"
	AlertLow      AlertLevel = "low"
)

// Alert 预警。同一标题同时只允许存在一条未解除的预警
type Alert struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Level       AlertLevel `gorm:"size:20;not null" json:"level"`
	Title       string     `gorm:"size:500;not null;index:idx_alerts_active_title,unique,where:active = 1" json:"title"`
	Description string     `gorm:"type:text;not null" json:"description"`
	SkillName   string     `gorm:"size:100" json:"skill_name,omitempty"`
	Suggestion  string     `gorm:"type:text" json:"suggestion,omitempty"`
	Active      bool       `gorm:"index;not null;default:true" json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}
