// Package settings exposes the runtime key/value configuration.
//
// Values are looked up on every call so edits made through the settings API
// take effect on the next job tick.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"news-agent/internal/model"
)

// Provider is the read-only view the pipeline uses.
type Provider interface {
	// Lookup returns the stored value and whether the key exists.
	Lookup(ctx context.Context, key string) (string, bool)
}

// String returns the value for key, or def when missing or empty.
func String(ctx context.Context, p Provider, key, def string) string {
	v, ok := p.Lookup(ctx, key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

// Bool reports whether key is exactly "true" (surrounding space ignored).
// Any other stored value, including "TRUE", is false. A missing key yields def.
func Bool(ctx context.Context, p Provider, key string, def bool) bool {
	v, ok := p.Lookup(ctx, key)
	if !ok {
		return def
	}
	return strings.TrimSpace(v) == "true"
}

// Store is the gorm-backed Provider.
type Store struct {
	db *gorm.DB
}

var _ Provider = (*Store)(nil)

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Lookup 每次调用都查询数据库
func (s *Store) Lookup(ctx context.Context, key string) (string, bool) {
	var item model.Setting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&item).Error
	if err != nil {
		return "", false
	}
	return item.Value, true
}

// All 返回全部配置
func (s *Store) All(ctx context.Context) ([]model.Setting, error) {
	var items []model.Setting
	if err := s.db.WithContext(ctx).Order("category, key").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return items, nil
}

// Set 写入或更新配置
func (s *Store) Set(ctx context.Context, key, value string) error {
	item := model.Setting{Key: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&item).Error
	if err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}

// SeedDefaults 插入缺失的默认配置,不覆盖已有值
func (s *Store) SeedDefaults(ctx context.Context, defaults []model.Setting) error {
	for _, item := range defaults {
		err := s.db.WithContext(ctx).Where("key = ?", item.Key).FirstOrCreate(&item).Error
		if err != nil {
			return fmt.Errorf("seed setting %s: %w", item.Key, err)
		}
	}
	return nil
}

// SeedEmpty 仅当已有配置值为空时写入(用于环境变量注入密钥)
func (s *Store) SeedEmpty(ctx context.Context, values map[string]string) error {
	for key, value := range values {
		if value == "" {
			continue
		}
		var item model.Setting
		err := s.db.WithContext(ctx).Where("key = ?", key).First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := s.Set(ctx, key, value); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("load setting %s: %w", key, err)
		}
		if item.Value == "" {
			if err := s.db.WithContext(ctx).Model(&item).Update("value", value).Error; err != nil {
				return fmt.Errorf("seed setting %s: %w", key, err)
			}
		}
	}
	return nil
}

// Map is an in-memory Provider used by tests and one-off tools.
type Map struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Provider = (*Map)(nil)

func NewMap(values map[string]string) *Map {
	m := &Map{values: make(map[string]string, len(values))}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

func (m *Map) Lookup(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Map) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}
