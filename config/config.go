package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Cron     CronConfig     `yaml:"cron"`
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Mode            string        `yaml:"mode"` // debug, release
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CronConfig 七个固定任务的触发规则
type CronConfig struct {
	Timezone      string        `yaml:"timezone"`
	Ingest        string        `yaml:"ingest"`         // 采集
	PushImportant string        `yaml:"push_important"` // 重要新闻推送
	PushDigest    string        `yaml:"push_digest"`    // 摘要推送
	AnomalyCheck  string        `yaml:"anomaly_check"`  // 异常检测
	MorningReport string        `yaml:"morning_report"` // 早报
	EveningReport string        `yaml:"evening_report"` // 晚报
	Cleanup       string        `yaml:"cleanup"`        // 过期清理
	JobTimeout    time.Duration `yaml:"job_timeout"`    // 单次任务最长执行时间
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// HTTPConfig 外部调用超时
type HTTPConfig struct {
	SourceTimeout   time.Duration `yaml:"source_timeout"`
	AITimeout       time.Duration `yaml:"ai_timeout"`
	NotifierTimeout time.Duration `yaml:"notifier_timeout"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Mode:            "release",
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "data/news_agent.db",
		},
		Cron: CronConfig{
			Timezone:      "Asia/Shanghai",
			Ingest:        "@every 15m",
			PushImportant: "@every 5m",
			PushDigest:    "@every 30m",
			AnomalyCheck:  "@every 10m",
			MorningReport: "30 7 * * *",
			EveningReport: "0 22 * * *",
			Cleanup:       "0 3 * * *",
			JobTimeout:    10 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
		HTTP: HTTPConfig{
			SourceTimeout:   30 * time.Second,
			AITimeout:       60 * time.Second,
			NotifierTimeout: 30 * time.Second,
		},
	}
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg := Default()

	// 如果配置文件存在,读取配置
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	} else {
		slog.Warn("config file not found, using defaults", "path", configPath)
	}

	// 环境变量覆盖配置
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}

	if mode := os.Getenv("GIN_MODE"); mode != "" {
		cfg.Server.Mode = mode
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if tz := os.Getenv("TZ_NAME"); tz != "" {
		cfg.Cron.Timezone = tz
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	return cfg, nil
}

// GetServerAddress 获取服务器监听地址
func (c *Config) GetServerAddress() string {
	// 如果端口是纯数字,加上冒号前缀
	if _, err := strconv.Atoi(c.Server.Port); err == nil {
		return ":" + c.Server.Port
	}
	return c.Server.Port
}

// Location 调度使用的时区,无法识别时退回 UTC
func (c CronConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		slog.Warn("unknown timezone, falling back to UTC", "timezone", c.Timezone)
		return time.UTC
	}
	return loc
}
