package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // 服务器配置
	Postgres PostgresConfig `mapstructure:"postgres"` // PostgreSQL配置
	Scrape   ScrapeConfig   `mapstructure:"scrape"`   // 抓取配置
	Sync     SyncConfig     `mapstructure:"sync"`     // 同步调度配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// PostgresConfig PostgreSQL数据库配置
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
}

// ScrapeConfig 抓取配置（JTA排名存档站点）
type ScrapeConfig struct {
	BaseURL        string `mapstructure:"base_url"`         // 存档站点基础地址
	Timeout        int    `mapstructure:"timeout"`          // 单次请求超时（秒）
	UserAgent      string `mapstructure:"user_agent"`       // 请求User-Agent
	Proxy          string `mapstructure:"proxy"`            // 代理地址（可选）
	RequestDelayMs int    `mapstructure:"request_delay_ms"` // 每个条目之间的间隔（毫秒）
	BatchSize      int    `mapstructure:"batch_size"`       // 每批条目数（到达后长暂停）
	BatchPauseMs   int    `mapstructure:"batch_pause_ms"`   // 批次间长暂停（毫秒）
	StartYear      int    `mapstructure:"start_year"`       // 存档起始年份
}

// SyncConfig 同步调度配置
type SyncConfig struct {
	Cron string `mapstructure:"cron"` // 最新排名同步Cron表达式（空则不启用）
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	viper.SetTypeByDefaultValue(true)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("SCRAPE_BASE_URL"); v != "" {
		cfg.Scrape.BaseURL = v
	}
	if v := os.Getenv("SCRAPE_PROXY"); v != "" {
		cfg.Scrape.Proxy = v
	}
}

// ApplyDefaults 未配置项的兜底默认值
func ApplyDefaults(cfg *Config) {
	if cfg.Scrape.BaseURL == "" {
		cfg.Scrape.BaseURL = "http://archives.jta-tennis.or.jp"
	}
	if cfg.Scrape.Timeout <= 0 {
		cfg.Scrape.Timeout = 30
	}
	if cfg.Scrape.UserAgent == "" {
		cfg.Scrape.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}
	if cfg.Scrape.RequestDelayMs <= 0 {
		cfg.Scrape.RequestDelayMs = 1000
	}
	if cfg.Scrape.BatchSize <= 0 {
		cfg.Scrape.BatchSize = 100
	}
	if cfg.Scrape.BatchPauseMs <= 0 {
		cfg.Scrape.BatchPauseMs = 5000
	}
	if cfg.Scrape.StartYear <= 0 {
		cfg.Scrape.StartYear = 2004
	}
}
