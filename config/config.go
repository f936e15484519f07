// Package config 加载 bookrec 的运行配置，并维护可由配置构建的 Pipeline 节点注册表。
//
// 配置来源（后者覆盖前者）：
//  1. Default() 的内置默认值
//  2. YAML 文件（-config 指定）
//  3. 环境变量（BOOKREC_*、GOOGLE_BOOKS_API_KEY），.env 文件会先被加载进环境
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/model"
	"github.com/rushteam/bookrec/pipeline"
)

// 数据源
const (
	SourceCSV   = "csv"
	SourceRedis = "redis"
)

// 书目缓存后端
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheBadger = "badger"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Data     DataConfig     `yaml:"data"`
	Redis    RedisConfig    `yaml:"redis"`
	Model    ModelConfig    `yaml:"model"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Cache    CacheConfig    `yaml:"cache"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	DefaultLimit    int           `yaml:"default_limit"` // 请求未带 limit 时的返回数量
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimit       int           `yaml:"rate_limit"` // 每 IP 每分钟推荐请求数，0 不限流
	CORSOrigins     []string      `yaml:"cors_origins"`

	AdminRetrain     bool `yaml:"admin_retrain"`      // 是否开放 POST /admin/retrain
	RetrainPerMinute int  `yaml:"retrain_per_minute"` // /admin/retrain 全局每分钟调用上限
}

type DataConfig struct {
	Source      string `yaml:"source"` // csv / redis
	RatingsPath string `yaml:"ratings_path"`
	BooksPath   string `yaml:"books_path"`
	KeyPrefix   string `yaml:"key_prefix"` // redis 快照 key 前缀
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ModelConfig struct {
	Metric          string        `yaml:"metric"`
	Workers         int           `yaml:"workers"`          // 0 表示 GOMAXPROCS
	RetrainInterval time.Duration `yaml:"retrain_interval"` // 0 表示不定时重训
}

type CatalogConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	GlobalQuery string        `yaml:"global_query"`
	Timeout     time.Duration `yaml:"timeout"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

// BreakerConfig 是书目服务熔断参数。
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"` // 连续失败多少次后熔断
	OpenTimeout time.Duration `yaml:"open_timeout"` // 熔断后多久进入半开
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Backend string        `yaml:"backend"` // memory / redis / badger
	TTL     time.Duration `yaml:"ttl"`
	Dir     string        `yaml:"dir"` // badger 数据目录，为空时纯内存
}

// PipelineConfig 是插在召回与排序之间的可配置节点。
type PipelineConfig struct {
	Nodes []pipeline.NodeConfig `yaml:"nodes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json / console
}

// Default 返回内置默认配置。
func Default() *Config {
	var d core.EngineConfig = &core.DefaultEngineConfig{}
	return &Config{
		Server: ServerConfig{
			Addr:             ":8080",
			DefaultLimit:     d.DefaultLimit(),
			ReadTimeout:      10 * time.Second,
			WriteTimeout:     30 * time.Second,
			ShutdownTimeout:  10 * time.Second,
			RetrainPerMinute: 1,
		},
		Data: DataConfig{
			Source:      SourceCSV,
			RatingsPath: "data/ratings.csv",
			BooksPath:   "data/books.csv",
			KeyPrefix:   "bookrec",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Model: ModelConfig{
			Metric: d.DefaultMetric(),
		},
		Catalog: CatalogConfig{
			BaseURL:     "https://www.googleapis.com/books/v1",
			GlobalQuery: "subject:fiction",
			Timeout:     d.DefaultTimeout(),
			Breaker: BreakerConfig{
				MaxFailures: 5,
				OpenTimeout: 30 * time.Second,
			},
		},
		Cache: CacheConfig{
			Enabled: true,
			Backend: CacheMemory,
			TTL:     10 * time.Minute,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load 读取配置文件（path 为空时只用默认值和环境变量），应用环境变量覆盖并校验。
func Load(path string) (*Config, error) {
	// .env 不存在时继续使用系统环境变量
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode 在默认值之上解析 YAML，未知字段报错，拼错的 key 不会被静默忽略。
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() error {
	strs := []struct {
		env string
		dst *string
	}{
		{"BOOKREC_ADDR", &c.Server.Addr},
		{"BOOKREC_DATA_SOURCE", &c.Data.Source},
		{"BOOKREC_RATINGS_PATH", &c.Data.RatingsPath},
		{"BOOKREC_BOOKS_PATH", &c.Data.BooksPath},
		{"BOOKREC_REDIS_ADDR", &c.Redis.Addr},
		{"BOOKREC_REDIS_PASSWORD", &c.Redis.Password},
		{"BOOKREC_METRIC", &c.Model.Metric},
		{"BOOKREC_CACHE_BACKEND", &c.Cache.Backend},
		{"BOOKREC_CACHE_DIR", &c.Cache.Dir},
		{"BOOKREC_LOG_LEVEL", &c.Log.Level},
		{"BOOKREC_LOG_FORMAT", &c.Log.Format},
		{"GOOGLE_BOOKS_API_KEY", &c.Catalog.APIKey},
	}
	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}

	if v := os.Getenv("BOOKREC_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BOOKREC_REDIS_DB: %w", err)
		}
		c.Redis.DB = db
	}
	if v := os.Getenv("BOOKREC_RETRAIN_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BOOKREC_RETRAIN_INTERVAL: %w", err)
		}
		c.Model.RetrainInterval = d
	}
	return nil
}

// Validate 校验配置，返回第一个错误。
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must be >= 0, got %d", c.Server.RateLimit)
	}
	if c.Server.AdminRetrain && c.Server.RetrainPerMinute <= 0 {
		return fmt.Errorf("server.retrain_per_minute must be > 0 when admin_retrain is enabled, got %d", c.Server.RetrainPerMinute)
	}
	if c.Server.DefaultLimit <= 0 {
		return fmt.Errorf("server.default_limit must be > 0, got %d", c.Server.DefaultLimit)
	}

	switch c.Data.Source {
	case SourceCSV:
		if c.Data.RatingsPath == "" || c.Data.BooksPath == "" {
			return fmt.Errorf("data.ratings_path and data.books_path are required for csv source")
		}
	case SourceRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for redis source")
		}
	default:
		return fmt.Errorf("data.source must be %q or %q, got %q", SourceCSV, SourceRedis, c.Data.Source)
	}

	if _, err := model.ParseMetric(c.Model.Metric); err != nil {
		return fmt.Errorf("model.metric: %w", err)
	}
	if c.Model.Workers < 0 {
		return fmt.Errorf("model.workers must be >= 0, got %d", c.Model.Workers)
	}
	if c.Model.RetrainInterval < 0 {
		return fmt.Errorf("model.retrain_interval must be >= 0")
	}

	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog.base_url is required")
	}
	if c.Catalog.GlobalQuery == "" {
		return fmt.Errorf("catalog.global_query is required")
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog.timeout must be > 0")
	}

	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case CacheMemory, CacheBadger:
		case CacheRedis:
			if c.Redis.Addr == "" {
				return fmt.Errorf("redis.addr is required for redis cache")
			}
		default:
			return fmt.Errorf("cache.backend must be one of %q, %q, %q, got %q",
				CacheMemory, CacheRedis, CacheBadger, c.Cache.Backend)
		}
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be > 0")
		}
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}

	return ValidatePipelineConfig(c.Pipeline.Nodes)
}
