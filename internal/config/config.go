package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Config 描述了 OpenAttest 在启动阶段需要加载的核心配置。
type Config struct {
	Server       ServerConfig       `json:"server"`
	Metrics      MetricsConfig      `json:"metrics"`
	Auth         AuthConfig         `json:"auth"`
	Logging      LoggingConfig      `json:"logging"`
	Registry     RegistryConfig     `json:"registry"`
	JobStore     JobStoreConfig     `json:"job_store"`
	JobQueue     JobQueueConfig     `json:"job_queue"`
	Verification VerificationConfig `json:"verification"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `json:"address"`
}

// MetricsConfig 控制独立的指标端口。
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
}

// AuthConfig 描述管理接口的静态令牌配置。
type AuthConfig struct {
	Mode   string              `json:"mode"`
	Tokens []StaticTokenConfig `json:"tokens"`
}

// StaticTokenConfig 定义单个静态访问令牌及其权限。
type StaticTokenConfig struct {
	Token       string   `json:"token"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	Disabled    bool     `json:"disabled"`
}

// LoggingConfig 控制结构化日志与审计日志的输出。
type LoggingConfig struct {
	Level       string         `json:"level"`
	Format      string         `json:"format"`
	OutputPaths []string       `json:"output_paths"`
	Audit       AuditLogConfig `json:"audit"`
}

// AuditLogConfig 控制审计日志文件的滚动策略。
type AuditLogConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// RegistryConfig 描述见证注册表的存储后端与初始见证名单。
type RegistryConfig struct {
	Store       StoreConfig `json:"store"`
	WitnessFile string      `json:"witness_file"`
}

// StoreConfig 统一描述存储后端的驱动与连接串。
type StoreConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// JobStoreConfig 描述验证任务存储的后端与重试上限。
type JobStoreConfig struct {
	Driver  string `json:"driver"`
	DSN     string `json:"dsn"`
	Retries int    `json:"retries"`
}

// JobQueueConfig 描述验证任务队列的驱动及其连接参数。
type JobQueueConfig struct {
	Driver   string         `json:"driver"`
	Worker   int            `json:"worker"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 描述 Redis 队列的连接信息。
type RedisConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	Queue     string `json:"queue"`
	BlockWait int    `json:"block_wait_seconds"`
}

// RabbitMQConfig 描述 RabbitMQ 队列的连接信息。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Prefetch   int    `json:"prefetch"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// VerificationConfig 描述验证通过后需要提取的上下文字段。
type VerificationConfig struct {
	Fields []FieldConfig `json:"fields"`
}

// FieldConfig 定义一个提取字段：Marker 是字段值左侧的完整前缀。
type FieldConfig struct {
	Name   string `json:"name"`
	Marker string `json:"marker"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}

	if c.Auth.Mode == "" {
		c.Auth.Mode = "disabled"
	}

	if c.Registry.Store.Driver == "" {
		c.Registry.Store.Driver = "memory"
	}
	if c.Registry.WitnessFile != "" && !filepath.IsAbs(c.Registry.WitnessFile) {
		c.Registry.WitnessFile = filepath.Join(baseDir, c.Registry.WitnessFile)
	}

	if c.JobStore.Driver == "" {
		c.JobStore.Driver = "memory"
	}
	if c.JobStore.Retries <= 0 {
		c.JobStore.Retries = 3
	}

	if c.JobQueue.Driver == "" {
		c.JobQueue.Driver = "memory"
	}
	if c.JobQueue.Worker <= 0 {
		c.JobQueue.Worker = 4
	}
}
