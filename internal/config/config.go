package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Config 描述了 NFTScout 在启动阶段需要加载的核心配置。
type Config struct {
	Server  ServerConfig  `json:"server"`
	Auth    AuthConfig    `json:"auth"`
	Storage StorageConfig `json:"storage"`
	History HistoryConfig `json:"history"`
	LLM     LLMConfig     `json:"llm"`
	MCP     MCPConfig     `json:"mcp"`
	Agent   AgentConfig   `json:"agent"`
	Chains  ChainsConfig  `json:"chains"`
	Logging LoggingConfig `json:"logging"`
	Runtime RuntimeConfig `json:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `json:"address"`
}

// AuthConfig 控制 API 的访问鉴权方式。
type AuthConfig struct {
	// Mode 支持 disabled 与 token 两种模式。
	Mode string `json:"mode"`
	// Tokens 列出允许访问的调用方令牌。
	Tokens []TokenSeed `json:"tokens,omitempty"`
}

// TokenSeed 描述一个静态分配的调用方令牌。
type TokenSeed struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

// StorageConfig 统一描述 MySQL、Redis 等后端的连接信息。
type StorageConfig struct {
	Collections CollectionStoreConfig `json:"collections"`
	Cache       CacheConfig           `json:"cache"`
}

// CollectionStoreConfig 描述藏品集合记录的持久化后端。
type CollectionStoreConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `json:"conn_max_idle_time_seconds"`
}

// CacheConfig 描述集合查询的 Redis 旁路缓存。
type CacheConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// HistoryConfig 描述会话事件的持久化通道。
type HistoryConfig struct {
	Driver   string             `json:"driver"`
	RabbitMQ RabbitMQSinkConfig `json:"rabbitmq"`
}

// RabbitMQSinkConfig 描述 RabbitMQ 事件通道的连接参数。
type RabbitMQSinkConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// LLMConfig 用于配置大模型推理的调用方式。
type LLMConfig struct {
	Provider string       `json:"provider"`
	OpenAI   OpenAIConfig `json:"openai"`
}

// OpenAIConfig 描述调用 OpenAI 兼容接口所需的信息。
type OpenAIConfig struct {
	APIKey         string `json:"api_key"`
	APIKeyEnv      string `json:"api_key_env"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回以 time.Duration 表达的请求超时。
func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MCPConfig 描述外部工具连接器的接入方式。
type MCPConfig struct {
	BaseURL        string `json:"base_url"`
	AuthToken      string `json:"auth_token"`
	AuthTokenEnv   string `json:"auth_token_env"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	// DataTools 列出返回集合数据的工具名称，按优先级排列。
	DataTools []string `json:"data_tools"`
}

// AgentConfig 控制会话循环的步数上限与总时长预算。
type AgentConfig struct {
	MaxSteps              int `json:"max_steps"`
	SessionTimeoutSeconds int `json:"session_timeout_seconds"`
}

// SessionTimeout 返回以 time.Duration 表达的会话预算。
func (c AgentConfig) SessionTimeout() time.Duration {
	if c.SessionTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.SessionTimeoutSeconds) * time.Second
}

// ChainsConfig 指定链标识定义文件的位置。
type ChainsConfig struct {
	Definitions  string `json:"definitions"`
	DefaultChain string `json:"default_chain"`
}

// LoggingConfig 控制日志输出行为。
type LoggingConfig struct {
	Level   string   `json:"level"`
	Format  string   `json:"format"`
	Outputs []string `json:"outputs"`
	Audit   struct {
		Enabled    bool   `json:"enabled"`
		Path       string `json:"path"`
		MaxSizeMB  int    `json:"max_size_mb"`
		MaxBackups int    `json:"max_backups"`
		MaxAgeDays int    `json:"max_age_days"`
	} `json:"audit"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
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

	if c.Auth.Mode == "" {
		c.Auth.Mode = "disabled"
	}

	if c.Storage.Collections.Driver == "" {
		c.Storage.Collections.Driver = "memory"
	}
	if c.Storage.Cache.TTLSeconds <= 0 {
		c.Storage.Cache.TTLSeconds = 300
	}

	if c.History.Driver == "" {
		c.History.Driver = "memory"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}

	if c.MCP.TimeoutSeconds <= 0 {
		c.MCP.TimeoutSeconds = 30
	}
	if len(c.MCP.DataTools) == 0 {
		c.MCP.DataTools = []string{"get_collections", "get_collection", "search"}
	}

	if c.Agent.MaxSteps <= 0 {
		c.Agent.MaxSteps = 30
	}
	if c.Agent.SessionTimeoutSeconds <= 0 {
		c.Agent.SessionTimeoutSeconds = 60
	}

	if c.Chains.Definitions != "" && !filepath.IsAbs(c.Chains.Definitions) {
		c.Chains.Definitions = filepath.Join(baseDir, c.Chains.Definitions)
	}
	if c.Chains.DefaultChain == "" {
		c.Chains.DefaultChain = "ethereum"
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
}
