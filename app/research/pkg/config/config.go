package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey LLM API Key 未配置
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY 未配置")

// Config 项目配置结构体
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Search      SearchConfig      `yaml:"search"`
	Market      MarketConfig      `yaml:"market"`
	RAG         RAGConfig         `yaml:"rag"`
	Report      ReportConfig      `yaml:"report"`
	Converter   ConverterConfig   `yaml:"converter"`
	Redis       RedisConfig       `yaml:"redis"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	DB          DBConfig          `yaml:"db"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     int     `yaml:"timeout"`     // 秒
	MaxRetries  int     `yaml:"max_retries"` // 429 重试次数
	CallLog     string  `yaml:"call_log"`    // 调用审计日志，空则不记录
}

// DBConfig 数据库相关配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// Enabled 是否配置了数据库
func (c DBConfig) Enabled() bool {
	return c.Host != ""
}

// DSN lib/pq 连接串
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

// SearchConfig 搜索相关配置
type SearchConfig struct {
	Provider   string           `yaml:"provider"` // tavily / searxng / googlenews / all
	Tavily     TavilyConfig     `yaml:"tavily"`
	SearXNG    SearXNGConfig    `yaml:"searxng"`
	GoogleNews GoogleNewsConfig `yaml:"googlenews"`
	Cache      CacheConfig      `yaml:"cache"`
}

// TavilyConfig Tavily 配置
type TavilyConfig struct {
	APIKey string `yaml:"api_key"`
}

// SearXNGConfig SearXNG 配置
type SearXNGConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// GoogleNewsConfig Google News RSS 配置
type GoogleNewsConfig struct {
	Enabled bool `yaml:"enabled"`
	Timeout int  `yaml:"timeout"`
}

// CacheConfig 搜索结果缓存
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
	TTL     int    `yaml:"ttl"` // 秒
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MarketConfig 行情数据配置
type MarketConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// RAGConfig 检索增强配置
type RAGConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Store        string `yaml:"store"` // memory / postgres
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	MaxTokens    int    `yaml:"max_tokens"`
	TopK         int    `yaml:"top_k"`
}

// ReportConfig 报告生成配置
type ReportConfig struct {
	OutputDir        string  `yaml:"output_dir"`
	ArchiveDir       string  `yaml:"archive_dir"`
	DiscussRounds    int     `yaml:"discuss_rounds"`
	MaxIterations    int     `yaml:"max_iterations"`
	SearchPause      float64 `yaml:"search_pause"` // 秒
	UseTemplate      bool    `yaml:"use_template"`
	ContextMaxRunes  int     `yaml:"context_max_runes"`
	CollectQueryTopK int     `yaml:"collect_query_top_k"`
}

// ConverterConfig 文档转换配置
type ConverterConfig struct {
	Engine       string `yaml:"engine"` // pandoc / native / auto
	PandocPath   string `yaml:"pandoc_path"`
	ReferenceDoc string `yaml:"reference_doc"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS     int `yaml:"qps"`
	RPM     int `yaml:"rpm"`
	Workers int `yaml:"workers"`
}

// LoadConfig 从指定路径加载配置，${VAR} 占位符按环境变量展开
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default 仅依赖环境变量的配置
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	return cfg
}

// ApplyEnv 环境变量覆盖文件中的 LLM 配置
func (c *Config) ApplyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("OPENAI_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			c.LLM.Temperature = float32(f)
		}
	}
	if v := os.Getenv("OPENAI_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LLM.MaxTokens = n
		}
	}
	if v := os.Getenv("MAX_DISCUSS_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Report.DiscussRounds = n
		}
	}
	if v := os.Getenv("TAVILY_API_KEY"); v != "" && c.Search.Tavily.APIKey == "" {
		c.Search.Tavily.APIKey = v
	}
}

// ApplyDefaults 补齐默认值
func (c *Config) ApplyDefaults() {
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 8192
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 300
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 3
	}
	if c.Concurrency.QPS <= 0 {
		c.Concurrency.QPS = 1
	}
	if c.Concurrency.RPM <= 0 {
		c.Concurrency.RPM = 60
	}
	if c.Concurrency.Workers <= 0 {
		c.Concurrency.Workers = 4
	}
	if c.Report.OutputDir == "" {
		c.Report.OutputDir = "."
	}
	if c.Report.ArchiveDir == "" {
		c.Report.ArchiveDir = "reports"
	}
	if c.Report.DiscussRounds <= 0 {
		c.Report.DiscussRounds = 2
	}
	if c.Report.MaxIterations <= 0 {
		c.Report.MaxIterations = 10
	}
	if c.Report.SearchPause == 0 {
		c.Report.SearchPause = 1
	}
	if c.Report.ContextMaxRunes == 0 {
		c.Report.ContextMaxRunes = 60000
	}
	if c.Report.CollectQueryTopK == 0 {
		c.Report.CollectQueryTopK = 8
	}
	if c.RAG.Store == "" {
		c.RAG.Store = "memory"
	}
	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = 800
	}
	if c.RAG.ChunkOverlap <= 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		c.RAG.ChunkOverlap = c.RAG.ChunkSize / 8
	}
	if c.RAG.MaxTokens <= 0 {
		c.RAG.MaxTokens = 4000
	}
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = 10
	}
	if c.Search.Cache.Prefix == "" {
		c.Search.Cache.Prefix = "research:search:"
	}
	if c.Search.Cache.TTL <= 0 {
		c.Search.Cache.TTL = 24 * 3600
	}
	if c.Converter.Engine == "" {
		c.Converter.Engine = "auto"
	}
	if c.Converter.PandocPath == "" {
		c.Converter.PandocPath = "pandoc"
	}
	if c.Market.BaseURL == "" {
		c.Market.BaseURL = "https://query1.finance.yahoo.com"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate 校验必需配置
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return ErrMissingAPIKey
	}
	switch c.Converter.Engine {
	case "auto", "pandoc", "native":
	default:
		return fmt.Errorf("unknown converter engine: %s", c.Converter.Engine)
	}
	switch c.RAG.Store {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown rag store: %s", c.RAG.Store)
	}
	if c.RAG.Enabled && c.RAG.Store == "postgres" && !c.DB.Enabled() {
		return fmt.Errorf("rag store postgres requires db config")
	}
	return nil
}
