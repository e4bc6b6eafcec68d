package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"veilleur/internal/core"
)

// Config holds all application configuration.
type Config struct {
	App      App      `mapstructure:"app"`
	LLM      LLM      `mapstructure:"llm"`
	Search   Search   `mapstructure:"search"`
	Extract  Extract  `mapstructure:"extract"`
	Summary  Summary  `mapstructure:"summary"`
	Memory   Memory   `mapstructure:"memory"`
	Pipeline Pipeline `mapstructure:"pipeline"`
}

// App holds general application settings.
type App struct {
	LogLevel  string `mapstructure:"log_level"`
	DataDir   string `mapstructure:"data_dir"`
	OutputDir string `mapstructure:"output_dir"`
}

// LLM holds language model and embedding settings.
type LLM struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	Temperature       float64       `mapstructure:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	BatchConcurrency  int           `mapstructure:"batch_concurrency"`
	EmbeddingModel    string        `mapstructure:"embedding_model"`
	EmbeddingBaseURL  string        `mapstructure:"embedding_base_url"`
}

// Search holds search provider settings.
type Search struct {
	PreferredProvider string        `mapstructure:"preferred_provider"`
	SerperAPIKey      string        `mapstructure:"serper_api_key"`
	TavilyAPIKey      string        `mapstructure:"tavily_api_key"`
	BraveAPIKey       string        `mapstructure:"brave_api_key"`
	MaxSources        int           `mapstructure:"max_sources"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MinScore          float64       `mapstructure:"min_score"`
}

// Extract holds content extraction settings.
type Extract struct {
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
	MaxRetries       int           `mapstructure:"max_retries"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MinContentLength int           `mapstructure:"min_content_length"`
	MaxContentLength int           `mapstructure:"max_content_length"`
}

// Summary holds summarizer settings.
type Summary struct {
	MaxConcurrent    int  `mapstructure:"max_concurrent"`
	ChunkThreshold   int  `mapstructure:"chunk_threshold"`
	MaxKeyPoints     int  `mapstructure:"max_key_points"`
	DetailedAnalysis bool `mapstructure:"detailed_analysis"`
	IncludeSentiment bool `mapstructure:"include_sentiment"`
}

// Memory holds memory subsystem settings.
type Memory struct {
	CacheTTL             time.Duration `mapstructure:"cache_ttl"`
	MaxConversations     int           `mapstructure:"max_conversations"`
	CompressionThreshold int           `mapstructure:"compression_threshold"`
}

// Pipeline holds orchestrator settings.
type Pipeline struct {
	MaxConcurrentRequests int           `mapstructure:"max_concurrent_requests"`
	Deadline              time.Duration `mapstructure:"deadline"`
	DumpStages            bool          `mapstructure:"dump_stages"`
}

// Load reads configuration from a .env file (if present), environment
// variables and optional config file, applying defaults for everything
// not set.
func Load() (*Config, error) {
	// A missing .env file is not an error; env vars may be set directly.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	v.SetConfigName("veilleur")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("%w: failed to read config file: %v", core.ErrConfig, err)
		}
	}

	// SEARCH_TIMEOUT and CACHE_TTL are documented as plain seconds;
	// rewrite bare integers before duration decoding sees them.
	normalizeSeconds(v, "search.timeout")
	normalizeSeconds(v, "memory.cache_ttl")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %v", core.ErrConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.data_dir", ".veilleur")
	v.SetDefault("app.output_dir", "reports")

	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama-3.1-8b-instant")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 4000)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.rate_limit_requests", 30)
	v.SetDefault("llm.batch_concurrency", 3)
	v.SetDefault("llm.embedding_model", "all-MiniLM-L6-v2")

	v.SetDefault("search.preferred_provider", "serper")
	v.SetDefault("search.max_sources", 20)
	v.SetDefault("search.timeout", 30*time.Second)
	v.SetDefault("search.min_score", 0.1)

	v.SetDefault("extract.max_concurrent", 5)
	v.SetDefault("extract.max_retries", 2)
	v.SetDefault("extract.timeout", 30*time.Second)
	v.SetDefault("extract.min_content_length", 200)
	v.SetDefault("extract.max_content_length", 50000)

	v.SetDefault("summary.max_concurrent", 3)
	v.SetDefault("summary.chunk_threshold", 6000)
	v.SetDefault("summary.max_key_points", 5)
	v.SetDefault("summary.detailed_analysis", true)
	v.SetDefault("summary.include_sentiment", true)

	v.SetDefault("memory.cache_ttl", time.Hour)
	v.SetDefault("memory.max_conversations", 100)
	v.SetDefault("memory.compression_threshold", 50)

	v.SetDefault("pipeline.max_concurrent_requests", 10)
	v.SetDefault("pipeline.deadline", 10*time.Minute)
	v.SetDefault("pipeline.dump_stages", false)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Fixed environment names from the deployment contract.
	_ = v.BindEnv("llm.api_key", "GROQ_API_KEY")
	_ = v.BindEnv("llm.model", "LLM_MODEL")
	_ = v.BindEnv("llm.temperature", "LLM_TEMPERATURE")
	_ = v.BindEnv("llm.max_tokens", "LLM_MAX_TOKENS")
	_ = v.BindEnv("llm.embedding_model", "EMBEDDING_MODEL")
	_ = v.BindEnv("llm.embedding_base_url", "EMBEDDING_BASE_URL")
	_ = v.BindEnv("search.serper_api_key", "SERPER_API_KEY")
	_ = v.BindEnv("search.tavily_api_key", "TAVILY_API_KEY")
	_ = v.BindEnv("search.brave_api_key", "BRAVE_API_KEY")
	_ = v.BindEnv("search.max_sources", "MAX_SOURCES")
	_ = v.BindEnv("search.timeout", "SEARCH_TIMEOUT")
	_ = v.BindEnv("pipeline.max_concurrent_requests", "MAX_CONCURRENT_REQUESTS")
	_ = v.BindEnv("memory.cache_ttl", "CACHE_TTL")
}

func normalizeSeconds(v *viper.Viper, key string) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		v.Set(key, time.Duration(secs)*time.Second)
	}
}

// Validate checks that required credentials are present.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("%w: GROQ_API_KEY is required", core.ErrConfig)
	}
	if c.Search.SerperAPIKey == "" && c.Search.TavilyAPIKey == "" && c.Search.BraveAPIKey == "" {
		return fmt.Errorf("%w: at least one of SERPER_API_KEY, TAVILY_API_KEY or BRAVE_API_KEY is required", core.ErrConfig)
	}
	return nil
}
