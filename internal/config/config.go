// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Search   SearchConfig   `mapstructure:"search"`
	AI       AIConfig       `mapstructure:"ai"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Ranking  RankingConfig  `mapstructure:"ranking"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Progress ProgressConfig `mapstructure:"progress"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// AllowedOrigins lists CORS origins; "*" allows any, "prefix*" matches a prefix.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// RequestTimeoutSeconds bounds the JSON routes. The search stream is exempt.
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
	// SearchTimeoutSeconds bounds one streamed search end to end.
	SearchTimeoutSeconds int `mapstructure:"search_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// SearchConfig configures the Google Custom Search adapter.
type SearchConfig struct {
	APIKey string `mapstructure:"api_key"`
	CX     string `mapstructure:"cx"`
	// Endpoint overrides the API base URL (tests, proxies).
	Endpoint       string        `mapstructure:"endpoint"`
	Results        int           `mapstructure:"results"`
	Country        string        `mapstructure:"gl"`
	Restrict       string        `mapstructure:"cr"`
	Blocklist      []string      `mapstructure:"blocklist"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	TimeoutSeconds int           `mapstructure:"timeout_seconds"`
}

// ProviderConfig describes one OpenAI-compatible chat endpoint.
type ProviderConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

// AIConfig governs model-backed extraction.
type AIConfig struct {
	// Provider is openai, gemini, or auto (openai when its key is set).
	Provider          string         `mapstructure:"provider"`
	OpenAI            ProviderConfig `mapstructure:"openai"`
	Gemini            ProviderConfig `mapstructure:"gemini"`
	MaxInputChars     int            `mapstructure:"max_input_chars"`
	MaxProducts       int            `mapstructure:"max_products"`
	Attempts          int            `mapstructure:"attempts"`
	Markdown          bool           `mapstructure:"markdown"`
	DefaultCurrency   string         `mapstructure:"default_currency"`
	RequestsPerSecond float64        `mapstructure:"requests_per_second"`
	Burst             int            `mapstructure:"burst"`
	TimeoutSeconds    int            `mapstructure:"timeout_seconds"`
	StructuredFirst   bool           `mapstructure:"structured_first"`
}

// BrowserConfig configures the per-request headless browser.
type BrowserConfig struct {
	ExecPath          string   `mapstructure:"exec_path"`
	UserAgent         string   `mapstructure:"user_agent"`
	NavTimeoutSeconds int      `mapstructure:"nav_timeout_seconds"`
	SettleMillis      int      `mapstructure:"settle_ms"`
	ScrollSteps       int      `mapstructure:"scroll_steps"`
	ScrollDelayMillis int      `mapstructure:"scroll_delay_ms"`
	BlockResources    []string `mapstructure:"block_resources"`
}

// ProbeConfig configures the optional plain-HTTP fast path.
type ProbeConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	UserAgent           string `mapstructure:"user_agent"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
	BodyLengthThreshold int    `mapstructure:"body_length_threshold"`
}

// PipelineConfig governs the per-request worker pool.
type PipelineConfig struct {
	Concurrency        int     `mapstructure:"concurrency"`
	SiteTimeoutSeconds int     `mapstructure:"site_timeout_seconds"`
	DomainRPS          float64 `mapstructure:"domain_rps"`
	DomainBurst        int     `mapstructure:"domain_burst"`
}

// RankingConfig tunes keyword filtering and ordering.
type RankingConfig struct {
	MinScore  float64             `mapstructure:"min_score"`
	Blacklist []string            `mapstructure:"blacklist"`
	Synonyms  map[string][]string `mapstructure:"synonyms"`
}

// StorageConfig sets the snapshot backend.
type StorageConfig struct {
	// Backend is none, memory, local, or gcs.
	Backend     string      `mapstructure:"backend"`
	Bucket      string      `mapstructure:"bucket"`
	Prefix      string      `mapstructure:"prefix"`
	ContentType string      `mapstructure:"content_type"`
	Local       LocalConfig `mapstructure:"local"`
}

// LocalConfig configures the filesystem snapshot store.
type LocalConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// DatabaseConfig controls access to the search history database.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProgressConfig configures the progress hub.
type ProgressConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	LogEnabled     bool          `mapstructure:"log_enabled"`
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
}

// envAliases binds the bare variable names used by deployments alongside the
// prefixed ones.
var envAliases = map[string][]string{
	"server.port":       {"PORT"},
	"search.api_key":    {"GOOGLE_API_KEY"},
	"search.cx":         {"GOOGLE_CX"},
	"ai.openai.api_key": {"OPENAI_API_KEY"},
	"ai.gemini.api_key": {"GEMINI_API_KEY"},
	"database.dsn":      {"DATABASE_URL"},
}

const envPrefix = "PRODUCT_SEARCH"

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, aliases := range envAliases {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		args := append([]string{key, prefixed}, aliases...)
		if err := v.BindEnv(args...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("server.search_timeout_seconds", 600)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("search.results", 10)
	v.SetDefault("search.gl", "au")
	v.SetDefault("search.cr", "countryAU")
	v.SetDefault("search.blocklist", []string{
		"reddit.com", "wikipedia.org", "youtube.com",
		"facebook.com", "twitter.com", "pinterest.com",
	})
	v.SetDefault("search.cache_ttl", 10*time.Minute)
	v.SetDefault("search.timeout_seconds", 15)
	v.SetDefault("ai.provider", "auto")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.openai.max_tokens", 4000)
	v.SetDefault("ai.gemini.model", "gemini-2.0-flash")
	v.SetDefault("ai.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta/openai")
	v.SetDefault("ai.gemini.max_tokens", 8000)
	v.SetDefault("ai.max_input_chars", 70000)
	v.SetDefault("ai.max_products", 30)
	v.SetDefault("ai.attempts", 2)
	v.SetDefault("ai.markdown", false)
	v.SetDefault("ai.default_currency", "AUD")
	v.SetDefault("ai.requests_per_second", 0)
	v.SetDefault("ai.burst", 1)
	v.SetDefault("ai.timeout_seconds", 60)
	v.SetDefault("ai.structured_first", true)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.nav_timeout_seconds", 15)
	v.SetDefault("browser.settle_ms", 2000)
	v.SetDefault("browser.scroll_steps", 3)
	v.SetDefault("browser.scroll_delay_ms", 250)
	v.SetDefault("browser.block_resources", []string{"image", "stylesheet", "font", "media"})
	v.SetDefault("probe.enabled", false)
	v.SetDefault("probe.timeout_seconds", 10)
	v.SetDefault("probe.body_length_threshold", 2048)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.site_timeout_seconds", 45)
	v.SetDefault("pipeline.domain_rps", 0)
	v.SetDefault("pipeline.domain_burst", 1)
	v.SetDefault("ranking.min_score", 0.5)
	v.SetDefault("storage.backend", "none")
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.log_enabled", false)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 100)
	v.SetDefault("progress.max_batch_wait", 500*time.Millisecond)

	// Zero values register the remaining keys so AutomaticEnv can fill them
	// during Unmarshal.
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.cx", "")
	v.SetDefault("search.endpoint", "")
	v.SetDefault("ai.openai.api_key", "")
	v.SetDefault("ai.openai.base_url", "")
	v.SetDefault("ai.openai.temperature", 0)
	v.SetDefault("ai.gemini.api_key", "")
	v.SetDefault("ai.gemini.temperature", 0)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("probe.user_agent", "")
	v.SetDefault("ranking.blacklist", []string{})
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.local.base_dir", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", time.Duration(0))
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
}

// Validate enforces required values and reasonable limits. Missing search or
// model credentials are not errors here; they fail individual searches.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Pipeline.Concurrency < 1 || c.Pipeline.Concurrency > 16 {
		return errors.New("pipeline.concurrency must be between 1 and 16")
	}
	if c.Pipeline.SiteTimeoutSeconds <= 0 {
		return errors.New("pipeline.site_timeout_seconds must be > 0")
	}
	if c.Browser.NavTimeoutSeconds <= 0 {
		return errors.New("browser.nav_timeout_seconds must be > 0")
	}
	switch strings.ToLower(c.AI.Provider) {
	case "openai", "gemini", "auto":
	default:
		return fmt.Errorf("ai.provider must be openai, gemini, or auto (got %q)", c.AI.Provider)
	}
	if c.AI.Attempts < 1 {
		return errors.New("ai.attempts must be >= 1")
	}
	if c.Ranking.MinScore < 0 || c.Ranking.MinScore > 1 {
		return errors.New("ranking.min_score must be between 0 and 1")
	}
	switch c.Storage.Backend {
	case "", "none", "memory":
	case "local":
		if c.Storage.Local.BaseDir == "" {
			return errors.New("storage.local.base_dir must be set for the local backend")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be none, memory, local, or gcs (got %q)", c.Storage.Backend)
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// SiteTimeout returns the per-site processing budget.
func (c Config) SiteTimeout() time.Duration {
	return time.Duration(c.Pipeline.SiteTimeoutSeconds) * time.Second
}

// SearchTimeout returns the end-to-end budget for one streamed search.
func (c Config) SearchTimeout() time.Duration {
	return time.Duration(c.Server.SearchTimeoutSeconds) * time.Second
}
