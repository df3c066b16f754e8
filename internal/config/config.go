// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Agent() AgentConfig
	LLM() LLMConfig
	Browser() BrowserConfig
	Resolver() ResolverConfig
	Server() ServerConfig

	SetBrowserHeadless(bool)
	SetLLMModel(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	AgentCfg    AgentConfig    `mapstructure:"agent" yaml:"agent"`
	LLMCfg      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	ResolverCfg ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	ServerCfg   ServerConfig   `mapstructure:"server" yaml:"server"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Agent() AgentConfig       { return c.AgentCfg }
func (c *Config) LLM() LLMConfig           { return c.LLMCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) Resolver() ResolverConfig { return c.ResolverCfg }
func (c *Config) Server() ServerConfig     { return c.ServerCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetLLMModel(m string)      { c.LLMCfg.Model = m }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// AgentConfig bounds a single task run.
type AgentConfig struct {
	MaxSteps      int           `mapstructure:"max_steps" yaml:"max_steps"`
	TimeBudget    time.Duration `mapstructure:"time_budget" yaml:"time_budget"`
	ReflectEvery  int           `mapstructure:"reflect_every" yaml:"reflect_every"`
	SummaryTail   int           `mapstructure:"summary_tail" yaml:"summary_tail"`
	DecomposeGoal bool          `mapstructure:"decompose_goal" yaml:"decompose_goal"`
	SnapshotChars int           `mapstructure:"snapshot_chars" yaml:"snapshot_chars"`
}

// LLMConfig configures the reasoning service client.
type LLMConfig struct {
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Model             string        `mapstructure:"model" yaml:"model"`
	FastModel         string        `mapstructure:"fast_model" yaml:"fast_model"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BackoffStep       time.Duration `mapstructure:"backoff_step" yaml:"backoff_step"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
}

// BrowserConfig holds settings for the controlled Chrome instance.
type BrowserConfig struct {
	Headless          bool              `mapstructure:"headless" yaml:"headless"`
	Args              []string          `mapstructure:"args" yaml:"args"`
	ViewportWidth     int               `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int               `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration     `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration     `mapstructure:"action_timeout" yaml:"action_timeout"`
	IdleTimeout       time.Duration     `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	MaxNodes          int               `mapstructure:"max_nodes" yaml:"max_nodes"`
	DefaultScroll     int               `mapstructure:"default_scroll" yaml:"default_scroll"`
	UserAgent         string            `mapstructure:"user_agent" yaml:"user_agent"`
	Headers           map[string]string `mapstructure:"headers" yaml:"headers"`
}

// ResolverConfig holds the intent scoring table.
type ResolverConfig struct {
	Synonyms        map[string][]string `mapstructure:"synonyms" yaml:"synonyms"`
	ExcludedRegions []string            `mapstructure:"excluded_regions" yaml:"excluded_regions"`
	TopK            int                 `mapstructure:"top_k" yaml:"top_k"`
	DispatchTopK    int                 `mapstructure:"dispatch_top_k" yaml:"dispatch_top_k"`
	KeywordWeight   float64             `mapstructure:"keyword_weight" yaml:"keyword_weight"`
	RoleWeight      float64             `mapstructure:"role_weight" yaml:"role_weight"`
	TagWeight       float64             `mapstructure:"tag_weight" yaml:"tag_weight"`
	PositionWeight  float64             `mapstructure:"position_weight" yaml:"position_weight"`
	PositionBand    float64             `mapstructure:"position_band" yaml:"position_band"`
}

// ServerConfig configures the HTTP and WebSocket front end.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ConfirmTimeout  time.Duration `mapstructure:"confirm_timeout" yaml:"confirm_timeout"`
	InputTimeout    time.Duration `mapstructure:"input_timeout" yaml:"input_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DefaultSynonyms is the built-in intent family table.
func DefaultSynonyms() map[string][]string {
	return map[string][]string{
		"search": {"search", "find", "go", "submit", "lookup"},
		"login":  {"login", "sign in", "sign-in", "enter", "submit"},
		"next":   {"next", "continue", "proceed", "more"},
		"add":    {"add", "buy", "cart", "basket", "order"},
	}
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "webpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "red")

	// -- Agent --
	v.SetDefault("agent.max_steps", 80)
	v.SetDefault("agent.time_budget", "300s")
	v.SetDefault("agent.reflect_every", 4)
	v.SetDefault("agent.summary_tail", 1000)
	v.SetDefault("agent.decompose_goal", false)
	v.SetDefault("agent.snapshot_chars", 3200)

	// -- LLM --
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.fast_model", "")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_attempts", 5)
	v.SetDefault("llm.backoff_step", "2s")
	v.SetDefault("llm.max_backoff", "8s")
	v.SetDefault("llm.requests_per_second", 0.0)
	v.SetDefault("llm.burst", 1)
	v.SetDefault("llm.ignore_tls_errors", false)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.action_timeout", "5s")
	v.SetDefault("browser.idle_timeout", "3s")
	v.SetDefault("browser.max_nodes", 400)
	v.SetDefault("browser.default_scroll", 800)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.headers", map[string]string{})

	// -- Resolver --
	v.SetDefault("resolver.synonyms", DefaultSynonyms())
	v.SetDefault("resolver.excluded_regions", []string{"header", "nav"})
	v.SetDefault("resolver.top_k", 10)
	v.SetDefault("resolver.dispatch_top_k", 8)
	v.SetDefault("resolver.keyword_weight", 3.0)
	v.SetDefault("resolver.role_weight", 2.0)
	v.SetDefault("resolver.tag_weight", 1.5)
	v.SetDefault("resolver.position_weight", 0.5)
	v.SetDefault("resolver.position_band", 600.0)

	// -- Server --
	v.SetDefault("server.addr", ":8787")
	v.SetDefault("server.confirm_timeout", "5m")
	v.SetDefault("server.input_timeout", "10m")
	v.SetDefault("server.shutdown_timeout", "10s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The unprefixed names are what existing deployments export.
	_ = v.BindEnv("llm.base_url", "WEBPILOT_LLM_BASE_URL", "LLM_BASE_URL")
	_ = v.BindEnv("llm.api_key", "WEBPILOT_LLM_API_KEY", "LLM_API_KEY")
	_ = v.BindEnv("llm.model", "WEBPILOT_LLM_MODEL", "LLM_MODEL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.LLMCfg.FastModel == "" {
		cfg.LLMCfg.FastModel = cfg.LLMCfg.Model
	}
	if len(cfg.ResolverCfg.Synonyms) == 0 {
		cfg.ResolverCfg.Synonyms = DefaultSynonyms()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	var errs []error

	if c.AgentCfg.MaxSteps <= 0 {
		errs = append(errs, errors.New("agent.max_steps must be a positive integer"))
	}
	if c.AgentCfg.TimeBudget <= 0 {
		errs = append(errs, errors.New("agent.time_budget must be a positive duration"))
	}
	if c.AgentCfg.ReflectEvery < 0 {
		errs = append(errs, errors.New("agent.reflect_every must not be negative"))
	}
	if c.LLMCfg.MaxAttempts < 1 {
		errs = append(errs, errors.New("llm.max_attempts must be at least 1"))
	}
	if strings.TrimSpace(c.LLMCfg.Model) == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if strings.TrimSpace(c.LLMCfg.BaseURL) == "" {
		errs = append(errs, errors.New("llm.base_url is required"))
	}
	if c.BrowserCfg.ViewportWidth <= 0 || c.BrowserCfg.ViewportHeight <= 0 {
		errs = append(errs, errors.New("browser viewport dimensions must be positive"))
	}
	if strings.TrimSpace(c.ServerCfg.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}

	return errors.Join(errs...)
}
