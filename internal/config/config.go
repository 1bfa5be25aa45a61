package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file leaves a field unset.
const (
	DefaultMaxHistory         = 10
	DefaultLockTimeout        = 30 * time.Second
	DefaultBotPrefix          = "Bot, "
	DefaultMaxResponseTokens  = 800
	DefaultTemperature        = 0.7
	DefaultProvider           = "openai"
	DefaultOpenAIModel        = "gpt-4o-mini"
	DefaultAnthropicModel     = "claude-3-haiku-20240307"
	DefaultDeepSeekModel      = "deepseek-chat"
	DefaultDeepSeekBaseURL    = "https://api.deepseek.com/v1"
	DefaultContextWindow      = 8192
	DefaultBudgetPercent      = 75
	DefaultHistoryLinePrefix  = "➤ "
	DefaultRateLimitPerMinute = 30
)

// DefaultSystemPrompt is used for channels without a prompt override.
const DefaultSystemPrompt = "You are a helpful assistant in a Discord server. Respond in a friendly, concise manner. You have been listening to the conversation and can reference it in your replies."

type Config struct {
	LogLevel string `yaml:"logLevel"`

	Discord   DiscordConfig   `yaml:"discord"`
	Providers ProvidersConfig `yaml:"providers"`
	History   HistoryConfig   `yaml:"history"`
	Context   ContextConfig   `yaml:"context"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

type DiscordConfig struct {
	Token       string `yaml:"token"`
	BotPrefix   string `yaml:"botPrefix"`
	AutoRespond bool   `yaml:"autoRespond"`
}

type ProvidersConfig struct {
	Default   string         `yaml:"default"`
	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`
	DeepSeek  ProviderConfig `yaml:"deepseek"`
}

type ProviderConfig struct {
	APIKey             string  `yaml:"apiKey"`
	Model              string  `yaml:"model"`
	BaseURL            string  `yaml:"baseURL"`
	MaxTokens          int     `yaml:"maxTokens"`
	Temperature        float64 `yaml:"temperature"`
	RateLimitPerMinute int     `yaml:"rateLimitPerMinute"`
}

type HistoryConfig struct {
	MaxHistory          int           `yaml:"maxHistory"`
	LockTimeout         time.Duration `yaml:"lockTimeout"`
	DefaultSystemPrompt string        `yaml:"defaultSystemPrompt"`
	LinePrefix          string        `yaml:"linePrefix"`
}

type ContextConfig struct {
	Enabled       bool `yaml:"enabled"`
	WindowTokens  int  `yaml:"windowTokens"`
	BudgetPercent int  `yaml:"budgetPercent"`
}

type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Load reads a YAML config file, expands ${ENV_VAR} references, applies
// defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Discord.BotPrefix == "" {
		c.Discord.BotPrefix = DefaultBotPrefix
	}
	if c.Providers.Default == "" {
		c.Providers.Default = DefaultProvider
	}
	applyProviderDefaults(&c.Providers.OpenAI, DefaultOpenAIModel, "")
	applyProviderDefaults(&c.Providers.Anthropic, DefaultAnthropicModel, "")
	applyProviderDefaults(&c.Providers.DeepSeek, DefaultDeepSeekModel, DefaultDeepSeekBaseURL)
	if c.History.MaxHistory <= 0 {
		c.History.MaxHistory = DefaultMaxHistory
	}
	if c.History.LockTimeout <= 0 {
		c.History.LockTimeout = DefaultLockTimeout
	}
	if c.History.DefaultSystemPrompt == "" {
		c.History.DefaultSystemPrompt = DefaultSystemPrompt
	}
	if c.History.LinePrefix == "" {
		c.History.LinePrefix = DefaultHistoryLinePrefix
	}
	if c.Context.WindowTokens <= 0 {
		c.Context.WindowTokens = DefaultContextWindow
	}
	if c.Context.BudgetPercent <= 0 || c.Context.BudgetPercent > 100 {
		c.Context.BudgetPercent = DefaultBudgetPercent
	}
}

func applyProviderDefaults(p *ProviderConfig, model, baseURL string) {
	if p.Model == "" {
		p.Model = model
	}
	if p.BaseURL == "" {
		p.BaseURL = baseURL
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = DefaultMaxResponseTokens
	}
	if p.Temperature <= 0 {
		p.Temperature = DefaultTemperature
	}
	if p.RateLimitPerMinute <= 0 {
		p.RateLimitPerMinute = DefaultRateLimitPerMinute
	}
}

// Validate checks fields the process cannot run without.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("config: discord.token is required")
	}
	switch strings.ToLower(c.Providers.Default) {
	case "openai", "anthropic", "deepseek":
	default:
		return fmt.Errorf("config: providers.default must be one of openai, anthropic, deepseek (got %q)", c.Providers.Default)
	}
	return nil
}

// Provider returns the config block for a named provider.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	switch strings.ToLower(name) {
	case "openai":
		return c.Providers.OpenAI, true
	case "anthropic":
		return c.Providers.Anthropic, true
	case "deepseek":
		return c.Providers.DeepSeek, true
	}
	return ProviderConfig{}, false
}
