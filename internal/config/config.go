// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. SUGGEST_DATABASE_URL.
const EnvPrefix = "SUGGEST"

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`   // trace|debug|info|warn|error
	Format   string `yaml:"format" envconfig:"FORMAT"` // json|console
	Sampling bool   `yaml:"sampling" envconfig:"SAMPLING"`
}

type DatabaseConfig struct {
	URL            string        `yaml:"url" envconfig:"URL"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" envconfig:"CONNECT_TIMEOUT"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" envconfig:"URL"`
	Password string        `yaml:"password" envconfig:"PASSWORD"`
	DB       int           `yaml:"db" envconfig:"DB"`
	TTL      time.Duration `yaml:"ttl" envconfig:"TTL"`
}

type AIConfig struct {
	Provider        string        `yaml:"provider" envconfig:"PROVIDER"` // openai|gemini|bedrock|multi|noop
	OpenAIKey       string        `yaml:"openai_key" envconfig:"OPENAI_KEY"`
	OpenAIBaseURL   string        `yaml:"openai_base_url" envconfig:"OPENAI_BASE_URL"`
	GeminiKey       string        `yaml:"gemini_key" envconfig:"GEMINI_KEY"`
	GeminiURL       string        `yaml:"gemini_url" envconfig:"GEMINI_URL"`
	BedrockRegion   string        `yaml:"bedrock_region" envconfig:"BEDROCK_REGION"`
	DefaultModel    string        `yaml:"default_model" envconfig:"DEFAULT_MODEL"`
	ConcurrentLimit int           `yaml:"concurrent_limit" envconfig:"CONCURRENT_LIMIT"`
	Timeout         time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	TokenEncoding   string        `yaml:"token_encoding" envconfig:"TOKEN_ENCODING"`
}

type MessagingConfig struct {
	Platform    string `yaml:"platform" envconfig:"PLATFORM"` // telegram|noop
	APIEndpoint string `yaml:"api_endpoint" envconfig:"API_ENDPOINT"`
	Language    string `yaml:"language" envconfig:"LANGUAGE"` // notice and button texts
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key" envconfig:"ENCRYPTION_KEY"`
	WebhookSecret string `yaml:"webhook_secret" envconfig:"WEBHOOK_SECRET"`
	APIKey        string `yaml:"api_key" envconfig:"API_KEY"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	WebhookTimeout  time.Duration `yaml:"webhook_timeout" envconfig:"WEBHOOK_TIMEOUT"`
}

type GenerationConfig struct {
	MaxTokens        int           `yaml:"max_tokens"`
	Temperature      float64       `yaml:"temperature"`
	MaxInputChars    int           `yaml:"max_input_chars"`
	MaxOutputChars   int           `yaml:"max_output_chars"`
	MaxAvoidTopics   int           `yaml:"max_avoid_topics"`
	BlockTokenBudget int           `yaml:"block_token_budget"`
	ProviderTimeout  time.Duration `yaml:"provider_timeout"`
	ContextTimeout   time.Duration `yaml:"context_timeout"`
	KBThreshold      float64       `yaml:"kb_threshold"`
	KBLimit          int           `yaml:"kb_limit"`
	KBTimeout        time.Duration `yaml:"kb_timeout"`
	DetachedTimeout  time.Duration `yaml:"detached_timeout"`
}

type RateLimitConfig struct {
	Max      int           `yaml:"max"`
	Duration time.Duration `yaml:"duration"`
}

type BackoffConfig struct {
	Base time.Duration `yaml:"base"`
	Max  time.Duration `yaml:"max"`
}

type QueueConfig struct {
	Concurrency  int             `yaml:"concurrency"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
	MaxAttempts  int             `yaml:"max_attempts"`
	Backoff      BackoffConfig   `yaml:"backoff"`
	PollInterval time.Duration   `yaml:"poll_interval"`
}

type SchedulerConfig struct {
	StaleAfter        time.Duration `yaml:"stale_after"`
	StaleInterval     time.Duration `yaml:"stale_interval"`
	RetentionDays     int           `yaml:"retention_days"`
	RetentionInterval time.Duration `yaml:"retention_interval"`
	TrendInterval     time.Duration `yaml:"trend_interval"`
}

type Config struct {
	Log        LogConfig              `yaml:"log" envconfig:"LOG"`
	Database   DatabaseConfig         `yaml:"database" envconfig:"DATABASE"`
	Redis      RedisConfig            `yaml:"redis" envconfig:"REDIS"`
	AI         AIConfig               `yaml:"ai" envconfig:"AI"`
	Messaging  MessagingConfig        `yaml:"messaging" envconfig:"MESSAGING"`
	Security   SecurityConfig         `yaml:"security" envconfig:"SECURITY"`
	HTTP       HTTPConfig             `yaml:"http" envconfig:"HTTP"`
	Generation GenerationConfig       `yaml:"generation" ignored:"true"`
	Queues     map[string]QueueConfig `yaml:"queues" ignored:"true"`
	Scheduler  SchedulerConfig        `yaml:"scheduler" ignored:"true"`

	Runtime RuntimeConfig `yaml:"-" ignored:"true"`
}

// Load reads the yaml file at path, applies SUGGEST_* environment overrides,
// fills defaults and validates the result.
func Load(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Database.ConnectTimeout <= 0 {
		c.Database.ConnectTimeout = 5 * time.Second
	}
	c.Redis.TTL = normalizeTTL(c.Redis.TTL)

	if c.AI.Provider == "" {
		c.AI.Provider = "openai"
		if c.Runtime.Dev {
			c.AI.Provider = "noop"
		}
	}
	if c.AI.DefaultModel == "" {
		c.AI.DefaultModel = "gpt-4o-mini"
	}
	if c.AI.ConcurrentLimit <= 0 {
		c.AI.ConcurrentLimit = 16
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 30 * time.Second
	}
	if c.AI.TokenEncoding == "" {
		c.AI.TokenEncoding = "cl100k_base"
	}
	if c.Messaging.Language == "" {
		c.Messaging.Language = "en"
	}
	if c.Messaging.Platform == "" {
		c.Messaging.Platform = "telegram"
		if c.Runtime.Dev {
			c.Messaging.Platform = "noop"
		}
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 15 * time.Second
	}
	if c.HTTP.WebhookTimeout <= 0 {
		c.HTTP.WebhookTimeout = 5 * time.Second
	}

	g := &c.Generation
	if g.MaxTokens <= 0 {
		g.MaxTokens = 400
	}
	if g.Temperature <= 0 {
		g.Temperature = 0.4
	}
	if g.MaxInputChars <= 0 {
		g.MaxInputChars = 4000
	}
	if g.MaxOutputChars <= 0 {
		g.MaxOutputChars = 2000
	}
	if g.MaxAvoidTopics <= 0 || g.MaxAvoidTopics > 5 {
		g.MaxAvoidTopics = 5
	}
	if g.BlockTokenBudget <= 0 {
		g.BlockTokenBudget = 1500
	}
	if g.ProviderTimeout <= 0 {
		g.ProviderTimeout = c.AI.Timeout
	}
	if g.ContextTimeout <= 0 {
		g.ContextTimeout = 3 * time.Second
	}
	if g.KBThreshold <= 0 {
		g.KBThreshold = 0.7
	}
	if g.KBLimit <= 0 {
		g.KBLimit = 3
	}
	if g.KBTimeout <= 0 {
		g.KBTimeout = 1500 * time.Millisecond
	}
	if g.DetachedTimeout <= 0 {
		g.DetachedTimeout = 10 * time.Second
	}

	if c.Queues == nil {
		c.Queues = map[string]QueueConfig{}
	}
	for name, def := range DefaultQueues() {
		q, ok := c.Queues[name]
		if !ok {
			c.Queues[name] = def
			continue
		}
		c.Queues[name] = q.withDefaults(def)
	}

	s := &c.Scheduler
	if s.StaleAfter <= 0 {
		s.StaleAfter = 10 * time.Minute
	}
	if s.StaleInterval <= 0 {
		s.StaleInterval = time.Minute
	}
	if s.RetentionDays <= 0 {
		s.RetentionDays = 90
	}
	if s.RetentionInterval <= 0 {
		s.RetentionInterval = 24 * time.Hour
	}
	if s.TrendInterval <= 0 {
		s.TrendInterval = time.Hour
	}
}

// DefaultQueues returns the built-in settings of every queue.
func DefaultQueues() map[string]QueueConfig {
	std := func(concurrency, attempts int) QueueConfig {
		return QueueConfig{
			Concurrency:  concurrency,
			MaxAttempts:  attempts,
			Backoff:      BackoffConfig{Base: 2 * time.Second, Max: time.Minute},
			PollInterval: 500 * time.Millisecond,
		}
	}
	gen := std(10, 3)
	gen.RateLimit = RateLimitConfig{Max: 30, Duration: time.Minute}
	return map[string]QueueConfig{
		"generation":  gen,
		"write-back":  std(2, 5),
		"report":      std(1, 3),
		"batch-scan":  std(2, 3),
		"index":       std(2, 3),
		"retention":   std(1, 1),
		"aggregation": std(1, 2),
	}
}

func (q QueueConfig) withDefaults(def QueueConfig) QueueConfig {
	if q.Concurrency <= 0 {
		q.Concurrency = def.Concurrency
	}
	if q.MaxAttempts <= 0 {
		q.MaxAttempts = def.MaxAttempts
	}
	if q.Backoff.Base <= 0 {
		q.Backoff.Base = def.Backoff.Base
	}
	if q.Backoff.Max <= 0 {
		q.Backoff.Max = def.Backoff.Max
	}
	if q.PollInterval <= 0 {
		q.PollInterval = def.PollInterval
	}
	return q
}

// Minimal validation
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	for name, q := range c.Queues {
		if q.RateLimit.Max > 0 && q.RateLimit.Duration <= 0 {
			return fmt.Errorf("queues.%s.rate_limit.duration must be positive", name)
		}
	}
	if !c.Runtime.Dev && c.Security.EncryptionKey == "" {
		return errors.New("security.encryption_key is required")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
