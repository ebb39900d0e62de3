package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Engine   EngineConfig   `yaml:"engine"`
	Gamma    GammaConfig    `yaml:"gamma"`
	Telegram TelegramConfig `yaml:"telegram"`
	Web      WebConfig      `yaml:"web"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type EngineConfig struct {
	EvalCooldownSeconds    int     `yaml:"eval_cooldown_seconds"`
	InsightTTLMinutes      int     `yaml:"insight_ttl_minutes"`
	SessionIdleHours       int     `yaml:"session_idle_hours"`
	SessionSweepMinutes    int     `yaml:"session_sweep_minutes"`
	ScanIntervalMinutes    int     `yaml:"scan_interval_minutes"`
	ScanInitialDelaySecs   int     `yaml:"scan_initial_delay_seconds"`
	ScanTopMarkets         int     `yaml:"scan_top_markets"`
	DefaultMinTweetCount   int     `yaml:"default_min_tweet_count"`
	DefaultMinSentimentScr float64 `yaml:"default_min_sentiment_score"`
}

type GammaConfig struct {
	BaseURL           string  `yaml:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type WebConfig struct {
	Port int `yaml:"port"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnv(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// applyEnv lets secrets come from the environment (or a .env file loaded by
// the caller) instead of the config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.OpenAI.TimeoutSeconds == 0 {
		cfg.OpenAI.TimeoutSeconds = 10
	}
	if cfg.Engine.EvalCooldownSeconds == 0 {
		cfg.Engine.EvalCooldownSeconds = 15
	}
	if cfg.Engine.InsightTTLMinutes == 0 {
		cfg.Engine.InsightTTLMinutes = 60
	}
	if cfg.Engine.SessionIdleHours == 0 {
		cfg.Engine.SessionIdleHours = 24
	}
	if cfg.Engine.SessionSweepMinutes == 0 {
		cfg.Engine.SessionSweepMinutes = 60
	}
	if cfg.Engine.ScanIntervalMinutes == 0 {
		cfg.Engine.ScanIntervalMinutes = 15
	}
	if cfg.Engine.ScanInitialDelaySecs == 0 {
		cfg.Engine.ScanInitialDelaySecs = 30
	}
	if cfg.Engine.ScanTopMarkets == 0 {
		cfg.Engine.ScanTopMarkets = 10
	}
	if cfg.Engine.DefaultMinTweetCount == 0 {
		cfg.Engine.DefaultMinTweetCount = 1
	}
	if cfg.Engine.DefaultMinSentimentScr == 0 {
		cfg.Engine.DefaultMinSentimentScr = 0.4
	}
	if cfg.Gamma.BaseURL == "" {
		cfg.Gamma.BaseURL = "https://gamma-api.polymarket.com"
	}
	if cfg.Gamma.RequestsPerSecond == 0 {
		cfg.Gamma.RequestsPerSecond = 5
	}
	if cfg.Gamma.TimeoutSeconds == 0 {
		cfg.Gamma.TimeoutSeconds = 10
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "data/polypilot.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	if c.Engine.EvalCooldownSeconds < 0 {
		return fmt.Errorf("engine.eval_cooldown_seconds must not be negative")
	}
	if c.Engine.ScanTopMarkets < 1 {
		return fmt.Errorf("engine.scan_top_markets must be at least 1")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

// HasOpenAI reports whether the external inference path is configured at all.
// Without a key the engine runs on local heuristics only.
func (c *Config) HasOpenAI() bool {
	return c.OpenAI.APIKey != ""
}

func (c *Config) OpenAITimeout() time.Duration {
	return time.Duration(c.OpenAI.TimeoutSeconds) * time.Second
}

func (c *Config) EvalCooldown() time.Duration {
	return time.Duration(c.Engine.EvalCooldownSeconds) * time.Second
}

func (c *Config) InsightTTL() time.Duration {
	return time.Duration(c.Engine.InsightTTLMinutes) * time.Minute
}

func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.Engine.SessionIdleHours) * time.Hour
}

func (c *Config) SessionSweepInterval() time.Duration {
	return time.Duration(c.Engine.SessionSweepMinutes) * time.Minute
}

func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Engine.ScanIntervalMinutes) * time.Minute
}

func (c *Config) ScanInitialDelay() time.Duration {
	return time.Duration(c.Engine.ScanInitialDelaySecs) * time.Second
}

func (c *Config) GammaTimeout() time.Duration {
	return time.Duration(c.Gamma.TimeoutSeconds) * time.Second
}

func (c *Config) DefaultInsightsSettings() (enabled bool, minTweets int, minScore float64) {
	return true, c.Engine.DefaultMinTweetCount, c.Engine.DefaultMinSentimentScr
}
