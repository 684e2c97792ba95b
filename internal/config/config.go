package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	DefaultGeminiModel    = "gemini-2.0-flash-exp"
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	DefaultOpenAIModel    = "gpt-4o-mini"

	DefaultMaxTokens        = 1024
	DefaultTemperature      = 0.9
	DefaultRequestTimeout   = 30
	DefaultHost             = "127.0.0.1"
	DefaultPort             = 18790
	DefaultBufSize          = 100
	DefaultStoreDriver      = "file"
	DefaultRedisPrefix      = "aria"
	DefaultSnapshotSchedule = "0 0 3 * * *"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "console"
)

type Config struct {
	Agent       AgentConfig    `json:"agent"`
	Provider    ProviderConfig `json:"provider"`
	Store       StoreConfig    `json:"store"`
	Channels    ChannelsConfig `json:"channels"`
	Gateway     GatewayConfig  `json:"gateway"`
	Snapshot    SnapshotConfig `json:"snapshot"`
	Log         LogConfig      `json:"log"`
	PersonaPath string         `json:"persona,omitempty"`
}

type AgentConfig struct {
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
}

type ProviderConfig struct {
	Type    string `json:"type,omitempty"` // "gemini" (default), "anthropic" or "openai"
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
	Timeout int    `json:"timeout,omitempty"` // seconds
}

// Kind returns the normalised provider type, defaulting to gemini.
func (p ProviderConfig) Kind() string {
	t := strings.ToLower(strings.TrimSpace(p.Type))
	if t == "" {
		return ProviderGemini
	}
	return t
}

type StoreConfig struct {
	Driver string      `json:"driver"` // memory, file, sqlite or redis
	Path   string      `json:"path,omitempty"`
	Redis  RedisConfig `json:"redis"`
}

type RedisConfig struct {
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
}

type ChannelsConfig struct {
	Telegram  TelegramConfig  `json:"telegram"`
	WebSocket WebSocketConfig `json:"websocket"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type WebSocketConfig struct {
	Enabled   bool     `json:"enabled"`
	AllowFrom []string `json:"allowFrom"`
	// Origins lists extra browser origin host patterns (path.Match syntax)
	// allowed to connect. Same-host origins are always accepted.
	Origins []string `json:"origins,omitempty"`
}

type GatewayConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	BufSize int    `json:"bufSize,omitempty"`
}

type SnapshotConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"`
	Dir      string `json:"dir,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"` // "console" or "json"
}

func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
		Provider: ProviderConfig{
			Timeout: DefaultRequestTimeout,
		},
		Store: StoreConfig{
			Driver: DefaultStoreDriver,
			Redis:  RedisConfig{Prefix: DefaultRedisPrefix},
		},
		Channels: ChannelsConfig{
			WebSocket: WebSocketConfig{Enabled: true},
		},
		Gateway: GatewayConfig{
			Host:    DefaultHost,
			Port:    DefaultPort,
			BufSize: DefaultBufSize,
		},
		Snapshot: SnapshotConfig{
			Schedule: DefaultSnapshotSchedule,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".aria")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// DefaultStorePath returns the on-disk location used by a driver when no path is configured.
func DefaultStorePath(driver string) string {
	switch strings.ToLower(driver) {
	case "sqlite":
		return filepath.Join(ConfigDir(), "profiles.db")
	case "file", "":
		return filepath.Join(ConfigDir(), "profiles.json")
	default:
		return ""
	}
}

// DefaultModel returns the model used for the provider when none is configured.
func (p ProviderConfig) DefaultModel() string {
	switch p.Kind() {
	case ProviderAnthropic:
		return DefaultAnthropicModel
	case ProviderOpenAI:
		return DefaultOpenAIModel
	default:
		return DefaultGeminiModel
	}
}

// ModelName returns the configured model or the default for the provider.
func (c *Config) ModelName() string {
	if m := strings.TrimSpace(c.Agent.Model); m != "" {
		return m
	}
	return c.Provider.DefaultModel()
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	normalize(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if key := os.Getenv("ARIA_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = ProviderGemini
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = ProviderAnthropic
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = ProviderOpenAI
		}
	}
	if p := os.Getenv("ARIA_PROVIDER"); p != "" {
		cfg.Provider.Type = p
	}
	if m := os.Getenv("ARIA_MODEL"); m != "" {
		cfg.Agent.Model = m
	}
	if url := os.Getenv("ARIA_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if d := os.Getenv("ARIA_STORE_DRIVER"); d != "" {
		cfg.Store.Driver = d
	}
	if p := os.Getenv("ARIA_STORE_PATH"); p != "" {
		cfg.Store.Path = p
	}
	if addr := os.Getenv("ARIA_REDIS_ADDR"); addr != "" {
		cfg.Store.Redis.Addr = addr
	}
	if token := os.Getenv("ARIA_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if lvl := os.Getenv("ARIA_LOG_LEVEL"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if p := os.Getenv("ARIA_PERSONA_PATH"); p != "" {
		cfg.PersonaPath = p
	}
	if t := os.Getenv("ARIA_REQUEST_TIMEOUT"); t != "" {
		if parsed, err := strconv.Atoi(t); err == nil {
			cfg.Provider.Timeout = parsed
		}
	}
}

func normalize(cfg *Config) {
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DefaultStoreDriver
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath(cfg.Store.Driver)
	}
	if cfg.Store.Redis.Prefix == "" {
		cfg.Store.Redis.Prefix = DefaultRedisPrefix
	}
	if cfg.Agent.MaxTokens <= 0 {
		cfg.Agent.MaxTokens = DefaultMaxTokens
	}
	if cfg.Provider.Timeout <= 0 {
		cfg.Provider.Timeout = DefaultRequestTimeout
	}
	if cfg.Gateway.BufSize <= 0 {
		cfg.Gateway.BufSize = DefaultBufSize
	}
	if cfg.Snapshot.Schedule == "" {
		cfg.Snapshot.Schedule = DefaultSnapshotSchedule
	}
	if cfg.Snapshot.Dir == "" {
		cfg.Snapshot.Dir = filepath.Join(ConfigDir(), "snapshots")
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
