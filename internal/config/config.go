package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath      = "config.toml"
	DefaultHTTPAddr        = ":8080"
	DefaultCallbackPath    = "/callback"
	DefaultChatModel       = "gemini-2.0-flash-exp"
	DefaultChatTimeout     = 60
	DefaultSessionIdleTTL  = "24h"
	DefaultRelayWorkers    = 4
	DefaultRelayQueueSize  = 64
	DefaultDownloadDir     = "downloads"
	DefaultCookiesPath     = "cookies.txt"
	DefaultDownloadCommand = "twspace_dl"
	DefaultDownloadTimeout = 3600
	DefaultRetention       = "72h"
	DefaultPruneSchedule   = "@every 10m"
	DefaultJWTExpiresIn    = "24h"
)

type Config struct {
	Log      LogConfig      `toml:"log" yaml:"log"`
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Line     LineConfig     `toml:"line" yaml:"line"`
	Chat     ChatConfig     `toml:"chat" yaml:"chat"`
	Relay    RelayConfig    `toml:"relay" yaml:"relay"`
	Download DownloadConfig `toml:"download" yaml:"download"`
	Auth     AuthConfig     `toml:"auth" yaml:"auth"`
	Messages MessagesConfig `toml:"messages" yaml:"messages"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `toml:"format" yaml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr string `toml:"addr" yaml:"addr" validate:"required"`
}

type LineConfig struct {
	ChannelSecret      string `toml:"channel_secret" yaml:"channel_secret" validate:"required"`
	ChannelAccessToken string `toml:"channel_access_token" yaml:"channel_access_token" validate:"required"`
	CallbackPath       string `toml:"callback_path" yaml:"callback_path" validate:"required,startswith=/"`
}

type ChatConfig struct {
	APIKey         string `toml:"api_key" yaml:"api_key" validate:"required"`
	Model          string `toml:"model" yaml:"model" validate:"required"`
	GoogleSearch   bool   `toml:"google_search" yaml:"google_search"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=1"`
	SessionIdleTTL string `toml:"session_idle_ttl" yaml:"session_idle_ttl"`
	PruneSchedule  string `toml:"prune_schedule" yaml:"prune_schedule"`
}

type RelayConfig struct {
	Workers   int `toml:"workers" yaml:"workers" validate:"gte=1,lte=256"`
	QueueSize int `toml:"queue_size" yaml:"queue_size" validate:"gte=1"`
}

type DownloadConfig struct {
	Dir            string `toml:"dir" yaml:"dir" validate:"required"`
	CookiesPath    string `toml:"cookies_path" yaml:"cookies_path"`
	Command        string `toml:"command" yaml:"command" validate:"required"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=1"`
	Retention      string `toml:"retention" yaml:"retention"`
	PruneSchedule  string `toml:"prune_schedule" yaml:"prune_schedule"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret" yaml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in" yaml:"jwt_expires_in"`
}

// MessagesConfig holds the fixed user-facing texts.
type MessagesConfig struct {
	AltText    string `toml:"alt_text" yaml:"alt_text"`
	Apology    string `toml:"apology" yaml:"apology"`
	NoResponse string `toml:"no_response" yaml:"no_response"`
}

func (c ChatConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c ChatConfig) IdleTTL() time.Duration {
	return parseDuration(c.SessionIdleTTL, DefaultSessionIdleTTL)
}

func (c DownloadConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c DownloadConfig) RetentionDuration() time.Duration {
	return parseDuration(c.Retention, DefaultRetention)
}

func (c AuthConfig) ExpiresIn() time.Duration {
	return parseDuration(c.JWTExpiresIn, DefaultJWTExpiresIn)
}

func parseDuration(raw, fallback string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Line: LineConfig{
			CallbackPath: DefaultCallbackPath,
		},
		Chat: ChatConfig{
			Model:          DefaultChatModel,
			GoogleSearch:   true,
			TimeoutSeconds: DefaultChatTimeout,
			SessionIdleTTL: DefaultSessionIdleTTL,
			PruneSchedule:  DefaultPruneSchedule,
		},
		Relay: RelayConfig{
			Workers:   DefaultRelayWorkers,
			QueueSize: DefaultRelayQueueSize,
		},
		Download: DownloadConfig{
			Dir:            DefaultDownloadDir,
			CookiesPath:    DefaultCookiesPath,
			Command:        DefaultDownloadCommand,
			TimeoutSeconds: DefaultDownloadTimeout,
			Retention:      DefaultRetention,
			PruneSchedule:  DefaultPruneSchedule,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Messages: MessagesConfig{
			AltText:    "Geminiからの応答",
			Apology:    "申し訳ありません。現在応答を生成できません。しばらく後でもう一度お試しください。",
			NoResponse: "応答を生成できませんでした。",
		},
	}
}

// Load reads the config file at path over the defaults and applies
// environment overrides. Files ending in .yaml or .yml are read as YAML,
// anything else as TOML. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if err := decodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}

	applyEnv(&cfg, os.LookupEnv)
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(data, cfg)
	default:
		_, err := toml.DecodeFile(path, cfg)
		return err
	}
}

var envOverrides = []struct {
	key   string
	field func(*Config) *string
}{
	{"LINE_CHANNEL_SECRET", func(c *Config) *string { return &c.Line.ChannelSecret }},
	{"LINE_CHANNEL_ACCESS_TOKEN", func(c *Config) *string { return &c.Line.ChannelAccessToken }},
	{"GEMINI_API_KEY", func(c *Config) *string { return &c.Chat.APIKey }},
	{"GOOGLE_API_KEY", func(c *Config) *string { return &c.Chat.APIKey }},
	{"JWT_SECRET", func(c *Config) *string { return &c.Auth.JWTSecret }},
	{"DOWNLOAD_DIR", func(c *Config) *string { return &c.Download.Dir }},
	{"COOKIES_PATH", func(c *Config) *string { return &c.Download.CookiesPath }},
	{"LOG_LEVEL", func(c *Config) *string { return &c.Log.Level }},
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	for _, o := range envOverrides {
		value, ok := lookup(o.key)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		field := o.field(cfg)
		// GEMINI_API_KEY wins over GOOGLE_API_KEY.
		if o.key == "GOOGLE_API_KEY" && *field != "" {
			continue
		}
		*field = strings.TrimSpace(value)
	}
}

var validate = validator.New()

// Validate checks the settings needed to serve webhooks.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ValidateDownload checks only the downloader settings.
func (c Config) ValidateDownload() error {
	if err := validate.Struct(c.Download); err != nil {
		return fmt.Errorf("invalid download config: %w", err)
	}
	return nil
}
