package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CHATNOTIFY_"

// Config represents the worker configuration (~/.chatnotify/config.toml).
type Config struct {
	DefaultProfile string `koanf:"default_profile" toml:"default_profile"`

	Strategy      string        `koanf:"strategy" toml:"strategy" validate:"required,oneof=push realtime poll"`
	AppURL        string        `koanf:"app_url" toml:"app_url" validate:"required,url"`
	Icon          string        `koanf:"icon" toml:"icon"`
	TitleEmblem   string        `koanf:"title_emblem" toml:"title_emblem"`
	BodyMaxChars  int           `koanf:"body_max_chars" toml:"body_max_chars" validate:"min=1"`
	Ellipsis      string        `koanf:"ellipsis" toml:"ellipsis"`
	DefaultTitle  string        `koanf:"default_title" toml:"default_title" validate:"required"`
	DefaultBody   string        `koanf:"default_body" toml:"default_body" validate:"required"`
	PushTag       string        `koanf:"push_tag" toml:"push_tag" validate:"required"`
	PollInterval  time.Duration `koanf:"poll_interval" toml:"poll_interval" validate:"min=1s"`
	Notifier      string        `koanf:"notifier" toml:"notifier" validate:"oneof=auto dbus beeep log"`
	LogLevel      string        `koanf:"log_level" toml:"log_level" validate:"oneof=debug info warn error"`
	MetricsAddr   string        `koanf:"metrics_addr" toml:"metrics_addr"`
	CredsFile     string        `koanf:"credentials_file" toml:"credentials_file"`
	JournalMaxAge time.Duration `koanf:"journal_retention" toml:"journal_retention" validate:"min=1m"`

	Backend Backend `koanf:"backend" toml:"backend"`
}

// Backend configures the REST and realtime data source.
type Backend struct {
	RESTURL           string        `koanf:"rest_url" toml:"rest_url" validate:"omitempty,url"`
	RealtimeURL       string        `koanf:"realtime_url" toml:"realtime_url" validate:"omitempty,url"`
	APIKey            string        `koanf:"api_key" toml:"api_key"`
	Schema            string        `koanf:"schema" toml:"schema" validate:"required"`
	MessagesTable     string        `koanf:"messages_table" toml:"messages_table" validate:"required"`
	ChatsTable        string        `koanf:"chats_table" toml:"chats_table" validate:"required"`
	RequestsPerSecond int           `koanf:"requests_per_second" toml:"requests_per_second" validate:"min=1"`
	Timeout           time.Duration `koanf:"timeout" toml:"timeout" validate:"min=1s"`
	Heartbeat         time.Duration `koanf:"heartbeat" toml:"heartbeat" validate:"min=1s"`
}

// Defaults returns the key/value defaults applied before any file or env source.
func Defaults() map[string]any {
	return map[string]any{
		"default_profile":             "main",
		"strategy":                    "poll",
		"app_url":                     "https://partials-gh.github.io/chatbubble/",
		"icon":                        "images/icon.png",
		"title_emblem":                "💬",
		"body_max_chars":              100,
		"ellipsis":                    "…",
		"default_title":               "Chat Bubble",
		"default_body":                "You have a new message.",
		"push_tag":                    "chat-message",
		"poll_interval":               "8s",
		"notifier":                    "auto",
		"log_level":                   "info",
		"journal_retention":           "168h",
		"backend.schema":              "public",
		"backend.messages_table":      "messages",
		"backend.chats_table":         "chats",
		"backend.requests_per_second": 5,
		"backend.timeout":             "10s",
		"backend.heartbeat":           "30s",
	}
}

// Load reads configuration with priority env > file > defaults.
// A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
				return nil, fmt.Errorf("load config %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat config: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in defaults without validation. The poll strategy
// still needs backend.rest_url before it will load.
func Default() (*Config, error) {
	k := koanf.New(".")
	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks field rules and the strategy-specific backend requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	switch c.Strategy {
	case "poll":
		if c.Backend.RESTURL == "" {
			return fmt.Errorf("backend.rest_url is required for the poll strategy")
		}
	case "realtime":
		if c.Backend.RESTURL == "" || c.Backend.RealtimeURL == "" {
			return fmt.Errorf("backend.rest_url and backend.realtime_url are required for the realtime strategy")
		}
	}
	return nil
}

// IconURL resolves Icon against AppURL unless it is already absolute.
func (c *Config) IconURL() string {
	if c.Icon == "" {
		return ""
	}
	if u, err := url.Parse(c.Icon); err == nil && u.IsAbs() {
		return c.Icon
	}
	if filepath.IsAbs(c.Icon) {
		return c.Icon
	}
	base, err := url.Parse(c.AppURL)
	if err != nil {
		return c.AppURL + c.Icon
	}
	ref, err := url.Parse(c.Icon)
	if err != nil {
		return c.AppURL + c.Icon
	}
	return base.ResolveReference(ref).String()
}

// Save writes config as TOML to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func parserFor(path string) koanf.Parser {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Parser()
	}
	return tomlParser{}
}

// envTransform maps CHATNOTIFY_BACKEND_REST_URL to backend.rest_url.
func envTransform(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if rest, ok := strings.CutPrefix(key, "backend_"); ok {
		return "backend." + rest
	}
	return key
}
