package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load("")
	if err == nil {
		return cfg
	}
	// Defaults alone fail validation for the poll strategy; supply a backend.
	t.Setenv("CHATNOTIFY_BACKEND_REST_URL", "https://db.example.com")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return cfg
}

func TestDefaultsRequireBackendForPoll(t *testing.T) {
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "backend.rest_url") {
		t.Fatalf("Load() error = %v, want backend.rest_url requirement", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := validConfig(t)

	if cfg.Strategy != "poll" {
		t.Errorf("Strategy = %q, want poll", cfg.Strategy)
	}
	if cfg.PollInterval != 8*time.Second {
		t.Errorf("PollInterval = %v, want 8s", cfg.PollInterval)
	}
	if cfg.BodyMaxChars != 100 {
		t.Errorf("BodyMaxChars = %d, want 100", cfg.BodyMaxChars)
	}
	if cfg.Backend.Timeout != 10*time.Second {
		t.Errorf("Backend.Timeout = %v, want 10s", cfg.Backend.Timeout)
	}
	if got, want := cfg.IconURL(), "https://partials-gh.github.io/chatbubble/images/icon.png"; got != want {
		t.Errorf("IconURL() = %q, want %q", got, want)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := validConfig(t)
	cfg.DefaultProfile = "work"
	cfg.Strategy = "push"
	cfg.PollInterval = 3 * time.Second
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want work", loaded.DefaultProfile)
	}
	if loaded.Strategy != "push" {
		t.Errorf("Strategy = %q, want push", loaded.Strategy)
	}
	if loaded.PollInterval != 3*time.Second {
		t.Errorf("PollInterval = %v, want 3s", loaded.PollInterval)
	}
}

func TestLoadJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"strategy":"realtime","backend":{"rest_url":"https://db.example.com","realtime_url":"wss://db.example.com/realtime/v1/websocket"}}`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Strategy != "realtime" {
		t.Errorf("Strategy = %q, want realtime", cfg.Strategy)
	}
	if cfg.Backend.MessagesTable != "messages" {
		t.Errorf("MessagesTable = %q, want default messages", cfg.Backend.MessagesTable)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "strategy = \"poll\"\npoll_interval = \"20s\"\n\n[backend]\nrest_url = \"https://db.example.com\"\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHATNOTIFY_POLL_INTERVAL", "5s")
	t.Setenv("CHATNOTIFY_BACKEND_CHATS_TABLE", "rooms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s from env", cfg.PollInterval)
	}
	if cfg.Backend.ChatsTable != "rooms" {
		t.Errorf("ChatsTable = %q, want rooms from env", cfg.Backend.ChatsTable)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown strategy", "strategy = \"carrier-pigeon\"\n"},
		{"bad notifier", "strategy = \"push\"\nnotifier = \"fax\"\n"},
		{"zero body length", "strategy = \"push\"\nbody_max_chars = 0\n"},
		{"realtime without feed", "strategy = \"realtime\"\n[backend]\nrest_url = \"https://db.example.com\"\n"},
		{"malformed toml", "strategy = \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() expected error")
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CHATNOTIFY_STRATEGY", "push")
	cfg, err := Load("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Strategy != "push" {
		t.Errorf("Strategy = %q, want push", cfg.Strategy)
	}
}

func TestIconURL(t *testing.T) {
	tests := []struct {
		icon string
		want string
	}{
		{"", ""},
		{"images/icon.png", "https://app.example.com/chat/images/icon.png"},
		{"https://cdn.example.com/i.png", "https://cdn.example.com/i.png"},
		{"/usr/share/icons/chat.png", "/usr/share/icons/chat.png"},
	}
	for _, tt := range tests {
		cfg := &Config{AppURL: "https://app.example.com/chat/", Icon: tt.icon}
		if got := cfg.IconURL(); got != tt.want {
			t.Errorf("IconURL(%q) = %q, want %q", tt.icon, got, tt.want)
		}
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	if err := Save(path, &Config{DefaultProfile: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestDefaultSkipsValidation(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if cfg.Strategy != "poll" || cfg.Backend.RESTURL != "" {
		t.Errorf("Default() = strategy %q rest_url %q, want poll with no backend", cfg.Strategy, cfg.Backend.RESTURL)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() on bare defaults expected backend error")
	}
}
