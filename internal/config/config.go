// Package config provides configuration types and loading for deeplbot.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Telegram, Access, Profiles, Engine, Events, Log.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Access   AccessConfig   `json:"access"`
	Profiles ProfilesConfig `json:"profiles"`
	Engine   EngineConfig   `json:"engine"`
	Events   EventsConfig   `json:"events"`
	Log      LogConfig      `json:"log"`
}

// ---------------------------------------------------------------------------
// Telegram – messaging gateway
// ---------------------------------------------------------------------------

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Token       string        `json:"token" envconfig:"TOKEN"`
	APIBase     string        `json:"apiBase,omitempty" envconfig:"API_BASE"`
	PollTimeout time.Duration `json:"pollTimeout" envconfig:"POLL_TIMEOUT"`
	SkipPending bool          `json:"skipPending" envconfig:"SKIP_PENDING"`
	Proxy       string        `json:"proxy,omitempty" envconfig:"PROXY"`
}

// ---------------------------------------------------------------------------
// Access – owner and testers
// ---------------------------------------------------------------------------

// AccessConfig names the privileged identities.
type AccessConfig struct {
	Owner   int64   `json:"owner" envconfig:"OWNER"`
	Testers []int64 `json:"testers" envconfig:"TESTERS"`
}

// ---------------------------------------------------------------------------
// Profiles – per-identity persistent settings
// ---------------------------------------------------------------------------

// Profile storage backends.
const (
	BackendINI    = "ini"
	BackendSQLite = "sqlite"
)

// ProfilesConfig selects and locates the profile store.
type ProfilesConfig struct {
	Dir                  string `json:"dir" envconfig:"DIR"`
	Backend              string `json:"backend" envconfig:"BACKEND"` // "ini" (default) or "sqlite"
	SQLitePath           string `json:"sqlitePath,omitempty" envconfig:"SQLITE_PATH"`
	PreserveOwnerToggles bool   `json:"preserveOwnerToggles" envconfig:"PRESERVE_OWNER_TOGGLES"`
}

// ---------------------------------------------------------------------------
// Engine – headless browser driving the web translator
// ---------------------------------------------------------------------------

// EngineConfig configures the browser session and the translator page contract.
type EngineConfig struct {
	BaseURL        string        `json:"baseUrl" envconfig:"BASE_URL"`
	ResultSelector string        `json:"resultSelector" envconfig:"RESULT_SELECTOR"`
	ResultTimeout  time.Duration `json:"resultTimeout" envconfig:"RESULT_TIMEOUT"`
	ConnectTimeout time.Duration `json:"connectTimeout" envconfig:"CONNECT_TIMEOUT"`
	DebuggerURL    string        `json:"debuggerUrl,omitempty" envconfig:"DEBUGGER_URL"`
	Bin            string        `json:"bin,omitempty" envconfig:"BIN"`
	Flags          []string      `json:"flags,omitempty" envconfig:"FLAGS"`
	Headless       bool          `json:"headless" envconfig:"HEADLESS"`
	Restart        bool          `json:"restart" envconfig:"RESTART"`
	MaxPages       int           `json:"maxPages" envconfig:"MAX_PAGES"` // 0 = unlimited
}

// ---------------------------------------------------------------------------
// Events – optional translation event stream
// ---------------------------------------------------------------------------

// EventsConfig configures the Kafka translation event publisher.
type EventsConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	Brokers string `json:"brokers" envconfig:"BROKERS"`
	Topic   string `json:"topic" envconfig:"TOPIC"`
}

// ---------------------------------------------------------------------------
// Log – structured logging
// ---------------------------------------------------------------------------

// LogConfig configures slog output and optional file rotation.
type LogConfig struct {
	Level      string `json:"level" envconfig:"LEVEL"`
	File       string `json:"file,omitempty" envconfig:"FILE"`
	MaxSizeMB  int    `json:"maxSizeMb" envconfig:"MAX_SIZE_MB"`
	MaxBackups int    `json:"maxBackups" envconfig:"MAX_BACKUPS"`
	MaxAgeDays int    `json:"maxAgeDays" envconfig:"MAX_AGE_DAYS"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			APIBase:     "https://api.telegram.org",
			PollTimeout: 30 * time.Second,
			SkipPending: true,
		},
		Profiles: ProfilesConfig{
			Dir:     "~/.deeplbot/profiles",
			Backend: BackendINI,
		},
		Engine: EngineConfig{
			BaseURL:        "https://www.deepl.com/translator",
			ResultSelector: `[dl-test="translator-target-input"]`,
			ResultTimeout:  10 * time.Second,
			ConnectTimeout: 15 * time.Second,
			Headless:       true,
			Restart:        true,
		},
		Events: EventsConfig{
			Brokers: "localhost:9092",
			Topic:   "deeplbot.translations",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}
