package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".deeplbot"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("DEEPLBOT_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := resolveHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("DEEPLBOT_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return home, nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Load process env vars from ~/.config/deeplbot/env (and fallbacks) first.
	LoadEnvFileCandidates()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // Use defaults if we can't find config path
	}

	data, err := loadResolvedConfig(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	// If file doesn't exist, continue with defaults

	// Override with environment variables for each group
	groups := []struct {
		prefix string
		spec   any
	}{
		{"DEEPLBOT_TELEGRAM", &cfg.Telegram},
		{"DEEPLBOT_ACCESS", &cfg.Access},
		{"DEEPLBOT_PROFILES", &cfg.Profiles},
		{"DEEPLBOT_ENGINE", &cfg.Engine},
		{"DEEPLBOT_EVENTS", &cfg.Events},
		{"DEEPLBOT_LOG", &cfg.Log},
	}
	for _, g := range groups {
		if err := envconfig.Process(g.prefix, g.spec); err != nil {
			return nil, fmt.Errorf("env %s: %w", g.prefix, err)
		}
	}

	// Fallback for the bot token
	if cfg.Telegram.Token == "" {
		if tok := os.Getenv("TELEGRAM_BOT_TOKEN"); tok != "" {
			cfg.Telegram.Token = tok
		}
	}

	normalize(cfg)
	return cfg, nil
}

// normalize expands ~ and restores defaults for zero values.
func normalize(cfg *Config) {
	def := DefaultConfig()

	expandHome := func(p *string) {
		if strings.HasPrefix(*p, "~") {
			if home, err := resolveHomeDir(); err == nil {
				*p = filepath.Join(home, (*p)[1:])
			}
		}
	}
	if strings.TrimSpace(cfg.Profiles.Dir) == "" {
		cfg.Profiles.Dir = def.Profiles.Dir
	}
	expandHome(&cfg.Profiles.Dir)
	expandHome(&cfg.Profiles.SQLitePath)
	expandHome(&cfg.Log.File)
	expandHome(&cfg.Engine.Bin)

	switch strings.ToLower(strings.TrimSpace(cfg.Profiles.Backend)) {
	case BackendSQLite:
		cfg.Profiles.Backend = BackendSQLite
	default:
		cfg.Profiles.Backend = BackendINI
	}
	if cfg.Profiles.Backend == BackendSQLite && cfg.Profiles.SQLitePath == "" {
		cfg.Profiles.SQLitePath = filepath.Join(cfg.Profiles.Dir, "profiles.db")
	}

	if strings.TrimSpace(cfg.Telegram.APIBase) == "" {
		cfg.Telegram.APIBase = def.Telegram.APIBase
	}
	if cfg.Telegram.PollTimeout <= 0 {
		cfg.Telegram.PollTimeout = def.Telegram.PollTimeout
	}
	if strings.TrimSpace(cfg.Engine.BaseURL) == "" {
		cfg.Engine.BaseURL = def.Engine.BaseURL
	}
	if strings.TrimSpace(cfg.Engine.ResultSelector) == "" {
		cfg.Engine.ResultSelector = def.Engine.ResultSelector
	}
	if cfg.Engine.ResultTimeout <= 0 {
		cfg.Engine.ResultTimeout = def.Engine.ResultTimeout
	}
	if cfg.Engine.ConnectTimeout <= 0 {
		cfg.Engine.ConnectTimeout = def.Engine.ConnectTimeout
	}
	if cfg.Engine.MaxPages < 0 {
		cfg.Engine.MaxPages = 0
	}
	if strings.TrimSpace(cfg.Events.Topic) == "" {
		cfg.Events.Topic = def.Events.Topic
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = def.Log.Level
	}
}

// Validate reports settings the bot cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if c.Access.Owner == 0 {
		errs = append(errs, errors.New("access.owner is required"))
	}
	if c.Engine.ResultTimeout > time.Minute {
		errs = append(errs, fmt.Errorf("engine.resultTimeout %s exceeds 1m", c.Engine.ResultTimeout))
	}
	if c.Events.Enabled && strings.TrimSpace(c.Events.Brokers) == "" {
		errs = append(errs, errors.New("events.brokers is required when events are enabled"))
	}
	return errors.Join(errs...)
}

// EnsureDir ensures a directory exists with proper permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func loadResolvedConfig(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	substituteEnvValues(raw)
	return json.Marshal(raw)
}

func substituteEnvValues(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = substituteEnvValues(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = substituteEnvValues(item)
		}
		return t
	case string:
		return envPattern.ReplaceAllStringFunc(t, func(match string) string {
			parts := envPattern.FindStringSubmatch(match)
			if len(parts) != 2 {
				return match
			}
			if value, ok := os.LookupEnv(parts[1]); ok {
				return value
			}
			return match
		})
	default:
		return v
	}
}
