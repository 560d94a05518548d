package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// EnvFileCandidates lists the env files read at startup, most specific first.
func EnvFileCandidates() []string {
	var out []string
	if explicit := strings.TrimSpace(os.Getenv("DEEPLBOT_ENV_FILE")); explicit != "" {
		out = append(out, explicit)
	}
	if home, err := resolveHomeDir(); err == nil {
		out = append(out,
			filepath.Join(home, ".config", "deeplbot", "env"),
			filepath.Join(home, ConfigDir, "env"),
		)
	}
	return out
}

// LoadEnvFileCandidates loads KEY=VALUE pairs from the known env files and
// returns the files that were read. Variables already set are kept.
func LoadEnvFileCandidates() []string {
	var loaded []string
	seen := map[string]bool{}
	for _, p := range EnvFileCandidates() {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		if _, err := loadEnvFile(p); err == nil {
			loaded = append(loaded, p)
		}
	}
	return loaded
}

// loadEnvFile applies one env file and reports how many keys it set.
func loadEnvFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	set := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, val, ok := parseEnvLine(sc.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, val); err == nil {
			set++
		}
	}
	return set, sc.Err()
}

func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	key, val, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return "", "", false
	}
	return key, unquote(strings.TrimSpace(val)), true
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}
