package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFileParsesAndRespectsExistingValues(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "env")
	content := `
# comment
export DEEPLBOT_T_FOO=bar
DEEPLBOT_T_QUOTED="hello world"
DEEPLBOT_T_SINGLE='x y'
INVALID_LINE
=novalue
`
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("DEEPLBOT_T_FOO", "existing")
	t.Setenv("DEEPLBOT_T_QUOTED", "")
	t.Setenv("DEEPLBOT_T_SINGLE", "")
	os.Unsetenv("DEEPLBOT_T_QUOTED")
	os.Unsetenv("DEEPLBOT_T_SINGLE")

	n, err := loadEnvFile(envPath)
	if err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 keys set, got %d", n)
	}
	if got := os.Getenv("DEEPLBOT_T_FOO"); got != "existing" {
		t.Fatalf("expected existing value preserved, got %q", got)
	}
	if got := os.Getenv("DEEPLBOT_T_QUOTED"); got != "hello world" {
		t.Fatalf("expected quoted value, got %q", got)
	}
	if got := os.Getenv("DEEPLBOT_T_SINGLE"); got != "x y" {
		t.Fatalf("expected single-quoted value, got %q", got)
	}
}

func TestLoadEnvFileCandidatesFromExplicitPath(t *testing.T) {
	tmp := t.TempDir()
	envPath := filepath.Join(tmp, "deeplbot.env")
	if err := os.WriteFile(envPath, []byte("DEEPLBOT_T_EXPLICIT=42\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("DEEPLBOT_HOME", filepath.Join(tmp, "home"))
	t.Setenv("DEEPLBOT_ENV_FILE", envPath)
	t.Setenv("DEEPLBOT_T_EXPLICIT", "")
	os.Unsetenv("DEEPLBOT_T_EXPLICIT")

	loaded := LoadEnvFileCandidates()
	if len(loaded) != 1 || loaded[0] != envPath {
		t.Fatalf("expected only explicit file loaded, got %v", loaded)
	}
	if got := os.Getenv("DEEPLBOT_T_EXPLICIT"); got != "42" {
		t.Fatalf("expected DEEPLBOT_T_EXPLICIT loaded, got %q", got)
	}
}

func TestParseEnvLine(t *testing.T) {
	cases := []struct {
		line, key, val string
		ok             bool
	}{
		{"A=1", "A", "1", true},
		{"  export B = two ", "B", "two", true},
		{`C="x"`, "C", "x", true},
		{`D="unterminated`, "D", `"unterminated`, true},
		{"# E=1", "", "", false},
		{"F", "", "", false},
	}
	for _, tc := range cases {
		k, v, ok := parseEnvLine(tc.line)
		if k != tc.key || v != tc.val || ok != tc.ok {
			t.Fatalf("parseEnvLine(%q) = %q,%q,%v", tc.line, k, v, ok)
		}
	}
}
