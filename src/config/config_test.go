package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("SETTINGS_PATH", "/tmp/custom-settings.json")
	t.Setenv("DEEPL_KEY_FILE", "/tmp/deepl.key")
	t.Setenv("ENABLE_FILE_LOGGING", "true")
	t.Setenv("TRANSLATE_TIMEOUT_SEC", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.SettingsPath != "/tmp/custom-settings.json" {
		t.Errorf("Expected SettingsPath '/tmp/custom-settings.json', got '%s'", cfg.SettingsPath)
	}
	if cfg.DeepLKeyPath != "/tmp/deepl.key" {
		t.Errorf("Expected DeepLKeyPath '/tmp/deepl.key', got '%s'", cfg.DeepLKeyPath)
	}
	if !cfg.EnableFileLogging {
		t.Errorf("Expected EnableFileLogging to be true, got %v", cfg.EnableFileLogging)
	}
	if cfg.TranslateTimeout() != 30*time.Second {
		t.Errorf("Expected 30s timeout, got %v", cfg.TranslateTimeout())
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"SETTINGS_PATH", "DEEPL_KEY_FILE", "DEEPL_API_URL", "TRANSLATE_TIMEOUT_SEC", "CONTROL_PORT_START", "CONTROL_PORT_END", EnvFileEnvVar} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SettingsPath != DefaultSettingsPath || cfg.DeepLKeyPath != DefaultDeepLKeyPath {
		t.Errorf("unexpected paths: %s %s", cfg.SettingsPath, cfg.DeepLKeyPath)
	}
	if cfg.DeepLAPIURL != DefaultDeepLAPIURL {
		t.Errorf("unexpected DeepL URL %s", cfg.DeepLAPIURL)
	}
	if cfg.ControlPortStart != DefaultControlPortStart || cfg.ControlPortEnd != DefaultControlPortEnd {
		t.Errorf("unexpected port range %d-%d", cfg.ControlPortStart, cfg.ControlPortEnd)
	}
}

func TestLoadWithOptionsOverridesEnv(t *testing.T) {
	t.Setenv("SETTINGS_PATH", "/from/env.json")
	cfg, err := LoadWithOptions(LoadOptions{SettingsPathOverride: "/from/flag.json"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SettingsPath != "/from/flag.json" {
		t.Fatalf("flag override ignored: %s", cfg.SettingsPath)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "custom.env")
	if err := os.WriteFile(envFile, []byte("COPY_HOTKEY=Ctrl+Alt+Y\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("COPY_HOTKEY", "")
	os.Unsetenv("COPY_HOTKEY")
	t.Cleanup(func() { os.Unsetenv("COPY_HOTKEY") })

	cfg, err := LoadWithOptions(LoadOptions{EnvPathOverride: envFile})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.EnvPath != envFile {
		t.Errorf("EnvPath = %q", cfg.EnvPath)
	}
	if cfg.CopyHotkey != "Ctrl+Alt+Y" {
		t.Errorf("CopyHotkey = %q", cfg.CopyHotkey)
	}
}

func TestPortRangeClamps(t *testing.T) {
	start, end := portRange(80, 70000)
	if start != 1024 || end != 65535 {
		t.Fatalf("got %d-%d", start, end)
	}
	start, end = portRange(50000, 49000)
	if start != 49000 || end != 50000 {
		t.Fatalf("expected swap, got %d-%d", start, end)
	}
}
