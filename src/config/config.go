package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvFileEnvVar = "SCREEN_TRANSLATE_ENV"

	DefaultSettingsPath        = "settings.json"
	DefaultDeepLKeyPath        = "deepl.txt"
	DefaultLibreConfigPath     = "libretranslate.txt"
	DefaultDeepLAPIURL         = "https://api-free.deepl.com/v2/translate"
	DefaultLogFile             = "screen_translate_debug.log"
	DefaultCopyHotkey          = "Ctrl+Shift+C"
	DefaultTranslateTimeoutSec = 15
	DefaultControlPortStart    = 49560
	DefaultControlPortEnd      = 49570
)

// LoadOptions carries command-line overrides; non-empty fields win over the
// environment and the .env file.
type LoadOptions struct {
	EnvPathOverride      string
	SettingsPathOverride string
	DeepLKeyPathOverride string
}

// Config is the process configuration. User-facing translation settings live
// in the settings store instead.
type Config struct {
	EnvPath             string
	SettingsPath        string
	DeepLKeyPath        string
	DeepLAPIURL         string
	LibreConfigPath     string
	EnableFileLogging   bool
	LogFile             string
	LogLevel            string
	CopyHotkey          string
	TranslateTimeoutSec int
	ControlPortStart    int
	ControlPortEnd      int
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order:
	// 1) explicit --env path
	// 2) .env in the executable directory
	// 3) the file named by SCREEN_TRANSLATE_ENV
	envPath := resolveEnvPath(opts)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	start, end := portRange(
		getEnvInt("CONTROL_PORT_START", DefaultControlPortStart),
		getEnvInt("CONTROL_PORT_END", DefaultControlPortEnd),
	)

	cfg := &Config{
		EnvPath:             envPath,
		SettingsPath:        firstNonEmpty(opts.SettingsPathOverride, os.Getenv("SETTINGS_PATH"), DefaultSettingsPath),
		DeepLKeyPath:        firstNonEmpty(opts.DeepLKeyPathOverride, os.Getenv("DEEPL_KEY_FILE"), DefaultDeepLKeyPath),
		DeepLAPIURL:         getEnvWithDefault("DEEPL_API_URL", DefaultDeepLAPIURL),
		LibreConfigPath:     getEnvWithDefault("LIBRE_CONFIG_FILE", DefaultLibreConfigPath),
		EnableFileLogging:   strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		LogFile:             getEnvWithDefault("LOG_FILE", DefaultLogFile),
		LogLevel:            getEnvWithDefault("LOG_LEVEL", "info"),
		CopyHotkey:          getEnvWithDefault("COPY_HOTKEY", DefaultCopyHotkey),
		TranslateTimeoutSec: getEnvInt("TRANSLATE_TIMEOUT_SEC", DefaultTranslateTimeoutSec),
		ControlPortStart:    start,
		ControlPortEnd:      end,
	}
	if cfg.TranslateTimeoutSec <= 0 {
		cfg.TranslateTimeoutSec = DefaultTranslateTimeoutSec
	}

	return cfg, nil
}

// TranslateTimeout is the HTTP timeout applied to translation requests.
func (c *Config) TranslateTimeout() time.Duration {
	return time.Duration(c.TranslateTimeoutSec) * time.Second
}

func resolveEnvPath(opts LoadOptions) string {
	if p := strings.TrimSpace(opts.EnvPathOverride); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

// portRange clamps the control port range to [1024, 65535] and orders it.
func portRange(start, end int) (int, int) {
	if start < 1024 {
		start = 1024
	}
	if end > 65535 {
		end = 65535
	}
	if end < start {
		start, end = end, start
	}
	return start, end
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
