package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Hardcoded fallbacks. Missing settings warn at startup but never block it.
const (
	defaultBaseURL  = "http://localhost:3000"
	defaultUsername = "_system"
	defaultPassword = "trackle"
	defaultLogLevel = "info"
)

// envSettings is the environment layer. Empty values fall through to the
// config file and then to the hardcoded defaults.
type envSettings struct {
	BaseURL    string        `env:"TRACKLE_BASE_URL"`
	Username   string        `env:"TRACKLE_USERNAME"`
	Password   string        `env:"TRACKLE_PASSWORD"`
	LogLevel   string        `env:"TRACKLE_LOG_LEVEL"`
	Timeout    time.Duration `env:"TRACKLE_TIMEOUT, default=30s"`
	ConfigPath string        `env:"TRACKLE_CONFIG"`
}

type fileSettings struct {
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	LogLevel string `yaml:"log_level"`
}

// appConfig is the effective configuration, immutable after load.
type appConfig struct {
	BaseURL  string
	Username string
	Password string
	LogLevel string
	Timeout  time.Duration
}

var validate = validator.New()

// loadConfig layers environment over an optional YAML config file over the
// defaults. The returned warnings are logged once the logger exists; none of
// them is fatal.
func loadConfig(ctx context.Context, flagPath string) (appConfig, []string, error) {
	var env envSettings
	if err := envconfig.Process(ctx, &env); err != nil {
		return appConfig{}, nil, fmt.Errorf("read environment: %w", err)
	}

	path := strings.TrimSpace(flagPath)
	if path == "" {
		path = strings.TrimSpace(env.ConfigPath)
	}
	explicit := path != ""
	if path == "" {
		if defaultPath, err := defaultConfigPath(); err == nil {
			path = defaultPath
		}
	}

	var file fileSettings
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return appConfig{}, nil, err
		}
		loaded, err := loadConfigFile(filepath.Clean(expanded))
		switch {
		case err == nil:
			file = *loaded
		case explicit || !errors.Is(err, os.ErrNotExist):
			return appConfig{}, nil, err
		}
	}

	cfg := appConfig{
		BaseURL:  pickString(env.BaseURL, file.BaseURL, defaultBaseURL),
		Username: pickString(env.Username, file.Username, defaultUsername),
		Password: pickString(env.Password, file.Password, defaultPassword),
		LogLevel: pickString(env.LogLevel, file.LogLevel, defaultLogLevel),
		Timeout:  env.Timeout,
	}

	var warnings []string
	if strings.TrimSpace(env.BaseURL) == "" && strings.TrimSpace(file.BaseURL) == "" {
		warnings = append(warnings, fmt.Sprintf("TRACKLE_BASE_URL is not set, using default %s", defaultBaseURL))
	}
	if strings.TrimSpace(env.Username) == "" && strings.TrimSpace(file.Username) == "" {
		warnings = append(warnings, fmt.Sprintf("TRACKLE_USERNAME is not set, using default %s", defaultUsername))
	}
	if strings.TrimSpace(env.Password) == "" && strings.TrimSpace(file.Password) == "" {
		warnings = append(warnings, "TRACKLE_PASSWORD is not set, using the built-in default")
	}
	if err := validate.Var(cfg.BaseURL, "required,url"); err != nil {
		warnings = append(warnings, fmt.Sprintf("configured base URL %q does not look like a URL", cfg.BaseURL))
	}

	return cfg, warnings, nil
}

func pickString(envValue, cfgValue, defaultValue string) string {
	if strings.TrimSpace(envValue) != "" {
		return envValue
	}
	if strings.TrimSpace(cfgValue) != "" {
		return cfgValue
	}
	return defaultValue
}

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "trackle", "config.yaml"), nil
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

func loadConfigFile(path string) (*fileSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return &fileSettings{}, nil
	}

	var cfg fileSettings
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return &cfg, nil
}
