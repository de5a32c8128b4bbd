package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/p-arndt/arenacall/protocol"
)

type Config struct {
	SandboxDir    string `yaml:"sandbox_dir" toml:"sandbox_dir"`
	LanguageName  string `yaml:"language_name" toml:"language_name"`
	HandshakeLock string `yaml:"handshake_lock" toml:"handshake_lock"`
	DBPath        string `yaml:"db_path" toml:"db_path"`
	LogLevel      string `yaml:"log_level" toml:"log_level" validate:"oneof=debug info warn error"`
	HistoryLimit  int    `yaml:"history_limit" toml:"history_limit" validate:"gte=1,lte=10000"`
}

var validate = validator.New()

// Load reads defaults, then the optional YAML or TOML file at path (chosen
// by extension), then environment overrides, and validates the result.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{
		LogLevel:     "info",
		HistoryLimit: 20,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := decode(path, data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(protocol.EnvSandboxDir); v != "" {
		cfg.SandboxDir = v
	}
	if v := os.Getenv("ARENACALL_LANGUAGE"); v != "" {
		cfg.LanguageName = v
	}
	if v := os.Getenv("ARENACALL_HANDSHAKE_LOCK"); v != "" {
		cfg.HandshakeLock = v
	}
	if v := os.Getenv("ARENACALL_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ARENACALL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("ARENACALL_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistoryLimit = n
		}
	}
}

// Level maps LogLevel to a slog level. Load has already validated it.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
