package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"lsmstore/pkg/dberrors"

	"github.com/goccy/go-yaml"
)

// DefaultFlushThreshold is the memtable budget used when none is configured.
const DefaultFlushThreshold = 56 << 20

// Config is the root of the application configuration.
// yaml and validate tags describe parsing and the checks done by Validate.
type Config struct {
	Logger LoggerConfig `yaml:"logger" validate:"required"`
	DB     `yaml:"db" validate:"required"`
}

type DB struct {
	Dir      string         `yaml:"dir" validate:"required"`
	Memtable MemtableConfig `yaml:"memtable" validate:"required"`
}

type MemtableConfig struct {
	FlushThresholdBytes int64 `yaml:"flush_threshold" validate:"required,min=1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level: "INFO",
			JSON:  false,
		},
		DB: DB{
			Dir: "./data",
			Memtable: MemtableConfig{
				FlushThresholdBytes: DefaultFlushThreshold,
			},
		},
	}
}

// Load reads a YAML config on top of Default. A missing file is not an
// error: the defaults are returned as is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("config file not found, using default config", "path", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := c.Logger.SlogLevel(); err != nil {
		return err
	}
	return c.DB.Validate()
}

func (d DB) Validate() error {
	if d.Dir == "" {
		return fmt.Errorf("%w: db.dir is required", dberrors.ErrInvalidArgument)
	}
	if d.Memtable.FlushThresholdBytes < 1 {
		return fmt.Errorf("%w: db.memtable.flush_threshold must be positive, got %d",
			dberrors.ErrInvalidArgument, d.Memtable.FlushThresholdBytes)
	}
	return nil
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LoggerConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToUpper(l.Level) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: unknown logger.level %q", dberrors.ErrInvalidArgument, l.Level)
}
