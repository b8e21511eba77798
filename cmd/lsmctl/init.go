package main

import (
	"io"
	"log/slog"

	"lsmstore/pkg/config"
)

// initConfig loads the YAML config. A missing file yields config.Default().
// A non-empty dir overrides db.dir.
func initConfig(path, dir string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if dir != "" {
		cfg.Dir = dir
	}
	return cfg, cfg.Validate()
}

// initLogger builds the JSON or text slog.Logger described by cfg and makes
// it the default one.
func initLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.Logger.SlogLevel()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{AddSource: true, Level: level}
	var handler slog.Handler
	if cfg.Logger.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	logger.Debug("logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)
	return logger, nil
}
