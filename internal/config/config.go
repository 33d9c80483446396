// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: MIT

// Package config loads yanami's runtime configuration from (in order of
// precedence) CLI flags, environment variables, and a TOML config file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Augenblick-tech/yanami/internal/domain"
)

const envPrefix = "YANAMI"

var validModes = map[string]bool{
	"debug": true,
	"warn":  true,
	"info":  true,
}

// Config wraps the resolved domain.Config; New validates the required
// fields before returning it.
type Config struct {
	domain.Config
}

// New resolves configuration from flags, the environment, and an optional
// TOML file at configPath. Flags passed in fs take precedence over
// environment variables, which take precedence over the file, which takes
// precedence over defaults. fs may be nil, in which case only the
// environment and file are consulted.
func New(configPath string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "info")

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configPath, err)
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	// Flags and env vars use db-path/tmdb-token; the TOML file may also
	// spell them dbPath/tmdbToken, as domain.Config's tags do.
	dbPath := v.GetString("db-path")
	if dbPath == "" {
		dbPath = v.GetString("dbPath")
	}
	tmdbToken := v.GetString("tmdb-token")
	if tmdbToken == "" {
		tmdbToken = v.GetString("tmdbToken")
	}

	cfg := &Config{
		Config: domain.Config{
			Addr:      v.GetString("addr"),
			Mode:      v.GetString("mode"),
			Key:       v.GetString("key"),
			DBPath:    dbPath,
			TMDBToken: tmdbToken,
		},
	}

	cfg.Mode = normalizeMode(cfg.Mode)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func normalizeMode(mode string) string {
	if validModes[mode] {
		return mode
	}
	return "info"
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.Key == "" {
		return fmt.Errorf("key is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db-path is required")
	}
	if c.TMDBToken == "" {
		return fmt.Errorf("tmdb-token is required")
	}
	return nil
}
