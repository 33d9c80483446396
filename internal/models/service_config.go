// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Augenblick-tech/yanami/internal/dbinterface"
	"github.com/Augenblick-tech/yanami/internal/domain"
)

const (
	configKeyDownloadPath  = "download_path"
	configKeyQbitURL       = "qbit_url"
	configKeyQbitUsername  = "qbit_username"
	configKeyQbitPassword  = "qbit_password"
)

// ConfigStore persists the handful of mutable runtime settings that are
// not CLI/TOML configuration: the torrent client session and the download
// path each admitted torrent is dispatched under.
type ConfigStore struct {
	db dbinterface.Querier
}

func NewConfigStore(db dbinterface.Querier) *ConfigStore {
	return &ConfigStore{db: db}
}

func (s *ConfigStore) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM service_config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *ConfigStore) set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetDownloadPath returns the configured base download path.
func (s *ConfigStore) GetDownloadPath(ctx context.Context) (string, error) {
	return s.get(ctx, configKeyDownloadPath)
}

// SetDownloadPath updates the base download path.
func (s *ConfigStore) SetDownloadPath(ctx context.Context, path string) error {
	return s.set(ctx, configKeyDownloadPath, path)
}

// GetQbitConfig returns the stored torrent-client session credentials.
func (s *ConfigStore) GetQbitConfig(ctx context.Context) (domain.QbitConfig, error) {
	url, err := s.get(ctx, configKeyQbitURL)
	if err != nil {
		return domain.QbitConfig{}, err
	}
	username, err := s.get(ctx, configKeyQbitUsername)
	if err != nil {
		return domain.QbitConfig{}, err
	}
	password, err := s.get(ctx, configKeyQbitPassword)
	if err != nil {
		return domain.QbitConfig{}, err
	}
	return domain.QbitConfig{URL: url, Username: username, Password: password}, nil
}

// SetQbitConfig persists the torrent-client session credentials.
func (s *ConfigStore) SetQbitConfig(ctx context.Context, cfg domain.QbitConfig) error {
	if err := s.set(ctx, configKeyQbitURL, cfg.URL); err != nil {
		return err
	}
	if err := s.set(ctx, configKeyQbitUsername, cfg.Username); err != nil {
		return err
	}
	return s.set(ctx, configKeyQbitPassword, cfg.Password)
}
