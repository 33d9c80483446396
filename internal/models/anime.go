// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Augenblick-tech/yanami/internal/dbinterface"
	"github.com/Augenblick-tech/yanami/internal/domain"
)

var ErrAnimeNotFound = errors.New("anime not found")

// AnimeStore persists the tracked-anime table: one row per series id,
// carrying both the immutable calendar snapshot and the mutable tracking
// state (status, lock, sticky rule, progress).
type AnimeStore struct {
	db dbinterface.Querier
}

func NewAnimeStore(db dbinterface.Querier) *AnimeStore {
	return &AnimeStore{db: db}
}

// SetCalendars upserts a batch of calendar entries, one per series.
// A row whose existing is_lock flag is set is left untouched: locked
// entries have been hand-edited and must not be overwritten by the next
// calendar sync.
func (s *AnimeStore) SetCalendars(ctx context.Context, infos []domain.AnimeInfo) error {
	for _, info := range infos {
		locked, err := s.isLocked(ctx, info.ID)
		if err != nil {
			return err
		}
		if locked {
			continue
		}
		if err := s.upsert(ctx, info); err != nil {
			return fmt.Errorf("upsert calendar entry %d: %w", info.ID, err)
		}
	}
	return nil
}

// SetCalendar upserts a single calendar entry unconditionally, ignoring
// any is_lock flag. Used for manual admin overrides.
func (s *AnimeStore) SetCalendar(ctx context.Context, info domain.AnimeInfo) error {
	return s.upsert(ctx, info)
}

func (s *AnimeStore) isLocked(ctx context.Context, id int64) (bool, error) {
	var locked bool
	err := s.db.QueryRowContext(ctx, `SELECT is_lock FROM anime_status WHERE id = ?`, id).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return locked, nil
}

func (s *AnimeStore) upsert(ctx context.Context, info domain.AnimeInfo) error {
	infoJSON, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal anime info: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO anime_status (id, anime_info, status, is_lock, is_search, rule_name, progress)
		VALUES (?, ?, ?, 0, 0, '', 0)
		ON CONFLICT (id) DO UPDATE SET anime_info = excluded.anime_info
	`, info.ID, string(infoJSON), domain.StatusWatching)
	return err
}

// GetCalendar returns the tracking record for one series.
func (s *AnimeStore) GetCalendar(ctx context.Context, id int64) (*domain.AnimeStatus, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT anime_info, status, is_lock, is_search, rule_name, progress
		FROM anime_status WHERE id = ?
	`, id)
	return scanAnimeStatus(row)
}

// GetCalendars returns every tracked series regardless of status.
func (s *AnimeStore) GetCalendars(ctx context.Context) ([]domain.AnimeStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT anime_info, status, is_lock, is_search, rule_name, progress
		FROM anime_status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAnimeStatuses(rows)
}

// GetWatching returns every series still being actively tracked.
func (s *AnimeStore) GetWatching(ctx context.Context) ([]domain.AnimeStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT anime_info, status, is_lock, is_search, rule_name, progress
		FROM anime_status WHERE status = ?
	`, domain.StatusWatching)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAnimeStatuses(rows)
}

// SearchCalendar finds tracked series whose stored name contains query.
func (s *AnimeStore) SearchCalendar(ctx context.Context, query string) ([]domain.AnimeStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT anime_info, status, is_lock, is_search, rule_name, progress
		FROM anime_status
		WHERE json_extract(anime_info, '$.name') LIKE '%' || ? || '%'
	`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAnimeStatuses(rows)
}

// SetRule sets the sticky rule name an admitted series locks onto.
func (s *AnimeStore) SetRule(ctx context.Context, id int64, ruleName string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE anime_status SET rule_name = ? WHERE id = ?`, ruleName, id)
	return err
}

// SetProgress updates the highest admitted episode count for a series.
func (s *AnimeStore) SetProgress(ctx context.Context, id int64, progress int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE anime_status SET progress = ? WHERE id = ?`, progress, id)
	return err
}

// Retire marks a series as no longer actively tracked and persists its
// final admitted-episode count.
func (s *AnimeStore) Retire(ctx context.Context, id int64, progress int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE anime_status SET status = ?, progress = ? WHERE id = ?`, domain.StatusRetired, progress, id)
	return err
}

func scanAnimeStatus(row *sql.Row) (*domain.AnimeStatus, error) {
	var (
		infoJSON string
		status   domain.Status
		isLock   bool
		isSearch bool
		ruleName string
		progress int
	)
	if err := row.Scan(&infoJSON, &status, &isLock, &isSearch, &ruleName, &progress); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAnimeNotFound
		}
		return nil, err
	}

	var info domain.AnimeInfo
	if err := json.Unmarshal([]byte(infoJSON), &info); err != nil {
		return nil, fmt.Errorf("unmarshal anime info: %w", err)
	}

	return &domain.AnimeStatus{
		AnimeInfo: info,
		Status:    status,
		IsLock:    isLock,
		IsSearch:  isSearch,
		RuleName:  ruleName,
		Progress:  progress,
	}, nil
}

func scanAnimeStatuses(rows *sql.Rows) ([]domain.AnimeStatus, error) {
	var out []domain.AnimeStatus
	for rows.Next() {
		var (
			infoJSON string
			status   domain.Status
			isLock   bool
			isSearch bool
			ruleName string
			progress int
		)
		if err := rows.Scan(&infoJSON, &status, &isLock, &isSearch, &ruleName, &progress); err != nil {
			return nil, err
		}
		var info domain.AnimeInfo
		if err := json.Unmarshal([]byte(infoJSON), &info); err != nil {
			return nil, fmt.Errorf("unmarshal anime info: %w", err)
		}
		out = append(out, domain.AnimeStatus{
			AnimeInfo: info,
			Status:    status,
			IsLock:    isLock,
			IsSearch:  isSearch,
			RuleName:  ruleName,
			Progress:  progress,
		})
	}
	return out, rows.Err()
}
