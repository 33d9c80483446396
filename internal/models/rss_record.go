// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"

	"github.com/Augenblick-tech/yanami/internal/dbinterface"
	"github.com/Augenblick-tech/yanami/internal/domain"
)

// RssRecordStore persists one row per admitted torrent, keyed by
// (anime_id, info_hash) so the same release is never dispatched twice.
type RssRecordStore struct {
	db dbinterface.Querier
}

func NewRssRecordStore(db dbinterface.Querier) *RssRecordStore {
	return &RssRecordStore{db: db}
}

// Create inserts an admitted-record row. If a row with the same
// (anime_id, info_hash) already exists, Create is a no-op: two feed
// polls racing on the same release must not be treated as an error.
func (s *RssRecordStore) Create(ctx context.Context, rec domain.AnimeRssRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO anime_rss_record (anime_id, title, magnet, rule_name, info_hash)
		VALUES (?, ?, ?, ?, ?)
	`, rec.AnimeID, rec.Title, rec.Magnet, rec.RuleName, rec.InfoHash)
	if err != nil && isUniqueConstraintError(err) {
		return nil
	}
	return err
}

// Exists reports whether a record for animeID/infoHash has already been
// admitted.
func (s *RssRecordStore) Exists(ctx context.Context, animeID int64, infoHash string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM anime_rss_record WHERE anime_id = ? AND info_hash = ?
	`, animeID, infoHash).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByAnime returns every record admitted for one series, oldest first.
func (s *RssRecordStore) ListByAnime(ctx context.Context, animeID int64) ([]domain.AnimeRssRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT anime_id, title, magnet, rule_name, info_hash
		FROM anime_rss_record WHERE anime_id = ? ORDER BY id ASC
	`, animeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AnimeRssRecord
	for rows.Next() {
		var rec domain.AnimeRssRecord
		if err := rows.Scan(&rec.AnimeID, &rec.Title, &rec.Magnet, &rec.RuleName, &rec.InfoHash); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
