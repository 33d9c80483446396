// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"

	"github.com/Augenblick-tech/yanami/internal/dbinterface"
	"github.com/Augenblick-tech/yanami/internal/domain"
)

// RssFeedStore persists the configured torrent-feed sources polled every
// tick.
type RssFeedStore struct {
	db dbinterface.Querier
}

func NewRssFeedStore(db dbinterface.Querier) *RssFeedStore {
	return &RssFeedStore{db: db}
}

// List returns every configured feed.
func (s *RssFeedStore) List(ctx context.Context) ([]domain.RssFeed, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, url, search_url FROM rss_feeds`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RssFeed
	for rows.Next() {
		var f domain.RssFeed
		if err := rows.Scan(&f.ID, &f.Title, &f.URL, &f.SearchURL); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Set upserts a feed definition.
func (s *RssFeedStore) Set(ctx context.Context, feed domain.RssFeed) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rss_feeds (id, title, url, search_url) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title, url = excluded.url, search_url = excluded.search_url
	`, feed.ID, feed.Title, feed.URL, feed.SearchURL)
	return err
}

// Delete removes a feed by id.
func (s *RssFeedStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rss_feeds WHERE id = ?`, id)
	return err
}
