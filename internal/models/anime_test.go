// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Augenblick-tech/yanami/internal/database"
	"github.com/Augenblick-tech/yanami/internal/domain"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAnimeStoreSetCalendarsRespectsLock(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewAnimeStore(db.Conn())

	info := domain.AnimeInfo{ID: 1, Name: "Example Series", Season: 1, Eps: 12}
	require.NoError(t, store.SetCalendars(ctx, []domain.AnimeInfo{info}))

	_, err := db.Conn().ExecContext(ctx, `UPDATE anime_status SET is_lock = 1 WHERE id = ?`, info.ID)
	require.NoError(t, err)

	updated := info
	updated.Eps = 13
	require.NoError(t, store.SetCalendars(ctx, []domain.AnimeInfo{updated}))

	got, err := store.GetCalendar(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.AnimeInfo.Eps, "locked entries must not be overwritten by calendar sync")
}

func TestAnimeStoreSetCalendarIgnoresLock(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewAnimeStore(db.Conn())

	info := domain.AnimeInfo{ID: 1, Name: "Example Series", Season: 1, Eps: 12}
	require.NoError(t, store.SetCalendars(ctx, []domain.AnimeInfo{info}))

	_, err := db.Conn().ExecContext(ctx, `UPDATE anime_status SET is_lock = 1 WHERE id = ?`, info.ID)
	require.NoError(t, err)

	updated := info
	updated.Eps = 13
	require.NoError(t, store.SetCalendar(ctx, updated))

	got, err := store.GetCalendar(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, 13, got.AnimeInfo.Eps, "manual override must ignore the lock flag")
}

func TestAnimeStoreGetCalendarNotFound(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewAnimeStore(db.Conn())

	_, err := store.GetCalendar(ctx, 999)
	assert.ErrorIs(t, err, ErrAnimeNotFound)
}

func TestAnimeStoreGetWatchingExcludesRetired(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewAnimeStore(db.Conn())

	require.NoError(t, store.SetCalendars(ctx, []domain.AnimeInfo{
		{ID: 1, Name: "Still Airing"},
		{ID: 2, Name: "Finished"},
	}))
	require.NoError(t, store.Retire(ctx, 2, 12))

	watching, err := store.GetWatching(ctx)
	require.NoError(t, err)
	require.Len(t, watching, 1)
	assert.Equal(t, int64(1), watching[0].AnimeInfo.ID)

	retired, err := store.GetCalendar(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRetired, retired.Status)
	assert.Equal(t, 12, retired.Progress)
}

func TestAnimeStoreSearchCalendar(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewAnimeStore(db.Conn())

	require.NoError(t, store.SetCalendars(ctx, []domain.AnimeInfo{
		{ID: 1, Name: "Frieren: Beyond Journey's End"},
		{ID: 2, Name: "Spy x Family"},
	}))

	results, err := store.SearchCalendar(ctx, "Frieren")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].AnimeInfo.ID)
}
