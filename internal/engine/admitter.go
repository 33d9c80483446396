// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package engine

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/moistari/rls"
	"github.com/rs/zerolog/log"

	"github.com/Augenblick-tech/yanami/internal/domain"
)

// AnimeProgressStore is the subset of the tracked-anime store an Admitter
// needs to record the outcome of admitting a release.
type AnimeProgressStore interface {
	SetProgress(ctx context.Context, id int64, progress int) error
	Retire(ctx context.Context, id int64, progress int) error
}

// RssRecordAccessor is the subset of the admitted-record store an Admitter
// needs to deduplicate releases and recompute progress.
type RssRecordAccessor interface {
	Exists(ctx context.Context, animeID int64, infoHash string) (bool, error)
	Create(ctx context.Context, rec domain.AnimeRssRecord) error
	ListByAnime(ctx context.Context, animeID int64) ([]domain.AnimeRssRecord, error)
}

// TorrentDispatcher sends an admitted release to the download client and
// confirms it took.
type TorrentDispatcher interface {
	Reconfigure(ctx context.Context, cfg domain.QbitConfig) error
	Add(ctx context.Context, url, savePath, expectedHash string) error
}

// DownloadConfig supplies the torrent-client session and base download
// path, both of which are stored at runtime rather than loaded from the
// static service configuration.
type DownloadConfig interface {
	GetDownloadPath(ctx context.Context) (string, error)
	GetQbitConfig(ctx context.Context) (domain.QbitConfig, error)
}

// Admitter decides whether a candidate release is new, dispatches it to
// the download client, and recomputes a series' progress from everything
// admitted so far.
type Admitter struct {
	anime      AnimeProgressStore
	records    RssRecordAccessor
	torrent    TorrentDispatcher
	config     DownloadConfig
	retirement *Bus[domain.AnimeTask]
	httpClient *http.Client
}

// NewAdmitter creates an Admitter. httpClient may be nil, in which case
// http.DefaultClient is used for info-hash derivation over HTTP.
func NewAdmitter(anime AnimeProgressStore, records RssRecordAccessor, torrent TorrentDispatcher, config DownloadConfig, retirement *Bus[domain.AnimeTask], httpClient *http.Client) *Admitter {
	return &Admitter{
		anime:      anime,
		records:    records,
		torrent:    torrent,
		config:     config,
		retirement: retirement,
		httpClient: httpClient,
	}
}

// Admit dispatches item for status's series if it hasn't been admitted
// before, then recomputes progress from the full admitted-record set. A
// series whose progress now covers its episode count is retired and a
// cancellation is published on the retirement bus so its listener stops.
func (a *Admitter) Admit(ctx context.Context, status domain.AnimeStatus, item domain.RssItem, ruleName string) error {
	info := status.AnimeInfo

	hash, err := InfoHash(ctx, a.httpClient, item.Magnet)
	if err != nil {
		return fmt.Errorf("derive info hash: %w", err)
	}

	exists, err := a.records.Exists(ctx, info.ID, hash)
	if err != nil {
		return fmt.Errorf("check existing record: %w", err)
	}

	if !exists {
		if err := a.dispatch(ctx, item.Magnet, hash, info); err != nil {
			return fmt.Errorf("dispatch torrent: %w", err)
		}
		logAdmittedRelease(info.ID, item.Title, ruleName)
		rec := domain.AnimeRssRecord{
			AnimeID:  info.ID,
			Title:    item.Title,
			Magnet:   item.Magnet,
			RuleName: ruleName,
			InfoHash: hash,
		}
		if err := a.records.Create(ctx, rec); err != nil {
			return fmt.Errorf("record admitted release: %w", err)
		}
	}

	records, err := a.records.ListByAnime(ctx, info.ID)
	if err != nil {
		return fmt.Errorf("list admitted releases: %w", err)
	}

	titles := make([]string, len(records))
	for i, rec := range records {
		titles[i] = rec.Title
	}
	progress := len(SeasonEpisodes(titles))

	switch {
	case info.Eps > 0 && progress >= info.Eps:
		if err := a.anime.Retire(ctx, info.ID, progress); err != nil {
			return fmt.Errorf("retire series: %w", err)
		}
		a.retirement.Publish(domain.AnimeTask{Info: info, Cancel: true})
	case progress > status.Progress:
		if err := a.anime.SetProgress(ctx, info.ID, progress); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
	}

	return nil
}

// logAdmittedRelease parses title's release tags for structured logging
// only; group/resolution/episode never feed the dispatch or progress
// decision, which stay keyed on the rule match and the title itself.
func logAdmittedRelease(animeID int64, title, ruleName string) {
	release := rls.ParseString(title)
	log.Info().
		Int64("anime_id", animeID).
		Str("rule", ruleName).
		Str("group", release.Group).
		Str("resolution", release.Resolution).
		Int("episode", release.Episode).
		Msg("admitted release")
}

func (a *Admitter) dispatch(ctx context.Context, url, expectedHash string, info domain.AnimeInfo) error {
	cfg, err := a.config.GetQbitConfig(ctx)
	if err != nil {
		return fmt.Errorf("load torrent client config: %w", err)
	}
	if err := a.torrent.Reconfigure(ctx, cfg); err != nil {
		return fmt.Errorf("configure torrent client: %w", err)
	}

	base, err := a.config.GetDownloadPath(ctx)
	if err != nil {
		return fmt.Errorf("load download path: %w", err)
	}

	savePath := filepath.Join(base, info.SearchName, fmt.Sprintf("S%02d", info.Season))
	return a.torrent.Add(ctx, url, savePath, expectedHash)
}
