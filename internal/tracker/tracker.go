// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package tracker builds the enriched anime calendar: it fetches the raw
// broadcast schedule, matches each entry against a metadata provider, and
// fills in season number, original title and alternative titles.
package tracker

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Augenblick-tech/yanami/internal/domain"
	"github.com/Augenblick-tech/yanami/internal/metadataclient"
	"github.com/Augenblick-tech/yanami/internal/scheduleclient"
)

var (
	seasonSuffixRe   = regexp.MustCompile(`第[0-9]+期`)
	trailingSeasonRe = regexp.MustCompile(`(?i)\d+.*?season.*?$`)
	seasonWordRe     = regexp.MustCompile(`(?i)season.*?$`)
	trailingNumberRe = regexp.MustCompile(`\d+$`)
)

// ScheduleClient fetches the raw broadcast calendar.
type ScheduleClient interface {
	GetCalendar(ctx context.Context) ([]scheduleclient.CalendarEntry, error)
}

// MetadataClient resolves a calendar entry against a metadata provider.
type MetadataClient interface {
	SearchTV(ctx context.Context, name string) ([]metadataclient.SearchResult, error)
	GetSeriesDetails(ctx context.Context, id int64) (*metadataclient.SeriesDetails, error)
	GetAlternativeTitles(ctx context.Context, id int64) ([]metadataclient.AlternativeTitle, error)
}

// Tracker builds the enriched calendar from a schedule provider and a
// metadata provider.
type Tracker struct {
	schedule ScheduleClient
	metadata MetadataClient
}

// New creates a Tracker.
func New(schedule ScheduleClient, metadata MetadataClient) *Tracker {
	return &Tracker{schedule: schedule, metadata: metadata}
}

// GetCalendar fetches the current broadcast calendar and enriches every
// entry it can confidently match against the metadata provider. Entries
// that cannot be matched, are not Japanese-language originals, or carry no
// usable season are silently skipped — a partial calendar beats a fatal
// sync.
func (t *Tracker) GetCalendar(ctx context.Context) ([]domain.AnimeInfo, error) {
	entries, err := t.schedule.GetCalendar(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch schedule: %w", err)
	}

	out := make([]domain.AnimeInfo, 0, len(entries))
	for _, entry := range entries {
		info, ok, err := t.enrich(ctx, entry)
		if err != nil {
			log.Warn().Err(err).Str("name", entry.Name).Msg("enrich calendar entry failed")
			continue
		}
		if !ok {
			continue
		}
		out = append(out, info)
	}

	return out, nil
}

func (t *Tracker) enrich(ctx context.Context, entry scheduleclient.CalendarEntry) (domain.AnimeInfo, bool, error) {
	searchName := stripSeasonSuffixes(entry.Name)

	results, err := t.metadata.SearchTV(ctx, searchName)
	if err != nil {
		return domain.AnimeInfo{}, false, fmt.Errorf("search %q: %w", searchName, err)
	}

	if len(results) == 0 {
		searchName = strings.TrimSpace(trailingNumberRe.ReplaceAllString(searchName, ""))
		results, err = t.metadata.SearchTV(ctx, searchName)
		if err != nil {
			return domain.AnimeInfo{}, false, fmt.Errorf("retry search %q: %w", searchName, err)
		}
		if len(results) == 0 {
			return domain.AnimeInfo{}, false, nil
		}
	}

	match := matchByAirDate(results, entry.AirDate)
	if match.OriginalLanguage != "ja" {
		return domain.AnimeInfo{}, false, nil
	}

	details, err := t.metadata.GetSeriesDetails(ctx, match.ID)
	if err != nil {
		return domain.AnimeInfo{}, false, fmt.Errorf("series details %d: %w", match.ID, err)
	}
	if len(details.Seasons) == 0 {
		return domain.AnimeInfo{}, false, nil
	}
	season := details.Seasons[len(details.Seasons)-1]
	if season.SeasonNumber <= 0 {
		return domain.AnimeInfo{}, false, nil
	}
	if entry.Eps <= 0 && season.EpisodeCount <= 0 {
		return domain.AnimeInfo{}, false, nil
	}

	eps := entry.Eps
	if eps <= 0 {
		eps = season.EpisodeCount
	}

	altTitles, err := t.metadata.GetAlternativeTitles(ctx, match.ID)
	if err != nil {
		return domain.AnimeInfo{}, false, fmt.Errorf("alternative titles %d: %w", match.ID, err)
	}

	names := make(map[string]struct{}, len(altTitles)+2)
	for _, alt := range altTitles {
		names[alt.Title] = struct{}{}
	}
	names[entry.Name] = struct{}{}
	names[details.Name] = struct{}{}
	names[match.Name] = struct{}{}

	alternatives := make([]string, 0, len(names))
	for name := range names {
		alternatives = append(alternatives, name)
	}

	return domain.AnimeInfo{
		ID:                entry.SourceID,
		Name:              entry.Name,
		NameCN:            details.Name,
		NameTW:            match.Name,
		AlternativeTitles: alternatives,
		SearchName:        searchName,
		Weekday:           entry.Weekday,
		Eps:               eps,
		Season:            season.SeasonNumber,
		AirDate:           entry.AirDate,
	}, true, nil
}

func stripSeasonSuffixes(name string) string {
	name = strings.TrimSpace(seasonSuffixRe.ReplaceAllString(name, ""))
	name = strings.TrimSpace(trailingSeasonRe.ReplaceAllString(name, ""))
	name = strings.TrimSpace(seasonWordRe.ReplaceAllString(name, ""))
	return name
}

// matchByAirDate picks the search result whose first-air-date shares the
// year and month with the calendar's air date, falling back to the first
// result when nothing matches closely enough.
func matchByAirDate(results []metadataclient.SearchResult, airDate string) metadataclient.SearchResult {
	target, err := time.Parse("2006-01-02", airDate)
	if err == nil {
		for _, r := range results {
			candidate, err := time.Parse("2006-01-02", r.FirstAirDate)
			if err != nil {
				continue
			}
			if candidate.Year() == target.Year() && candidate.Month() == target.Month() {
				return r
			}
		}
	}
	return results[0]
}
