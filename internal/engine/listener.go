// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package engine

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Augenblick-tech/yanami/internal/domain"
)

// airDateSlack is how far before a series' air date a published release is
// still trusted. A release published more than this far ahead of the air
// date is almost certainly a mismatched title, not an early leak.
const airDateSlack = 8 * 24 * time.Hour

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// AnimeStatusRefresher is the subset of the tracked-anime store a Listener
// needs to stay current with a series' calendar snapshot and to persist a
// newly locked rule name.
type AnimeStatusRefresher interface {
	GetCalendar(ctx context.Context, id int64) (*domain.AnimeStatus, error)
	SetRule(ctx context.Context, id int64, ruleName string) error
}

// RuleLister supplies the naming rules in admission-cost order.
type RuleLister interface {
	List(ctx context.Context) ([]domain.Rule, error)
}

// Listener evaluates every candidate release seen for one series, either
// from the shared feed broadcast or from its own targeted search channel,
// and admits the first one that matches. Both channels only ever carry
// items already tagged with a rule name by the Runtime's rule cache; the
// Listener itself never matches rules, only names. Once a rule name has
// locked in it stays locked: later releases matched by a different rule
// are ignored so the series doesn't jump between conflicting naming
// conventions mid-run.
type Listener struct {
	id     int64
	status domain.AnimeStatus

	store AnimeStatusRefresher

	admitter *Admitter

	inbox      <-chan domain.RssItem
	retirement *Subscription[domain.AnimeTask]
	broadcast  *Subscription[domain.RssItem]
}

// NewListener creates a Listener for one series. inbox carries items sent
// directly for this series (search-feed results); broadcast carries every
// globally rule-tagged item.
func NewListener(
	id int64,
	status domain.AnimeStatus,
	store AnimeStatusRefresher,
	admitter *Admitter,
	inbox <-chan domain.RssItem,
	retirement *Subscription[domain.AnimeTask],
	broadcast *Subscription[domain.RssItem],
) *Listener {
	return &Listener{
		id:         id,
		status:     status,
		store:      store,
		admitter:   admitter,
		inbox:      inbox,
		retirement: retirement,
		broadcast:  broadcast,
	}
}

// Run processes messages until the series is retired or ctx is canceled.
func (l *Listener) Run(ctx context.Context) error {
	defer l.retirement.Unsubscribe()
	defer l.broadcast.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case task, ok := <-l.retirement.C:
			if !ok {
				return nil
			}
			if task.Cancel && task.Info.ID == l.id {
				return nil
			}

		case item, ok := <-l.inbox:
			if !ok {
				return nil
			}
			if err := l.handle(ctx, item); err != nil {
				log.Error().Err(err).Int64("anime_id", l.id).Msg("handle targeted release failed")
			}

		case item, ok := <-l.broadcast.C:
			if !ok {
				return nil
			}
			if err := l.handle(ctx, item); err != nil {
				log.Error().Err(err).Int64("anime_id", l.id).Msg("handle broadcast release failed")
			}
		}
	}
}

func (l *Listener) handle(ctx context.Context, msg domain.RssItem) error {
	fresh, err := l.store.GetCalendar(ctx, l.id)
	if err != nil {
		return err
	}
	l.status.AnimeInfo = fresh.AnimeInfo
	l.status.RuleName = fresh.RuleName
	l.status.Progress = fresh.Progress

	ruleName := msg.RuleName
	if ruleName == "" {
		return nil
	}

	for _, name := range l.status.AnimeInfo.Names() {
		if !strings.Contains(msg.Title, name) {
			continue
		}

		if !withinAirWindow(msg.PubDate, l.status.AnimeInfo.AirDate) {
			return nil
		}

		if l.status.RuleName == "" {
			l.status.RuleName = ruleName
			if err := l.store.SetRule(ctx, l.id, ruleName); err != nil {
				return err
			}
		} else if l.status.RuleName != ruleName {
			return nil
		}

		return l.admitter.Admit(ctx, l.status, msg, ruleName)
	}

	return nil
}

// withinAirWindow reports whether a release published at pubDate is
// plausible for a series airing at airDate: published more than
// airDateSlack ahead of air date is treated as a mismatch and rejected.
// Either date failing to parse is not treated as a rejection, since an
// unparsable date carries no reliable signal either way.
func withinAirWindow(pubDate, airDate string) bool {
	pub, err := parsePubDate(pubDate)
	if err != nil {
		return true
	}
	air, err := time.Parse("2006-01-02", airDate)
	if err != nil {
		return true
	}
	return !pub.Add(airDateSlack).Before(air)
}

func parsePubDate(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range pubDateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
