// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Augenblick-tech/yanami/internal/domain"
	"github.com/Augenblick-tech/yanami/internal/models"
)

const (
	retirementBusCapacity = 100
	broadcastBusCapacity  = 100000
	listenerInboxCapacity = 10000

	defaultCalendarSyncInterval = 12 * time.Hour
	defaultFeedCheckInterval    = 5 * time.Minute
)

// NewRetirementBus creates the retirement bus at the capacity every
// listener and the Admitter are expected to share.
func NewRetirementBus() *Bus[domain.AnimeTask] {
	return NewBus[domain.AnimeTask](retirementBusCapacity)
}

// CalendarSyncer builds the enriched broadcast calendar.
type CalendarSyncer interface {
	GetCalendar(ctx context.Context) ([]domain.AnimeInfo, error)
}

// FeedFetcher fetches and normalizes one RSS feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]domain.RawFeedItem, error)
}

// AnimeStatusStore is the full tracked-anime store surface the Runtime
// needs, beyond what a Listener or Admitter needs on their own.
type AnimeStatusStore interface {
	AnimeStatusRefresher
	SetCalendars(ctx context.Context, infos []domain.AnimeInfo) error
	GetWatching(ctx context.Context) ([]domain.AnimeStatus, error)
}

// RssFeedLister supplies the configured feed sources.
type RssFeedLister interface {
	List(ctx context.Context) ([]domain.RssFeed, error)
}

// Config tunes the Runtime's polling cadence. A zero value in either
// field falls back to its default.
type Config struct {
	CalendarSyncInterval time.Duration
	FeedCheckInterval    time.Duration
}

// Runtime is the tracking engine: it keeps the calendar in sync, polls
// every configured feed, and runs one Listener per actively watched
// series. Runtime is not safe for concurrent use of Run from more than
// one goroutine, but the rest of its surface is driven entirely by its
// own internal goroutines.
type Runtime struct {
	calendar     CalendarSyncer
	feeds        FeedFetcher
	animeStore   AnimeStatusStore
	rssFeedStore RssFeedLister
	ruleStore    RuleLister
	admitter     *Admitter
	ruleCache    *RuleCache

	retirement *Bus[domain.AnimeTask]
	broadcast  *Bus[domain.RssItem]

	mu      sync.Mutex
	inboxes map[int64]chan domain.RssItem

	calendarInterval time.Duration
	feedInterval     time.Duration
}

// NewRuntime wires a Runtime from its dependencies. retirement must be the
// same bus passed to the Admitter, so a release that completes a series
// reaches both the Admitter's caller and every running Listener.
func NewRuntime(
	calendar CalendarSyncer,
	feeds FeedFetcher,
	animeStore AnimeStatusStore,
	rssFeedStore RssFeedLister,
	ruleStore RuleLister,
	admitter *Admitter,
	retirement *Bus[domain.AnimeTask],
	cfg Config,
) *Runtime {
	calendarInterval := cfg.CalendarSyncInterval
	if calendarInterval <= 0 {
		calendarInterval = defaultCalendarSyncInterval
	}
	feedInterval := cfg.FeedCheckInterval
	if feedInterval <= 0 {
		feedInterval = defaultFeedCheckInterval
	}

	return &Runtime{
		calendar:         calendar,
		feeds:            feeds,
		animeStore:       animeStore,
		rssFeedStore:     rssFeedStore,
		ruleStore:        ruleStore,
		admitter:         admitter,
		ruleCache:        NewRuleCache(),
		retirement:       retirement,
		broadcast:        NewBus[domain.RssItem](broadcastBusCapacity),
		inboxes:          make(map[int64]chan domain.RssItem),
		calendarInterval: calendarInterval,
		feedInterval:     feedInterval,
	}
}

// Run starts a listener for every currently watched series, then
// alternates between calendar syncs and feed checks until ctx is
// canceled.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.initListeners(ctx); err != nil {
		return fmt.Errorf("init listeners: %w", err)
	}

	drainSub := r.retirement.Subscribe()
	go r.drainRetirements(ctx, drainSub)

	calendarTicker := time.NewTicker(r.calendarInterval)
	defer calendarTicker.Stop()
	feedTicker := time.NewTicker(r.feedInterval)
	defer feedTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-calendarTicker.C:
			go func() {
				if err := r.syncCalendar(ctx); err != nil {
					log.Error().Err(err).Msg("sync calendar failed")
				}
			}()

		case <-feedTicker.C:
			if !r.hasActiveListeners() {
				continue
			}
			go func() {
				if err := r.checkUpdate(ctx); err != nil {
					log.Error().Err(err).Msg("check feed updates failed")
				}
			}()
		}
	}
}

func (r *Runtime) drainRetirements(ctx context.Context, sub *Subscription[domain.AnimeTask]) {
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-sub.C:
			if !ok {
				return
			}
			if task.Cancel {
				r.removeInbox(task.Info.ID)
			}
		}
	}
}

func (r *Runtime) hasActiveListeners() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inboxes) > 0
}

func (r *Runtime) removeInbox(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inboxes, id)
}

func (r *Runtime) initListeners(ctx context.Context) error {
	watching, err := r.animeStore.GetWatching(ctx)
	if err != nil {
		return err
	}
	for _, status := range watching {
		r.startListener(ctx, status)
	}
	return nil
}

// startListener spawns a Listener for status's series unless one is
// already running.
func (r *Runtime) startListener(ctx context.Context, status domain.AnimeStatus) {
	id := status.AnimeInfo.ID

	r.mu.Lock()
	if _, ok := r.inboxes[id]; ok {
		r.mu.Unlock()
		return
	}
	inbox := make(chan domain.RssItem, listenerInboxCapacity)
	r.inboxes[id] = inbox
	r.mu.Unlock()

	retirementSub := r.retirement.Subscribe()
	broadcastSub := r.broadcast.Subscribe()

	listener := NewListener(id, status, r.animeStore, r.admitter, inbox, retirementSub, broadcastSub)

	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Int64("anime_id", id).Msg("listener exited with error")
		}
	}()
}

// syncCalendar fetches the enriched calendar, starts a listener for every
// entry that isn't explicitly retired, and bulk-upserts the calendar
// snapshot (locked rows are left untouched by the store).
func (r *Runtime) syncCalendar(ctx context.Context) error {
	entries, err := r.calendar.GetCalendar(ctx)
	if err != nil {
		return fmt.Errorf("fetch calendar: %w", err)
	}

	for _, info := range entries {
		existing, err := r.animeStore.GetCalendar(ctx, info.ID)
		if err != nil && !errors.Is(err, models.ErrAnimeNotFound) {
			return fmt.Errorf("load existing status %d: %w", info.ID, err)
		}
		if err == nil && existing.Status == domain.StatusRetired {
			continue
		}

		r.startListener(ctx, domain.AnimeStatus{AnimeInfo: info, Status: domain.StatusWatching})
	}

	if err := r.animeStore.SetCalendars(ctx, entries); err != nil {
		return fmt.Errorf("persist calendar: %w", err)
	}
	return nil
}

// checkUpdate reconciles the rule cache, polls every configured feed, and
// tags or routes each item it sees: feeds with a plain url are matched
// against the rule cache and fanned out on the broadcast bus; feeds with
// a search_url are expanded per watched, searchable series and routed
// straight to that series' listener.
func (r *Runtime) checkUpdate(ctx context.Context) error {
	rules, err := r.ruleStore.List(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	r.ruleCache.Reconcile(rules)

	sources, err := r.rssFeedStore.List(ctx)
	if err != nil {
		return fmt.Errorf("load feed sources: %w", err)
	}

	for _, feed := range sources {
		if feed.URL != nil && *feed.URL != "" {
			r.pollBroadcastFeed(ctx, *feed.URL)
		}
		if feed.SearchURL != nil && *feed.SearchURL != "" {
			if err := r.pollSearchFeeds(ctx, *feed.SearchURL); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *Runtime) pollBroadcastFeed(ctx context.Context, feedURL string) {
	items, err := r.feeds.Fetch(ctx, feedURL)
	if err != nil {
		log.Warn().Err(err).Str("feed", feedURL).Msg("fetch feed failed")
		return
	}

	for _, item := range items {
		if !item.Usable() {
			continue
		}
		ruleName, ok := r.ruleCache.Match(item.Title)
		if !ok {
			continue
		}
		r.broadcast.Publish(domain.RssItem{
			Title:    item.Title,
			Magnet:   item.URL(),
			PubDate:  item.PubDate,
			RuleName: ruleName,
		})
	}
}

// searchURLPlaceholder is the single alias placeholder a search_url
// template is expanded against, one series alias at a time.
const searchURLPlaceholder = "{}"

func (r *Runtime) pollSearchFeeds(ctx context.Context, searchURLTemplate string) error {
	watching, err := r.animeStore.GetWatching(ctx)
	if err != nil {
		return fmt.Errorf("load watched series: %w", err)
	}

	for _, status := range watching {
		if !status.IsSearch {
			continue
		}
		for _, name := range status.AnimeInfo.Names() {
			feedURL := strings.ReplaceAll(searchURLTemplate, searchURLPlaceholder, url.QueryEscape(name))
			items, err := r.feeds.Fetch(ctx, feedURL)
			if err != nil {
				log.Warn().Err(err).Str("feed", feedURL).Int64("anime_id", status.AnimeInfo.ID).Msg("fetch search feed failed")
				continue
			}

			for _, item := range items {
				if !item.Usable() {
					continue
				}
				ruleName, ok := r.ruleCache.Match(item.Title)
				if !ok {
					continue
				}
				r.sendTargeted(status.AnimeInfo.ID, domain.RssItem{
					Title:    item.Title,
					Magnet:   item.URL(),
					PubDate:  item.PubDate,
					RuleName: ruleName,
				})
			}
		}
	}

	return nil
}

// sendTargeted routes msg directly to id's listener, if one is running.
// A missing or full inbox is ignored: the series may have just retired,
// or its listener is already behind and this item will reappear next
// poll anyway.
func (r *Runtime) sendTargeted(id int64, msg domain.RssItem) {
	r.mu.Lock()
	ch, ok := r.inboxes[id]
	r.mu.Unlock()
	if !ok {
		return
	}

	select {
	case ch <- msg:
	default:
	}
}
