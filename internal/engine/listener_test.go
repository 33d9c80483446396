// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Augenblick-tech/yanami/internal/domain"
)

type fakeStatusRefresher struct {
	status domain.AnimeStatus
	setErr error
}

func (f *fakeStatusRefresher) GetCalendar(ctx context.Context, id int64) (*domain.AnimeStatus, error) {
	s := f.status
	return &s, nil
}

func (f *fakeStatusRefresher) SetRule(ctx context.Context, id int64, ruleName string) error {
	f.status.RuleName = ruleName
	return f.setErr
}

type fakeRuleLister struct {
	rules []domain.Rule
}

func (f *fakeRuleLister) List(ctx context.Context) ([]domain.Rule, error) {
	return f.rules, nil
}

func newTestAdmitter() (*Admitter, *fakeRecordStore, *fakeDispatcher) {
	records := newFakeRecordStore()
	dispatcher := &fakeDispatcher{}
	bus := NewBus[domain.AnimeTask](10)
	return NewAdmitter(newFakeProgressStore(), records, dispatcher, fakeDownloadConfig{}, bus, nil), records, dispatcher
}

func TestListenerHandleAdmitsMatchingBroadcastItem(t *testing.T) {
	status := domain.AnimeStatus{AnimeInfo: domain.AnimeInfo{ID: 1, Name: "Example Series", SearchName: "Example", AirDate: "2026-01-05", Eps: 12}}
	refresher := &fakeStatusRefresher{status: status}
	admitter, records, dispatcher := newTestAdmitter()

	broadcastBus := NewBus[domain.RssItem](10)
	retirementBus := NewBus[domain.AnimeTask](10)
	inbox := make(chan domain.RssItem, 1)

	l := NewListener(1, status, refresher, admitter, inbox, retirementBus.Subscribe(), broadcastBus.Subscribe())

	pubDate := time.Now().Format(time.RFC1123Z)
	msg := domain.RssItem{Title: "Example Series S01E01", Magnet: magnetFor("3ba219aa52f8e11d99fa4c6ec43e78ec2d6a5e2d"), PubDate: pubDate, RuleName: "rule-a"}

	err := l.handle(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, "rule-a", refresher.status.RuleName)
	require.Len(t, records.records[1], 1)
	assert.Len(t, dispatcher.adds, 1)
}

func TestListenerHandleRejectsConflictingRuleOnceLocked(t *testing.T) {
	status := domain.AnimeStatus{AnimeInfo: domain.AnimeInfo{ID: 1, Name: "Example Series", AirDate: "2026-01-05", Eps: 12}, RuleName: "rule-a"}
	refresher := &fakeStatusRefresher{status: status}
	admitter, records, _ := newTestAdmitter()

	broadcastBus := NewBus[domain.RssItem](10)
	retirementBus := NewBus[domain.AnimeTask](10)
	inbox := make(chan domain.RssItem, 1)

	l := NewListener(1, status, refresher, admitter, inbox, retirementBus.Subscribe(), broadcastBus.Subscribe())

	pubDate := time.Now().Format(time.RFC1123Z)
	msg := domain.RssItem{Title: "Example Series S01E02", Magnet: magnetFor("4ba219aa52f8e11d99fa4c6ec43e78ec2d6a5e2d"), PubDate: pubDate, RuleName: "rule-b"}

	err := l.handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Empty(t, records.records[1])
}

func TestListenerHandleRejectsReleasePublishedTooEarly(t *testing.T) {
	status := domain.AnimeStatus{AnimeInfo: domain.AnimeInfo{ID: 1, Name: "Example Series", AirDate: "2026-06-01", Eps: 12}}
	refresher := &fakeStatusRefresher{status: status}
	admitter, records, _ := newTestAdmitter()

	broadcastBus := NewBus[domain.RssItem](10)
	retirementBus := NewBus[domain.AnimeTask](10)
	inbox := make(chan domain.RssItem, 1)

	l := NewListener(1, status, refresher, admitter, inbox, retirementBus.Subscribe(), broadcastBus.Subscribe())

	early, _ := time.Parse("2006-01-02", "2026-01-01")
	msg := domain.RssItem{Title: "Example Series S01E01", Magnet: magnetFor("5ba219aa52f8e11d99fa4c6ec43e78ec2d6a5e2d"), PubDate: early.Format(time.RFC1123Z), RuleName: "rule-a"}

	err := l.handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Empty(t, records.records[1])
}

func TestListenerHandleDropsUntaggedItem(t *testing.T) {
	status := domain.AnimeStatus{AnimeInfo: domain.AnimeInfo{ID: 1, Name: "Example Series", AirDate: "2026-01-05", Eps: 12}}
	refresher := &fakeStatusRefresher{status: status}
	admitter, records, _ := newTestAdmitter()

	broadcastBus := NewBus[domain.RssItem](10)
	retirementBus := NewBus[domain.AnimeTask](10)
	inbox := make(chan domain.RssItem, 1)

	l := NewListener(1, status, refresher, admitter, inbox, retirementBus.Subscribe(), broadcastBus.Subscribe())

	pubDate := time.Now().Format(time.RFC1123Z)
	// Arrives with no RuleName: the rule cache upstream never matched it,
	// so the Listener must not try to resolve one on its own.
	msg := domain.RssItem{Title: "Example Series S01E01 1080p", Magnet: magnetFor("6ba219aa52f8e11d99fa4c6ec43e78ec2d6a5e2d"), PubDate: pubDate}

	err := l.handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Empty(t, records.records[1])
}

func TestListenerRunStopsOnMatchingRetirement(t *testing.T) {
	status := domain.AnimeStatus{AnimeInfo: domain.AnimeInfo{ID: 1}}
	refresher := &fakeStatusRefresher{status: status}
	admitter, _, _ := newTestAdmitter()

	broadcastBus := NewBus[domain.RssItem](10)
	retirementBus := NewBus[domain.AnimeTask](10)
	inbox := make(chan domain.RssItem, 1)

	l := NewListener(1, status, refresher, admitter, inbox, retirementBus.Subscribe(), broadcastBus.Subscribe())

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	retirementBus.Publish(domain.AnimeTask{Info: domain.AnimeInfo{ID: 1}, Cancel: true})

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop after retirement")
	}
}
