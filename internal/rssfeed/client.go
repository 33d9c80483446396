// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package rssfeed fetches and normalizes torrent RSS feeds into
// domain.RawFeedItem values.
package rssfeed

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"

	"github.com/Augenblick-tech/yanami/internal/domain"
)

// Client wraps a gofeed parser for one configured feed source.
type Client struct {
	parser *gofeed.Parser
}

// NewClient creates a feed client.
func NewClient() *Client {
	return &Client{parser: gofeed.NewParser()}
}

// Fetch parses the feed at feedURL and returns its items in feed order.
func (c *Client) Fetch(ctx context.Context, feedURL string) ([]domain.RawFeedItem, error) {
	feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	items := make([]domain.RawFeedItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		items = append(items, toRawFeedItem(item))
	}
	return items, nil
}

func toRawFeedItem(item *gofeed.Item) domain.RawFeedItem {
	raw := domain.RawFeedItem{
		Title:   item.Title,
		Link:    item.Link,
		PubDate: item.Published,
	}
	if len(item.Enclosures) > 0 {
		raw.EnclosureURL = item.Enclosures[0].URL
	}
	return raw
}
