// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scheduleclient fetches the current-season broadcast calendar from
// an external schedule provider.
package scheduleclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CalendarEntry is one series as reported by the schedule provider, before
// metadata enrichment.
type CalendarEntry struct {
	Name     string `json:"name"`
	NameCN   string `json:"nameCn"`
	Weekday  int    `json:"weekday"`
	Eps      int    `json:"eps"`
	AirDate  string `json:"airDate"`
	SourceID int64  `json:"sourceId"`
}

// defaultBaseURL is bgm.tv's public calendar API, the schedule provider
// the original tracker was built against.
const defaultBaseURL = "https://api.bgm.tv"

// Client wraps the HTTP calendar provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a calendar client against baseURL. baseURL defaults
// to bgm.tv when empty; timeoutSeconds defaults to 30 when <= 0.
func NewClient(baseURL string, timeoutSeconds int) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	timeout := time.Duration(timeoutSeconds) * time.Second
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// GetCalendar returns every series scheduled to air this season.
func (c *Client) GetCalendar(ctx context.Context) ([]CalendarEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/calendar", nil)
	if err != nil {
		return nil, fmt.Errorf("build calendar request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("calendar request returned status %d", resp.StatusCode)
	}

	var entries []CalendarEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode calendar response: %w", err)
	}

	out := make([]CalendarEntry, 0, len(entries))
	for _, entry := range entries {
		if _, err := time.Parse("2006-01-02", entry.AirDate); err != nil {
			continue
		}
		out = append(out, entry)
	}

	return out, nil
}
