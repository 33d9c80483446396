// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package torrentclient wraps a qBittorrent session, serializing
// reconfiguration, login, and dispatch behind a single mutex since the
// underlying client is not safe to reconfigure concurrently.
package torrentclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"

	"github.com/Augenblick-tech/yanami/internal/domain"
)

// confirmAttempts and confirmInterval bound how long Add waits for a
// dispatched torrent to appear in qBittorrent's state before giving up.
// confirmInterval is a var, not a const, so tests can shrink it.
const confirmAttempts = 5

var confirmInterval = 5 * time.Second

// Client serializes access to a single qBittorrent session. The session
// is rebuilt whenever the stored credentials change, so every dispatch
// reconfigures-then-logs-in before adding, matching the cost of a stale
// session over the cost of serializing every call.
type Client struct {
	mu     sync.Mutex
	inner  *qbt.Client
	cfg    domain.QbitConfig
	loggedIn bool
}

// New creates an unauthenticated client wrapper. Call Reconfigure before
// the first Add.
func New() *Client {
	return &Client{}
}

// Reconfigure rebuilds the underlying session if cfg differs from the one
// currently in use, then logs in unless the session is already logged in.
func (c *Client) Reconfigure(ctx context.Context, cfg domain.QbitConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inner == nil || c.cfg != cfg {
		c.inner = qbt.NewClient(qbt.Config{
			Host:     cfg.URL,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  30,
		})
		c.cfg = cfg
		c.loggedIn = false
	}

	return c.checkAndLoginLocked(ctx)
}

func (c *Client) checkAndLoginLocked(ctx context.Context) error {
	if c.loggedIn {
		return nil
	}
	if err := c.inner.LoginCtx(ctx); err != nil {
		return fmt.Errorf("login to qbittorrent: %w", err)
	}
	c.loggedIn = true
	return nil
}

// Add dispatches a magnet or torrent URL under savePath, re-logging in if
// the existing session has expired, then polls client state until
// expectedHash appears, failing if it never does.
func (c *Client) Add(ctx context.Context, url, savePath, expectedHash string) error {
	c.mu.Lock()
	inner := c.inner
	if inner == nil {
		c.mu.Unlock()
		return fmt.Errorf("torrent client not configured")
	}

	if err := c.checkAndLoginLocked(ctx); err != nil {
		c.mu.Unlock()
		return err
	}

	options := map[string]string{
		"savepath": savePath,
	}

	err := inner.AddTorrentFromUrlsCtx(ctx, []string{url}, options)
	if err != nil {
		// The session may have expired between reconfigure and add; retry once.
		c.loggedIn = false
		if loginErr := c.checkAndLoginLocked(ctx); loginErr != nil {
			c.mu.Unlock()
			return fmt.Errorf("add torrent: %w (relogin failed: %v)", err, loginErr)
		}
		if err = inner.AddTorrentFromUrlsCtx(ctx, []string{url}, options); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("add torrent: %w", err)
		}
	}
	c.mu.Unlock()

	return c.confirm(ctx, expectedHash)
}

// confirm polls State up to confirmAttempts times, confirmInterval apart,
// until expectedHash appears in the client's torrent list.
func (c *Client) confirm(ctx context.Context, expectedHash string) error {
	expectedHash = strings.ToLower(expectedHash)

	for attempt := 1; attempt <= confirmAttempts; attempt++ {
		hashes, err := c.State(ctx)
		if err != nil {
			return fmt.Errorf("check torrent state: %w", err)
		}
		if _, ok := hashes[expectedHash]; ok {
			return nil
		}

		if attempt == confirmAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(confirmInterval):
		}
	}

	return fmt.Errorf("torrent %s never appeared in client state", expectedHash)
}

// State returns the set of lowercase info-hashes currently known to the
// torrent client.
func (c *Client) State(ctx context.Context) (map[string]struct{}, error) {
	c.mu.Lock()
	inner := c.inner
	c.mu.Unlock()
	if inner == nil {
		return nil, fmt.Errorf("torrent client not configured")
	}

	torrents, err := inner.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{})
	if err != nil {
		return nil, fmt.Errorf("list torrents: %w", err)
	}

	hashes := make(map[string]struct{}, len(torrents))
	for _, t := range torrents {
		hashes[strings.ToLower(t.Hash)] = struct{}{}
	}
	return hashes, nil
}
