// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/anacrolix/torrent/metainfo"
)

// InfoHash derives the lowercase hex info-hash for a release URL. Magnet
// links carry the hash directly in their "xt" query parameter; anything
// else is assumed to be a .torrent file fetched over HTTP and hashed from
// its bencoded info dictionary.
func InfoHash(ctx context.Context, httpClient *http.Client, rawURL string) (string, error) {
	if mag, err := metainfo.ParseMagnetURI(rawURL); err == nil {
		return mag.InfoHash.HexString(), nil
	}

	return fetchAndHashTorrent(ctx, httpClient, rawURL)
}

func fetchAndHashTorrent(ctx context.Context, httpClient *http.Client, rawURL string) (string, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build torrent fetch request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch torrent file: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read torrent file: %w", err)
	}

	mi, err := metainfo.Load(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse torrent metainfo: %w", err)
	}

	if _, err := mi.UnmarshalInfo(); err != nil {
		return "", fmt.Errorf("unmarshal torrent info: %w", err)
	}

	return mi.HashInfoBytes().HexString(), nil
}
