// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoHashFromMagnetHex(t *testing.T) {
	hash, err := InfoHash(context.Background(), nil, "magnet:?xt=urn:btih:3BA219AA52F8E11D99FA4C6EC43E78EC2D6A5E2D&dn=example")
	require.NoError(t, err)
	assert.Equal(t, "3ba219aa52f8e11d99fa4c6ec43e78ec2d6a5e2d", hash)
}

func TestInfoHashFromMagnetBase32(t *testing.T) {
	// The base32 form of the same 20-byte hash above.
	hash, err := InfoHash(context.Background(), nil, "magnet:?xt=urn:btih:HORBTKSS7DQR3GP2JRXMIPTY5QWWUXRN&dn=example")
	require.NoError(t, err)
	assert.Equal(t, "3ba219aa52f8e11d99fa4c6ec43e78ec2d6a5e2d", hash)
}

func TestInfoHashFromTorrentFile(t *testing.T) {
	// Bencoded {"info": {"name": "x"}} — a minimal single-key info dict.
	const body = "d4:infod4:name1:xee"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	hash, err := InfoHash(context.Background(), srv.Client(), srv.URL+"/example.torrent")
	require.NoError(t, err)
	assert.Len(t, hash, 40)
}

func TestInfoHashIsDeterministic(t *testing.T) {
	const body = "d4:infod4:name1:xee"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	hash1, err := InfoHash(context.Background(), srv.Client(), srv.URL+"/example.torrent")
	require.NoError(t, err)
	hash2, err := InfoHash(context.Background(), srv.Client(), srv.URL+"/example.torrent")
	require.NoError(t, err)
	assert.Equal(t, hash1, hash2)
}
