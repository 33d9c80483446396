// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Augenblick-tech/yanami/internal/domain"
)

func TestRuleCacheReconcileAddsAndMatches(t *testing.T) {
	c := NewRuleCache()
	c.Reconcile([]domain.Rule{
		{Name: "web-1080p", Re: `1080p`, Cost: 1},
		{Name: "any", Re: `.*`, Cost: 2},
	})

	require.Equal(t, 2, c.Len())
	name, ok := c.Match("Example.Show.S01E01.1080p.mkv")
	require.True(t, ok)
	assert.Equal(t, "web-1080p", name)
}

func TestRuleCacheReconcileDropsRemovedRules(t *testing.T) {
	c := NewRuleCache()
	c.Reconcile([]domain.Rule{{Name: "old", Re: `old`, Cost: 1}})
	require.Equal(t, 1, c.Len())

	c.Reconcile([]domain.Rule{{Name: "new", Re: `new`, Cost: 1}})
	assert.Equal(t, 1, c.Len())
	_, ok := c.Match("old release")
	assert.False(t, ok)
}

func TestRuleCacheReconcileRecompilesChangedPattern(t *testing.T) {
	c := NewRuleCache()
	c.Reconcile([]domain.Rule{{Name: "r", Re: `foo`, Cost: 1}})

	_, ok := c.Match("foo bar")
	require.True(t, ok)

	c.Reconcile([]domain.Rule{{Name: "r", Re: `baz`, Cost: 1}})
	_, ok = c.Match("foo bar")
	assert.False(t, ok)
	_, ok = c.Match("baz qux")
	assert.True(t, ok)
}

func TestRuleCacheMatchReturnsFirstInOrder(t *testing.T) {
	c := NewRuleCache()
	c.Reconcile([]domain.Rule{
		{Name: "specific", Re: `1080p`, Cost: 1},
		{Name: "catchall", Re: `.*`, Cost: 2},
	})

	name, ok := c.Match("Example.1080p.mkv")
	require.True(t, ok)
	assert.Equal(t, "specific", name)

	name, ok = c.Match("Example.720p.mkv")
	require.True(t, ok)
	assert.Equal(t, "catchall", name)
}
