// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Augenblick-tech/yanami/internal/domain"
)

func TestRuleStoreListOrderedByCost(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewRuleStore(db.Conn())

	require.NoError(t, store.Set(ctx, domain.Rule{Name: "expensive", Re: ".*", Cost: 10}))
	require.NoError(t, store.Set(ctx, domain.Rule{Name: "cheap", Re: ".*", Cost: 1}))

	rules, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "cheap", rules[0].Name)
	assert.Equal(t, "expensive", rules[1].Name)
}

func TestRuleStoreSetUpdatesExisting(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewRuleStore(db.Conn())

	require.NoError(t, store.Set(ctx, domain.Rule{Name: "r", Re: "old", Cost: 1}))
	require.NoError(t, store.Set(ctx, domain.Rule{Name: "r", Re: "new", Cost: 2}))

	rules, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "new", rules[0].Re)
	assert.Equal(t, 2, rules[0].Cost)
}

func TestRuleStoreDelete(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewRuleStore(db.Conn())

	require.NoError(t, store.Set(ctx, domain.Rule{Name: "r", Re: ".*", Cost: 1}))
	require.NoError(t, store.Delete(ctx, "r"))

	rules, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}
