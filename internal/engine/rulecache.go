// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package engine

import (
	"regexp"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Augenblick-tech/yanami/internal/domain"
)

type compiledRule struct {
	name  string
	reStr string
	re    *regexp.Regexp
}

// RuleCache holds the compiled form of every naming rule, reconciled
// against the database once per feed-check cycle rather than recompiled
// on every title. Entries whose regex text is unchanged are left as-is so
// a bad edit to one rule never invalidates the rest of the cache.
type RuleCache struct {
	mu    sync.Mutex
	rules []compiledRule
}

// NewRuleCache creates an empty cache.
func NewRuleCache() *RuleCache {
	return &RuleCache{}
}

// Reconcile updates the cache to match the given rule set: rules no
// longer present are dropped, changed patterns are recompiled, and new
// rules are compiled and appended. A rule whose pattern fails to compile
// is skipped and logged rather than aborting the whole reconciliation.
func (c *RuleCache) Reconcile(rules []domain.Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.rules[:0]
	for _, existing := range c.rules {
		for _, r := range rules {
			if r.Name == existing.name {
				kept = append(kept, existing)
				break
			}
		}
	}
	c.rules = kept

	for _, r := range rules {
		found := false
		for i, existing := range c.rules {
			if existing.name != r.Name {
				continue
			}
			found = true
			if existing.reStr != r.Re {
				compiled, err := regexp.Compile(r.Re)
				if err != nil {
					log.Warn().Err(err).Str("rule", r.Name).Msg("recompile rule failed")
					break
				}
				c.rules[i] = compiledRule{name: r.Name, reStr: r.Re, re: compiled}
			}
			break
		}
		if !found {
			compiled, err := regexp.Compile(r.Re)
			if err != nil {
				log.Warn().Err(err).Str("rule", r.Name).Msg("compile rule failed")
				continue
			}
			c.rules = append(c.rules, compiledRule{name: r.Name, reStr: r.Re, re: compiled})
		}
	}
}

// Match returns the name of the first cached rule whose pattern matches
// title, in cache order.
func (c *RuleCache) Match(title string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.rules {
		if r.re.MatchString(title) {
			return r.name, true
		}
	}
	return "", false
}

// Len reports the number of cached rules, mainly for tests.
func (c *RuleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rules)
}
