// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// Rule is one naming rule: items whose title matches Re are tagged Name.
// Cost orders rule evaluation (lower first) and breaks ties stably.
type Rule struct {
	Name string `json:"name"`
	Re   string `json:"re"`
	Cost int    `json:"cost"`
}
