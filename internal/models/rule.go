// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"

	"github.com/Augenblick-tech/yanami/internal/dbinterface"
	"github.com/Augenblick-tech/yanami/internal/domain"
)

// RuleStore persists naming rules used to tag and admit torrent releases.
type RuleStore struct {
	db dbinterface.Querier
}

func NewRuleStore(db dbinterface.Querier) *RuleStore {
	return &RuleStore{db: db}
}

// List returns every rule ordered by cost ascending, the order in which
// rules are tried against a candidate title.
func (s *RuleStore) List(ctx context.Context) ([]domain.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, re, cost FROM rules ORDER BY cost ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Rule
	for rows.Next() {
		var r domain.Rule
		if err := rows.Scan(&r.Name, &r.Re, &r.Cost); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Set upserts a rule definition.
func (s *RuleStore) Set(ctx context.Context, rule domain.Rule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rules (name, re, cost) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET re = excluded.re, cost = excluded.cost
	`, rule.Name, rule.Re, rule.Cost)
	return err
}

// Delete removes a rule by name.
func (s *RuleStore) Delete(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE name = ?`, name)
	return err
}
