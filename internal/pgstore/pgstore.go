// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pgstore archives profiles and items in PostgreSQL, for setups
// where several machines harvest into one archive.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agentberlin/feedsnake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrProfileNotFound is returned when a profile id is unknown.
var ErrProfileNotFound = errors.New("profile not found")

// Pool is the part of *pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store is a feedsnake.ContentStore backed by PostgreSQL.
type Store struct {
	pool Pool
}

var _ feedsnake.ContentStore = (*Store)(nil)

// Open connects to dsn and creates the schema if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	s := New(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool.
func New(pool Pool) *Store {
	return &Store{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id           BIGSERIAL PRIMARY KEY,
	name         TEXT NOT NULL,
	feed_url     TEXT NOT NULL UNIQUE,
	policy       INTEGER NOT NULL DEFAULT 3,
	priority     INTEGER NOT NULL DEFAULT 0,
	last_harvest BIGINT NOT NULL DEFAULT 0,
	disabled     BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS items (
	id           BIGSERIAL PRIMARY KEY,
	profile_id   BIGINT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	identity     TEXT NOT NULL UNIQUE,
	url          TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	body         TEXT NOT NULL DEFAULT '',
	media        JSONB NOT NULL DEFAULT '[]',
	published_at BIGINT NOT NULL DEFAULT 0,
	likes        BIGINT NOT NULL DEFAULT 0,
	complete     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_items_profile ON items(profile_id);
CREATE INDEX IF NOT EXISTS idx_profiles_due ON profiles(priority DESC, last_harvest ASC);
`

// Migrate creates the tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Exists(ctx context.Context, identity string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM items WHERE identity = $1)`,
		feedsnake.Identity(identity)).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Insert archives an item; an already archived identity yields ErrDuplicate.
func (s *Store) Insert(ctx context.Context, item feedsnake.ContentItem) error {
	identity := feedsnake.Identity(item.URL)
	media := item.Media
	if media == nil {
		media = []string{}
	}
	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return fmt.Errorf("failed to encode media of %s: %w", identity, err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO items (profile_id, identity, url, title, body, media, published_at, likes, complete)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (identity) DO NOTHING`,
		int64(item.ProfileID), identity, item.URL, item.Title, item.Body, string(mediaJSON),
		item.PublishedAt, item.Likes, item.Complete)
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", identity, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", identity, feedsnake.ErrDuplicate)
	}
	return nil
}

func (s *Store) UpdateLastHarvest(ctx context.Context, profileID uint, ts int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles SET last_harvest = $2 WHERE id = $1`,
		int64(profileID), ts)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %d: %w", profileID, ErrProfileNotFound)
	}
	return nil
}

const profileColumns = `id, name, feed_url, policy, priority, last_harvest`

// ListProfilesDueForHarvest returns the enabled profiles with a feed URL,
// highest priority first, then the ones harvested longest ago.
func (s *Store) ListProfilesDueForHarvest(ctx context.Context) ([]feedsnake.SourceProfile, error) {
	return s.queryProfiles(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE feed_url <> '' AND NOT disabled
		ORDER BY priority DESC, last_harvest ASC, id ASC`)
}

// ListProfiles returns every profile, disabled ones included, by id.
func (s *Store) ListProfiles(ctx context.Context) ([]feedsnake.SourceProfile, error) {
	return s.queryProfiles(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY id`)
}

func (s *Store) queryProfiles(ctx context.Context, sql string) ([]feedsnake.SourceProfile, error) {
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []feedsnake.SourceProfile
	for rows.Next() {
		var (
			id, policy, priority, lastHarvest int64
			name, feedURL                     string
		)
		if err := rows.Scan(&id, &name, &feedURL, &policy, &priority, &lastHarvest); err != nil {
			return nil, err
		}
		profiles = append(profiles, feedsnake.SourceProfile{
			ID:          uint(id),
			Name:        name,
			FeedURL:     feedURL,
			Policy:      feedsnake.Policy(policy),
			Priority:    int(priority),
			LastHarvest: lastHarvest,
		})
	}
	return profiles, rows.Err()
}

// SetDisabled takes a profile out of, or back into, the harvest rotation.
func (s *Store) SetDisabled(ctx context.Context, profileID uint, disabled bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles SET disabled = $2 WHERE id = $1`,
		int64(profileID), disabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %d: %w", profileID, ErrProfileNotFound)
	}
	return nil
}

// ListItems returns the newest items, newest first. A zero profileID lists
// every profile; a non-positive limit means no limit.
func (s *Store) ListItems(ctx context.Context, profileID uint, limit int) ([]feedsnake.ContentItem, error) {
	var lim any
	if limit > 0 {
		lim = int64(limit)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT profile_id, url, title, body, media, published_at, likes, complete
		FROM items
		WHERE $1 = 0 OR profile_id = $1
		ORDER BY id DESC
		LIMIT $2`,
		int64(profileID), lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []feedsnake.ContentItem
	for rows.Next() {
		var (
			item      feedsnake.ContentItem
			profile   int64
			mediaJSON []byte
		)
		if err := rows.Scan(&profile, &item.URL, &item.Title, &item.Body, &mediaJSON,
			&item.PublishedAt, &item.Likes, &item.Complete); err != nil {
			return nil, err
		}
		item.ProfileID = uint(profile)
		if err := json.Unmarshal(mediaJSON, &item.Media); err != nil {
			return nil, fmt.Errorf("failed to decode media of %s: %w", item.URL, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) CountItems(ctx context.Context, profileID uint) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM items WHERE profile_id = $1`,
		int64(profileID)).Scan(&n)
	return n, err
}

// UpsertProfile creates a profile or updates the one with the same feed URL.
func (s *Store) UpsertProfile(ctx context.Context, p feedsnake.SourceProfile) (feedsnake.SourceProfile, error) {
	var id, lastHarvest int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO profiles (name, feed_url, policy, priority)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (feed_url) DO UPDATE
		SET name = EXCLUDED.name, policy = EXCLUDED.policy, priority = EXCLUDED.priority
		RETURNING id, last_harvest`,
		p.Name, p.FeedURL, int64(p.Policy), int64(p.Priority)).Scan(&id, &lastHarvest)
	if err != nil {
		return feedsnake.SourceProfile{}, fmt.Errorf("failed to save profile %s: %w", p.FeedURL, err)
	}
	p.ID = uint(id)
	p.LastHarvest = lastHarvest
	return p, nil
}
