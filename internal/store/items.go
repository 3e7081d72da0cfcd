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

package store

import (
	"context"
	"fmt"

	"github.com/agentberlin/feedsnake"
	"github.com/cespare/xxhash/v2"
	"gorm.io/gorm/clause"
)

func identityHash(identity string) int64 {
	return int64(xxhash.Sum64String(identity))
}

// Exists reports whether an item with the given identity is archived.
// The hash column narrows the lookup; the identity itself settles collisions.
func (s *Store) Exists(ctx context.Context, identity string) (bool, error) {
	identity = feedsnake.Identity(identity)
	var count int64
	if err := s.db.WithContext(ctx).Model(&Item{}).
		Where("identity_hash = ? AND identity = ?", identityHash(identity), identity).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Insert archives an item. An item whose identity is already stored is left
// untouched and ErrDuplicate is returned.
func (s *Store) Insert(ctx context.Context, item feedsnake.ContentItem) error {
	identity := feedsnake.Identity(item.URL)
	row := Item{
		ProfileID:    item.ProfileID,
		Identity:     identity,
		IdentityHash: identityHash(identity),
		URL:          item.URL,
		Title:        item.Title,
		Body:         item.Body,
		PublishedAt:  item.PublishedAt,
		Likes:        item.Likes,
		Complete:     item.Complete,
	}
	if err := row.SetMediaArray(item.Media); err != nil {
		return fmt.Errorf("failed to encode media of %s: %w", identity, err)
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("failed to insert %s: %w", identity, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", identity, feedsnake.ErrDuplicate)
	}
	return nil
}

// CountItems returns how many items are archived for a profile.
func (s *Store) CountItems(ctx context.Context, profileID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Item{}).
		Where("profile_id = ?", profileID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListItems returns the newest items of a profile, newest first. A zero
// profileID lists every profile; a non-positive limit means no limit.
func (s *Store) ListItems(ctx context.Context, profileID uint, limit int) ([]feedsnake.ContentItem, error) {
	q := s.db.WithContext(ctx).Order("id DESC")
	if profileID != 0 {
		q = q.Where("profile_id = ?", profileID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []Item
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]feedsnake.ContentItem, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].toContent())
	}
	return items, nil
}
