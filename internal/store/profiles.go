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
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrProfileNotFound is returned when a profile id is unknown.
var ErrProfileNotFound = fmt.Errorf("profile not found: %w", gorm.ErrRecordNotFound)

// UpsertProfile creates a profile, or updates the name, policy and priority
// of the profile with the same feed URL. The stored profile is returned.
func (s *Store) UpsertProfile(ctx context.Context, p feedsnake.SourceProfile) (feedsnake.SourceProfile, error) {
	if p.FeedURL == "" {
		return feedsnake.SourceProfile{}, fmt.Errorf("profile %q has no feed URL", p.Name)
	}
	row := Profile{
		Name:     p.Name,
		FeedURL:  p.FeedURL,
		Policy:   int(p.Policy),
		Priority: p.Priority,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "feed_url"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "policy", "priority", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return feedsnake.SourceProfile{}, fmt.Errorf("failed to save profile %s: %w", p.FeedURL, err)
	}

	// The upsert does not report the id of an updated row
	var stored Profile
	if err := s.db.WithContext(ctx).Where("feed_url = ?", p.FeedURL).First(&stored).Error; err != nil {
		return feedsnake.SourceProfile{}, err
	}
	return stored.toSource(), nil
}

// GetProfile returns one profile.
func (s *Store) GetProfile(ctx context.Context, id uint) (feedsnake.SourceProfile, error) {
	var p Profile
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return feedsnake.SourceProfile{}, ErrProfileNotFound
		}
		return feedsnake.SourceProfile{}, err
	}
	return p.toSource(), nil
}

// ListProfiles returns every profile, disabled ones included, by id.
func (s *Store) ListProfiles(ctx context.Context) ([]feedsnake.SourceProfile, error) {
	var rows []Profile
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toSources(rows), nil
}

// ListProfilesDueForHarvest returns the enabled profiles with a feed URL,
// highest priority first, then the ones harvested longest ago.
func (s *Store) ListProfilesDueForHarvest(ctx context.Context) ([]feedsnake.SourceProfile, error) {
	var rows []Profile
	if err := s.db.WithContext(ctx).
		Where("feed_url <> '' AND disabled = ?", false).
		Order("priority DESC").
		Order("last_harvest ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toSources(rows), nil
}

// UpdateLastHarvest records a clean harvest of a profile.
func (s *Store) UpdateLastHarvest(ctx context.Context, profileID uint, ts int64) error {
	res := s.db.WithContext(ctx).Model(&Profile{}).
		Where("id = ?", profileID).
		Update("last_harvest", ts)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// SetDisabled takes a profile out of, or back into, the harvest rotation.
func (s *Store) SetDisabled(ctx context.Context, profileID uint, disabled bool) error {
	res := s.db.WithContext(ctx).Model(&Profile{}).
		Where("id = ?", profileID).
		Update("disabled", disabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func toSources(rows []Profile) []feedsnake.SourceProfile {
	profiles := make([]feedsnake.SourceProfile, 0, len(rows))
	for i := range rows {
		profiles = append(profiles, rows[i].toSource())
	}
	return profiles
}
