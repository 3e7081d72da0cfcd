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
	"encoding/json"

	"github.com/agentberlin/feedsnake"
)

// Profile is a feed to harvest
type Profile struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	FeedURL     string `gorm:"uniqueIndex;not null"`
	Policy      int    `gorm:"not null;default:3"` // 1 full, 2 quick capture, 3 skip
	Priority    int    `gorm:"default:0"`          // Higher runs first
	LastHarvest int64  `gorm:"default:0"`          // Unix seconds of the last clean harvest
	Disabled    bool   `gorm:"default:false"`
	Items       []Item `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE"`
	CreatedAt   int64  `gorm:"autoCreateTime"`
	UpdatedAt   int64  `gorm:"autoUpdateTime"`
}

// Item is an archived content item
type Item struct {
	ID        uint   `gorm:"primaryKey"`
	ProfileID uint   `gorm:"index;not null"`
	Identity  string `gorm:"uniqueIndex;not null"` // URL without query
	// IdentityHash is xxhash of Identity, stored signed because SQLite has no unsigned integers
	IdentityHash int64  `gorm:"index"`
	URL          string `gorm:"type:text;not null"`
	Title        string `gorm:"type:text"`
	Body         string `gorm:"type:text"`
	Media        string `gorm:"type:text"` // JSON array
	PublishedAt  int64
	Likes        int64
	Complete     bool
	CreatedAt    int64 `gorm:"autoCreateTime"`
}

// GetMediaArray deserializes the Media JSON to []string
func (i *Item) GetMediaArray() []string {
	if i.Media == "" || i.Media == "null" {
		return []string{}
	}
	var media []string
	if err := json.Unmarshal([]byte(i.Media), &media); err != nil {
		return []string{}
	}
	return media
}

// SetMediaArray serializes []string to JSON for Media
func (i *Item) SetMediaArray(media []string) error {
	if media == nil {
		media = []string{}
	}
	data, err := json.Marshal(media)
	if err != nil {
		return err
	}
	i.Media = string(data)
	return nil
}

func (p *Profile) toSource() feedsnake.SourceProfile {
	return feedsnake.SourceProfile{
		ID:          p.ID,
		Name:        p.Name,
		FeedURL:     p.FeedURL,
		Policy:      feedsnake.Policy(p.Policy),
		LastHarvest: p.LastHarvest,
		Priority:    p.Priority,
	}
}

func (i *Item) toContent() feedsnake.ContentItem {
	return feedsnake.ContentItem{
		URL:         i.URL,
		Title:       i.Title,
		Body:        i.Body,
		Media:       i.GetMediaArray(),
		PublishedAt: i.PublishedAt,
		Likes:       i.Likes,
		ProfileID:   i.ProfileID,
		Complete:    i.Complete,
	}
}
