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

// Package feedsnake harvests items from the infinite-scroll feeds of tracked
// profiles. It scrolls a feed until it stops growing, keeps only the items the
// content store has not archived yet, and either captures them straight from
// the feed cards or opens each one to extract its full details.
package feedsnake

import (
	"context"
	"errors"
)

const (
	// MaxTitleLength bounds ContentItem.Title, in runes.
	MaxTitleLength = 600
	// MaxBodyLength bounds ContentItem.Body, in runes.
	MaxBodyLength = 2000
	// UntitledPlaceholder is stored as the title of quick captures whose card has none.
	UntitledPlaceholder = "无标题"
)

var (
	// ErrNotAvailable is returned by the detail fetcher when an item page cannot be reached
	// or never renders its detail container.
	ErrNotAvailable = errors.New("feedsnake: item not available")
	// ErrSessionExpired means the feed was served without a logged-in session.
	ErrSessionExpired = errors.New("feedsnake: session expired or login required")
	// ErrDriverLost means the automation handle crashed or was closed underneath us.
	// It is fatal for the whole batch.
	ErrDriverLost = errors.New("feedsnake: automation driver lost")
	// ErrStopped is returned when a harvest was cancelled cooperatively.
	ErrStopped = errors.New("feedsnake: harvest stopped")
	// ErrDuplicate is returned by a ContentStore when an insert hits an existing identity.
	ErrDuplicate = errors.New("feedsnake: item already stored")
)

// SourceProfile is a tracked feed owner.
type SourceProfile struct {
	ID          uint
	Name        string
	FeedURL     string
	Policy      Policy
	LastHarvest int64 // unix seconds, 0 if never harvested
	Priority    int   // higher priorities are harvested first
}

// ContentItem is one harvested record. Complete is false for quick captures,
// which carry no publish time and no engagement count.
type ContentItem struct {
	URL         string
	Title       string
	Body        string
	Media       []string
	PublishedAt int64
	Likes       int64
	ProfileID   uint
	Complete    bool
}

// DiscoveredLink is an item link seen in a feed during one harvest.
type DiscoveredLink struct {
	Raw       string
	Canonical string
	Tick      int
}

// ContentStore is the durable archive the engine deduplicates against.
type ContentStore interface {
	// Exists reports whether an item with this identity is archived.
	Exists(ctx context.Context, identity string) (bool, error)
	// Insert stores an item. Implementations return an error wrapping
	// ErrDuplicate when the identity is already present.
	Insert(ctx context.Context, item ContentItem) error
	UpdateLastHarvest(ctx context.Context, profileID uint, ts int64) error
	// ListProfilesDueForHarvest returns profiles ordered by priority
	// (highest first) then by last harvest (oldest first).
	ListProfilesDueForHarvest(ctx context.Context) ([]SourceProfile, error)
	CountItems(ctx context.Context, profileID uint) (int64, error)
}

// clip truncates s to at most n runes.
func clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
