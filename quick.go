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

package feedsnake

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// QuickCapturer builds minimal items from the feed cards that are already
// rendered. It never navigates.
type QuickCapturer struct {
	page      Page
	ledger    *Ledger
	selectors Selectors
	logger    *zap.Logger
	profileID uint
}

// NewQuickCapturer creates a capturer reading cards from page.
func NewQuickCapturer(page Page, ledger *Ledger, selectors Selectors, profileID uint, logger *zap.Logger) *QuickCapturer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuickCapturer{
		page:      page,
		ledger:    ledger,
		selectors: selectors.withDefaults(),
		logger:    logger,
		profileID: profileID,
	}
}

// Capture returns one item per card whose link is in delta and not archived
// yet, in card order. Items have Complete set to false and carry no publish
// time or engagement count.
func (q *QuickCapturer) Capture(ctx context.Context, delta []DiscoveredLink) ([]ContentItem, error) {
	wanted := make(map[string]DiscoveredLink, len(delta))
	for _, link := range delta {
		wanted[Identity(link.Canonical)] = link
	}

	base, err := q.page.URL(ctx)
	if err != nil {
		return nil, err
	}
	cards, err := q.page.FindAll(ctx, q.selectors.FeedCard)
	if err != nil {
		return nil, err
	}

	var items []ContentItem
	for _, card := range cards {
		href, err := q.cardHref(ctx, card)
		if err != nil {
			if errors.Is(err, ErrDriverLost) {
				return items, err
			}
			continue
		}
		identity := Identity(Canonicalize(ResolveLink(base, href)))
		link, ok := wanted[identity]
		if !ok {
			continue
		}
		delete(wanted, identity)

		process, err := q.ledger.ShouldProcess(ctx, identity)
		if err != nil {
			q.logger.Error("archive check failed, skipping card", zap.String("url", identity), zap.Error(err))
			continue
		}
		if !process {
			continue
		}

		item := ContentItem{
			URL:       link.Canonical,
			Title:     q.cardTitle(ctx, card, identity),
			ProfileID: q.profileID,
		}
		if cover := q.cardCover(ctx, card, identity); cover != "" {
			item.Media = []string{cover}
		}
		items = append(items, item)
	}
	return items, nil
}

func (q *QuickCapturer) cardHref(ctx context.Context, card Element) (string, error) {
	link, err := card.Find(ctx, q.selectors.CardLink)
	if errors.Is(err, ErrNotFound) {
		link, err = card.Find(ctx, q.selectors.FeedLink)
	}
	if err != nil {
		return "", err
	}
	return link.Attr(ctx, "href")
}

func (q *QuickCapturer) cardTitle(ctx context.Context, card Element, identity string) string {
	title := ""
	if el, err := card.Find(ctx, q.selectors.CardTitle); err == nil {
		if text, err := el.Text(ctx); err == nil {
			title = strings.TrimSpace(text)
		}
	}
	if title == "" {
		q.logger.Warn("card has no title", zap.String("url", identity), zap.String("field", "title"))
		return UntitledPlaceholder
	}
	return clip(title, MaxTitleLength)
}

// cardCover returns the first CDN image of the card without its query.
func (q *QuickCapturer) cardCover(ctx context.Context, card Element, identity string) string {
	img, err := card.Find(ctx, q.selectors.CardCover)
	if err == nil {
		var src string
		if src, err = img.Attr(ctx, "src"); err == nil {
			cover, _, _ := strings.Cut(strings.TrimSpace(src), "?")
			return cover
		}
	}
	q.logger.Warn("card has no cover", zap.String("url", identity), zap.String("field", "cover"), zap.Error(err))
	return ""
}
