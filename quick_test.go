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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func deltaFor(ids ...string) []DiscoveredLink {
	links := make([]DiscoveredLink, 0, len(ids))
	for _, id := range ids {
		links = append(links, DiscoveredLink{Canonical: exploreBase + id + "?xsec_token=t" + id, Tick: 1})
	}
	return links
}

func TestQuickCaptureBuildsMinimalItems(t *testing.T) {
	ctx := context.Background()
	b := NewMockBrowser()
	b.RegisterHTML(feedURL, feedSnapshot("a", "b", "c"))
	page := b.Page()
	require.NoError(t, page.Navigate(ctx, feedURL))

	store := newMemStore()
	store.seed(4, exploreBase+"b")
	q := NewQuickCapturer(page, NewLedger(store, NewRunState()), DefaultSelectors(), 4, nil)

	items, err := q.Capture(ctx, deltaFor("c", "a", "b"))
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Card order, not delta order.
	assert.Equal(t, exploreBase+"a?xsec_token=ta", items[0].URL)
	assert.Equal(t, exploreBase+"c?xsec_token=tc", items[1].URL)

	a := items[0]
	assert.Equal(t, "title a", a.Title)
	assert.Equal(t, []string{"https://sns-img.xhscdn.com/a.jpg"}, a.Media)
	assert.Equal(t, uint(4), a.ProfileID)
	assert.False(t, a.Complete)
	assert.Zero(t, a.PublishedAt)
	assert.Zero(t, a.Likes)
	assert.Empty(t, b.OpenedPages())
}

func TestQuickCaptureIgnoresCardsOutsideDelta(t *testing.T) {
	ctx := context.Background()
	b := NewMockBrowser()
	b.RegisterHTML(feedURL, feedSnapshot("a", "b"))
	page := b.Page()
	require.NoError(t, page.Navigate(ctx, feedURL))

	q := NewQuickCapturer(page, NewLedger(newMemStore(), NewRunState()), Selectors{}, 1, nil)
	items, err := q.Capture(ctx, deltaFor("b"))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, exploreBase+"b?xsec_token=tb", items[0].URL)
}

func TestQuickCaptureDefaultsAndClipping(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	long := strings.Repeat("长", MaxTitleLength+50)

	b := NewMockBrowser()
	b.RegisterHTML(feedURL, `<html><body>
		<section class="note-item">
			<a href="/user/profile/owner/bare">no cover, no title</a>
		</section>
		<section class="note-item">
			<a class="cover mask ld" href="/user/profile/owner/long"></a>
			<div class="title"><span>`+long+`</span></div>
		</section>
	</body></html>`)
	page := b.Page()
	require.NoError(t, page.Navigate(ctx, feedURL))

	q := NewQuickCapturer(page, NewLedger(newMemStore(), NewRunState()), DefaultSelectors(), 1, zap.New(core))
	items, err := q.Capture(ctx, []DiscoveredLink{
		{Canonical: exploreBase + "bare"},
		{Canonical: exploreBase + "long"},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, UntitledPlaceholder, items[0].Title)
	assert.Nil(t, items[0].Media)
	assert.Equal(t, MaxTitleLength, len([]rune(items[1].Title)))

	assert.Equal(t, 1, logs.FilterMessage("card has no title").Len())
	assert.Equal(t, 2, logs.FilterMessage("card has no cover").Len())
}

func TestQuickCaptureDriverLost(t *testing.T) {
	ctx := context.Background()
	b := NewMockBrowser()
	b.RegisterHTML(feedURL, feedSnapshot("a"))
	page := b.Page()
	require.NoError(t, page.Navigate(ctx, feedURL))
	b.SetLost(true)

	q := NewQuickCapturer(page, NewLedger(newMemStore(), NewRunState()), DefaultSelectors(), 1, nil)
	_, err := q.Capture(ctx, deltaFor("a"))
	assert.ErrorIs(t, err, ErrDriverLost)
}
