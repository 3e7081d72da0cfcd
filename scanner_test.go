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
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedURL = "https://www.xiaohongshu.com/user/profile/owner"

// feedSnapshot renders a logged-in feed showing one card per id.
func feedSnapshot(ids ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="user side-bar-component">me</div><div class="feeds-container">`)
	for _, id := range ids {
		fmt.Fprintf(&b, `<section class="note-item">
			<a class="cover mask ld" href="/user/profile/owner/%[1]s?xsec_token=t%[1]s&amp;xsec_source=pc_user">
				<img src="https://sns-img.xhscdn.com/%[1]s.jpg?imageView2/2/w/540">
			</a>
			<div class="footer"><a class="title"><span>title %[1]s</span></a></div>
		</section>`, id)
	}
	b.WriteString(`<a href="/user/profile/owner">owner</a><a href="/explore">explore</a></div></body></html>`)
	return b.String()
}

func ids(prefix string, from, to int) []string {
	var out []string
	for i := from; i <= to; i++ {
		out = append(out, fmt.Sprintf("%s%d", prefix, i))
	}
	return out
}

func newTestScanner(t *testing.T, b *MockBrowser, store ContentStore, settings *Settings, onDelta DeltaFunc) (*Scanner, *RunState) {
	t.Helper()
	page := b.Page()
	require.NoError(t, page.Navigate(context.Background(), feedURL))
	state := NewRunState()
	s, err := NewScanner(page, NewLedger(store, state), ScannerConfig{Settings: settings, OnDelta: onDelta})
	require.NoError(t, err)
	return s, state
}

func TestScannerStopsAfterStalls(t *testing.T) {
	b := NewMockBrowser()
	b.RegisterFeed(feedURL,
		feedSnapshot(ids("n", 1, 3)...),
		feedSnapshot(ids("n", 1, 6)...),
		feedSnapshot(ids("n", 1, 9)...),
	)

	s, state := newTestScanner(t, b, newMemStore(), fastSettings(), nil)
	links, err := s.Run(context.Background())
	require.NoError(t, err)

	// Two ticks grow the page, three more see no growth.
	assert.Equal(t, 5, state.Ticks)
	assert.Equal(t, Exhausted, s.State())
	require.Len(t, links, 9)
	assert.Equal(t, "https://www.xiaohongshu.com/explore/n1?xsec_token=tn1&xsec_source=pc_user", links[0].Canonical)
	assert.Equal(t, 1, links[0].Tick)
	assert.Equal(t, 2, links[3].Tick)
	assert.Equal(t, 3, links[8].Tick)
}

func TestScannerRespectsBudget(t *testing.T) {
	b := NewMockBrowser()
	snapshots := make([]string, 0, 30)
	for i := 1; i <= 30; i++ {
		snapshots = append(snapshots, feedSnapshot(ids("n", 1, i)...))
	}
	b.RegisterFeed(feedURL, snapshots...)

	settings := fastSettings()
	settings.SetMaxScrolls(4)
	s, state := newTestScanner(t, b, newMemStore(), settings, nil)

	links, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, state.Ticks)
	assert.Len(t, links, 4)
	assert.Equal(t, 4, b.Scrolls())
}

func TestScannerBudgetReadLive(t *testing.T) {
	b := NewMockBrowser()
	snapshots := make([]string, 0, 10)
	for i := 1; i <= 10; i++ {
		snapshots = append(snapshots, feedSnapshot(ids("n", 1, i)...))
	}
	b.RegisterFeed(feedURL, snapshots...)

	settings := fastSettings()
	s, state := newTestScanner(t, b, newMemStore(), settings, func(ctx context.Context, tick int, delta []DiscoveredLink) error {
		if tick == 2 {
			settings.SetMaxScrolls(3)
		}
		return nil
	})

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, state.Ticks)
}

func TestScannerDeltaOnlyNewLinks(t *testing.T) {
	b := NewMockBrowser()
	b.RegisterFeed(feedURL,
		feedSnapshot("a", "b", "a"),
		feedSnapshot("a", "b", "c"),
	)

	var deltas [][]string
	s, _ := newTestScanner(t, b, newMemStore(), fastSettings(), func(ctx context.Context, tick int, delta []DiscoveredLink) error {
		var got []string
		for _, l := range delta {
			got = append(got, Identity(l.Canonical))
		}
		deltas = append(deltas, got)
		return nil
	})

	links, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, [][]string{
		{exploreBase + "a", exploreBase + "b"},
		{exploreBase + "c"},
	}, deltas)
}

func TestScannerExtractionFailureCountsAsEmptyTick(t *testing.T) {
	b := NewMockBrowser()
	b.RegisterFeed(feedURL, feedSnapshot("a"))

	s, state := newTestScanner(t, b, newMemStore(), fastSettings(), nil)
	s.cfg.Selectors.FeedLink = "//a[@href"

	links, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, links)
	// A single snapshot reports the same extent after its first growth.
	assert.Equal(t, 4, state.Ticks)
}

func TestScannerDriverLost(t *testing.T) {
	b := NewMockBrowser()
	b.RegisterFeed(feedURL, feedSnapshot("a"), feedSnapshot("a", "b"))

	s, _ := newTestScanner(t, b, newMemStore(), fastSettings(), func(ctx context.Context, tick int, delta []DiscoveredLink) error {
		b.SetLost(true)
		return nil
	})

	links, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrDriverLost)
	assert.Len(t, links, 1)
}

func TestScannerCancelledWhileSettling(t *testing.T) {
	b := NewMockBrowser()
	b.RegisterFeed(feedURL, feedSnapshot("a"), feedSnapshot("a", "b"))

	settings := fastSettings()
	settings.SetScrollWait(time.Minute)
	s, state := newTestScanner(t, b, newMemStore(), settings, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	links, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, state.Ticks)
	assert.Len(t, links, 1)
	assert.Equal(t, Settling, s.State())
}

func TestScannerReportsSettleProgress(t *testing.T) {
	b := NewMockBrowser()
	b.RegisterFeed(feedURL, feedSnapshot("a"))

	page := b.Page()
	require.NoError(t, page.Navigate(context.Background(), feedURL))
	var phases []Phase
	s, err := NewScanner(page, NewLedger(newMemStore(), NewRunState()), ScannerConfig{
		Settings: fastSettings(),
		Budget:   func() int { return 1 },
		Progress: func(p Phase, _, _ time.Duration) { phases = append(phases, p) },
	})
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Phase{PhaseScrollSettle}, phases)
}

func TestNewScannerRejectsBadGlob(t *testing.T) {
	_, err := NewScanner(NewMockBrowser().Page(), NewLedger(newMemStore(), NewRunState()), ScannerConfig{
		Selectors: Selectors{ItemLinkGlob: "/user/[profile"},
	})
	assert.Error(t, err)
}
