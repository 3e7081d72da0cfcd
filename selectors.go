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
	"fmt"

	"github.com/gobwas/glob"
)

// Selectors locate things on feed and item pages. Site redesigns usually
// only need new values here.
type Selectors struct {
	// FeedLink matches every item link rendered in a feed.
	FeedLink string `mapstructure:"feed_link" yaml:"feed_link"`
	// ItemLinkGlob filters FeedLink hrefs down to item links.
	ItemLinkGlob string `mapstructure:"item_link_glob" yaml:"item_link_glob"`
	FeedCard     string `mapstructure:"feed_card" yaml:"feed_card"`
	CardLink     string `mapstructure:"card_link" yaml:"card_link"`
	CardCover    string `mapstructure:"card_cover" yaml:"card_cover"`
	CardTitle    string `mapstructure:"card_title" yaml:"card_title"`

	// LoggedIn is only rendered for an authenticated session.
	LoggedIn string `mapstructure:"logged_in" yaml:"logged_in"`

	DetailContainer string `mapstructure:"detail_container" yaml:"detail_container"`
	DetailTime      string `mapstructure:"detail_time" yaml:"detail_time"`
	DetailLikes     string `mapstructure:"detail_likes" yaml:"detail_likes"`
	DetailVideo     string `mapstructure:"detail_video" yaml:"detail_video"`
	DetailPoster    string `mapstructure:"detail_poster" yaml:"detail_poster"`
	DetailGallery   string `mapstructure:"detail_gallery" yaml:"detail_gallery"`
	DetailBody      string `mapstructure:"detail_body" yaml:"detail_body"`
	DetailTitle     string `mapstructure:"detail_title" yaml:"detail_title"`
}

// DefaultSelectors returns the selectors for xiaohongshu.com.
func DefaultSelectors() Selectors {
	return Selectors{
		FeedLink:     `a[href^="/user/profile/"]`,
		ItemLinkGlob: "/user/profile/*/*",
		FeedCard:     ".note-item",
		CardLink:     "a.cover.mask.ld",
		CardCover:    `img[src*="xhscdn.com"]`,
		CardTitle:    ".title > span",

		LoggedIn: ".user.side-bar-component",

		DetailContainer: ".note-container",
		DetailTime:      ".bottom-container .date",
		DetailLikes:     ".interact-container .like-active .count",
		DetailVideo:     ".player-container",
		DetailPoster:    "xg-poster.xgplayer-poster",
		DetailGallery:   ".swiper-wrapper img",
		DetailBody:      ".note-content .desc",
		DetailTitle:     "#detail-title",
	}
}

// withDefaults fills empty selectors from DefaultSelectors.
func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	for _, f := range []struct{ v, def *string }{
		{&s.FeedLink, &d.FeedLink},
		{&s.ItemLinkGlob, &d.ItemLinkGlob},
		{&s.FeedCard, &d.FeedCard},
		{&s.CardLink, &d.CardLink},
		{&s.CardCover, &d.CardCover},
		{&s.CardTitle, &d.CardTitle},
		{&s.LoggedIn, &d.LoggedIn},
		{&s.DetailContainer, &d.DetailContainer},
		{&s.DetailTime, &d.DetailTime},
		{&s.DetailLikes, &d.DetailLikes},
		{&s.DetailVideo, &d.DetailVideo},
		{&s.DetailPoster, &d.DetailPoster},
		{&s.DetailGallery, &d.DetailGallery},
		{&s.DetailBody, &d.DetailBody},
		{&s.DetailTitle, &d.DetailTitle},
	} {
		if *f.v == "" {
			*f.v = *f.def
		}
	}
	return s
}

// linkFilter accepts item hrefs. The glob matches the path of relative and
// absolute links alike, and '/' separates glob segments so a single '*'
// never spans two path elements.
type linkFilter struct {
	pattern glob.Glob
}

func newLinkFilter(pattern string) (*linkFilter, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("invalid item link glob %q: %w", pattern, err)
	}
	return &linkFilter{pattern: g}, nil
}

func (f *linkFilter) Match(href string) bool {
	return f.pattern.Match(linkPath(href))
}
