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
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	lineBreaks = regexp.MustCompile(`[\r\n]+`)
	styleURL   = regexp.MustCompile(`url\(\s*(?:&quot;|["'])?(.*?)(?:&quot;|["'])?\s*\)`)
)

// Field is the outcome of extracting one value. When Found is false, Value
// holds the default and Err says why.
type Field[T any] struct {
	Value T
	Found bool
	Err   error
}

func foundField[T any](v T) Field[T] {
	return Field[T]{Value: v, Found: true}
}

func missingField[T any](err error) Field[T] {
	return Field[T]{Err: err}
}

// DetailConfig configures a DetailFetcher.
type DetailConfig struct {
	Settings  *Settings
	Selectors Selectors
	ProfileID uint
	Progress  ProgressFunc
	Logger    *zap.Logger
	// Now is the reference time for relative publish times; defaults to time.Now.
	Now func() time.Time
}

// DetailFetcher opens items in their own tab and extracts the full record.
type DetailFetcher struct {
	browser Browser
	cfg     DetailConfig
}

// NewDetailFetcher creates a fetcher opening tabs on browser.
func NewDetailFetcher(browser Browser, cfg DetailConfig) *DetailFetcher {
	if cfg.Settings == nil {
		cfg.Settings = NewSettings(DefaultPacingConfig())
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Selectors = cfg.Selectors.withDefaults()
	return &DetailFetcher{browser: browser, cfg: cfg}
}

// FetchDetail opens url in a new tab, waits for the item to render and
// extracts every field. A missing field falls back to its zero value and
// never fails the item. When the page cannot be loaded or never renders,
// the error wraps ErrNotAvailable. The tab is closed and the feed tab
// brought back to the front on every path.
func (f *DetailFetcher) FetchDetail(ctx context.Context, url string) (item ContentItem, err error) {
	log := f.cfg.Logger.With(zap.Uint("profile", f.cfg.ProfileID), zap.String("url", url))
	sel := f.cfg.Selectors

	page, err := f.browser.OpenPage(ctx, url)
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if page != nil {
			if cerr := page.Close(); cerr != nil {
				log.Warn("failed to close item tab", zap.Error(cerr))
			}
		}
		if aerr := f.browser.Page().Activate(cleanupCtx); aerr != nil {
			log.Warn("failed to return to feed tab", zap.Error(aerr))
			if err == nil && errors.Is(aerr, ErrDriverLost) {
				err = aerr
			}
		}
	}()
	if err != nil {
		if errors.Is(err, ErrDriverLost) || ctx.Err() != nil {
			return ContentItem{}, err
		}
		return ContentItem{}, fmt.Errorf("failed to open %s: %w: %w", url, ErrNotAvailable, err)
	}

	marker := Wait{Phase: PhaseDetailMarker, Total: f.cfg.Settings.DetailTimeout(), Progress: f.cfg.Progress}
	if err := WaitUntil(ctx, marker, ElementPresent(page, sel.DetailContainer)); err != nil {
		if errors.Is(err, ErrWaitTimeout) {
			return ContentItem{}, fmt.Errorf("%s never rendered %s: %w: %w", url, sel.DetailContainer, ErrNotAvailable, err)
		}
		return ContentItem{}, err
	}

	pacing := Wait{Phase: PhaseDetailWait, Total: f.cfg.Settings.DetailWait(), Progress: f.cfg.Progress}
	if err := WaitUntil(ctx, pacing, nil); err != nil {
		return ContentItem{}, err
	}

	published := f.publishTime(ctx, page)
	likes := f.likes(ctx, page)
	media := f.media(ctx, page)
	body := f.body(ctx, page)
	title := f.title(ctx, page)

	for name, field := range map[string]struct {
		found bool
		err   error
	}{
		"published_at": {published.Found, published.Err},
		"likes":        {likes.Found, likes.Err},
		"media":        {media.Found, media.Err},
		"body":         {body.Found, body.Err},
		"title":        {title.Found, title.Err},
	} {
		if !field.found {
			if errors.Is(field.err, ErrDriverLost) {
				return ContentItem{}, field.err
			}
			log.Warn("field extraction failed, using default", zap.String("field", name), zap.Error(field.err))
		}
	}

	return ContentItem{
		URL:         url,
		Title:       title.Value,
		Body:        body.Value,
		Media:       media.Value,
		PublishedAt: published.Value,
		Likes:       likes.Value,
		ProfileID:   f.cfg.ProfileID,
		Complete:    true,
	}, nil
}

func (f *DetailFetcher) text(ctx context.Context, page Page, selector string) (string, error) {
	el, err := page.Find(ctx, selector)
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}

func (f *DetailFetcher) publishTime(ctx context.Context, page Page) Field[int64] {
	text, err := f.text(ctx, page, f.cfg.Selectors.DetailTime)
	if err != nil {
		return missingField[int64](err)
	}
	return foundField(NormalizeTime(text, f.cfg.Now()))
}

func (f *DetailFetcher) likes(ctx context.Context, page Page) Field[int64] {
	text, err := f.text(ctx, page, f.cfg.Selectors.DetailLikes)
	if err != nil {
		return missingField[int64](err)
	}
	return foundField(ParseEngagement(text))
}

// media returns the video poster, or the gallery images in carousel order.
func (f *DetailFetcher) media(ctx context.Context, page Page) Field[[]string] {
	sel := f.cfg.Selectors
	if _, err := page.Find(ctx, sel.DetailVideo); err == nil {
		poster, err := page.Find(ctx, sel.DetailPoster)
		if err != nil {
			return Field[[]string]{Value: []string{}, Err: err}
		}
		style, err := poster.Attr(ctx, "style")
		if err != nil {
			return Field[[]string]{Value: []string{}, Err: err}
		}
		u := PosterURL(style)
		if u == "" {
			return Field[[]string]{Value: []string{}, Err: fmt.Errorf("no url in poster style %q", style)}
		}
		return foundField([]string{u})
	} else if errors.Is(err, ErrDriverLost) {
		return Field[[]string]{Value: []string{}, Err: err}
	}

	imgs, err := page.FindAll(ctx, sel.DetailGallery)
	if err != nil {
		return Field[[]string]{Value: []string{}, Err: err}
	}
	seen := make(map[string]struct{}, len(imgs))
	media := make([]string, 0, len(imgs))
	for _, img := range imgs {
		src, err := img.Attr(ctx, "src")
		if err != nil || !strings.HasPrefix(src, "http") {
			continue
		}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		media = append(media, src)
	}
	if len(media) == 0 {
		return Field[[]string]{Value: media, Err: fmt.Errorf("%s: %w", sel.DetailGallery, ErrNotFound)}
	}
	return foundField(media)
}

func (f *DetailFetcher) body(ctx context.Context, page Page) Field[string] {
	text, err := f.text(ctx, page, f.cfg.Selectors.DetailBody)
	if err != nil {
		return missingField[string](err)
	}
	return foundField(clip(strings.TrimSpace(lineBreaks.ReplaceAllString(text, " ")), MaxBodyLength))
}

func (f *DetailFetcher) title(ctx context.Context, page Page) Field[string] {
	text, err := f.text(ctx, page, f.cfg.Selectors.DetailTitle)
	if err != nil {
		return missingField[string](err)
	}
	return foundField(clip(strings.TrimSpace(text), MaxTitleLength))
}

// ParseEngagement parses a like counter such as "1.2万", "3.5k" or "128".
// Anything else, including placeholders like "--" or "赞", yields 0.
func ParseEngagement(text string) int64 {
	s := strings.TrimSuffix(strings.TrimSpace(text), "+")

	multiplier := 0.0
	switch {
	case strings.HasSuffix(s, "万"):
		s, multiplier = strings.TrimSuffix(s, "万"), 10000
	case strings.HasSuffix(s, "w"), strings.HasSuffix(s, "W"):
		s, multiplier = s[:len(s)-1], 10000
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		s, multiplier = s[:len(s)-1], 1000
	}

	if multiplier > 0 {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0
		}
		return int64(math.Round(v * multiplier))
	}

	if s == "" || strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// PosterURL extracts the image URL from an inline style such as
// background-image: url("https://..."), with HTML-escaped quotes removed.
func PosterURL(style string) string {
	m := styleURL.FindStringSubmatch(style)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(m[1], "&quot;", ""))
}
