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

// Package replay runs harvests against saved pages instead of a live site.
// It answers "do the selectors still match" without a browser or a login.
//
// A manifest lists the saved pages and the profiles to harvest:
//
//	profiles:
//	  - name: brand
//	    feed_url: https://www.xiaohongshu.com/user/profile/aaa
//	    policy: full
//	pages:
//	  - url: https://www.xiaohongshu.com/user/profile/aaa
//	    files: [feed-1.html, feed-2.html]
//	  - url: https://www.xiaohongshu.com/explore/123?xsec_token=t
//	    files: [item-123.html]
//	    content_type: text/html; charset=gbk
//
// Each file of a page is one rendering; scrolling advances to the next.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/agentberlin/feedsnake"
	"github.com/agentberlin/feedsnake/internal/seed"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Manifest describes a replay.
type Manifest struct {
	seed.File `yaml:",inline"`
	Pages     []Page `yaml:"pages"`

	// dir resolves relative file names.
	dir string
}

// Page is one saved URL.
type Page struct {
	URL         string   `yaml:"url"`
	Files       []string `yaml:"files"`
	ContentType string   `yaml:"content_type"`
	// Extents overrides the page height reported for each rendering.
	Extents []int64 `yaml:"extents"`
	// Unavailable makes navigation to URL fail, like a deleted item.
	Unavailable bool `yaml:"unavailable"`
}

// Load reads a manifest. Page files are resolved relative to it.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()
	return Parse(f, filepath.Dir(path))
}

// Parse reads a manifest whose page files live in dir.
func Parse(r io.Reader, dir string) (*Manifest, error) {
	m := &Manifest{dir: dir}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	for i, p := range m.Pages {
		if p.URL == "" {
			return nil, fmt.Errorf("page %d has no url", i+1)
		}
		if len(p.Files) == 0 && !p.Unavailable {
			return nil, fmt.Errorf("page %s has no files", p.URL)
		}
	}
	return m, nil
}

// Browser loads every page into a MockBrowser. Files are decoded to UTF-8
// the same way a live page would be.
func (m *Manifest) Browser() (*feedsnake.MockBrowser, error) {
	b := feedsnake.NewMockBrowser()
	for _, p := range m.Pages {
		if p.Unavailable {
			b.RegisterError(p.URL, fmt.Errorf("%s: %w", p.URL, feedsnake.ErrNotAvailable))
			continue
		}
		snapshots := make([]string, 0, len(p.Files))
		for _, name := range p.Files {
			path := name
			if !filepath.IsAbs(path) {
				path = filepath.Join(m.dir, path)
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read page file: %w", err)
			}
			doc, err := feedsnake.DecodeHTML(raw, p.ContentType)
			if err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", path, err)
			}
			snapshots = append(snapshots, doc)
		}
		b.RegisterPage(p.URL, &feedsnake.MockPage{Snapshots: snapshots, Extents: p.Extents})
	}
	return b, nil
}

// Archive is a store that can also take the manifest's profiles.
type Archive interface {
	feedsnake.ContentStore
	seed.ProfileWriter
}

// Pacing is the pacing of a replay: saved pages render instantly, so no
// wait is needed.
func Pacing() feedsnake.PacingConfig {
	cfg := feedsnake.DefaultPacingConfig()
	cfg.ScrollWait = 0
	cfg.DetailWait = 0
	cfg.DetailTimeout = 0
	return cfg
}

// Run seeds the manifest profiles into archive and harvests every due
// profile against the saved pages. Use a scratch archive: profiles already
// in it are harvested too. The login check is off unless opts turn it on,
// since saved pages rarely keep the logged-in markup.
func Run(ctx context.Context, m *Manifest, archive Archive, log *zap.Logger, opts ...feedsnake.HarvesterOption) (feedsnake.BatchResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	profiles, err := m.Resolve()
	if err != nil {
		return feedsnake.BatchResult{}, err
	}
	if _, err := seed.Apply(ctx, archive, profiles); err != nil {
		return feedsnake.BatchResult{}, err
	}
	browser, err := m.Browser()
	if err != nil {
		return feedsnake.BatchResult{}, err
	}
	defer browser.Close()

	options := append([]feedsnake.HarvesterOption{
		feedsnake.WithSettings(feedsnake.NewSettings(Pacing())),
		feedsnake.WithLoginCheck(0),
		feedsnake.WithLogger(log),
	}, opts...)

	runner := feedsnake.NewRunner(feedsnake.RunnerConfig{
		Store:   archive,
		Browser: browser,
		Options: options,
		Logger:  log,
	})
	batch, err := runner.Run(ctx)
	log.Info("replay finished",
		zap.Int("profiles", batch.Profiles),
		zap.Int("completed", batch.Completed),
		zap.Int("failed", batch.Failed),
		zap.Int("pages", len(browser.Navigations())))
	return batch, err
}
