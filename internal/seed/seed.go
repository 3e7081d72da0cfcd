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

// Package seed imports tracked profiles from a YAML file:
//
//	defaults:
//	  policy: quick
//	profiles:
//	  - name: brand
//	    feed_url: https://www.xiaohongshu.com/user/profile/5f0c...
//	    policy: full
//	    priority: 5
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/agentberlin/feedsnake"
	"gopkg.in/yaml.v3"
)

// File is the layout of a seed file.
type File struct {
	Defaults Defaults  `yaml:"defaults"`
	Profiles []Profile `yaml:"profiles"`
}

// Defaults apply to profiles that leave a field out.
type Defaults struct {
	Policy   feedsnake.Policy `yaml:"policy"`
	Priority int              `yaml:"priority"`
}

// Profile is one entry of a seed file.
type Profile struct {
	Name     string           `yaml:"name"`
	FeedURL  string           `yaml:"feed_url"`
	Policy   feedsnake.Policy `yaml:"policy"`
	Priority *int             `yaml:"priority"`
}

// ProfileWriter is implemented by both archive backends.
type ProfileWriter interface {
	UpsertProfile(ctx context.Context, p feedsnake.SourceProfile) (feedsnake.SourceProfile, error)
}

// Parse reads a seed file and resolves its profiles.
func Parse(r io.Reader) ([]feedsnake.SourceProfile, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return f.Resolve()
}

// Resolve applies the defaults and checks every entry. Profiles without a
// policy fall back to the file defaults, then to Skip, the policy new
// profiles get in the archive. All problems are reported together.
func (f File) Resolve() ([]feedsnake.SourceProfile, error) {
	defaultPolicy := f.Defaults.Policy
	if defaultPolicy == 0 {
		defaultPolicy = feedsnake.PolicySkip
	}

	var (
		profiles []feedsnake.SourceProfile
		errs     []error
		seen     = make(map[string]int)
	)
	for i, p := range f.Profiles {
		feedURL := strings.TrimSpace(p.FeedURL)
		if feedURL == "" {
			errs = append(errs, fmt.Errorf("profile %d (%s): feed_url is required", i+1, p.Name))
			continue
		}
		if first, dup := seen[feedURL]; dup {
			errs = append(errs, fmt.Errorf("profile %d: feed_url %s repeats profile %d", i+1, feedURL, first))
			continue
		}
		seen[feedURL] = i + 1

		sp := feedsnake.SourceProfile{
			Name:     strings.TrimSpace(p.Name),
			FeedURL:  feedURL,
			Policy:   p.Policy,
			Priority: f.Defaults.Priority,
		}
		if sp.Name == "" {
			sp.Name = feedURL
		}
		if sp.Policy == 0 {
			sp.Policy = defaultPolicy
		}
		if p.Priority != nil {
			sp.Priority = *p.Priority
		}
		profiles = append(profiles, sp)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return profiles, nil
}

// ParseFile parses the seed file at path.
func ParseFile(path string) ([]feedsnake.SourceProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Apply upserts profiles in order and returns the stored versions. A
// profile whose feed URL is already tracked is updated in place, so seeding
// twice is harmless.
func Apply(ctx context.Context, w ProfileWriter, profiles []feedsnake.SourceProfile) ([]feedsnake.SourceProfile, error) {
	stored := make([]feedsnake.SourceProfile, 0, len(profiles))
	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		saved, err := w.UpsertProfile(ctx, p)
		if err != nil {
			return stored, fmt.Errorf("failed to seed %s: %w", p.FeedURL, err)
		}
		stored = append(stored, saved)
	}
	return stored, nil
}
