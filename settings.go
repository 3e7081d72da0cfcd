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
	"sync/atomic"
	"time"
)

// PacingConfig holds the tunables read by the engine while it runs.
type PacingConfig struct {
	// ScrollWait is the settle time after each scroll-to-bottom.
	ScrollWait time.Duration
	// DetailWait is the pause on an item page once its container rendered.
	DetailWait time.Duration
	// DetailTimeout bounds the wait for an item page's container.
	DetailTimeout time.Duration
	// MaxScrolls is the scroll budget of a profile harvest.
	MaxScrolls int
	// StallThreshold is the number of consecutive ticks without growth
	// after which a feed is considered exhausted.
	StallThreshold int
	// ArchivedThreshold is the archived item count above which a full
	// harvest only probes the top of the feed.
	ArchivedThreshold int
}

// DefaultPacingConfig returns the pacing used when nothing is configured.
func DefaultPacingConfig() PacingConfig {
	return PacingConfig{
		ScrollWait:        10500 * time.Millisecond,
		DetailWait:        5 * time.Second,
		DetailTimeout:     15 * time.Second,
		MaxScrolls:        20,
		StallThreshold:    6,
		ArchivedThreshold: 20,
	}
}

// Settings is the live view of a PacingConfig. Every accessor reads the
// current value, so a controller may retune a harvest that is under way.
// The zero value is not usable; call NewSettings.
type Settings struct {
	scrollWait        atomic.Int64
	detailWait        atomic.Int64
	detailTimeout     atomic.Int64
	maxScrolls        atomic.Int64
	stallThreshold    atomic.Int64
	archivedThreshold atomic.Int64
}

// NewSettings creates live settings initialised from cfg.
func NewSettings(cfg PacingConfig) *Settings {
	s := &Settings{}
	s.Apply(cfg)
	return s
}

// Apply replaces every value. Negative durations are clamped to zero and
// the scroll budget and stall threshold to at least one.
func (s *Settings) Apply(cfg PacingConfig) {
	s.scrollWait.Store(int64(max(cfg.ScrollWait, 0)))
	s.detailWait.Store(int64(max(cfg.DetailWait, 0)))
	s.detailTimeout.Store(int64(max(cfg.DetailTimeout, 0)))
	s.maxScrolls.Store(int64(max(cfg.MaxScrolls, 1)))
	s.stallThreshold.Store(int64(max(cfg.StallThreshold, 1)))
	s.archivedThreshold.Store(int64(max(cfg.ArchivedThreshold, 0)))
}

// Snapshot returns the current values.
func (s *Settings) Snapshot() PacingConfig {
	return PacingConfig{
		ScrollWait:        s.ScrollWait(),
		DetailWait:        s.DetailWait(),
		DetailTimeout:     s.DetailTimeout(),
		MaxScrolls:        s.MaxScrolls(),
		StallThreshold:    s.StallThreshold(),
		ArchivedThreshold: s.ArchivedThreshold(),
	}
}

func (s *Settings) ScrollWait() time.Duration    { return time.Duration(s.scrollWait.Load()) }
func (s *Settings) DetailWait() time.Duration    { return time.Duration(s.detailWait.Load()) }
func (s *Settings) DetailTimeout() time.Duration { return time.Duration(s.detailTimeout.Load()) }
func (s *Settings) MaxScrolls() int              { return int(s.maxScrolls.Load()) }
func (s *Settings) StallThreshold() int          { return int(s.stallThreshold.Load()) }
func (s *Settings) ArchivedThreshold() int       { return int(s.archivedThreshold.Load()) }

func (s *Settings) SetScrollWait(d time.Duration)    { s.scrollWait.Store(int64(max(d, 0))) }
func (s *Settings) SetDetailWait(d time.Duration)    { s.detailWait.Store(int64(max(d, 0))) }
func (s *Settings) SetDetailTimeout(d time.Duration) { s.detailTimeout.Store(int64(max(d, 0))) }
func (s *Settings) SetMaxScrolls(n int)              { s.maxScrolls.Store(int64(max(n, 1))) }
func (s *Settings) SetStallThreshold(n int)          { s.stallThreshold.Store(int64(max(n, 1))) }
func (s *Settings) SetArchivedThreshold(n int)       { s.archivedThreshold.Store(int64(max(n, 0))) }
