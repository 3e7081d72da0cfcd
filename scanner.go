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

	"go.uber.org/zap"
)

// ScanState is the state of a Scanner.
type ScanState int

const (
	Scanning ScanState = iota
	Settling
	Exhausted
)

func (s ScanState) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case Settling:
		return "settling"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("ScanState(%d)", int(s))
	}
}

// DeltaFunc receives the links that became visible in one tick, before they
// are merged into the run's discovered set.
type DeltaFunc func(ctx context.Context, tick int, delta []DiscoveredLink) error

// ScannerConfig configures a Scanner.
type ScannerConfig struct {
	Settings  *Settings
	Selectors Selectors
	// Budget returns the tick budget. It is called before every tick;
	// nil means Settings.MaxScrolls.
	Budget    func() int
	OnDelta   DeltaFunc
	Progress  ProgressFunc
	Logger    *zap.Logger
	Emitter   EventEmitter
	ProfileID uint
}

// Scanner scrolls a feed until it stops growing or the budget is spent,
// collecting item links along the way.
//
// Each tick reads the visible links, hands the new ones to OnDelta, merges
// them into the run state and scrolls to the bottom. The scanner then
// settles for the configured wait and measures the page extent; a tick that
// did not grow the page counts as a stall.
type Scanner struct {
	page   Page
	ledger *Ledger
	cfg    ScannerConfig
	filter *linkFilter
	state  ScanState
}

// NewScanner creates a scanner that drives page and records into ledger.
func NewScanner(page Page, ledger *Ledger, cfg ScannerConfig) (*Scanner, error) {
	if cfg.Settings == nil {
		cfg.Settings = NewSettings(DefaultPacingConfig())
	}
	if cfg.Budget == nil {
		cfg.Budget = cfg.Settings.MaxScrolls
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Emitter == nil {
		cfg.Emitter = &NoOpEmitter{}
	}
	cfg.Selectors = cfg.Selectors.withDefaults()

	filter, err := newLinkFilter(cfg.Selectors.ItemLinkGlob)
	if err != nil {
		return nil, err
	}
	return &Scanner{page: page, ledger: ledger, cfg: cfg, filter: filter, state: Scanning}, nil
}

// State returns the current state.
func (s *Scanner) State() ScanState {
	return s.state
}

// Run scans until the feed is exhausted and returns every link discovered
// in this run. On cancellation it returns what it found so far together
// with the context error.
func (s *Scanner) Run(ctx context.Context) ([]DiscoveredLink, error) {
	run := s.ledger.state
	log := s.cfg.Logger.With(zap.Uint("profile", s.cfg.ProfileID))

	for s.state != Exhausted {
		if err := ctx.Err(); err != nil {
			return run.Discovered(), err
		}
		if run.Ticks >= s.cfg.Budget() {
			s.state = Exhausted
			break
		}

		s.state = Scanning
		run.Ticks++
		tick := run.Ticks

		links, err := s.visibleLinks(ctx, tick)
		if err != nil {
			if errors.Is(err, ErrDriverLost) {
				return run.Discovered(), err
			}
			log.Warn("feed extraction failed, counting tick as empty", zap.Int("tick", tick), zap.Error(err))
			links = nil
		}

		delta := s.delta(links)
		if len(delta) > 0 && s.cfg.OnDelta != nil {
			if err := s.cfg.OnDelta(ctx, tick, delta); err != nil {
				if errors.Is(err, ErrDriverLost) || ctx.Err() != nil {
					return run.Discovered(), err
				}
				log.Warn("tick delta handler failed", zap.Int("tick", tick), zap.Error(err))
			}
		}
		for _, link := range delta {
			s.ledger.MarkDiscovered(link)
		}

		if err := s.page.Eval(ctx, ScrollToBottomScript, nil); err != nil {
			if errors.Is(err, ErrDriverLost) || ctx.Err() != nil {
				return run.Discovered(), err
			}
			log.Warn("scroll failed", zap.Int("tick", tick), zap.Error(err))
		}

		s.state = Settling
		wait := Wait{Phase: PhaseScrollSettle, Total: s.cfg.Settings.ScrollWait(), Progress: s.cfg.Progress}
		if err := WaitUntil(ctx, wait, nil); err != nil {
			return run.Discovered(), err
		}

		var extent int64
		if err := s.page.Eval(ctx, PageExtentScript, &extent); err != nil {
			if errors.Is(err, ErrDriverLost) || ctx.Err() != nil {
				return run.Discovered(), err
			}
			log.Warn("failed to measure page extent", zap.Int("tick", tick), zap.Error(err))
			extent = run.LastExtent
		}
		if extent == run.LastExtent {
			run.Stalls++
		} else {
			run.Stalls = 0
			run.LastExtent = extent
		}

		s.cfg.Emitter.Emit(EventScanTick, TickEvent{
			ProfileID:  s.cfg.ProfileID,
			Tick:       tick,
			Discovered: len(delta),
			Total:      len(run.links),
			Stalls:     run.Stalls,
			Extent:     extent,
		})
		log.Debug("scan tick",
			zap.Int("tick", tick),
			zap.Int("new", len(delta)),
			zap.Int("total", len(run.links)),
			zap.Int("stalls", run.Stalls))

		if run.Stalls >= s.cfg.Settings.StallThreshold() {
			s.state = Exhausted
		}
	}

	return run.Discovered(), nil
}

// visibleLinks returns the item links currently rendered in the feed.
func (s *Scanner) visibleLinks(ctx context.Context, tick int) ([]DiscoveredLink, error) {
	base, err := s.page.URL(ctx)
	if err != nil {
		return nil, err
	}
	anchors, err := s.page.FindAll(ctx, s.cfg.Selectors.FeedLink)
	if err != nil {
		return nil, err
	}

	links := make([]DiscoveredLink, 0, len(anchors))
	for _, a := range anchors {
		href, err := a.Attr(ctx, "href")
		if err != nil {
			if errors.Is(err, ErrDriverLost) {
				return nil, err
			}
			continue
		}
		if !s.filter.Match(href) {
			continue
		}
		links = append(links, DiscoveredLink{
			Raw:       href,
			Canonical: Canonicalize(ResolveLink(base, href)),
			Tick:      tick,
		})
	}
	return links, nil
}

// delta keeps the links that are new to the run, deduplicated within the tick.
func (s *Scanner) delta(links []DiscoveredLink) []DiscoveredLink {
	seen := make(map[uint64]struct{}, len(links))
	var delta []DiscoveredLink
	for _, link := range links {
		identity := Identity(link.Canonical)
		key := identityKey(identity)
		if _, dup := seen[key]; dup || s.ledger.Discovered(identity) {
			continue
		}
		seen[key] = struct{}{}
		delta = append(delta, link)
	}
	return delta
}
