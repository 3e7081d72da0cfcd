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
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultLoginCheckTimeout bounds the wait for the logged-in marker after a
// feed was opened.
const DefaultLoginCheckTimeout = 10 * time.Second

// Result summarises one profile harvest.
type Result struct {
	ProfileID  uint
	Plan       Plan
	Ticks      int
	Discovered int
	Fetched    int
	Ingested   int
	Skipped    int
	Failed     int
	Stopped    bool
	Duration   time.Duration
}

// HarvesterOption configures a Harvester.
type HarvesterOption func(*Harvester)

// WithSettings shares live pacing settings with the harvester.
func WithSettings(s *Settings) HarvesterOption {
	return func(h *Harvester) { h.settings = s }
}

// WithSelectors overrides the page selectors. Empty fields keep their defaults.
func WithSelectors(s Selectors) HarvesterOption {
	return func(h *Harvester) { h.selectors = s.withDefaults() }
}

func WithLogger(l *zap.Logger) HarvesterOption {
	return func(h *Harvester) { h.logger = l }
}

func WithEmitter(e EventEmitter) HarvesterOption {
	return func(h *Harvester) { h.emitter = e }
}

// WithProgress registers an observer for every wait of the harvest.
func WithProgress(fn ProgressFunc) HarvesterOption {
	return func(h *Harvester) { h.progress = fn }
}

// WithClock sets the reference time used for relative publish times.
func WithClock(now func() time.Time) HarvesterOption {
	return func(h *Harvester) { h.now = now }
}

// WithLoginCheck sets how long to wait for the logged-in marker on a feed.
// A zero timeout disables the check.
func WithLoginCheck(timeout time.Duration) HarvesterOption {
	return func(h *Harvester) { h.loginTimeout = timeout }
}

// Harvester runs profile harvests on one browser. Harvests on the same
// Harvester must not overlap; use one Harvester per browser to run
// profiles in parallel.
type Harvester struct {
	browser      Browser
	store        ContentStore
	settings     *Settings
	selectors    Selectors
	logger       *zap.Logger
	emitter      EventEmitter
	progress     ProgressFunc
	now          func() time.Time
	loginTimeout time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped atomic.Bool
}

// NewHarvester creates a harvester driving browser and archiving into store.
func NewHarvester(browser Browser, store ContentStore, opts ...HarvesterOption) *Harvester {
	h := &Harvester{
		browser:      browser,
		store:        store,
		selectors:    DefaultSelectors(),
		logger:       zap.NewNop(),
		emitter:      &NoOpEmitter{},
		now:          time.Now,
		loginTimeout: DefaultLoginCheckTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.settings == nil {
		h.settings = NewSettings(DefaultPacingConfig())
	}
	return h
}

// Stop cancels the harvest in progress and makes later harvests return
// ErrStopped right away. Items already stored stay stored.
func (h *Harvester) Stop() {
	h.stopped.Store(true)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
}

// Stopped reports whether Stop was called.
func (h *Harvester) Stopped() bool {
	return h.stopped.Load()
}

// Harvest runs one profile to completion.
//
// A Skip profile returns at once. Otherwise the feed is opened, scanned
// until exhausted, and the new items are stored one by one: quick captures
// in discovery order, full items after fetching each detail page. Failures
// of single items are logged and skipped. The returned error is non-nil
// when the harvest did not complete cleanly; it wraps ErrStopped,
// ErrSessionExpired or ErrDriverLost for those conditions.
func (h *Harvester) Harvest(ctx context.Context, profile SourceProfile) (Result, error) {
	start := time.Now()
	result := Result{ProfileID: profile.ID}
	if h.stopped.Load() {
		result.Stopped = true
		return result, ErrStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	// Stop may have run between the check above and installing cancel.
	stopped := h.stopped.Load()
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.cancel = nil
		h.mu.Unlock()
		cancel()
	}()
	if stopped {
		result.Stopped = true
		return result, ErrStopped
	}

	log := h.logger.With(zap.Uint("profile", profile.ID), zap.String("name", profile.Name))
	h.emitter.Emit(EventHarvestStarted, HarvestEvent{Profile: profile})

	err := h.harvest(ctx, profile, &result, log)
	result.Duration = time.Since(start)
	return h.finish(ctx, profile, result, err, log)
}

func (h *Harvester) harvest(ctx context.Context, profile SourceProfile, result *Result, log *zap.Logger) error {
	var archived int64
	if profile.Policy == PolicyFull {
		n, err := h.store.CountItems(ctx, profile.ID)
		if err != nil {
			log.Warn("failed to count archived items, assuming none", zap.Error(err))
		}
		archived = n
	}
	plan := PlanHarvest(profile, archived, h.settings)
	result.Plan = plan
	if !profile.Policy.Valid() {
		log.Warn("unknown policy, skipping profile", zap.Int("policy", int(profile.Policy)))
	}
	if plan.Mode == PolicySkip {
		log.Info("policy is skip, nothing to do")
		return nil
	}
	log.Info("harvest planned",
		zap.Stringer("mode", plan.Mode),
		zap.Int("budget", plan.ScrollBudget),
		zap.Bool("probe", plan.Probe),
		zap.Int64("archived", archived))

	state := NewRunState()
	defer state.Reset()
	ledger := NewLedger(h.store, state)
	feed := h.browser.Page()
	progress := h.progressFor(profile.ID)

	if err := feed.Navigate(ctx, profile.FeedURL); err != nil {
		return fmt.Errorf("failed to open feed %s: %w", profile.FeedURL, err)
	}
	if err := h.checkLogin(ctx, feed, progress); err != nil {
		return err
	}

	var onDelta DeltaFunc
	if plan.Mode == PolicyQuickCapture {
		quick := NewQuickCapturer(feed, ledger, h.selectors, profile.ID, log)
		onDelta = func(ctx context.Context, tick int, delta []DiscoveredLink) error {
			items, err := quick.Capture(ctx, delta)
			for _, item := range items {
				state.bufferItem(item)
			}
			return err
		}
	}
	budget := h.settings.MaxScrolls
	if plan.Probe {
		budget = func() int { return 1 }
	}

	scanner, err := NewScanner(feed, ledger, ScannerConfig{
		Settings:  h.settings,
		Selectors: h.selectors,
		Budget:    budget,
		OnDelta:   onDelta,
		Progress:  progress,
		Logger:    log,
		Emitter:   h.emitter,
		ProfileID: profile.ID,
	})
	if err != nil {
		return err
	}
	links, err := scanner.Run(ctx)
	result.Ticks = state.Ticks
	result.Discovered = len(links)
	if err != nil {
		return err
	}
	log.Info("feed exhausted", zap.Int("ticks", state.Ticks), zap.Int("discovered", len(links)))

	if plan.Mode == PolicyQuickCapture {
		for _, item := range state.Buffered() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := h.ingest(ctx, ledger, item, result, log); err != nil {
				return err
			}
		}
		return nil
	}

	fetcher := NewDetailFetcher(h.browser, DetailConfig{
		Settings:  h.settings,
		Selectors: h.selectors,
		ProfileID: profile.ID,
		Progress:  progress,
		Logger:    log,
		Now:       h.now,
	})
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return err
		}
		process, err := ledger.ShouldProcess(ctx, link.Canonical)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("archive check failed, skipping item", zap.String("url", link.Canonical), zap.Error(err))
			result.Failed++
			continue
		}
		if !process {
			result.Skipped++
			h.emitter.Emit(EventItemSkipped, ItemEvent{ProfileID: profile.ID, URL: link.Canonical})
			continue
		}

		item, err := fetcher.FetchDetail(ctx, link.Canonical)
		if err != nil {
			if errors.Is(err, ErrDriverLost) || ctx.Err() != nil {
				return err
			}
			log.Error("item not fetched", zap.String("url", link.Canonical), zap.Error(err))
			result.Failed++
			h.emitter.Emit(EventItemFailed, ItemEvent{ProfileID: profile.ID, URL: link.Canonical, Err: err})
			continue
		}
		result.Fetched++
		if err := h.ingest(ctx, ledger, item, result, log); err != nil {
			return err
		}
	}
	return nil
}

// ingest stores one item after re-checking the ledger. Store failures are
// logged and leave the item unmarked so a later run retries it; only
// cancellation is returned.
func (h *Harvester) ingest(ctx context.Context, ledger *Ledger, item ContentItem, result *Result, log *zap.Logger) error {
	process, err := ledger.ShouldProcess(ctx, item.URL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("archive check failed, item not stored", zap.String("url", item.URL), zap.Error(err))
		result.Failed++
		return nil
	}
	if !process {
		result.Skipped++
		h.emitter.Emit(EventItemSkipped, ItemEvent{ProfileID: item.ProfileID, URL: item.URL, Complete: item.Complete})
		return nil
	}

	if err := h.store.Insert(ctx, item); err != nil {
		if errors.Is(err, ErrDuplicate) {
			ledger.MarkIngested(item.URL)
			result.Skipped++
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("failed to store item", zap.String("url", item.URL), zap.Error(err))
		result.Failed++
		h.emitter.Emit(EventItemFailed, ItemEvent{ProfileID: item.ProfileID, URL: item.URL, Complete: item.Complete, Err: err})
		return nil
	}

	ledger.MarkIngested(item.URL)
	result.Ingested++
	h.emitter.Emit(EventItemIngested, ItemEvent{ProfileID: item.ProfileID, URL: item.URL, Complete: item.Complete})
	log.Debug("item stored", zap.String("url", item.URL), zap.Bool("complete", item.Complete))
	return nil
}

// checkLogin fails with ErrSessionExpired when the feed does not show the
// logged-in marker within the login check timeout.
func (h *Harvester) checkLogin(ctx context.Context, feed Page, progress ProgressFunc) error {
	if h.loginTimeout <= 0 {
		return nil
	}
	wait := Wait{Phase: PhaseCookieCheck, Total: h.loginTimeout, Progress: progress}
	err := WaitUntil(ctx, wait, ElementPresent(feed, h.selectors.LoggedIn))
	if errors.Is(err, ErrWaitTimeout) {
		return fmt.Errorf("logged-in marker %s missing: %w", h.selectors.LoggedIn, ErrSessionExpired)
	}
	return err
}

func (h *Harvester) progressFor(profileID uint) ProgressFunc {
	return func(phase Phase, elapsed, total time.Duration) {
		h.emitter.Emit(EventWaitProgress, WaitEvent{ProfileID: profileID, Phase: phase, Elapsed: elapsed, Total: total})
		if h.progress != nil {
			h.progress(phase, elapsed, total)
		}
	}
}

func (h *Harvester) finish(ctx context.Context, profile SourceProfile, result Result, err error, log *zap.Logger) (Result, error) {
	fields := []zap.Field{
		zap.Int("ticks", result.Ticks),
		zap.Int("discovered", result.Discovered),
		zap.Int("ingested", result.Ingested),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration),
	}

	switch {
	case err == nil:
		log.Info("harvest completed", fields...)
		h.emitter.Emit(EventHarvestCompleted, HarvestEvent{Profile: profile, Result: result})
		return result, nil
	case errors.Is(err, ErrDriverLost) || errors.Is(err, ErrSessionExpired):
		log.Error("harvest aborted", append(fields, zap.Error(err))...)
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		result.Stopped = true
		log.Info("harvest stopped", fields...)
		h.emitter.Emit(EventHarvestStopped, HarvestEvent{Profile: profile, Result: result, Err: err})
		return result, fmt.Errorf("%w: %w", ErrStopped, err)
	default:
		log.Error("harvest failed", append(fields, zap.Error(err))...)
	}
	h.emitter.Emit(EventHarvestFailed, HarvestEvent{Profile: profile, Result: result, Err: err})
	return result, err
}
