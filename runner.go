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

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Store ContentStore
	// Browser serves a sequential batch. When nil, one is opened with Factory.
	Browser Browser
	// Factory opens the browsers of a parallel batch, one per worker.
	Factory BrowserFactory
	// Concurrency is the number of profiles harvested at once. Values above
	// one need a Factory.
	Concurrency int
	Options     []HarvesterOption
	Logger      *zap.Logger
	// Now stamps the last harvest of completed profiles; defaults to time.Now.
	Now func() time.Time
}

// BatchResult summarises one Run.
type BatchResult struct {
	RunID     string
	Profiles  int
	Completed int
	Failed    int
	Stopped   bool
	Results   []Result
}

// Runner harvests every profile that is due, one batch per Run.
type Runner struct {
	cfg RunnerConfig

	mu         sync.Mutex
	harvesters []*Harvester
	stopped    atomic.Bool
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{cfg: cfg}
}

// Stop cancels the batch in progress. The profile being harvested keeps
// what it stored so far but its last harvest is not updated.
func (r *Runner) Stop() {
	r.stopped.Store(true)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.harvesters {
		h.Stop()
	}
}

// Run harvests the due profiles in store order. A profile's last harvest
// is updated only when its harvest completed cleanly. Other failures are
// logged and the batch moves on, except for a lost browser or an expired
// session, which end the batch with that error. A stopped batch returns
// an error wrapping ErrStopped.
func (r *Runner) Run(ctx context.Context) (BatchResult, error) {
	batch := BatchResult{RunID: uuid.NewString()}
	log := r.cfg.Logger.With(zap.String("run_id", batch.RunID))
	if r.stopped.Load() {
		batch.Stopped = true
		return batch, ErrStopped
	}

	profiles, err := r.cfg.Store.ListProfilesDueForHarvest(ctx)
	if err != nil {
		return batch, fmt.Errorf("failed to list profiles: %w", err)
	}
	batch.Profiles = len(profiles)
	log.Info("batch started", zap.Int("profiles", len(profiles)))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Harvesters live for one batch; a daemon reuses the Runner.
	defer func() {
		r.mu.Lock()
		r.harvesters = nil
		r.mu.Unlock()
	}()

	if r.cfg.Concurrency > 1 && r.cfg.Factory != nil {
		err = r.runParallel(ctx, cancel, profiles, &batch, log)
	} else {
		err = r.runSequential(ctx, profiles, &batch, log)
	}
	if r.stopped.Load() && err == nil {
		err = ErrStopped
	}
	if errors.Is(err, ErrStopped) {
		batch.Stopped = true
	}

	log.Info("batch finished",
		zap.Int("completed", batch.Completed),
		zap.Int("failed", batch.Failed),
		zap.Bool("stopped", batch.Stopped),
		zap.Error(err))
	return batch, err
}

func (r *Runner) runSequential(ctx context.Context, profiles []SourceProfile, batch *BatchResult, log *zap.Logger) error {
	browser := r.cfg.Browser
	if browser == nil {
		if r.cfg.Factory == nil {
			return errors.New("runner needs a browser or a browser factory")
		}
		b, err := r.cfg.Factory(ctx)
		if err != nil {
			return fmt.Errorf("failed to open browser: %w", err)
		}
		defer b.Close()
		browser = b
	}
	h := r.harvester(browser, log)

	for _, profile := range profiles {
		if ctx.Err() != nil || r.stopped.Load() {
			return ErrStopped
		}
		res, err := h.Harvest(ctx, profile)
		if fatal := r.record(ctx, profile, res, err, batch, log); fatal != nil {
			return fatal
		}
	}
	return nil
}

func (r *Runner) runParallel(ctx context.Context, cancel context.CancelFunc, profiles []SourceProfile, batch *BatchResult, log *zap.Logger) error {
	workers := min(r.cfg.Concurrency, max(len(profiles), 1))
	harvesters := make([]*Harvester, 0, workers)
	for i := 0; i < workers; i++ {
		b, err := r.cfg.Factory(ctx)
		if err != nil {
			cancel()
			return fmt.Errorf("failed to open browser %d: %w", i, err)
		}
		defer b.Close()
		harvesters = append(harvesters, r.harvester(b, log))
	}

	var (
		mu       sync.Mutex
		fatalErr error
	)
	pool := NewWorkerPool(ctx, harvesters, workers, func(h *Harvester, profile SourceProfile) {
		res, err := h.Harvest(ctx, profile)
		mu.Lock()
		defer mu.Unlock()
		if fatal := r.record(ctx, profile, res, err, batch, log); fatal != nil && fatalErr == nil {
			fatalErr = fatal
			cancel()
		}
	})

	for _, profile := range profiles {
		if err := pool.Submit(profile); err != nil {
			break
		}
	}
	pool.Close()

	mu.Lock()
	defer mu.Unlock()
	if fatalErr != nil {
		return fatalErr
	}
	if ctx.Err() != nil {
		return ErrStopped
	}
	return nil
}

func (r *Runner) harvester(browser Browser, log *zap.Logger) *Harvester {
	opts := append([]HarvesterOption{WithLogger(log)}, r.cfg.Options...)
	h := NewHarvester(browser, r.cfg.Store, opts...)
	r.mu.Lock()
	r.harvesters = append(r.harvesters, h)
	r.mu.Unlock()
	if r.stopped.Load() {
		h.Stop()
	}
	return h
}

// record books one harvest into batch and returns the error that must end
// the batch, if any.
func (r *Runner) record(ctx context.Context, profile SourceProfile, res Result, err error, batch *BatchResult, log *zap.Logger) error {
	batch.Results = append(batch.Results, res)
	switch {
	case err == nil:
		batch.Completed++
		// The batch may be cancelled by another worker; this harvest still completed.
		if uerr := r.cfg.Store.UpdateLastHarvest(context.WithoutCancel(ctx), profile.ID, r.cfg.Now().Unix()); uerr != nil {
			log.Error("failed to update last harvest", zap.Uint("profile", profile.ID), zap.Error(uerr))
		}
		return nil
	case errors.Is(err, ErrStopped):
		return err
	case errors.Is(err, ErrDriverLost), errors.Is(err, ErrSessionExpired):
		batch.Failed++
		return err
	default:
		batch.Failed++
		log.Error("profile failed, moving on", zap.Uint("profile", profile.ID), zap.Error(err))
		return nil
	}
}
