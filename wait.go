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
	"time"
)

// ErrWaitTimeout is returned by WaitUntil when the condition never held.
var ErrWaitTimeout = errors.New("feedsnake: wait timed out")

// DefaultPollInterval is how often WaitUntil re-checks its condition and
// reports progress.
const DefaultPollInterval = 200 * time.Millisecond

// Phase names a suspension point.
type Phase string

const (
	PhaseScrollSettle Phase = "scroll-settle"
	PhaseDetailMarker Phase = "detail-marker"
	PhaseDetailWait   Phase = "detail-wait"
	PhaseCookieCheck  Phase = "cookie-check"
	PhaseLogin        Phase = "login"
)

// ProgressFunc observes a wait in progress. elapsed never exceeds total.
type ProgressFunc func(phase Phase, elapsed, total time.Duration)

// Wait describes one bounded wait.
type Wait struct {
	Phase    Phase
	Total    time.Duration
	Poll     time.Duration
	Progress ProgressFunc
}

// Condition is polled by WaitUntil. An error aborts the wait.
type Condition func(ctx context.Context) (bool, error)

// WaitUntil polls cond until it holds, the wait's total elapses or ctx is done.
// Cancellation is checked before every poll. A nil cond is a plain pacing
// wait: it runs for the full total and returns nil.
func WaitUntil(ctx context.Context, w Wait, cond Condition) error {
	poll := w.Poll
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if cond != nil {
			ok, err := cond(ctx)
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
		}

		elapsed := min(time.Since(start), w.Total)
		if w.Progress != nil {
			w.Progress(w.Phase, elapsed, w.Total)
		}
		if elapsed >= w.Total {
			if cond == nil {
				return nil
			}
			return fmt.Errorf("%s after %s: %w", w.Phase, w.Total, ErrWaitTimeout)
		}

		timer := time.NewTimer(min(poll, w.Total-elapsed))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// ElementPresent is a Condition that holds once selector matches on page.
// Lookup failures other than a lost driver count as "not yet".
func ElementPresent(page Page, selector string) Condition {
	return func(ctx context.Context) (bool, error) {
		_, err := page.Find(ctx, selector)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, ErrDriverLost):
			return false, err
		default:
			return false, nil
		}
	}
}
