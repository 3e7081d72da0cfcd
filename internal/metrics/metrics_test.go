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

package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentberlin/feedsnake"
	"github.com/agentberlin/feedsnake/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHarvestLifecycle(t *testing.T) {
	e := NewEmitter()
	full := feedsnake.SourceProfile{ID: 1, Policy: feedsnake.PolicyFull}
	quick := feedsnake.SourceProfile{ID: 2, Policy: feedsnake.PolicyQuickCapture}

	e.Emit(feedsnake.EventHarvestStarted, feedsnake.HarvestEvent{Profile: full})
	e.Emit(feedsnake.EventHarvestStarted, feedsnake.HarvestEvent{Profile: quick})
	assert.Equal(t, 2.0, testutil.ToFloat64(e.harvestsRunning))

	e.Emit(feedsnake.EventHarvestCompleted, feedsnake.HarvestEvent{Profile: full, Result: feedsnake.Result{Duration: 3 * time.Second}})
	e.Emit(feedsnake.EventHarvestFailed, feedsnake.HarvestEvent{Profile: quick, Err: errors.New("boom")})

	assert.Equal(t, 0.0, testutil.ToFloat64(e.harvestsRunning))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.harvests.WithLabelValues(OutcomeCompleted, "full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.harvests.WithLabelValues(OutcomeFailed, "quick")))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.harvests.WithLabelValues(OutcomeStopped, "full")))
	assert.Greater(t, testutil.ToFloat64(e.lastSuccess), 0.0)
	assert.Equal(t, 2, testutil.CollectAndCount(e.harvestDuration))
}

func TestItemsAndTicks(t *testing.T) {
	e := NewEmitter()

	e.Emit(feedsnake.EventItemIngested, feedsnake.ItemEvent{Complete: true})
	e.Emit(feedsnake.EventItemIngested, feedsnake.ItemEvent{Complete: true})
	e.Emit(feedsnake.EventItemIngested, feedsnake.ItemEvent{})
	e.Emit(feedsnake.EventItemSkipped, feedsnake.ItemEvent{})
	e.Emit(feedsnake.EventItemFailed, feedsnake.ItemEvent{Complete: true, Err: feedsnake.ErrNotAvailable})
	e.Emit(feedsnake.EventScanTick, feedsnake.TickEvent{Tick: 1, Discovered: 9})
	e.Emit(feedsnake.EventScanTick, feedsnake.TickEvent{Tick: 2, Discovered: 0})
	e.Emit(feedsnake.EventWaitProgress, feedsnake.WaitEvent{Phase: feedsnake.PhaseScrollSettle, Elapsed: time.Second, Total: 4 * time.Second})
	e.Emit(feedsnake.EventWaitProgress, feedsnake.WaitEvent{Phase: feedsnake.PhaseLogin})

	assert.Equal(t, 2.0, testutil.ToFloat64(e.items.WithLabelValues(OutcomeIngested, "full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.items.WithLabelValues(OutcomeIngested, "quick")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.items.WithLabelValues(OutcomeSkipped, "quick")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.items.WithLabelValues(OutcomeFailed, "full")))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.ticks))
	assert.Equal(t, 9.0, testutil.ToFloat64(e.discovered))
	assert.Equal(t, 0.25, testutil.ToFloat64(e.waitProgress.WithLabelValues(string(feedsnake.PhaseScrollSettle))))
}

func TestUnknownPayloadIgnored(t *testing.T) {
	e := NewEmitter()
	assert.NotPanics(t, func() {
		e.Emit(feedsnake.EventItemIngested, "not an event")
		e.Emit("custom:event", nil)
	})
	assert.Equal(t, 0, testutil.CollectAndCount(e.items))
}

func TestHandler(t *testing.T) {
	e := NewEmitter()
	e.Emit(feedsnake.EventScanTick, feedsnake.TickEvent{Discovered: 4})

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "feedsnake_scan_links_discovered_total 4")
	assert.Contains(t, string(body), "feedsnake_scan_ticks_total 1")
}

func TestHarvestRecordsThroughEngine(t *testing.T) {
	e := NewEmitter()
	browser := feedsnake.NewMockBrowser()
	archive, err := store.NewStore(filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	defer archive.Close()
	h := feedsnake.NewHarvester(browser, archive, feedsnake.WithEmitter(e))

	_, err = h.Harvest(context.Background(), feedsnake.SourceProfile{ID: 5, Policy: feedsnake.PolicySkip})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.harvests.WithLabelValues(OutcomeCompleted, "skip")))
}
