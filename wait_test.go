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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type progressLog struct {
	mu      sync.Mutex
	elapsed []time.Duration
	phases  []Phase
}

func (p *progressLog) observe(phase Phase, elapsed, total time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phases = append(p.phases, phase)
	p.elapsed = append(p.elapsed, elapsed)
}

func TestWaitUntilPacing(t *testing.T) {
	var log progressLog
	w := Wait{Phase: PhaseScrollSettle, Total: 30 * time.Millisecond, Poll: 5 * time.Millisecond, Progress: log.observe}

	start := time.Now()
	require.NoError(t, WaitUntil(context.Background(), w, nil))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	require.NotEmpty(t, log.elapsed)
	assert.Equal(t, 30*time.Millisecond, log.elapsed[len(log.elapsed)-1])
	for i := 1; i < len(log.elapsed); i++ {
		assert.GreaterOrEqual(t, log.elapsed[i], log.elapsed[i-1])
	}
	assert.Equal(t, PhaseScrollSettle, log.phases[0])
}

func TestWaitUntilZeroTotal(t *testing.T) {
	require.NoError(t, WaitUntil(context.Background(), Wait{}, nil))
}

func TestWaitUntilConditionMet(t *testing.T) {
	calls := 0
	cond := func(ctx context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	}

	err := WaitUntil(context.Background(), Wait{Total: time.Second, Poll: time.Millisecond}, cond)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWaitUntilTimeout(t *testing.T) {
	cond := func(ctx context.Context) (bool, error) { return false, nil }

	err := WaitUntil(context.Background(), Wait{Phase: PhaseDetailMarker, Total: 10 * time.Millisecond, Poll: time.Millisecond}, cond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.Contains(t, err.Error(), string(PhaseDetailMarker))
}

func TestWaitUntilConditionError(t *testing.T) {
	boom := errors.New("boom")
	cond := func(ctx context.Context) (bool, error) { return false, boom }

	err := WaitUntil(context.Background(), Wait{Total: time.Second}, cond)
	assert.ErrorIs(t, err, boom)
}

func TestWaitUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := WaitUntil(ctx, Wait{Total: 5 * time.Second, Poll: time.Millisecond}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestElementPresent(t *testing.T) {
	b := NewMockBrowser()
	b.RegisterHTML("https://example.com/", `<html><body><div class="ready">ok</div></body></html>`)
	page := b.Page()
	require.NoError(t, page.Navigate(context.Background(), "https://example.com/"))

	ok, err := ElementPresent(page, ".ready")(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ElementPresent(page, ".missing")(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	b.SetLost(true)
	_, err = ElementPresent(page, ".ready")(context.Background())
	assert.ErrorIs(t, err, ErrDriverLost)
}
