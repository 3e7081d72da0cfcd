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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exploreBase = "https://www.xiaohongshu.com/explore/"

func TestLedgerShouldProcess(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.seed(1, exploreBase+"archived")
	ledger := NewLedger(store, NewRunState())

	ok, err := ledger.ShouldProcess(ctx, exploreBase+"fresh?xsec_token=abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.ShouldProcess(ctx, exploreBase+"archived?xsec_token=abc")
	require.NoError(t, err)
	assert.False(t, ok)

	ledger.MarkIngested(exploreBase + "fresh")
	calls := store.existsCalls
	ok, err = ledger.ShouldProcess(ctx, exploreBase+"fresh?xsec_token=other")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, calls, store.existsCalls, "run-local hit must not reach the store")
}

func TestLedgerArchivedNeverProcessed(t *testing.T) {
	ctx := context.Background()
	ids := []string{"a", "b", "c", "d"}

	orders := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 3, 0, 2}}
	for _, order := range orders {
		store := newMemStore()
		store.seed(1, exploreBase+"c")
		state := NewRunState()
		ledger := NewLedger(store, state)

		for tick, i := range order {
			raw := "/user/profile/owner/" + ids[i]
			ledger.MarkDiscovered(DiscoveredLink{Raw: raw, Canonical: Canonicalize(exploreBase + ids[i]), Tick: tick})
		}
		ok, err := ledger.ShouldProcess(ctx, exploreBase+"c")
		require.NoError(t, err)
		assert.False(t, ok, "order %v", order)
	}
}

func TestLedgerMarkDiscovered(t *testing.T) {
	state := NewRunState()
	ledger := NewLedger(newMemStore(), state)

	assert.True(t, ledger.MarkDiscovered(DiscoveredLink{Canonical: exploreBase + "x?a=1", Tick: 1}))
	assert.False(t, ledger.MarkDiscovered(DiscoveredLink{Canonical: exploreBase + "x?a=2", Tick: 2}))
	assert.True(t, ledger.MarkDiscovered(DiscoveredLink{Canonical: exploreBase + "y", Tick: 2}))
	assert.True(t, ledger.Discovered(exploreBase+"x"))

	links := state.Discovered()
	require.Len(t, links, 2)
	assert.Equal(t, 1, links[0].Tick)
	assert.Equal(t, exploreBase+"y", links[1].Canonical)

	state.Reset()
	assert.Empty(t, state.Discovered())
	assert.False(t, ledger.Discovered(exploreBase+"x"))
}

func TestLedgerStoreError(t *testing.T) {
	store := newMemStore()
	store.existsErr = errors.New("database is locked")
	ledger := NewLedger(store, NewRunState())

	ok, err := ledger.ShouldProcess(context.Background(), exploreBase+"z")
	assert.False(t, ok)
	assert.ErrorIs(t, err, store.existsErr)
}
