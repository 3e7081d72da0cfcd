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
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// RunState is the scratch state of one profile harvest. It is created when
// the harvest starts and dropped when it ends; nothing in it is persisted.
type RunState struct {
	discovered map[uint64]struct{}
	links      []DiscoveredLink
	processed  map[uint64]struct{}
	buffer     []ContentItem

	Ticks      int
	Stalls     int
	LastExtent int64
}

// NewRunState returns an empty RunState.
func NewRunState() *RunState {
	return &RunState{
		discovered: make(map[uint64]struct{}),
		processed:  make(map[uint64]struct{}),
	}
}

// Discovered returns the links found so far in discovery order.
func (r *RunState) Discovered() []DiscoveredLink {
	return append([]DiscoveredLink(nil), r.links...)
}

// Buffered returns the quick captures waiting for ingestion.
func (r *RunState) Buffered() []ContentItem {
	return append([]ContentItem(nil), r.buffer...)
}

func (r *RunState) bufferItem(item ContentItem) {
	r.buffer = append(r.buffer, item)
}

// Reset empties the state.
func (r *RunState) Reset() {
	*r = *NewRunState()
}

func identityKey(identity string) uint64 {
	return xxhash.Sum64String(identity)
}

// Ledger decides whether an item still needs processing. It combines what
// this run already handled with what the content store has archived.
type Ledger struct {
	store ContentStore
	state *RunState
}

// NewLedger creates a ledger over store that records into state.
func NewLedger(store ContentStore, state *RunState) *Ledger {
	return &Ledger{store: store, state: state}
}

// Discovered reports whether the identity was seen earlier in this run.
func (l *Ledger) Discovered(identity string) bool {
	_, ok := l.state.discovered[identityKey(Identity(identity))]
	return ok
}

// MarkDiscovered records a link and reports whether it was new to this run.
func (l *Ledger) MarkDiscovered(link DiscoveredLink) bool {
	key := identityKey(Identity(link.Canonical))
	if _, ok := l.state.discovered[key]; ok {
		return false
	}
	l.state.discovered[key] = struct{}{}
	l.state.links = append(l.state.links, link)
	return true
}

// MarkIngested records that the item was stored by this run. Later
// ShouldProcess calls return false for it without asking the store.
func (l *Ledger) MarkIngested(identity string) {
	l.state.processed[identityKey(Identity(identity))] = struct{}{}
}

// ShouldProcess reports whether the item is neither handled in this run nor
// archived. It is meant to be called right before fetching and again right
// before inserting, since another run may archive the item in between.
func (l *Ledger) ShouldProcess(ctx context.Context, url string) (bool, error) {
	identity := Identity(url)
	if _, ok := l.state.processed[identityKey(identity)]; ok {
		return false, nil
	}
	exists, err := l.store.Exists(ctx, identity)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", identity, err)
	}
	return !exists, nil
}
