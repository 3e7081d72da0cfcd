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
	"sync"
)

// memStore is an in-memory ContentStore for tests.
type memStore struct {
	mu          sync.Mutex
	items       map[string]ContentItem
	order       []string
	profiles    []SourceProfile
	harvested   map[uint]int64
	existsCalls int
	failInsert  map[string]error
	existsErr   error
}

func newMemStore(profiles ...SourceProfile) *memStore {
	return &memStore{
		items:      make(map[string]ContentItem),
		profiles:   profiles,
		harvested:  make(map[uint]int64),
		failInsert: make(map[string]error),
	}
}

func (s *memStore) seed(profileID uint, identities ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range identities {
		s.items[id] = ContentItem{URL: id, ProfileID: profileID}
	}
}

func (s *memStore) Exists(ctx context.Context, identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.existsCalls++
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.items[identity]
	return ok, nil
}

func (s *memStore) Insert(ctx context.Context, item ContentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := Identity(item.URL)
	if err := s.failInsert[id]; err != nil {
		return err
	}
	if _, ok := s.items[id]; ok {
		return fmt.Errorf("insert %s: %w", id, ErrDuplicate)
	}
	s.items[id] = item
	s.order = append(s.order, id)
	return nil
}

func (s *memStore) UpdateLastHarvest(ctx context.Context, profileID uint, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.harvested[profileID] = ts
	return nil
}

func (s *memStore) ListProfilesDueForHarvest(ctx context.Context) ([]SourceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SourceProfile(nil), s.profiles...), nil
}

func (s *memStore) CountItems(ctx context.Context, profileID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, item := range s.items {
		if item.ProfileID == profileID {
			n++
		}
	}
	return n, nil
}

// inserted returns the identities stored through Insert, in order.
func (s *memStore) inserted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

func (s *memStore) item(identity string) (ContentItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[identity]
	return item, ok
}

func (s *memStore) lastHarvest(profileID uint) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.harvested[profileID]
	return ts, ok
}
