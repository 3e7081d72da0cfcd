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

import "time"

// EventType represents the type of event
type EventType string

const (
	EventHarvestStarted   EventType = "harvest:started"
	EventHarvestCompleted EventType = "harvest:completed"
	EventHarvestStopped   EventType = "harvest:stopped"
	EventHarvestFailed    EventType = "harvest:failed"
	EventScanTick         EventType = "scan:tick"
	EventItemIngested     EventType = "item:ingested"
	EventItemSkipped      EventType = "item:skipped"
	EventItemFailed       EventType = "item:failed"
	EventWaitProgress     EventType = "wait:progress"
)

// EventEmitter receives status updates from a harvest.
// Implementations must be safe for concurrent use when profiles run in parallel.
// Known consumers:
// - CLI: progress lines on stderr
// - Metrics: Prometheus counters
type EventEmitter interface {
	Emit(eventType EventType, data interface{})
}

// NoOpEmitter is a default implementation that does nothing
type NoOpEmitter struct{}

// Emit does nothing
func (n *NoOpEmitter) Emit(eventType EventType, data interface{}) {}

// HarvestEvent is the payload of the harvest:* events.
type HarvestEvent struct {
	Profile SourceProfile
	Result  Result
	Err     error
}

// TickEvent is the payload of scan:tick.
type TickEvent struct {
	ProfileID  uint
	Tick       int
	Discovered int // links new in this tick
	Total      int
	Stalls     int
	Extent     int64
}

// ItemEvent is the payload of the item:* events.
type ItemEvent struct {
	ProfileID uint
	URL       string
	Complete  bool
	Err       error
}

// WaitEvent is the payload of wait:progress.
type WaitEvent struct {
	ProfileID uint
	Phase     Phase
	Elapsed   time.Duration
	Total     time.Duration
}
