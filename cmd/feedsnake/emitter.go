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

package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/agentberlin/feedsnake"
)

// CLIEmitter prints harvest progress lines.
type CLIEmitter struct {
	mu    sync.Mutex
	out   io.Writer
	quiet bool
}

func (e *CLIEmitter) Emit(eventType feedsnake.EventType, data interface{}) {
	if e.quiet {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev := data.(type) {
	case feedsnake.HarvestEvent:
		name := ev.Profile.Name
		switch eventType {
		case feedsnake.EventHarvestStarted:
			fmt.Fprintf(e.out, "[%s] %s harvest started\n", name, ev.Profile.Policy)
		case feedsnake.EventHarvestCompleted:
			fmt.Fprintf(e.out, "[%s] done in %s: %d new, %d skipped, %d failed\n",
				name, ev.Result.Duration.Round(time.Second), ev.Result.Ingested, ev.Result.Skipped, ev.Result.Failed)
		case feedsnake.EventHarvestStopped:
			fmt.Fprintf(e.out, "[%s] stopped\n", name)
		case feedsnake.EventHarvestFailed:
			fmt.Fprintf(e.out, "[%s] failed: %v\n", name, ev.Err)
		}
	case feedsnake.TickEvent:
		fmt.Fprintf(e.out, "  scroll %d: %d new links, %d total\n", ev.Tick, ev.Discovered, ev.Total)
	}
}

// teeEmitter forwards every event to each of its emitters.
type teeEmitter []feedsnake.EventEmitter

func (t teeEmitter) Emit(eventType feedsnake.EventType, data interface{}) {
	for _, e := range t {
		e.Emit(eventType, data)
	}
}
