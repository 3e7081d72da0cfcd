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
	"sync"
)

// WorkerPool harvests profiles on a fixed set of workers. Every worker owns
// one Harvester, and with it one browser, so a browser never serves two
// profiles at the same time.
type WorkerPool struct {
	queue chan SourceProfile
	wg    *sync.WaitGroup
	ctx   context.Context
}

// NewWorkerPool starts one worker per harvester. handle is called on the
// worker's goroutine for every submitted profile.
// Parameters:
//   - ctx: Context for cancellation
//   - harvesters: One per worker
//   - queueSize: Buffer size for the profile queue (blocks when full)
func NewWorkerPool(ctx context.Context, harvesters []*Harvester, queueSize int, handle func(*Harvester, SourceProfile)) *WorkerPool {
	wp := &WorkerPool{
		queue: make(chan SourceProfile, queueSize),
		wg:    &sync.WaitGroup{},
		ctx:   ctx,
	}

	for _, h := range harvesters {
		wp.wg.Add(1)
		go wp.worker(h, handle)
	}

	return wp
}

func (wp *WorkerPool) worker(h *Harvester, handle func(*Harvester, SourceProfile)) {
	defer wp.wg.Done()

	for {
		select {
		case profile, ok := <-wp.queue:
			if !ok {
				return
			}
			handle(h, profile)

		case <-wp.ctx.Done():
			return
		}
	}
}

// Submit queues a profile.
// This method BLOCKS if the queue is full, providing backpressure.
// Returns an error if the context is cancelled.
func (wp *WorkerPool) Submit(profile SourceProfile) error {
	select {
	case wp.queue <- profile:
		return nil

	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// Close stops accepting profiles and waits for the workers to drain the queue.
func (wp *WorkerPool) Close() {
	close(wp.queue)
	wp.wg.Wait()
}
