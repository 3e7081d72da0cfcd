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

// FeedSnake CLI
//
// Harvests the feeds of tracked profiles into a local or shared archive.
//
// Usage:
//
//	feedsnake <command> [flags]
//
// Commands:
//
//	login     Log in by hand and save the session cookies
//	harvest   Harvest every due profile, once or on a cron schedule
//	profiles  Add, list, seed, enable or disable tracked profiles
//	items     List archived items
//	replay    Harvest saved pages described by a manifest
//	version   Show version information
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
