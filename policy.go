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
	"fmt"
	"strconv"
	"strings"
)

// Policy selects how a profile is harvested.
type Policy int

// The numeric values are the codes stored alongside profiles.
const (
	// PolicyFull scans the feed, then opens every new item for its details.
	PolicyFull Policy = 1
	// PolicyQuickCapture records new items straight from the feed cards.
	PolicyQuickCapture Policy = 2
	// PolicySkip leaves the profile alone.
	PolicySkip Policy = 3
)

func (p Policy) String() string {
	switch p {
	case PolicyFull:
		return "full"
	case PolicyQuickCapture:
		return "quick"
	case PolicySkip:
		return "skip"
	default:
		return "policy(" + strconv.Itoa(int(p)) + ")"
	}
}

// Valid reports whether p is one of the known policies.
func (p Policy) Valid() bool {
	return p == PolicyFull || p == PolicyQuickCapture || p == PolicySkip
}

// ParsePolicy accepts a policy name or its numeric code.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", "1":
		return PolicyFull, nil
	case "quick", "quickcapture", "quick-capture", "2":
		return PolicyQuickCapture, nil
	case "skip", "3":
		return PolicySkip, nil
	}
	return 0, fmt.Errorf("unknown policy %q (must be full, quick or skip)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid policy %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Plan is what the policy engine decided for one harvest.
type Plan struct {
	Mode Policy
	// ScrollBudget is the maximum number of scan ticks; 0 for Skip.
	ScrollBudget int
	// Probe is set when a full harvest was cut down to a single tick
	// because the profile is already well archived.
	Probe bool
}

// PlanHarvest resolves the policy of a profile into a plan. archived is the
// number of items the store already holds for the profile. Unknown policies
// are planned as Skip.
func PlanHarvest(profile SourceProfile, archived int64, settings *Settings) Plan {
	switch profile.Policy {
	case PolicyQuickCapture:
		return Plan{Mode: PolicyQuickCapture, ScrollBudget: settings.MaxScrolls()}
	case PolicyFull:
		if archived > int64(settings.ArchivedThreshold()) {
			return Plan{Mode: PolicyFull, ScrollBudget: 1, Probe: true}
		}
		return Plan{Mode: PolicyFull, ScrollBudget: settings.MaxScrolls()}
	default:
		return Plan{Mode: PolicySkip}
	}
}
