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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanHarvest(t *testing.T) {
	settings := NewSettings(PacingConfig{MaxScrolls: 12, StallThreshold: 3, ArchivedThreshold: 20})

	tests := []struct {
		name     string
		policy   Policy
		archived int64
		want     Plan
	}{
		{"skip", PolicySkip, 0, Plan{Mode: PolicySkip}},
		{"quick ignores archive size", PolicyQuickCapture, 500, Plan{Mode: PolicyQuickCapture, ScrollBudget: 12}},
		{"full on a new profile", PolicyFull, 3, Plan{Mode: PolicyFull, ScrollBudget: 12}},
		{"full at the threshold", PolicyFull, 20, Plan{Mode: PolicyFull, ScrollBudget: 12}},
		{"full above the threshold probes", PolicyFull, 21, Plan{Mode: PolicyFull, ScrollBudget: 1, Probe: true}},
		{"unknown policy", Policy(9), 0, Plan{Mode: PolicySkip}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanHarvest(SourceProfile{ID: 1, Policy: tt.policy}, tt.archived, settings)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanHarvestReadsLiveSettings(t *testing.T) {
	settings := NewSettings(PacingConfig{MaxScrolls: 5, StallThreshold: 3, ArchivedThreshold: 20})
	profile := SourceProfile{Policy: PolicyFull}

	assert.Equal(t, 5, PlanHarvest(profile, 0, settings).ScrollBudget)
	settings.SetMaxScrolls(8)
	assert.Equal(t, 8, PlanHarvest(profile, 0, settings).ScrollBudget)
	settings.SetArchivedThreshold(100)
	assert.False(t, PlanHarvest(profile, 50, settings).Probe)
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{
		"full": PolicyFull, "1": PolicyFull, " Quick ": PolicyQuickCapture,
		"quick-capture": PolicyQuickCapture, "2": PolicyQuickCapture, "skip": PolicySkip, "3": PolicySkip,
	} {
		got, err := ParsePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePolicy("sometimes")
	assert.Error(t, err)

	var p Policy
	require.NoError(t, p.UnmarshalText([]byte("quick")))
	assert.Equal(t, PolicyQuickCapture, p)
	text, err := PolicySkip.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "skip", string(text))
	assert.Equal(t, "policy(7)", Policy(7).String())
}
